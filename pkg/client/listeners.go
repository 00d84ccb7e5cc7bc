package client

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/mwangaben/nats-laravel-echo/pkg/logging"
)

// ConnectionListener is told about every connection state change. err is nil
// for a clean transition and carries the terminal error once reconnection stops.
type ConnectionListener func(connected bool, err error)

// listenerSet is a registry of listeners that may unregister themselves while being notified
type listenerSet struct {
	mu     sync.Mutex
	nextID int
	items  map[int]ConnectionListener
	logger *logging.ColoredLogger
}

func newListenerSet(logger *logging.ColoredLogger) *listenerSet {
	return &listenerSet{
		items:  make(map[int]ConnectionListener),
		logger: logger,
	}
}

func (s *listenerSet) add(l ConnectionListener) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.items[s.nextID] = l
	return s.nextID
}

func (s *listenerSet) remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, id)
}

func (s *listenerSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.items)
}

// notify calls every registered listener in registration order, outside the lock
func (s *listenerSet) notify(connected bool, err error) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	snapshot := make([]ConnectionListener, 0, len(ids))
	for _, id := range ids {
		snapshot = append(snapshot, s.items[id])
	}
	s.mu.Unlock()

	for _, l := range snapshot {
		s.call(l, connected, err)
	}
}

func (s *listenerSet) call(l ConnectionListener, connected bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ComponentError(logging.ComponentConnection, "Connection listener panicked",
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	l(connected, err)
}

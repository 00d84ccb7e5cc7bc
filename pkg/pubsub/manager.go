package pubsub

import (
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/mwangaben/nats-laravel-echo/pkg/logging"
)

// Options configures a Manager.
type Options struct {
	// Namespace prefixes every subject: "<namespace>.<channel>".
	Namespace string
	// StrictChannelMatch drops envelopes whose channel member is absent or names another channel.
	StrictChannelMatch bool
	Logger             *logging.ColoredLogger
}

// Manager is the subscription ledger and event router for one client. It owns
// the per-channel callback bindings and at most one broker subscription per channel.
type Manager struct {
	conn      *nats.Conn
	channels  map[string]*channelState
	namespace string
	strict    bool
	logger    *logging.ColoredLogger
	mu        sync.RWMutex
}

// channelState holds everything the ledger knows about one channel name
type channelState struct {
	name     string
	kind     Kind
	ready    bool
	bindings map[string]Callback
	roster   map[string]Callback
	pending  map[string]PendingSubscription
	sub      *subscription
}

// NewManager creates a new ledger with no connection attached
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Manager{
		channels:  make(map[string]*channelState),
		namespace: opts.Namespace,
		strict:    opts.StrictChannelMatch,
		logger:    logger,
	}
}

// Subject returns the broker subject for a channel name.
func (m *Manager) Subject(channel string) string {
	if m.namespace == "" {
		return channel
	}
	return m.namespace + "." + channel
}

func (cs *channelState) hasBindings() bool {
	return len(cs.bindings) > 0 || len(cs.roster) > 0
}

// getOrCreateChannel must be called with m.mu held
func (m *Manager) getOrCreateChannel(name string) *channelState {
	if cs, ok := m.channels[name]; ok {
		return cs
	}
	kind := KindOf(name)
	cs := &channelState{
		name:     name,
		kind:     kind,
		ready:    !kind.RequiresAuth(),
		bindings: make(map[string]Callback),
		roster:   make(map[string]Callback),
		pending:  make(map[string]PendingSubscription),
	}
	m.channels[name] = cs
	return cs
}

func (m *Manager) connectedLocked() bool {
	return m.conn != nil && m.conn.IsConnected()
}

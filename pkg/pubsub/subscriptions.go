package pubsub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/mwangaben/nats-laravel-echo/pkg/logging"
	"github.com/mwangaben/nats-laravel-echo/pkg/metrics"
)

// subscribeFlushTimeout bounds the round trip that confirms interest with the server.
const subscribeFlushTimeout = 5 * time.Second

// subscription is the handle for one open broker subscription and its consumer
type subscription struct {
	sub    *nats.Subscription
	cancel context.CancelFunc
	done   chan struct{}
}

// stop cancels the consumer and releases the broker subscription. It does not
// wait for the consumer, which may be the caller. Unsubscribe errors are
// ignored: after a connection loss the server has already dropped interest.
func (s *subscription) stop() {
	s.cancel()
	_ = s.sub.Unsubscribe()
	metrics.OpenSubscriptions.Dec()
}

// openLocked opens the broker subscription for cs if it is not already open.
// Must be called with m.mu held.
func (m *Manager) openLocked(cs *channelState) error {
	if cs.sub != nil {
		return nil
	}
	if !m.connectedLocked() {
		return fmt.Errorf("open %s: not connected", cs.name)
	}

	subject := m.Subject(cs.name)
	sub, err := m.conn.SubscribeSync(subject)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	if err := m.conn.FlushTimeout(subscribeFlushTimeout); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("failed to confirm subscription to %s: %w", subject, err)
	}

	subCtx, cancel := context.WithCancel(context.Background())
	handle := &subscription{
		sub:    sub,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	cs.sub = handle
	clear(cs.pending)
	metrics.OpenSubscriptions.Inc()

	go m.consume(subCtx, cs.name, handle)

	m.logger.ComponentDebug(logging.ComponentLedger, "Opened channel subscription",
		zap.String("channel", cs.name),
		zap.String("subject", subject),
	)
	return nil
}

// closeLocked releases the broker subscription of cs, if any. Must be called with m.mu held.
func (m *Manager) closeLocked(cs *channelState) {
	if cs.sub == nil {
		return
	}
	cs.sub.stop()
	cs.sub = nil
	m.logger.ComponentDebug(logging.ComponentLedger, "Closed channel subscription",
		zap.String("channel", cs.name),
	)
}

// consume feeds every message of one subscription to the router, in order,
// until the handle is stopped or the connection goes away.
func (m *Manager) consume(ctx context.Context, channel string, handle *subscription) {
	defer close(handle.done)

	for {
		msg, err := handle.sub.NextMsgWithContext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, nats.ErrSlowConsumer) {
				m.logger.ComponentWarn(logging.ComponentLedger, "Slow consumer, messages dropped",
					zap.String("channel", channel),
				)
				continue
			}
			m.logger.ComponentDebug(logging.ComponentLedger, "Channel consumer stopped",
				zap.String("channel", channel),
				zap.Error(err),
			)
			return
		}
		m.Dispatch(channel, msg.Data)
	}
}

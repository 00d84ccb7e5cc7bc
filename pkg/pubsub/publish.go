package pubsub

import (
	"fmt"

	"github.com/mwangaben/nats-laravel-echo/pkg/errors"
)

// Publish publishes data on the namespaced subject. It fails fast with
// errors.ErrNotConnected rather than queuing.
func (m *Manager) Publish(subject string, data []byte) error {
	m.mu.RLock()
	conn := m.conn
	connected := m.connectedLocked()
	m.mu.RUnlock()

	if !connected {
		return fmt.Errorf("publish %s: %w", subject, errors.ErrNotConnected)
	}

	if err := conn.Publish(m.Subject(subject), data); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

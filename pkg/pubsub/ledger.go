package pubsub

import (
	"fmt"
	"sort"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/mwangaben/nats-laravel-echo/pkg/logging"
	"github.com/mwangaben/nats-laravel-echo/pkg/metrics"
)

// Register binds cb to (channel, event), replacing any previous callback for
// that key. The channel is opened right away when connected and ready;
// otherwise the binding is recorded as pending and picked up by Attach or MarkReady.
func (m *Manager) Register(channel, event string, cb Callback) error {
	if cb == nil {
		return fmt.Errorf("register %s/%s: nil callback", channel, event)
	}
	key := bindingKey(event)

	m.mu.Lock()
	defer m.mu.Unlock()

	cs := m.getOrCreateChannel(channel)
	cs.bindings[key] = cb
	return m.afterBindLocked(cs, key)
}

// RegisterRoster binds a presence roster callback. Roster callbacks are kept
// apart from ordinary bindings so both can coexist for the same event.
func (m *Manager) RegisterRoster(channel, event string, cb Callback) error {
	if !IsRosterEvent(event) {
		return fmt.Errorf("register roster %s: %q is not a roster event", channel, event)
	}
	if cb == nil {
		return fmt.Errorf("register roster %s/%s: nil callback", channel, event)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cs := m.getOrCreateChannel(channel)
	if cs.kind != KindPresence {
		return fmt.Errorf("register roster %s: not a presence channel", channel)
	}
	cs.roster[event] = cb
	return m.afterBindLocked(cs, event)
}

func (m *Manager) afterBindLocked(cs *channelState, key string) error {
	if cs.sub != nil {
		return nil
	}
	if !m.connectedLocked() || !cs.ready {
		cs.pending[key] = PendingSubscription{Channel: cs.name, Event: key, RegisteredAt: time.Now()}
		return nil
	}
	if err := m.openLocked(cs); err != nil {
		cs.pending[key] = PendingSubscription{Channel: cs.name, Event: key, RegisteredAt: time.Now()}
		return err
	}
	return nil
}

// Remove deletes the (channel, event) binding and closes the channel's
// subscription when no bindings remain. Unknown keys are a no-op.
func (m *Manager) Remove(channel, event string) {
	key := bindingKey(event)

	m.mu.Lock()
	defer m.mu.Unlock()

	cs, ok := m.channels[channel]
	if !ok {
		return
	}
	delete(cs.bindings, key)
	delete(cs.pending, key)
	m.releaseIfUnboundLocked(cs)
}

// RemoveRoster deletes a presence roster binding.
func (m *Manager) RemoveRoster(channel, event string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cs, ok := m.channels[channel]
	if !ok {
		return
	}
	delete(cs.roster, event)
	delete(cs.pending, event)
	m.releaseIfUnboundLocked(cs)
}

func (m *Manager) releaseIfUnboundLocked(cs *channelState) {
	if !cs.hasBindings() {
		m.closeLocked(cs)
	}
}

// MarkReady allows a channel to be opened. Public channels are ready on
// creation; private and presence channels become ready once authorized.
// A ready channel with bindings is opened immediately when connected.
func (m *Manager) MarkReady(channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cs := m.getOrCreateChannel(channel)
	cs.ready = true
	if cs.hasBindings() && m.connectedLocked() {
		return m.openLocked(cs)
	}
	return nil
}

// IsReady reports whether channel may be opened without authorization.
func (m *Manager) IsReady(channel string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cs, ok := m.channels[channel]
	if !ok {
		return !KindOf(channel).RequiresAuth()
	}
	return cs.ready
}

// Open opens the broker subscription for channel. Opening an already open
// channel, or one without bindings, is a no-op.
func (m *Manager) Open(channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cs, ok := m.channels[channel]
	if !ok || !cs.hasBindings() {
		return nil
	}
	return m.openLocked(cs)
}

// Attach installs a live connection and re-opens every ready channel that
// still has bindings. It is idempotent and returns the number of channels opened.
func (m *Manager) Attach(conn *nats.Conn) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.conn = conn
	return m.replayLocked()
}

// OnReconnected re-runs the replay against the current connection.
func (m *Manager) OnReconnected() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.replayLocked()
}

func (m *Manager) replayLocked() int {
	opened := 0
	for _, cs := range m.channels {
		if cs.sub != nil || !cs.ready || !cs.hasBindings() {
			continue
		}
		if err := m.openLocked(cs); err != nil {
			m.logger.ComponentWarn(logging.ComponentLedger, "Failed to replay channel subscription",
				zap.String("channel", cs.name),
				zap.Error(err),
			)
			continue
		}
		opened++
	}
	if opened > 0 {
		metrics.Replays.Add(float64(opened))
		m.logger.ComponentInfo(logging.ComponentLedger, "Replayed channel subscriptions",
			zap.Int("count", opened),
		)
	}
	return opened
}

// Invalidate drops every subscription handle after a connection loss.
// Bindings survive; each of them becomes pending until the next Attach.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.conn = nil
	now := time.Now()
	for _, cs := range m.channels {
		m.closeLocked(cs)
		for key := range cs.bindings {
			cs.pending[key] = PendingSubscription{Channel: cs.name, Event: key, RegisteredAt: now}
		}
		for key := range cs.roster {
			cs.pending[key] = PendingSubscription{Channel: cs.name, Event: key, RegisteredAt: now}
		}
	}
}

// Leave drops base and its private- and presence- forms, closing any open
// subscription and removing every binding. It returns the names dropped.
func (m *Manager) Leave(base string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var left []string
	for _, name := range []string{base, PrivatePrefix + base, PresencePrefix + base} {
		if m.dropLocked(name) {
			left = append(left, name)
		}
	}
	return left
}

// Unsubscribe drops one exact channel name. Unknown channels are a no-op.
func (m *Manager) Unsubscribe(channel string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.dropLocked(channel)
}

func (m *Manager) dropLocked(name string) bool {
	cs, ok := m.channels[name]
	if !ok {
		return false
	}
	m.closeLocked(cs)
	delete(m.channels, name)
	return true
}

// Reset closes every subscription, forgets every binding and detaches the connection.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, cs := range m.channels {
		m.closeLocked(cs)
		delete(m.channels, name)
	}
	m.conn = nil
}

// OpenCount returns the number of open broker subscriptions.
func (m *Manager) OpenCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, cs := range m.channels {
		if cs.sub != nil {
			n++
		}
	}
	return n
}

// IsOpen reports whether channel has an open broker subscription.
func (m *Manager) IsOpen(channel string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cs, ok := m.channels[channel]
	return ok && cs.sub != nil
}

// OpenChannels lists channels with an open subscription, sorted.
func (m *Manager) OpenChannels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for name, cs := range m.channels {
		if cs.sub != nil {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Channels lists channels with at least one binding, sorted.
func (m *Manager) Channels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for name, cs := range m.channels {
		if cs.hasBindings() {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// HasBindings reports whether channel has any binding.
func (m *Manager) HasBindings(channel string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cs, ok := m.channels[channel]
	return ok && cs.hasBindings()
}

// Pending returns the bindings still waiting for their channel to open, oldest first.
func (m *Manager) Pending() []PendingSubscription {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []PendingSubscription
	for _, cs := range m.channels {
		for _, p := range cs.pending {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			if out[i].Channel == out[j].Channel {
				return out[i].Event < out[j].Event
			}
			return out[i].Channel < out[j].Channel
		}
		return out[i].RegisteredAt.Before(out[j].RegisteredAt)
	})
	return out
}

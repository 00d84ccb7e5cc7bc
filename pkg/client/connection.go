package client

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mwangaben/nats-laravel-echo/pkg/config"
	"github.com/mwangaben/nats-laravel-echo/pkg/errors"
	"github.com/mwangaben/nats-laravel-echo/pkg/logging"
	"github.com/mwangaben/nats-laravel-echo/pkg/metrics"
	"github.com/mwangaben/nats-laravel-echo/pkg/pubsub"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// DialFunc opens a broker connection. url may hold several comma-separated servers.
type DialFunc func(url string, opts ...nats.Option) (*nats.Conn, error)

// ConnectionManager owns the single broker connection of a client: it dials,
// shares in-flight attempts between callers, watches for closure and drives
// reconnection with a bounded linear backoff.
type ConnectionManager struct {
	cfg     config.NATSConfig
	name    string
	servers []string
	ledger  *pubsub.Manager
	logger  *logging.ColoredLogger
	dial    DialFunc

	mu            sync.Mutex
	conn          *nats.Conn
	state         State
	attempts      int
	userClosed    bool
	generation    uint64
	timer         *time.Timer
	everConnected bool

	group     singleflight.Group
	listeners *listenerSet
}

func newConnectionManager(cfg config.NATSConfig, name string, ledger *pubsub.Manager, logger *logging.ColoredLogger, dial DialFunc) *ConnectionManager {
	if dial == nil {
		dial = nats.Connect
	}
	return &ConnectionManager{
		cfg:       cfg,
		name:      name,
		servers:   cfg.ServerURLs(),
		ledger:    ledger,
		logger:    logger,
		dial:      dial,
		listeners: newListenerSet(logger),
	}
}

// State returns the current lifecycle state.
func (m *ConnectionManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether a live connection exists.
func (m *ConnectionManager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil && m.conn.IsConnected()
}

// Attempts returns the number of consecutive failed connection attempts.
func (m *ConnectionManager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Servers returns the broker URLs that are dialed.
func (m *ConnectionManager) Servers() []string {
	return append([]string(nil), m.servers...)
}

// Connect is the owner-initiated connect: it lifts a previous Disconnect,
// resets the attempt counter and then behaves like EnsureConnected.
func (m *ConnectionManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	m.userClosed = false
	m.attempts = 0
	m.stopTimerLocked()
	m.mu.Unlock()

	return m.EnsureConnected(ctx)
}

// EnsureConnected returns once a connection is live. Concurrent callers share
// one in-flight attempt; ctx only bounds how long this caller waits for it.
func (m *ConnectionManager) EnsureConnected(ctx context.Context) error {
	if m.IsConnected() {
		return nil
	}

	ch := m.group.DoChan("connect", func() (interface{}, error) {
		return nil, m.attempt()
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnConnectionChange registers l and immediately calls it with the current
// state. The returned func unregisters it and is safe to call from inside l.
func (m *ConnectionManager) OnConnectionChange(l ConnectionListener) func() {
	id := m.listeners.add(l)
	m.listeners.call(l, m.IsConnected(), nil)

	var once sync.Once
	return func() {
		once.Do(func() { m.listeners.remove(id) })
	}
}

// Disconnect closes the connection, cancels any scheduled retry and clears
// every subscription and binding.
func (m *ConnectionManager) Disconnect() {
	m.mu.Lock()
	m.userClosed = true
	m.generation++
	m.stopTimerLocked()
	nc := m.conn
	m.conn = nil
	m.state = StateDisconnected
	m.attempts = 0
	m.mu.Unlock()

	m.ledger.Reset()
	if nc != nil {
		nc.Close()
		metrics.ConnectionsUp.Dec()
	}

	m.logger.ComponentInfo(logging.ComponentConnection, "Disconnected by owner")
	m.listeners.notify(false, nil)
}

// attempt makes a single dial. It is only ever run through the singleflight group.
func (m *ConnectionManager) attempt() error {
	m.mu.Lock()
	if m.conn != nil && m.conn.IsConnected() {
		m.mu.Unlock()
		return nil
	}
	gen := m.generation
	if m.state != StateReconnecting {
		m.state = StateConnecting
	}
	m.mu.Unlock()

	metrics.ConnectAttempts.Inc()
	closed := make(chan struct{})
	nc, err := m.dial(strings.Join(m.servers, ","), m.options(closed)...)

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		if nc != nil {
			nc.Close()
		}
		return errors.ErrClientClosed
	}
	if err != nil {
		return m.failLocked(err)
	}

	reconnected := m.everConnected
	// A dropped connection whose close callback has not run yet.
	stale := m.conn
	m.conn = nc
	m.state = StateConnected
	m.attempts = 0
	m.userClosed = false
	m.everConnected = true
	m.stopTimerLocked()
	m.mu.Unlock()

	if stale != nil {
		m.ledger.Invalidate()
		stale.Close()
		metrics.ConnectionsUp.Dec()
	}
	metrics.ConnectionsUp.Inc()
	replayed := m.ledger.Attach(nc)
	if reconnected {
		metrics.Reconnects.Inc()
	}
	m.logger.ComponentInfo(logging.ComponentConnection, "Connected to broker",
		zap.String("server", nc.ConnectedUrlRedacted()),
		zap.Bool("reconnect", reconnected),
		zap.Int("replayed", replayed),
	)

	m.listeners.notify(true, nil)
	go m.watch(nc, closed)
	return nil
}

// failLocked records a failed attempt and either schedules the next one or
// gives up. It is entered with m.mu held and releases it.
func (m *ConnectionManager) failLocked(err error) error {
	m.attempts++
	attempts := m.attempts
	metrics.ConnectFailures.Inc()

	if attempts >= m.cfg.MaxReconnectAttempts {
		m.state = StateDisconnected
		m.stopTimerLocked()
		m.mu.Unlock()

		terminal := errors.NewReconnectExhaustedError(m.Servers(), attempts, err)
		metrics.ReconnectsExhausted.Inc()
		m.logger.ComponentError(logging.ComponentConnection, "Giving up on broker connection",
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		m.listeners.notify(false, terminal)
		return terminal
	}

	var delay time.Duration
	if m.cfg.Reconnect && !m.userClosed {
		m.state = StateReconnecting
		delay = m.scheduleLocked()
	} else {
		m.state = StateDisconnected
	}
	m.mu.Unlock()

	m.logger.ComponentWarn(logging.ComponentConnection, "Broker connection attempt failed",
		zap.Int("attempt", attempts),
		zap.Int("max_attempts", m.cfg.MaxReconnectAttempts),
		zap.Duration("retry_in", delay),
		zap.Error(err),
	)
	return errors.NewConnectionError(m.Servers(), err)
}

// watch waits for nc to close and, unless it was replaced or closed by the
// owner, invalidates subscriptions and starts reconnecting.
func (m *ConnectionManager) watch(nc *nats.Conn, closed <-chan struct{}) {
	<-closed

	m.mu.Lock()
	if m.conn != nc {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.state = StateDisconnected
	auto := m.cfg.Reconnect && !m.userClosed
	// Invalidate before releasing m.mu so a new connection cannot be attached first.
	m.ledger.Invalidate()
	m.mu.Unlock()

	err := nc.LastError()
	metrics.ConnectionsUp.Dec()
	m.logger.ComponentWarn(logging.ComponentConnection, "Broker connection lost",
		zap.Bool("reconnect", auto),
		zap.Error(err),
	)
	m.listeners.notify(false, err)

	if !auto {
		return
	}
	m.mu.Lock()
	if m.conn == nil && !m.userClosed {
		m.state = StateReconnecting
		m.scheduleLocked()
	}
	m.mu.Unlock()
}

// scheduleLocked arms the retry timer and returns its delay. Must be called with m.mu held.
func (m *ConnectionManager) scheduleLocked() time.Duration {
	m.stopTimerLocked()
	delay := reconnectDelay(m.attempts, m.cfg.ReconnectBaseDelay, m.cfg.ReconnectMaxDelay)
	gen := m.generation
	m.timer = time.AfterFunc(delay, func() { m.retry(gen) })
	return delay
}

func (m *ConnectionManager) retry(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || m.userClosed {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.mu.Unlock()

	ch := m.group.DoChan("connect", func() (interface{}, error) {
		return nil, m.attempt()
	})
	res := <-ch
	if res.Err == nil || !res.Shared {
		return
	}

	// Joined an attempt that failed before this timer was re-armed.
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen == m.generation && m.timer == nil && m.conn == nil && !m.userClosed &&
		m.cfg.Reconnect && m.attempts < m.cfg.MaxReconnectAttempts {
		m.state = StateReconnecting
		m.scheduleLocked()
	}
}

func (m *ConnectionManager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *ConnectionManager) options(closed chan struct{}) []nats.Option {
	var once sync.Once
	opts := []nats.Option{
		nats.Name(m.name),
		nats.NoReconnect(),
		nats.ClosedHandler(func(*nats.Conn) {
			once.Do(func() { close(closed) })
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				m.logger.ComponentDebug(logging.ComponentConnection, "Broker disconnected", zap.Error(err))
			}
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			m.logger.ComponentWarn(logging.ComponentConnection, "Async broker error",
				zap.String("subject", subject),
				zap.Error(err),
			)
		}),
	}
	if m.cfg.ConnectTimeout > 0 {
		opts = append(opts, nats.Timeout(m.cfg.ConnectTimeout))
	}
	if m.cfg.PingInterval > 0 {
		opts = append(opts, nats.PingInterval(m.cfg.PingInterval))
	}
	switch {
	case m.cfg.Token != "":
		opts = append(opts, nats.Token(m.cfg.Token))
	case m.cfg.User != "":
		opts = append(opts, nats.UserInfo(m.cfg.User, m.cfg.Password))
	}
	return opts
}

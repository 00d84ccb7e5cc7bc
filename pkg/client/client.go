package client

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mwangaben/nats-laravel-echo/pkg/auth"
	"github.com/mwangaben/nats-laravel-echo/pkg/config"
	"github.com/mwangaben/nats-laravel-echo/pkg/errors"
	"github.com/mwangaben/nats-laravel-echo/pkg/logging"
	"github.com/mwangaben/nats-laravel-echo/pkg/metrics"
	"github.com/mwangaben/nats-laravel-echo/pkg/pubsub"
)

// NotificationChannel is the channel Client.Notification listens on.
const NotificationChannel = "notifications"

// Client is an Echo-style broadcaster over a single NATS connection.
type Client struct {
	cfg      *config.Config
	socketID string
	logger   *logging.ColoredLogger

	ledger *pubsub.Manager
	conn   *ConnectionManager
	auth   auth.Authorizer

	mu       sync.Mutex
	channels map[string]*Channel
}

// Option customizes a Client.
type Option func(*options)

type options struct {
	logger     *logging.ColoredLogger
	authorizer auth.Authorizer
	dial       DialFunc
}

// WithLogger sets the logger. By default one is built from the logging config.
func WithLogger(logger *logging.ColoredLogger) Option {
	return func(o *options) { o.logger = logger }
}

// WithAuthorizer replaces the HTTP authorization gateway.
func WithAuthorizer(a auth.Authorizer) Option {
	return func(o *options) { o.authorizer = a }
}

// WithDialer replaces nats.Connect.
func WithDialer(dial DialFunc) Option {
	return func(o *options) { o.dial = dial }
}

// New creates a client. It does not connect: the first subscribe does, or an
// explicit Connect.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = cfg.NewLogger()
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	metrics.Register()

	authorizer := o.authorizer
	if authorizer == nil && cfg.Auth.Endpoint != "" {
		authorizer = auth.NewGateway(cfg.Auth, logger)
	}

	socketID := newSocketID()
	name := cfg.NATS.Name
	if name == "" {
		name = defaultConnectionName(socketID)
	}

	ledger := pubsub.NewManager(pubsub.Options{
		Namespace:          cfg.Namespace,
		StrictChannelMatch: cfg.StrictChannelMatch,
		Logger:             logger,
	})

	c := &Client{
		cfg:      cfg,
		socketID: socketID,
		logger:   logger,
		ledger:   ledger,
		conn:     newConnectionManager(cfg.NATS, name, ledger, logger, o.dial),
		auth:     authorizer,
		channels: make(map[string]*Channel),
	}

	logger.ComponentInfo(logging.ComponentClient, "Echo client created",
		zap.String("socket_id", socketID),
		zap.String("connection_name", name),
		zap.Strings("servers", c.conn.Servers()),
		zap.String("namespace", cfg.Namespace),
	)
	return c, nil
}

// Channel returns the facade for a public channel. Names carrying the
// private- or presence- prefix get that kind instead.
func (c *Client) Channel(name string) *Channel {
	return c.facade(name)
}

// Private returns the facade for private-<name>.
func (c *Client) Private(name string) *Channel {
	return c.facade(pubsub.FullName(pubsub.KindPrivate, name))
}

// Join returns the facade for presence-<name>.
func (c *Client) Join(name string) *Channel {
	return c.facade(pubsub.FullName(pubsub.KindPresence, name))
}

func (c *Client) facade(full string) *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ch, ok := c.channels[full]; ok {
		return ch
	}
	ch := &Channel{client: c, name: full, kind: pubsub.KindOf(full)}
	c.channels[full] = ch
	return ch
}

// Subscribe looks up the facade for channel and subscribes it.
func (c *Client) Subscribe(ctx context.Context, channel string) (*Channel, error) {
	ch := c.facade(channel)
	if err := ch.Subscribe(ctx); err != nil {
		return nil, err
	}
	return ch, nil
}

// Listen subscribes channel and binds cb to event on it. Authorization
// failures are returned and leave no binding behind.
func (c *Client) Listen(ctx context.Context, channel, event string, cb pubsub.Callback) error {
	ch, err := c.Subscribe(ctx, channel)
	if err != nil {
		return err
	}
	if err := c.ledger.Register(ch.name, event, cb); err != nil {
		return NewClientError("listen", ch.name, err)
	}
	return nil
}

// Notification subscribes the notifications channel and binds cb to
// Laravel's notification event.
func (c *Client) Notification(ctx context.Context, cb pubsub.Callback) error {
	return c.Listen(ctx, NotificationChannel, NotificationEvent, cb)
}

// Whisper sends a client event on channel.
func (c *Client) Whisper(channel, event string, data interface{}) error {
	return c.facade(channel).Whisper(event, data)
}

// Unsubscribe closes the subscription for the exact channel name and drops its facade.
func (c *Client) Unsubscribe(channel string) {
	dropped := c.ledger.Unsubscribe(channel)

	c.mu.Lock()
	delete(c.channels, channel)
	c.mu.Unlock()

	if dropped {
		c.logger.ComponentDebug(logging.ComponentClient, "Channel unsubscribed", zap.String("channel", channel))
	}
}

// Leave drops name in all three forms: name, private-name and presence-name.
func (c *Client) Leave(name string) {
	left := c.ledger.Leave(name)

	c.mu.Lock()
	for _, full := range []string{name, pubsub.PrivatePrefix + name, pubsub.PresencePrefix + name} {
		delete(c.channels, full)
	}
	c.mu.Unlock()

	c.logger.ComponentDebug(logging.ComponentClient, "Left channel",
		zap.String("channel", name),
		zap.Strings("closed", left),
	)
}

// SocketID returns the per-instance identifier sent with auth requests and whispers.
func (c *Client) SocketID() string { return c.socketID }

// Connect connects to the broker. It also restarts reconnection after the
// attempt limit was reached or Disconnect was called.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.conn.Connect(ctx); err != nil {
		return NewClientError("connect", "", err)
	}
	return nil
}

// Disconnect closes the connection, stops reconnecting and forgets every
// channel and callback.
func (c *Client) Disconnect() {
	c.conn.Disconnect()

	c.mu.Lock()
	c.channels = make(map[string]*Channel)
	c.mu.Unlock()
}

// OnConnectionChange registers l; see ConnectionManager.OnConnectionChange.
func (c *Client) OnConnectionChange(l ConnectionListener) func() {
	return c.conn.OnConnectionChange(l)
}

// Status returns a snapshot of the connection and its subscriptions.
func (c *Client) Status() Status {
	return Status{
		Connected:         c.conn.IsConnected(),
		SocketID:          c.socketID,
		SubscriptionCount: c.ledger.OpenCount(),
		State:             c.conn.State().String(),
		Attempts:          c.conn.Attempts(),
		Pending:           len(c.ledger.Pending()),
		Channels:          c.ledger.OpenChannels(),
	}
}

func (c *Client) authorize(ctx context.Context, channel string) error {
	if c.cfg.Auth.IsPreAuthorized(channel) {
		return nil
	}
	if c.auth == nil {
		c.logger.ComponentDebug(logging.ComponentAuth, "No authorizer configured, allowing channel",
			zap.String("channel", channel),
		)
		return nil
	}
	_, err := c.auth.Authorize(ctx, channel, c.socketID)
	return err
}

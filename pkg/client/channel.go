package client

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mwangaben/nats-laravel-echo/pkg/errors"
	"github.com/mwangaben/nats-laravel-echo/pkg/logging"
	"github.com/mwangaben/nats-laravel-echo/pkg/metrics"
	"github.com/mwangaben/nats-laravel-echo/pkg/pubsub"
)

// NotificationEvent is the event Laravel broadcasts database notifications under.
const NotificationEvent = `.Illuminate\Notifications\Events\BroadcastNotificationCreated`

// Channel is the caller-facing handle for one channel name. Its kind decides
// whether it needs authorization, supports whispers and carries roster events.
type Channel struct {
	client *Client
	name   string
	kind   pubsub.Kind

	// mu serializes Subscribe so one authorization runs at a time
	mu sync.Mutex
}

// Name returns the full channel name, prefix included.
func (c *Channel) Name() string { return c.name }

// Kind returns the channel kind.
func (c *Channel) Kind() pubsub.Kind { return c.kind }

// Subscribe connects if needed, authorizes private and presence channels and
// allows the channel to open. Subscribing an already subscribed channel is a no-op.
func (c *Channel) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.client.conn.EnsureConnected(ctx); err != nil {
		return NewClientError("subscribe", c.name, err)
	}

	ledger := c.client.ledger
	if c.kind.RequiresAuth() && !ledger.IsReady(c.name) {
		if err := c.client.authorize(ctx, c.name); err != nil {
			return NewClientError("subscribe", c.name, err)
		}
	}

	if err := ledger.MarkReady(c.name); err != nil {
		return NewClientError("subscribe", c.name, err)
	}
	return nil
}

// Listen binds cb to event on this channel, replacing any previous callback
// for the same event. Use "*" to receive every event as {"event","data"}.
func (c *Channel) Listen(event string, cb pubsub.Callback) *Channel {
	if err := c.client.ledger.Register(c.name, event, cb); err != nil {
		c.client.logger.ComponentWarn(logging.ComponentChannel, "Listen failed",
			zap.String("channel", c.name),
			zap.String("event", event),
			zap.Error(err),
		)
	}
	return c
}

// ListenToAll binds the wildcard callback.
func (c *Channel) ListenToAll(cb pubsub.Callback) *Channel {
	return c.Listen(pubsub.Wildcard, cb)
}

// StopListening removes the callback bound to event. On presence channels a
// roster event also drops the matching Here/Joining/Leaving callback.
func (c *Channel) StopListening(event string) *Channel {
	c.client.ledger.Remove(c.name, event)
	if c.kind == pubsub.KindPresence && pubsub.IsRosterEvent(event) {
		c.client.ledger.RemoveRoster(c.name, event)
	}
	return c
}

// Notification listens for Laravel notification broadcasts.
func (c *Channel) Notification(cb pubsub.Callback) *Channel {
	return c.Listen(NotificationEvent, cb)
}

// Here is called with the member list when joining a presence channel.
func (c *Channel) Here(cb pubsub.Callback) *Channel {
	return c.roster(pubsub.EventHere, cb)
}

// Joining is called when a member joins a presence channel.
func (c *Channel) Joining(cb pubsub.Callback) *Channel {
	return c.roster(pubsub.EventJoining, cb)
}

// Leaving is called when a member leaves a presence channel.
func (c *Channel) Leaving(cb pubsub.Callback) *Channel {
	return c.roster(pubsub.EventLeaving, cb)
}

func (c *Channel) roster(event string, cb pubsub.Callback) *Channel {
	if c.kind != pubsub.KindPresence {
		c.client.logger.ComponentWarn(logging.ComponentChannel, "Roster callbacks need a presence channel",
			zap.String("channel", c.name),
			zap.String("event", event),
		)
		return c
	}
	if err := c.client.ledger.RegisterRoster(c.name, event, cb); err != nil {
		c.client.logger.ComponentWarn(logging.ComponentChannel, "Roster registration failed",
			zap.String("channel", c.name),
			zap.String("event", event),
			zap.Error(err),
		)
	}
	return c
}

// Whisper publishes a client event to the other members of a private or
// presence channel. It never queues: without a connection it fails at once.
func (c *Channel) Whisper(event string, data interface{}) error {
	err := c.whisper(event, data)
	if err != nil {
		metrics.Whispers.WithLabelValues(metrics.ResultError).Inc()
		return err
	}
	metrics.Whispers.WithLabelValues(metrics.ResultOK).Inc()
	return nil
}

func (c *Channel) whisper(event string, data interface{}) error {
	if !c.kind.RequiresAuth() {
		return errors.NewChannelError(c.name, "whisper on", errors.ErrWhisperUnsupported)
	}
	if !c.client.conn.IsConnected() {
		return NewClientError("whisper", c.name, errors.ErrNotConnected)
	}

	payload, err := pubsub.EncodeWhisper(c.name, event, c.client.socketID, data)
	if err != nil {
		return err
	}
	if err := c.client.ledger.Publish(pubsub.WhisperSubject(c.name, event), payload); err != nil {
		return NewClientError("whisper", c.name, err)
	}

	c.client.logger.ComponentDebug(logging.ComponentChannel, "Whisper sent",
		zap.String("channel", c.name),
		zap.String("event", event),
	)
	return nil
}

// Unsubscribe closes the channel subscription and forgets its callbacks.
func (c *Channel) Unsubscribe() {
	c.client.Unsubscribe(c.name)
}

func (c *Channel) String() string {
	return fmt.Sprintf("%s(%s)", c.kind, c.name)
}

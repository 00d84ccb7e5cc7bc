package client

import (
	"context"

	"github.com/mwangaben/nats-laravel-echo/pkg/pubsub"
)

// Broadcaster is the capability surface framework adapters build on.
type Broadcaster interface {
	Subscribe(ctx context.Context, channel string) (*Channel, error)
	Unsubscribe(channel string)
	Listen(ctx context.Context, channel, event string, cb pubsub.Callback) error
	Whisper(channel, event string, data interface{}) error
	SocketID() string
	Disconnect()
}

var _ Broadcaster = (*Client)(nil)

// Status is a point-in-time view of the client.
type Status struct {
	Connected         bool     `json:"is_connected"`
	SocketID          string   `json:"socket_id"`
	SubscriptionCount int      `json:"subscription_count"`
	State             string   `json:"state"`
	Attempts          int      `json:"reconnect_attempts"`
	Pending           int      `json:"pending_subscriptions"`
	Channels          []string `json:"channels"`
}

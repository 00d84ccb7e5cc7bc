//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCollector(buffer int) (chan json.RawMessage, func(json.RawMessage)) {
	ch := make(chan json.RawMessage, buffer)
	return ch, func(data json.RawMessage) {
		select {
		case ch <- append(json.RawMessage(nil), data...):
		default:
		}
	}
}

func waitFor(t *testing.T, ch <-chan json.RawMessage) json.RawMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestEcho_ListenReceivesPublishedEvent(t *testing.T) {
	SkipIfMissingBroker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c := NewEchoClient(t)
	channel := GenerateChannel("orders")

	events, cb := newCollector(1)
	require.NoError(t, c.Listen(ctx, channel, `App\Events\OrderShipped`, cb))

	require.Equal(t, 1, c.Status().SubscriptionCount)

	nc := RawConn(t)
	subject := channel
	if namespace := namespacePrefix(); namespace != "" {
		subject = namespace + "." + channel
	}
	require.NoError(t, nc.Publish(subject, []byte(`{"event":"App\\Events\\OrderShipped","data":{"id":42}}`)))
	require.NoError(t, nc.Flush())

	assert.JSONEq(t, `{"id":42}`, string(waitFor(t, events)))
}

func TestEcho_WhisperBetweenClients(t *testing.T) {
	SkipIfMissingBroker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sender := NewEchoClient(t)
	receiver := NewEchoClient(t)
	channel := "private-" + GenerateChannel("chat")

	// whispers travel on "<channel>.client-<event>", so the receiver listens there as a plain channel
	events, cb := newCollector(1)
	require.NoError(t, receiver.Listen(ctx, channel+".client-typing", "client-typing", cb))

	_, err := sender.Subscribe(ctx, channel)
	require.NoError(t, err)
	require.NoError(t, sender.Whisper(channel, "typing", map[string]string{"user": "ada"}))

	assert.JSONEq(t, `{"user":"ada"}`, string(waitFor(t, events)))
}

func TestEcho_StatusReflectsSubscriptions(t *testing.T) {
	SkipIfMissingBroker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c := NewEchoClient(t)
	base := GenerateChannel("room")

	_, cb := newCollector(1)
	require.NoError(t, c.Listen(ctx, base, "Message", cb))
	require.NoError(t, c.Listen(ctx, "presence-"+base, "Message", cb))
	assert.Equal(t, 2, c.Status().SubscriptionCount)

	c.Leave(base)
	assert.Equal(t, 0, c.Status().SubscriptionCount)
	assert.True(t, c.Status().Connected)
}

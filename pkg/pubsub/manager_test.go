package pubsub

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwangaben/nats-laravel-echo/pkg/metrics"
	"github.com/mwangaben/nats-laravel-echo/pkg/natstest"
)

func createTestManager(t *testing.T, opts Options) (*Manager, *natstest.Server, *nats.Conn) {
	t.Helper()
	srv := natstest.Start(t)
	nc, err := nats.Connect(srv.URL(), nats.NoReconnect())
	require.NoError(t, err)

	mgr := NewManager(opts)
	mgr.Attach(nc)
	t.Cleanup(func() {
		mgr.Reset()
		nc.Close()
	})
	return mgr, srv, nc
}

// recorder collects callback payloads
type recorder struct {
	mu    sync.Mutex
	calls []json.RawMessage
}

func (r *recorder) cb(data json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append(json.RawMessage(nil), data...))
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recorder) last() json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

func TestManager_Namespacing(t *testing.T) {
	mgr, srv, _ := createTestManager(t, Options{Namespace: "tenant1"})

	var rec recorder
	require.NoError(t, mgr.Register("orders", "OrderShipped", rec.cb))
	require.True(t, mgr.IsOpen("orders"))

	srv.Publish("orders", []byte(`{"event":"OrderShipped","data":{"id":1}}`))
	srv.Publish("tenant1.orders", []byte(`{"event":"OrderShipped","data":{"id":2}}`))

	natstest.Eventually(t, 2*time.Second, func() bool { return rec.count() == 1 }, "namespaced delivery")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
	assert.JSONEq(t, `{"id":2}`, string(rec.last()))
}

func TestManager_ExactBinding(t *testing.T) {
	mgr, srv, _ := createTestManager(t, Options{})

	var rec recorder
	require.NoError(t, mgr.Register("orders", "OrderShipped", rec.cb))

	srv.Publish("orders", []byte(`{"event":"OrderShipped","data":{"id":123}}`))

	natstest.Eventually(t, 2*time.Second, func() bool { return rec.count() == 1 }, "exact binding")
	assert.JSONEq(t, `{"id":123}`, string(rec.last()))
}

func TestManager_WildcardOnly(t *testing.T) {
	mgr, srv, _ := createTestManager(t, Options{})

	var rec recorder
	require.NoError(t, mgr.Register("orders", Wildcard, rec.cb))

	srv.Publish("orders", []byte(`{"event":"OrderShipped","data":{"id":123}}`))

	natstest.Eventually(t, 2*time.Second, func() bool { return rec.count() == 1 }, "wildcard binding")
	assert.JSONEq(t, `{"event":"OrderShipped","data":{"id":123}}`, string(rec.last()))
}

func TestManager_DoubleRegisterSingleSubscription(t *testing.T) {
	mgr, srv, _ := createTestManager(t, Options{})
	baseline := srv.NumSubscriptions()

	var first, second recorder
	require.NoError(t, mgr.Register("orders", "OrderShipped", first.cb))
	require.NoError(t, mgr.Register("orders", "OrderShipped", second.cb))
	require.NoError(t, mgr.Register("orders", "OrderPlaced", second.cb))
	require.NoError(t, mgr.Open("orders"))

	assert.Equal(t, 1, mgr.OpenCount())
	assert.Equal(t, baseline+1, srv.NumSubscriptions())

	srv.Publish("orders", []byte(`{"event":"OrderShipped"}`))
	natstest.Eventually(t, 2*time.Second, func() bool { return second.count() == 1 }, "replacement binding")
	assert.Equal(t, 0, first.count(), "replaced callback must not fire")
	assert.JSONEq(t, `{}`, string(second.last()), "missing data defaults to {}")
}

func TestManager_RemoveLastBindingClosesSubscription(t *testing.T) {
	mgr, srv, _ := createTestManager(t, Options{})
	baseline := srv.NumSubscriptions()

	noop := func(json.RawMessage) {}
	require.NoError(t, mgr.Register("orders", "A", noop))
	require.NoError(t, mgr.Register("orders", "B", noop))

	mgr.Remove("orders", "A")
	assert.True(t, mgr.IsOpen("orders"))

	mgr.Remove("orders", "B")
	assert.False(t, mgr.IsOpen("orders"))
	assert.Equal(t, 0, mgr.OpenCount())
	natstest.Eventually(t, 2*time.Second, func() bool { return srv.NumSubscriptions() == baseline }, "server unsubscribed")

	mgr.Remove("unknown", "A")
}

func TestManager_LeaveDropsAllForms(t *testing.T) {
	mgr, _, _ := createTestManager(t, Options{})

	noop := func(json.RawMessage) {}
	require.NoError(t, mgr.Register("chat", "A", noop))
	require.NoError(t, mgr.Register("private-chat", "A", noop))
	require.NoError(t, mgr.MarkReady("private-chat"))
	require.NoError(t, mgr.Register("presence-chat", "B", noop))
	require.NoError(t, mgr.MarkReady("presence-chat"))
	require.NoError(t, mgr.Register("other", "A", noop))
	require.Equal(t, 4, mgr.OpenCount())

	left := mgr.Leave("chat")
	assert.ElementsMatch(t, []string{"chat", "private-chat", "presence-chat"}, left)
	assert.Equal(t, []string{"other"}, mgr.Channels())
	assert.Equal(t, []string{"other"}, mgr.OpenChannels())

	assert.Empty(t, mgr.Leave("nothing"))
}

func TestManager_PrivateChannelWaitsForReady(t *testing.T) {
	mgr, _, _ := createTestManager(t, Options{})

	require.NoError(t, mgr.Register("private-orders", "A", func(json.RawMessage) {}))
	assert.False(t, mgr.IsOpen("private-orders"))
	require.Len(t, mgr.Pending(), 1)
	assert.Equal(t, "private-orders", mgr.Pending()[0].Channel)

	require.NoError(t, mgr.MarkReady("private-orders"))
	assert.True(t, mgr.IsOpen("private-orders"))
	assert.Empty(t, mgr.Pending())
}

func TestManager_PendingWhileDisconnected(t *testing.T) {
	mgr := NewManager(Options{})

	require.NoError(t, mgr.Register("orders", "A", func(json.RawMessage) {}))
	require.NoError(t, mgr.Register("orders", "B", func(json.RawMessage) {}))
	assert.Equal(t, 0, mgr.OpenCount())
	assert.Len(t, mgr.Pending(), 2)

	mgr.Remove("orders", "B")
	assert.Len(t, mgr.Pending(), 1)

	srv := natstest.Start(t)
	nc, err := nats.Connect(srv.URL())
	require.NoError(t, err)
	defer nc.Close()

	assert.Equal(t, 1, mgr.Attach(nc))
	assert.Equal(t, 1, mgr.OpenCount())
	assert.Empty(t, mgr.Pending())

	assert.Equal(t, 0, mgr.OnReconnected(), "replay is idempotent")
	mgr.Reset()
}

func TestManager_InvalidateAndReplay(t *testing.T) {
	mgr, srv, nc := createTestManager(t, Options{})

	var rec recorder
	require.NoError(t, mgr.Register("orders", "A", rec.cb))
	require.NoError(t, mgr.Register("invoices", "A", rec.cb))
	require.NoError(t, mgr.Register("gone", "A", rec.cb))
	mgr.Remove("gone", "A")

	mgr.Invalidate()
	assert.Equal(t, 0, mgr.OpenCount())
	assert.Equal(t, []string{"invoices", "orders"}, mgr.Channels())
	nc.Close()

	nc2, err := nats.Connect(srv.URL())
	require.NoError(t, err)
	defer nc2.Close()

	before := testutil.ToFloat64(metrics.Replays)
	assert.Equal(t, 2, mgr.Attach(nc2))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Replays)-before)
	assert.Equal(t, []string{"invoices", "orders"}, mgr.OpenChannels())

	srv.Publish("orders", []byte(`{"event":"A","data":{"ok":true}}`))
	natstest.Eventually(t, 2*time.Second, func() bool { return rec.count() == 1 }, "delivery after replay")
}

func TestManager_MalformedPayloadDoesNotStopConsumer(t *testing.T) {
	mgr, srv, _ := createTestManager(t, Options{})

	var rec recorder
	require.NoError(t, mgr.Register("orders", "A", rec.cb))

	before := testutil.ToFloat64(metrics.MessagesRouted.WithLabelValues(metrics.ResultMalformed))
	srv.Publish("orders", []byte(`not json`))
	srv.Publish("orders", []byte(`{"data":{}}`))
	srv.Publish("orders", []byte(`{"event":"A","data":{"n":1}}`))

	natstest.Eventually(t, 2*time.Second, func() bool { return rec.count() == 1 }, "valid message after malformed")
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.MessagesRouted.WithLabelValues(metrics.ResultMalformed))-before)
}

func TestManager_PanickingCallbackIsContained(t *testing.T) {
	mgr, srv, _ := createTestManager(t, Options{})

	var wild recorder
	require.NoError(t, mgr.Register("orders", "A", func(json.RawMessage) { panic("boom") }))
	require.NoError(t, mgr.Register("orders", Wildcard, wild.cb))

	srv.Publish("orders", []byte(`{"event":"A"}`))
	srv.Publish("orders", []byte(`{"event":"A"}`))

	natstest.Eventually(t, 2*time.Second, func() bool { return wild.count() == 2 }, "wildcard after panic")
}

func TestManager_Publish(t *testing.T) {
	mgr, srv, _ := createTestManager(t, Options{Namespace: "ns"})

	watcher := srv.Connect()
	sub, err := watcher.SubscribeSync("ns.private-chat.client-typing")
	require.NoError(t, err)
	require.NoError(t, watcher.Flush())

	require.NoError(t, mgr.Publish("private-chat.client-typing", []byte(`{}`)))
	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(msg.Data))

	detached := NewManager(Options{})
	assert.Error(t, detached.Publish("x", nil))
}

func TestManager_ConcurrentRegister(t *testing.T) {
	mgr, srv, _ := createTestManager(t, Options{})
	baseline := srv.NumSubscriptions()

	var hits atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = mgr.Register("orders", "A", func(json.RawMessage) { hits.Add(1) })
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, mgr.OpenCount())
	assert.Equal(t, baseline+1, srv.NumSubscriptions())

	srv.Publish("orders", []byte(`{"event":"A"}`))
	natstest.Eventually(t, 2*time.Second, func() bool { return hits.Load() == 1 }, "single delivery")
}

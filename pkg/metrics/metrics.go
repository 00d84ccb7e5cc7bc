package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Route results for MessagesRouted.
const (
	ResultDelivered = "delivered"
	ResultUnmatched = "unmatched"
	ResultMalformed = "malformed"
	ResultFiltered  = "filtered"
)

// Request results for Whispers and AuthRequests.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	once sync.Once

	ConnectAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nats_echo",
		Subsystem: "conn",
		Name:      "attempts_total",
		Help:      "Total broker connection attempts",
	})
	ConnectFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nats_echo",
		Subsystem: "conn",
		Name:      "failures_total",
		Help:      "Total failed broker connection attempts",
	})
	Reconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nats_echo",
		Subsystem: "conn",
		Name:      "reconnects_total",
		Help:      "Total successful connections that followed a connection loss",
	})
	ReconnectsExhausted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nats_echo",
		Subsystem: "conn",
		Name:      "exhausted_total",
		Help:      "Total times reconnection stopped after the attempt limit",
	})
	ConnectionsUp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "nats_echo",
		Subsystem: "conn",
		Name:      "up",
		Help:      "Number of clients currently connected",
	})

	OpenSubscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "nats_echo",
		Subsystem: "ledger",
		Name:      "open_subscriptions",
		Help:      "Number of open broker subscriptions",
	})
	Replays = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nats_echo",
		Subsystem: "ledger",
		Name:      "replayed_channels_total",
		Help:      "Total channel subscriptions re-established after a reconnect",
	})

	MessagesRouted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nats_echo",
		Subsystem: "router",
		Name:      "messages_total",
		Help:      "Inbound messages by routing result",
	}, []string{"result"})
	CallbackPanics = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nats_echo",
		Subsystem: "router",
		Name:      "callback_panics_total",
		Help:      "Total callbacks that panicked during dispatch",
	})

	Whispers = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nats_echo",
		Subsystem: "channel",
		Name:      "whispers_total",
		Help:      "Client whispers by result",
	}, []string{"result"})

	AuthRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nats_echo",
		Subsystem: "auth",
		Name:      "requests_total",
		Help:      "Channel authorization requests by result",
	}, []string{"result"})
)

// Register registers metrics into the default Prometheus registry (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(ConnectAttempts)
		prometheus.MustRegister(ConnectFailures)
		prometheus.MustRegister(Reconnects)
		prometheus.MustRegister(ReconnectsExhausted)
		prometheus.MustRegister(ConnectionsUp)
		prometheus.MustRegister(OpenSubscriptions)
		prometheus.MustRegister(Replays)
		prometheus.MustRegister(MessagesRouted)
		prometheus.MustRegister(CallbackPanics)
		prometheus.MustRegister(Whispers)
		prometheus.MustRegister(AuthRequests)
	})
}

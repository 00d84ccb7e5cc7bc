package pubsub

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/mwangaben/nats-laravel-echo/pkg/logging"
	"github.com/mwangaben/nats-laravel-echo/pkg/metrics"
)

type dispatchTarget struct {
	kind string
	cb   Callback
	data json.RawMessage
}

// Dispatch routes one inbound message for channel to its callbacks.
//
// Presence roster callbacks fire first for roster events. Then the exact event
// binding fires, or failing that the binding for the normalized event name.
// The wildcard binding always fires in addition, with {"event", "data"}.
// Malformed payloads are logged and dropped.
func (m *Manager) Dispatch(channel string, raw []byte) {
	env, err := DecodeEnvelope(channel, raw)
	if err != nil {
		metrics.MessagesRouted.WithLabelValues(metrics.ResultMalformed).Inc()
		m.logger.ComponentWarn(logging.ComponentRouter, "Dropping malformed message",
			zap.String("channel", channel),
			zap.Error(err),
		)
		return
	}

	if m.strict {
		if name, ok := env.ChannelName(); !ok || name != channel {
			metrics.MessagesRouted.WithLabelValues(metrics.ResultFiltered).Inc()
			m.logger.ComponentDebug(logging.ComponentRouter, "Dropping message for another channel",
				zap.String("channel", channel),
				zap.String("envelope_channel", name),
			)
			return
		}
	}

	targets := m.resolve(channel, env)
	if len(targets) == 0 {
		metrics.MessagesRouted.WithLabelValues(metrics.ResultUnmatched).Inc()
		m.logger.ComponentDebug(logging.ComponentRouter, "No binding for event",
			zap.String("channel", channel),
			zap.String("event", env.Event),
		)
		return
	}

	metrics.MessagesRouted.WithLabelValues(metrics.ResultDelivered).Inc()
	for _, t := range targets {
		m.invoke(channel, env.Event, t)
	}
}

// resolve snapshots the callbacks for an envelope so they run without the lock held
func (m *Manager) resolve(channel string, env *Envelope) []dispatchTarget {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cs, ok := m.channels[channel]
	if !ok {
		return nil
	}

	var targets []dispatchTarget
	if cs.kind == KindPresence && IsRosterEvent(env.Event) {
		if cb, ok := cs.roster[env.Event]; ok {
			targets = append(targets, dispatchTarget{kind: "roster", cb: cb, data: env.Data})
		}
	}

	if env.Event != Wildcard {
		if cb, ok := cs.bindings[env.Event]; ok {
			targets = append(targets, dispatchTarget{kind: "exact", cb: cb, data: env.Data})
		} else if short := NormalizeEvent(env.Event); short != env.Event {
			if cb, ok := cs.bindings[short]; ok {
				targets = append(targets, dispatchTarget{kind: "normalized", cb: cb, data: env.Data})
			}
		}
	}

	if cb, ok := cs.bindings[Wildcard]; ok {
		payload, err := json.Marshal(WildcardEvent{Event: env.Event, Data: env.Data})
		if err == nil {
			targets = append(targets, dispatchTarget{kind: "wildcard", cb: cb, data: payload})
		}
	}
	return targets
}

// invoke runs one callback, containing any panic to that callback
func (m *Manager) invoke(channel, event string, t dispatchTarget) {
	defer func() {
		if r := recover(); r != nil {
			metrics.CallbackPanics.Inc()
			m.logger.ComponentError(logging.ComponentRouter, "Callback panicked",
				zap.String("channel", channel),
				zap.String("event", event),
				zap.String("binding", t.kind),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	t.cb(t.data)
}

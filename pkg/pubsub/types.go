package pubsub

import (
	"encoding/json"
	"strings"
	"time"
)

// Callback receives the decoded "data" member of an envelope. Wildcard
// bindings receive {"event": ..., "data": ...} instead.
type Callback func(data json.RawMessage)

// Kind tags a channel as public, private or presence.
type Kind int

const (
	KindPublic Kind = iota
	KindPrivate
	KindPresence
)

// Channel name prefixes.
const (
	PrivatePrefix  = "private-"
	PresencePrefix = "presence-"
)

// Reserved event identifiers.
const (
	Wildcard      = "*"
	EventHere     = "presence:here"
	EventJoining  = "presence:joining"
	EventLeaving  = "presence:leaving"
	WhisperPrefix = "client-"
)

func (k Kind) String() string {
	switch k {
	case KindPrivate:
		return "private"
	case KindPresence:
		return "presence"
	default:
		return "public"
	}
}

// RequiresAuth reports whether channels of this kind go through the auth gateway.
func (k Kind) RequiresAuth() bool {
	return k == KindPrivate || k == KindPresence
}

// KindOf derives the kind from a full channel name.
func KindOf(channel string) Kind {
	switch {
	case strings.HasPrefix(channel, PresencePrefix):
		return KindPresence
	case strings.HasPrefix(channel, PrivatePrefix):
		return KindPrivate
	default:
		return KindPublic
	}
}

// FullName applies the kind prefix to a logical name. Names that already
// carry the prefix are returned unchanged.
func FullName(kind Kind, name string) string {
	var prefix string
	switch kind {
	case KindPrivate:
		prefix = PrivatePrefix
	case KindPresence:
		prefix = PresencePrefix
	default:
		return name
	}
	if strings.HasPrefix(name, prefix) {
		return name
	}
	return prefix + name
}

// IsRosterEvent reports whether event is one of the presence roster events.
func IsRosterEvent(event string) bool {
	return event == EventHere || event == EventJoining || event == EventLeaving
}

// PendingSubscription is a binding registered while its channel could not be opened.
type PendingSubscription struct {
	Channel      string
	Event        string
	RegisteredAt time.Time
}

package client

import (
	"strings"

	"github.com/google/uuid"
)

const socketIDPrefix = "nats_"

// newSocketID returns an identifier unique to this client instance. It is
// sent with authorization requests and stamped on outgoing whispers.
func newSocketID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return socketIDPrefix + id[:13]
}

// defaultConnectionName names the broker connection after the socket id.
func defaultConnectionName(socketID string) string {
	suffix := strings.TrimPrefix(socketID, socketIDPrefix)
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return "laravel-echo-" + suffix
}

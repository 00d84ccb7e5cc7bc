package pubsub

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/mwangaben/nats-laravel-echo/pkg/errors"
)

var emptyObject = json.RawMessage(`{}`)

// Envelope is the JSON body carried by every broker message.
type Envelope struct {
	Event    string          `json:"event"`
	Data     json.RawMessage `json:"data,omitempty"`
	Channel  json.RawMessage `json:"channel,omitempty"`
	SocketID string          `json:"socket_id,omitempty"`
}

// WildcardEvent is what wildcard bindings receive.
type WildcardEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a broker message. The event member is required and
// a missing or null data member becomes {}.
func DecodeEnvelope(channel string, raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.NewPayloadError(channel, "", err)
	}
	if env.Event == "" {
		return nil, errors.NewPayloadError(channel, "envelope has no event", nil)
	}
	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		env.Data = emptyObject
	}
	return &env, nil
}

// ChannelName extracts the channel named by the envelope. It accepts a plain
// string or an object with a "name" member.
func (e *Envelope) ChannelName() (string, bool) {
	if len(e.Channel) == 0 {
		return "", false
	}
	var name string
	if err := json.Unmarshal(e.Channel, &name); err == nil {
		return name, true
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(e.Channel, &obj); err == nil && obj.Name != "" {
		return obj.Name, true
	}
	return "", false
}

// NormalizeEvent collapses a namespaced event identifier to its last
// backslash-separated segment.
func NormalizeEvent(event string) string {
	if i := strings.LastIndex(event, `\`); i >= 0 {
		return event[i+1:]
	}
	return event
}

// bindingKey is the key a callback is stored under. A single leading dot marks
// an already fully-qualified name and is dropped.
func bindingKey(event string) string {
	return strings.TrimPrefix(event, ".")
}

// EncodeWhisper builds the payload published for a client whisper.
func EncodeWhisper(channel, event, socketID string, data interface{}) ([]byte, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, errors.NewPayloadError(channel, "whisper data is not serializable", err)
	}
	if data == nil {
		body = emptyObject
	}
	name, _ := json.Marshal(channel)
	return json.Marshal(Envelope{
		Event:    WhisperPrefix + event,
		Data:     body,
		Channel:  name,
		SocketID: socketID,
	})
}

// WhisperSubject is the subject a whisper for event on channel is published to.
func WhisperSubject(channel, event string) string {
	return channel + "." + WhisperPrefix + event
}

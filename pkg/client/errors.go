package client

import (
	"fmt"
)

// ClientError represents a client-specific error with the operation and channel it concerns
type ClientError struct {
	Op      string // Operation that failed
	Channel string // Channel name, if any
	Err     error  // Underlying error
}

func (e *ClientError) Error() string {
	if e.Channel != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Channel, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// NewClientError creates a new ClientError
func NewClientError(op, channel string, err error) *ClientError {
	return &ClientError{
		Op:      op,
		Channel: channel,
		Err:     err,
	}
}

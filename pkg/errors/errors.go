package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Common sentinel errors for quick checks
var (
	// ErrNotConnected is returned when an operation needs a live broker connection and there is none.
	ErrNotConnected = errors.New("not connected")

	// ErrClientClosed is returned after the owner has disconnected the client.
	ErrClientClosed = errors.New("client closed")

	// ErrWhisperUnsupported is returned when whispering on a public channel.
	ErrWhisperUnsupported = errors.New("whisper requires a private or presence channel")

	// ErrUnauthorized is returned when channel authorization is refused.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidInput is returned when caller input is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("operation timeout")
)

// Error is the base interface for all custom errors in the client.
type Error interface {
	error
	// Code returns the error code
	Code() string
	// Message returns the human-readable error message
	Message() string
	// Unwrap returns the underlying cause
	Unwrap() error
}

// BaseError provides a foundation for all typed errors.
type BaseError struct {
	code    string
	message string
	cause   error
	stack   []uintptr
}

// Error implements the error interface.
func (e *BaseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the error code.
func (e *BaseError) Code() string {
	return e.code
}

// Message returns the error message.
func (e *BaseError) Message() string {
	return e.message
}

// Unwrap returns the underlying cause.
func (e *BaseError) Unwrap() error {
	return e.cause
}

// Stack returns the captured stack trace.
func (e *BaseError) Stack() []uintptr {
	return e.stack
}

func captureStack(skip int) []uintptr {
	const maxDepth = 32
	stack := make([]uintptr, maxDepth)
	n := runtime.Callers(skip+2, stack)
	return stack[:n]
}

// StackTrace returns a formatted stack trace string.
func (e *BaseError) StackTrace() string {
	if len(e.stack) == 0 {
		return ""
	}

	var buf strings.Builder
	frames := runtime.CallersFrames(e.stack)
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			fmt.Fprintf(&buf, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	return buf.String()
}

// ValidationError represents an input validation error.
type ValidationError struct {
	*BaseError
	Field string
	Value interface{}
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		BaseError: &BaseError{
			code:    CodeValidation,
			message: message,
			stack:   captureStack(1),
		},
		Field: field,
		Value: value,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.message)
	}
	return fmt.Sprintf("validation error: %s", e.message)
}

// ConnectionError reports a failure to reach the broker. When Attempts is
// non-zero the error is terminal: the retry budget has been spent.
type ConnectionError struct {
	*BaseError
	Servers  []string
	Attempts int
}

// NewConnectionError creates a connection error for a single failed attempt.
func NewConnectionError(servers []string, cause error) *ConnectionError {
	return &ConnectionError{
		BaseError: &BaseError{
			code:    CodeConnection,
			message: "failed to connect to broker",
			cause:   cause,
			stack:   captureStack(1),
		},
		Servers: servers,
	}
}

// NewReconnectExhaustedError creates the terminal error raised once the retry budget is spent.
func NewReconnectExhaustedError(servers []string, attempts int, cause error) *ConnectionError {
	return &ConnectionError{
		BaseError: &BaseError{
			code:    CodeUnavailable,
			message: fmt.Sprintf("giving up after %d connection attempts", attempts),
			cause:   cause,
			stack:   captureStack(1),
		},
		Servers:  servers,
		Attempts: attempts,
	}
}

// Terminal reports whether reconnection has stopped.
func (e *ConnectionError) Terminal() bool {
	return e.Attempts > 0
}

// AuthorizationError represents a refused or failed channel authorization.
type AuthorizationError struct {
	*BaseError
	Channel    string
	StatusCode int
}

// NewAuthorizationError creates an authorization error for a channel.
func NewAuthorizationError(channel string, statusCode int, cause error) *AuthorizationError {
	message := fmt.Sprintf("authorization failed for channel %s", channel)
	if statusCode != 0 {
		message = fmt.Sprintf("authorization failed for channel %s (status %d)", channel, statusCode)
	}
	return &AuthorizationError{
		BaseError: &BaseError{
			code:    CodeAuthError,
			message: message,
			cause:   cause,
			stack:   captureStack(1),
		},
		Channel:    channel,
		StatusCode: statusCode,
	}
}

// ChannelError represents an operation that failed on a specific channel.
type ChannelError struct {
	*BaseError
	Channel string
	Op      string
}

// NewChannelError creates a new channel error.
func NewChannelError(channel, op string, cause error) *ChannelError {
	return &ChannelError{
		BaseError: &BaseError{
			code:    CodeChannel,
			message: fmt.Sprintf("%s %s", op, channel),
			cause:   cause,
			stack:   captureStack(1),
		},
		Channel: channel,
		Op:      op,
	}
}

// PayloadError represents an inbound message that could not be decoded.
type PayloadError struct {
	*BaseError
	Channel string
}

// NewPayloadError creates a new payload error.
func NewPayloadError(channel, message string, cause error) *PayloadError {
	if message == "" {
		message = "malformed payload"
	}
	return &PayloadError{
		BaseError: &BaseError{
			code:    CodeSerializationError,
			message: message,
			cause:   cause,
			stack:   captureStack(1),
		},
		Channel: channel,
	}
}

// Error implements the error interface.
func (e *PayloadError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s on %s: %v", e.message, e.Channel, e.cause)
	}
	return fmt.Sprintf("%s on %s", e.message, e.Channel)
}

// Wrap wraps an error with additional context.
// Typed errors keep their code; anything else becomes CodeInternal.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	code := CodeInternal
	if e, ok := err.(Error); ok {
		code = e.Code()
	}
	return &BaseError{
		code:    code,
		message: message,
		cause:   err,
		stack:   captureStack(1),
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// New creates a new error with a message.
func New(message string) error {
	return &BaseError{
		code:    CodeInternal,
		message: message,
		stack:   captureStack(1),
	}
}

// Newf creates a new error with a formatted message.
func Newf(format string, args ...interface{}) error {
	return New(fmt.Sprintf(format, args...))
}

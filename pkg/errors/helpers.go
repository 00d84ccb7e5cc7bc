package errors

import "errors"

// Is, As, Unwrap and Join re-export the standard helpers so callers only import this package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// IsNotConnected checks if an error indicates there was no live connection.
func IsNotConnected(err error) bool {
	return err != nil && errors.Is(err, ErrNotConnected)
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	if err == nil {
		return false
	}

	var validationErr *ValidationError
	return errors.As(err, &validationErr) || errors.Is(err, ErrInvalidInput)
}

// IsConnection checks if an error came from the broker connection.
func IsConnection(err error) bool {
	if err == nil {
		return false
	}

	var connErr *ConnectionError
	return errors.As(err, &connErr) || errors.Is(err, ErrNotConnected)
}

// IsReconnectExhausted checks if reconnection has permanently stopped.
func IsReconnectExhausted(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr) && connErr.Terminal()
}

// IsAuthorization checks if an error indicates a refused channel authorization.
func IsAuthorization(err error) bool {
	if err == nil {
		return false
	}

	var authErr *AuthorizationError
	return errors.As(err, &authErr) || errors.Is(err, ErrUnauthorized)
}

// IsChannel checks if an error is a channel operation error.
func IsChannel(err error) bool {
	if err == nil {
		return false
	}

	var channelErr *ChannelError
	return errors.As(err, &channelErr) || errors.Is(err, ErrWhisperUnsupported)
}

// IsPayload checks if an error reports a malformed envelope.
func IsPayload(err error) bool {
	var payloadErr *PayloadError
	return err != nil && errors.As(err, &payloadErr)
}

// IsTimeout checks if an error indicates a timeout.
func IsTimeout(err error) bool {
	return err != nil && errors.Is(err, ErrTimeout)
}

// ShouldRetry checks if an operation should be retried based on the error.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if IsReconnectExhausted(err) {
		return false
	}
	if IsTimeout(err) || IsNotConnected(err) {
		return true
	}

	var customErr Error
	if errors.As(err, &customErr) {
		return IsRetryable(customErr.Code())
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	if err == nil {
		return CodeOK
	}

	var customErr Error
	if errors.As(err, &customErr) {
		return customErr.Code()
	}

	switch {
	case IsNotConnected(err):
		return CodeNotConnected
	case IsAuthorization(err):
		return CodeAuthError
	case IsChannel(err):
		return CodeChannel
	case IsValidation(err):
		return CodeValidation
	case IsTimeout(err):
		return CodeTimeout
	default:
		return CodeInternal
	}
}

// GetErrorMessage extracts a human-readable message from an error.
func GetErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var customErr Error
	if errors.As(err, &customErr) {
		return customErr.Message()
	}
	return err.Error()
}

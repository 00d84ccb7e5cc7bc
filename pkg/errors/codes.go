package errors

// Error codes for categorizing errors.
const (
	// CodeOK indicates success (not an error).
	CodeOK = "OK"

	// CodeCancelled indicates the operation was cancelled.
	CodeCancelled = "CANCELLED"

	// CodeInternal indicates internal errors.
	CodeInternal = "INTERNAL"

	// CodeUnavailable indicates the broker is unavailable and retries have stopped.
	CodeUnavailable = "UNAVAILABLE"

	// CodeValidation indicates input validation failed.
	CodeValidation = "VALIDATION_ERROR"

	// CodeTimeout indicates an operation timed out.
	CodeTimeout = "TIMEOUT"

	// CodeConnection indicates a single connection attempt failed.
	CodeConnection = "CONNECTION_ERROR"

	// CodeNotConnected indicates an operation needed a live connection.
	CodeNotConnected = "NOT_CONNECTED"

	// CodeAuthError indicates channel authorization failed.
	CodeAuthError = "AUTH_ERROR"

	// CodeChannel indicates a channel-level operation failed.
	CodeChannel = "CHANNEL_ERROR"

	// CodeSerializationError indicates an envelope could not be decoded or encoded.
	CodeSerializationError = "SERIALIZATION_ERROR"

	// CodeConfigError indicates a configuration error.
	CodeConfigError = "CONFIG_ERROR"
)

// ErrorCategory represents a high-level error category.
type ErrorCategory string

const (
	CategoryClient     ErrorCategory = "CLIENT_ERROR"
	CategoryServer     ErrorCategory = "SERVER_ERROR"
	CategoryNetwork    ErrorCategory = "NETWORK_ERROR"
	CategoryTimeout    ErrorCategory = "TIMEOUT_ERROR"
	CategoryValidation ErrorCategory = "VALIDATION_ERROR"
	CategoryAuth       ErrorCategory = "AUTH_ERROR"
)

// GetCategory returns the category for an error code.
func GetCategory(code string) ErrorCategory {
	switch code {
	case CodeValidation, CodeConfigError:
		return CategoryValidation

	case CodeChannel, CodeSerializationError:
		return CategoryClient

	case CodeAuthError:
		return CategoryAuth

	case CodeTimeout:
		return CategoryTimeout

	case CodeConnection, CodeNotConnected, CodeUnavailable:
		return CategoryNetwork

	default:
		return CategoryServer
	}
}

// IsRetryable returns true if an error with the given code is worth retrying.
// CodeUnavailable is terminal: the retry budget is already spent.
func IsRetryable(code string) bool {
	switch code {
	case CodeTimeout, CodeConnection, CodeNotConnected:
		return true
	default:
		return false
	}
}

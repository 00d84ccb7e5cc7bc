package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// HTTPError represents an HTTP error response.
type HTTPError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return e.Message
}

// StatusCode returns the HTTP status code for an error.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var customErr Error
	if errors.As(err, &customErr) {
		return codeToHTTPStatus(customErr.Code())
	}

	switch {
	case errors.Is(err, ErrNotConnected):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrClientClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrWhisperUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	}

	return http.StatusInternalServerError
}

func codeToHTTPStatus(code string) int {
	switch code {
	case CodeOK:
		return http.StatusOK
	case CodeCancelled:
		return 499 // Client Closed Request
	case CodeValidation, CodeChannel, CodeSerializationError, CodeConfigError:
		return http.StatusBadRequest
	case CodeAuthError:
		return http.StatusForbidden
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeConnection, CodeNotConnected, CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FromHTTPStatus converts a non-2xx authorization response into an AuthorizationError.
// It returns nil for 2xx statuses.
func FromHTTPStatus(channel string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	var cause error = ErrUnauthorized
	var httpErr HTTPError
	if len(body) > 0 && json.Unmarshal(body, &httpErr) == nil && httpErr.Message != "" {
		cause = fmt.Errorf("%w: %s", ErrUnauthorized, httpErr.Message)
	}
	if status >= 500 {
		cause = fmt.Errorf("auth endpoint returned %s", http.StatusText(status))
	}
	return NewAuthorizationError(channel, status, cause)
}

// ToHTTPError converts an error into the JSON body served by status endpoints.
func ToHTTPError(err error) *HTTPError {
	return &HTTPError{
		Status:  StatusCode(err),
		Code:    GetErrorCode(err),
		Message: GetErrorMessage(err),
	}
}

// WriteHTTPError writes err as a JSON HTTP response.
func WriteHTTPError(w http.ResponseWriter, err error) {
	httpErr := ToHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpErr.Status)
	_ = json.NewEncoder(w).Encode(httpErr)
}

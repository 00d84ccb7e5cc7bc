package errors

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestValidationError(t *testing.T) {
	tests := []struct {
		name          string
		field         string
		message       string
		expectedError string
	}{
		{
			name:          "with field",
			field:         "nats.port",
			message:       "must be between 1 and 65535",
			expectedError: "validation error: nats.port: must be between 1 and 65535",
		},
		{
			name:          "without field",
			message:       "invalid input",
			expectedError: "validation error: invalid input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError(tt.field, tt.message, nil)
			if err.Error() != tt.expectedError {
				t.Errorf("Expected error %q, got %q", tt.expectedError, err.Error())
			}
			if err.Code() != CodeValidation {
				t.Errorf("Expected code %q, got %q", CodeValidation, err.Code())
			}
		})
	}
}

func TestConnectionError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	servers := []string{"nats://localhost:4222"}

	single := NewConnectionError(servers, cause)
	if single.Terminal() {
		t.Error("single attempt failure should not be terminal")
	}
	if single.Code() != CodeConnection {
		t.Errorf("Expected code %q, got %q", CodeConnection, single.Code())
	}
	if !errors.Is(single, cause) {
		t.Error("connection error should unwrap to its cause")
	}

	exhausted := NewReconnectExhaustedError(servers, 10, cause)
	if !exhausted.Terminal() {
		t.Error("exhausted error should be terminal")
	}
	if !strings.Contains(exhausted.Error(), "10 connection attempts") {
		t.Errorf("unexpected message %q", exhausted.Error())
	}
	if !IsReconnectExhausted(fmt.Errorf("wrapped: %w", exhausted)) {
		t.Error("IsReconnectExhausted should see through wrapping")
	}
	if ShouldRetry(exhausted) {
		t.Error("terminal error must not be retried")
	}
	if !ShouldRetry(single) {
		t.Error("single attempt failure should be retryable")
	}
}

func TestAuthorizationError(t *testing.T) {
	err := NewAuthorizationError("private-orders", http.StatusForbidden, ErrUnauthorized)
	if !IsAuthorization(err) {
		t.Error("expected IsAuthorization")
	}
	if err.Channel != "private-orders" {
		t.Errorf("Expected channel private-orders, got %q", err.Channel)
	}
	if !strings.Contains(err.Error(), "status 403") {
		t.Errorf("expected status in message, got %q", err.Error())
	}
	if StatusCode(err) != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", StatusCode(err))
	}
}

func TestPayloadError(t *testing.T) {
	err := NewPayloadError("orders", "", errors.New("unexpected end of JSON input"))
	want := "malformed payload on orders: unexpected end of JSON input"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
	if !IsPayload(err) {
		t.Error("expected IsPayload")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "noop") != nil {
		t.Error("wrapping nil should return nil")
	}

	typed := NewChannelError("orders", "whisper", ErrWhisperUnsupported)
	wrapped := Wrap(typed, "sending typing indicator")
	if GetErrorCode(wrapped) != CodeChannel {
		t.Errorf("Expected code %q, got %q", CodeChannel, GetErrorCode(wrapped))
	}
	if !IsChannel(wrapped) {
		t.Error("wrapped channel error should still be a channel error")
	}

	plain := Wrapf(errors.New("boom"), "step %d", 2)
	if GetErrorCode(plain) != CodeInternal {
		t.Errorf("Expected code %q, got %q", CodeInternal, GetErrorCode(plain))
	}
	if plain.Error() != "step 2: boom" {
		t.Errorf("unexpected message %q", plain.Error())
	}
}

func TestGetErrorCodeSentinels(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{nil, CodeOK},
		{ErrNotConnected, CodeNotConnected},
		{fmt.Errorf("publish: %w", ErrNotConnected), CodeNotConnected},
		{ErrUnauthorized, CodeAuthError},
		{ErrWhisperUnsupported, CodeChannel},
		{ErrInvalidInput, CodeValidation},
		{ErrTimeout, CodeTimeout},
		{errors.New("other"), CodeInternal},
	}

	for _, tt := range tests {
		if got := GetErrorCode(tt.err); got != tt.code {
			t.Errorf("GetErrorCode(%v) = %q, want %q", tt.err, got, tt.code)
		}
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"not connected", ErrNotConnected, http.StatusServiceUnavailable},
		{"exhausted", NewReconnectExhaustedError(nil, 3, nil), http.StatusServiceUnavailable},
		{"validation", NewValidationError("x", "bad", nil), http.StatusBadRequest},
		{"whisper", ErrWhisperUnsupported, http.StatusBadRequest},
		{"unknown", errors.New("x"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusCode(tt.err); got != tt.want {
				t.Errorf("StatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFromHTTPStatus(t *testing.T) {
	if err := FromHTTPStatus("private-a", http.StatusOK, nil); err != nil {
		t.Fatalf("2xx should not fail, got %v", err)
	}

	err := FromHTTPStatus("private-a", http.StatusForbidden, []byte(`{"message":"nope"}`))
	var authErr *AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthorizationError, got %T", err)
	}
	if authErr.StatusCode != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", authErr.StatusCode)
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Error("4xx should wrap ErrUnauthorized")
	}
	if !strings.Contains(err.Error(), "nope") {
		t.Errorf("expected server message in error, got %q", err.Error())
	}

	err = FromHTTPStatus("private-a", http.StatusBadGateway, nil)
	if !IsAuthorization(err) {
		t.Error("5xx should still be an authorization failure")
	}
}

func TestWriteHTTPError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteHTTPError(rec, ErrNotConnected)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"code":"NOT_CONNECTED"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

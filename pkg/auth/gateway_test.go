package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mwangaben/nats-laravel-echo/pkg/config"
	"github.com/mwangaben/nats-laravel-echo/pkg/errors"
)

func TestGateway_Authorize(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("Expected POST, got %s", r.Method)
			}
			if got := r.Header.Get("Content-Type"); got != "application/json" {
				t.Errorf("Expected Content-Type application/json, got %q", got)
			}
			if got := r.Header.Get("X-Requested-With"); got != "XMLHttpRequest" {
				t.Errorf("Expected X-Requested-With XMLHttpRequest, got %q", got)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer token" {
				t.Errorf("Expected configured Authorization header, got %q", got)
			}

			var req Request
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("Failed to decode body: %v", err)
			}
			if req.ChannelName != "private-orders" || req.SocketID != "nats_123" {
				t.Errorf("Unexpected body %+v", req)
			}

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"auth":"sig","channel_data":{"user_id":1}}`))
		}))
		defer server.Close()

		gw := NewGateway(config.AuthConfig{
			Endpoint: server.URL,
			Headers:  map[string]string{"Authorization": "Bearer token"},
		}, nil)

		resp, err := gw.Authorize(context.Background(), "private-orders", "nats_123")
		if err != nil {
			t.Fatalf("Authorize failed: %v", err)
		}
		if resp.Auth != "sig" {
			t.Errorf("Expected auth sig, got %q", resp.Auth)
		}
		if string(resp.ChannelData) != `{"user_id":1}` {
			t.Errorf("Unexpected channel data %s", resp.ChannelData)
		}
	})

	t.Run("empty 2xx body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		gw := NewGateway(config.AuthConfig{Endpoint: server.URL}, nil)
		if _, err := gw.Authorize(context.Background(), "private-a", "nats_1"); err != nil {
			t.Fatalf("Expected success, got %v", err)
		}
	})

	t.Run("forbidden", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"This action is unauthorized."}`))
		}))
		defer server.Close()

		gw := NewGateway(config.AuthConfig{Endpoint: server.URL}, nil)
		_, err := gw.Authorize(context.Background(), "private-a", "nats_1")
		if err == nil {
			t.Fatal("Expected error")
		}

		var authErr *errors.AuthorizationError
		if !errors.As(err, &authErr) {
			t.Fatalf("Expected AuthorizationError, got %T", err)
		}
		if authErr.StatusCode != http.StatusForbidden || authErr.Channel != "private-a" {
			t.Errorf("Unexpected error fields %+v", authErr)
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		gw := NewGateway(config.AuthConfig{Endpoint: url, Timeout: time.Second}, nil)
		_, err := gw.Authorize(context.Background(), "private-a", "nats_1")
		if !errors.IsAuthorization(err) {
			t.Fatalf("Expected authorization error, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		gw := NewGateway(config.AuthConfig{Endpoint: server.URL}, nil)
		if _, err := gw.Authorize(ctx, "private-a", "nats_1"); err == nil {
			t.Fatal("Expected error for cancelled context")
		}
	})
}

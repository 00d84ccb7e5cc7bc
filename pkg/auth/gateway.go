package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mwangaben/nats-laravel-echo/pkg/config"
	"github.com/mwangaben/nats-laravel-echo/pkg/errors"
	"github.com/mwangaben/nats-laravel-echo/pkg/logging"
	"github.com/mwangaben/nats-laravel-echo/pkg/metrics"
)

// Authorizer grants access to private and presence channels.
type Authorizer interface {
	Authorize(ctx context.Context, channel, socketID string) (*Response, error)
}

// Request is the body POSTed to the authorization endpoint.
type Request struct {
	ChannelName string `json:"channel_name"`
	SocketID    string `json:"socket_id"`
}

// Response is the optional body returned by the endpoint.
type Response struct {
	Auth        string          `json:"auth,omitempty"`
	ChannelData json.RawMessage `json:"channel_data,omitempty"`
}

// Gateway calls an HTTP authorization endpoint.
type Gateway struct {
	endpoint   string
	headers    map[string]string
	httpClient *http.Client
	logger     *logging.ColoredLogger
}

// NewGateway creates a gateway for cfg.Endpoint.
func NewGateway(cfg config.AuthConfig, logger *logging.ColoredLogger) *Gateway {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	return &Gateway{
		endpoint:   cfg.Endpoint,
		headers:    headers,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Authorize asks the endpoint whether socketID may join channel.
// Any non-2xx response is returned as an *errors.AuthorizationError.
func (g *Gateway) Authorize(ctx context.Context, channel, socketID string) (*Response, error) {
	resp, err := g.authorize(ctx, channel, socketID)
	if err != nil {
		metrics.AuthRequests.WithLabelValues(metrics.ResultError).Inc()
		g.logger.ComponentWarn(logging.ComponentAuth, "Channel authorization failed",
			zap.String("channel", channel),
			zap.Error(err),
		)
		return nil, err
	}
	metrics.AuthRequests.WithLabelValues(metrics.ResultOK).Inc()
	g.logger.ComponentDebug(logging.ComponentAuth, "Channel authorized", zap.String("channel", channel))
	return resp, nil
}

func (g *Gateway) authorize(ctx context.Context, channel, socketID string) (*Response, error) {
	body, err := json.Marshal(Request{ChannelName: channel, SocketID: socketID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewAuthorizationError(channel, 0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	for k, v := range g.headers {
		req.Header.Set(k, v)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewAuthorizationError(channel, 0, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err := errors.FromHTTPStatus(channel, resp.StatusCode, raw); err != nil {
		return nil, err
	}

	var out Response
	if len(bytes.TrimSpace(raw)) > 0 {
		// Endpoints that answer with a non-JSON 2xx body still grant access.
		_ = json.Unmarshal(raw, &out)
	}
	return &out, nil
}

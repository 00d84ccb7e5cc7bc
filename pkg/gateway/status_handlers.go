package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mwangaben/nats-laravel-echo/pkg/errors"
	"github.com/mwangaben/nats-laravel-echo/pkg/logging"
)

// healthResponse is the JSON structure used by healthHandler
type healthResponse struct {
	Status    string    `json:"status"`
	Connected bool      `json:"is_connected"`
	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime"`
}

// healthHandler answers 200 while connected and 503 otherwise.
func (g *Gateway) healthHandler(w http.ResponseWriter, r *http.Request) {
	st := g.source.Status()
	resp := healthResponse{
		Status:    "ok",
		Connected: st.Connected,
		StartedAt: g.startedAt,
		Uptime:    time.Since(g.startedAt).String(),
	}
	code := http.StatusOK
	if !st.Connected {
		resp.Status = st.State
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (g *Gateway) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, g.source.Status())
}

func (g *Gateway) channelsHandler(w http.ResponseWriter, r *http.Request) {
	st := g.source.Status()
	channels := st.Channels
	if channels == nil {
		channels = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"channels": channels,
		"pending":  st.Pending,
	})
}

// whisperRequest is the body accepted by whisperHandler
type whisperRequest struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (g *Gateway) whisperHandler(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")

	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		errors.WriteHTTPError(w, errors.NewValidationError("body", "unreadable request body", nil))
		return
	}
	var req whisperRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		errors.WriteHTTPError(w, errors.NewValidationError("body", fmt.Sprintf("invalid JSON: %v", err), nil))
		return
	}
	if req.Event == "" {
		errors.WriteHTTPError(w, errors.NewValidationError("event", "is required", nil))
		return
	}

	var data interface{}
	if len(req.Data) > 0 {
		data = req.Data
	}
	if err := g.source.Whisper(channel, req.Event, data); err != nil {
		g.logger.ComponentWarn(logging.ComponentChannel, "Whisper over HTTP failed",
			zap.String("channel", channel),
			zap.String("event", req.Event),
			zap.Error(err),
		)
		errors.WriteHTTPError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"channel": channel,
		"event":   req.Event,
	})
}

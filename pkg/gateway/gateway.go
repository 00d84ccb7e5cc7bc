// Package gateway serves the HTTP status surface of a running echo client.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mwangaben/nats-laravel-echo/pkg/client"
	"github.com/mwangaben/nats-laravel-echo/pkg/logging"
)

// Source is what the gateway needs from a client.
type Source interface {
	client.Broadcaster
	Status() client.Status
}

// Gateway exposes health, status, metrics and whisper endpoints.
type Gateway struct {
	source    Source
	logger    *logging.ColoredLogger
	router    chi.Router
	startedAt time.Time
	server    *http.Server
}

// New builds the gateway router for source.
func New(source Source, logger *logging.ColoredLogger) *Gateway {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	g := &Gateway{
		source:    source,
		logger:    logger,
		router:    chi.NewRouter(),
		startedAt: time.Now(),
	}

	g.router.Use(middleware.RequestID)
	g.router.Use(middleware.Recoverer)
	g.router.Use(middleware.Timeout(30 * time.Second))
	g.router.Use(g.logRequests)

	g.router.Get("/health", g.healthHandler)
	g.router.Get("/status", g.statusHandler)
	g.router.Get("/channels", g.channelsHandler)
	g.router.Post("/channels/{channel}/whisper", g.whisperHandler)
	g.router.Handle("/metrics", promhttp.Handler())

	return g
}

// Routes returns the handler with all routes and middleware configured.
func (g *Gateway) Routes() http.Handler {
	return g.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (g *Gateway) ListenAndServe(ctx context.Context, addr string) error {
	g.server = &http.Server{
		Addr:              addr,
		Handler:           g.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.ComponentInfo(logging.ComponentGeneral, "Status HTTP server starting", zap.String("addr", addr))
		if err := g.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := g.server.Shutdown(shutdownCtx); err != nil {
		g.logger.ComponentError(logging.ComponentGeneral, "HTTP server shutdown error", zap.Error(err))
		return err
	}
	g.logger.ComponentInfo(logging.ComponentGeneral, "Status HTTP server stopped")
	return nil
}

func (g *Gateway) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusResponseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		g.logger.ComponentDebug(logging.ComponentGeneral, "HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Int("bytes", sw.bytes),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

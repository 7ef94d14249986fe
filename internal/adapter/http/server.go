package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/forecast-verification-service/internal/domain"
)

const maxRequestBytes = 1 << 20

// Evaluator computes a metric request synchronously.
type Evaluator interface {
	Evaluate(ctx context.Context, req domain.MetricRequest) domain.MetricResult
}

// Server exposes health, readiness, metrics and the evaluate endpoint.
type Server struct {
	httpServer *http.Server
	evaluator  Evaluator
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz and /metrics routes,
// plus POST /v1/evaluate when an evaluator is given.
func NewServer(addr string, ready sharedobs.ReadinessChecker, evaluator Evaluator, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		evaluator: evaluator,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	if evaluator != nil {
		mux.HandleFunc("POST /v1/evaluate", s.handleEvaluate)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// handleEvaluate accepts a metric request body and returns its result. Per
// forecast failures are reported inside a 200 response.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorBody(domain.StatusConfiguration, err))
		return
	}
	if len(body) > maxRequestBytes {
		sharedobs.WriteJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
			"status": domain.StatusConfiguration,
			"error":  "request body too large",
		})
		return
	}

	req, err := domain.ParseRequest(domain.RawEvent{Value: body})
	if err != nil {
		s.logger.Info("evaluate request rejected", "error", err)
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorBody(domain.StatusConfiguration, err))
		return
	}

	result := s.evaluator.Evaluate(r.Context(), req)
	sharedobs.WriteJSON(w, http.StatusOK, result)
}

func errorBody(status string, err error) map[string]string {
	return map[string]string{"status": status, "error": err.Error()}
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/text-extraction/internal/config"
	"github.com/JakeFAU/text-extraction/internal/extraction"
	"github.com/JakeFAU/text-extraction/internal/metrics"
)

// Extractor is the slice of pipeline.Service the handlers need.
type Extractor interface {
	Extract(ctx context.Context, req extraction.Request) (extraction.Result, error)
	ExtractBatch(ctx context.Context, reqs []extraction.Request, parallelism int) []extraction.Result
}

// Server wires HTTP handlers to the extraction service.
type Server struct {
	router  chi.Router
	svc     Extractor
	cfg     config.Config
	version string
	logger  *zap.Logger
}

const defaultRequestTimeout = 90 * time.Second

// NewServer constructs a Server with middleware and routes.
func NewServer(svc Extractor, cfg config.Config, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		svc:     svc,
		cfg:     cfg,
		version: version,
		logger:  logger,
	}
	timeout := cfg.Server.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(timeout))

	r.Get("/_ping", s.ping)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Post("/from-url", s.fromURL(false))
	r.Post("/v1/extract", s.extract)
	r.Post("/v1/extract/batch", s.extractBatch)
	if cfg.Auth.Enabled {
		r.Route("/internal", func(r chi.Router) {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
			r.Post("/from-url", s.fromURL(true))
		})
	}

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ping(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// The service holds no connections that could be unready.
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

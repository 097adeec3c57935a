// Package web exposes the csvkit operations as a JSON HTTP API.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/csvkit/internal/config"
	"github.com/JonMunkholm/csvkit/internal/core"
	"github.com/JonMunkholm/csvkit/internal/export"
	csvmw "github.com/JonMunkholm/csvkit/internal/web/middleware"
)

// maxBodySize bounds request bodies; they only carry paths and parameters.
const maxBodySize = 1 << 20

// Server is the HTTP server for csvkit.
type Server struct {
	cfg      *config.Config
	limiter  *core.JobLimiter
	exporter *export.Exporter
	validate *validator.Validate
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a Server from cfg.
func NewServer(cfg *config.Config) *Server {
	s := &Server{
		cfg:      cfg,
		limiter:  core.NewJobLimiter(cfg.Jobs.MaxConcurrent, cfg.Jobs.MaxWaitTime),
		exporter: export.New(cfg.ExportSettings()),
		validate: newValidator(),
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// WithExporter replaces the exporter used by /api/export.
func (s *Server) WithExporter(e *export.Exporter) *Server {
	s.exporter = e
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(csvmw.TrustedRealIP(s.cfg.Server.TrustedProxies))
	s.router.Use(csvmw.Logger)
	s.router.Use(csvmw.Metrics)
	s.router.Use(middleware.Recoverer)
	s.router.Use(render.SetContentType(render.ContentTypeJSON))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.cfg.Server.MetricsEnabled {
		s.router.Handle("/metrics", promhttp.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(csvmw.APIKeyAuth(s.cfg.Server.APIKeys))
		r.Use(middleware.AllowContentType("application/json"))

		r.Post("/filter-row", s.handleFilterRow)
		r.Post("/filter-rows", s.handleFilterRows)
		r.Post("/merge", s.handleMerge)
		r.Post("/split", s.handleSplit)
		r.Post("/export", s.handleExport)
	})
}

// Start listens on the configured address until Shutdown is called.
func (s *Server) Start() error {
	slog.Info("server starting", "addr", s.server.Addr)
	if s.cfg.Server.Unauthenticated() {
		slog.Warn("API reachable from other hosts without API_KEYS; any client can read and write server paths",
			"addr", s.server.Addr)
	}
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown waits for running operations, then stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if status := s.limiter.Status(); status.Active > 0 {
		slog.Info("waiting for operations to complete", "active", status.Active)
		if err := s.limiter.WaitForDrain(ctx); err != nil {
			slog.Warn("operations did not complete in time", "error", err)
		} else {
			slog.Info("all operations completed")
		}
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

type healthResponse struct {
	Status string                `json:"status"`
	Jobs   core.JobLimiterStatus `json:"jobs"`
	Time   time.Time             `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, healthResponse{
		Status: "ok",
		Jobs:   s.limiter.Status(),
		Time:   time.Now().UTC(),
	})
}

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/openfreight/milepost/internal/domain"
	"github.com/openfreight/milepost/internal/engine"
	"github.com/openfreight/milepost/internal/report"
	"github.com/openfreight/milepost/internal/snapshot"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, eng *engine.Engine, builder *report.Builder, snapshots *snapshot.Service, version string) *Server {
	handler := NewHandler(repo, cache, bus, eng, builder, snapshots, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Metric evaluation
	router.Post("/evaluate", handler.Evaluate)

	// Load ingestion and retrieval
	router.Post("/loads", handler.IngestLoad)
	router.Get("/loads/{id}", handler.GetLoad)

	// Metric definition management
	router.Get("/metrics", handler.ListMetrics)
	router.Get("/metrics/{code}", handler.GetMetric)
	router.Post("/metrics", handler.CreateMetric)
	router.Put("/metrics/{code}", handler.UpdateMetric)
	router.Delete("/metrics/{code}", handler.DeleteMetric)
	router.Post("/metrics/{code}/duplicate", handler.DuplicateMetric)
	router.Post("/metrics/reload", handler.ReloadMetrics)

	// Segment management
	router.Get("/segments", handler.ListSegments)
	router.Get("/segments/{code}", handler.GetSegment)
	router.Post("/segments", handler.CreateSegment)
	router.Put("/segments/{code}", handler.UpdateSegment)
	router.Delete("/segments/{code}", handler.DeleteSegment)
	router.Post("/segments/reload", handler.ReloadSegments)

	// Transaction overrides
	router.Get("/overrides", handler.ListOverrides)
	router.Post("/overrides", handler.CreateOverride)
	router.Delete("/overrides/{id}", handler.DeleteOverride)

	// Reports
	router.Get("/reports/carriers", handler.CarrierReports)
	router.Get("/reports/lanes", handler.LaneReports)

	// Definition drafting from natural language
	router.Post("/assist", handler.Assist)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api exposes the job controller over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/condense/internal/api/middleware"
	"github.com/ManuGH/condense/internal/artifact"
	"github.com/ManuGH/condense/internal/job"
	"github.com/ManuGH/condense/internal/log"
)

// DefaultMaxUploadBytes bounds uploads when no limit is configured.
const DefaultMaxUploadBytes int64 = 2 << 30

// Deps wires the server to the core.
type Deps struct {
	Controller *job.Controller
	Store      *artifact.Store

	Version        string
	MaxUploadBytes int64
	RateLimitRPM   int
	ExportDir      string
	AllowedOrigins []string
	// TracingService names HTTP spans; empty disables request tracing.
	TracingService string
	// Heartbeat is the event stream keep-alive interval. Zero means 15s.
	Heartbeat time.Duration
}

// Server serves the HTTP API.
type Server struct {
	deps      Deps
	logger    zerolog.Logger
	createJob *middleware.DynamicRateLimit
	router    chi.Router
}

// New builds the router.
func New(deps Deps) *Server {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if deps.Heartbeat <= 0 {
		deps.Heartbeat = 15 * time.Second
	}
	s := &Server{deps: deps, logger: log.WithComponent("api")}
	s.createJob = middleware.NewDynamicRateLimit(http.HandlerFunc(s.handleCreateJob), deps.RateLimitRPM)
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// SetRateLimit changes the job creation limit in requests per minute.
func (s *Server) SetRateLimit(rpm int) {
	s.createJob.SetLimit(rpm)
	s.logger.Info().Int("rpm", rpm).Msg("job creation rate limit updated")
}

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		AllowedOrigins: s.deps.AllowedOrigins,
		EnableMetrics:  true,
		TracingService: s.deps.TracingService,
		EnableLogging:  true,
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/encoder", s.handleEncoderStatus)
		r.Post("/encoder/load", s.handleEncoderLoad)
		r.Post("/encoder/reload", s.handleEncoderReload)

		r.Method(http.MethodPost, "/jobs", s.createJob)
		r.Get("/jobs/current", s.handleCurrentJob)
		r.Get("/jobs/events", s.handleEvents)

		r.Get("/commands/preview", s.handlePreview)

		r.Get("/artifacts/{id}", s.handleDownload)
		r.Delete("/artifacts/{id}", s.handleRelease)
		r.Post("/artifacts/{id}/export", s.handleExport)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, "system/not_found", "NOT_FOUND", "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusMethodNotAllowed, "system/method_not_allowed", "METHOD_NOT_ALLOWED", r.Method+" not allowed")
	})
	return r
}

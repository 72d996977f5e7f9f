// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/excubitor/internal/analyzer"
	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/discovery"
	"github.com/tomtom215/excubitor/internal/metrics"
	"github.com/tomtom215/excubitor/internal/models"
)

// DiscoveryRunner is the orchestrator surface the ops API consumes.
// *discovery.Orchestrator satisfies it.
type DiscoveryRunner interface {
	TriggerNow() bool
	LastReport() *discovery.CycleReport
}

// RescoreStatus is the analyzer surface the ops API consumes.
// *analyzer.Analyzer satisfies it.
type RescoreStatus interface {
	LastTick() *analyzer.TickReport
}

// QuotaSource is the ledger surface the ops API consumes.
// *quota.Ledger satisfies it.
type QuotaSource interface {
	Name() string
	Ceiling() int64
	Remaining() int64
	Utilization() float64
	Snapshot() models.QuotaUsage
}

// VideoCounts reports videos per risk tier. *store.VideoRepo satisfies it.
type VideoCounts interface {
	TierCounts(ctx context.Context) (map[models.RiskTier]int64, error)
}

// ChannelCounts reports channels per tier. *intel.ChannelRegistry
// satisfies it.
type ChannelCounts interface {
	TierCounts(ctx context.Context) (map[models.ChannelTier]int64, error)
}

// BreakerStatus exposes the platform circuit breaker state.
// *platform.BreakerClient satisfies it.
type BreakerStatus interface {
	State() string
}

// Deps wires the ops server's collaborators. Breaker and Ready are
// optional; nil means the corresponding field is omitted from status
// and readiness always passes.
type Deps struct {
	Discovery DiscoveryRunner
	Analyzer  RescoreStatus
	Ledger    QuotaSource
	Rescan    QuotaSource
	Videos    VideoCounts
	Channels  ChannelCounts
	Breaker   BreakerStatus

	// Ready reports whether dependencies (the store, the event
	// transport) are reachable. Used by the readiness probe.
	Ready func(ctx context.Context) error
}

// Server is the operational HTTP surface: health probes, pipeline
// status, quota ledgers, Prometheus metrics, and the manual discovery
// trigger. It carries no data-plane endpoints; the pipeline is
// event-driven.
type Server struct {
	cfg        config.ServerConfig
	deps       Deps
	middleware *Middleware
	httpServer *http.Server
	startedAt  time.Time
}

// NewServer creates the ops server listening on cfg.Addr().
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{
		cfg:        cfg,
		deps:       deps,
		middleware: NewMiddleware(cfg.RateLimitReqs, cfg.RateLimitWindow),
		startedAt:  time.Now(),
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		IdleTimeout:  2 * cfg.Timeout,
	}
	return s
}

// Handler builds the chi route tree. Exposed separately so tests can
// drive it with httptest without binding a port.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(APISecurityHeaders())
	r.Use(RequestLogging())
	r.Use(prometheusRequests)

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(s.middleware.RateLimitHealth())
		r.Get("/live", s.handleLive)
		r.Get("/ready", s.handleReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.middleware.RateLimit())
		r.Get("/status", s.handleStatus)
		r.Get("/quota", s.handleQuota)
		r.With(s.middleware.RateLimitTrigger()).
			Post("/discovery/run", s.handleTrigger)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// ListenAndServe implements supervisor.HTTPServer.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown implements supervisor.HTTPServer.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// prometheusRequests records request counts and latency per route
// pattern, so path parameters never explode label cardinality.
func prometheusRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		endpoint := chi.RouteContext(r.Context()).RoutePattern()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordAPIRequest(r.Method, endpoint, strconv.Itoa(ww.statusCode), time.Since(start))
	})
}

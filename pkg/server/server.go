// Package server exposes the resolution engine over HTTP for long-lived
// deployments: editors and CI talk to a warm daemon instead of paying a
// cold resolve per invocation. Handlers stay thin — resolution,
// diffing and invalidation semantics live in the workspace, snapshot
// history in the snapshot store.
package server

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/getlumos/lumos-sub002/pkg/httputil"
	"github.com/getlumos/lumos-sub002/pkg/observability"
	"github.com/getlumos/lumos-sub002/pkg/snapshot"
	"github.com/getlumos/lumos-sub002/pkg/workspace"
)

// Options configures a Server.
type Options struct {
	// Workspace serves resolutions, checks and invalidation. Required.
	Workspace *workspace.Workspace
	// Snapshots backs GET /v1/schemas and the snapshot health probe.
	// Optional; the endpoint answers 503 without it.
	Snapshots *snapshot.Store
	// Logger receives handler activity.
	Logger *observability.Logger
	// Metrics, when set, instruments every request.
	Metrics *observability.Metrics
	// Registry, when set, is served on /metrics.
	Registry *prometheus.Registry
	// Version is reported by the health endpoints.
	Version string
}

// Server is the daemon's HTTP API.
type Server struct {
	workspace *workspace.Workspace
	snapshots *snapshot.Store
	router    *mux.Router
	logger    *observability.Logger
	metrics   *observability.Metrics
	health    *observability.HealthChecker
}

// New creates an API server over the given workspace.
func New(opts Options) (*Server, error) {
	if opts.Workspace == nil {
		return nil, errors.New("workspace is required")
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	var db *sql.DB
	if opts.Snapshots != nil {
		db = opts.Snapshots.DB()
	}

	s := &Server{
		workspace: opts.Workspace,
		snapshots: opts.Snapshots,
		router:    mux.NewRouter(),
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		health:    observability.NewHealthChecker(opts.Version, opts.Workspace, db),
	}

	s.setupRoutes(opts.Registry)
	return s, nil
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(registry *prometheus.Registry) {
	// Engine routes
	s.router.HandleFunc("/v1/resolve", s.resolveSchema).Methods("POST")
	s.router.HandleFunc("/v1/check", s.checkCompatibility).Methods("POST")
	s.router.HandleFunc("/v1/invalidate", s.invalidatePath).Methods("POST")

	// Snapshot routes
	s.router.HandleFunc("/v1/schemas", s.listSchemas).Methods("GET")

	// Health routes
	s.router.HandleFunc("/healthz", s.health.Readiness).Methods("GET")
	s.router.HandleFunc("/healthz/live", s.health.Liveness).Methods("GET")
	s.router.HandleFunc("/healthz/ready", s.health.Readiness).Methods("GET")

	if registry != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")
	}
}

// Handler returns the server wrapped in its middleware chain: tracing
// outermost, then request IDs and metrics, with panic recovery directly
// around the router.
func (s *Server) Handler() http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
	}
	if s.metrics != nil {
		middlewares = append(middlewares, observability.HTTPMetricsMiddleware(s.metrics))
	}
	middlewares = append(middlewares, observability.PanicMiddleware(s.logger))

	handler := httputil.Chain(middlewares...)(s.router)
	return otelhttp.NewHandler(handler, "lumosd")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Resolution metrics
	ResolutionsTotal      *prometheus.CounterVec
	ResolutionDuration    prometheus.Histogram
	ResolutionErrorsTotal *prometheus.CounterVec
	FilesParsedTotal      prometheus.Counter

	// Diff metrics
	DiffsTotal      *prometheus.CounterVec
	DiffDuration    prometheus.Histogram
	DiffIssuesTotal *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal      *prometheus.CounterVec
	CacheMissesTotal    *prometheus.CounterVec
	CacheEvictionsTotal *prometheus.CounterVec
	CacheEntries        *prometheus.GaugeVec

	// Watcher metrics
	WatcherEventsTotal        *prometheus.CounterVec
	WatcherInvalidationsTotal prometheus.Counter

	// Snapshot metrics
	SnapshotOperationsTotal   *prometheus.CounterVec
	SnapshotOperationDuration *prometheus.HistogramVec
	SnapshotsStored           prometheus.Gauge

	// Workspace metrics
	SchemasTracked prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lumos_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lumos_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lumos_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lumos_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Resolution metrics
		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lumos_resolutions_total",
				Help: "Total number of schema resolutions",
			},
			[]string{"status"},
		),
		ResolutionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lumos_resolution_duration_seconds",
				Help:    "Schema resolution duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
		),
		ResolutionErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lumos_resolution_errors_total",
				Help: "Total number of resolution errors",
			},
			[]string{"stage"},
		),
		FilesParsedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lumos_files_parsed_total",
				Help: "Total number of schema files parsed",
			},
		),

		// Diff metrics
		DiffsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lumos_diffs_total",
				Help: "Total number of schema diffs",
			},
			[]string{"result"},
		),
		DiffDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lumos_diff_duration_seconds",
				Help:    "Schema diff duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		DiffIssuesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lumos_diff_issues_total",
				Help: "Total number of diff issues by severity",
			},
			[]string{"level"},
		),

		// Cache metrics
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lumos_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lumos_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),
		CacheEvictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lumos_cache_evictions_total",
				Help: "Total number of cache evictions",
			},
			[]string{"cache", "reason"},
		),
		CacheEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lumos_cache_entries",
				Help: "Current number of cache entries",
			},
			[]string{"cache"},
		),

		// Watcher metrics
		WatcherEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lumos_watcher_events_total",
				Help: "Total number of filesystem watcher events",
			},
			[]string{"op"},
		),
		WatcherInvalidationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lumos_watcher_invalidations_total",
				Help: "Total number of cached schemas invalidated by watcher events",
			},
		),

		// Snapshot metrics
		SnapshotOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lumos_snapshot_operations_total",
				Help: "Total number of snapshot store operations",
			},
			[]string{"operation", "status"},
		),
		SnapshotOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lumos_snapshot_operation_duration_seconds",
				Help:    "Snapshot store operation duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation"},
		),
		SnapshotsStored: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lumos_snapshots_stored",
				Help: "Number of snapshots currently stored",
			},
		),

		// Workspace metrics
		SchemasTracked: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lumos_schemas_tracked",
				Help: "Number of schemas tracked by the workspace",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.ResolutionsTotal,
		m.ResolutionDuration,
		m.ResolutionErrorsTotal,
		m.FilesParsedTotal,
		m.DiffsTotal,
		m.DiffDuration,
		m.DiffIssuesTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheEvictionsTotal,
		m.CacheEntries,
		m.WatcherEventsTotal,
		m.WatcherInvalidationsTotal,
		m.SnapshotOperationsTotal,
		m.SnapshotOperationDuration,
		m.SnapshotsStored,
		m.SchemasTracked,
	)

	return m
}

// ObserveResolution records the outcome and duration of a schema resolution
func (m *Metrics) ObserveResolution(duration time.Duration, filesParsed int, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.ResolutionsTotal.WithLabelValues(status).Inc()
	m.ResolutionDuration.Observe(duration.Seconds())
	if filesParsed > 0 {
		m.FilesParsedTotal.Add(float64(filesParsed))
	}
}

// ObserveDiff records the outcome and duration of a schema diff
func (m *Metrics) ObserveDiff(duration time.Duration, compatible bool, breaking, warnings, infos int) {
	result := "compatible"
	if !compatible {
		result = "incompatible"
	}
	m.DiffsTotal.WithLabelValues(result).Inc()
	m.DiffDuration.Observe(duration.Seconds())
	m.DiffIssuesTotal.WithLabelValues("breaking").Add(float64(breaking))
	m.DiffIssuesTotal.WithLabelValues("warning").Add(float64(warnings))
	m.DiffIssuesTotal.WithLabelValues("info").Add(float64(infos))
}

// ObserveSnapshot records the outcome and duration of a snapshot store operation
func (m *Metrics) ObserveSnapshot(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.SnapshotOperationsTotal.WithLabelValues(operation, status).Inc()
	m.SnapshotOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status and size
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			// Record request size
			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(r.ContentLength))
			}

			// Serve the request
			next.ServeHTTP(rw, r)

			// Record metrics
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}

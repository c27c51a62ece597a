package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics holds OpenTelemetry metric instruments
type OTelMetrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram
	httpRequestSize     metric.Int64Histogram
	httpResponseSize    metric.Int64Histogram

	// Resolution metrics
	resolutionsTotal   metric.Int64Counter
	resolutionDuration metric.Float64Histogram
	filesParsedTotal   metric.Int64Counter

	// Diff metrics
	diffsTotal      metric.Int64Counter
	diffDuration    metric.Float64Histogram
	diffIssuesTotal metric.Int64Counter

	// Cache metrics
	cacheHitsTotal      metric.Int64Counter
	cacheMissesTotal    metric.Int64Counter
	cacheEvictionsTotal metric.Int64Counter
	cacheEntries        metric.Int64UpDownCounter

	// Snapshot metrics
	snapshotOperations metric.Int64Counter
	snapshotDuration   metric.Float64Histogram
	snapshotBytes      metric.Int64Histogram
}

// NewOTelMetrics creates a new OTel metrics instance
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter("github.com/getlumos/lumos-sub002")

	m := &OTelMetrics{}
	var err error

	// HTTP metrics
	m.httpRequestsTotal, err = meter.Int64Counter(
		"http.server.requests",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration histogram: %w", err)
	}

	m.httpRequestSize, err = meter.Int64Histogram(
		"http.server.request.size",
		metric.WithDescription("HTTP request size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_size histogram: %w", err)
	}

	m.httpResponseSize, err = meter.Int64Histogram(
		"http.server.response.size",
		metric.WithDescription("HTTP response size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_response_size histogram: %w", err)
	}

	// Resolution metrics
	m.resolutionsTotal, err = meter.Int64Counter(
		"lumos.resolutions",
		metric.WithDescription("Total number of schema resolutions"),
		metric.WithUnit("{resolution}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolutions counter: %w", err)
	}

	m.resolutionDuration, err = meter.Float64Histogram(
		"lumos.resolution.duration",
		metric.WithDescription("Schema resolution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolution_duration histogram: %w", err)
	}

	m.filesParsedTotal, err = meter.Int64Counter(
		"lumos.files.parsed",
		metric.WithDescription("Total number of schema files parsed"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create files_parsed counter: %w", err)
	}

	// Diff metrics
	m.diffsTotal, err = meter.Int64Counter(
		"lumos.diffs",
		metric.WithDescription("Total number of schema diffs"),
		metric.WithUnit("{diff}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create diffs counter: %w", err)
	}

	m.diffDuration, err = meter.Float64Histogram(
		"lumos.diff.duration",
		metric.WithDescription("Schema diff duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create diff_duration histogram: %w", err)
	}

	m.diffIssuesTotal, err = meter.Int64Counter(
		"lumos.diff.issues",
		metric.WithDescription("Total number of diff issues by severity"),
		metric.WithUnit("{issue}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create diff_issues counter: %w", err)
	}

	// Cache metrics
	m.cacheHitsTotal, err = meter.Int64Counter(
		"lumos.cache.hits",
		metric.WithDescription("Total number of cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache_hits counter: %w", err)
	}

	m.cacheMissesTotal, err = meter.Int64Counter(
		"lumos.cache.misses",
		metric.WithDescription("Total number of cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache_misses counter: %w", err)
	}

	m.cacheEvictionsTotal, err = meter.Int64Counter(
		"lumos.cache.evictions",
		metric.WithDescription("Total number of cache evictions"),
		metric.WithUnit("{eviction}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache_evictions counter: %w", err)
	}

	m.cacheEntries, err = meter.Int64UpDownCounter(
		"lumos.cache.entries",
		metric.WithDescription("Current number of cache entries"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache_entries gauge: %w", err)
	}

	// Snapshot metrics
	m.snapshotOperations, err = meter.Int64Counter(
		"lumos.snapshot.operations",
		metric.WithDescription("Total number of snapshot store operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot_operations counter: %w", err)
	}

	m.snapshotDuration, err = meter.Float64Histogram(
		"lumos.snapshot.duration",
		metric.WithDescription("Snapshot store operation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot_duration histogram: %w", err)
	}

	m.snapshotBytes, err = meter.Int64Histogram(
		"lumos.snapshot.bytes",
		metric.WithDescription("Snapshot payload bytes written or read"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot_bytes histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request metric
func (m *OTelMetrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration, requestSize, responseSize int64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", statusCode),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if requestSize > 0 {
		m.httpRequestSize.Record(ctx, requestSize, metric.WithAttributes(attrs...))
	}
	if responseSize > 0 {
		m.httpResponseSize.Record(ctx, responseSize, metric.WithAttributes(attrs...))
	}
}

// RecordResolution records a schema resolution metric
func (m *OTelMetrics) RecordResolution(ctx context.Context, duration time.Duration, filesParsed int, err error) {
	attrs := []attribute.KeyValue{
		attribute.Bool("error", err != nil),
	}

	m.resolutionsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.resolutionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if filesParsed > 0 {
		m.filesParsedTotal.Add(ctx, int64(filesParsed))
	}
}

// RecordDiff records a schema diff metric
func (m *OTelMetrics) RecordDiff(ctx context.Context, duration time.Duration, compatible bool, breaking, warnings, infos int) {
	attrs := []attribute.KeyValue{
		attribute.Bool("compatible", compatible),
	}

	m.diffsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.diffDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if breaking > 0 {
		m.diffIssuesTotal.Add(ctx, int64(breaking), metric.WithAttributes(attribute.String("level", "breaking")))
	}
	if warnings > 0 {
		m.diffIssuesTotal.Add(ctx, int64(warnings), metric.WithAttributes(attribute.String("level", "warning")))
	}
	if infos > 0 {
		m.diffIssuesTotal.Add(ctx, int64(infos), metric.WithAttributes(attribute.String("level", "info")))
	}
}

// RecordCacheHit records a cache hit
func (m *OTelMetrics) RecordCacheHit(ctx context.Context, cache string) {
	attrs := []attribute.KeyValue{
		attribute.String("cache.name", cache),
	}
	m.cacheHitsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCacheMiss records a cache miss
func (m *OTelMetrics) RecordCacheMiss(ctx context.Context, cache string) {
	attrs := []attribute.KeyValue{
		attribute.String("cache.name", cache),
	}
	m.cacheMissesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCacheEviction records a cache eviction
func (m *OTelMetrics) RecordCacheEviction(ctx context.Context, cache, reason string) {
	attrs := []attribute.KeyValue{
		attribute.String("cache.name", cache),
		attribute.String("reason", reason),
	}
	m.cacheEvictionsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// UpdateCacheEntries adjusts the cache entry count by delta
func (m *OTelMetrics) UpdateCacheEntries(ctx context.Context, cache string, delta int64) {
	attrs := []attribute.KeyValue{
		attribute.String("cache.name", cache),
	}
	m.cacheEntries.Add(ctx, delta, metric.WithAttributes(attrs...))
}

// RecordSnapshotOperation records a snapshot store operation metric
func (m *OTelMetrics) RecordSnapshotOperation(ctx context.Context, operation string, duration time.Duration, bytes int64, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("snapshot.operation", operation),
		attribute.Bool("error", err != nil),
	}

	m.snapshotOperations.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.snapshotDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if bytes > 0 {
		m.snapshotBytes.Record(ctx, bytes, metric.WithAttributes(attrs...))
	}
}

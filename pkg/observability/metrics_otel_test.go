package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupTestMeterProvider creates a test meter provider with a manual reader
func setupTestMeterProvider(t *testing.T) (*metric.MeterProvider, *metric.ManualReader) {
	t.Helper()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	otel.SetMeterProvider(provider)
	return provider, reader
}

// collectMetricNames returns every metric name the reader has observed,
// mapped to its datapoint sum when it is an int64 counter.
func collectMetricNames(t *testing.T, reader *metric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Failed to collect metrics: %v", err)
	}

	names := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			var total int64
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
			names[m.Name] = total
		}
	}
	return names
}

func TestNewOTelMetrics(t *testing.T) {
	provider, _ := setupTestMeterProvider(t)
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down provider: %v", err)
		}
	}()

	m, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics() error = %v, want nil", err)
	}
	if m == nil {
		t.Fatal("NewOTelMetrics() returned nil metrics")
	}

	// Verify that all metric instruments are initialized
	if m.httpRequestsTotal == nil {
		t.Error("httpRequestsTotal is nil")
	}
	if m.httpRequestDuration == nil {
		t.Error("httpRequestDuration is nil")
	}
	if m.httpRequestSize == nil {
		t.Error("httpRequestSize is nil")
	}
	if m.httpResponseSize == nil {
		t.Error("httpResponseSize is nil")
	}
	if m.resolutionsTotal == nil {
		t.Error("resolutionsTotal is nil")
	}
	if m.resolutionDuration == nil {
		t.Error("resolutionDuration is nil")
	}
	if m.filesParsedTotal == nil {
		t.Error("filesParsedTotal is nil")
	}
	if m.diffsTotal == nil {
		t.Error("diffsTotal is nil")
	}
	if m.diffDuration == nil {
		t.Error("diffDuration is nil")
	}
	if m.diffIssuesTotal == nil {
		t.Error("diffIssuesTotal is nil")
	}
	if m.cacheHitsTotal == nil {
		t.Error("cacheHitsTotal is nil")
	}
	if m.cacheMissesTotal == nil {
		t.Error("cacheMissesTotal is nil")
	}
	if m.cacheEvictionsTotal == nil {
		t.Error("cacheEvictionsTotal is nil")
	}
	if m.cacheEntries == nil {
		t.Error("cacheEntries is nil")
	}
	if m.snapshotOperations == nil {
		t.Error("snapshotOperations is nil")
	}
	if m.snapshotDuration == nil {
		t.Error("snapshotDuration is nil")
	}
	if m.snapshotBytes == nil {
		t.Error("snapshotBytes is nil")
	}
}

func TestOTelMetrics_RecordHTTPRequest(t *testing.T) {
	tests := []struct {
		name         string
		method       string
		route        string
		statusCode   int
		requestSize  int64
		responseSize int64
	}{
		{
			name:         "GET with response body",
			method:       "GET",
			route:        "/v1/schemas",
			statusCode:   200,
			requestSize:  0,
			responseSize: 1024,
		},
		{
			name:         "POST with request body",
			method:       "POST",
			route:        "/v1/check",
			statusCode:   200,
			requestSize:  512,
			responseSize: 256,
		},
		{
			name:         "error response with zero sizes",
			method:       "POST",
			route:        "/v1/resolve",
			statusCode:   422,
			requestSize:  0,
			responseSize: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, reader := setupTestMeterProvider(t)
			defer provider.Shutdown(context.Background())

			m, err := NewOTelMetrics()
			if err != nil {
				t.Fatalf("NewOTelMetrics() error = %v", err)
			}

			ctx := context.Background()
			m.RecordHTTPRequest(ctx, tt.method, tt.route, tt.statusCode, 100*time.Millisecond, tt.requestSize, tt.responseSize)

			names := collectMetricNames(t, reader)

			if names["http.server.requests"] != 1 {
				t.Errorf("Expected 1 request recorded, got %d", names["http.server.requests"])
			}
			if _, ok := names["http.server.duration"]; !ok {
				t.Error("HTTP request duration not recorded")
			}
			if _, ok := names["http.server.request.size"]; tt.requestSize > 0 && !ok {
				t.Error("HTTP request size not recorded when requestSize > 0")
			}
			if _, ok := names["http.server.response.size"]; tt.responseSize > 0 && !ok {
				t.Error("HTTP response size not recorded when responseSize > 0")
			}
		})
	}
}

func TestOTelMetrics_RecordResolution(t *testing.T) {
	t.Run("successful resolution", func(t *testing.T) {
		provider, reader := setupTestMeterProvider(t)
		defer provider.Shutdown(context.Background())

		m, err := NewOTelMetrics()
		if err != nil {
			t.Fatalf("NewOTelMetrics() error = %v", err)
		}

		m.RecordResolution(context.Background(), 25*time.Millisecond, 3, nil)

		names := collectMetricNames(t, reader)
		if names["lumos.resolutions"] != 1 {
			t.Errorf("Expected 1 resolution recorded, got %d", names["lumos.resolutions"])
		}
		if names["lumos.files.parsed"] != 3 {
			t.Errorf("Expected 3 files parsed, got %d", names["lumos.files.parsed"])
		}
		if _, ok := names["lumos.resolution.duration"]; !ok {
			t.Error("Resolution duration not recorded")
		}
	})

	t.Run("failed resolution without files", func(t *testing.T) {
		provider, reader := setupTestMeterProvider(t)
		defer provider.Shutdown(context.Background())

		m, err := NewOTelMetrics()
		if err != nil {
			t.Fatalf("NewOTelMetrics() error = %v", err)
		}

		m.RecordResolution(context.Background(), time.Millisecond, 0, errors.New("cycle detected"))

		names := collectMetricNames(t, reader)
		if names["lumos.resolutions"] != 1 {
			t.Errorf("Expected 1 resolution recorded, got %d", names["lumos.resolutions"])
		}
		if _, ok := names["lumos.files.parsed"]; ok {
			t.Error("Expected no files parsed metric when nothing was parsed")
		}
	})
}

func TestOTelMetrics_RecordDiff(t *testing.T) {
	provider, reader := setupTestMeterProvider(t)
	defer provider.Shutdown(context.Background())

	m, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics() error = %v", err)
	}

	ctx := context.Background()
	m.RecordDiff(ctx, 10*time.Millisecond, false, 2, 0, 1)
	m.RecordDiff(ctx, time.Millisecond, true, 0, 0, 0)

	names := collectMetricNames(t, reader)
	if names["lumos.diffs"] != 2 {
		t.Errorf("Expected 2 diffs recorded, got %d", names["lumos.diffs"])
	}
	// 2 breaking + 1 info from the first diff, nothing from the second
	if names["lumos.diff.issues"] != 3 {
		t.Errorf("Expected 3 issues recorded, got %d", names["lumos.diff.issues"])
	}
	if _, ok := names["lumos.diff.duration"]; !ok {
		t.Error("Diff duration not recorded")
	}
}

func TestOTelMetrics_CacheOperations(t *testing.T) {
	provider, reader := setupTestMeterProvider(t)
	defer provider.Shutdown(context.Background())

	m, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics() error = %v", err)
	}

	ctx := context.Background()
	m.RecordCacheHit(ctx, "schema")
	m.RecordCacheHit(ctx, "schema")
	m.RecordCacheMiss(ctx, "schema")
	m.RecordCacheEviction(ctx, "schema", "invalidated")
	m.UpdateCacheEntries(ctx, "schema", 5)
	m.UpdateCacheEntries(ctx, "schema", -2)

	names := collectMetricNames(t, reader)
	if names["lumos.cache.hits"] != 2 {
		t.Errorf("Expected 2 hits, got %d", names["lumos.cache.hits"])
	}
	if names["lumos.cache.misses"] != 1 {
		t.Errorf("Expected 1 miss, got %d", names["lumos.cache.misses"])
	}
	if names["lumos.cache.evictions"] != 1 {
		t.Errorf("Expected 1 eviction, got %d", names["lumos.cache.evictions"])
	}
	if names["lumos.cache.entries"] != 3 {
		t.Errorf("Expected entry count 3, got %d", names["lumos.cache.entries"])
	}
}

func TestOTelMetrics_RecordSnapshotOperation(t *testing.T) {
	t.Run("save with payload", func(t *testing.T) {
		provider, reader := setupTestMeterProvider(t)
		defer provider.Shutdown(context.Background())

		m, err := NewOTelMetrics()
		if err != nil {
			t.Fatalf("NewOTelMetrics() error = %v", err)
		}

		m.RecordSnapshotOperation(context.Background(), "save", 5*time.Millisecond, 2048, nil)

		names := collectMetricNames(t, reader)
		if names["lumos.snapshot.operations"] != 1 {
			t.Errorf("Expected 1 operation recorded, got %d", names["lumos.snapshot.operations"])
		}
		if _, ok := names["lumos.snapshot.bytes"]; !ok {
			t.Error("Snapshot bytes not recorded when payload was written")
		}
	})

	t.Run("failed prune without payload", func(t *testing.T) {
		provider, reader := setupTestMeterProvider(t)
		defer provider.Shutdown(context.Background())

		m, err := NewOTelMetrics()
		if err != nil {
			t.Fatalf("NewOTelMetrics() error = %v", err)
		}

		m.RecordSnapshotOperation(context.Background(), "prune", time.Millisecond, 0, errors.New("database is locked"))

		names := collectMetricNames(t, reader)
		if names["lumos.snapshot.operations"] != 1 {
			t.Errorf("Expected 1 operation recorded, got %d", names["lumos.snapshot.operations"])
		}
		if _, ok := names["lumos.snapshot.bytes"]; ok {
			t.Error("Expected no bytes metric for empty payload")
		}
	})
}

// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// # Overview
//
// This package centralizes observability infrastructure for the lumos daemon
// and CLI: JSON logging, metrics collection, health checks, panic recovery,
// and distributed tracing integration.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.Infof("listening on %s", addr)
//
// Context-aware logging:
//
//	logger.WithField("schema", entryPath).WithError(err).Error("resolution failed")
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.ObserveResolution(elapsed, filesParsed, err)
//	metrics.CacheHitsTotal.WithLabelValues("resolution").Inc()
//
// Workspace gauges:
//
//	metrics.SchemasTracked.Set(float64(count))
//	metrics.SnapshotsStored.Set(float64(stored))
//
// # Health Checks
//
// Configure health checker:
//
//	checker := observability.NewHealthChecker(version, workspace, store.DB())
//	status := checker.Check(ctx)
//	fmt.Printf("status: %s\n", status.Status)
//
// The workspace prober gates readiness; the snapshot store only degrades it,
// since live resolution works without history.
//
// # OpenTelemetry
//
// Initialize tracing:
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:        true,
//		ServiceName:    "lumosd",
//		ServiceVersion: "1.0.0",
//		Endpoint:       "otel-collector:4317",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/server: Request logging and metrics middleware
package observability

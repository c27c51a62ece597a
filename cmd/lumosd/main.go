package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/getlumos/lumos-sub002/pkg/config"
	"github.com/getlumos/lumos-sub002/pkg/observability"
	"github.com/getlumos/lumos-sub002/pkg/server"
	"github.com/getlumos/lumos-sub002/pkg/snapshot"
	"github.com/getlumos/lumos-sub002/pkg/workspace"
)

// version is stamped by the release build.
var version = "dev"

func main() {
	// Load configuration from environment
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Both logs share one destination: the process log carries lifecycle
	// and scheduling messages, the component logger carries structured
	// engine activity.
	out := logOutput(cfg)
	procLog := setupProcessLogger(cfg, out)
	logger := observability.NewLogger(cfg.Observability.LogLevel, out)

	procLog.Infof("Starting lumosd %s", version)

	ctx := context.Background()

	// OpenTelemetry (no-op unless enabled)
	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		procLog.Fatalf("Failed to initialize OpenTelemetry: %v", err)
	}

	// Metrics
	var registry *prometheus.Registry
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		metrics = observability.NewMetrics(registry)
	}

	// Snapshot store
	store, err := snapshot.Open(cfg.Snapshot.Path, snapshot.Options{Metrics: metrics})
	if err != nil {
		procLog.Fatalf("Failed to open snapshot store: %v", err)
	}
	procLog.Infof("Snapshot store ready at %s", cfg.Snapshot.Path)

	// Workspace: the shared resolution cache every request goes through
	ws := workspace.New(workspace.Options{
		CacheSize: cfg.Workspace.CacheSize,
		CacheTTL:  cfg.Workspace.CacheTTL,
		Logger:    logger,
		Metrics:   metrics,
	})

	if len(cfg.Workspace.Roots) > 0 {
		if err := ws.Watch(ctx, cfg.Workspace.Roots, cfg.Workspace.WatchDebounce); err != nil {
			procLog.Fatalf("Failed to watch schema roots: %v", err)
		}
		procLog.Infof("Watching %d schema roots", len(cfg.Workspace.Roots))
	}

	// API server
	srv, err := server.New(server.Options{
		Workspace: ws,
		Snapshots: store,
		Logger:    logger,
		Metrics:   metrics,
		Registry:  registry,
		Version:   version,
	})
	if err != nil {
		procLog.Fatalf("Failed to create API server: %v", err)
	}

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Probe listener on its own port so orchestrator health checks skip
	// the API middleware chain.
	healthMux := http.NewServeMux()
	checker := observability.NewHealthChecker(version, ws, store.DB())
	observability.RegisterHealthRoutes(healthMux, checker)
	if registry != nil {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:      healthMux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Snapshot retention job
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Snapshot.RetentionSchedule, func() {
		pruned, err := store.PruneAll(context.Background(), cfg.Snapshot.RetentionKeep)
		if err != nil {
			procLog.Errorf("Snapshot retention failed: %v", err)
			return
		}
		if pruned > 0 {
			procLog.Infof("Snapshot retention pruned %d snapshots (keeping %d per schema)", pruned, cfg.Snapshot.RetentionKeep)
		}
	}); err != nil {
		procLog.Fatalf("Failed to schedule snapshot retention: %v", err)
	}
	scheduler.Start()
	procLog.Infof("Snapshot retention schedule: %s (keep %d per schema)", cfg.Snapshot.RetentionSchedule, cfg.Snapshot.RetentionKeep)

	// Shutdown wiring: listeners stop first, then components tear down.
	sm := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	sm.RegisterServer("api", apiServer)
	sm.RegisterServer("health", healthServer)
	sm.RegisterShutdownFunc("retention scheduler", func(ctx context.Context) error {
		select {
		case <-scheduler.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	sm.RegisterShutdownFunc("workspace", func(context.Context) error {
		return ws.Close()
	})
	sm.RegisterShutdownFunc("snapshot store", func(context.Context) error {
		return store.Close()
	})
	sm.RegisterShutdownFunc("opentelemetry", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	go func() {
		procLog.Infof("API listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			procLog.Fatalf("API server failed: %v", err)
		}
	}()
	go func() {
		procLog.Infof("Health listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			procLog.Fatalf("Health server failed: %v", err)
		}
	}()

	if err := sm.WaitForShutdown(); err != nil {
		procLog.Errorf("Shutdown finished with errors: %v", err)
		os.Exit(1)
	}
	procLog.Info("lumosd stopped")
}

// logOutput returns the shared log destination: a size-rotated file
// when configured, stderr otherwise.
func logOutput(cfg *config.Config) io.Writer {
	o := cfg.Observability
	if o.LogFile == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   o.LogFile,
		MaxSize:    o.LogMaxSizeMB,
		MaxBackups: o.LogMaxBackups,
		MaxAge:     o.LogMaxAgeDays,
		Compress:   true,
	}
}

// setupProcessLogger builds the daemon's lifecycle logger.
func setupProcessLogger(cfg *config.Config, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	if cfg.Observability.LogFile != "" {
		// Keep the rotated file single-format; component logs there are
		// JSON as well.
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	logger.SetLevel(logrusLevel(cfg.Observability.LogLevel))
	return logger
}

// logrusLevel maps the configured level onto logrus.
func logrusLevel(level observability.LogLevel) logrus.Level {
	switch level {
	case observability.DebugLevel:
		return logrus.DebugLevel
	case observability.WarnLevel:
		return logrus.WarnLevel
	case observability.ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/getlumos/lumos-sub002/pkg/observability"
)

// Config holds all daemon configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Workspace configuration
	Workspace WorkspaceConfig

	// Snapshot store configuration
	Snapshot SnapshotConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// WorkspaceConfig holds the long-lived resolution host settings
type WorkspaceConfig struct {
	// CacheSize is the maximum number of resolved schemas kept in the
	// fingerprint-keyed cache.
	CacheSize int

	// CacheTTL expires cached resolutions even when untouched.
	CacheTTL time.Duration

	// WatchDebounce coalesces bursts of filesystem events for the same
	// file into one invalidation.
	WatchDebounce time.Duration

	// Roots are the directories watched for schema changes.
	Roots []string
}

// SnapshotConfig holds the local snapshot store settings
type SnapshotConfig struct {
	// Path is the sqlite database file holding schema snapshots.
	Path string

	// RetentionSchedule is a cron expression for the pruning job.
	RetentionSchedule string

	// RetentionKeep is how many snapshots to keep per schema name when
	// pruning.
	RetentionKeep int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// LogFile enables rotating file logs when non-empty; stderr is used
	// otherwise.
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Workspace:     loadWorkspaceConfig(),
		Snapshot:      loadSnapshotConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("LUMOS_HOST", "127.0.0.1"),
		Port:            getEnv("LUMOS_PORT", "8820"),
		ReadTimeout:     getEnvDuration("LUMOS_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("LUMOS_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("LUMOS_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("LUMOS_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("LUMOS_HEALTH_PORT", "8821"),
	}
}

// loadWorkspaceConfig loads workspace configuration from environment
func loadWorkspaceConfig() WorkspaceConfig {
	cfg := WorkspaceConfig{
		CacheSize:     getEnvInt("LUMOS_CACHE_SIZE", 512),
		CacheTTL:      getEnvDuration("LUMOS_CACHE_TTL", 30*time.Minute),
		WatchDebounce: getEnvDuration("LUMOS_WATCH_DEBOUNCE", 300*time.Millisecond),
	}
	if roots := getEnv("LUMOS_WATCH_ROOTS", ""); roots != "" {
		for _, root := range strings.Split(roots, ",") {
			if root = strings.TrimSpace(root); root != "" {
				cfg.Roots = append(cfg.Roots, root)
			}
		}
	}
	return cfg
}

// loadSnapshotConfig loads snapshot store configuration from environment
func loadSnapshotConfig() SnapshotConfig {
	return SnapshotConfig{
		Path:              getEnv("LUMOS_SNAPSHOT_PATH", ".lumos/snapshots.db"),
		RetentionSchedule: getEnv("LUMOS_RETENTION_SCHEDULE", "0 3 * * *"),
		RetentionKeep:     getEnvInt("LUMOS_RETENTION_KEEP", 20),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("LUMOS_LOG_LEVEL", "info")),
		LogFile:            getEnv("LUMOS_LOG_FILE", ""),
		LogMaxSizeMB:       getEnvInt("LUMOS_LOG_MAX_SIZE_MB", 100),
		LogMaxBackups:      getEnvInt("LUMOS_LOG_MAX_BACKUPS", 3),
		LogMaxAgeDays:      getEnvInt("LUMOS_LOG_MAX_AGE_DAYS", 28),
		MetricsEnabled:     getEnvBool("LUMOS_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("LUMOS_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("LUMOS_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("LUMOS_OTEL_SERVICE_NAME", "lumosd"),
		OTelServiceVersion: getEnv("LUMOS_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("LUMOS_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate workspace config
	if c.Workspace.CacheSize <= 0 {
		return fmt.Errorf("workspace cache size must be positive")
	}

	// Validate snapshot config
	if c.Snapshot.Path == "" {
		return fmt.Errorf("snapshot store path is required")
	}
	if c.Snapshot.RetentionKeep < 1 {
		return fmt.Errorf("snapshot retention must keep at least one snapshot")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Package config provides daemon configuration from environment
// variables and the per-repository lumos.toml manifest.
//
// # Overview
//
// Two configuration surfaces live here. The daemon reads environment
// variables with sensible defaults for every setting. Projects carry a
// lumos.toml manifest next to their schemas; the CLI walks up from the
// working directory to find it, and every relative path inside it
// resolves against the manifest's own directory.
//
// # Environment Variables
//
// Server settings:
//
//	LUMOS_HOST="127.0.0.1"
//	LUMOS_PORT="8820"
//	LUMOS_HEALTH_PORT="8821"
//	LUMOS_READ_TIMEOUT="15s"
//	LUMOS_WRITE_TIMEOUT="15s"
//	LUMOS_SHUTDOWN_TIMEOUT="30s"
//
// Workspace settings:
//
//	LUMOS_CACHE_SIZE="512"
//	LUMOS_CACHE_TTL="30m"
//	LUMOS_WATCH_ROOTS="schemas,vendor/schemas"
//	LUMOS_WATCH_DEBOUNCE="300ms"
//
// Snapshot settings:
//
//	LUMOS_SNAPSHOT_PATH=".lumos/snapshots.db"
//	LUMOS_RETENTION_SCHEDULE="0 3 * * *"
//	LUMOS_RETENTION_KEEP="20"
//
// Observability settings:
//
//	LUMOS_LOG_LEVEL="info"  # debug, info, warn, error
//	LUMOS_LOG_FILE="/var/log/lumosd/lumosd.log"
//	LUMOS_METRICS_ENABLED="true"
//	LUMOS_OTEL_ENABLED="true"
//	LUMOS_OTEL_ENDPOINT="otel-collector:4317"
//
// # Project Manifest
//
// A minimal lumos.toml:
//
//	schema = "schemas/main.lum"
//	include = ["schemas"]
//	strict = false
//
//	[snapshots]
//	path = ".lumos/snapshots.db"
//	keep = 20
//
//	[emitters]
//	manifest_dir = ".lumos/emitters"
//
// Unknown keys are rejected at load time so typos fail loudly.
//
// # Usage Example
//
// Load daemon configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Locate and load the project manifest:
//
//	path, err := config.FindProject(".")
//	if err != nil {
//		log.Fatal(err)
//	}
//	project, err := config.LoadProject(path)
//
// # Related Packages
//
//   - pkg/workspace: Uses workspace configuration
//   - pkg/snapshot: Uses snapshot configuration
//   - pkg/observability: Uses observability configuration
package config

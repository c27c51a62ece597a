// Package cli provides the lumos command-line interface for schema work.
//
// # Overview
//
// This package implements the `lumos` tool developers run against .lum
// schemas: compatibility checks between versions, IR artifact builds for
// external emitters, migration plan derivation, and the local snapshot
// store.
//
// # Commands
//
// check: Compare two schema versions for binary compatibility
//
//	lumos check \
//		--from schemas/game.lum \
//		--to work/game.lum \
//		--format json \
//		--strict
//
// Exit codes: 0 when compatible, 1 when breaking changes were found,
// 2 when warnings were found under --strict. --source-diff appends a
// line diff of the two entry files.
//
// build: Resolve a schema and emit its IR artifact
//
//	lumos build --schema schemas/game.lum --out build/game.ir.json
//
// migrate: Derive a migration plan between two versions
//
//	lumos migrate \
//		--from schemas/game.lum \
//		--to work/game.lum \
//		--out build/game.plan.json \
//		--language typescript
//
// Plans with entries that cannot be defaulted mechanically are refused
// unless --force is passed; --dry-run prints the plan without writing.
//
// snapshot: Manage the local snapshot store
//
//	lumos snapshot push --schema schemas/game.lum
//	lumos snapshot list --name game
//	lumos snapshot prune --keep 10
//
// languages: List registered emitter manifests
//
//	lumos languages --manifests .lumos/emitters
//
// # Configuration
//
// Commands look for a lumos.toml manifest from the working directory
// upwards. It supplies the entry schema, the snapshot store path and
// retention, the emitter manifest directory, and the strict-mode
// default; explicit flags always win.
//
// # Related Packages
//
//   - pkg/resolver: loads and resolves schema files
//   - pkg/compat: diffs resolved schemas
//   - pkg/migrate: derives migration plans
//   - pkg/snapshot: the sqlite-backed snapshot store
//   - pkg/emitters: emitter manifest discovery
package cli

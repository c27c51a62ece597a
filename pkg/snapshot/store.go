// Package snapshot keeps the local history of published schema
// versions. Each push stores the resolved IR next to its declared
// version, so a working tree can be checked against what was last
// published without resolving the published sources again.
//
// The store is a single sqlite file in WAL mode. Versions within a
// name are ordered semantically, not by insertion: 1.10.0 is newer
// than 1.9.0.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/getlumos/lumos-sub002/pkg/compat"
	"github.com/getlumos/lumos-sub002/pkg/observability"
	"github.com/getlumos/lumos-sub002/pkg/resolver"
	_ "github.com/mattn/go-sqlite3" // sqlite driver
	"golang.org/x/mod/semver"
)

// ErrNotFound reports a snapshot lookup that matched nothing.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is one published version of a schema.
type Snapshot struct {
	// Name is the logical schema name snapshots are grouped under.
	Name string `json:"name"`
	// Version is the declared semantic version at push time.
	Version string `json:"version"`
	// TakenAt records when the snapshot was pushed.
	TakenAt time.Time `json:"taken_at"`
	// Source is the canonical entry path the snapshot was resolved from.
	Source string `json:"source"`
	// Schema is the resolved IR. List leaves it nil; Get and Latest
	// load it.
	Schema *resolver.Schema `json:"-"`
}

// Options configures optional store collaborators.
type Options struct {
	// Metrics receives per-operation counters and durations when set.
	Metrics *observability.Metrics
}

// Store is a local history of published schemas backed by one sqlite
// file.
type Store struct {
	db      *sql.DB
	path    string
	metrics *observability.Metrics
}

// Open opens the snapshot database at path, creating the file and its
// parent directory when missing. The caller must Close the store.
func Open(path string, opts Options) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping snapshot database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// WAL keeps readers unblocked while a push is in flight.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	store, err := New(db, opts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	store.path = path
	return store, nil
}

// New wraps an existing database handle and ensures the snapshot table
// exists. Most callers want Open; New serves callers that manage their
// own connection.
func New(db *sql.DB, opts Options) (*Store, error) {
	if db == nil {
		return nil, errors.New("database connection is required")
	}
	s := &Store{db: db, metrics: opts.Metrics}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("failed to ensure snapshot schema: %w", err)
	}
	return s, nil
}

// ensureSchema creates the snapshots table if it doesn't exist.
func (s *Store) ensureSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS snapshots (
		name     TEXT NOT NULL,
		version  TEXT NOT NULL,
		taken_at TEXT NOT NULL,
		source   TEXT NOT NULL,
		ir_json  TEXT NOT NULL,
		PRIMARY KEY (name, version)
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_name ON snapshots(name);
	`

	_, err := s.db.Exec(query)
	return err
}

// Save stores one snapshot, replacing any existing row with the same
// name and version. A zero TakenAt is stamped with the current time.
func (s *Store) Save(ctx context.Context, snap *Snapshot) (err error) {
	defer s.observe("save", time.Now(), &err)

	if snap.Name == "" {
		return errors.New("snapshot name is required")
	}
	if _, err := compat.ParseVersion(snap.Version); err != nil {
		return fmt.Errorf("snapshot %s: %w", snap.Name, err)
	}
	if snap.Schema == nil {
		return errors.New("snapshot schema is required")
	}
	if snap.TakenAt.IsZero() {
		snap.TakenAt = time.Now().UTC()
	}

	irJSON, err := json.Marshal(snap.Schema)
	if err != nil {
		return fmt.Errorf("failed to marshal schema IR: %w", err)
	}

	query := `
	INSERT INTO snapshots (name, version, taken_at, source, ir_json)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(name, version) DO UPDATE SET
		taken_at = excluded.taken_at,
		source = excluded.source,
		ir_json = excluded.ir_json
	`

	if _, err := s.db.ExecContext(ctx, query,
		snap.Name,
		snap.Version,
		snap.TakenAt.Format(time.RFC3339),
		snap.Source,
		string(irJSON),
	); err != nil {
		return fmt.Errorf("failed to save snapshot %s@%s: %w", snap.Name, snap.Version, err)
	}

	s.syncStoredGauge(ctx)
	return nil
}

// Get returns one snapshot with its resolved IR decoded. The error
// unwraps to ErrNotFound when no such version was pushed.
func (s *Store) Get(ctx context.Context, name, version string) (snap *Snapshot, err error) {
	defer s.observe("get", time.Now(), &err)
	return s.get(ctx, name, version)
}

func (s *Store) get(ctx context.Context, name, version string) (*Snapshot, error) {
	query := `
	SELECT name, version, taken_at, source, ir_json
	FROM snapshots
	WHERE name = ? AND version = ?
	`

	var snap Snapshot
	var takenAt, irJSON string
	err := s.db.QueryRowContext(ctx, query, name, version).Scan(
		&snap.Name,
		&snap.Version,
		&takenAt,
		&snap.Source,
		&irJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s@%s: %w", name, version, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot %s@%s: %w", name, version, err)
	}

	if t, err := time.Parse(time.RFC3339, takenAt); err == nil {
		snap.TakenAt = t
	}
	snap.Schema = &resolver.Schema{}
	if err := json.Unmarshal([]byte(irJSON), snap.Schema); err != nil {
		return nil, fmt.Errorf("failed to decode stored IR for %s@%s: %w", name, version, err)
	}
	return &snap, nil
}

// Latest returns the newest stored version of a schema by semantic
// version order. The error unwraps to ErrNotFound when the name has no
// snapshots.
func (s *Store) Latest(ctx context.Context, name string) (snap *Snapshot, err error) {
	defer s.observe("latest", time.Now(), &err)

	versions, err := s.versions(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return s.get(ctx, name, versions[0])
}

// List returns snapshot metadata grouped by name, newest version first
// within each name. The resolved IR is loaded only by Get and Latest.
// An empty name lists every schema.
func (s *Store) List(ctx context.Context, name string) (snaps []*Snapshot, err error) {
	defer s.observe("list", time.Now(), &err)

	query := `SELECT name, version, taken_at, source FROM snapshots`
	var args []interface{}
	if name != "" {
		query += ` WHERE name = ?`
		args = append(args, name)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var snap Snapshot
		var takenAt string
		if err := rows.Scan(&snap.Name, &snap.Version, &takenAt, &snap.Source); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, takenAt); err == nil {
			snap.TakenAt = t
		}
		snaps = append(snaps, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	sort.SliceStable(snaps, func(i, j int) bool {
		if snaps[i].Name != snaps[j].Name {
			return snaps[i].Name < snaps[j].Name
		}
		return semver.Compare(semverKey(snaps[i].Version), semverKey(snaps[j].Version)) > 0
	})
	return snaps, nil
}

// Prune deletes all but the newest retain versions of one schema,
// returning the number of snapshots removed. Retaining zero deletes
// the name's entire history.
func (s *Store) Prune(ctx context.Context, name string, retain int) (pruned int, err error) {
	defer s.observe("prune", time.Now(), &err)

	pruned, err = s.prune(ctx, name, retain)
	if pruned > 0 {
		s.syncStoredGauge(ctx)
	}
	return pruned, err
}

// PruneAll applies the retention limit to every schema name in the
// store. The daemon runs it on the retention schedule.
func (s *Store) PruneAll(ctx context.Context, retain int) (pruned int, err error) {
	defer s.observe("prune", time.Now(), &err)

	names, err := s.names(ctx)
	if err != nil {
		return 0, err
	}
	for _, name := range names {
		n, err := s.prune(ctx, name, retain)
		if err != nil {
			return pruned, err
		}
		pruned += n
	}
	if pruned > 0 {
		s.syncStoredGauge(ctx)
	}
	return pruned, nil
}

func (s *Store) prune(ctx context.Context, name string, retain int) (int, error) {
	if retain < 0 {
		return 0, fmt.Errorf("retain must be non-negative, got %d", retain)
	}

	versions, err := s.versions(ctx, name)
	if err != nil {
		return 0, err
	}
	if len(versions) <= retain {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	pruned := 0
	for _, version := range versions[retain:] {
		res, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE name = ? AND version = ?`, name, version)
		if err != nil {
			return 0, fmt.Errorf("failed to prune %s@%s: %w", name, version, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}
		pruned += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return pruned, nil
}

// Count returns the total number of stored snapshots across all names.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}

// versions returns every stored version of one schema, newest first by
// semantic version order.
func (s *Store) versions(ctx context.Context, name string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM snapshots WHERE name = ?`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions for %s: %w", name, err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating versions: %w", err)
	}

	sort.Slice(versions, func(i, j int) bool {
		return semver.Compare(semverKey(versions[i]), semverKey(versions[j])) > 0
	})
	return versions, nil
}

// names returns every distinct schema name in the store.
func (s *Store) names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT name FROM snapshots ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot names: %w", err)
	}
	return names, nil
}

// DB exposes the underlying handle so health checks can ping the
// store.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path, empty for stores built over an
// existing handle.
func (s *Store) Path() string {
	return s.path
}

// Close checkpoints the WAL and releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	// A failed checkpoint leaves the WAL to be replayed on the next
	// open.
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	err := s.db.Close()
	s.db = nil
	return err
}

// observe records one operation's outcome when metrics are configured.
func (s *Store) observe(operation string, start time.Time, errp *error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveSnapshot(operation, time.Since(start), *errp)
}

// syncStoredGauge refreshes the stored-snapshot gauge after a write.
func (s *Store) syncStoredGauge(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	if n, err := s.Count(ctx); err == nil {
		s.metrics.SnapshotsStored.Set(float64(n))
	}
}

// semverKey normalizes a stored version for golang.org/x/mod/semver,
// which requires the leading v.
func semverKey(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

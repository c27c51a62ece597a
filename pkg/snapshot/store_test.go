package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/getlumos/lumos-sub002/pkg/compat"
	"github.com/getlumos/lumos-sub002/pkg/observability"
	"github.com/getlumos/lumos-sub002/pkg/resolver"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSchema resolves an in-memory schema so stored IR carries real
// declarations.
func testSchema(t *testing.T, version string) *resolver.Schema {
	t.Helper()

	src := `struct Player {
    wallet: Key,
    level: u32,
}

enum GameEvent {
    Started,
    Scored(u64),
}
`
	if version != "" {
		src = "#[version(\"" + version + "\")]\n" + src
	}

	sch, _, err := resolver.NewResolver(resolver.MapLoader{"player.lum": src}).
		ResolveSchema(context.Background(), "player.lum")
	require.NoError(t, err)
	return sch
}

// testSnapshot builds a pushable snapshot for one version.
func testSnapshot(t *testing.T, name, version string) *Snapshot {
	t.Helper()
	return &Snapshot{
		Name:    name,
		Version: version,
		Source:  "player.lum",
		Schema:  testSchema(t, version),
	}
}

// newTestStore opens a file-backed fixture store. Each pooled
// connection would see its own empty database under :memory:, so
// fixtures use a real file.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), ".lumos", "snapshots.db"), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".lumos", "history", "snapshots.db")

	store, err := Open(path, Options{})
	require.NoError(t, err)
	defer store.Close()

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
	assert.Equal(t, path, store.Path())
	assert.NotNil(t, store.DB())
}

func TestStoreSaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	snap := testSnapshot(t, "player", "1.0.0")
	require.NoError(t, store.Save(ctx, snap))

	got, err := store.Get(ctx, "player", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "player", got.Name)
	assert.Equal(t, "1.0.0", got.Version)
	assert.Equal(t, "player.lum", got.Source)
	assert.WithinDuration(t, snap.TakenAt, got.TakenAt, time.Second)

	// The stored IR decodes back into a usable schema.
	require.NotNil(t, got.Schema)
	assert.Equal(t, "1.0.0", got.Schema.Version)
	assert.Equal(t, []string{"GameEvent", "Player"}, got.Schema.TypeNames())

	player, ok := got.Schema.Type("Player")
	require.True(t, ok)
	assert.Equal(t, []string{"wallet", "level"}, player.FieldNames())

	event, ok := got.Schema.Type("GameEvent")
	require.True(t, ok)
	require.Len(t, event.Variants, 2)
	assert.Equal(t, "Scored", event.Variants[1].Name)
}

func TestStoreSaveStampsTakenAt(t *testing.T) {
	store := newTestStore(t)

	snap := testSnapshot(t, "player", "1.0.0")
	require.True(t, snap.TakenAt.IsZero())

	require.NoError(t, store.Save(context.Background(), snap))
	assert.False(t, snap.TakenAt.IsZero())
}

func TestStoreSaveReplacesSameVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := testSnapshot(t, "player", "1.0.0")
	require.NoError(t, store.Save(ctx, first))

	second := testSnapshot(t, "player", "1.0.0")
	second.Source = "schemas/player.lum"
	require.NoError(t, store.Save(ctx, second))

	got, err := store.Get(ctx, "player", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "schemas/player.lum", got.Source)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStoreSaveRejectsInvalid(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Save(ctx, &Snapshot{Version: "1.0.0", Schema: testSchema(t, "1.0.0")})
	assert.ErrorContains(t, err, "name is required")

	err = store.Save(ctx, &Snapshot{Name: "player", Version: "not-a-version", Schema: testSchema(t, "")})
	var verr *compat.VersionFormatError
	assert.ErrorAs(t, err, &verr)

	err = store.Save(ctx, &Snapshot{Name: "player", Version: "1.0.0"})
	assert.ErrorContains(t, err, "schema is required")
}

func TestStoreGetNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "player", "9.9.9")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "player@9.9.9")
}

func TestStoreLatestSemverOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, v := range []string{"1.9.0", "1.10.0", "1.2.3"} {
		require.NoError(t, store.Save(ctx, testSnapshot(t, "player", v)))
	}

	// 1.10.0 is newest semantically even though 1.9.0 sorts after it
	// lexically.
	got, err := store.Latest(ctx, "player")
	require.NoError(t, err)
	assert.Equal(t, "1.10.0", got.Version)
	require.NotNil(t, got.Schema)
	assert.Equal(t, "1.10.0", got.Schema.Version)
}

func TestStoreLatestPrerelease(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSnapshot(t, "player", "1.9.0")))
	require.NoError(t, store.Save(ctx, testSnapshot(t, "player", "2.0.0-rc.1")))

	got, err := store.Latest(ctx, "player")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0-rc.1", got.Version)

	// The release outranks its own candidate.
	require.NoError(t, store.Save(ctx, testSnapshot(t, "player", "2.0.0")))
	got, err = store.Latest(ctx, "player")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", got.Version)
}

func TestStoreLatestNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Latest(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, v := range []string{"1.9.0", "1.10.0"} {
		require.NoError(t, store.Save(ctx, testSnapshot(t, "player", v)))
	}
	require.NoError(t, store.Save(ctx, testSnapshot(t, "arena", "0.3.0")))

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)

	// Names alphabetical, versions newest first within a name.
	assert.Equal(t, "arena", all[0].Name)
	assert.Equal(t, "1.10.0", all[1].Version)
	assert.Equal(t, "1.9.0", all[2].Version)

	// List carries metadata only.
	assert.Nil(t, all[1].Schema)
	assert.False(t, all[1].TakenAt.IsZero())

	named, err := store.List(ctx, "player")
	require.NoError(t, err)
	require.Len(t, named, 2)
	assert.Equal(t, "1.10.0", named[0].Version)

	empty, err := store.List(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStorePrune(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, v := range []string{"1.0.0", "1.9.0", "1.10.0", "2.0.0"} {
		require.NoError(t, store.Save(ctx, testSnapshot(t, "player", v)))
	}

	pruned, err := store.Prune(ctx, "player", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, pruned)

	left, err := store.List(ctx, "player")
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.Equal(t, "2.0.0", left[0].Version)
	assert.Equal(t, "1.10.0", left[1].Version)

	// Under the limit nothing is removed.
	pruned, err = store.Prune(ctx, "player", 10)
	require.NoError(t, err)
	assert.Zero(t, pruned)

	// Unknown names are a no-op.
	pruned, err = store.Prune(ctx, "ghost", 1)
	require.NoError(t, err)
	assert.Zero(t, pruned)

	_, err = store.Prune(ctx, "player", -1)
	assert.ErrorContains(t, err, "non-negative")
}

func TestStorePruneAll(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, v := range []string{"1.0.0", "1.1.0", "1.2.0"} {
		require.NoError(t, store.Save(ctx, testSnapshot(t, "player", v)))
	}
	for _, v := range []string{"0.1.0", "0.2.0"} {
		require.NoError(t, store.Save(ctx, testSnapshot(t, "arena", v)))
	}

	pruned, err := store.PruneAll(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, pruned)

	playerLatest, err := store.Latest(ctx, "player")
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", playerLatest.Version)

	arenaLatest, err := store.Latest(ctx, "arena")
	require.NoError(t, err)
	assert.Equal(t, "0.2.0", arenaLatest.Version)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStoreMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	store, err := Open(filepath.Join(t.TempDir(), "snapshots.db"), Options{Metrics: metrics})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSnapshot(t, "player", "1.0.0")))
	require.NoError(t, store.Save(ctx, testSnapshot(t, "player", "1.1.0")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.SnapshotOperationsTotal.WithLabelValues("save", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.SnapshotsStored))

	err = store.Save(ctx, &Snapshot{Name: "player", Version: "bogus", Schema: testSchema(t, "")})
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SnapshotOperationsTotal.WithLabelValues("save", "failure")))

	_, err = store.Latest(ctx, "player")
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SnapshotOperationsTotal.WithLabelValues("latest", "success")))

	pruned, err := store.Prune(ctx, "player", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SnapshotsStored))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SnapshotOperationsTotal.WithLabelValues("prune", "success")))
}

func TestStoreNewNilDB(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)
}

func TestStoreNewSchemaError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS snapshots").WillReturnError(errors.New("disk full"))

	_, err = New(db, Options{})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreSaveExecError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS snapshots").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO snapshots").WillReturnError(errors.New("database locked"))

	store, err := New(db, Options{})
	require.NoError(t, err)

	err = store.Save(context.Background(), testSnapshot(t, "player", "1.0.0"))
	assert.ErrorContains(t, err, "failed to save snapshot player@1.0.0")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGetQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS snapshots").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM snapshots").WillReturnError(errors.New("io error"))

	store, err := New(db, Options{})
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "player", "1.0.0")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGetCorruptIR(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS snapshots").WillReturnResult(sqlmock.NewResult(0, 0))

	rows := sqlmock.NewRows([]string{"name", "version", "taken_at", "source", "ir_json"}).
		AddRow("player", "1.0.0", time.Now().UTC().Format(time.RFC3339), "player.lum", "{not json")
	mock.ExpectQuery("SELECT (.+) FROM snapshots").WillReturnRows(rows)

	store, err := New(db, Options{})
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "player", "1.0.0")
	assert.ErrorContains(t, err, "failed to decode stored IR")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreLatestQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS snapshots").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM snapshots").WillReturnError(errors.New("io error"))

	store, err := New(db, Options{})
	require.NoError(t, err)

	_, err = store.Latest(context.Background(), "player")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreListQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS snapshots").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM snapshots").WillReturnError(errors.New("io error"))

	store, err := New(db, Options{})
	require.NoError(t, err)

	_, err = store.List(context.Background(), "")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorePruneDeleteError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS snapshots").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM snapshots").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("1.0.0").AddRow("1.1.0"))
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM snapshots").WillReturnError(errors.New("database locked"))
	mock.ExpectRollback()

	store, err := New(db, Options{})
	require.NoError(t, err)

	_, err = store.Prune(context.Background(), "player", 0)
	assert.ErrorContains(t, err, "failed to prune")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCountError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS snapshots").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM snapshots").WillReturnError(errors.New("broken"))

	store, err := New(db, Options{})
	require.NoError(t, err)

	_, err = store.Count(context.Background())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package emitters

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getlumos/lumos-sub002/pkg/resolver"
	"github.com/getlumos/lumos-sub002/pkg/schema"
)

// testIR builds a minimal resolved schema for artifact tests.
func testIR() *resolver.Schema {
	return &resolver.Schema{
		Version: "1.0.0",
		Types: map[string]*schema.TypeDecl{
			"Player": {
				Name: "Player",
				Kind: schema.KindStruct,
				Fields: []*schema.Field{
					{Name: "wallet", Type: &schema.TypeRef{Kind: schema.RefKey}},
					{Name: "score", Type: &schema.TypeRef{Kind: schema.RefPrimitive, Name: "u64"}},
				},
			},
		},
	}
}

// TestSaveArtifact_RoundTrip tests that a saved artifact loads back intact
func TestSaveArtifact_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "game.ir.json")

	artifact := &Artifact{
		Schema:      "schemas/game.lum",
		Version:     "1.0.0",
		Fingerprint: "deadbeef",
		Files:       []string{"schemas/game.lum", "schemas/items.lum"},
		IR:          testIR(),
	}

	err := SaveArtifact(path, artifact)
	require.NoError(t, err)
	// A zero GeneratedAt is stamped at save time.
	assert.False(t, artifact.GeneratedAt.IsZero())

	loaded, err := LoadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, "schemas/game.lum", loaded.Schema)
	assert.Equal(t, "1.0.0", loaded.Version)
	assert.Equal(t, "deadbeef", loaded.Fingerprint)
	assert.Equal(t, artifact.Files, loaded.Files)
	assert.True(t, artifact.GeneratedAt.Equal(loaded.GeneratedAt))

	require.NotNil(t, loaded.IR)
	assert.Equal(t, []string{"Player"}, loaded.IR.TypeNames())
	decl, ok := loaded.IR.Type("Player")
	require.True(t, ok)
	assert.Equal(t, "u64", decl.Fields[1].Type.Name)
}

// TestSaveArtifact_PreservesTimestamp tests that an explicit GeneratedAt is kept
func TestSaveArtifact_PreservesTimestamp(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "game.ir.json")

	taken := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	artifact := &Artifact{Schema: "game.lum", GeneratedAt: taken, IR: testIR()}

	require.NoError(t, SaveArtifact(path, artifact))

	loaded, err := LoadArtifact(path)
	require.NoError(t, err)
	assert.True(t, taken.Equal(loaded.GeneratedAt))
}

// TestLoadArtifact_NonexistentFile tests loading from a missing path
func TestLoadArtifact_NonexistentFile(t *testing.T) {
	loaded, err := LoadArtifact("/nonexistent/path/game.ir.json")
	assert.Error(t, err)
	assert.Nil(t, loaded)
	assert.Contains(t, err.Error(), "failed to read artifact")
}

// TestLoadArtifact_InvalidJSON tests loading a corrupt artifact
func TestLoadArtifact_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "broken.ir.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	loaded, err := LoadArtifact(path)
	assert.Error(t, err)
	assert.Nil(t, loaded)
	assert.Contains(t, err.Error(), "failed to parse artifact")
}

// TestLoadArtifact_MissingIR tests that an artifact without a resolved schema is rejected
func TestLoadArtifact_MissingIR(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "empty.ir.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"schema": "game.lum", "files": []}`), 0644))

	loaded, err := LoadArtifact(path)
	assert.Error(t, err)
	assert.Nil(t, loaded)
	assert.Contains(t, err.Error(), "artifact carries no resolved schema")
}

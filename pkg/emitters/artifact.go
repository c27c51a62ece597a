package emitters

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/getlumos/lumos-sub002/pkg/resolver"
)

// Artifact is the resolved-schema document handed to external emitters:
// the alias-free namespace plus enough provenance to trace the build
// that produced it. Emitters consume artifacts from disk and never call
// back into the engine.
type Artifact struct {
	// Schema is the canonical entry path the artifact was resolved from.
	Schema string `json:"schema"`
	// Version mirrors the IR's declared version for quick inspection.
	Version string `json:"version,omitempty"`
	// Fingerprint hashes the full file closure the IR was built from.
	Fingerprint string `json:"fingerprint,omitempty"`
	// GeneratedAt records when the artifact was written.
	GeneratedAt time.Time `json:"generated_at"`
	// Files lists the resolved closure in dependency-first order.
	Files []string `json:"files"`
	// IR is the resolved namespace emitters generate code from.
	IR *resolver.Schema `json:"ir"`
}

// LoadArtifact reads an artifact written by SaveArtifact.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("failed to parse artifact: %w", err)
	}
	if artifact.IR == nil {
		return nil, errors.New("artifact carries no resolved schema")
	}
	return &artifact, nil
}

// SaveArtifact writes an artifact as indented JSON, stamping
// GeneratedAt when unset.
func SaveArtifact(path string, artifact *Artifact) error {
	if artifact.GeneratedAt.IsZero() {
		artifact.GeneratedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}

	return nil
}

// Package emitters tracks the external code emitters a project has
// installed. Emitters are standalone programs that consume the IR and
// migration plan artifacts; this package only reads their yaml
// manifests and answers which emitter serves which target language.
// No emission happens here.
package emitters

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestFileName is the manifest file looked up inside an emitter
// directory.
const ManifestFileName = "emitter.yaml"

var semverRegex = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)

// Manifest describes one installed emitter.
type Manifest struct {
	Name               string            `yaml:"name" json:"name"`                               // Unique emitter name (e.g., "lumos-ts")
	Language           string            `yaml:"language" json:"language"`                       // Target language (e.g., "typescript")
	Version            string            `yaml:"version" json:"version"`                         // Semver
	Description        string            `yaml:"description" json:"description,omitempty"`       // Short description
	Command            string            `yaml:"command" json:"command,omitempty"`               // Program invoked with the artifact paths
	OutputExtension    string            `yaml:"output_extension" json:"output_extension"`       // Extension of generated files (e.g., ".ts")
	SupportsMigrations bool              `yaml:"supports_migrations" json:"supports_migrations"` // Whether the emitter consumes migration plans
	Metadata           map[string]string `yaml:"metadata" json:"metadata,omitempty"`             // Additional metadata
}

// ValidationError represents a manifest validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// LoadManifest loads and parses an emitter manifest from a file
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	return &manifest, nil
}

// LoadManifestFromDir loads an emitter manifest from a directory (looks for emitter.yaml)
func LoadManifestFromDir(dir string) (*Manifest, error) {
	manifestPath := filepath.Join(dir, ManifestFileName)
	return LoadManifest(manifestPath)
}

// SaveManifest saves an emitter manifest to a file
func SaveManifest(manifest *Manifest, path string) error {
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}

// ValidateManifest performs basic validation on an emitter manifest
func ValidateManifest(manifest *Manifest) []ValidationError {
	var errors []ValidationError

	// Required fields
	if manifest.Name == "" {
		errors = append(errors, ValidationError{
			Field:   "name",
			Message: "Emitter name is required",
		})
	}

	if manifest.Language == "" {
		errors = append(errors, ValidationError{
			Field:   "language",
			Message: "Target language is required",
		})
	}

	if manifest.Version == "" {
		errors = append(errors, ValidationError{
			Field:   "version",
			Message: "Version is required",
		})
	}

	if manifest.OutputExtension == "" {
		errors = append(errors, ValidationError{
			Field:   "output_extension",
			Message: "Output extension is required",
		})
	}

	// Validate semver format
	if manifest.Version != "" && !isValidSemver(manifest.Version) {
		errors = append(errors, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("Invalid semver format: %s", manifest.Version),
		})
	}

	// Validate extension format
	if manifest.OutputExtension != "" && !strings.HasPrefix(manifest.OutputExtension, ".") {
		errors = append(errors, ValidationError{
			Field:   "output_extension",
			Message: fmt.Sprintf("Output extension must start with a dot: %s", manifest.OutputExtension),
		})
	}

	return errors
}

// isValidSemver checks if a version string follows semantic versioning
func isValidSemver(version string) bool {
	return semverRegex.MatchString(version)
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ProjectFile is the manifest file name looked up from the working
// directory upwards.
const ProjectFile = "lumos.toml"

// ErrNoProject is returned when no manifest exists in the start
// directory or any parent.
var ErrNoProject = errors.New("no lumos.toml found")

// Project is the per-repository manifest. All relative paths inside it
// resolve against the manifest's own directory, not the process working
// directory.
type Project struct {
	Schema  string   `toml:"schema"`
	Include []string `toml:"include"`
	Strict  bool     `toml:"strict"`

	Snapshots SnapshotSection `toml:"snapshots"`
	Emitters  EmitterSection  `toml:"emitters"`

	dir string
}

// SnapshotSection configures the project-local snapshot store
type SnapshotSection struct {
	Path string `toml:"path"`
	Keep int    `toml:"keep"`
}

// EmitterSection configures emitter manifest discovery
type EmitterSection struct {
	ManifestDir string `toml:"manifest_dir"`
}

// LoadProject reads and validates a manifest file. Unknown keys are
// rejected so typos fail loudly instead of silently using defaults.
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project manifest: %w", err)
	}

	project := Project{
		Snapshots: SnapshotSection{Path: ".lumos/snapshots.db", Keep: 20},
		Emitters:  EmitterSection{ManifestDir: ".lumos/emitters"},
	}
	md, err := toml.Decode(string(data), &project)
	if err != nil {
		return nil, fmt.Errorf("parse project manifest: %w", err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown manifest keys: %s", strings.Join(keys, ", "))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve manifest path: %w", err)
	}
	project.dir = filepath.Dir(absPath)

	project.Schema = strings.TrimSpace(project.Schema)
	if project.Schema == "" {
		return nil, fmt.Errorf("schema is required")
	}
	if project.Snapshots.Keep < 1 {
		return nil, fmt.Errorf("snapshots.keep must be at least 1")
	}

	return &project, nil
}

// FindProject walks from startDir to the filesystem root looking for a
// manifest, returning its path.
func FindProject(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, ProjectFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoProject
		}
		dir = parent
	}
}

// Dir returns the directory containing the manifest.
func (p *Project) Dir() string {
	return p.dir
}

// SchemaPath returns the entry schema path resolved against the
// manifest directory.
func (p *Project) SchemaPath() string {
	return p.resolvePath(p.Schema)
}

// SnapshotPath returns the snapshot store path resolved against the
// manifest directory.
func (p *Project) SnapshotPath() string {
	return p.resolvePath(p.Snapshots.Path)
}

// ManifestDir returns the emitter manifest directory resolved against
// the manifest directory.
func (p *Project) ManifestDir() string {
	return p.resolvePath(p.Emitters.ManifestDir)
}

// IncludeRoots returns the include directories resolved against the
// manifest directory.
func (p *Project) IncludeRoots() []string {
	out := make([]string, 0, len(p.Include))
	for _, inc := range p.Include {
		out = append(out, p.resolvePath(inc))
	}
	return out
}

// resolvePath resolves a path relative to the manifest directory.
func (p *Project) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.dir, path)
}

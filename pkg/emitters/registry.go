package emitters

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/mod/semver"

	"github.com/getlumos/lumos-sub002/pkg/observability"
)

// ErrUnknownLanguage is returned when no registered emitter serves the
// requested target language.
var ErrUnknownLanguage = errors.New("no emitter registered for language")

// Registry holds the manifests of the installed emitters. Safe for
// concurrent use.
type Registry struct {
	dirs      []string
	mu        sync.RWMutex
	manifests map[string]*Manifest
	log       *observability.Logger
}

// NewRegistry creates a registry scanning the given manifest directories.
func NewRegistry(dirs []string, log *observability.Logger) *Registry {
	if log == nil {
		log = observability.NewLogger(observability.InfoLevel, nil)
	}

	return &Registry{
		dirs:      dirs,
		manifests: make(map[string]*Manifest),
		log:       log,
	}
}

// Discover scans the manifest directories and registers every valid
// manifest found. A directory entry is either an emitter directory
// containing emitter.yaml or a standalone yaml manifest file. Invalid
// manifests are logged and skipped.
func (r *Registry) Discover() ([]*Manifest, error) {
	var discovered []*Manifest

	for _, dir := range r.dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			r.log.Debugf("Emitter directory does not exist: %s", dir)
			continue
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			r.log.Warnf("Failed to read emitter directory %s: %v", dir, err)
			continue
		}

		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())

			var manifest *Manifest
			switch {
			case entry.IsDir():
				manifest, err = LoadManifestFromDir(path)
			case isManifestFile(entry.Name()):
				manifest, err = LoadManifest(path)
			default:
				continue
			}
			if err != nil {
				r.log.Warnf("Failed to load emitter manifest from %s: %v", path, err)
				continue
			}

			if err := r.Register(manifest); err != nil {
				r.log.Warnf("Failed to register emitter from %s: %v", path, err)
				continue
			}

			r.log.Infof("Registered emitter: %s v%s (%s)", manifest.Name, manifest.Version, manifest.Language)
			discovered = append(discovered, manifest)
		}
	}

	return discovered, nil
}

// Register adds a manifest to the registry after validating it
func (r *Registry) Register(manifest *Manifest) error {
	if manifest == nil {
		return fmt.Errorf("cannot register nil manifest")
	}

	if validationErrors := ValidateManifest(manifest); len(validationErrors) > 0 {
		return fmt.Errorf("manifest validation failed: %v", validationErrors)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.manifests[manifest.Name]; exists {
		return fmt.Errorf("emitter already registered: %s", manifest.Name)
	}

	r.manifests[manifest.Name] = manifest
	return nil
}

// Get retrieves a manifest by emitter name
func (r *Registry) Get(name string) (*Manifest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	manifest, exists := r.manifests[name]
	return manifest, exists
}

// ForLanguage returns the manifest serving the given target language.
// Language matching is case-insensitive. When several emitters target
// the same language the highest version wins, names breaking ties.
func (r *Registry) ForLanguage(language string) (*Manifest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Manifest
	for _, m := range r.manifests {
		if !strings.EqualFold(m.Language, language) {
			continue
		}
		if best == nil || preferred(m, best) {
			best = m
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%s: %w", language, ErrUnknownLanguage)
	}
	return best, nil
}

// List returns all registered manifests sorted by emitter name
func (r *Registry) List() []*Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Manifest, 0, len(r.manifests))
	for _, manifest := range r.manifests {
		result = append(result, manifest)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result
}

// Languages returns the distinct target languages served by the
// registered emitters, lowercased and sorted.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var result []string
	for _, manifest := range r.manifests {
		lang := strings.ToLower(manifest.Language)
		if _, ok := seen[lang]; ok {
			continue
		}
		seen[lang] = struct{}{}
		result = append(result, lang)
	}
	sort.Strings(result)

	return result
}

// Len returns the number of registered emitters
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.manifests)
}

// preferred reports whether a should win over b for the same language.
// Register validates versions, so both sides always compare.
func preferred(a, b *Manifest) bool {
	if c := semver.Compare(semverKey(a.Version), semverKey(b.Version)); c != 0 {
		return c > 0
	}
	return a.Name < b.Name
}

// semverKey adapts a manifest version for golang.org/x/mod/semver,
// which requires the leading v.
func semverKey(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// isManifestFile reports whether a directory entry name looks like a
// standalone manifest.
func isManifestFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}

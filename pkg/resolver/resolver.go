package resolver

import (
	"context"
	"os"
	"path/filepath"

	"github.com/getlumos/lumos-sub002/pkg/schema"
)

// SchemaExt is the schema file extension appended to import targets
// written without one.
const SchemaExt = ".lum"

// Loader loads raw schema source by canonical path.
type Loader interface {
	Load(path string) (string, error)
}

// DirLoader loads schema files from the filesystem.
type DirLoader struct{}

// Load reads the file at path
func (DirLoader) Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// MapLoader serves schema source from memory, keyed by cleaned path.
// Used by tests and by hosts that already hold file content.
type MapLoader map[string]string

// Load returns the source registered under path
func (m MapLoader) Load(path string) (string, error) {
	src, ok := m[filepath.ToSlash(path)]
	if !ok {
		return "", os.ErrNotExist
	}
	return src, nil
}

// ImportPath resolves an import target relative to the importing file:
// joined with the importer's directory, cleaned, extension appended
// when missing.
func ImportPath(fromFile, target string) string {
	if filepath.Ext(target) == "" {
		target += SchemaExt
	}
	joined := filepath.Join(filepath.Dir(fromFile), target)
	return filepath.ToSlash(filepath.Clean(joined))
}

// CanonicalPath normalizes an entry path the same way import targets
// are normalized, so cache keys and cycle traces agree.
func CanonicalPath(path string) string {
	if filepath.Ext(path) == "" {
		path += SchemaExt
	}
	return filepath.ToSlash(filepath.Clean(path))
}

// Resolver loads the transitive import closure of an entry schema.
// A Resolver is stateless; every Resolve call carries its own loading
// stack and parse cache, so concurrent calls are independent.
type Resolver struct {
	loader Loader
}

// NewResolver creates a Resolver reading through the given loader.
func NewResolver(loader Loader) *Resolver {
	return &Resolver{loader: loader}
}

// resolution is the per-call state of one Resolve: the loading stack,
// the parse cache, and the completed files in dependency-first order.
// Keeping it in an explicit object rather than global state makes one
// call's caches invisible to the next.
type resolution struct {
	loader  Loader
	cache   map[string]*schema.File
	stack   []string
	onStack map[string]bool
	order   []*schema.File
}

// Resolve loads entryPath and every file reachable from it through
// imports, depth-first in declaration order. The returned slice is in
// dependency-first order with the entry file last. Each file is parsed
// exactly once per call regardless of import fan-in. An import cycle
// fails with a CircularImportError carrying the full trace.
func (r *Resolver) Resolve(ctx context.Context, entryPath string) ([]*schema.File, error) {
	res := &resolution{
		loader:  r.loader,
		cache:   make(map[string]*schema.File),
		onStack: make(map[string]bool),
	}
	if err := res.load(ctx, CanonicalPath(entryPath)); err != nil {
		return nil, err
	}
	return res.order, nil
}

// ResolveSchema runs the full pipeline for one entry file: the
// transitive file set is loaded, aliases across all files are
// flattened, and the merged namespace is built and validated. The
// returned file list is the same dependency-first order Resolve
// produces.
func (r *Resolver) ResolveSchema(ctx context.Context, entryPath string) (*Schema, []*schema.File, error) {
	files, err := r.Resolve(ctx, entryPath)
	if err != nil {
		return nil, nil, err
	}

	var aliasDecls []*schema.AliasDecl
	for _, f := range files {
		aliasDecls = append(aliasDecls, f.Aliases...)
	}
	aliases, err := ResolveAliases(aliasDecls)
	if err != nil {
		return nil, nil, err
	}

	built, err := Build(files, aliases)
	if err != nil {
		return nil, nil, err
	}
	return built, files, nil
}

// load parses one file and recurses into its imports. The loading
// stack, not call-stack depth, carries cycle state so the trace can be
// reconstructed from visiting order.
func (res *resolution) load(ctx context.Context, path string) error {
	// Cancellation checkpoint before each file load so a superseding
	// request can abandon stale work.
	if err := ctx.Err(); err != nil {
		return err
	}

	if res.onStack[path] {
		return &CircularImportError{Cycle: res.cycleTrace(path)}
	}
	if _, ok := res.cache[path]; ok {
		return nil
	}

	src, err := res.loader.Load(path)
	if err != nil {
		return &IOError{Path: path, Err: err}
	}
	file, err := schema.ParseFile(path, src)
	if err != nil {
		return err
	}
	res.cache[path] = file

	res.stack = append(res.stack, path)
	res.onStack[path] = true

	for _, imp := range file.Imports {
		if err := res.load(ctx, ImportPath(path, imp.Target)); err != nil {
			return err
		}
	}

	res.stack = res.stack[:len(res.stack)-1]
	res.onStack[path] = false

	res.order = append(res.order, file)
	return nil
}

// cycleTrace returns the loading-stack suffix starting at the
// re-entered file, with that file repeated at the end.
func (res *resolution) cycleTrace(path string) []string {
	start := 0
	for i, p := range res.stack {
		if p == path {
			start = i
			break
		}
	}
	trace := make([]string, 0, len(res.stack)-start+1)
	trace = append(trace, res.stack[start:]...)
	trace = append(trace, path)
	return trace
}

// Package workspace hosts the resolution engine for a long-lived
// process: one shared cache of resolved schemas across requests, file
// level invalidation through a reverse dependency index, and an
// optional filesystem watcher feeding that invalidation automatically.
//
// The shared cache is keyed by (entry path, closure fingerprint), so a
// hit is only served when every file of the previously resolved closure
// still reads back byte-identical. Compatibility checks resolve both
// sides on isolated resolvers and never consult the shared cache, so
// the two passes cannot see mixed state.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/getlumos/lumos-sub002/pkg/compat"
	"github.com/getlumos/lumos-sub002/pkg/observability"
	"github.com/getlumos/lumos-sub002/pkg/resolver"
	"github.com/getlumos/lumos-sub002/pkg/schema"
)

const (
	// DefaultCacheSize bounds the shared cache when Options does not.
	DefaultCacheSize = 512
	// DefaultCacheTTL expires cached resolutions even when untouched.
	DefaultCacheTTL = 30 * time.Minute
	// DefaultWatchDebounce coalesces bursts of events for one file.
	DefaultWatchDebounce = 300 * time.Millisecond

	// resolutionCacheName labels cache metrics for this workspace.
	resolutionCacheName = "resolution"
)

// ErrClosed is returned by operations on a closed workspace.
var ErrClosed = errors.New("workspace closed")

// Options configures a Workspace.
type Options struct {
	// Loader reads schema source. Defaults to the filesystem.
	Loader resolver.Loader
	// CacheSize is the maximum number of resolved schemas kept.
	CacheSize int
	// CacheTTL bounds how long an untouched resolution stays cached.
	CacheTTL time.Duration
	// Logger receives resolution and invalidation activity.
	Logger *observability.Logger
	// Metrics, when set, records cache, watcher and resolution metrics.
	Metrics *observability.Metrics
}

// tracked is the per-entry bookkeeping behind invalidation: the file
// closure of the last successful resolution and its fingerprint.
type tracked struct {
	files       []string
	fingerprint string
}

// Workspace owns the shared resolution cache for one project and keeps
// it consistent as files change. Safe for concurrent use.
type Workspace struct {
	loader   resolver.Loader
	resolver *resolver.Resolver
	cache    *resolutionCache
	logger   *observability.Logger
	metrics  *observability.Metrics

	mu         sync.Mutex
	entries    map[string]*tracked
	dependents map[string]map[string]struct{}
	closed     bool

	watcher   *FileWatcher
	watchStop context.CancelFunc
	watchWG   sync.WaitGroup
}

// New creates a Workspace ready to resolve schemas.
func New(opts Options) *Workspace {
	if opts.Loader == nil {
		opts.Loader = resolver.DirLoader{}
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	return &Workspace{
		loader:     opts.Loader,
		resolver:   resolver.NewResolver(opts.Loader),
		cache:      newResolutionCache(opts.CacheSize, opts.CacheTTL),
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		entries:    make(map[string]*tracked),
		dependents: make(map[string]map[string]struct{}),
	}
}

// Resolve returns the fully resolved schema for entryPath, serving from
// the shared cache when the entry's file closure is unchanged on disk.
func (w *Workspace) Resolve(ctx context.Context, entryPath string) (*Resolution, error) {
	path := resolver.CanonicalPath(entryPath)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrClosed
	}
	var closure []string
	if known := w.entries[path]; known != nil {
		closure = append([]string(nil), known.files...)
	}
	w.mu.Unlock()

	if res := w.lookup(path, closure); res != nil {
		if w.metrics != nil {
			w.metrics.CacheHitsTotal.WithLabelValues(resolutionCacheName).Inc()
		}
		w.logger.WithFields(map[string]interface{}{
			"schema": path,
			"run_id": res.RunID,
		}).Debug("resolution served from cache")
		return res, nil
	}
	if w.metrics != nil {
		w.metrics.CacheMissesTotal.WithLabelValues(resolutionCacheName).Inc()
	}

	return w.resolveFresh(ctx, path)
}

// lookup serves path from the cache if the known closure still hashes
// to a cached fingerprint. Rehashing reads file bytes but parses
// nothing. A nil return means the caller must resolve fresh.
func (w *Workspace) lookup(path string, closure []string) *Resolution {
	if len(closure) == 0 {
		w.cache.recordMiss()
		return nil
	}

	fingerprint, err := fingerprintPaths(w.loader, closure)
	if err != nil {
		w.cache.recordMiss()
		return nil
	}

	res, ok := w.cache.get(cacheKey(path, fingerprint))
	if !ok {
		return nil
	}

	// Hand out a copy so the cached record itself never reads as
	// cache-served.
	out := *res
	out.Cached = true
	return &out
}

// resolveFresh runs the full pipeline and indexes the result for
// invalidation. Every run gets its own id so concurrent resolutions
// stay distinguishable in logs.
func (w *Workspace) resolveFresh(ctx context.Context, path string) (*Resolution, error) {
	runID := uuid.New().String()
	log := w.logger.WithFields(map[string]interface{}{
		"run_id": runID,
		"schema": path,
	})

	start := time.Now()
	built, files, err := w.resolver.ResolveSchema(observability.WithSchema(ctx, path), path)
	duration := time.Since(start)
	if w.metrics != nil {
		w.metrics.ObserveResolution(duration, len(files), err)
	}
	if err != nil {
		if w.metrics != nil {
			w.metrics.ResolutionErrorsTotal.WithLabelValues(resolutionStage(err)).Inc()
		}
		log.WithError(err).Error("schema resolution failed")
		return nil, err
	}

	res := &Resolution{
		Path:        path,
		Fingerprint: Fingerprint(files),
		Schema:      built,
		Files:       files,
		RunID:       runID,
		ResolvedAt:  start,
		Duration:    duration,
	}
	w.store(res)

	log.WithFields(map[string]interface{}{
		"files":       len(files),
		"types":       built.Len(),
		"duration_ms": duration.Milliseconds(),
	}).Info("schema resolved")
	return res, nil
}

// resolutionStage classifies a resolution failure for the per-stage
// error counter.
func resolutionStage(err error) string {
	var (
		ioErr    *resolver.IOError
		parseErr *schema.ParseError
		impErr   *resolver.CircularImportError
		aliasErr *resolver.CircularAliasError
		valErrs  *resolver.ValidationErrors
	)
	switch {
	case errors.As(err, &ioErr):
		return "io"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &impErr), errors.As(err, &aliasErr):
		return "resolve"
	case errors.As(err, &valErrs):
		return "validate"
	default:
		return "other"
	}
}

// store indexes a fresh resolution: the entry's closure mapping, the
// reverse dependency index, and the cache slot itself.
func (w *Workspace) store(res *Resolution) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	// Retire the previous closure mapping before indexing the new one;
	// imports may have been added or removed since the last run.
	w.forgetLocked(res.Path)

	files := make([]string, len(res.Files))
	for i, f := range res.Files {
		files[i] = f.Path
	}
	w.entries[res.Path] = &tracked{files: files, fingerprint: res.Fingerprint}
	for _, file := range files {
		deps := w.dependents[file]
		if deps == nil {
			deps = make(map[string]struct{})
			w.dependents[file] = deps
		}
		deps[res.Path] = struct{}{}
	}
	w.cache.add(cacheKey(res.Path, res.Fingerprint), res)

	w.syncGaugesLocked()
}

// forgetLocked drops one entry's cache slot and unlinks it from the
// reverse dependency index. Caller holds w.mu.
func (w *Workspace) forgetLocked(path string) {
	t := w.entries[path]
	if t == nil {
		return
	}

	w.cache.remove(cacheKey(path, t.fingerprint))
	for _, file := range t.files {
		deps := w.dependents[file]
		if deps == nil {
			continue
		}
		delete(deps, path)
		if len(deps) == 0 {
			delete(w.dependents, file)
		}
	}
	delete(w.entries, path)
}

// syncGaugesLocked pushes entry counts to the metrics gauges. Caller
// holds w.mu.
func (w *Workspace) syncGaugesLocked() {
	if w.metrics == nil {
		return
	}
	w.metrics.CacheEntries.WithLabelValues(resolutionCacheName).Set(float64(w.cache.len()))
	w.metrics.SchemasTracked.Set(float64(len(w.entries)))
}

// Invalidate drops every cached resolution whose closure contains path
// and returns the affected entry paths, sorted. Editing one shared
// import re-resolves only the schemas that actually use it.
func (w *Workspace) Invalidate(path string) []string {
	canon := resolver.CanonicalPath(path)

	w.mu.Lock()
	deps := w.dependents[canon]
	invalidated := make([]string, 0, len(deps))
	for entry := range deps {
		invalidated = append(invalidated, entry)
	}
	sort.Strings(invalidated)
	for _, entry := range invalidated {
		w.forgetLocked(entry)
	}
	if w.metrics != nil && len(invalidated) > 0 {
		w.metrics.CacheEvictionsTotal.WithLabelValues(resolutionCacheName, "invalidated").Add(float64(len(invalidated)))
	}
	w.syncGaugesLocked()
	w.mu.Unlock()

	if len(invalidated) > 0 {
		w.logger.WithFields(map[string]interface{}{
			"file":    canon,
			"schemas": len(invalidated),
		}).Debug("invalidated dependent schemas")
	}
	return invalidated
}

// Dependents returns the entry schemas whose closure includes path,
// sorted. An entry schema is always a dependent of its own file.
func (w *Workspace) Dependents(path string) []string {
	canon := resolver.CanonicalPath(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	deps := w.dependents[canon]
	out := make([]string, 0, len(deps))
	for entry := range deps {
		out = append(out, entry)
	}
	sort.Strings(out)
	return out
}

// Tracked returns the entry paths with an indexed resolution, sorted.
func (w *Workspace) Tracked() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]string, 0, len(w.entries))
	for path := range w.entries {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// Check resolves two entry schemas and diffs them for compatibility.
// Each side runs on its own resolver with its own parse state and the
// shared cache is not consulted, so a check comparing two revisions of
// overlapping files can never see mixed state.
func (w *Workspace) Check(ctx context.Context, fromPath, toPath string) (*compat.Report, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrClosed
	}
	w.mu.Unlock()

	var fromSchema, toSchema *resolver.Schema
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, _, err := resolver.NewResolver(w.loader).ResolveSchema(gctx, fromPath)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", fromPath, err)
		}
		fromSchema = s
		return nil
	})
	g.Go(func() error {
		s, _, err := resolver.NewResolver(w.loader).ResolveSchema(gctx, toPath)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", toPath, err)
		}
		toSchema = s
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	start := time.Now()
	report, err := compat.Diff(fromSchema, toSchema)
	if err != nil {
		return nil, err
	}
	if w.metrics != nil {
		breaking, warnings, infos := report.Counts()
		w.metrics.ObserveDiff(time.Since(start), report.IsCompatible, breaking, warnings, infos)
	}
	return report, nil
}

// Watch starts filesystem monitoring over roots and feeds debounced
// invalidation from the resulting events. Editors often write a file
// several times in quick succession; events for one path collapse into
// a single invalidation once the file has been quiet for the debounce
// interval.
func (w *Workspace) Watch(ctx context.Context, roots []string, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if w.watcher != nil {
		return fmt.Errorf("workspace already watching")
	}

	fw, err := NewFileWatcher()
	if err != nil {
		return err
	}
	if err := fw.Start(roots...); err != nil {
		fw.Stop()
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.watcher = fw
	w.watchStop = cancel
	w.watchWG.Add(1)
	go w.pumpInvalidations(watchCtx, fw, debounce)

	w.logger.WithFields(map[string]interface{}{
		"roots":    len(roots),
		"debounce": debounce.String(),
	}).Info("watching schema roots")
	return nil
}

// pumpInvalidations drains watcher events into a debounce queue and
// invalidates dependents once a file has been quiet for the debounce
// interval.
func (w *Workspace) pumpInvalidations(ctx context.Context, fw *FileWatcher, debounce time.Duration) {
	defer w.watchWG.Done()
	defer observability.RecoverPanic(w.logger, "watch invalidation pump")

	pending := make(map[string]time.Time) // path -> last event time
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events():
			if !ok {
				return
			}
			if w.metrics != nil {
				w.metrics.WatcherEventsTotal.WithLabelValues(event.Op.String()).Inc()
			}
			pending[event.Path] = time.Now()

		case err, ok := <-fw.Errors():
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("file watcher error")

		case <-ticker.C:
			now := time.Now()
			for path, queuedAt := range pending {
				// Only process once the file has been quiet long enough
				if now.Sub(queuedAt) < debounce {
					continue
				}
				delete(pending, path)

				invalidated := w.Invalidate(path)
				if w.metrics != nil && len(invalidated) > 0 {
					w.metrics.WatcherInvalidationsTotal.Add(float64(len(invalidated)))
				}
			}
		}
	}
}

// Probe reports whether the workspace can serve resolutions. It
// implements the health checker's prober contract: healthy while open
// and, once watching was requested, while the watcher still runs.
func (w *Workspace) Probe(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if w.watcher != nil && !w.watcher.IsRunning() {
		return errors.New("file watcher stopped")
	}
	return nil
}

// Stats summarizes shared cache effectiveness and how many entry
// schemas the workspace currently tracks.
type Stats struct {
	Hits      int64
	Misses    int64
	HitRate   float64
	ItemCount int64
	Tracked   int
}

// Stats returns a point-in-time snapshot of cache statistics.
func (w *Workspace) Stats() *Stats {
	w.mu.Lock()
	tracked := len(w.entries)
	w.mu.Unlock()

	stats := &Stats{
		Hits:      w.cache.metrics.getHits(),
		Misses:    w.cache.metrics.getMisses(),
		ItemCount: int64(w.cache.len()),
		Tracked:   tracked,
	}

	// Calculate hit rate
	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}

	return stats
}

// Close stops watching, drops all state and rejects further work.
func (w *Workspace) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	fw := w.watcher
	cancel := w.watchStop
	w.watcher = nil
	w.watchStop = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	if fw != nil {
		err = fw.Stop()
	}
	w.watchWG.Wait()

	w.mu.Lock()
	w.entries = make(map[string]*tracked)
	w.dependents = make(map[string]map[string]struct{})
	w.cache.purge()
	w.syncGaugesLocked()
	w.mu.Unlock()

	return err
}

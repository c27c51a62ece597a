package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/getlumos/lumos-sub002/pkg/resolver"
	"github.com/getlumos/lumos-sub002/pkg/schema"
)

// Resolution is one fully resolved entry schema together with the
// provenance needed to cache and invalidate it.
type Resolution struct {
	// Path is the canonical entry path the resolution started from.
	Path string
	// Fingerprint is the sha256 digest of the resolved file closure.
	Fingerprint string
	// Schema is the merged, validated namespace.
	Schema *resolver.Schema
	// Files is the import closure in dependency-first order.
	Files []*schema.File
	// RunID correlates the log lines emitted while this resolution ran.
	RunID string
	// Cached reports whether this result was served from the shared
	// cache rather than resolved fresh.
	Cached bool

	ResolvedAt time.Time
	Duration   time.Duration
}

// Fingerprint digests a resolved file closure.
//
// Files are hashed in sorted path order so the digest is independent of
// resolution order: path + \0 + source + \0 for each file, hex encoded.
// Changing this algorithm invalidates every cached resolution.
func Fingerprint(files []*schema.File) string {
	sorted := make([]*schema.File, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Path < sorted[j].Path
	})

	hasher := sha256.New()
	for _, file := range sorted {
		hasher.Write([]byte(file.Path))
		hasher.Write([]byte{0}) // Separator
		hasher.Write([]byte(file.Source))
		hasher.Write([]byte{0})
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// fingerprintPaths rehashes a known closure straight from the loader,
// without parsing anything. The digest matches Fingerprint exactly when
// every file still reads back byte-identical. Any load failure means
// the closure can no longer be trusted as cached.
func fingerprintPaths(loader resolver.Loader, paths []string) (string, error) {
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	hasher := sha256.New()
	for _, path := range sorted {
		source, err := loader.Load(path)
		if err != nil {
			return "", err
		}
		hasher.Write([]byte(path))
		hasher.Write([]byte{0})
		hasher.Write([]byte(source))
		hasher.Write([]byte{0})
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// cacheKey joins entry path and closure fingerprint into one cache key.
// Both components participate so an edited file can never serve a stale
// schema, even before invalidation catches up.
func cacheKey(path, fingerprint string) string {
	return path + ":" + fingerprint
}

// resolutionCache is the shared LRU of resolved schemas. Entries expire
// after the configured TTL even when never invalidated.
type resolutionCache struct {
	cache   *lru.LRU[string, *Resolution]
	metrics *cacheMetrics
}

func newResolutionCache(maxEntries int, ttl time.Duration) *resolutionCache {
	if maxEntries < 10 {
		maxEntries = 10 // Minimum 10 entries
	}

	return &resolutionCache{
		cache:   lru.NewLRU[string, *Resolution](maxEntries, nil, ttl),
		metrics: newCacheMetrics(),
	}
}

func (c *resolutionCache) get(key string) (*Resolution, bool) {
	res, ok := c.cache.Get(key)
	if !ok {
		c.metrics.recordMiss()
		return nil, false
	}

	c.metrics.recordHit()
	return res, true
}

func (c *resolutionCache) add(key string, res *Resolution) {
	c.cache.Add(key, res)
}

func (c *resolutionCache) remove(key string) {
	c.cache.Remove(key)
}

// recordMiss counts lookups that never reached the LRU, such as an
// entry with no known closure yet.
func (c *resolutionCache) recordMiss() {
	c.metrics.recordMiss()
}

func (c *resolutionCache) len() int {
	return c.cache.Len()
}

func (c *resolutionCache) purge() {
	c.cache.Purge()
}

// cacheMetrics tracks cache hit and miss counts.
type cacheMetrics struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func newCacheMetrics() *cacheMetrics {
	return &cacheMetrics{}
}

func (m *cacheMetrics) recordHit() {
	m.hits.Add(1)
}

func (m *cacheMetrics) recordMiss() {
	m.misses.Add(1)
}

func (m *cacheMetrics) getHits() int64 {
	return m.hits.Load()
}

func (m *cacheMetrics) getMisses() int64 {
	return m.misses.Load()
}

package server

import (
	"github.com/getlumos/lumos-sub002/pkg/resolver"
	"github.com/getlumos/lumos-sub002/pkg/snapshot"
)

// ResolveRequest asks for one entry schema to be resolved.
type ResolveRequest struct {
	Schema string `json:"schema"`
}

// ResolveResponse carries the resolved IR and its provenance. Files is
// the import closure in dependency-first order.
type ResolveResponse struct {
	Schema      string           `json:"schema"`
	Fingerprint string           `json:"fingerprint"`
	RunID       string           `json:"run_id"`
	Cached      bool             `json:"cached"`
	DurationMS  float64          `json:"duration_ms"`
	Files       []string         `json:"files"`
	IR          *resolver.Schema `json:"ir"`
}

// CheckRequest asks for a compatibility diff between two entry schemas.
type CheckRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// InvalidateRequest drops cached resolutions depending on one file.
type InvalidateRequest struct {
	Path string `json:"path"`
}

// InvalidateResponse lists the entry schemas whose cached resolution
// was dropped.
type InvalidateResponse struct {
	Path        string   `json:"path"`
	Invalidated []string `json:"invalidated"`
	Count       int      `json:"count"`
}

// ListSchemasResponse is the snapshot metadata listing.
type ListSchemasResponse struct {
	Snapshots []*snapshot.Snapshot `json:"snapshots"`
	Count     int                  `json:"count"`
}

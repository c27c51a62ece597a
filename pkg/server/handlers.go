package server

import (
	"errors"
	"net/http"

	"github.com/getlumos/lumos-sub002/pkg/compat"
	"github.com/getlumos/lumos-sub002/pkg/httputil"
	"github.com/getlumos/lumos-sub002/pkg/observability"
	"github.com/getlumos/lumos-sub002/pkg/resolver"
	"github.com/getlumos/lumos-sub002/pkg/snapshot"
	"github.com/getlumos/lumos-sub002/pkg/workspace"
)

// resolveSchema handles POST /v1/resolve
func (s *Server) resolveSchema(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Schema, "schema") {
		return
	}

	res, err := s.workspace.Resolve(r.Context(), req.Schema)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	files := make([]string, len(res.Files))
	for i, f := range res.Files {
		files[i] = f.Path
	}

	httputil.WriteSuccess(w, ResolveResponse{
		Schema:      res.Path,
		Fingerprint: res.Fingerprint,
		RunID:       res.RunID,
		Cached:      res.Cached,
		DurationMS:  float64(res.Duration.Microseconds()) / 1000.0,
		Files:       files,
		IR:          res.Schema,
	})
}

// checkCompatibility handles POST /v1/check. Breaking findings are a
// normal 200 result; only structural failures produce error statuses.
func (s *Server) checkCompatibility(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.From, "from") {
		return
	}
	if !httputil.RequireNonEmpty(w, req.To, "to") {
		return
	}

	report, err := s.workspace.Check(r.Context(), req.From, req.To)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, compat.NewDocument(report))
}

// invalidatePath handles POST /v1/invalidate
func (s *Server) invalidatePath(w http.ResponseWriter, r *http.Request) {
	var req InvalidateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Path, "path") {
		return
	}

	invalidated := s.workspace.Invalidate(req.Path)

	s.requestLogger(r).WithFields(map[string]interface{}{
		"request_id": httputil.RequestID(r),
		"file":       req.Path,
		"schemas":    len(invalidated),
	}).Info("invalidation requested")

	httputil.WriteSuccess(w, InvalidateResponse{
		Path:        resolver.CanonicalPath(req.Path),
		Invalidated: invalidated,
		Count:       len(invalidated),
	})
}

// listSchemas handles GET /v1/schemas
func (s *Server) listSchemas(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		httputil.WriteServiceUnavailable(w, "snapshot store not configured")
		return
	}

	name := httputil.ParseQueryString(r, "name", "")
	limit, err := httputil.ParseQueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	snaps, err := s.snapshots.List(r.Context(), name)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if limit > 0 && len(snaps) > limit {
		snaps = snaps[:limit]
	}
	if snaps == nil {
		snaps = []*snapshot.Snapshot{}
	}

	httputil.WriteSuccess(w, ListSchemasResponse{
		Snapshots: snaps,
		Count:     len(snaps),
	})
}

// requestLogger returns the server logger enriched with the request's
// trace context when tracing is active.
func (s *Server) requestLogger(r *http.Request) *observability.Logger {
	return observability.UpdateLoggerWithTraceContext(r.Context(), s.logger)
}

// writeEngineError maps engine failures to HTTP statuses. Schema
// problems (parse failures, unresolved imports, cycles) are the
// caller's data, not server faults.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	s.requestLogger(r).WithError(err).WithFields(map[string]interface{}{
		"request_id": httputil.RequestID(r),
		"path":       r.URL.Path,
	}).Warn("engine request failed")

	if errors.Is(err, workspace.ErrClosed) {
		httputil.WriteServiceUnavailable(w, err.Error())
		return
	}
	httputil.WriteErrorMessage(w, http.StatusUnprocessableEntity, err.Error())
}

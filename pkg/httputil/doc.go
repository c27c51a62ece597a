// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteSuccess(w, data)
//	httputil.WriteBadRequest(w, "Invalid input")
//	httputil.WriteInternalError(w, err)
//
// # Request Parsing
//
//	var req ResolveRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
//	limit := httputil.ParseQueryInt(r, "limit", 20)
//	name := httputil.ParseQueryString(r, "name", "")
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		observability.HTTPMetricsMiddleware(metrics),
//	)(router)
package httputil

package httputil

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/getlumos/lumos-sub002/pkg/observability"
)

// RequestIDHeader carries the request ID in both directions: honored
// when the client sets it, generated otherwise.
const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware tags each request with a unique ID and stores it
// in the request context so handler logs correlate with the response
// header.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := observability.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the ID assigned to the request, or empty when the
// middleware did not run.
func RequestID(r *http.Request) string {
	return observability.GetRequestID(r.Context())
}

// Chain chains multiple middleware together
func Chain(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

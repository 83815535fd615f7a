// Package middleware holds HTTP middleware shared by the API server.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// contextKey is a private type so context values set here cannot collide
// with other packages.
type contextKey string

const requestIDKey contextKey = "request_id"

// headerRequestID is the header the request ID travels in, both directions.
const headerRequestID = "X-Request-ID"

// RequestID tags every request with an ID for log correlation. A client-
// supplied X-Request-ID is honored, otherwise a fresh UUID is minted. The ID
// is echoed back in the response headers and stored in the request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID stored by RequestID, or "" when the
// middleware did not run.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

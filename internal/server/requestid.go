package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/ragdesk/console/internal/adapters/api/httpapi"
)

// RequestIDKey is the context key for request IDs
type contextKey string

const RequestIDKey contextKey = "request_id"

const maxRequestIDLen = 128

// RequestIDMiddleware adds a request ID to each request. An X-Request-ID sent
// by the UI is kept, otherwise a new one is generated. The ID is stored in
// the context, set as the X-Request-ID response header and forwarded on
// backend API calls made while serving the request.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" || len(requestID) > maxRequestIDLen {
			requestID = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		ctx = httpapi.ContextWithRequestID(ctx, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from context.
// Returns an empty string if no request ID is set.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

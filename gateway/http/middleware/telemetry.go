package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// ClientRequestIDHeader carries an optional caller-chosen correlation ID
const ClientRequestIDHeader = "X-Client-Request-Id"

type contextKey string

// Context keys for the IDs attached by Telemetry
const (
	ClientRequestIDKey contextKey = "client-request-id"
	RequestIDKey       contextKey = "request-id"
)

// Telemetry tags each request with a fresh UUID, plus the caller's
// correlation ID when one was sent. Nothing is added to the response.
func Telemetry(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), RequestIDKey, uuid.NewString())
		if id := r.Header.Get(ClientRequestIDHeader); id != "" {
			ctx = context.WithValue(ctx, ClientRequestIDKey, id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the ID Telemetry assigned, or ""
func RequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

// ClientRequestID returns the caller's correlation ID, or ""
func ClientRequestID(ctx context.Context) string {
	return stringValue(ctx, ClientRequestIDKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

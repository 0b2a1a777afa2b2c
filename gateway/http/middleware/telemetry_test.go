package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestTelemetry(t *testing.T) {
	tests := []struct {
		name            string
		clientRequestID string
	}{
		{name: "with client request id", clientRequestID: "client-test-123"},
		{name: "without client request id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requestID, clientRequestID string
			handler := Telemetry(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requestID = RequestID(r.Context())
				clientRequestID = ClientRequestID(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
			if tt.clientRequestID != "" {
				req.Header.Set("X-Client-Request-Id", tt.clientRequestID)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if _, err := uuid.Parse(requestID); err != nil {
				t.Errorf("Expected a UUID request ID, got %q", requestID)
			}
			if clientRequestID != tt.clientRequestID {
				t.Errorf("Expected client request ID %q, got %q", tt.clientRequestID, clientRequestID)
			}

			// Response headers belong to the upstream
			if len(w.Header()) != 0 {
				t.Errorf("Expected no response headers, got %v", w.Header())
			}
			// The inbound request is relayed as received
			if got := req.Header.Get("X-Client-Request-Id"); got != tt.clientRequestID {
				t.Errorf("Expected inbound header to be untouched, got %q", got)
			}
		})
	}
}

func TestTelemetry_UniqueRequestIDs(t *testing.T) {
	seen := map[string]bool{}
	handler := Telemetry(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen[RequestID(r.Context())] = true
	}))

	for i := 0; i < 5; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}

	if len(seen) != 5 {
		t.Errorf("Expected 5 distinct request IDs, got %d", len(seen))
	}
}

func TestRequestIDGetters(t *testing.T) {
	tests := []struct {
		name       string
		ctx        context.Context
		wantID     string
		wantClient string
	}{
		{name: "empty context", ctx: context.Background()},
		{
			name:   "request id",
			ctx:    context.WithValue(context.Background(), RequestIDKey, "test-request-id"),
			wantID: "test-request-id",
		},
		{
			name:       "client request id",
			ctx:        context.WithValue(context.Background(), ClientRequestIDKey, "test-client-id"),
			wantClient: "test-client-id",
		},
		{
			name:   "wrong value type",
			ctx:    context.WithValue(context.Background(), RequestIDKey, 42),
			wantID: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RequestID(tt.ctx); got != tt.wantID {
				t.Errorf("RequestID() = %q, want %q", got, tt.wantID)
			}
			if got := ClientRequestID(tt.ctx); got != tt.wantClient {
				t.Errorf("ClientRequestID() = %q, want %q", got, tt.wantClient)
			}
		})
	}
}

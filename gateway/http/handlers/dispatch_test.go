package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDispatcher(t *testing.T) {
	tests := []struct {
		name    string
		upgrade string
		want    string
	}{
		{name: "plain request", want: "http"},
		{name: "websocket upgrade", upgrade: "websocket", want: "ws"},
		{name: "case insensitive", upgrade: "WebSocket", want: "ws"},
		{name: "other upgrade", upgrade: "h2c", want: "http"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			dispatcher := NewDispatcher(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { got = "http" }),
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { got = "ws" }),
			)

			req := httptest.NewRequest(http.MethodGet, "/v1/live", nil)
			if tt.upgrade != "" {
				req.Header.Set("Upgrade", tt.upgrade)
				req.Header.Set("Connection", "Upgrade")
			}
			dispatcher.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("Expected %s handler, got %s", tt.want, got)
			}
		})
	}
}

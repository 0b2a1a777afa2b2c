package config

import (
	"errors"
	"net/url"
	"testing"
)

func TestParseUpstream(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		httpURL string
		wsURL   string
		wantErr bool
	}{
		{
			name:    "https origin",
			raw:     "https://generativelanguage.googleapis.com",
			httpURL: "https://generativelanguage.googleapis.com",
			wsURL:   "wss://generativelanguage.googleapis.com",
		},
		{
			name:    "http origin with port",
			raw:     "http://127.0.0.1:8081/",
			httpURL: "http://127.0.0.1:8081",
			wsURL:   "ws://127.0.0.1:8081",
		},
		{
			name:    "bare host defaults to https",
			raw:     "api.example.com",
			httpURL: "https://api.example.com",
			wsURL:   "wss://api.example.com",
		},
		{
			name:    "uppercase scheme",
			raw:     "HTTPS://api.example.com",
			httpURL: "https://api.example.com",
			wsURL:   "wss://api.example.com",
		},
		{name: "empty", raw: "", wantErr: true},
		{name: "ftp scheme", raw: "ftp://files.example.com", wantErr: true},
		{name: "with path", raw: "https://api.example.com/v1", wantErr: true},
		{name: "with query", raw: "https://api.example.com?x=1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up, err := ParseUpstream(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseUpstream() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidUpstream) {
					t.Errorf("Expected ErrInvalidUpstream, got: %v", err)
				}
				return
			}
			if up.HTTPOrigin() != tt.httpURL {
				t.Errorf("HTTPOrigin() = %s, want %s", up.HTTPOrigin(), tt.httpURL)
			}
			if up.WebSocketOrigin() != tt.wsURL {
				t.Errorf("WebSocketOrigin() = %s, want %s", up.WebSocketOrigin(), tt.wsURL)
			}
		})
	}
}

func TestUpstream_TargetURLs(t *testing.T) {
	up, err := ParseUpstream("https://generativelanguage.googleapis.com")
	if err != nil {
		t.Fatalf("ParseUpstream() error = %v", err)
	}

	tests := []struct {
		name    string
		in      string
		httpURL string
		wsURL   string
	}{
		{
			name:    "path and query",
			in:      "/v1/models?key=X",
			httpURL: "https://generativelanguage.googleapis.com/v1/models?key=X",
			wsURL:   "wss://generativelanguage.googleapis.com/v1/models?key=X",
		},
		{
			name:    "root",
			in:      "/",
			httpURL: "https://generativelanguage.googleapis.com/",
			wsURL:   "wss://generativelanguage.googleapis.com/",
		},
		{
			name:    "escaped path kept verbatim",
			in:      "/v1beta/models/gemini%2Fpro:generateContent?alt=sse&key=a%20b",
			httpURL: "https://generativelanguage.googleapis.com/v1beta/models/gemini%2Fpro:generateContent?alt=sse&key=a%20b",
			wsURL:   "wss://generativelanguage.googleapis.com/v1beta/models/gemini%2Fpro:generateContent?alt=sse&key=a%20b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := url.ParseRequestURI(tt.in)
			if err != nil {
				t.Fatalf("ParseRequestURI() error = %v", err)
			}
			if got := up.HTTPURL(in); got != tt.httpURL {
				t.Errorf("HTTPURL() = %s, want %s", got, tt.httpURL)
			}
			if got := up.WebSocketURL(in); got != tt.wsURL {
				t.Errorf("WebSocketURL() = %s, want %s", got, tt.wsURL)
			}
		})
	}
}

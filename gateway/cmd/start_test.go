package cmd

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/julienstroheker/wsrelay/gateway/http/handlers"
	"github.com/julienstroheker/wsrelay/internal/config"
	"github.com/julienstroheker/wsrelay/internal/logging"
)

func TestStartCommandHelp(t *testing.T) {
	output, err := execute(t, "start", "--help")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	for _, flag := range []string{"--port", "--admin-port", "--upstream", "--connect-timeout", "--shutdown-timeout"} {
		if !strings.Contains(output, flag) {
			t.Errorf("Expected output to contain '%s' flag, got: %s", flag, output)
		}
	}
}

func TestStartCommandDefaultValues(t *testing.T) {
	flags := startCmd.Flags()

	tests := []struct {
		name string
		want string
	}{
		{"port", "8080"},
		{"admin-port", "9090"},
		{"upstream", ""},
		{"connect-timeout", "15s"},
		{"shutdown-timeout", "30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := flags.Lookup(tt.name)
			if f == nil {
				t.Fatalf("Expected flag %s to be registered", tt.name)
			}
			if f.DefValue != tt.want {
				t.Errorf("Expected default %s, got %s", tt.want, f.DefValue)
			}
		})
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantURL     string
		wantTimeout time.Duration
	}{
		{
			name:        "environment kept when flags unset",
			args:        nil,
			wantURL:     "https://env.example.com",
			wantTimeout: 3 * time.Second,
		},
		{
			name:        "flags win",
			args:        []string{"--upstream", "http://127.0.0.1:9000", "--connect-timeout", "500ms"},
			wantURL:     "http://127.0.0.1:9000",
			wantTimeout: 500 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := pflag.NewFlagSet("start", pflag.ContinueOnError)
			flags.StringVar(&upstreamFlag, "upstream", "", "")
			flags.DurationVar(&connectTimeoutFlag, "connect-timeout", config.DefaultConnectTimeout, "")
			if err := flags.Parse(tt.args); err != nil {
				t.Fatalf("Parse failed: %v", err)
			}

			c := &config.Config{UpstreamURL: "https://env.example.com", ConnectTimeout: 3 * time.Second}
			applyFlagOverrides(flags, c)

			if c.UpstreamURL != tt.wantURL {
				t.Errorf("Expected upstream %s, got %s", tt.wantURL, c.UpstreamURL)
			}
			if c.ConnectTimeout != tt.wantTimeout {
				t.Errorf("Expected connect timeout %v, got %v", tt.wantTimeout, c.ConnectTimeout)
			}
		})
	}
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	t.Cleanup(func() {
		_ = l.Close()
	})
	return l
}

func getBody(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestServe_RelaysAndShutsDown(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("upstream " + r.URL.RequestURI()))
	}))
	defer upstream.Close()

	relayListener := listen(t)
	adminListener := listen(t)
	readiness := handlers.NewReadiness()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errs := make(chan error, 1)
	go func() {
		errs <- serve(ctx, &serveOptions{
			Config: &config.Config{
				UpstreamURL:    upstream.URL,
				ConnectTimeout: time.Second,
			},
			Logger:          logging.Discard(),
			RelayListener:   relayListener,
			AdminListener:   adminListener,
			ShutdownTimeout: 5 * time.Second,
			Readiness:       readiness,
		})
	}()

	relayURL := "http://" + relayListener.Addr().String()
	adminURL := "http://" + adminListener.Addr().String()

	status, body := getBody(t, relayURL+"/v1/models?key=X")
	if status != http.StatusOK || body != "upstream /v1/models?key=X" {
		t.Errorf("Expected relayed response, got %d %q", status, body)
	}

	deadline := time.Now().Add(5 * time.Second)
	for !readiness.Ready() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if status, _ := getBody(t, adminURL+"/readyz"); status != http.StatusOK {
		t.Errorf("Expected ready, got %d", status)
	}

	cancel()

	select {
	case err := <-errs:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancel")
	}

	if readiness.Ready() {
		t.Error("Expected readiness to be cleared on shutdown")
	}
}

func TestServe_InvalidUpstream(t *testing.T) {
	err := serve(context.Background(), &serveOptions{
		Config:        &config.Config{UpstreamURL: "ftp://files.example.com"},
		Logger:        logging.Discard(),
		RelayListener: listen(t),
		AdminListener: listen(t),
	})
	if err == nil {
		t.Fatal("Expected error for invalid upstream")
	}
}

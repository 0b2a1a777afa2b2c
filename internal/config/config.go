package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	// DefaultUpstreamURL is the origin every request is relayed to
	DefaultUpstreamURL = "https://generativelanguage.googleapis.com"

	// DefaultConnectTimeout bounds the upstream WebSocket handshake
	DefaultConnectTimeout = 15 * time.Second
)

// Config holds the relay configuration
type Config struct {
	// UpstreamURL is the fixed upstream origin (scheme + host, no path)
	UpstreamURL string

	// ConnectTimeout bounds how long a WebSocket session waits for the upstream to open
	ConnectTimeout time.Duration

	// HTTPTimeout bounds a whole relayed HTTP exchange; zero means no limit
	HTTPTimeout time.Duration

	// LogLevel controls logging verbosity (debug, info, warn, error)
	LogLevel string
}

// Load creates a Config by reading from environment variables
// and applying defaults where values are not set
func Load() (*Config, error) {
	connectTimeout, err := getDurationOrDefault("RELAY_CONNECT_TIMEOUT", DefaultConnectTimeout)
	if err != nil {
		return nil, err
	}
	httpTimeout, err := getDurationOrDefault("RELAY_HTTP_TIMEOUT", 0)
	if err != nil {
		return nil, err
	}

	return &Config{
		UpstreamURL:    getEnvOrDefault("RELAY_UPSTREAM_URL", DefaultUpstreamURL),
		ConnectTimeout: connectTimeout,
		HTTPTimeout:    httpTimeout,
		LogLevel:       getEnvOrDefault("RELAY_LOG_LEVEL", "info"),
	}, nil
}

// Validate checks that the configuration can drive a relay
func (c *Config) Validate() error {
	var problems []string

	if _, err := ParseUpstream(c.UpstreamURL); err != nil {
		problems = append(problems, fmt.Sprintf("RELAY_UPSTREAM_URL: %v", err))
	}
	if c.ConnectTimeout <= 0 {
		problems = append(problems, "RELAY_CONNECT_TIMEOUT must be positive")
	}
	if c.HTTPTimeout < 0 {
		problems = append(problems, "RELAY_HTTP_TIMEOUT must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}

	return nil
}

// Upstream parses the configured upstream origin
func (c *Config) Upstream() (*Upstream, error) {
	return ParseUpstream(c.UpstreamURL)
}

// getEnvOrDefault retrieves an environment variable or returns a default value
func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	return d, nil
}

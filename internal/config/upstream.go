package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidUpstream is returned when the upstream origin cannot be used
var ErrInvalidUpstream = errors.New("invalid upstream")

// Upstream is the fixed origin requests and sockets are relayed to.
// Target URLs keep the inbound path and raw query byte for byte.
type Upstream struct {
	httpOrigin string
	wsOrigin   string
	host       string
}

// ParseUpstream validates raw and derives both the HTTP and WebSocket origins.
// A bare host such as "api.example.com" is treated as https.
func ParseUpstream(raw string) (*Upstream, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidUpstream)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUpstream, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidUpstream, raw)
	}
	if u.Path != "" && u.Path != "/" {
		return nil, fmt.Errorf("%w: path not allowed in %q", ErrInvalidUpstream, raw)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return nil, fmt.Errorf("%w: query not allowed in %q", ErrInvalidUpstream, raw)
	}

	var wsScheme string
	switch strings.ToLower(u.Scheme) {
	case "https":
		wsScheme = "wss"
	case "http":
		wsScheme = "ws"
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidUpstream, u.Scheme)
	}

	scheme := strings.ToLower(u.Scheme)
	return &Upstream{
		httpOrigin: scheme + "://" + u.Host,
		wsOrigin:   wsScheme + "://" + u.Host,
		host:       u.Host,
	}, nil
}

// Host returns the upstream host[:port]
func (u *Upstream) Host() string {
	return u.host
}

// HTTPOrigin returns e.g. https://host
func (u *Upstream) HTTPOrigin() string {
	return u.httpOrigin
}

// WebSocketOrigin returns e.g. wss://host
func (u *Upstream) WebSocketOrigin() string {
	return u.wsOrigin
}

// HTTPURL concatenates the HTTP origin with the inbound path and query
func (u *Upstream) HTTPURL(in *url.URL) string {
	return u.httpOrigin + pathAndQuery(in)
}

// WebSocketURL concatenates the WebSocket origin with the inbound path and query
func (u *Upstream) WebSocketURL(in *url.URL) string {
	return u.wsOrigin + pathAndQuery(in)
}

func pathAndQuery(in *url.URL) string {
	if in == nil {
		return "/"
	}
	path := in.EscapedPath()
	if path == "" {
		path = "/"
	}
	if in.RawQuery != "" {
		return path + "?" + in.RawQuery
	}
	if in.ForceQuery {
		return path + "?"
	}
	return path
}

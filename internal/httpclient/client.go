package httpclient

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/julienstroheker/wsrelay/internal/logging"
)

// Client is the outbound HTTP client used to reach the upstream.
// It sends requests exactly once and leaves headers untouched unless a
// policy that sets them is enabled.
type Client struct {
	httpClient *http.Client
	policies   []Policy
}

// Options contains configuration options for the HTTP client
type Options struct {
	// Timeout is the maximum time for the entire request, zero means none
	Timeout time.Duration

	// Logger is used for debug logging (optional)
	Logger *logging.Logger

	// LogHeaders adds redacted request and response headers to debug logs
	LogHeaders bool

	// Transport allows customizing the underlying HTTP transport
	Transport http.RoundTripper

	// AdditionalPolicies allows adding custom policies
	AdditionalPolicies []Policy
}

// DefaultOptions returns default options for the HTTP client
func DefaultOptions() *Options {
	return &Options{}
}

// NewTransport returns a transport that passes encoded bodies through as-is
func NewTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		DisableCompression:    true,
	}
}

// NewClient creates a new HTTP client with the given options
func NewClient(opts *Options) *Client {
	if opts == nil {
		opts = DefaultOptions()
	}

	httpClient := &http.Client{
		Timeout:   opts.Timeout,
		Transport: opts.Transport,
	}
	if httpClient.Transport == nil {
		httpClient.Transport = NewTransport()
	}

	// Build policy chain in order:
	// 1. Error handling (outermost)
	// 2. Metrics
	// 3. Logging
	// 4. Custom policies
	// No policy sets headers, so relayed requests reach the upstream as received.
	policies := []Policy{
		NewErrorPolicy(),
		NewMetricsPolicy(),
	}

	// Bodies are streamed, so the logging policy never buffers them here
	if opts.Logger != nil {
		policies = append(policies, NewLoggingPolicy(opts.Logger, &LoggingOptions{
			LogHeaders:    opts.LogHeaders,
			HeaderFilters: DefaultHeaderFilters,
			QueryFilters:  DefaultQueryFilters,
		}))
	}

	if len(opts.AdditionalPolicies) > 0 {
		policies = append(policies, opts.AdditionalPolicies...)
	}

	return &Client{
		httpClient: httpClient,
		policies:   policies,
	}
}

// Do executes an HTTP request through the policy chain
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return pipeline(c.policies, c.httpClient.Do)(req)
}

// Get is a convenience method for GET requests
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// CloseIdleConnections releases pooled upstream connections
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

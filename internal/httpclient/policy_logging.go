package httpclient

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/julienstroheker/wsrelay/internal/logging"
)

const redacted = "[REDACTED]"

// DefaultHeaderFilters are credential headers commonly sent to the upstream
var DefaultHeaderFilters = []string{"Authorization", "X-Goog-Api-Key", "Cookie", "Set-Cookie"}

// DefaultQueryFilters are query parameters that carry API keys
var DefaultQueryFilters = []string{"key", "access_token"}

// LoggingPolicy logs upstream exchanges at debug level. Bodies are streamed
// through untouched; only their declared size and type are logged.
type LoggingPolicy struct {
	logger        *logging.Logger
	logHeaders    bool
	headerFilters []string
	queryFilters  []string
}

// LoggingOptions contains configuration for LoggingPolicy
type LoggingOptions struct {
	// LogHeaders adds request and response headers to the entries
	LogHeaders bool

	// HeaderFilters names headers whose values are redacted
	HeaderFilters []string

	// QueryFilters names query parameters whose values are redacted
	QueryFilters []string
}

// NewLoggingPolicy creates a new LoggingPolicy
func NewLoggingPolicy(logger *logging.Logger, opts *LoggingOptions) *LoggingPolicy {
	if opts == nil {
		opts = &LoggingOptions{}
	}

	return &LoggingPolicy{
		logger:        logger,
		logHeaders:    opts.LogHeaders,
		headerFilters: opts.HeaderFilters,
		queryFilters:  opts.QueryFilters,
	}
}

// Do implements Policy interface
func (p *LoggingPolicy) Do(req *http.Request, next Next) (*http.Response, error) {
	if !p.logger.Enabled(logging.DebugLevel) {
		return next(req)
	}

	target := redactURL(req.URL, p.queryFilters)
	fields := []logging.Field{
		logging.String("method", req.Method),
		logging.String("url", target),
	}
	if req.ContentLength > 0 {
		fields = append(fields, logging.Any("content_length", req.ContentLength))
	}
	if p.logHeaders {
		fields = append(fields, logging.String("request_headers", p.headerLine(req.Header)))
	}
	p.logger.Debug("Upstream request", fields...)

	start := time.Now()
	resp, err := next(req)
	elapsed := logging.Duration("duration", time.Since(start))

	if err != nil {
		p.logger.Debug("Upstream request failed",
			logging.String("method", req.Method),
			logging.String("url", target),
			logging.Error(err),
			elapsed)
		return resp, err
	}

	fields = []logging.Field{
		logging.String("method", req.Method),
		logging.String("url", target),
		logging.Int("status", resp.StatusCode),
		logging.String("content_type", resp.Header.Get("Content-Type")),
		elapsed,
	}
	if p.logHeaders {
		fields = append(fields, logging.String("response_headers", p.headerLine(resp.Header)))
	}
	p.logger.Debug("Upstream response", fields...)

	return resp, nil
}

// headerLine renders headers sorted by name with credentials redacted
func (p *LoggingPolicy) headerLine(header http.Header) string {
	names := make([]string, 0, len(header))
	for name := range header {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		value := strings.Join(header[name], ", ")
		if matchesAny(name, p.headerFilters) {
			value = redacted
		}
		parts = append(parts, name+": "+value)
	}
	return strings.Join(parts, "; ")
}

func matchesAny(name string, filters []string) bool {
	for _, filter := range filters {
		if strings.EqualFold(name, filter) {
			return true
		}
	}
	return false
}

// redactURL hides the values of the named query parameters.
// The raw query is left untouched when nothing matches.
func redactURL(u *url.URL, filters []string) string {
	if u == nil {
		return ""
	}
	if u.RawQuery == "" || len(filters) == 0 {
		return u.String()
	}

	parts := strings.Split(u.RawQuery, "&")
	changed := false
	for i, part := range parts {
		name, _, _ := strings.Cut(part, "=")
		if decoded, err := url.QueryUnescape(name); err == nil {
			name = decoded
		}
		if matchesAny(name, filters) {
			parts[i] = name + "=" + redacted
			changed = true
		}
	}
	if !changed {
		return u.String()
	}

	clone := *u
	clone.RawQuery = strings.Join(parts, "&")
	return clone.String()
}

package httpclient

import (
	"net/http"
	"time"

	"github.com/julienstroheker/wsrelay/internal/metrics"
)

// MetricsPolicy counts upstream round trips and observes time to headers
type MetricsPolicy struct{}

// NewMetricsPolicy creates a new MetricsPolicy
func NewMetricsPolicy() *MetricsPolicy {
	return &MetricsPolicy{}
}

// Do implements Policy interface
func (p *MetricsPolicy) Do(
	req *http.Request,
	next Next,
) (*http.Response, error) {
	start := time.Now()
	resp, err := next(req)
	metrics.UpstreamDurationSeconds.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("error").Inc()
		return resp, err
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(metrics.StatusClass(resp.StatusCode)).Inc()
	return resp, nil
}

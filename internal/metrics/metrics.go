// Package metrics holds the Prometheus collectors exported on the admin listener.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Message directions used as label values
const (
	ClientToUpstream = "client_to_upstream"
	UpstreamToClient = "upstream_to_client"
)

// Session outcomes used as label values
const (
	OutcomeClientClosed   = "client_closed"
	OutcomeUpstreamClosed = "upstream_closed"
	OutcomeConnectTimeout = "connect_timeout"
	OutcomeConnectError   = "connect_error"
	OutcomeError          = "error"
	OutcomeShutdown       = "shutdown"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wsrelay_http_requests_total",
		Help: "Inbound requests by method and status class",
	}, []string{"method", "code"})

	UpstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wsrelay_upstream_requests_total",
		Help: "Relayed upstream HTTP requests by result",
	}, []string{"result"})

	UpstreamDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wsrelay_upstream_duration_seconds",
		Help:    "Time until upstream response headers",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wsrelay_active_sessions",
		Help: "WebSocket sessions currently open",
	})

	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wsrelay_sessions_total",
		Help: "Finished WebSocket sessions by outcome",
	}, []string{"outcome"})

	SessionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wsrelay_session_duration_seconds",
		Help:    "WebSocket session lifetime",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 18),
	})

	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wsrelay_messages_total",
		Help: "WebSocket messages relayed by direction",
	}, []string{"direction"})

	QueuedMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wsrelay_queued_messages_total",
		Help: "Client messages buffered before the upstream opened",
	})

	ForwardFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wsrelay_forward_failures_total",
		Help: "Messages that could not be written to the peer",
	}, []string{"direction"})
)

// StatusClass maps 204 to "2xx"
func StatusClass(code int) string {
	switch {
	case code >= 100 && code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

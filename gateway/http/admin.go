package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/julienstroheker/wsrelay/gateway/http/handlers"
)

// AdminOptions configures the admin listener
type AdminOptions struct {
	Port      int
	Readiness *handlers.Readiness
}

// NewAdminServer serves liveness, readiness and Prometheus metrics on a
// port separate from relayed traffic
func NewAdminServer(opts *AdminOptions) *Server {
	if opts == nil {
		opts = &AdminOptions{
			Port: 9090,
		}
	}

	readiness := opts.Readiness
	if readiness == nil {
		readiness = handlers.NewReadiness()
		readiness.SetReady(true)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handlers.HealthHandler)
	mux.HandleFunc("/readyz", readiness.Handler())
	mux.Handle("/metrics", promhttp.Handler())

	return newServer(opts.Port, mux)
}

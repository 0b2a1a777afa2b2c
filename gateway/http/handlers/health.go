package handlers

import (
	"net/http"
	"sync/atomic"
)

// HealthHandler handles health check requests
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	// Only accept GET requests
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.WriteHeader(http.StatusOK)
	// Ignore write error for health check as status is already set
	_, _ = w.Write([]byte("OK"))
}

// Readiness tracks whether the relay should receive new traffic
type Readiness struct {
	ready atomic.Bool
}

// NewReadiness creates a Readiness that starts out not ready
func NewReadiness() *Readiness {
	return &Readiness{}
}

// SetReady flips the readiness state
func (rd *Readiness) SetReady(ready bool) {
	rd.ready.Store(ready)
}

// Ready reports the current readiness state
func (rd *Readiness) Ready() bool {
	return rd.ready.Load()
}

// Handler answers 200 while ready and 503 otherwise
func (rd *Readiness) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		if !rd.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("Not Ready"))
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

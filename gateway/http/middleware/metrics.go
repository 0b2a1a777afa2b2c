package middleware

import (
	"net/http"

	"github.com/julienstroheker/wsrelay/internal/metrics"
)

// knownMethods bounds the method label
var knownMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

// Metrics counts inbound requests by method and status class
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		metrics.HTTPRequestsTotal.WithLabelValues(methodLabel(r.Method), metrics.StatusClass(rw.statusCode)).Inc()
	})
}

func methodLabel(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

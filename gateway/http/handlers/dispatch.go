package handlers

import (
	"net/http"

	"github.com/julienstroheker/wsrelay/internal/relay"
)

// NewDispatcher routes WebSocket upgrades to wsRelay and everything else to
// httpRelay, based on the Upgrade header alone
func NewDispatcher(httpRelay, wsRelay http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if relay.IsUpgradeRequest(r) {
			wsRelay.ServeHTTP(w, r)
			return
		}
		httpRelay.ServeHTTP(w, r)
	})
}

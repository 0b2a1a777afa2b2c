package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/julienstroheker/wsrelay/gateway/http/middleware"
	"github.com/julienstroheker/wsrelay/gateway/session"
	"github.com/julienstroheker/wsrelay/internal/config"
	"github.com/julienstroheker/wsrelay/internal/logging"
	"github.com/julienstroheker/wsrelay/internal/relay"
)

// WebSocketOptions configures the WebSocket relay handler
type WebSocketOptions struct {
	// Upstream is the origin sessions connect to
	Upstream *config.Upstream

	// Dialer opens upstream sockets
	Dialer session.Dialer

	// ConnectTimeout bounds each upstream connect
	ConnectTimeout time.Duration

	// ClosingGrace bounds the wait for close echoes
	ClosingGrace time.Duration

	// Context ends every running session when cancelled (optional)
	Context context.Context
}

// WebSocketRelay accepts client WebSockets and runs one session per upgrade
type WebSocketRelay struct {
	opts     WebSocketOptions
	sessions sync.WaitGroup
}

// NewWebSocketRelay creates a WebSocket relay handler
func NewWebSocketRelay(opts *WebSocketOptions) *WebSocketRelay {
	if opts == nil {
		opts = &WebSocketOptions{}
	}
	return &WebSocketRelay{opts: *opts}
}

// ServeHTTP accepts the client with a 101 and relays until the session ends
func (h *WebSocketRelay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	target := h.opts.Upstream.WebSocketURL(r.URL)
	header := relay.HandshakeHeader(r.Header)
	subprotocols := relay.Subprotocols(r)

	conn, err := relay.Upgrade(w, r)
	if err != nil {
		logger.Warn("WebSocket upgrade failed", logging.Error(err))
		return
	}

	h.sessions.Add(1)
	defer h.sessions.Done()

	s := session.New(conn, &session.Options{
		ID:             middleware.RequestID(r.Context()),
		Target:         target,
		Header:         header,
		Subprotocols:   subprotocols,
		Dialer:         h.opts.Dialer,
		ConnectTimeout: h.opts.ConnectTimeout,
		ClosingGrace:   h.opts.ClosingGrace,
		Logger:         logger,
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	if h.opts.Context != nil {
		stop := context.AfterFunc(h.opts.Context, cancel)
		defer stop()
	}

	if err := s.Run(ctx); err != nil {
		logger.Error("Session ended with error", logging.Error(err))
	}
}

// Wait blocks until every running session has finished or ctx is done
func (h *WebSocketRelay) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

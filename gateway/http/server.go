package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/julienstroheker/wsrelay/gateway/http/middleware"
	"github.com/julienstroheker/wsrelay/internal/logging"
)

// Server represents an HTTP listener
type Server struct {
	server *http.Server
	port   int
}

// Options configures the relay listener
type Options struct {
	Port int

	// Handler receives every request, usually the relay dispatcher
	Handler http.Handler

	Logger *logging.Logger
}

// NewServer creates the relay listener. Every path is served by opts.Handler
// behind the telemetry, logging and metrics middleware.
func NewServer(opts *Options) *Server {
	if opts == nil {
		opts = &Options{
			Port: 8080,
		}
	}

	handler := opts.Handler
	if handler == nil {
		handler = http.NotFoundHandler()
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	// Telemetry runs first so the logger sees the request IDs
	handler = middleware.Metrics(handler)
	handler = middleware.Logger(logger)(handler)
	handler = middleware.Telemetry(handler)

	return newServer(opts.Port, handler)
}

func newServer(port int, handler http.Handler) *Server {
	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		port: port,
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Serve accepts connections on l
func (s *Server) Serve(l net.Listener) error {
	return s.server.Serve(l)
}

// Shutdown gracefully shuts down the server.
// Hijacked WebSocket connections are not tracked here.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Close immediately closes the server
func (s *Server) Close() error {
	return s.server.Close()
}

// Port returns the port the server is configured to listen on
func (s *Server) Port() int {
	return s.port
}

// Handler returns the fully wrapped handler
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

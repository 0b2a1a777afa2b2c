package relay

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// WriteWait bounds every single frame write
var WriteWait = 30 * time.Second

// handshakeHeaders are owned by the WebSocket handshake and never forwarded
var handshakeHeaders = map[string]bool{
	"Host":                     true,
	"Upgrade":                  true,
	"Connection":               true,
	"Keep-Alive":               true,
	"Proxy-Connection":         true,
	"Te":                       true,
	"Trailer":                  true,
	"Transfer-Encoding":        true,
	"Content-Length":           true,
	"Sec-Websocket-Key":        true,
	"Sec-Websocket-Version":    true,
	"Sec-Websocket-Extensions": true,
	"Sec-Websocket-Protocol":   true,
	"Sec-Websocket-Accept":     true,
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Relay clients come from anywhere, like plain HTTP relay requests
	CheckOrigin: func(r *http.Request) bool { return true },
}

// IsUpgradeRequest reports whether the Upgrade header names websocket.
// The Connection header is left for the handshake itself to check.
func IsUpgradeRequest(r *http.Request) bool {
	for _, value := range r.Header.Values("Upgrade") {
		for _, token := range strings.Split(value, ",") {
			if strings.EqualFold(strings.TrimSpace(token), "websocket") {
				return true
			}
		}
	}
	return false
}

// Upgrade completes the client handshake with a 101 response.
// The client's first offered subprotocol, if any, is selected.
// On failure an HTTP error has already been written to w.
func Upgrade(w http.ResponseWriter, r *http.Request) (Conn, error) {
	u := upgrader
	if protocols := websocket.Subprotocols(r); len(protocols) > 0 {
		u.Subprotocols = protocols[:1]
	}

	conn, err := u.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade client connection: %w", err)
	}
	return NewConn(conn), nil
}

// Subprotocols returns the subprotocols requested by r, in order
func Subprotocols(r *http.Request) []string {
	return websocket.Subprotocols(r)
}

// HandshakeHeader copies in without the headers the handshake owns
func HandshakeHeader(in http.Header) http.Header {
	out := make(http.Header, len(in))
	for name, values := range in {
		if handshakeHeaders[http.CanonicalHeaderKey(name)] {
			continue
		}
		out[name] = append([]string(nil), values...)
	}
	return out
}

// Dialer opens upstream WebSocket connections
type Dialer struct {
	dialer websocket.Dialer
}

// NewDialer creates a Dialer whose handshake is bounded by handshakeTimeout.
// The caller's context may bound it further.
func NewDialer(handshakeTimeout time.Duration) *Dialer {
	return &Dialer{
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
	}
}

// Dial connects to target, forwarding header and offering subprotocols
func (d *Dialer) Dial(ctx context.Context, target string, header http.Header, subprotocols []string) (Conn, error) {
	dialer := d.dialer
	dialer.Subprotocols = subprotocols

	conn, resp, err := dialer.DialContext(ctx, target, HandshakeHeader(header))
	if resp != nil && resp.Body != nil {
		defer func() {
			_ = resp.Body.Close()
		}()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("upstream handshake failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to upstream: %w", err)
	}

	return NewConn(conn), nil
}

// DialFunc adapts a function to the dialer used by sessions
type DialFunc func(ctx context.Context, target string, header http.Header, subprotocols []string) (Conn, error)

// Dial calls f
func (f DialFunc) Dial(ctx context.Context, target string, header http.Header, subprotocols []string) (Conn, error) {
	return f(ctx, target, header, subprotocols)
}

// wsConn adapts a gorilla connection to Conn
type wsConn struct {
	conn *websocket.Conn
}

// NewConn wraps an established gorilla connection
func NewConn(conn *websocket.Conn) Conn {
	return &wsConn{conn: conn}
}

func (c *wsConn) ReadMessage() (int, []byte, error) {
	return c.conn.ReadMessage()
}

func (c *wsConn) WriteMessage(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(WriteWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

func (c *wsConn) WriteControl(messageType int, data []byte) error {
	return c.conn.WriteControl(messageType, data, time.Now().Add(WriteWait))
}

func (c *wsConn) WriteClose(code int, reason string) error {
	return c.conn.WriteControl(websocket.CloseMessage, FormatClose(code, reason), time.Now().Add(WriteWait))
}

func (c *wsConn) SetPingHandler(h func(appData string) error) {
	c.conn.SetPingHandler(h)
}

func (c *wsConn) SetPongHandler(h func(appData string) error) {
	c.conn.SetPongHandler(h)
}

func (c *wsConn) Subprotocol() string {
	return c.conn.Subprotocol()
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

var _ Conn = (*wsConn)(nil)

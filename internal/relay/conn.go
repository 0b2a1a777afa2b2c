package relay

import (
	"errors"
	"unicode/utf8"

	"github.com/gorilla/websocket"
)

// Message types, identical to the WebSocket opcodes
const (
	TextMessage   = websocket.TextMessage
	BinaryMessage = websocket.BinaryMessage
	CloseMessage  = websocket.CloseMessage
	PingMessage   = websocket.PingMessage
	PongMessage   = websocket.PongMessage
)

// Close codes the relay produces itself
const (
	CloseNormalClosure   = websocket.CloseNormalClosure
	CloseGoingAway       = websocket.CloseGoingAway
	CloseNoStatus        = websocket.CloseNoStatusReceived
	CloseAbnormalClosure = websocket.CloseAbnormalClosure
	CloseTLSHandshake    = websocket.CloseTLSHandshake
	CloseInternalError   = websocket.CloseInternalServerErr
)

// maxCloseReason is the control frame payload limit minus the two code bytes
const maxCloseReason = 123

var (
	// ErrConnectionClosed is returned when reading or writing a closed connection
	ErrConnectionClosed = errors.New("connection is closed")
	// ErrCloseSent is returned when writing data after a close frame was sent
	ErrCloseSent = websocket.ErrCloseSent
)

// Conn is one side of a relayed WebSocket.
// One goroutine may read while another writes. WriteControl, WriteClose and
// Close are safe to call concurrently with everything else.
type Conn interface {
	// ReadMessage returns the next data message.
	// A close frame from the peer surfaces as a *websocket.CloseError.
	ReadMessage() (messageType int, data []byte, err error)

	// WriteMessage sends one text or binary message
	WriteMessage(messageType int, data []byte) error

	// WriteControl sends a ping or pong frame
	WriteControl(messageType int, data []byte) error

	// WriteClose sends a close frame with the given code and reason
	WriteClose(code int, reason string) error

	// SetPingHandler replaces the handler run when a ping arrives during ReadMessage
	SetPingHandler(h func(appData string) error)

	// SetPongHandler replaces the handler run when a pong arrives during ReadMessage
	SetPongHandler(h func(appData string) error)

	// Subprotocol returns the negotiated subprotocol, if any
	Subprotocol() string

	// Close tears down the connection without a close handshake
	Close() error
}

// CloseStatus extracts the code and reason from a peer close.
// ok is false when err is not a close frame.
func CloseStatus(err error) (code int, reason string, ok bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}

// Sendable reports whether code may appear in a close frame we write.
// 1005 is sendable as an empty close payload; 1006 and 1015 only describe
// local conditions and must never go on the wire.
func Sendable(code int) bool {
	switch code {
	case CloseAbnormalClosure, CloseTLSHandshake:
		return false
	case CloseNoStatus:
		return true
	}
	if code >= 3000 && code <= 4999 {
		return true
	}
	return code >= 1000 && code <= 1014 && code != 1004
}

// FormatClose builds a close frame payload, truncating reason on a rune
// boundary so the frame fits the control frame limit.
func FormatClose(code int, reason string) []byte {
	if code == CloseNoStatus {
		return []byte{}
	}
	if len(reason) > maxCloseReason {
		cut := maxCloseReason
		for cut > 0 && !utf8.RuneStart(reason[cut]) {
			cut--
		}
		reason = reason[:cut]
	}
	return websocket.FormatCloseMessage(code, reason)
}

// IsDataMessage reports whether messageType is text or binary
func IsDataMessage(messageType int) bool {
	return messageType == TextMessage || messageType == BinaryMessage
}

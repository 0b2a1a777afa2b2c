package relay

import (
	"encoding/binary"
	"io"
	"sync"

	"github.com/gorilla/websocket"
)

// memoryInboxSize is the number of frames a MemoryConn buffers before writes block
const memoryInboxSize = 64

type frame struct {
	messageType int
	data        []byte
}

// MemoryConn is an in-memory Conn connected to a single peer.
// Frames written on one side are read, in order, on the other. Close frames
// and control frames behave as they do on a gorilla connection: a received
// close is echoed and reported as a *websocket.CloseError, and pings are
// answered with a pong unless a ping handler is set.
type MemoryConn struct {
	peer  *MemoryConn
	inbox chan frame
	done  chan struct{}

	mu          sync.Mutex
	closed      bool
	closeSent   bool
	writeErr    error
	subprotocol string
	pingHandler func(string) error
	pongHandler func(string) error
}

// NewMemoryPair returns two connected MemoryConns
func NewMemoryPair() (*MemoryConn, *MemoryConn) {
	a := newMemoryConn()
	b := newMemoryConn()
	a.peer = b
	b.peer = a
	return a, b
}

func newMemoryConn() *MemoryConn {
	c := &MemoryConn{
		inbox: make(chan frame, memoryInboxSize),
		done:  make(chan struct{}),
	}
	c.pingHandler = func(appData string) error {
		err := c.WriteControl(PongMessage, []byte(appData))
		if err == ErrCloseSent {
			return nil
		}
		return err
	}
	c.pongHandler = func(string) error { return nil }
	return c
}

// SetSubprotocol sets the value returned by Subprotocol
func (c *MemoryConn) SetSubprotocol(protocol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subprotocol = protocol
}

// FailWrites makes every later data write return err; nil restores writes
func (c *MemoryConn) FailWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

// ReadMessage returns the next data message from the peer
func (c *MemoryConn) ReadMessage() (int, []byte, error) {
	for {
		var f frame
		select {
		case f = <-c.inbox:
		case <-c.done:
			return 0, nil, ErrConnectionClosed
		case <-c.peer.done:
			// Drain what the peer wrote before it went away
			select {
			case f = <-c.inbox:
			default:
				return 0, nil, &websocket.CloseError{
					Code: CloseAbnormalClosure,
					Text: io.ErrUnexpectedEOF.Error(),
				}
			}
		}

		switch f.messageType {
		case TextMessage, BinaryMessage:
			return f.messageType, f.data, nil
		case PingMessage:
			c.mu.Lock()
			h := c.pingHandler
			c.mu.Unlock()
			if err := h(string(f.data)); err != nil {
				return 0, nil, err
			}
		case PongMessage:
			c.mu.Lock()
			h := c.pongHandler
			c.mu.Unlock()
			if err := h(string(f.data)); err != nil {
				return 0, nil, err
			}
		case CloseMessage:
			code, reason := parseClose(f.data)
			_ = c.WriteClose(code, "")
			return 0, nil, &websocket.CloseError{Code: code, Text: reason}
		}
	}
}

// WriteMessage sends a data message to the peer
func (c *MemoryConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	err := c.writeErr
	closeSent := c.closeSent
	c.mu.Unlock()
	if err != nil {
		return err
	}
	if closeSent {
		return ErrCloseSent
	}
	return c.send(frame{messageType: messageType, data: append([]byte(nil), data...)})
}

// WriteControl sends a ping or pong to the peer
func (c *MemoryConn) WriteControl(messageType int, data []byte) error {
	c.mu.Lock()
	closeSent := c.closeSent
	c.mu.Unlock()
	if closeSent {
		return ErrCloseSent
	}
	return c.send(frame{messageType: messageType, data: append([]byte(nil), data...)})
}

// WriteClose sends a close frame; later writes fail with ErrCloseSent
func (c *MemoryConn) WriteClose(code int, reason string) error {
	c.mu.Lock()
	if c.closeSent {
		c.mu.Unlock()
		return ErrCloseSent
	}
	c.closeSent = true
	c.mu.Unlock()
	return c.send(frame{messageType: CloseMessage, data: FormatClose(code, reason)})
}

func (c *MemoryConn) send(f frame) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	case <-c.peer.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.peer.inbox <- f:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	case <-c.peer.done:
		return ErrConnectionClosed
	}
}

// SetPingHandler replaces the ping handler
func (c *MemoryConn) SetPingHandler(h func(appData string) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h != nil {
		c.pingHandler = h
	}
}

// SetPongHandler replaces the pong handler
func (c *MemoryConn) SetPongHandler(h func(appData string) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h != nil {
		c.pongHandler = h
	}
}

// Subprotocol returns the value set with SetSubprotocol
func (c *MemoryConn) Subprotocol() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subprotocol
}

// Close tears the connection down; the peer reads an abnormal closure
func (c *MemoryConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	return nil
}

// Closed reports whether Close has been called
func (c *MemoryConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func parseClose(payload []byte) (int, string) {
	if len(payload) < 2 {
		return CloseNoStatus, ""
	}
	return int(binary.BigEndian.Uint16(payload)), string(payload[2:])
}

var _ Conn = (*MemoryConn)(nil)

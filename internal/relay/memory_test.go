package relay

import (
	"errors"
	"testing"
	"time"
)

func TestMemoryPair_ReadWrite(t *testing.T) {
	a, b := NewMemoryPair()
	defer func() {
		_ = a.Close()
		_ = b.Close()
	}()

	if err := a.WriteMessage(TextMessage, []byte("hello")); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	if err := a.WriteMessage(BinaryMessage, []byte{0x01, 0x02}); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	mt, data, err := b.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if mt != TextMessage || string(data) != "hello" {
		t.Errorf("Expected text 'hello', got type %d %q", mt, data)
	}

	mt, data, err = b.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if mt != BinaryMessage || len(data) != 2 {
		t.Errorf("Expected 2 binary bytes, got type %d %v", mt, data)
	}
}

func TestMemoryPair_CloseHandshake(t *testing.T) {
	a, b := NewMemoryPair()
	defer func() {
		_ = a.Close()
		_ = b.Close()
	}()

	if err := a.WriteClose(1000, "done"); err != nil {
		t.Fatalf("WriteClose failed: %v", err)
	}

	_, _, err := b.ReadMessage()
	code, reason, ok := CloseStatus(err)
	if !ok || code != 1000 || reason != "done" {
		t.Fatalf("Expected close 1000 'done', got %v", err)
	}

	// The receiver echoes the close code back
	_, _, err = a.ReadMessage()
	code, _, ok = CloseStatus(err)
	if !ok || code != 1000 {
		t.Fatalf("Expected echoed close 1000, got %v", err)
	}

	if err := a.WriteMessage(TextMessage, []byte("late")); !errors.Is(err, ErrCloseSent) {
		t.Errorf("Expected ErrCloseSent after close, got %v", err)
	}
}

func TestMemoryPair_NoStatusClose(t *testing.T) {
	a, b := NewMemoryPair()
	defer func() {
		_ = a.Close()
		_ = b.Close()
	}()

	_ = a.WriteClose(CloseNoStatus, "")

	_, _, err := b.ReadMessage()
	code, _, ok := CloseStatus(err)
	if !ok || code != CloseNoStatus {
		t.Errorf("Expected close 1005, got %v", err)
	}
}

func TestMemoryPair_AbruptClose(t *testing.T) {
	a, b := NewMemoryPair()
	defer func() {
		_ = b.Close()
	}()

	_ = a.WriteMessage(TextMessage, []byte("last"))
	_ = a.Close()

	_, data, err := b.ReadMessage()
	if err != nil || string(data) != "last" {
		t.Fatalf("Expected buffered message before closure, got %q %v", data, err)
	}

	_, _, err = b.ReadMessage()
	code, _, ok := CloseStatus(err)
	if !ok || code != CloseAbnormalClosure {
		t.Errorf("Expected abnormal closure, got %v", err)
	}

	if err := b.WriteMessage(TextMessage, []byte("x")); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Expected ErrConnectionClosed writing to a closed peer, got %v", err)
	}
}

func TestMemoryPair_PingPong(t *testing.T) {
	a, b := NewMemoryPair()
	defer func() {
		_ = a.Close()
		_ = b.Close()
	}()

	pongs := make(chan string, 1)
	a.SetPongHandler(func(appData string) error {
		pongs <- appData
		return nil
	})

	go func() {
		// b answers pings while reading
		_, _, _ = b.ReadMessage()
	}()
	go func() {
		_, _, _ = a.ReadMessage()
	}()

	if err := a.WriteControl(PingMessage, []byte("hb")); err != nil {
		t.Fatalf("WriteControl failed: %v", err)
	}

	select {
	case got := <-pongs:
		if got != "hb" {
			t.Errorf("Expected pong 'hb', got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for pong")
	}
}

func TestMemoryPair_FailWrites(t *testing.T) {
	a, b := NewMemoryPair()
	defer func() {
		_ = a.Close()
		_ = b.Close()
	}()

	boom := errors.New("write failed")
	a.FailWrites(boom)
	if err := a.WriteMessage(TextMessage, []byte("x")); !errors.Is(err, boom) {
		t.Errorf("Expected injected error, got %v", err)
	}

	a.FailWrites(nil)
	if err := a.WriteMessage(TextMessage, []byte("y")); err != nil {
		t.Errorf("Expected write to succeed again, got %v", err)
	}
}

func TestMemoryConn_CloseIdempotent(t *testing.T) {
	a, b := NewMemoryPair()
	defer func() {
		_ = b.Close()
	}()

	if err := a.Close(); err != nil {
		t.Fatalf("First close failed: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
	if !a.Closed() {
		t.Error("Expected Closed() to be true")
	}

	if _, _, err := a.ReadMessage(); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Expected ErrConnectionClosed reading a closed conn, got %v", err)
	}
}

package session

import "github.com/julienstroheker/wsrelay/internal/relay"

// State is the lifecycle state of one side of a session
type State int

const (
	// StateConnecting means the socket is not open yet
	StateConnecting State = iota
	// StateOpen means messages flow in both directions
	StateOpen
	// StateClosing means a close frame was sent and the echo is awaited
	StateClosing
	// StateClosed means the socket is finished
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type side int

const (
	sideClient side = iota
	sideUpstream
)

func (s side) String() string {
	if s == sideClient {
		return "client"
	}
	return "upstream"
}

type eventKind int

const (
	eventMessage eventKind = iota
	eventClose
	eventError
	eventOpen
	eventConnectFailed
)

// event is everything that can happen to a session.
// Only the session goroutine consumes events.
type event struct {
	kind        eventKind
	from        side
	messageType int
	data        []byte
	code        int
	reason      string
	err         error
	conn        relay.Conn
}

type message struct {
	messageType int
	data        []byte
}

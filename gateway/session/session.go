// Package session pairs a client WebSocket with an upstream WebSocket and
// relays messages and lifecycle events between them.
//
// A Session is an actor: one goroutine owns both sockets, the pending queue
// and all state, and consumes events posted by the two socket readers and the
// upstream connect goroutine. Only that goroutine writes data messages.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/julienstroheker/wsrelay/internal/logging"
	"github.com/julienstroheker/wsrelay/internal/metrics"
	"github.com/julienstroheker/wsrelay/internal/relay"
)

const (
	// DefaultConnectTimeout bounds the upstream handshake
	DefaultConnectTimeout = 15 * time.Second
	// DefaultClosingGrace is how long a propagated close may wait for its echo
	DefaultClosingGrace = 5 * time.Second

	eventBufferSize = 16
)

var (
	// ErrConnectTimeout is reported when the upstream did not open in time
	ErrConnectTimeout = errors.New("upstream connect timed out")
	// ErrSessionClosed is returned by Run on a session that already ran
	ErrSessionClosed = errors.New("session closed")
)

// Dialer opens the upstream side of a session
type Dialer interface {
	Dial(ctx context.Context, target string, header http.Header, subprotocols []string) (relay.Conn, error)
}

// Options contains configuration for a Session
type Options struct {
	// ID identifies the session in logs, a UUID is generated when empty
	ID string

	// Target is the upstream WebSocket URL
	Target string

	// Header is forwarded on the upstream handshake
	Header http.Header

	// Subprotocols are offered to the upstream
	Subprotocols []string

	// Dialer opens the upstream connection
	Dialer Dialer

	// ConnectTimeout bounds the upstream connect (default 15s)
	ConnectTimeout time.Duration

	// ClosingGrace bounds the wait for a close echo (default 5s)
	ClosingGrace time.Duration

	// Logger is used for session logs (optional)
	Logger *logging.Logger
}

// Session relays one client WebSocket to one upstream WebSocket
type Session struct {
	id             string
	target         string
	header         http.Header
	subprotocols   []string
	dialer         Dialer
	connectTimeout time.Duration
	closingGrace   time.Duration
	logger         *logging.Logger

	client   relay.Conn
	upstream relay.Conn

	events    chan event
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	started   bool
	startMu   sync.Mutex

	// Owned by the session goroutine
	clientState   State
	upstreamState State
	pending       []message
	connected     bool
	outcome       string
	cancelConnect context.CancelFunc
	connectTimer  *time.Timer
	graceTimer    *time.Timer

	// Read by ping/pong handlers on the reader goroutines
	linkMu sync.Mutex
	linked bool
}

// New creates a session for an accepted client connection
func New(client relay.Conn, opts *Options) *Session {
	if opts == nil {
		opts = &Options{}
	}

	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}

	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}

	closingGrace := opts.ClosingGrace
	if closingGrace <= 0 {
		closingGrace = DefaultClosingGrace
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Session{
		id:             id,
		target:         opts.Target,
		header:         opts.Header,
		subprotocols:   opts.Subprotocols,
		dialer:         opts.Dialer,
		connectTimeout: connectTimeout,
		closingGrace:   closingGrace,
		logger:         logger.With(logging.String("session_id", id), logging.String("path", targetPath(opts.Target))),
		client:         client,
		events:         make(chan event, eventBufferSize),
		done:           make(chan struct{}),
		clientState:    StateOpen,
		upstreamState:  StateConnecting,
	}
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Run relays until both sockets are closed or ctx is cancelled.
// It returns once every goroutine the session started has exited,
// including a still-pending upstream connect.
func (s *Session) Run(ctx context.Context) (err error) {
	s.startMu.Lock()
	if s.started {
		s.startMu.Unlock()
		return ErrSessionClosed
	}
	s.started = true
	s.startMu.Unlock()

	if s.dialer == nil {
		_ = s.client.Close()
		return errors.New("session has no upstream dialer")
	}

	start := time.Now()
	metrics.ActiveSessions.Inc()
	defer func() {
		metrics.ActiveSessions.Dec()
		metrics.SessionsTotal.WithLabelValues(s.outcomeOrDefault()).Inc()
		metrics.SessionDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	defer s.teardown()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("session panic: %v", r)
			s.setOutcome(metrics.OutcomeError)
			s.logger.Error("Session panicked", logging.Any("panic", r))
		}
	}()

	s.logger.Debug("Session started")

	s.client.SetPingHandler(s.pingHandler(sideClient, s.client))
	s.client.SetPongHandler(s.pongHandler(sideClient))
	s.wg.Add(1)
	go s.readLoop(sideClient, s.client)

	connectCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	s.cancelConnect = cancel
	s.wg.Add(1)
	go s.connect(connectCtx)

	s.connectTimer = time.NewTimer(s.connectTimeout)
	defer s.connectTimer.Stop()

	ctxDone := ctx.Done()
	for !s.finished() {
		select {
		case ev := <-s.events:
			s.handle(ev)
		case <-s.connectTimer.C:
			s.onConnectTimeout()
		case <-s.graceC():
			s.onGraceExpired()
		case <-ctxDone:
			ctxDone = nil
			s.onShutdown()
		}
	}

	s.logger.Debug("Session finished",
		logging.String("outcome", s.outcomeOrDefault()),
		logging.Bool("connected", s.connected),
		logging.Duration("duration", time.Since(start)))
	return nil
}

// teardown stops readers and the connect goroutine and waits for them
func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	if s.cancelConnect != nil {
		s.cancelConnect()
	}
	if s.graceTimer != nil {
		s.graceTimer.Stop()
	}
	s.unlink()
	_ = s.client.Close()
	if s.upstream != nil {
		_ = s.upstream.Close()
	}
	s.wg.Wait()
}

func (s *Session) finished() bool {
	return s.clientState == StateClosed && s.upstreamState == StateClosed
}

func (s *Session) graceC() <-chan time.Time {
	if s.graceTimer == nil {
		return nil
	}
	return s.graceTimer.C
}

func (s *Session) handle(ev event) {
	switch ev.kind {
	case eventOpen:
		s.onUpstreamOpen(ev.conn)
	case eventConnectFailed:
		s.onConnectFailed(ev.err)
	case eventMessage:
		if ev.from == sideClient {
			s.onClientMessage(ev.messageType, ev.data)
		} else {
			s.onUpstreamMessage(ev.messageType, ev.data)
		}
	case eventClose:
		if ev.from == sideClient {
			s.onClientClose(ev.code, ev.reason)
		} else {
			s.onUpstreamClose(ev.code, ev.reason)
		}
	case eventError:
		if ev.from == sideClient {
			s.onClientError(ev.err)
		} else {
			s.onUpstreamError(ev.err)
		}
	}
}

func (s *Session) onUpstreamOpen(conn relay.Conn) {
	if s.upstreamState != StateConnecting {
		// The session gave up on the upstream while the dial was completing
		_ = conn.WriteClose(relay.CloseNormalClosure, "")
		_ = conn.Close()
		return
	}

	s.connectTimer.Stop()
	s.upstream = conn
	s.upstreamState = StateOpen

	conn.SetPingHandler(s.pingHandler(sideUpstream, conn))
	conn.SetPongHandler(s.pongHandler(sideUpstream))
	s.wg.Add(1)
	go s.readLoop(sideUpstream, conn)

	s.logger.Info("Upstream connected",
		logging.Int("pending", len(s.pending)),
		logging.String("subprotocol", conn.Subprotocol()))

	for _, m := range s.pending {
		if err := conn.WriteMessage(m.messageType, m.data); err != nil {
			metrics.ForwardFailuresTotal.WithLabelValues(metrics.ClientToUpstream).Inc()
			s.logger.Warn("Failed to send pending message", logging.Error(err))
			s.notifyClient(fmt.Sprintf("Failed to send message: %v", err))
			continue
		}
		metrics.MessagesTotal.WithLabelValues(metrics.ClientToUpstream).Inc()
	}
	s.pending = nil
	s.connected = true
	s.link()
}

func (s *Session) onConnectFailed(err error) {
	if s.upstreamState != StateConnecting {
		return
	}
	if errors.Is(err, ErrConnectTimeout) {
		s.onConnectTimeout()
		return
	}
	if errors.Is(err, context.Canceled) {
		s.onShutdown()
		return
	}

	s.connectTimer.Stop()
	s.upstreamState = StateClosed
	s.pending = nil
	s.setOutcome(metrics.OutcomeConnectError)

	s.logger.Error("Upstream connect failed", logging.Error(err))
	s.notifyClient(fmt.Sprintf("Failed to establish connection: %v", err))
	s.closeSide(sideClient, relay.CloseInternalError, err.Error())
}

func (s *Session) onConnectTimeout() {
	if s.upstreamState != StateConnecting {
		return
	}

	s.cancelConnect()
	s.upstreamState = StateClosed
	s.pending = nil
	s.setOutcome(metrics.OutcomeConnectTimeout)

	s.logger.Error("Upstream connect timed out", logging.Duration("timeout", s.connectTimeout))
	s.notifyClient("Connection to upstream timed out")
	s.closeSide(sideClient, relay.CloseInternalError, "Connection timeout")
}

func (s *Session) onClientMessage(messageType int, data []byte) {
	switch s.upstreamState {
	case StateConnecting:
		s.pending = append(s.pending, message{messageType: messageType, data: data})
		metrics.QueuedMessagesTotal.Inc()
		s.logPreview("Queued client message", messageType, data)
	case StateOpen:
		s.logPreview("Relaying client message", messageType, data)
		if err := s.upstream.WriteMessage(messageType, data); err != nil {
			metrics.ForwardFailuresTotal.WithLabelValues(metrics.ClientToUpstream).Inc()
			s.logger.Warn("Failed to forward client message", logging.Error(err))
			s.notifyClient(fmt.Sprintf("Failed to send message to upstream: %v", err))
			return
		}
		metrics.MessagesTotal.WithLabelValues(metrics.ClientToUpstream).Inc()
	default:
		s.logger.Debug("Dropping client message, upstream is " + s.upstreamState.String())
	}
}

func (s *Session) onUpstreamMessage(messageType int, data []byte) {
	if s.clientState != StateOpen {
		s.logger.Debug("Dropping upstream message, client is " + s.clientState.String())
		return
	}

	s.logPreview("Relaying upstream message", messageType, data)
	if err := s.client.WriteMessage(messageType, data); err != nil {
		metrics.ForwardFailuresTotal.WithLabelValues(metrics.UpstreamToClient).Inc()
		s.logger.Warn("Failed to forward upstream message", logging.Error(err))
		s.notifyClient(fmt.Sprintf("Error processing upstream response: %v", err))
		return
	}
	metrics.MessagesTotal.WithLabelValues(metrics.UpstreamToClient).Inc()
}

func (s *Session) onClientClose(code int, reason string) {
	if s.clientState == StateClosed {
		return
	}
	wasClosing := s.clientState == StateClosing
	s.clientState = StateClosed
	if wasClosing {
		return
	}

	s.logger.Info("Client closed", logging.Int("code", code), logging.String("reason", reason))

	if !relay.Sendable(code) {
		s.setOutcome(metrics.OutcomeError)
		s.closeSide(sideUpstream, relay.CloseInternalError, "Client connection error")
		return
	}
	s.setOutcome(metrics.OutcomeClientClosed)
	s.closeSide(sideUpstream, code, reason)
}

func (s *Session) onUpstreamClose(code int, reason string) {
	if s.upstreamState == StateClosed {
		return
	}
	wasClosing := s.upstreamState == StateClosing
	s.upstreamState = StateClosed
	s.unlink()
	if wasClosing {
		return
	}

	s.logger.Info("Upstream closed", logging.Int("code", code), logging.String("reason", reason))

	if !relay.Sendable(code) {
		s.failUpstream(fmt.Errorf("connection closed abnormally (%d)", code))
		return
	}
	s.setOutcome(metrics.OutcomeUpstreamClosed)
	s.closeSide(sideClient, code, reason)
}

func (s *Session) onClientError(err error) {
	if s.clientState == StateClosed {
		return
	}
	wasClosing := s.clientState == StateClosing
	s.clientState = StateClosed
	if wasClosing {
		return
	}

	s.logger.Warn("Client connection error", logging.Error(err))
	s.setOutcome(metrics.OutcomeError)
	s.closeSide(sideUpstream, relay.CloseInternalError, "Client connection error")
}

func (s *Session) onUpstreamError(err error) {
	if s.upstreamState == StateClosed {
		return
	}
	wasClosing := s.upstreamState == StateClosing
	s.upstreamState = StateClosed
	s.unlink()
	if wasClosing {
		return
	}
	s.failUpstream(err)
}

// failUpstream reports an upstream failure to the client and closes it
func (s *Session) failUpstream(err error) {
	s.logger.Error("Upstream connection error", logging.Error(err))
	s.setOutcome(metrics.OutcomeError)
	s.notifyClient(fmt.Sprintf("Upstream WebSocket error: %v", err))
	s.closeSide(sideClient, relay.CloseInternalError, "Upstream connection error")
}

func (s *Session) onShutdown() {
	s.logger.Info("Closing session for shutdown")
	s.setOutcome(metrics.OutcomeShutdown)
	s.closeSide(sideClient, relay.CloseGoingAway, "Server shutting down")
	s.closeSide(sideUpstream, relay.CloseGoingAway, "Server shutting down")
}

func (s *Session) onGraceExpired() {
	s.logger.Debug("Close handshake timed out, closing sockets")
	s.graceTimer = nil
	if s.clientState != StateClosed {
		s.clientState = StateClosed
		_ = s.client.Close()
	}
	if s.upstreamState != StateClosed {
		if s.upstreamState == StateConnecting {
			s.cancelConnect()
		}
		s.upstreamState = StateClosed
		if s.upstream != nil {
			_ = s.upstream.Close()
		}
	}
}

// closeSide sends a close frame to one side if it is still open and starts
// the closing grace timer. An upstream still connecting is abandoned.
func (s *Session) closeSide(to side, code int, reason string) {
	if to == sideUpstream && s.upstreamState == StateConnecting {
		s.cancelConnect()
		s.connectTimer.Stop()
		s.upstreamState = StateClosed
		s.pending = nil
		return
	}

	state := &s.clientState
	conn := s.client
	if to == sideUpstream {
		state = &s.upstreamState
		conn = s.upstream
	}
	if *state != StateOpen {
		return
	}

	if to == sideUpstream {
		s.unlink()
	}

	if err := conn.WriteClose(code, reason); err != nil {
		s.logger.Debug("Failed to send close frame", logging.String("side", to.String()), logging.Error(err))
		*state = StateClosed
		_ = conn.Close()
		return
	}
	*state = StateClosing
	s.startGrace()
}

func (s *Session) startGrace() {
	if s.graceTimer == nil {
		s.graceTimer = time.NewTimer(s.closingGrace)
	}
}

// notifyClient sends a structured error message while the client is open
func (s *Session) notifyClient(msg string) {
	if s.clientState != StateOpen {
		return
	}
	if err := s.client.WriteMessage(relay.TextMessage, relay.ErrorMessage(msg)); err != nil {
		s.logger.Debug("Failed to notify client", logging.Error(err))
	}
}

func (s *Session) setOutcome(outcome string) {
	if s.outcome == "" {
		s.outcome = outcome
	}
}

func (s *Session) outcomeOrDefault() string {
	if s.outcome == "" {
		return metrics.OutcomeError
	}
	return s.outcome
}

func (s *Session) logPreview(msg string, messageType int, data []byte) {
	if !s.logger.Enabled(logging.DebugLevel) {
		return
	}
	s.logger.Debug(msg,
		logging.Int("size", len(data)),
		logging.String("preview", relay.Preview(messageType, data)))
}

// connect dials the upstream and reports the result as an event
func (s *Session) connect(ctx context.Context) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.post(event{kind: eventConnectFailed, err: fmt.Errorf("connect panic: %v", r)})
		}
	}()

	conn, err := s.dialer.Dial(ctx, s.target, s.header, s.subprotocols)
	if err != nil {
		if pastDeadline(ctx) {
			err = fmt.Errorf("%w: %v", ErrConnectTimeout, err)
		}
		s.post(event{kind: eventConnectFailed, err: err})
		return
	}

	if !s.post(event{kind: eventOpen, conn: conn}) {
		_ = conn.Close()
	}
}

// readLoop turns everything one socket produces into events, in order
func (s *Session) readLoop(from side, conn relay.Conn) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.post(event{kind: eventError, from: from, err: fmt.Errorf("reader panic: %v", r)})
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if code, reason, ok := relay.CloseStatus(err); ok {
				s.post(event{kind: eventClose, from: from, code: code, reason: reason})
			} else {
				s.post(event{kind: eventError, from: from, err: err})
			}
			return
		}
		if !s.post(event{kind: eventMessage, from: from, messageType: messageType, data: data}) {
			return
		}
	}
}

// post delivers ev unless the session is finished
func (s *Session) post(ev event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) link() {
	s.linkMu.Lock()
	defer s.linkMu.Unlock()
	s.linked = true
}

func (s *Session) unlink() {
	s.linkMu.Lock()
	defer s.linkMu.Unlock()
	s.linked = false
}

// peer returns the other socket while both sides are open
func (s *Session) peer(from side) relay.Conn {
	s.linkMu.Lock()
	defer s.linkMu.Unlock()
	if !s.linked {
		return nil
	}
	if from == sideClient {
		return s.upstream
	}
	return s.client
}

// pingHandler forwards pings to the peer once linked, answering them
// locally before that
func (s *Session) pingHandler(from side, conn relay.Conn) func(string) error {
	return func(appData string) error {
		if peer := s.peer(from); peer != nil {
			if err := peer.WriteControl(relay.PingMessage, []byte(appData)); err == nil {
				return nil
			}
		}
		_ = conn.WriteControl(relay.PongMessage, []byte(appData))
		return nil
	}
}

func (s *Session) pongHandler(from side) func(string) error {
	return func(appData string) error {
		if peer := s.peer(from); peer != nil {
			_ = peer.WriteControl(relay.PongMessage, []byte(appData))
		}
		return nil
	}
}

// pastDeadline also covers dialers whose own timeout fires just before ctx
func pastDeadline(ctx context.Context) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	deadline, ok := ctx.Deadline()
	return ok && !time.Now().Before(deadline)
}

func targetPath(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

package ws

import (
	"encoding/json"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/classbridge/chatkit/internal/observability"
)

const (
	writeWait        = 10 * time.Second
	handshakeTimeout = 10 * time.Second

	defaultBackoffStep = 2 * time.Second
	defaultMaxAttempts = 5
)

type State int

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
)

// Handler receives every well-formed inbound frame. Domain interpretation
// belongs to the caller; the transport only guarantees the payload parses
// as JSON.
type Handler func(payload []byte)

type Option func(*Socket)

// WithOnOpen registers a callback invoked after every successful open,
// including reopens after a reconnect.
func WithOnOpen(fn func()) Option {
	return func(s *Socket) {
		s.onOpen = fn
	}
}

func WithBackoffStep(d time.Duration) Option {
	return func(s *Socket) {
		s.backoffStep = d
	}
}

func WithMaxAttempts(n int) Option {
	return func(s *Socket) {
		s.maxAttempts = n
	}
}

func WithHandshakeTimeout(d time.Duration) Option {
	return func(s *Socket) {
		s.dialer.HandshakeTimeout = d
	}
}

// Socket supervises one websocket connection to one endpoint. A closure
// with the normal code never triggers a reconnect; any other closure is
// retried with linearly increasing backoff up to a bounded number of
// attempts. The attempt counter resets on every successful open.
type Socket struct {
	kind    string
	url     string
	token   string
	handler Handler
	onOpen  func()
	dialer  *websocket.Dialer

	backoffStep time.Duration
	maxAttempts int

	mu        sync.Mutex
	conn      *websocket.Conn
	state     State
	attempts  int
	reconnect *time.Timer
	closed    bool
	connID    string
}

// New builds a socket for baseURL+path with the credential appended as a
// query parameter. kind labels logs and metrics ("group", "notifications").
func New(kind, baseURL, path, token string, handler Handler, opts ...Option) *Socket {
	s := &Socket{
		kind:        kind,
		url:         baseURL + path + "?token=" + url.QueryEscape(token),
		token:       token,
		handler:     handler,
		dialer:      &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		backoffStep: defaultBackoffStep,
		maxAttempts: defaultMaxAttempts,
		closed:      true,
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect starts the connection attempt in the background. Without a
// credential it is a logged no-op: retrying cannot succeed and the caller
// must not block on it.
func (s *Socket) Connect() {
	if s.token == "" {
		slog.Error("Cannot open socket without access token", "kind", s.kind)
		observability.IncWSEvent(s.kind, "auth_missing")
		return
	}

	s.mu.Lock()
	if s.state != StateClosed {
		s.mu.Unlock()
		return
	}
	s.closed = false
	s.attempts = 0
	s.state = StateConnecting
	s.mu.Unlock()

	go s.dial()
}

func (s *Socket) dial() {
	conn, _, err := s.dialer.Dial(s.url, nil)
	if err != nil {
		slog.Error("Socket dial failed", "kind", s.kind, "error", err)
		observability.IncWSEvent(s.kind, "dial_error")
		s.scheduleReconnect()
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.state = StateOpen
	s.attempts = 0
	s.connID = uuid.NewString()
	connID := s.connID
	onOpen := s.onOpen
	s.mu.Unlock()

	slog.Info("Socket open", "kind", s.kind, "conn_id", connID)
	observability.IncWSActive(s.kind)
	observability.IncWSEvent(s.kind, "open")

	if onOpen != nil {
		onOpen()
	}

	go s.readLoop(conn, connID)
}

func (s *Socket) readLoop(conn *websocket.Conn, connID string) {
	defer observability.DecWSActive(s.kind)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			conn.Close()

			s.mu.Lock()
			deliberate := s.closed
			current := s.conn == conn
			if current {
				s.conn = nil
			}
			s.mu.Unlock()

			// A superseded loop must not touch state or schedule dials;
			// a newer connection already owns the socket.
			if !current && !deliberate {
				slog.Info("Socket closed", "kind", s.kind, "conn_id", connID)
				observability.IncWSEvent(s.kind, "close")
				return
			}

			if deliberate || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				slog.Info("Socket closed", "kind", s.kind, "conn_id", connID)
				observability.IncWSEvent(s.kind, "close")
				if current {
					s.setClosed()
				}
				return
			}

			slog.Warn("Socket closed abnormally", "kind", s.kind, "conn_id", connID, "error", err)
			observability.IncWSEvent(s.kind, "abnormal_close")
			s.scheduleReconnect()
			return
		}

		if !json.Valid(data) {
			slog.Error("Discarding malformed frame", "kind", s.kind, "conn_id", connID)
			observability.IncWSEvent(s.kind, "malformed_frame")
			continue
		}
		s.handler(data)
	}
}

func (s *Socket) scheduleReconnect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.attempts >= s.maxAttempts {
		s.state = StateClosed
		s.mu.Unlock()
		slog.Error("Reconnect attempts exhausted, giving up", "kind", s.kind, "attempts", s.maxAttempts)
		observability.IncWSEvent(s.kind, "reconnect_exhausted")
		return
	}
	s.attempts++
	delay := time.Duration(s.attempts) * s.backoffStep
	s.state = StateConnecting
	s.reconnect = time.AfterFunc(delay, s.dial)
	attempt := s.attempts
	s.mu.Unlock()

	slog.Info("Scheduling reconnect", "kind", s.kind, "attempt", attempt, "delay", delay)
	observability.IncWSReconnect(s.kind)
}

// Send serializes v as one JSON frame. Frames sent while the socket is
// not open are dropped: no queuing, no delivery guarantee.
func (s *Socket) Send(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpen || s.conn == nil {
		slog.Warn("Dropping frame, socket is not open", "kind", s.kind)
		observability.IncWSEvent(s.kind, "send_dropped")
		return
	}

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(v); err != nil {
		slog.Error("Socket write failed", "kind", s.kind, "conn_id", s.connID, "error", err)
		observability.IncWSEvent(s.kind, "write_error")
	}
}

// SendText transmits a raw text frame (the notification channel keep-alive
// is a literal string, not JSON).
func (s *Socket) SendText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpen || s.conn == nil {
		slog.Warn("Dropping frame, socket is not open", "kind", s.kind)
		observability.IncWSEvent(s.kind, "send_dropped")
		return
	}

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		slog.Error("Socket write failed", "kind", s.kind, "conn_id", s.connID, "error", err)
		observability.IncWSEvent(s.kind, "write_error")
	}
}

// Disconnect closes with the normal code and cancels any pending
// reconnect. Idempotent.
func (s *Socket) Disconnect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.state = StateClosed
	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
	conn := s.conn
	s.conn = nil
	connID := s.connID
	s.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(writeWait)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
	}
	slog.Info("Socket disconnected", "kind", s.kind, "conn_id", connID)
}

func (s *Socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Socket) setClosed() {
	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
}

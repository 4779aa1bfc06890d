package chat

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/classbridge/chatkit/internal/config"
	"github.com/classbridge/chatkit/internal/domain"
	"github.com/classbridge/chatkit/internal/identity"
	"github.com/classbridge/chatkit/internal/ws"
)

const defaultTypingInterval = time.Second

// Transport is the socket surface the client needs. Satisfied by *ws.Socket.
type Transport interface {
	Connect()
	Disconnect()
	Send(v any)
}

type messageFrame struct {
	Type    domain.EventType `json:"type"`
	Content string           `json:"content"`
}

type fileFrame struct {
	Type     domain.EventType `json:"type"`
	FileURL  string           `json:"file_url"`
	FileType string           `json:"file_type"`
}

type editFrame struct {
	Type       domain.EventType `json:"type"`
	MessageID  int              `json:"message_id"`
	NewContent string           `json:"new_content"`
}

type deleteFrame struct {
	Type      domain.EventType `json:"type"`
	MessageID int              `json:"message_id"`
}

type typingFrame struct {
	Type domain.EventType `json:"type"`
}

type presenceFrame struct {
	Type   domain.EventType `json:"type"`
	Online bool             `json:"online"`
}

type ClientOption func(*Client)

// WithTransport swaps the underlying socket, used by tests.
func WithTransport(t Transport) ClientOption {
	return func(c *Client) {
		c.sock = t
	}
}

func WithTypingInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.typingInterval = d
	}
}

// Client is the domain facade over one socket bound to a chat group. It
// maps outbound intents to wire frames and normalizes inbound frames into
// Event values delivered to the handler.
type Client struct {
	groupID int
	self    *identity.Identity
	handler func(Event)
	sock    Transport

	typingInterval time.Duration
	mu             sync.Mutex
	lastTyping     time.Time
}

func NewClient(cfg *config.Config, self *identity.Identity, groupID int, handler func(Event), opts ...ClientOption) *Client {
	c := &Client{
		groupID:        groupID,
		self:           self,
		handler:        handler,
		typingInterval: defaultTypingInterval,
	}

	path := fmt.Sprintf("/chat/ws/%d", groupID)
	c.sock = ws.New("group", cfg.Socket.BaseURL, path, self.Token, c.dispatch,
		ws.WithOnOpen(func() { c.sendPresence(true) }))

	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Connect() {
	c.sock.Connect()
}

// Close announces presence offline and tears the socket down.
func (c *Client) Close() {
	c.sendPresence(false)
	c.sock.Disconnect()
}

func (c *Client) SendMessage(text string) {
	c.sock.Send(messageFrame{Type: domain.MessageEventType, Content: text})
}

func (c *Client) SendFile(fileURL, fileType string) {
	c.sock.Send(fileFrame{Type: domain.FileEventType, FileURL: fileURL, FileType: fileType})
}

func (c *Client) EditMessage(messageID int, newContent string) {
	c.sock.Send(editFrame{Type: domain.EditEventType, MessageID: messageID, NewContent: newContent})
}

func (c *Client) DeleteMessage(messageID int) {
	c.sock.Send(deleteFrame{Type: domain.DeleteEventType, MessageID: messageID})
}

// SendTyping emits a typing frame, debounced so repeated keystrokes do not
// flood the channel. Callers invoke it on every keystroke.
func (c *Client) SendTyping() {
	c.mu.Lock()
	if time.Since(c.lastTyping) < c.typingInterval {
		c.mu.Unlock()
		return
	}
	c.lastTyping = time.Now()
	c.mu.Unlock()

	c.sock.Send(typingFrame{Type: domain.TypingEventType})
}

func (c *Client) sendPresence(online bool) {
	c.sock.Send(presenceFrame{Type: domain.PresenceEventType, Online: online})
}

func (c *Client) dispatch(payload []byte) {
	ev, err := decodeEvent(payload)
	if err != nil {
		slog.Error("Failed to decode group frame", "group_id", c.groupID, "error", err)
		return
	}
	if ev == nil {
		slog.Warn("Unknown frame type on group channel", "group_id", c.groupID)
		return
	}

	// Own typing echoes never reach the typing set.
	if typing, ok := ev.(TypingStarted); ok && typing.UserID == c.self.UserID {
		return
	}

	c.handler(ev)
}

package notify

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/classbridge/chatkit/internal/config"
	"github.com/classbridge/chatkit/internal/domain"
	"github.com/classbridge/chatkit/internal/identity"
	"github.com/classbridge/chatkit/internal/ws"
)

const (
	notificationsPath   = "/chat/ws/notifications"
	keepAlivePayload    = "ping"
	defaultPingInterval = 30 * time.Second
)

// Transport is the socket surface the client needs. Satisfied by *ws.Socket.
type Transport interface {
	Connect()
	Disconnect()
	SendText(text string)
}

type ClientOption func(*Client)

// WithTransport swaps the underlying socket, used by tests.
func WithTransport(t Transport) ClientOption {
	return func(c *Client) {
		c.sock = t
	}
}

func WithPingInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.pingInterval = d
	}
}

// Client runs the session-wide notification channel, independent of which
// group is open, and folds inbound events into the Store.
type Client struct {
	store        *Store
	sock         Transport
	pingInterval time.Duration

	stopOnce sync.Once
	done     chan struct{}
}

func NewClient(cfg *config.Config, self *identity.Identity, store *Store, opts ...ClientOption) *Client {
	c := &Client{
		store:        store,
		pingInterval: defaultPingInterval,
		done:         make(chan struct{}),
	}
	c.sock = ws.New("notifications", cfg.Socket.BaseURL, notificationsPath, self.Token, c.dispatch)

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start opens the channel and begins the keep-alive loop. The socket
// drops pings while disconnected; reconnects are its own concern.
func (c *Client) Start() {
	c.sock.Connect()
	go c.keepAlive()
}

func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.sock.Disconnect()
	})
}

func (c *Client) keepAlive() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.sock.SendText(keepAlivePayload)
		}
	}
}

type notificationWire struct {
	Type           domain.EventType `json:"type"`
	Event          domain.EventType `json:"event"`
	GroupID        int              `json:"group_id"`
	Question       string           `json:"question"`
	MessagePreview string           `json:"message_preview"`
	FileType       string           `json:"file_type"`
}

func (c *Client) dispatch(payload []byte) {
	var w notificationWire
	if err := json.Unmarshal(payload, &w); err != nil {
		slog.Error("Failed to decode notification frame", "error", err)
		return
	}

	switch w.Type {
	case domain.NewMessageAlertType:
		c.store.mark(w.GroupID, flagMessage)

	case domain.NotificationType:
		switch w.Event {
		case domain.NewPollEvent:
			c.store.mark(w.GroupID, flagPoll)
		case domain.NewMessageEvent:
			if w.FileType != "" {
				c.store.mark(w.GroupID, flagFile)
			} else {
				c.store.mark(w.GroupID, flagMessage)
			}
		default:
			// Unknown notification events are a forward-compatible no-op.
			slog.Debug("Ignoring notification event", "event", w.Event)
		}

	default:
		slog.Debug("Ignoring notification frame", "type", w.Type)
	}
}

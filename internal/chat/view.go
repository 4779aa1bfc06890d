package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/classbridge/chatkit/internal/domain"
)

// History fetches the ordered message backlog for a group over REST.
// Satisfied by *rest.Client.
type History interface {
	GroupMessages(ctx context.Context, groupID int) ([]domain.Message, error)
}

// Connector is the lifecycle surface of a group client.
type Connector interface {
	Connect()
	Close()
}

// NotificationSink is what the view needs from the notification store:
// marking the group active suppresses its unread flags while it is on
// screen. Satisfied by *notify.Store.
type NotificationSink interface {
	SetActiveGroupID(id int)
	ClearGroupNotification(id int)
}

type ViewOption func(*View)

func WithTypingTTL(d time.Duration) ViewOption {
	return func(v *View) {
		v.typingTTL = d
	}
}

// View owns the message list and typing indicator for the active group.
// It is the single consumer of the group client's events; the list lives
// only while the group is on screen.
type View struct {
	groupID       int
	history       History
	notifications NotificationSink
	onUpdate      func()
	typingTTL     time.Duration
	typing        *TypingSet

	mu            sync.Mutex
	client        Connector
	messages      []domain.Message
	pending       []Event
	historyLoaded bool
}

func NewView(groupID int, history History, notifications NotificationSink, onUpdate func(), opts ...ViewOption) *View {
	v := &View{
		groupID:       groupID,
		history:       history,
		notifications: notifications,
		onUpdate:      onUpdate,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.typing = NewTypingSet(v.typingTTL, onUpdate)
	return v
}

func (v *View) GroupID() int {
	return v.groupID
}

// Activate fetches history and opens the socket concurrently. Events the
// socket delivers before the backlog resolves are buffered and replayed
// through the same dedup merge once it lands, so neither source can drop
// the other's messages. A history failure is returned to the caller; the
// socket path never fails loudly.
func (v *View) Activate(ctx context.Context, client Connector) error {
	v.mu.Lock()
	v.client = client
	v.mu.Unlock()

	if v.notifications != nil {
		v.notifications.SetActiveGroupID(v.groupID)
		v.notifications.ClearGroupNotification(v.groupID)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		msgs, err := v.history.GroupMessages(gctx, v.groupID)
		if err != nil {
			return fmt.Errorf("fetch history for group %d: %w", v.groupID, err)
		}
		v.loadHistory(msgs)
		return nil
	})
	g.Go(func() error {
		client.Connect()
		return nil
	})
	return g.Wait()
}

// Deactivate closes the socket and stops the typing timers. The message
// list is discarded with the View itself, never cached.
func (v *View) Deactivate() {
	v.mu.Lock()
	client := v.client
	v.client = nil
	v.mu.Unlock()

	if client != nil {
		client.Close()
	}
	v.typing.Stop()

	if v.notifications != nil {
		v.notifications.SetActiveGroupID(0)
	}
}

// Apply merges one inbound event into the view state.
func (v *View) Apply(ev Event) {
	if typing, ok := ev.(TypingStarted); ok {
		v.typing.Add(typing.FullName)
		return
	}

	v.mu.Lock()
	if !v.historyLoaded {
		v.pending = append(v.pending, ev)
		v.mu.Unlock()
		return
	}
	v.applyLocked(ev)
	v.mu.Unlock()

	v.notifyUpdate()
}

func (v *View) loadHistory(msgs []domain.Message) {
	v.mu.Lock()
	v.messages = append([]domain.Message(nil), msgs...)
	v.historyLoaded = true
	pending := v.pending
	v.pending = nil
	for _, ev := range pending {
		v.applyLocked(ev)
	}
	v.mu.Unlock()

	v.notifyUpdate()
}

func (v *View) applyLocked(ev Event) {
	switch ev := ev.(type) {
	case MessageReceived:
		v.appendLocked(ev.Message)
	case FileReceived:
		v.appendLocked(ev.Message)
	case MessageEdited:
		if idx := v.indexLocked(ev.MessageID); idx >= 0 {
			v.messages[idx].Content = ev.NewContent
		}
	case MessageDeleted:
		if idx := v.indexLocked(ev.MessageID); idx >= 0 {
			v.messages[idx].Content = domain.DeletedPlaceholder
			v.messages[idx].IsDeleted = true
		}
	}
}

func (v *View) appendLocked(msg domain.Message) {
	// A duplicate id means the message is already known, either from
	// history or from an earlier delivery after a reconnect.
	if v.indexLocked(msg.ID) >= 0 {
		return
	}
	v.messages = append(v.messages, msg)
}

func (v *View) indexLocked(id int) int {
	for i := range v.messages {
		if v.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// Messages returns a copy of the current ordered list.
func (v *View) Messages() []domain.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]domain.Message(nil), v.messages...)
}

// TypingNames lists who is currently typing, excluding the local user.
func (v *View) TypingNames() []string {
	return v.typing.Names()
}

func (v *View) notifyUpdate() {
	if v.onUpdate != nil {
		v.onUpdate()
	}
}

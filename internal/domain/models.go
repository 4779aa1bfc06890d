package domain

import "time"

// DeletedPlaceholder replaces the content of a tombstoned message.
const DeletedPlaceholder = "This message was deleted"

type Sender struct {
	ID       int    `json:"id"`
	FullName string `json:"full_name"`
}

// Message is one chat message or file attachment within a group. Deleted
// messages stay in the list as tombstones.
type Message struct {
	ID        int       `json:"id"`
	Content   string    `json:"content,omitempty"`
	FileURL   string    `json:"file_url,omitempty"`
	FileType  string    `json:"file_type,omitempty"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	IsDeleted bool      `json:"is_deleted"`
}

type Group struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// GroupNotificationState holds the unread flags for one group. A flag is
// never set for the group the user is currently viewing.
type GroupNotificationState struct {
	HasMessage bool `json:"has_message"`
	HasPoll    bool `json:"has_poll"`
	HasFile    bool `json:"has_file"`
}

func (s GroupNotificationState) Any() bool {
	return s.HasMessage || s.HasPoll || s.HasFile
}

// UploadResult is what the upload endpoint returns for an attached file.
type UploadResult struct {
	FileURL  string `json:"file_url"`
	FileType string `json:"file_type"`
}

type EventType string

const (
	// chat channel, outbound and inbound
	MessageEventType  EventType = "message"
	FileEventType     EventType = "file"
	EditEventType     EventType = "edit"
	DeleteEventType   EventType = "delete"
	TypingEventType   EventType = "typing"
	PresenceEventType EventType = "presence"

	// notification channel, inbound
	NewMessageAlertType EventType = "new_message_alert"
	NotificationType    EventType = "notification"
	NewPollEvent        EventType = "new_poll"
	NewMessageEvent     EventType = "new_message"
)

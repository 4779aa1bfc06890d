package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/classbridge/chatkit/internal/domain"
)

// Event is one normalized inbound event from a group channel. The variants
// are closed over message|file|edit|delete|typing; consumers switch on the
// concrete type.
type Event interface {
	event()
}

type MessageReceived struct {
	Message domain.Message
}

type FileReceived struct {
	Message domain.Message
}

type MessageEdited struct {
	MessageID  int
	NewContent string
}

type MessageDeleted struct {
	MessageID int
}

type TypingStarted struct {
	UserID   int
	FullName string
}

func (MessageReceived) event() {}
func (FileReceived) event()    {}
func (MessageEdited) event()   {}
func (MessageDeleted) event()  {}
func (TypingStarted) event()   {}

type messageWire struct {
	MessageID int           `json:"message_id"`
	Content   string        `json:"content"`
	FileURL   string        `json:"file_url"`
	FileType  string        `json:"file_type"`
	Sender    domain.Sender `json:"sender"`
	Timestamp time.Time     `json:"timestamp"`
}

type editWire struct {
	MessageID  int    `json:"message_id"`
	NewContent string `json:"new_content"`
}

type deleteWire struct {
	MessageID int `json:"message_id"`
}

type typingWire struct {
	UserID   int    `json:"user_id"`
	FullName string `json:"full_name"`
}

// decodeEvent maps one wire frame to its Event variant. Unknown types
// return (nil, nil) so the read path can skip them without failing.
func decodeEvent(raw json.RawMessage) (Event, error) {
	var typeCheck struct {
		Type domain.EventType `json:"type"`
	}
	if err := json.Unmarshal(raw, &typeCheck); err != nil {
		return nil, fmt.Errorf("unmarshal frame type: %w", err)
	}

	switch typeCheck.Type {
	case domain.MessageEventType:
		var w messageWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("unmarshal message frame: %w", err)
		}
		return MessageReceived{Message: domain.Message{
			ID:        w.MessageID,
			Content:   w.Content,
			Sender:    w.Sender,
			Timestamp: w.Timestamp,
		}}, nil

	case domain.FileEventType:
		var w messageWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("unmarshal file frame: %w", err)
		}
		return FileReceived{Message: domain.Message{
			ID:        w.MessageID,
			FileURL:   w.FileURL,
			FileType:  w.FileType,
			Sender:    w.Sender,
			Timestamp: w.Timestamp,
		}}, nil

	case domain.EditEventType:
		var w editWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("unmarshal edit frame: %w", err)
		}
		return MessageEdited{MessageID: w.MessageID, NewContent: w.NewContent}, nil

	case domain.DeleteEventType:
		var w deleteWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("unmarshal delete frame: %w", err)
		}
		return MessageDeleted{MessageID: w.MessageID}, nil

	case domain.TypingEventType:
		var w typingWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("unmarshal typing frame: %w", err)
		}
		return TypingStarted{UserID: w.UserID, FullName: w.FullName}, nil

	default:
		return nil, nil
	}
}

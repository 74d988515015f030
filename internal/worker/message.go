// Package worker consumes notification triggers and maintenance jobs from Pub/Sub.
package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/qoomy/notifier/internal/events"
	"github.com/qoomy/notifier/internal/room"
)

// Job types carried in {"job_type": ...} envelopes.
const (
	JobRoomCleanup = "room_cleanup"
)

// Decoding errors.
var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownJob       = errors.New("unknown job type")
)

// Task is a decoded subscription message: either an event or a job.
type Task struct {
	Event   events.Event
	JobType string
}

// envelope is the JSON shape published by the app backend.
type envelope struct {
	Event     string `json:"event"`
	JobType   string `json:"job_type"`
	RoomCode  string `json:"roomCode"`
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
	RoomID    string `json:"roomId"`

	// Value is set when the message is a forwarded document change.
	Value *documentValue `json:"value"`
}

// documentValue is a document as delivered by a Firestore trigger.
type documentValue struct {
	Name   string                   `json:"name"`
	Fields map[string]documentField `json:"fields"`
}

type documentField struct {
	StringValue    *string    `json:"stringValue"`
	TimestampValue *time.Time `json:"timestampValue"`
}

func (f documentField) str() string {
	if f.StringValue == nil {
		return ""
	}
	return *f.StringValue
}

// Decode parses a subscription message into a task.
func Decode(data []byte) (*Task, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	switch {
	case env.JobType != "":
		if env.JobType != JobRoomCleanup {
			return nil, fmt.Errorf("%w: %q", ErrUnknownJob, env.JobType)
		}
		return &Task{JobType: env.JobType}, nil
	case env.Event != "":
		ev, err := decodeEnvelopeEvent(env)
		if err != nil {
			return nil, err
		}
		return &Task{Event: ev}, nil
	case env.Value != nil:
		ev, err := decodeDocument(env.Value)
		if err != nil {
			return nil, err
		}
		return &Task{Event: ev}, nil
	default:
		return nil, fmt.Errorf("%w: no event, job or document", ErrMalformedMessage)
	}
}

func decodeEnvelopeEvent(env envelope) (events.Event, error) {
	switch env.Event {
	case events.NameNewChatMessage:
		if env.RoomCode == "" || env.MessageID == "" {
			return nil, fmt.Errorf("%w: %s requires roomCode and messageId", ErrMalformedMessage, env.Event)
		}
		return events.NewChatMessage{RoomCode: env.RoomCode, MessageID: env.MessageID}, nil
	case events.NameReadStateChanged:
		if env.UserID == "" || env.RoomID == "" {
			return nil, fmt.Errorf("%w: %s requires userId and roomId", ErrMalformedMessage, env.Event)
		}
		return events.ReadStateChanged{UserID: env.UserID, RoomID: env.RoomID}, nil
	case events.NameAppBackgrounded:
		if env.UserID == "" {
			return nil, fmt.Errorf("%w: %s requires userId", ErrMalformedMessage, env.Event)
		}
		return events.AppBackgrounded{UserID: env.UserID}, nil
	default:
		return nil, fmt.Errorf("%w: %q", events.ErrUnknownEvent, env.Event)
	}
}

// decodeDocument maps a document path to an event:
//
//	.../documents/rooms/{code}/chat/{id}       -> NewChatMessage
//	.../documents/users/{uid}/readStatus/{room} -> ReadStateChanged
func decodeDocument(doc *documentValue) (events.Event, error) {
	_, path, ok := strings.Cut(doc.Name, "/documents/")
	if !ok {
		return nil, fmt.Errorf("%w: unexpected document name %q", ErrMalformedMessage, doc.Name)
	}

	parts := strings.Split(path, "/")
	if len(parts) != 4 || parts[1] == "" || parts[3] == "" {
		return nil, fmt.Errorf("%w: unexpected document path %q", ErrMalformedMessage, path)
	}

	switch {
	case parts[0] == "rooms" && parts[2] == "chat":
		return events.NewChatMessage{
			RoomCode:  parts[1],
			MessageID: parts[3],
			Message:   chatFromFields(parts[1], parts[3], doc.Fields),
		}, nil
	case parts[0] == "users" && parts[2] == "readStatus":
		return events.ReadStateChanged{UserID: parts[1], RoomID: parts[3]}, nil
	default:
		return nil, fmt.Errorf("%w: document %q", events.ErrUnknownEvent, path)
	}
}

// chatFromFields builds the message from the trigger payload. It returns nil
// when the sender is missing so the router loads the stored document instead.
func chatFromFields(code, id string, fields map[string]documentField) *room.ChatMessage {
	sender := fields["playerId"].str()
	if sender == "" {
		return nil
	}

	msg := &room.ChatMessage{
		ID:         id,
		RoomCode:   code,
		SenderID:   sender,
		SenderName: fields["playerName"].str(),
		Text:       fields["text"].str(),
		Type:       room.MessageType(fields["type"].str()),
	}
	if msg.Type == "" {
		msg.Type = room.MessageTypeChat
	}
	if ts := fields["sentAt"].TimestampValue; ts != nil {
		msg.SentAt = *ts
	}
	return msg
}

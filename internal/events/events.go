// Package events reacts to chat, read-state and app lifecycle events by
// computing unread counts and dispatching push notifications.
package events

import (
	"errors"

	"github.com/qoomy/notifier/internal/room"
)

// ErrUnknownEvent is returned by Router.Handle for an unsupported event type.
var ErrUnknownEvent = errors.New("unknown event")

// Event names used on the wire.
const (
	NameNewChatMessage   = "new_chat_message"
	NameReadStateChanged = "read_state_changed"
	NameAppBackgrounded  = "app_backgrounded"
)

// Event is one of NewChatMessage, ReadStateChanged or AppBackgrounded.
type Event interface {
	Name() string
	isEvent()
}

// NewChatMessage is raised when a message is written to a room's chat.
type NewChatMessage struct {
	RoomCode  string
	MessageID string

	// Message carries the created document when the trigger delivered it.
	// When nil the router loads it from the directory.
	Message *room.ChatMessage
}

// ReadStateChanged is raised when a user's last-read timestamp for a room is written.
type ReadStateChanged struct {
	UserID string
	RoomID string
}

// AppBackgrounded is raised by the client when the app moves to background.
type AppBackgrounded struct {
	UserID string
}

// Name returns the wire name of the event.
func (NewChatMessage) Name() string { return NameNewChatMessage }

// Name returns the wire name of the event.
func (ReadStateChanged) Name() string { return NameReadStateChanged }

// Name returns the wire name of the event.
func (AppBackgrounded) Name() string { return NameAppBackgrounded }

func (NewChatMessage) isEvent()   {}
func (ReadStateChanged) isEvent() {}
func (AppBackgrounded) isEvent()  {}

// Result describes what handling an event did.
type Result struct {
	// Recipients is the number of users considered for delivery.
	Recipients int

	// Items is the number of payloads built.
	Items int

	// UnreadCount is the unread total of the user for single-user events.
	UnreadCount int

	// Suppressed is true when payloads were built but push sending is switched off.
	Suppressed bool

	Delivered int
	Pruned    int
	Failed    int
}

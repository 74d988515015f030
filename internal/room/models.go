// Package room provides read access to quiz rooms, their players and chat messages.
package room

import (
	"errors"
	"time"
)

// Directory errors.
var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrMessageNotFound = errors.New("message not found")

	// ErrTooManyFilterValues is returned when a membership filter exceeds MaxInFilterValues.
	ErrTooManyFilterValues = errors.New("too many values in membership filter")
)

// MaxInFilterValues is the widest "in" filter the document store accepts in one query.
const MaxInFilterValues = 30

// Status is the lifecycle state of a room.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Room is a single quiz session keyed by a short code.
type Room struct {
	Code      string
	HostID    string
	TeamID    string
	Status    Status
	CreatedAt time.Time
}

// Player is a participant of a room.
type Player struct {
	ID       string
	RoomCode string
	Name     string
	Score    float64
}

// MessageType distinguishes free chat from submitted answers.
type MessageType string

const (
	MessageTypeChat   MessageType = "chat"
	MessageTypeAnswer MessageType = "answer"
)

// ChatMessage is an immutable entry in a room's chat.
type ChatMessage struct {
	ID         string
	RoomCode   string
	SenderID   string
	SenderName string
	Text       string
	Type       MessageType
	SentAt     time.Time
}

// IsAnswer reports whether the message carries a player's answer.
func (m *ChatMessage) IsAnswer() bool {
	return m.Type == MessageTypeAnswer
}

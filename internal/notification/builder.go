package notification

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/qoomy/notifier/internal/device"
	"github.com/qoomy/notifier/internal/room"
)

// Builder errors.
var (
	ErrUnknownKind         = errors.New("unknown notification kind")
	ErrMissingMessage      = errors.New("chat notification requires a message")
	ErrUnsupportedPlatform = errors.New("unsupported push platform")
)

// Builder defaults.
const (
	DefaultChannelID     = "chat_messages"
	DefaultSound         = "default"
	DefaultPreviewLength = 100
	DefaultAppName       = "Qoomy"

	// AnswerPlaceholder replaces the text of answer messages so guesses are not leaked.
	AnswerPlaceholder = "sent an answer"

	// PriorityHigh is the Android delivery priority used for every payload.
	PriorityHigh = "high"

	ellipsis = "…"
)

// Trigger describes the event a notification is built for.
type Trigger struct {
	Kind     Kind
	RoomCode string

	// Message is required for KindChatMessage.
	Message *room.ChatMessage
}

// Recipient is a single delivery target.
type Recipient struct {
	UserID string
	Token  device.Token
}

// BuilderConfig holds configuration for creating a Builder.
type BuilderConfig struct {
	// ChannelID is the Android notification channel. Default: "chat_messages"
	ChannelID string

	// Sound is the iOS alert sound. Default: "default"
	Sound string

	// PreviewLength is the maximum number of characters of message text shown.
	// Default: 100
	PreviewLength int

	// AppName titles the unread summary. Default: "Qoomy"
	AppName string
}

// Builder turns events into platform-specific payloads.
type Builder struct {
	channelID     string
	sound         string
	previewLength int
	appName       string
}

// NewBuilder creates a new notification builder.
func NewBuilder(cfg BuilderConfig) *Builder {
	b := &Builder{
		channelID:     cfg.ChannelID,
		sound:         cfg.Sound,
		previewLength: cfg.PreviewLength,
		appName:       cfg.AppName,
	}
	if b.channelID == "" {
		b.channelID = DefaultChannelID
	}
	if b.sound == "" {
		b.sound = DefaultSound
	}
	if b.previewLength <= 0 {
		b.previewLength = DefaultPreviewLength
	}
	if b.appName == "" {
		b.appName = DefaultAppName
	}
	return b
}

// Tag returns the notification key shared by every notification of a user,
// so a newer notification replaces the previous one on the device.
func Tag(userID string) string {
	return "unread_" + userID
}

// Build creates the payload for a recipient given their current unread count.
func (b *Builder) Build(trigger Trigger, recipient Recipient, unreadCount int) (Payload, error) {
	if unreadCount < 0 {
		unreadCount = 0
	}

	switch trigger.Kind {
	case KindChatMessage:
		if trigger.Message == nil {
			return nil, ErrMissingMessage
		}
	case KindBadgeSync, KindUnreadSummary:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, trigger.Kind)
	}

	data := map[string]string{
		DataRoomCode:    trigger.RoomCode,
		DataType:        string(trigger.Kind),
		DataUnreadCount: strconv.Itoa(unreadCount),
	}

	switch recipient.Token.Platform {
	case device.PlatformIOS:
		return b.buildIOS(trigger, unreadCount, data), nil
	case device.PlatformAndroid:
		return b.buildAndroid(trigger, recipient.UserID, unreadCount, data), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPlatform, recipient.Token.Platform)
	}
}

func (b *Builder) buildIOS(trigger Trigger, unreadCount int, data map[string]string) *IOSPayload {
	p := &IOSPayload{
		Kind:  trigger.Kind,
		Badge: unreadCount,
		Data:  data,
	}

	switch trigger.Kind {
	case KindChatMessage:
		p.Alert = &Alert{
			Title: senderName(trigger.Message),
			Body:  b.preview(trigger.Message),
		}
		p.Sound = b.sound
	case KindUnreadSummary:
		p.Alert = &Alert{Title: b.appName, Body: SummaryText(unreadCount)}
		p.Sound = b.sound
	case KindBadgeSync:
		p.ContentAvailable = true
	}
	return p
}

func (b *Builder) buildAndroid(trigger Trigger, userID string, unreadCount int, data map[string]string) *AndroidPayload {
	tag := Tag(userID)
	data[DataTag] = tag

	p := &AndroidPayload{
		Kind:              trigger.Kind,
		ChannelID:         b.channelID,
		Tag:               tag,
		NotificationCount: unreadCount,
		Priority:          PriorityHigh,
		Data:              data,
	}

	switch trigger.Kind {
	case KindChatMessage:
		body := senderName(trigger.Message) + ": " + b.preview(trigger.Message)
		if more := unreadCount - 1; more > 0 {
			body += fmt.Sprintf(" (+%d more)", more)
		}
		p.Notification = &Alert{Title: b.roomTitle(trigger.RoomCode), Body: body}
	case KindUnreadSummary:
		p.Notification = &Alert{Title: b.appName, Body: SummaryText(unreadCount)}
	}
	return p
}

// preview returns the displayable text of a message, redacted for answers and
// truncated to the preview length.
func (b *Builder) preview(m *room.ChatMessage) string {
	if m.IsAnswer() {
		return AnswerPlaceholder
	}
	return Truncate(strings.TrimSpace(m.Text), b.previewLength)
}

// Truncate shortens s to at most limit characters, ending in an ellipsis when cut.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:limit-1]), " ") + ellipsis
}

// SummaryText returns the aggregate unread phrase.
func SummaryText(unreadCount int) string {
	if unreadCount == 1 {
		return "1 unread message"
	}
	return fmt.Sprintf("%d unread messages", unreadCount)
}

func senderName(m *room.ChatMessage) string {
	if name := strings.TrimSpace(m.SenderName); name != "" {
		return name
	}
	return "Someone"
}

func (b *Builder) roomTitle(code string) string {
	if code == "" {
		return b.appName
	}
	return "Room " + code
}

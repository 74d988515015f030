// Package notification builds platform-specific push payloads and dispatches them.
package notification

import (
	"github.com/qoomy/notifier/internal/device"
)

// Kind identifies what triggered a notification.
type Kind string

const (
	// KindChatMessage is a visible notification for a new chat message.
	KindChatMessage Kind = "chat_message"

	// KindBadgeSync silently updates the unread badge after a read-state change.
	KindBadgeSync Kind = "badge_sync"

	// KindUnreadSummary is the aggregate notification shown when the app moves to background.
	KindUnreadSummary Kind = "unread_summary"
)

// Data keys shared by every payload for client-side routing.
const (
	DataRoomCode    = "roomCode"
	DataType        = "type"
	DataUnreadCount = "unreadCount"
	DataTag         = "tag"
)

// Alert is the user-visible part of a notification.
type Alert struct {
	Title string
	Body  string
}

// Payload is a push payload for exactly one platform.
// The only implementations are IOSPayload and AndroidPayload.
type Payload interface {
	// Platform returns the platform the payload is shaped for.
	Platform() device.Platform

	// Trigger returns the kind of event the payload was built for.
	Trigger() Kind

	// Fields returns the data envelope delivered alongside the notification.
	Fields() map[string]string

	isPayload()
}

// IOSPayload carries APNs semantics: the badge is an absolute number.
type IOSPayload struct {
	Kind Kind

	// Alert is nil for silent badge updates.
	Alert *Alert

	Badge            int
	Sound            string
	ContentAvailable bool
	Data             map[string]string
}

// Platform returns device.PlatformIOS.
func (p *IOSPayload) Platform() device.Platform { return device.PlatformIOS }

// Trigger returns the kind of event the payload was built for.
func (p *IOSPayload) Trigger() Kind { return p.Kind }

// Fields returns the data envelope.
func (p *IOSPayload) Fields() map[string]string { return p.Data }

func (p *IOSPayload) isPayload() {}

// AndroidPayload carries Android semantics: notifications sharing a tag replace each other.
type AndroidPayload struct {
	Kind Kind

	// Notification is nil for data-only messages.
	Notification *Alert

	ChannelID         string
	Tag               string
	NotificationCount int
	Priority          string
	Data              map[string]string
}

// Platform returns device.PlatformAndroid.
func (p *AndroidPayload) Platform() device.Platform { return device.PlatformAndroid }

// Trigger returns the kind of event the payload was built for.
func (p *AndroidPayload) Trigger() Kind { return p.Kind }

// Fields returns the data envelope.
func (p *AndroidPayload) Fields() map[string]string { return p.Data }

func (p *AndroidPayload) isPayload() {}

// Ensure both payload shapes implement Payload.
var (
	_ Payload = (*IOSPayload)(nil)
	_ Payload = (*AndroidPayload)(nil)
)

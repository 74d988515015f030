package fcm_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qoomy/notifier/internal/device"
	"github.com/qoomy/notifier/internal/notification"
	"github.com/qoomy/notifier/internal/notification/fcm"
	"github.com/qoomy/notifier/internal/provider/resilience"
	"github.com/qoomy/notifier/internal/room"
)

var errNotRegistered = errors.New("registration-token-not-registered")

type fakeSender struct {
	mu       sync.Mutex
	err      error
	messages []*messaging.Message
}

func (s *fakeSender) Send(_ context.Context, msg *messaging.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, msg)
	if s.err != nil {
		return "", s.err
	}
	return "projects/qoomy/messages/1", nil
}

func newTransport(sender fcm.Sender, registry *resilience.Registry) *fcm.Transport {
	return fcm.New(fcm.Config{
		Sender:   sender,
		Logger:   zerolog.Nop(),
		Registry: registry,
		IsPermanent: func(err error) bool {
			return errors.Is(err, errNotRegistered)
		},
	})
}

func build(t *testing.T, trigger notification.Trigger, token device.Token, unread int) notification.Payload {
	t.Helper()
	p, err := notification.NewBuilder(notification.BuilderConfig{}).
		Build(trigger, notification.Recipient{UserID: "u1", Token: token}, unread)
	require.NoError(t, err)
	return p
}

func TestBuildMessage_IOSChat(t *testing.T) {
	token := device.Token{Value: "ios-token", Platform: device.PlatformIOS}
	trigger := notification.Trigger{
		Kind:     notification.KindChatMessage,
		RoomCode: "ABCD",
		Message:  &room.ChatMessage{SenderName: "Alice", Text: "hi", Type: room.MessageTypeChat},
	}

	msg, err := fcm.BuildMessage(token, build(t, trigger, token, 3))
	require.NoError(t, err)

	assert.Equal(t, "ios-token", msg.Token)
	require.NotNil(t, msg.Notification)
	assert.Equal(t, "Alice", msg.Notification.Title)
	require.NotNil(t, msg.APNS)
	require.NotNil(t, msg.APNS.Payload.Aps.Badge)
	assert.Equal(t, 3, *msg.APNS.Payload.Aps.Badge)
	assert.Equal(t, "default", msg.APNS.Payload.Aps.Sound)
	assert.Equal(t, "10", msg.APNS.Headers["apns-priority"])
	assert.Nil(t, msg.Android)
	assert.Equal(t, "ABCD", msg.Data["roomCode"])
	assert.Equal(t, "chat_message", msg.Data["type"])
}

func TestBuildMessage_IOSBadgeSyncIsBackgroundPush(t *testing.T) {
	token := device.Token{Value: "ios-token", Platform: device.PlatformIOS}
	trigger := notification.Trigger{Kind: notification.KindBadgeSync, RoomCode: "ABCD"}

	msg, err := fcm.BuildMessage(token, build(t, trigger, token, 0))
	require.NoError(t, err)

	assert.Nil(t, msg.Notification)
	assert.True(t, msg.APNS.Payload.Aps.ContentAvailable)
	assert.Equal(t, 0, *msg.APNS.Payload.Aps.Badge)
	assert.Equal(t, "background", msg.APNS.Headers["apns-push-type"])
}

func TestBuildMessage_Android(t *testing.T) {
	token := device.Token{Value: "android-token", Platform: device.PlatformAndroid}

	summary, err := fcm.BuildMessage(token, build(t, notification.Trigger{Kind: notification.KindUnreadSummary}, token, 4))
	require.NoError(t, err)
	require.NotNil(t, summary.Android)
	require.NotNil(t, summary.Android.Notification)
	assert.Equal(t, "high", summary.Android.Priority)
	assert.Equal(t, "unread_u1", summary.Android.Notification.Tag)
	assert.Equal(t, "chat_messages", summary.Android.Notification.ChannelID)
	assert.Equal(t, 4, *summary.Android.Notification.NotificationCount)
	assert.Equal(t, "4 unread messages", summary.Notification.Body)
	assert.Nil(t, summary.APNS)

	badge, err := fcm.BuildMessage(token, build(t, notification.Trigger{Kind: notification.KindBadgeSync}, token, 4))
	require.NoError(t, err)
	assert.Nil(t, badge.Notification)
	assert.Nil(t, badge.Android.Notification)
	assert.Equal(t, "high", badge.Android.Priority)
	assert.Equal(t, "unread_u1", badge.Data["tag"])
}

func TestTransport_Send(t *testing.T) {
	sender := &fakeSender{}
	registry := resilience.NewRegistry()
	transport := newTransport(sender, registry)
	token := device.Token{Value: "android-token", Platform: device.PlatformAndroid}

	err := transport.Send(context.Background(), token, build(t, notification.Trigger{Kind: notification.KindBadgeSync}, token, 1))
	require.NoError(t, err)
	assert.Len(t, sender.messages, 1)

	health := registry.GetHealth(fcm.ProviderName)
	require.NotNil(t, health)
	assert.NotNil(t, health.LastSuccessAt)
}

func TestTransport_Send_UnregisteredTokenIsPermanent(t *testing.T) {
	sender := &fakeSender{err: errNotRegistered}
	transport := newTransport(sender, nil)
	token := device.Token{Value: "dead", Platform: device.PlatformAndroid}
	payload := build(t, notification.Trigger{Kind: notification.KindBadgeSync}, token, 1)

	for i := 0; i < 10; i++ {
		err := transport.Send(context.Background(), token, payload)
		assert.ErrorIs(t, err, notification.ErrTokenUnregistered)
	}

	assert.Equal(t, gobreaker.StateClosed, transport.BreakerState())
}

func TestTransport_Send_TransientFailuresOpenBreaker(t *testing.T) {
	sender := &fakeSender{err: errors.New("quota exceeded")}
	transport := fcm.New(fcm.Config{
		Sender: sender,
		Logger: zerolog.Nop(),
		CircuitBreaker: &resilience.CircuitBreakerConfig{
			Name:    "fcm-test",
			Timeout: time.Minute,
		},
	})
	token := device.Token{Value: "tok", Platform: device.PlatformIOS}
	payload := build(t, notification.Trigger{Kind: notification.KindBadgeSync}, token, 1)

	for i := 0; i < 5; i++ {
		err := transport.Send(context.Background(), token, payload)
		require.Error(t, err)
		assert.NotErrorIs(t, err, notification.ErrTokenUnregistered)
	}

	assert.Equal(t, gobreaker.StateOpen, transport.BreakerState())

	err := transport.Send(context.Background(), token, payload)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Len(t, sender.messages, 5)
}

func TestIsPermanentError_PlainErrors(t *testing.T) {
	assert.False(t, fcm.IsPermanentError(nil))
	assert.False(t, fcm.IsPermanentError(errors.New("registration token is not registered")))
}

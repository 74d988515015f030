// Package fcm delivers notification payloads through Firebase Cloud Messaging.
package fcm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/qoomy/notifier/internal/device"
	"github.com/qoomy/notifier/internal/notification"
	"github.com/qoomy/notifier/internal/provider/resilience"
)

// ProviderName identifies the transport in the provider health registry.
const ProviderName = "fcm"

// APNs header values.
const (
	apnsPriorityAlert      = "10"
	apnsPriorityBackground = "5"
	apnsPushTypeAlert      = "alert"
	apnsPushTypeBackground = "background"
)

// Sender sends a single FCM message. *messaging.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Config holds configuration for creating a Transport.
type Config struct {
	Sender Sender
	Logger zerolog.Logger

	// CircuitBreaker configures the breaker guarding the gateway.
	// If nil, uses resilience.DefaultCircuitBreakerConfig.
	CircuitBreaker *resilience.CircuitBreakerConfig

	// Registry receives success and failure records. Optional.
	Registry *resilience.Registry

	// IsPermanent reports whether a send error means the token is dead.
	// If nil, uses IsPermanentError.
	IsPermanent func(err error) bool
}

// Transport is a notification.Transport backed by FCM.
type Transport struct {
	sender      Sender
	logger      zerolog.Logger
	breaker     *gobreaker.CircuitBreaker[string]
	registry    *resilience.Registry
	isPermanent func(err error) bool
}

// New creates a new FCM transport.
func New(cfg Config) *Transport {
	isPermanent := cfg.IsPermanent
	if isPermanent == nil {
		isPermanent = IsPermanentError
	}

	cbConfig := resilience.DefaultCircuitBreakerConfig(ProviderName)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}
	// A dead token is the caller's problem, not the gateway's.
	cbConfig.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, notification.ErrTokenUnregistered)
	}
	if cbConfig.OnStateChange == nil {
		logger := cfg.Logger
		cbConfig.OnStateChange = func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("push gateway circuit breaker changed state")
		}
	}

	breaker := resilience.NewCircuitBreaker[string](cbConfig)
	if cfg.Registry != nil {
		cfg.Registry.Register(ProviderName, breaker)
	}

	return &Transport{
		sender:      cfg.Sender,
		logger:      cfg.Logger,
		breaker:     breaker,
		registry:    cfg.Registry,
		isPermanent: isPermanent,
	}
}

// Send delivers the payload to a single token.
// A permanently rejected token yields an error wrapping notification.ErrTokenUnregistered.
func (t *Transport) Send(ctx context.Context, token device.Token, payload notification.Payload) error {
	msg, err := BuildMessage(token, payload)
	if err != nil {
		return err
	}

	id, err := t.breaker.Execute(func() (string, error) {
		id, err := t.sender.Send(ctx, msg)
		if err != nil && t.isPermanent(err) {
			return "", fmt.Errorf("%w: %w", notification.ErrTokenUnregistered, err)
		}
		return id, err
	})

	switch {
	case err == nil:
		t.record(nil)
		t.logger.Debug().
			Str("message_id", id).
			Str("platform", string(token.Platform)).
			Str("token_last4", token.Last4()).
			Msg("push sent")
		return nil
	case resilience.IsBreakerRejection(err):
		return fmt.Errorf("%w: %w", resilience.ErrCircuitOpen, err)
	case errors.Is(err, notification.ErrTokenUnregistered):
		return err
	default:
		t.record(err)
		return fmt.Errorf("fcm send: %w", err)
	}
}

// BreakerState returns the current state of the gateway circuit breaker.
func (t *Transport) BreakerState() gobreaker.State {
	return t.breaker.State()
}

func (t *Transport) record(err error) {
	if t.registry == nil {
		return
	}
	if err == nil {
		t.registry.RecordSuccess(ProviderName)
		return
	}
	t.registry.RecordFailure(ProviderName, err)
}

// IsPermanentError reports whether an FCM error means the token will never work again.
func IsPermanentError(err error) bool {
	if err == nil {
		return false
	}
	if messaging.IsUnregistered(err) || messaging.IsSenderIDMismatch(err) {
		return true
	}
	// An invalid argument is only about the token when FCM says so; otherwise the
	// payload itself is malformed and the token may be fine.
	return errorutils.IsInvalidArgument(err) &&
		strings.Contains(strings.ToLower(err.Error()), "registration token")
}

// BuildMessage converts a platform payload into an FCM message for the token.
func BuildMessage(token device.Token, payload notification.Payload) (*messaging.Message, error) {
	if payload == nil {
		return nil, errors.New("fcm: nil payload")
	}

	msg := &messaging.Message{
		Token: token.Value,
		Data:  copyData(payload.Fields()),
	}

	switch p := payload.(type) {
	case *notification.IOSPayload:
		badge := p.Badge
		aps := &messaging.Aps{
			Badge:            &badge,
			Sound:            p.Sound,
			ContentAvailable: p.ContentAvailable,
		}
		headers := map[string]string{
			"apns-priority":  apnsPriorityAlert,
			"apns-push-type": apnsPushTypeAlert,
		}
		if p.Alert != nil {
			msg.Notification = &messaging.Notification{Title: p.Alert.Title, Body: p.Alert.Body}
		} else {
			headers["apns-priority"] = apnsPriorityBackground
			headers["apns-push-type"] = apnsPushTypeBackground
		}
		msg.APNS = &messaging.APNSConfig{
			Headers: headers,
			Payload: &messaging.APNSPayload{Aps: aps},
		}

	case *notification.AndroidPayload:
		android := &messaging.AndroidConfig{Priority: p.Priority}
		if p.Notification != nil {
			count := p.NotificationCount
			msg.Notification = &messaging.Notification{Title: p.Notification.Title, Body: p.Notification.Body}
			android.Notification = &messaging.AndroidNotification{
				ChannelID:         p.ChannelID,
				Tag:               p.Tag,
				NotificationCount: &count,
			}
		}
		msg.Android = android

	default:
		return nil, fmt.Errorf("fcm: unsupported payload %T", payload)
	}

	return msg, nil
}

func copyData(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Ensure Transport implements notification.Transport interface.
var _ notification.Transport = (*Transport)(nil)

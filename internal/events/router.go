package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/qoomy/notifier/internal/device"
	"github.com/qoomy/notifier/internal/featureflags"
	"github.com/qoomy/notifier/internal/notification"
	"github.com/qoomy/notifier/internal/room"
)

const tracerName = "github.com/qoomy/notifier/internal/events"

// TokenLister returns the push tokens of a user.
type TokenLister interface {
	ListTokens(ctx context.Context, userID string) ([]device.Token, error)
}

// UnreadCounter returns the unread total of a user.
type UnreadCounter interface {
	ComputeUnread(ctx context.Context, userID string) int
}

// Dispatcher sends a batch of payloads.
type Dispatcher interface {
	Dispatch(ctx context.Context, items []notification.Item) *notification.Report
}

// Config holds configuration for creating a Router.
type Config struct {
	Directory  room.Directory
	Tokens     TokenLister
	Unread     UnreadCounter
	Builder    *notification.Builder
	Dispatcher Dispatcher
	Logger     zerolog.Logger

	// Flags gates delivery. Optional; defaults apply when nil.
	Flags *featureflags.Service
}

// Router orchestrates unread aggregation, payload building and dispatch per event.
// It keeps no state between events.
type Router struct {
	dir        room.Directory
	tokens     TokenLister
	unread     UnreadCounter
	builder    *notification.Builder
	dispatcher Dispatcher
	flags      *featureflags.Service
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// NewRouter creates a new event router.
func NewRouter(cfg Config) *Router {
	builder := cfg.Builder
	if builder == nil {
		builder = notification.NewBuilder(notification.BuilderConfig{})
	}

	return &Router{
		dir:        cfg.Directory,
		tokens:     cfg.Tokens,
		unread:     cfg.Unread,
		builder:    builder,
		dispatcher: cfg.Dispatcher,
		flags:      cfg.Flags,
		logger:     cfg.Logger,
		tracer:     otel.Tracer(tracerName),
	}
}

// Handle routes an event to its handler.
// Only an unsupported event type is an error; delivery problems are logged.
func (r *Router) Handle(ctx context.Context, ev Event) (*Result, error) {
	ctx, span := r.tracer.Start(ctx, "events."+evName(ev))
	defer span.End()

	var res *Result
	switch e := ev.(type) {
	case NewChatMessage:
		res = r.HandleNewChatMessage(ctx, e)
	case ReadStateChanged:
		res = r.HandleReadStateChanged(ctx, e)
	case AppBackgrounded:
		res = r.HandleAppBackgrounded(ctx, e)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}

	span.SetAttributes(
		attribute.Int("event.recipients", res.Recipients),
		attribute.Int("event.items", res.Items),
		attribute.Int("event.delivered", res.Delivered),
	)
	return res, nil
}

// HandleNewChatMessage notifies every room member except the sender.
func (r *Router) HandleNewChatMessage(ctx context.Context, ev NewChatMessage) *Result {
	log := r.logger.With().
		Str("event", NameNewChatMessage).
		Str("room_code", ev.RoomCode).
		Str("message_id", ev.MessageID).
		Logger()
	res := &Result{}

	msg, err := r.resolveMessage(ctx, ev)
	if err != nil {
		if errors.Is(err, room.ErrMessageNotFound) {
			log.Debug().Msg("message not found, skipping")
		} else {
			log.Warn().Err(err).Msg("failed to load message")
		}
		return res
	}

	rm, err := r.dir.GetRoom(ctx, msg.RoomCode)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			log.Debug().Msg("room not found, skipping")
		} else {
			log.Warn().Err(err).Msg("failed to load room")
		}
		return res
	}

	players, err := r.dir.ListPlayers(ctx, rm.Code)
	if err != nil {
		// The host can still be notified.
		log.Warn().Err(err).Msg("failed to list players")
	}

	recipients := Recipients(rm, players, msg.SenderID)
	res.Recipients = len(recipients)
	if len(recipients) == 0 {
		log.Debug().Msg("no recipients for message")
		return res
	}

	trigger := notification.Trigger{
		Kind:     notification.KindChatMessage,
		RoomCode: rm.Code,
		Message:  msg,
	}

	var (
		mu    sync.Mutex
		items []notification.Item
	)
	g := new(errgroup.Group)
	for _, userID := range recipients {
		g.Go(func() error {
			built := r.buildForUser(ctx, log, trigger, userID, allPlatforms)
			mu.Lock()
			items = append(items, built...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return an error

	r.dispatch(ctx, log, items, res)
	return res
}

// HandleReadStateChanged pushes a silent badge update to every device of the user.
func (r *Router) HandleReadStateChanged(ctx context.Context, ev ReadStateChanged) *Result {
	log := r.logger.With().
		Str("event", NameReadStateChanged).
		Str("user_id", ev.UserID).
		Str("room_code", ev.RoomID).
		Logger()
	res := &Result{Recipients: 1}

	if !r.flags.IsBadgeSyncEnabled(ctx) {
		log.Debug().Msg("badge sync disabled")
		return res
	}

	trigger := notification.Trigger{Kind: notification.KindBadgeSync, RoomCode: ev.RoomID}
	items, unread := r.buildForUserWithCount(ctx, log, trigger, ev.UserID, allPlatforms)
	res.UnreadCount = unread

	r.dispatch(ctx, log, items, res)
	return res
}

// HandleAppBackgrounded sends the unread summary to the user's Android devices.
// The unread count is returned whether or not anything was sent.
func (r *Router) HandleAppBackgrounded(ctx context.Context, ev AppBackgrounded) *Result {
	log := r.logger.With().
		Str("event", NameAppBackgrounded).
		Str("user_id", ev.UserID).
		Logger()
	res := &Result{Recipients: 1}

	unread := r.unread.ComputeUnread(ctx, ev.UserID)
	res.UnreadCount = unread
	if unread == 0 {
		log.Debug().Msg("nothing unread")
		return res
	}

	if !r.flags.IsBackgroundSummaryEnabled(ctx) {
		log.Debug().Msg("background summary disabled")
		return res
	}

	tokens, err := r.tokens.ListTokens(ctx, ev.UserID)
	if err != nil {
		log.Warn().Err(err).Msg("failed to list tokens")
		return res
	}

	trigger := notification.Trigger{Kind: notification.KindUnreadSummary}
	items := r.buildItems(log, trigger, ev.UserID, filterTokens(tokens, androidOnly), unread)

	r.dispatch(ctx, log, items, res)
	return res
}

// Recipients returns the users to notify about a message from sender: the host
// and every player, without the sender and without duplicates.
func Recipients(rm *room.Room, players []*room.Player, senderID string) []string {
	seen := map[string]struct{}{senderID: {}}
	var out []string

	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	add(rm.HostID)
	for _, p := range players {
		add(p.ID)
	}
	return out
}

func (r *Router) resolveMessage(ctx context.Context, ev NewChatMessage) (*room.ChatMessage, error) {
	if ev.Message != nil {
		msg := *ev.Message
		if msg.RoomCode == "" {
			msg.RoomCode = ev.RoomCode
		}
		if msg.ID == "" {
			msg.ID = ev.MessageID
		}
		return &msg, nil
	}
	return r.dir.GetMessage(ctx, ev.RoomCode, ev.MessageID)
}

type tokenFilter func(device.Token) bool

func allPlatforms(device.Token) bool { return true }

func androidOnly(t device.Token) bool { return t.Platform == device.PlatformAndroid }

func filterTokens(tokens []device.Token, keep tokenFilter) []device.Token {
	out := tokens[:0:0]
	for _, t := range tokens {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func (r *Router) buildForUser(ctx context.Context, log zerolog.Logger, trigger notification.Trigger, userID string, keep tokenFilter) []notification.Item {
	items, _ := r.buildForUserWithCount(ctx, log, trigger, userID, keep)
	return items
}

// buildForUserWithCount loads tokens and the unread count of a user concurrently
// and builds one item per token.
func (r *Router) buildForUserWithCount(ctx context.Context, log zerolog.Logger, trigger notification.Trigger, userID string, keep tokenFilter) ([]notification.Item, int) {
	var (
		tokens    []device.Token
		tokensErr error
		unread    int
	)

	g := new(errgroup.Group)
	g.Go(func() error {
		tokens, tokensErr = r.tokens.ListTokens(ctx, userID)
		return nil
	})
	g.Go(func() error {
		unread = r.unread.ComputeUnread(ctx, userID)
		return nil
	})
	_ = g.Wait() //nolint:errcheck // workers never return an error

	if tokensErr != nil {
		log.Warn().Err(tokensErr).Str("recipient", userID).Msg("failed to list tokens")
		return nil, unread
	}

	return r.buildItems(log, trigger, userID, filterTokens(tokens, keep), unread), unread
}

func (r *Router) buildItems(log zerolog.Logger, trigger notification.Trigger, userID string, tokens []device.Token, unread int) []notification.Item {
	items := make([]notification.Item, 0, len(tokens))
	for _, tok := range tokens {
		payload, err := r.builder.Build(trigger, notification.Recipient{UserID: userID, Token: tok}, unread)
		if err != nil {
			log.Warn().Err(err).
				Str("recipient", userID).
				Str("token_last4", tok.Last4()).
				Msg("failed to build notification")
			continue
		}
		items = append(items, notification.Item{UserID: userID, Token: tok, Payload: payload})
	}
	return items
}

func (r *Router) dispatch(ctx context.Context, log zerolog.Logger, items []notification.Item, res *Result) {
	res.Items = len(items)
	if len(items) == 0 {
		log.Debug().Msg("no devices to notify")
		return
	}

	if r.flags.IsPushSendingDisabled(ctx) {
		res.Suppressed = true
		log.Info().Int("items", len(items)).Msg("push sending disabled, notifications not sent")
		return
	}

	report := r.dispatcher.Dispatch(ctx, items)
	res.Delivered = report.Delivered
	res.Pruned = report.Pruned
	res.Failed = report.Failed
}

func evName(ev Event) string {
	switch ev.(type) {
	case NewChatMessage, ReadStateChanged, AppBackgrounded:
		return ev.Name()
	default:
		return "unknown"
	}
}

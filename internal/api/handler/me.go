package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/qoomy/notifier/internal/api/models"
	"github.com/qoomy/notifier/internal/api/response"
	"github.com/qoomy/notifier/internal/events"
	"github.com/qoomy/notifier/internal/unread"
)

// BackgroundNotifier handles the app-backgrounded event. *events.Router satisfies it.
type BackgroundNotifier interface {
	HandleAppBackgrounded(ctx context.Context, ev events.AppBackgrounded) *events.Result
}

// UnreadReader computes per-room unread counts. *unread.Aggregator satisfies it.
type UnreadReader interface {
	Breakdown(ctx context.Context, userID string) *unread.Breakdown
}

// MeHandler handles endpoints scoped to the calling user.
type MeHandler struct {
	notifier BackgroundNotifier
	unread   UnreadReader
	logger   zerolog.Logger
}

// NewMeHandler creates a new MeHandler.
func NewMeHandler(notifier BackgroundNotifier, unread UnreadReader, logger zerolog.Logger) *MeHandler {
	return &MeHandler{notifier: notifier, unread: unread, logger: logger}
}

// AppBackgrounded handles POST /v1/me/app-backgrounded.
// The unread summary is sent to the caller's Android devices and the total returned.
func (h *MeHandler) AppBackgrounded(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	res := h.notifier.HandleAppBackgrounded(r.Context(), events.AppBackgrounded{UserID: userID})

	response.JSON(w, r, http.StatusOK, models.AppBackgroundedResponse{
		Success:     true,
		UnreadCount: res.UnreadCount,
	})
}

// GetUnread handles GET /v1/me/unread.
func (h *MeHandler) GetUnread(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	b := h.unread.Breakdown(r.Context(), userID)
	if b.FailedQueries > 0 {
		h.logger.Warn().
			Str("user_id", userID).
			Int("failed_queries", b.FailedQueries).
			Msg("unread breakdown is partial")
	}

	rooms := make([]models.RoomUnread, 0, len(b.Rooms))
	for _, ru := range b.Rooms {
		rooms = append(rooms, models.RoomUnread{RoomCode: ru.RoomCode, Count: ru.Count})
	}

	response.JSON(w, r, http.StatusOK, models.UnreadResponse{Total: b.Total, Rooms: rooms})
}

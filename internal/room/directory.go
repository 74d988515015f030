package room

import (
	"context"
	"time"
)

// Directory is a read-only view over rooms, memberships, chat messages and read state.
type Directory interface {
	// GetRoom retrieves a room by code.
	// Returns ErrRoomNotFound if the room doesn't exist.
	GetRoom(ctx context.Context, code string) (*Room, error)

	// GetMessage retrieves a single chat message of a room.
	// Returns ErrMessageNotFound if the message doesn't exist.
	GetMessage(ctx context.Context, code, messageID string) (*ChatMessage, error)

	// ListPlayers returns the players of a room.
	ListPlayers(ctx context.Context, code string) ([]*Player, error)

	// ListHostedRooms returns the codes of rooms hosted by the user.
	ListHostedRooms(ctx context.Context, userID string) ([]string, error)

	// ListJoinedRooms returns the codes of rooms where the user is a player.
	ListJoinedRooms(ctx context.Context, userID string) ([]string, error)

	// ListTeamIDs returns the teams the user is a member of.
	ListTeamIDs(ctx context.Context, userID string) ([]string, error)

	// ListRoomsByTeams returns the codes of rooms belonging to any of the teams.
	// At most MaxInFilterValues team IDs may be passed per call.
	ListRoomsByTeams(ctx context.Context, teamIDs []string) ([]string, error)

	// ListMessages returns the chat messages of a room.
	// When after is non-nil only messages sent strictly after it are returned.
	ListMessages(ctx context.Context, code string, after *time.Time) ([]*ChatMessage, error)

	// LastReadTimes returns the user's last-read timestamp per room code.
	// Rooms the user never read are absent from the map.
	LastReadTimes(ctx context.Context, userID string) (map[string]time.Time, error)
}

// Sweeper removes finished rooms together with their sub-collections.
type Sweeper interface {
	// DeleteFinishedBefore deletes finished rooms created before cutoff and
	// returns the number of rooms removed.
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

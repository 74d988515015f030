package room

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryDirectory is an in-memory implementation of Directory and Sweeper.
// This is intended for testing. Production should use FirestoreDirectory.
type InMemoryDirectory struct {
	mu          sync.RWMutex
	rooms       map[string]*Room
	players     map[string]map[string]*Player // room code -> player ID -> player
	messages    map[string][]*ChatMessage     // room code -> messages ordered by SentAt
	teams       map[string][]string           // user ID -> team IDs
	lastRead    map[string]map[string]time.Time
	messageErrs map[string]error
}

// NewInMemoryDirectory creates a new in-memory room directory.
func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{
		rooms:       make(map[string]*Room),
		players:     make(map[string]map[string]*Player),
		messages:    make(map[string][]*ChatMessage),
		teams:       make(map[string][]string),
		lastRead:    make(map[string]map[string]time.Time),
		messageErrs: make(map[string]error),
	}
}

// PutRoom stores a room.
func (d *InMemoryDirectory) PutRoom(r *Room) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cpy := *r
	d.rooms[r.Code] = &cpy
}

// PutPlayer stores a player under its room.
func (d *InMemoryDirectory) PutPlayer(p *Player) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.players[p.RoomCode] == nil {
		d.players[p.RoomCode] = make(map[string]*Player)
	}
	cpy := *p
	d.players[p.RoomCode][p.ID] = &cpy
}

// PutMessage appends a chat message to its room.
func (d *InMemoryDirectory) PutMessage(m *ChatMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cpy := *m
	msgs := append(d.messages[m.RoomCode], &cpy)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].SentAt.Before(msgs[j].SentAt) })
	d.messages[m.RoomCode] = msgs
}

// SetTeams replaces the team memberships of a user.
func (d *InMemoryDirectory) SetTeams(userID string, teamIDs ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.teams[userID] = append([]string(nil), teamIDs...)
}

// SetLastRead records the user's last-read timestamp for a room.
func (d *InMemoryDirectory) SetLastRead(userID, code string, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lastRead[userID] == nil {
		d.lastRead[userID] = make(map[string]time.Time)
	}
	d.lastRead[userID][code] = at
}

// FailMessages makes ListMessages return err for the room. A nil err clears it.
func (d *InMemoryDirectory) FailMessages(code string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err == nil {
		delete(d.messageErrs, code)
		return
	}
	d.messageErrs[code] = err
}

// GetRoom retrieves a room by code.
func (d *InMemoryDirectory) GetRoom(_ context.Context, code string) (*Room, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	r, ok := d.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	cpy := *r
	return &cpy, nil
}

// GetMessage retrieves a single chat message of a room.
func (d *InMemoryDirectory) GetMessage(_ context.Context, code, messageID string) (*ChatMessage, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, m := range d.messages[code] {
		if m.ID == messageID {
			cpy := *m
			return &cpy, nil
		}
	}
	return nil, ErrMessageNotFound
}

// ListPlayers returns the players of a room ordered by ID.
func (d *InMemoryDirectory) ListPlayers(_ context.Context, code string) ([]*Player, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	players := make([]*Player, 0, len(d.players[code]))
	for _, p := range d.players[code] {
		cpy := *p
		players = append(players, &cpy)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	return players, nil
}

// ListHostedRooms returns the codes of rooms hosted by the user.
func (d *InMemoryDirectory) ListHostedRooms(_ context.Context, userID string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var codes []string
	for code, r := range d.rooms {
		if r.HostID == userID {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes, nil
}

// ListJoinedRooms returns the codes of rooms where the user is a player.
func (d *InMemoryDirectory) ListJoinedRooms(_ context.Context, userID string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var codes []string
	for code, players := range d.players {
		if _, ok := players[userID]; ok {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes, nil
}

// ListTeamIDs returns the teams the user is a member of.
func (d *InMemoryDirectory) ListTeamIDs(_ context.Context, userID string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return append([]string(nil), d.teams[userID]...), nil
}

// ListRoomsByTeams returns the codes of rooms belonging to any of the teams.
func (d *InMemoryDirectory) ListRoomsByTeams(_ context.Context, teamIDs []string) ([]string, error) {
	if len(teamIDs) > MaxInFilterValues {
		return nil, ErrTooManyFilterValues
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	wanted := make(map[string]struct{}, len(teamIDs))
	for _, id := range teamIDs {
		wanted[id] = struct{}{}
	}

	var codes []string
	for code, r := range d.rooms {
		if r.TeamID == "" {
			continue
		}
		if _, ok := wanted[r.TeamID]; ok {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes, nil
}

// ListMessages returns the chat messages of a room, optionally only those sent after a timestamp.
func (d *InMemoryDirectory) ListMessages(_ context.Context, code string, after *time.Time) ([]*ChatMessage, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if err, ok := d.messageErrs[code]; ok {
		return nil, err
	}

	var msgs []*ChatMessage
	for _, m := range d.messages[code] {
		if after != nil && !m.SentAt.After(*after) {
			continue
		}
		cpy := *m
		msgs = append(msgs, &cpy)
	}
	return msgs, nil
}

// LastReadTimes returns the user's last-read timestamp per room code.
func (d *InMemoryDirectory) LastReadTimes(_ context.Context, userID string) (map[string]time.Time, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]time.Time, len(d.lastRead[userID]))
	for code, at := range d.lastRead[userID] {
		out[code] = at
	}
	return out, nil
}

// DeleteFinishedBefore deletes finished rooms created before cutoff.
func (d *InMemoryDirectory) DeleteFinishedBefore(_ context.Context, cutoff time.Time) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for code, r := range d.rooms {
		if r.Status != StatusFinished || !r.CreatedAt.Before(cutoff) {
			continue
		}
		delete(d.rooms, code)
		delete(d.players, code)
		delete(d.messages, code)
		removed++
	}
	return removed, nil
}

// Ensure InMemoryDirectory implements Directory and Sweeper.
var (
	_ Directory = (*InMemoryDirectory)(nil)
	_ Sweeper   = (*InMemoryDirectory)(nil)
)

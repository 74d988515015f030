package unread_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qoomy/notifier/internal/room"
	"github.com/qoomy/notifier/internal/unread"
)

var base = time.Date(2026, 4, 2, 18, 0, 0, 0, time.UTC)

func newAggregator(dir room.Directory) *unread.Aggregator {
	return unread.New(unread.Config{Directory: dir, Logger: zerolog.Nop()})
}

func putMessages(dir *room.InMemoryDirectory, code string, senders ...string) {
	for i, sender := range senders {
		dir.PutMessage(&room.ChatMessage{
			ID:       fmt.Sprintf("%s-%d", code, i),
			RoomCode: code,
			SenderID: sender,
			Text:     "hi",
			Type:     room.MessageTypeChat,
			SentAt:   base.Add(time.Duration(i) * time.Minute),
		})
	}
}

func TestComputeUnread_ReadAndUnreadRooms(t *testing.T) {
	dir := room.NewInMemoryDirectory()

	dir.PutRoom(&room.Room{Code: "R1", HostID: "h1"})
	dir.PutRoom(&room.Room{Code: "R2", HostID: "h2"})
	dir.PutPlayer(&room.Player{ID: "U", RoomCode: "R1"})
	dir.PutPlayer(&room.Player{ID: "U", RoomCode: "R2"})

	// R1: never read, 2 from others and 1 from U.
	putMessages(dir, "R1", "a", "U", "b")
	// R2: read at t, one message before and one after from another user.
	putMessages(dir, "R2", "c", "d")
	dir.SetLastRead("U", "R2", base.Add(30*time.Second))

	agg := newAggregator(dir)

	assert.Equal(t, 3, agg.ComputeUnread(context.Background(), "U"))

	b := agg.Breakdown(context.Background(), "U")
	assert.Equal(t, []unread.RoomUnread{
		{RoomCode: "R1", Count: 2},
		{RoomCode: "R2", Count: 1},
	}, b.Rooms)
	assert.Zero(t, b.FailedQueries)
}

func TestComputeUnread_RoomCounts(t *testing.T) {
	tests := []struct {
		name  string
		rooms int
		want  int
	}{
		{name: "no rooms", rooms: 0, want: 0},
		{name: "one room", rooms: 1, want: 2},
		{name: "many rooms", rooms: 12, want: 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := room.NewInMemoryDirectory()
			for i := 0; i < tt.rooms; i++ {
				code := fmt.Sprintf("R%02d", i)
				dir.PutRoom(&room.Room{Code: code, HostID: "U"})
				putMessages(dir, code, "x", "U", "y")
			}

			assert.Equal(t, tt.want, newAggregator(dir).ComputeUnread(context.Background(), "U"))
		})
	}
}

func TestComputeUnread_ExcludesOwnMessagesAsHost(t *testing.T) {
	dir := room.NewInMemoryDirectory()
	dir.PutRoom(&room.Room{Code: "ABCD", HostID: "H"})
	dir.PutPlayer(&room.Player{ID: "H", RoomCode: "ABCD"})
	putMessages(dir, "ABCD", "H", "H", "H")

	assert.Zero(t, newAggregator(dir).ComputeUnread(context.Background(), "H"))
}

func TestComputeUnread_RoomVisibleThroughSeveralRolesCountsOnce(t *testing.T) {
	dir := room.NewInMemoryDirectory()
	dir.PutRoom(&room.Room{Code: "ABCD", HostID: "U", TeamID: "t1"})
	dir.PutPlayer(&room.Player{ID: "U", RoomCode: "ABCD"})
	dir.SetTeams("U", "t1")
	putMessages(dir, "ABCD", "x")

	assert.Equal(t, 1, newAggregator(dir).ComputeUnread(context.Background(), "U"))
}

func TestComputeUnread_ChunksTeamFilter(t *testing.T) {
	dir := room.NewInMemoryDirectory()

	teams := make([]string, 2*room.MaxInFilterValues+5)
	for i := range teams {
		teams[i] = fmt.Sprintf("team-%02d", i)
	}
	dir.SetTeams("U", teams...)

	// One room for the first and the last team, so both ends of the chunking are hit.
	dir.PutRoom(&room.Room{Code: "FIRST", HostID: "h", TeamID: teams[0]})
	dir.PutRoom(&room.Room{Code: "LAST", HostID: "h", TeamID: teams[len(teams)-1]})
	putMessages(dir, "FIRST", "h")
	putMessages(dir, "LAST", "h", "h")

	b := newAggregator(dir).Breakdown(context.Background(), "U")
	assert.Equal(t, 3, b.Total)
	assert.Zero(t, b.FailedQueries)
}

func TestComputeUnread_FailingRoomContributesZero(t *testing.T) {
	dir := room.NewInMemoryDirectory()
	dir.PutRoom(&room.Room{Code: "OK", HostID: "U"})
	dir.PutRoom(&room.Room{Code: "BAD", HostID: "U"})
	putMessages(dir, "OK", "x", "y")
	putMessages(dir, "BAD", "x", "y", "z")
	dir.FailMessages("BAD", errors.New("the query requires an index"))

	b := newAggregator(dir).Breakdown(context.Background(), "U")
	require.NotNil(t, b)
	assert.Equal(t, 2, b.Total)
	assert.Equal(t, 1, b.FailedQueries)
	assert.Equal(t, []unread.RoomUnread{{RoomCode: "OK", Count: 2}}, b.Rooms)
}

type failingDirectory struct {
	*room.InMemoryDirectory
	joinedErr   error
	lastReadErr error
}

func (d *failingDirectory) ListJoinedRooms(ctx context.Context, userID string) ([]string, error) {
	if d.joinedErr != nil {
		return nil, d.joinedErr
	}
	return d.InMemoryDirectory.ListJoinedRooms(ctx, userID)
}

func (d *failingDirectory) LastReadTimes(ctx context.Context, userID string) (map[string]time.Time, error) {
	if d.lastReadErr != nil {
		return nil, d.lastReadErr
	}
	return d.InMemoryDirectory.LastReadTimes(ctx, userID)
}

func TestComputeUnread_FailingMembershipLookupKeepsOtherRooms(t *testing.T) {
	mem := room.NewInMemoryDirectory()
	mem.PutRoom(&room.Room{Code: "HOSTED", HostID: "U"})
	mem.PutRoom(&room.Room{Code: "JOINED", HostID: "h"})
	mem.PutPlayer(&room.Player{ID: "U", RoomCode: "JOINED"})
	putMessages(mem, "HOSTED", "x")
	putMessages(mem, "JOINED", "x", "y")

	dir := &failingDirectory{InMemoryDirectory: mem, joinedErr: errors.New("collection group index missing")}

	b := newAggregator(dir).Breakdown(context.Background(), "U")
	assert.Equal(t, 1, b.Total)
	assert.Equal(t, 1, b.FailedQueries)
}

func TestComputeUnread_FailingReadStateReportsZero(t *testing.T) {
	mem := room.NewInMemoryDirectory()
	mem.PutRoom(&room.Room{Code: "HOSTED", HostID: "U"})
	putMessages(mem, "HOSTED", "x", "y")

	dir := &failingDirectory{InMemoryDirectory: mem, lastReadErr: errors.New("unavailable")}

	b := newAggregator(dir).Breakdown(context.Background(), "U")
	assert.Zero(t, b.Total)
	assert.Empty(t, b.Rooms)
	assert.Equal(t, 1, b.FailedQueries)
}

// Package unread computes how many chat messages a user has not read yet across
// every room visible to them.
package unread

// RoomUnread is the unread count of a single room.
type RoomUnread struct {
	RoomCode string `json:"roomCode"`
	Count    int    `json:"count"`
}

// Breakdown is the unread total of a user together with the rooms contributing to it.
// Rooms with nothing unread are omitted.
type Breakdown struct {
	Total int          `json:"total"`
	Rooms []RoomUnread `json:"rooms"`

	// FailedQueries counts sub-queries that failed and contributed zero.
	FailedQueries int `json:"-"`
}

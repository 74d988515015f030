package models

// RoomUnread is the unread count of a single room.
type RoomUnread struct {
	RoomCode string `json:"roomCode"`
	Count    int    `json:"count"`
}

// UnreadResponse is returned by GET /v1/me/unread.
type UnreadResponse struct {
	Total int          `json:"total"`
	Rooms []RoomUnread `json:"rooms"`
}

// AppBackgroundedResponse is returned by POST /v1/me/app-backgrounded.
type AppBackgroundedResponse struct {
	Success     bool `json:"success"`
	UnreadCount int  `json:"unreadCount"`
}

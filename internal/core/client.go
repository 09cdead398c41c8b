package core

import "time"

// eventBuffer bounds each connection's outbound queue. Delivery is
// best-effort: when the buffer is full the event is dropped and the
// client catches up from the durable store on its next fetch.
const eventBuffer = 16

// Client is one live transport session for one authenticated user.
type Client struct {
	// ID identifies the connection, not the user; a user may hold
	// several connections at once (multi-device).
	ID        string
	UserID    int64
	Username  string
	Events    chan *Event
	CreatedAt time.Time
}

// NewClient constructs a client with an initialized event channel.
func NewClient(id string, userID int64, username string) *Client {
	return &Client{
		ID:        id,
		UserID:    userID,
		Username:  username,
		Events:    make(chan *Event, eventBuffer),
		CreatedAt: time.Now(),
	}
}

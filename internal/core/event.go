package core

import "time"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventMessageNew notifies a connection about a newly persisted message.
	EventMessageNew EventKind = iota
	// EventMessageDeleted notifies a connection that a message was removed.
	EventMessageDeleted
	// EventRoster delivers the full set of currently online user ids.
	EventRoster
	// EventGroupCreated notifies members that a group now includes them.
	EventGroupCreated
	// EventGroupDeleted notifies members that a group is gone.
	EventGroupDeleted
	// EventStatusNew announces a freshly published status to everyone.
	EventStatusNew
	// EventError notifies a connection about a domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind      EventKind
	Envelope  Envelope // for EventMessageNew
	MessageID int64    // for EventMessageDeleted
	Scope     Scope    // conversation hint for deletions
	Online    []int64  // for EventRoster
	Group     *GroupInfo
	Status    *StatusInfo
	Error     *CoreError
}

// GroupInfo describes a group in lifecycle events.
type GroupInfo struct {
	ID        int64
	Name      string
	OwnerID   int64
	MemberIDs []int64
}

// StatusInfo describes a published status in EventStatusNew. Statuses
// are public, so the payload carries everything a client needs to
// render it without a follow-up fetch.
type StatusInfo struct {
	ID        int64
	UserID    int64
	Username  string
	Content   string
	Kind      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

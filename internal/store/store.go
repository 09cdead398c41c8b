package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// User represents a user in the system.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsGuest      bool
	SessionID    string // For guest user session tracking
	CreatedAt    time.Time
}

// Group represents a named set of users entitled to receive messages
// sent with that group's scope.
type Group struct {
	ID        int64
	Name      string
	OwnerID   int64
	CreatedAt time.Time
}

// GroupMember represents group membership.
type GroupMember struct {
	GroupID  int64
	UserID   int64
	JoinedAt time.Time
}

// Message represents a persisted chat message. Exactly one of PeerID
// (direct scope) and GroupID (group scope) is set.
type Message struct {
	ID         int64
	SenderID   int64
	PeerID     *int64
	GroupID    *int64
	Text       string
	Attachment string
	CreatedAt  time.Time
}

// Status represents a short-lived story visible to every user until
// ExpiresAt passes. Kind is "text", "image" or "video"; for media kinds
// Content is an opaque reference, the upload itself happens elsewhere.
type Status struct {
	ID        int64
	UserID    int64
	Content   string
	Kind      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// CreateGuestUser creates a temporary guest user with session ID.
	CreateGuestUser(ctx context.Context, sessionID string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetUserBySessionID retrieves a guest user by session ID.
	GetUserBySessionID(ctx context.Context, sessionID string) (*User, error)

	// ListUsers lists all registered users.
	ListUsers(ctx context.Context) ([]*User, error)

	// SearchUsers searches for users by username.
	SearchUsers(ctx context.Context, query string) ([]*User, error)
}

// GroupStore handles group persistence.
type GroupStore interface {
	// CreateGroup creates a group and adds the owner plus the given
	// members in one transaction.
	CreateGroup(ctx context.Context, name string, ownerID int64, memberIDs []int64) (*Group, error)

	// GetGroupByID retrieves a group by ID.
	GetGroupByID(ctx context.Context, id int64) (*Group, error)

	// DeleteGroup removes a group, its memberships, and its messages.
	DeleteGroup(ctx context.Context, id int64) error

	// AddMember adds a user to a group. Idempotent.
	AddMember(ctx context.Context, groupID, userID int64) error

	// RemoveMember removes a user from a group.
	RemoveMember(ctx context.Context, groupID, userID int64) error

	// IsMember checks if a user belongs to a group.
	IsMember(ctx context.Context, groupID, userID int64) (bool, error)

	// ListMembers lists the user ids of all members of a group.
	ListMembers(ctx context.Context, groupID int64) ([]int64, error)

	// ListGroups lists the groups a user belongs to.
	ListGroups(ctx context.Context, userID int64) ([]*Group, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message, assigning ID and CreatedAt.
	SaveMessage(ctx context.Context, msg *Message) error

	// GetMessage retrieves a message by ID.
	GetMessage(ctx context.Context, id int64) (*Message, error)

	// DeleteMessage removes a message. Returns false if it did not exist.
	DeleteMessage(ctx context.Context, id int64) (bool, error)

	// ListDirectMessages retrieves the direct conversation between two
	// users, oldest first. If beforeID is provided, returns messages
	// older than that ID. Limit bounds the result size.
	ListDirectMessages(ctx context.Context, userA, userB int64, limit int, beforeID *int64) ([]*Message, error)

	// ListGroupMessages retrieves a group's messages with the same
	// pagination contract.
	ListGroupMessages(ctx context.Context, groupID int64, limit int, beforeID *int64) ([]*Message, error)
}

// StatusStore handles story persistence. Expiry is enforced at read
// time; PruneStatuses reclaims the rows themselves.
type StatusStore interface {
	// SaveStatus persists a status, assigning ID and CreatedAt.
	SaveStatus(ctx context.Context, st *Status) error

	// ListStatuses retrieves all statuses not expired at now, newest
	// first.
	ListStatuses(ctx context.Context, now time.Time) ([]*Status, error)

	// ListUserStatuses retrieves one user's unexpired statuses, newest
	// first.
	ListUserStatuses(ctx context.Context, userID int64, now time.Time) ([]*Status, error)

	// PruneStatuses deletes statuses expired at now and reports how
	// many rows were removed.
	PruneStatuses(ctx context.Context, now time.Time) (int64, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	GroupStore
	MessageStore
	StatusStore

	// Close closes the underlying database connection.
	Close() error
}

package core

import "time"

// Envelope is the in-flight representation of a message between
// creation and delivery. ID and CreatedAt are assigned by the store
// before the envelope reaches the router; TempID is a client-generated
// correlation id echoed back so the sender's reconciler can replace
// its optimistic entry in place.
type Envelope struct {
	ID         int64
	TempID     string
	SenderID   int64
	SenderName string
	Scope      Scope
	Text       string
	Attachment string
	CreatedAt  time.Time
}

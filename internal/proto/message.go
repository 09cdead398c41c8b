package proto

import "encoding/json"

// Inbound is the envelope for frames coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeJoin   = "join"
	InboundTypeLeave  = "leave"
	InboundTypeSend   = "send"
	InboundTypeDelete = "delete"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventSessionReady   = "session.ready"
	EventPresenceRoster = "presence.roster"
	EventMessageNew     = "message.new"
	EventMessageDeleted = "message.deleted"
	EventGroupCreated   = "group.created"
	EventGroupDeleted   = "group.deleted"
	EventStatusNew      = "status.new"
)

// JoinData requests to join (or leave) a group room.
type JoinData struct {
	GroupID int64 `json:"group_id"`
}

// SendData is a chat message from the client. Scope is the wire form
// of the conversation, e.g. "direct:42" or "group:7". TempID is a
// client-generated correlation id echoed back in the delivery event.
type SendData struct {
	Scope      string `json:"scope"`
	Text       string `json:"text,omitempty"`
	Attachment string `json:"attachment,omitempty"`
	TempID     string `json:"temp_id,omitempty"`
}

// DeleteData asks to delete a previously sent message.
type DeleteData struct {
	MessageID int64 `json:"message_id"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// SessionReadyData is pushed once after the websocket handshake so the
// client learns its connection id (used as fan-out origin on REST sends).
type SessionReadyData struct {
	ConnectionID string `json:"connection_id"`
	UserID       int64  `json:"user_id"`
	Protocol     int    `json:"protocol"`
}

// EventMessage carries a delivered message.
type EventMessage struct {
	ID         int64  `json:"id"`
	TempID     string `json:"temp_id,omitempty"`
	Scope      string `json:"scope"`
	SenderID   int64  `json:"sender_id"`
	SenderName string `json:"sender_name,omitempty"`
	Text       string `json:"text,omitempty"`
	Attachment string `json:"attachment,omitempty"`
	TS         int64  `json:"ts"`
}

// EventDeleted notifies that a message was removed.
type EventDeleted struct {
	MessageID int64  `json:"message_id"`
	Scope     string `json:"scope,omitempty"`
}

// EventRoster carries the full set of online user ids.
type EventRoster struct {
	Online []int64 `json:"online"`
}

// EventGroup describes a group in lifecycle events.
type EventGroup struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name,omitempty"`
	OwnerID int64   `json:"owner_id,omitempty"`
	Members []int64 `json:"members,omitempty"`
}

// EventStatus announces a freshly published status. ExpiresTS lets
// clients drop it locally without polling the server.
type EventStatus struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	Username  string `json:"username,omitempty"`
	Content   string `json:"content"`
	Kind      string `json:"kind"`
	TS        int64  `json:"ts"`
	ExpiresTS int64  `json:"expires_ts"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

package messages

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/core"
	"github.com/pulsechat/pulsechat-server/internal/store"
)

// Common errors for message operations.
var (
	ErrEmptyMessage  = errors.New("message has no text or attachment")
	ErrNotMember     = errors.New("sender is not a group member")
	ErrNotFound      = errors.New("message not found")
	ErrNotAuthorized = errors.New("not authorized for this message")
)

// Service persists messages and hands them to the hub for fan-out.
// Dispatch happens strictly after the store assigns the message id, so
// the sender and every recipient observe the same identifier.
type Service struct {
	store store.Store
	hub   *core.Hub
	log   zerolog.Logger
}

// New creates a message service.
func New(st store.Store, hub *core.Hub, logger *zerolog.Logger) *Service {
	lg := zerolog.Nop()
	if logger != nil {
		lg = *logger
	}
	return &Service{store: st, hub: hub, log: lg}
}

// SendInput carries one send request through the service.
type SendInput struct {
	SenderID   int64
	SenderName string
	Scope      core.Scope
	Text       string
	Attachment string
	// TempID is the client's correlation id, echoed in the envelope.
	TempID string
	// OriginConnID is the sender's originating connection, excluded
	// from fan-out because it applies the message optimistically.
	OriginConnID string
}

// Send persists a message and fans it out to live recipients. Fan-out
// outcomes never fail the send: the caller only ever sees persistence
// errors.
func (s *Service) Send(ctx context.Context, in SendInput) (*store.Message, error) {
	if in.Text == "" && in.Attachment == "" {
		return nil, ErrEmptyMessage
	}

	msg := &store.Message{
		SenderID:   in.SenderID,
		Text:       in.Text,
		Attachment: in.Attachment,
	}
	switch in.Scope.Kind {
	case core.ScopeGroup:
		member, err := s.store.IsMember(ctx, in.Scope.ID, in.SenderID)
		if err != nil {
			return nil, fmt.Errorf("check membership: %w", err)
		}
		if !member {
			return nil, ErrNotMember
		}
		groupID := in.Scope.ID
		msg.GroupID = &groupID
	default:
		peerID := in.Scope.ID
		msg.PeerID = &peerID
	}

	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}

	report := s.hub.Dispatch(core.Envelope{
		ID:         msg.ID,
		TempID:     in.TempID,
		SenderID:   in.SenderID,
		SenderName: in.SenderName,
		Scope:      in.Scope,
		Text:       msg.Text,
		Attachment: msg.Attachment,
		CreatedAt:  msg.CreatedAt,
	}, in.OriginConnID)

	s.log.Debug().
		Int64("message_id", msg.ID).
		Str("scope", in.Scope.Key()).
		Int("targets", report.Targets).
		Int("delivered", report.Delivered).
		Msg("message sent")

	return msg, nil
}

// Delete removes a message and fans the deletion out to every
// connection that could have seen it. Direct messages may be deleted
// by either participant, group messages only by their sender.
func (s *Service) Delete(ctx context.Context, userID, messageID int64, originConnID string) error {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("load message: %w", err)
	}

	scope := scopeOf(msg)
	switch {
	case msg.SenderID == userID:
	case !scope.IsGroup() && msg.PeerID != nil && *msg.PeerID == userID:
	default:
		return ErrNotAuthorized
	}

	deleted, err := s.store.DeleteMessage(ctx, messageID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}

	s.hub.DispatchDeletion(core.Envelope{
		ID:       msg.ID,
		SenderID: msg.SenderID,
		Scope:    scope,
	}, originConnID)

	s.log.Debug().Int64("message_id", messageID).Int64("by_user", userID).Msg("message deleted")
	return nil
}

// History returns a page of a conversation's messages, oldest first.
// Group history requires membership.
func (s *Service) History(ctx context.Context, userID int64, scope core.Scope, limit int, beforeID *int64) ([]*store.Message, error) {
	if scope.IsGroup() {
		member, err := s.store.IsMember(ctx, scope.ID, userID)
		if err != nil {
			return nil, fmt.Errorf("check membership: %w", err)
		}
		if !member {
			return nil, ErrNotMember
		}
		return s.store.ListGroupMessages(ctx, scope.ID, limit, beforeID)
	}
	return s.store.ListDirectMessages(ctx, userID, scope.ID, limit, beforeID)
}

func scopeOf(msg *store.Message) core.Scope {
	if msg.GroupID != nil {
		return core.GroupScope(*msg.GroupID)
	}
	if msg.PeerID != nil {
		return core.DirectScope(*msg.PeerID)
	}
	return core.Scope{}
}

package http

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pulsechat/pulsechat-server/internal/core"
	"github.com/pulsechat/pulsechat-server/internal/proto"
	"github.com/pulsechat/pulsechat-server/internal/service/messages"
)

// wsSession holds the per-connection state needed to act on inbound
// frames: the authenticated client, its frame budget, and the services
// that do the real work.
type wsSession struct {
	deps    Deps
	client  *core.Client
	limiter *rate.Limiter
	log     *zerolog.Logger
}

// handle acts on one inbound frame. A returned *proto.Error goes back
// to the client as an error frame; a returned error tears the
// connection down.
func (s *wsSession) handle(ctx context.Context, inbound proto.Inbound) (*proto.Error, error) {
	if !s.limiter.Allow() {
		return &proto.Error{Code: core.ErrCodeRateLimited, Msg: "too many frames"}, nil
	}

	switch inbound.Type {
	case proto.InboundTypeJoin:
		return s.handleJoin(ctx, inbound.Data, true)
	case proto.InboundTypeLeave:
		return s.handleJoin(ctx, inbound.Data, false)
	case proto.InboundTypeSend:
		return s.handleSend(ctx, inbound.Data)
	case proto.InboundTypeDelete:
		return s.handleDelete(ctx, inbound.Data)
	default:
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "unknown message type"}, nil
	}
}

func (s *wsSession) handleJoin(ctx context.Context, data json.RawMessage, join bool) (*proto.Error, error) {
	var req proto.JoinData
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	if req.GroupID <= 0 {
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "group_id is required"}, nil
	}

	if !join {
		s.deps.Hub.LeaveGroup(s.client, req.GroupID)
		return nil, nil
	}

	// Membership rows are the source of truth; the hub only tracks
	// which live connections asked to receive a room's fan-out.
	member, err := s.deps.Store.IsMember(ctx, req.GroupID, s.client.UserID)
	if err != nil {
		return nil, err
	}
	if !member {
		return &proto.Error{Code: core.ErrCodeNotMember, Msg: "not a group member"}, nil
	}

	s.deps.Hub.JoinGroup(s.client, req.GroupID)
	return nil, nil
}

func (s *wsSession) handleSend(ctx context.Context, data json.RawMessage) (*proto.Error, error) {
	var req proto.SendData
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}

	scope, err := core.ParseScopeKey(req.Scope)
	if err != nil {
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "invalid scope"}, nil
	}

	_, err = s.deps.Messages.Send(ctx, messages.SendInput{
		SenderID:     s.client.UserID,
		SenderName:   s.client.Username,
		Scope:        scope,
		Text:         req.Text,
		Attachment:   req.Attachment,
		TempID:       req.TempID,
		OriginConnID: s.client.ID,
	})
	return mapMessageError(err)
}

func (s *wsSession) handleDelete(ctx context.Context, data json.RawMessage) (*proto.Error, error) {
	var req proto.DeleteData
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	if req.MessageID <= 0 {
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "message_id is required"}, nil
	}

	err := s.deps.Messages.Delete(ctx, s.client.UserID, req.MessageID, s.client.ID)
	return mapMessageError(err)
}

func mapMessageError(err error) (*proto.Error, error) {
	switch {
	case err == nil:
		return nil, nil
	case errors.Is(err, messages.ErrEmptyMessage):
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "message is empty"}, nil
	case errors.Is(err, messages.ErrNotMember):
		return &proto.Error{Code: core.ErrCodeNotMember, Msg: "not a group member"}, nil
	case errors.Is(err, messages.ErrNotAuthorized):
		return &proto.Error{Code: core.ErrCodeUnauthorized, Msg: "not allowed"}, nil
	case errors.Is(err, messages.ErrNotFound):
		return &proto.Error{Code: core.ErrCodeNotFound, Msg: "message not found"}, nil
	default:
		return nil, err
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventMessageNew:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageNew,
			Data: proto.EventMessage{
				ID:         event.Envelope.ID,
				TempID:     event.Envelope.TempID,
				Scope:      event.Envelope.Scope.Key(),
				SenderID:   event.Envelope.SenderID,
				SenderName: event.Envelope.SenderName,
				Text:       event.Envelope.Text,
				Attachment: event.Envelope.Attachment,
				TS:         event.Envelope.CreatedAt.Unix(),
			},
		}
	case core.EventMessageDeleted:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageDeleted,
			Data: proto.EventDeleted{
				MessageID: event.MessageID,
				Scope:     event.Scope.Key(),
			},
		}
	case core.EventRoster:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventPresenceRoster,
			Data:  proto.EventRoster{Online: event.Online},
		}
	case core.EventGroupCreated, core.EventGroupDeleted:
		name := proto.EventGroupCreated
		if event.Kind == core.EventGroupDeleted {
			name = proto.EventGroupDeleted
		}
		data := proto.EventGroup{}
		if event.Group != nil {
			data = proto.EventGroup{
				ID:      event.Group.ID,
				Name:    event.Group.Name,
				OwnerID: event.Group.OwnerID,
				Members: event.Group.MemberIDs,
			}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: name,
			Data:  data,
		}
	case core.EventStatusNew:
		data := proto.EventStatus{}
		if event.Status != nil {
			data = proto.EventStatus{
				ID:        event.Status.ID,
				UserID:    event.Status.UserID,
				Username:  event.Status.Username,
				Content:   event.Status.Content,
				Kind:      event.Status.Kind,
				TS:        event.Status.CreatedAt.Unix(),
				ExpiresTS: event.Status.ExpiresAt.Unix(),
			}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventStatusNew,
			Data:  data,
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

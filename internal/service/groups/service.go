package groups

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/core"
	"github.com/pulsechat/pulsechat-server/internal/store"
)

// Common errors for group operations.
var (
	ErrInvalidName   = errors.New("invalid group name")
	ErrGroupNotFound = errors.New("group not found")
	ErrNotMember     = errors.New("not a group member")
	ErrNotOwner      = errors.New("only the group owner may do this")
)

// Service provides group management business logic. Persistence is the
// source of truth for membership rights; the hub is kept in sync so
// live room subscriptions never outlast the membership rows.
type Service struct {
	store store.Store
	hub   *core.Hub
	log   zerolog.Logger
}

// New creates a group service.
func New(st store.Store, hub *core.Hub, logger *zerolog.Logger) *Service {
	lg := zerolog.Nop()
	if logger != nil {
		lg = *logger
	}
	return &Service{store: st, hub: hub, log: lg}
}

// Create persists a group with the owner plus members and pushes a
// group.created event to every member's live connections.
func (s *Service) Create(ctx context.Context, ownerID int64, name string, memberIDs []int64) (*store.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 64 {
		return nil, ErrInvalidName
	}

	group, err := s.store.CreateGroup(ctx, name, ownerID, memberIDs)
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}

	members, err := s.store.ListMembers(ctx, group.ID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	s.hub.NotifyUsers(&core.Event{
		Kind:  core.EventGroupCreated,
		Group: s.groupInfo(group, members),
	}, members)

	s.log.Info().Int64("group_id", group.ID).Str("name", group.Name).Int64("owner_id", ownerID).Msg("group created")
	return group, nil
}

// Delete removes a group entirely. Owner only. Every member's live
// connections learn about it, and the room is dropped from the hub.
func (s *Service) Delete(ctx context.Context, userID, groupID int64) error {
	group, err := s.load(ctx, groupID)
	if err != nil {
		return err
	}
	if group.OwnerID != userID {
		return ErrNotOwner
	}

	members, err := s.store.ListMembers(ctx, groupID)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}

	if err := s.store.DeleteGroup(ctx, groupID); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}

	s.hub.DropGroup(groupID)
	s.hub.NotifyUsers(&core.Event{
		Kind:  core.EventGroupDeleted,
		Group: &core.GroupInfo{ID: groupID},
	}, members)

	s.log.Info().Int64("group_id", groupID).Int64("by_user", userID).Msg("group deleted")
	return nil
}

// AddMember grants a user membership. Any existing member may invite.
// The new member's live connections receive a group.created event so
// their client learns about the group immediately.
func (s *Service) AddMember(ctx context.Context, actorID, groupID, userID int64) error {
	group, err := s.load(ctx, groupID)
	if err != nil {
		return err
	}
	if err := s.requireMember(ctx, groupID, actorID); err != nil {
		return err
	}

	if err := s.store.AddMember(ctx, groupID, userID); err != nil {
		return fmt.Errorf("add member: %w", err)
	}

	members, err := s.store.ListMembers(ctx, groupID)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}
	s.hub.NotifyUsers(&core.Event{
		Kind:  core.EventGroupCreated,
		Group: s.groupInfo(group, members),
	}, []int64{userID})

	return nil
}

// RemoveMember revokes membership. Owner only; leaving yourself goes
// through Exit. The removed user's connections are evicted from the
// live room so fan-out stops immediately, and they are notified.
func (s *Service) RemoveMember(ctx context.Context, actorID, groupID, userID int64) error {
	group, err := s.load(ctx, groupID)
	if err != nil {
		return err
	}
	if group.OwnerID != actorID {
		return ErrNotOwner
	}

	return s.revoke(ctx, groupID, userID)
}

// Exit removes the calling user from the group.
func (s *Service) Exit(ctx context.Context, userID, groupID int64) error {
	if _, err := s.load(ctx, groupID); err != nil {
		return err
	}
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return err
	}

	return s.revoke(ctx, groupID, userID)
}

// List returns the groups a user belongs to.
func (s *Service) List(ctx context.Context, userID int64) ([]*store.Group, error) {
	return s.store.ListGroups(ctx, userID)
}

// Members returns a group's member ids, callable by members only.
func (s *Service) Members(ctx context.Context, userID, groupID int64) ([]int64, error) {
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, groupID)
}

func (s *Service) revoke(ctx context.Context, groupID, userID int64) error {
	if err := s.store.RemoveMember(ctx, groupID, userID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}

	s.hub.EvictUser(userID, groupID)
	s.hub.NotifyUsers(&core.Event{
		Kind:  core.EventGroupDeleted,
		Group: &core.GroupInfo{ID: groupID},
	}, []int64{userID})
	return nil
}

func (s *Service) load(ctx context.Context, groupID int64) (*store.Group, error) {
	group, err := s.store.GetGroupByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("load group: %w", err)
	}
	return group, nil
}

func (s *Service) requireMember(ctx context.Context, groupID, userID int64) error {
	member, err := s.store.IsMember(ctx, groupID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return ErrNotMember
	}
	return nil
}

func (s *Service) groupInfo(group *store.Group, members []int64) *core.GroupInfo {
	return &core.GroupInfo{
		ID:        group.ID,
		Name:      group.Name,
		OwnerID:   group.OwnerID,
		MemberIDs: members,
	}
}

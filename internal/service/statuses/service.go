// Package statuses implements short-lived public stories. A status is
// visible to every user for 24 hours; publishing one broadcasts a
// status.new event to all live connections.
package statuses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/core"
	"github.com/pulsechat/pulsechat-server/internal/store"
)

// TTL is how long a status stays visible after publication.
const TTL = 24 * time.Hour

// Common errors for status operations.
var (
	ErrEmptyContent = errors.New("status content is empty")
	ErrInvalidKind  = errors.New("invalid status kind")
)

var validKinds = map[string]bool{
	"text":  true,
	"image": true,
	"video": true,
}

// Service provides status business logic: persistence with a fixed
// expiry plus a global broadcast on publish. Statuses are public, so
// fan-out targets every connection rather than a membership set.
type Service struct {
	store store.Store
	hub   *core.Hub
	log   zerolog.Logger
	now   func() time.Time
}

// New creates a status service.
func New(st store.Store, hub *core.Hub, logger *zerolog.Logger) *Service {
	lg := zerolog.Nop()
	if logger != nil {
		lg = *logger
	}
	return &Service{store: st, hub: hub, log: lg, now: time.Now}
}

// Create persists a status expiring TTL from now and broadcasts a
// status.new event to every live connection except the origin. For
// media kinds Content is an opaque reference produced by the uploader.
func (s *Service) Create(ctx context.Context, userID int64, content, kind, originConnID string) (*store.Status, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if !validKinds[kind] {
		return nil, ErrInvalidKind
	}

	st := &store.Status{
		UserID:    userID,
		Content:   content,
		Kind:      kind,
		ExpiresAt: s.now().Add(TTL),
	}
	if err := s.store.SaveStatus(ctx, st); err != nil {
		return nil, fmt.Errorf("save status: %w", err)
	}

	info := &core.StatusInfo{
		ID:        st.ID,
		UserID:    st.UserID,
		Content:   st.Content,
		Kind:      st.Kind,
		CreatedAt: st.CreatedAt,
		ExpiresAt: st.ExpiresAt,
	}
	if user, err := s.store.GetUserByID(ctx, userID); err == nil {
		info.Username = user.Username
	}

	report := s.hub.Broadcast(&core.Event{Kind: core.EventStatusNew, Status: info}, originConnID)

	s.log.Info().
		Int64("status_id", st.ID).
		Int64("user_id", userID).
		Str("kind", kind).
		Int("delivered", report.Delivered).
		Msg("status published")
	return st, nil
}

// List returns every unexpired status, newest first. Expired rows are
// pruned opportunistically so the table does not grow without bound.
func (s *Service) List(ctx context.Context) ([]*store.Status, error) {
	now := s.now()
	if n, err := s.store.PruneStatuses(ctx, now); err != nil {
		s.log.Warn().Err(err).Msg("prune statuses")
	} else if n > 0 {
		s.log.Debug().Int64("pruned", n).Msg("expired statuses removed")
	}
	return s.store.ListStatuses(ctx, now)
}

// ListForUser returns one user's unexpired statuses, newest first.
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]*store.Status, error) {
	return s.store.ListUserStatuses(ctx, userID, s.now())
}

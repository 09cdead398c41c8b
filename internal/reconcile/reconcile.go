// Package reconcile merges pushed server events into locally held,
// per-conversation ordered message lists. It is the client-side half
// of the delivery pipeline: the hub guarantees at-most-once-but-maybe-
// duplicated delivery, and this package guarantees the visible
// transcript never duplicates, loses, or misorders a message.
package reconcile

import (
	"sort"
	"sync"
	"time"

	"github.com/pulsechat/pulsechat-server/internal/core"
)

// Store holds one client session's view of its conversations, online
// roster, group list, and status feed. Safe for concurrent use.
type Store struct {
	mu sync.Mutex

	self          int64
	conversations map[string][]core.Envelope
	byMessageID   map[int64]string
	online        map[int64]struct{}
	groups        map[int64]core.GroupInfo
	statuses      []core.StatusInfo
}

// New builds an empty store for the given local user.
func New(selfUserID int64) *Store {
	return &Store{
		self:          selfUserID,
		conversations: make(map[string][]core.Envelope),
		byMessageID:   make(map[int64]string),
		online:        make(map[int64]struct{}),
		groups:        make(map[int64]core.GroupInfo),
	}
}

// Apply routes a pushed event to the matching merge rule.
func (s *Store) Apply(ev *core.Event) {
	switch ev.Kind {
	case core.EventMessageNew:
		s.ApplyDelivery(ev.Envelope)
	case core.EventMessageDeleted:
		s.ApplyDeletion(ev.MessageID)
	case core.EventRoster:
		s.ApplyRoster(ev.Online)
	case core.EventGroupCreated:
		if ev.Group != nil {
			s.ApplyGroupCreated(*ev.Group)
		}
	case core.EventGroupDeleted:
		if ev.Group != nil {
			s.ApplyGroupDeleted(ev.Group.ID)
		}
	case core.EventStatusNew:
		if ev.Status != nil {
			s.ApplyStatus(*ev.Status)
		}
	}
}

// ApplyOptimisticSend appends a locally sent message before server
// acknowledgment. The envelope must carry a client-generated TempID and
// no server id yet; the confirmed record later replaces it in place.
func (s *Store) ApplyOptimisticSend(env core.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.conversationKey(env)
	s.conversations[key] = append(s.conversations[key], env)
}

// ApplyDelivery merges a pushed or acknowledged message. A delivery
// whose id is already present is a no-op; a delivery correlating to an
// optimistic entry replaces that entry at its original position.
// Returns true if the transcript changed.
func (s *Store) ApplyDelivery(env core.Envelope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.byMessageID[env.ID]; seen {
		return false
	}

	key := s.conversationKey(env)
	list := s.conversations[key]

	if env.TempID != "" {
		for i := range list {
			if list[i].ID == 0 && list[i].TempID == env.TempID {
				list[i] = env
				s.byMessageID[env.ID] = key
				return true
			}
		}
	}

	s.conversations[key] = append(list, env)
	s.byMessageID[env.ID] = key
	return true
}

// ApplyDeletion removes the entry with the given id from whichever
// conversation contains it. Unknown ids are a no-op, not an error.
func (s *Store) ApplyDeletion(messageID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.byMessageID[messageID]
	if !ok {
		return false
	}
	delete(s.byMessageID, messageID)

	list := s.conversations[key]
	for i := range list {
		if list[i].ID == messageID {
			s.conversations[key] = append(list[:i], list[i+1:]...)
			break
		}
	}
	return true
}

// ApplyRoster replaces the online set wholesale, the simplest policy
// that cannot drift from the server's view.
func (s *Store) ApplyRoster(userIDs []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.online = make(map[int64]struct{}, len(userIDs))
	for _, id := range userIDs {
		s.online[id] = struct{}{}
	}
}

// ApplyGroupCreated records a group the local user now belongs to.
func (s *Store) ApplyGroupCreated(g core.GroupInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.ID] = g
}

// ApplyGroupDeleted forgets a group and its local transcript.
func (s *Store) ApplyGroupDeleted(groupID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.groups, groupID)
	key := core.GroupScope(groupID).Key()
	for _, env := range s.conversations[key] {
		delete(s.byMessageID, env.ID)
	}
	delete(s.conversations, key)
}

// Conversation returns a copy of the ordered transcript for a scope.
// Direct scopes are viewed from the local user's side: pass the peer's
// id regardless of who sent each message.
func (s *Store) Conversation(scope core.Scope) []core.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.conversations[scope.Key()]
	out := make([]core.Envelope, len(list))
	copy(out, list)
	return out
}

// IsOnline reports whether the user currently has a live connection,
// per the last roster broadcast.
func (s *Store) IsOnline(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.online[userID]
	return ok
}

// OnlineUserIDs returns the sorted online set.
func (s *Store) OnlineUserIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]int64, 0, len(s.online))
	for id := range s.online {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Groups returns the known groups sorted by id.
func (s *Store) Groups() []core.GroupInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.GroupInfo, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ApplyStatus prepends a pushed status to the feed. A status whose id
// is already present is a no-op. Returns true if the feed changed.
func (s *Store) ApplyStatus(st core.StatusInfo) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.statuses {
		if s.statuses[i].ID == st.ID {
			return false
		}
	}
	s.statuses = append([]core.StatusInfo{st}, s.statuses...)
	return true
}

// Statuses returns the feed with expired entries filtered out, newest
// first. Expiry is evaluated against now so the caller controls the
// clock.
func (s *Store) Statuses(now time.Time) []core.StatusInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.StatusInfo, 0, len(s.statuses))
	for _, st := range s.statuses {
		if st.ExpiresAt.After(now) {
			out = append(out, st)
		}
	}
	return out
}

// conversationKey resolves the local conversation a message belongs
// to. Group messages key by group id; direct messages key by the other
// participant, so a message we sent files under the peer and a message
// we received files under the sender.
func (s *Store) conversationKey(env core.Envelope) string {
	if env.Scope.IsGroup() {
		return env.Scope.Key()
	}
	if env.SenderID == s.self {
		return env.Scope.Key()
	}
	return core.DirectScope(env.SenderID).Key()
}

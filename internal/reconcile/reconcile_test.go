package reconcile

import (
	"testing"
	"time"

	"github.com/pulsechat/pulsechat-server/internal/core"
)

const self = int64(1)

func confirmed(id int64, sender int64, scope core.Scope, text string) core.Envelope {
	return core.Envelope{
		ID:        id,
		SenderID:  sender,
		Scope:     scope,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

func TestDeliveryIdempotent(t *testing.T) {
	s := New(self)
	env := confirmed(10, 2, core.DirectScope(1), "hi")

	if changed := s.ApplyDelivery(env); !changed {
		t.Fatal("first delivery must change the transcript")
	}
	if changed := s.ApplyDelivery(env); changed {
		t.Fatal("duplicate delivery must be a no-op")
	}

	list := s.Conversation(core.DirectScope(2))
	if len(list) != 1 || list[0].ID != 10 {
		t.Fatalf("expected single entry, got %v", list)
	}
}

func TestOptimisticReplaceInPlace(t *testing.T) {
	s := New(self)
	scope := core.DirectScope(2)

	s.ApplyOptimisticSend(core.Envelope{TempID: "tmp-1", SenderID: self, Scope: scope, Text: "first"})
	s.ApplyOptimisticSend(core.Envelope{TempID: "tmp-2", SenderID: self, Scope: scope, Text: "second"})

	conf := confirmed(20, self, scope, "first")
	conf.TempID = "tmp-1"
	if changed := s.ApplyDelivery(conf); !changed {
		t.Fatal("confirmation must change the transcript")
	}

	list := s.Conversation(scope)
	if len(list) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list))
	}
	if list[0].ID != 20 || list[0].TempID != "tmp-1" {
		t.Fatalf("confirmed entry must replace the optimistic one in place, got %+v", list[0])
	}
	if list[1].ID != 0 || list[1].TempID != "tmp-2" {
		t.Fatalf("unconfirmed entry must keep its position, got %+v", list[1])
	}

	// Duplicate confirmation (push echo) stays a no-op.
	if changed := s.ApplyDelivery(conf); changed {
		t.Fatal("duplicate confirmation must be a no-op")
	}
	if got := len(s.Conversation(scope)); got != 2 {
		t.Fatalf("expected 2 entries after duplicate confirmation, got %d", got)
	}
}

func TestDirectConversationKeyedByPeer(t *testing.T) {
	s := New(self)

	// Sent by us to user 2, received from user 2: same transcript.
	sent := confirmed(30, self, core.DirectScope(2), "ping")
	received := confirmed(31, 2, core.DirectScope(self), "pong")
	s.ApplyDelivery(sent)
	s.ApplyDelivery(received)

	list := s.Conversation(core.DirectScope(2))
	if len(list) != 2 || list[0].Text != "ping" || list[1].Text != "pong" {
		t.Fatalf("expected merged direct transcript, got %v", list)
	}
}

func TestDeletionRemovesAcrossConversations(t *testing.T) {
	s := New(self)
	s.ApplyDelivery(confirmed(40, 2, core.DirectScope(self), "direct"))
	s.ApplyDelivery(confirmed(41, 3, core.GroupScope(7), "group"))

	if removed := s.ApplyDeletion(41); !removed {
		t.Fatal("expected deletion to find the group message")
	}
	if got := s.Conversation(core.GroupScope(7)); len(got) != 0 {
		t.Fatalf("expected empty group transcript, got %v", got)
	}
	if got := s.Conversation(core.DirectScope(2)); len(got) != 1 {
		t.Fatalf("direct transcript must be untouched, got %v", got)
	}

	// Unknown id is a no-op, not an error.
	if removed := s.ApplyDeletion(999); removed {
		t.Fatal("deletion of unknown id must be a no-op")
	}
}

func TestRosterReplacedWholesale(t *testing.T) {
	s := New(self)

	s.ApplyRoster([]int64{1, 2, 3})
	if !s.IsOnline(3) {
		t.Fatal("expected user 3 online")
	}

	s.ApplyRoster([]int64{1, 4})
	if s.IsOnline(3) {
		t.Fatal("stale roster entry survived wholesale replacement")
	}
	if got := s.OnlineUserIDs(); len(got) != 2 || got[0] != 1 || got[1] != 4 {
		t.Fatalf("unexpected roster: %v", got)
	}
}

func TestGroupLifecycle(t *testing.T) {
	s := New(self)

	s.Apply(&core.Event{
		Kind:  core.EventGroupCreated,
		Group: &core.GroupInfo{ID: 7, Name: "team", OwnerID: 2, MemberIDs: []int64{1, 2}},
	})
	if got := s.Groups(); len(got) != 1 || got[0].Name != "team" {
		t.Fatalf("expected group recorded, got %v", got)
	}

	s.ApplyDelivery(confirmed(50, 2, core.GroupScope(7), "welcome"))

	s.Apply(&core.Event{Kind: core.EventGroupDeleted, Group: &core.GroupInfo{ID: 7}})
	if got := s.Groups(); len(got) != 0 {
		t.Fatalf("expected no groups, got %v", got)
	}
	if got := s.Conversation(core.GroupScope(7)); len(got) != 0 {
		t.Fatalf("expected transcript dropped with group, got %v", got)
	}
	// Its ids are forgotten too, so a re-created group starts clean.
	if removed := s.ApplyDeletion(50); removed {
		t.Fatal("deleted group's message ids must be forgotten")
	}
}

func TestStatusFeed(t *testing.T) {
	s := New(self)
	now := time.Now()

	first := core.StatusInfo{ID: 70, UserID: 2, Content: "morning", Kind: "text", ExpiresAt: now.Add(time.Hour)}
	second := core.StatusInfo{ID: 71, UserID: 3, Content: "img/x.png", Kind: "image", ExpiresAt: now.Add(time.Hour)}

	if changed := s.ApplyStatus(first); !changed {
		t.Fatal("first status must change the feed")
	}
	if changed := s.ApplyStatus(first); changed {
		t.Fatal("duplicate status must be a no-op")
	}
	s.Apply(&core.Event{Kind: core.EventStatusNew, Status: &second})

	// Newest first.
	feed := s.Statuses(now)
	if len(feed) != 2 || feed[0].ID != 71 || feed[1].ID != 70 {
		t.Fatalf("unexpected feed order: %v", feed)
	}

	// Expired entries drop out of view without a server round-trip.
	feed = s.Statuses(now.Add(2 * time.Hour))
	if len(feed) != 0 {
		t.Fatalf("expired statuses must be filtered, got %v", feed)
	}
}

func TestEventRouting(t *testing.T) {
	s := New(self)

	env := confirmed(60, 2, core.DirectScope(self), "hello")
	s.Apply(&core.Event{Kind: core.EventMessageNew, Envelope: env})
	s.Apply(&core.Event{Kind: core.EventMessageNew, Envelope: env})

	if got := s.Conversation(core.DirectScope(2)); len(got) != 1 {
		t.Fatalf("expected deduplicated transcript, got %v", got)
	}

	s.Apply(&core.Event{Kind: core.EventMessageDeleted, MessageID: 60})
	if got := s.Conversation(core.DirectScope(2)); len(got) != 0 {
		t.Fatalf("expected empty transcript, got %v", got)
	}
}

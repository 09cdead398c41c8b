package core

import (
	"context"
	"testing"
	"time"
)

func startHub(t *testing.T) *Hub {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)

	hub := NewHub(nil)
	go hub.Run(ctx)
	return hub
}

func containsID(ids []int64, want int64) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}

func TestPresenceOnlineIffConnected(t *testing.T) {
	hub := startHub(t)

	c1 := NewClient("c1", 1, "alice")
	c2 := NewClient("c2", 1, "alice")

	hub.RegisterClient(c1)
	hub.RegisterClient(c2)
	if ids := hub.OnlineUserIDs(); !containsID(ids, 1) {
		t.Fatalf("expected user online, got %v", ids)
	}

	hub.UnregisterClient(c1)
	if ids := hub.OnlineUserIDs(); !containsID(ids, 1) {
		t.Fatalf("user with one remaining connection must stay online, got %v", ids)
	}

	hub.UnregisterClient(c2)
	if ids := hub.OnlineUserIDs(); containsID(ids, 1) {
		t.Fatalf("expected user offline, got %v", ids)
	}
}

func TestRosterBroadcastOnPresenceChange(t *testing.T) {
	hub := startHub(t)

	alice := NewClient("a1", 1, "alice")
	hub.RegisterClient(alice)
	mustEvent(t, alice.Events, EventRoster)

	bob := NewClient("b1", 2, "bob")
	hub.RegisterClient(bob)

	ev := mustEvent(t, alice.Events, EventRoster)
	if !containsID(ev.Online, 1) || !containsID(ev.Online, 2) {
		t.Fatalf("expected both users in roster, got %v", ev.Online)
	}

	hub.UnregisterClient(bob)
	ev = mustEvent(t, alice.Events, EventRoster)
	if containsID(ev.Online, 2) {
		t.Fatalf("expected bob offline in roster, got %v", ev.Online)
	}
}

func TestSecondConnectionReceivesRoster(t *testing.T) {
	hub := startHub(t)

	first := NewClient("a1", 1, "alice")
	second := NewClient("a2", 1, "alice")

	hub.RegisterClient(first)
	hub.RegisterClient(second)

	// The user was already online, so no broadcast fires, but the new
	// connection still needs its initial online-set view.
	ev := mustEvent(t, second.Events, EventRoster)
	if !containsID(ev.Online, 1) {
		t.Fatalf("expected roster with user 1, got %v", ev.Online)
	}
}

func TestDirectDeliverySingleTarget(t *testing.T) {
	hub := startHub(t)

	sender := NewClient("s1", 1, "alice")
	peer := NewClient("p1", 2, "bob")
	other := NewClient("o1", 3, "carol")
	hub.RegisterClient(sender)
	hub.RegisterClient(peer)
	hub.RegisterClient(other)

	env := Envelope{ID: 10, SenderID: 1, Scope: DirectScope(2), Text: "hi"}
	report := hub.Dispatch(env, sender.ID)

	if report.Targets != 1 || report.Delivered != 1 {
		t.Fatalf("expected exactly one target, got %+v", report)
	}

	ev := mustEvent(t, peer.Events, EventMessageNew)
	if ev.Envelope.ID != 10 || ev.Envelope.Text != "hi" {
		t.Fatalf("unexpected delivery: %+v", ev.Envelope)
	}

	mustNoEvent(t, other.Events, EventMessageNew)
	mustNoEvent(t, sender.Events, EventMessageNew)
}

func TestDirectDispatchOfflinePeer(t *testing.T) {
	hub := startHub(t)

	sender := NewClient("s1", 1, "alice")
	hub.RegisterClient(sender)

	env := Envelope{ID: 11, SenderID: 1, Scope: DirectScope(99), Text: "anyone there"}
	report := hub.Dispatch(env, sender.ID)

	if report.Targets != 0 || report.Delivered != 0 || report.Dropped != 0 {
		t.Fatalf("offline peer must yield an empty report, got %+v", report)
	}
}

func TestGroupDeliveryScopedToJoinedMembers(t *testing.T) {
	hub := startHub(t)

	const groupID = int64(7)

	a1 := NewClient("a1", 1, "alice")
	a2 := NewClient("a2", 1, "alice") // alice's second device
	b1 := NewClient("b1", 2, "bob")
	c1 := NewClient("c1", 3, "carol") // online, not joined
	for _, c := range []*Client{a1, a2, b1, c1} {
		hub.RegisterClient(c)
	}

	hub.JoinGroup(a1, groupID)
	hub.JoinGroup(a2, groupID)
	hub.JoinGroup(b1, groupID)

	env := Envelope{ID: 12, SenderID: 1, Scope: GroupScope(groupID), Text: "hello room"}
	report := hub.Dispatch(env, a1.ID)

	if report.Targets != 2 {
		t.Fatalf("expected the sender's other device and bob, got %+v", report)
	}

	mustEvent(t, b1.Events, EventMessageNew)
	mustEvent(t, a2.Events, EventMessageNew)
	mustNoEvent(t, c1.Events, EventMessageNew)
	mustNoEvent(t, a1.Events, EventMessageNew)
}

func TestDisconnectRemovesRoomMemberships(t *testing.T) {
	hub := startHub(t)

	const groupID = int64(7)

	member := NewClient("m1", 1, "alice")
	sender := NewClient("s1", 2, "bob")
	hub.RegisterClient(member)
	hub.RegisterClient(sender)
	hub.JoinGroup(member, groupID)
	hub.JoinGroup(sender, groupID)

	hub.UnregisterClient(member)

	env := Envelope{ID: 13, SenderID: 2, Scope: GroupScope(groupID), Text: "after leave"}
	report := hub.Dispatch(env, sender.ID)
	if report.Targets != 0 {
		t.Fatalf("closed connection must not remain a delivery target, got %+v", report)
	}
}

func TestDeletionFanoutDirect(t *testing.T) {
	hub := startHub(t)

	s1 := NewClient("s1", 1, "alice")
	s2 := NewClient("s2", 1, "alice")
	p1 := NewClient("p1", 2, "bob")
	for _, c := range []*Client{s1, s2, p1} {
		hub.RegisterClient(c)
	}

	env := Envelope{ID: 14, SenderID: 1, Scope: DirectScope(2)}
	report := hub.DispatchDeletion(env, s1.ID)
	if report.Targets != 2 {
		t.Fatalf("expected sender's other device plus peer, got %+v", report)
	}

	ev := mustEvent(t, s2.Events, EventMessageDeleted)
	if ev.MessageID != 14 {
		t.Fatalf("unexpected deletion event: %+v", ev)
	}
	mustEvent(t, p1.Events, EventMessageDeleted)
	mustNoEvent(t, s1.Events, EventMessageDeleted)
}

func TestEvictUserStopsGroupDelivery(t *testing.T) {
	hub := startHub(t)

	const groupID = int64(7)

	evicted := NewClient("e1", 1, "alice")
	sender := NewClient("s1", 2, "bob")
	hub.RegisterClient(evicted)
	hub.RegisterClient(sender)
	hub.JoinGroup(evicted, groupID)
	hub.JoinGroup(sender, groupID)

	hub.EvictUser(1, groupID)

	env := Envelope{ID: 15, SenderID: 2, Scope: GroupScope(groupID), Text: "bye"}
	report := hub.Dispatch(env, sender.ID)
	if report.Targets != 0 {
		t.Fatalf("evicted user must not receive group messages, got %+v", report)
	}
	mustNoEvent(t, evicted.Events, EventMessageNew)
}

func TestNotifyUsersReachesAllDevices(t *testing.T) {
	hub := startHub(t)

	a1 := NewClient("a1", 1, "alice")
	a2 := NewClient("a2", 1, "alice")
	b1 := NewClient("b1", 2, "bob")
	for _, c := range []*Client{a1, a2, b1} {
		hub.RegisterClient(c)
	}

	ev := &Event{Kind: EventGroupCreated, Group: &GroupInfo{ID: 7, Name: "team", OwnerID: 1, MemberIDs: []int64{1}}}
	report := hub.NotifyUsers(ev, []int64{1})
	if report.Targets != 2 {
		t.Fatalf("expected both of alice's devices, got %+v", report)
	}

	mustEvent(t, a1.Events, EventGroupCreated)
	mustEvent(t, a2.Events, EventGroupCreated)
	mustNoEvent(t, b1.Events, EventGroupCreated)
}

package core

// DeliveryReport counts fan-out outcomes. It exists purely for
// observability; delivery failures are never surfaced to the sender.
type DeliveryReport struct {
	Targets   int
	Delivered int
	Dropped   int
}

// Router computes the delivery set for each persisted message and
// pushes one event per target connection. It reads the registry and
// membership maps but never mutates them; the hub invokes it from the
// same goroutine that owns both.
type Router struct {
	registry *Registry
	rooms    *Memberships
}

// NewRouter constructs a router over the given registry and memberships.
func NewRouter(registry *Registry, rooms *Memberships) *Router {
	return &Router{registry: registry, rooms: rooms}
}

// Dispatch delivers a new-message event for an envelope to its live
// targets. originConnID names the sender's originating connection,
// which already applied the message optimistically and is skipped.
func (rt *Router) Dispatch(env Envelope, originConnID string) DeliveryReport {
	ev := &Event{Kind: EventMessageNew, Envelope: env, Scope: env.Scope}
	return deliver(rt.messageTargets(env, originConnID), ev)
}

// DispatchDeletion delivers a deletion event to every connection that
// could have seen the message: for direct scope the sender's other
// devices plus the peer's connections, for group scope the joined
// members minus the originating connection.
func (rt *Router) DispatchDeletion(env Envelope, originConnID string) DeliveryReport {
	ev := &Event{Kind: EventMessageDeleted, MessageID: env.ID, Scope: env.Scope}
	return deliver(rt.deletionTargets(env, originConnID), ev)
}

func (rt *Router) messageTargets(env Envelope, originConnID string) []*Client {
	if env.Scope.IsGroup() {
		// Scoped to room membership, never a global broadcast: only
		// joined members of the group may receive its messages. The
		// sender's other connections are included for multi-device
		// consistency.
		return without(rt.rooms.MembersOf(env.Scope.ID), originConnID)
	}
	return without(rt.registry.ConnectionsFor(env.Scope.ID), originConnID)
}

func (rt *Router) deletionTargets(env Envelope, originConnID string) []*Client {
	if env.Scope.IsGroup() {
		return without(rt.rooms.MembersOf(env.Scope.ID), originConnID)
	}
	targets := rt.registry.ConnectionsFor(env.SenderID)
	if env.Scope.ID != env.SenderID {
		targets = append(targets, rt.registry.ConnectionsFor(env.Scope.ID)...)
	}
	return without(targets, originConnID)
}

// deliver pushes the event to each target without ever blocking: a
// full buffer or dead connection counts as dropped, not as an error.
func deliver(targets []*Client, ev *Event) DeliveryReport {
	report := DeliveryReport{Targets: len(targets)}
	for _, c := range targets {
		select {
		case c.Events <- ev:
			report.Delivered++
		default:
			report.Dropped++
		}
	}
	return report
}

func without(clients []*Client, connID string) []*Client {
	if connID == "" {
		return clients
	}
	out := clients[:0]
	for _, c := range clients {
		if c.ID != connID {
			out = append(out, c)
		}
	}
	return out
}

package core

import (
	"context"

	"github.com/rs/zerolog"
)

// Hub owns the connection registry and room memberships and serializes
// every mutation through a single event loop. Fan-out reads happen on
// the same goroutine, so registry state is never observed mid-update.
// Sends to client channels never block (see Router), so a slow network
// writer cannot stall registry mutation.
type Hub struct {
	commands chan command
	done     chan struct{}

	registry *Registry
	rooms    *Memberships
	router   *Router
	log      zerolog.Logger
}

// NewHub constructs a hub. logger may be nil.
func NewHub(logger *zerolog.Logger) *Hub {
	registry := NewRegistry()
	rooms := NewMemberships()

	lg := zerolog.Nop()
	if logger != nil {
		lg = *logger
	}

	return &Hub{
		commands: make(chan command, 64),
		done:     make(chan struct{}),
		registry: registry,
		rooms:    rooms,
		router:   NewRouter(registry, rooms),
		log:      lg,
	}
}

// Run drains the command channel until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case cmd := <-h.commands:
			h.handle(cmd)
		case <-ctx.Done():
			return
		}
	}
}

// RegisterClient adds a live connection to the registry. The new
// connection always receives the current roster; all connections are
// notified when the user just came online.
func (h *Hub) RegisterClient(c *Client) {
	h.post(command{kind: cmdRegister, client: c})
}

// UnregisterClient tears a connection down: memberships are removed in
// full before the registry entry, so no room ever references a closed
// connection.
func (h *Hub) UnregisterClient(c *Client) {
	h.post(command{kind: cmdUnregister, client: c})
}

// JoinGroup subscribes a connection to a group room. The caller is
// responsible for membership authorization; the hub accepts only
// pre-authorized joins.
func (h *Hub) JoinGroup(c *Client, groupID int64) {
	h.post(command{kind: cmdJoinGroup, client: c, group: groupID})
}

// LeaveGroup unsubscribes a connection from a group room.
func (h *Hub) LeaveGroup(c *Client, groupID int64) {
	h.post(command{kind: cmdLeaveGroup, client: c, group: groupID})
}

// DropGroup evicts every connection from a deleted group's room.
func (h *Hub) DropGroup(groupID int64) {
	h.post(command{kind: cmdDropGroup, group: groupID})
}

// EvictUser removes all of a user's connections from a group room,
// used when the user loses membership while connected.
func (h *Hub) EvictUser(userID, groupID int64) {
	h.post(command{kind: cmdEvictUser, user: userID, group: groupID})
}

// Dispatch fans a persisted message out to its live recipients and
// reports how many targets were attempted. The envelope must already
// carry its server-assigned id.
func (h *Hub) Dispatch(env Envelope, originConnID string) DeliveryReport {
	return h.postReport(command{
		kind:     cmdDispatch,
		envelope: env,
		origin:   originConnID,
		report:   make(chan DeliveryReport, 1),
	})
}

// DispatchDeletion fans a deletion event out to every connection that
// could have seen the message.
func (h *Hub) DispatchDeletion(env Envelope, originConnID string) DeliveryReport {
	return h.postReport(command{
		kind:     cmdDispatchDeletion,
		envelope: env,
		origin:   originConnID,
		report:   make(chan DeliveryReport, 1),
	})
}

// NotifyUsers delivers a lifecycle event to every live connection of
// the given users, e.g. group.created to new members.
func (h *Hub) NotifyUsers(ev *Event, userIDs []int64) DeliveryReport {
	return h.postReport(command{
		kind:   cmdNotifyUsers,
		event:  ev,
		users:  userIDs,
		report: make(chan DeliveryReport, 1),
	})
}

// Broadcast delivers an event to every live connection except the
// origin, used for public announcements like status.new.
func (h *Hub) Broadcast(ev *Event, originConnID string) DeliveryReport {
	return h.postReport(command{
		kind:   cmdBroadcast,
		event:  ev,
		origin: originConnID,
		report: make(chan DeliveryReport, 1),
	})
}

// OnlineUserIDs returns a snapshot of currently online user ids.
func (h *Hub) OnlineUserIDs() []int64 {
	cmd := command{kind: cmdRoster, roster: make(chan []int64, 1)}
	select {
	case h.commands <- cmd:
	case <-h.done:
		return nil
	}
	select {
	case ids := <-cmd.roster:
		return ids
	case <-h.done:
		return nil
	}
}

func (h *Hub) post(cmd command) {
	select {
	case h.commands <- cmd:
	case <-h.done:
	}
}

func (h *Hub) postReport(cmd command) DeliveryReport {
	select {
	case h.commands <- cmd:
	case <-h.done:
		return DeliveryReport{}
	}
	select {
	case report := <-cmd.report:
		return report
	case <-h.done:
		return DeliveryReport{}
	}
}

func (h *Hub) handle(cmd command) {
	switch cmd.kind {
	case cmdRegister:
		cameOnline := h.registry.Add(cmd.client)
		if cameOnline {
			h.broadcastRoster()
		} else {
			h.sendRoster(cmd.client)
		}
		h.log.Debug().
			Str("conn_id", cmd.client.ID).
			Int64("user_id", cmd.client.UserID).
			Bool("came_online", cameOnline).
			Msg("connection registered")

	case cmdUnregister:
		h.rooms.LeaveAll(cmd.client)
		wentOffline := h.registry.Remove(cmd.client)
		if wentOffline {
			h.broadcastRoster()
		}
		h.log.Debug().
			Str("conn_id", cmd.client.ID).
			Int64("user_id", cmd.client.UserID).
			Bool("went_offline", wentOffline).
			Msg("connection unregistered")

	case cmdJoinGroup:
		h.rooms.Join(cmd.client, cmd.group)

	case cmdLeaveGroup:
		h.rooms.Leave(cmd.client, cmd.group)

	case cmdDropGroup:
		h.rooms.DropGroup(cmd.group)

	case cmdEvictUser:
		for _, c := range h.registry.ConnectionsFor(cmd.user) {
			h.rooms.Leave(c, cmd.group)
		}

	case cmdDispatch:
		report := h.router.Dispatch(cmd.envelope, cmd.origin)
		h.logReport("message fanout", cmd.envelope.ID, report)
		cmd.report <- report

	case cmdDispatchDeletion:
		report := h.router.DispatchDeletion(cmd.envelope, cmd.origin)
		h.logReport("deletion fanout", cmd.envelope.ID, report)
		cmd.report <- report

	case cmdNotifyUsers:
		var targets []*Client
		for _, userID := range cmd.users {
			targets = append(targets, h.registry.ConnectionsFor(userID)...)
		}
		cmd.report <- deliver(targets, cmd.event)

	case cmdBroadcast:
		var targets []*Client
		h.registry.Each(func(c *Client) {
			targets = append(targets, c)
		})
		cmd.report <- deliver(without(targets, cmd.origin), cmd.event)

	case cmdRoster:
		cmd.roster <- h.registry.OnlineUserIDs()
	}
}

// broadcastRoster replaces every client's online-set view wholesale.
func (h *Hub) broadcastRoster() {
	ev := &Event{Kind: EventRoster, Online: h.registry.OnlineUserIDs()}
	h.registry.Each(func(c *Client) {
		select {
		case c.Events <- ev:
		default:
		}
	})
}

func (h *Hub) sendRoster(c *Client) {
	ev := &Event{Kind: EventRoster, Online: h.registry.OnlineUserIDs()}
	select {
	case c.Events <- ev:
	default:
	}
}

func (h *Hub) logReport(what string, messageID int64, report DeliveryReport) {
	h.log.Debug().
		Int64("message_id", messageID).
		Int("targets", report.Targets).
		Int("delivered", report.Delivered).
		Int("dropped", report.Dropped).
		Msg(what)
}

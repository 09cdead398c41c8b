package core

import "sort"

// Registry maps an authenticated user id to the set of live connections.
// It is owned by the hub goroutine; all access happens inside the hub's
// event loop, so no locking is needed here.
type Registry struct {
	byUser map[int64]map[*Client]struct{}
	byConn map[string]*Client
}

// NewRegistry constructs an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[int64]map[*Client]struct{}),
		byConn: make(map[string]*Client),
	}
}

// Add registers a live connection for its user. Returns true when this
// is the user's first connection, i.e. the user just came online.
func (r *Registry) Add(c *Client) bool {
	conns, ok := r.byUser[c.UserID]
	if !ok {
		conns = make(map[*Client]struct{})
		r.byUser[c.UserID] = conns
	}
	conns[c] = struct{}{}
	r.byConn[c.ID] = c
	return !ok
}

// Remove drops a connection. Returns true when this was the user's last
// connection, i.e. the user just went offline. A user id stays in the
// registry only while it has at least one live connection.
func (r *Registry) Remove(c *Client) bool {
	delete(r.byConn, c.ID)
	conns, ok := r.byUser[c.UserID]
	if !ok {
		return false
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(r.byUser, c.UserID)
		return true
	}
	return false
}

// ConnectionsFor returns the live connections of a user. An empty result
// means the recipient is offline, which fan-out treats as a non-error.
func (r *Registry) ConnectionsFor(userID int64) []*Client {
	conns, ok := r.byUser[userID]
	if !ok {
		return nil
	}
	out := make([]*Client, 0, len(conns))
	for c := range conns {
		out = append(out, c)
	}
	return out
}

// OnlineUserIDs returns a sorted snapshot of online user ids for roster
// broadcasts.
func (r *Registry) OnlineUserIDs() []int64 {
	out := make([]int64, 0, len(r.byUser))
	for id := range r.byUser {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Each invokes fn for every live connection.
func (r *Registry) Each(fn func(*Client)) {
	for _, c := range r.byConn {
		fn(c)
	}
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	return len(r.byConn)
}

package core

// Memberships tracks which group rooms each connection has joined.
// The inverse index keeps fan-out lookups O(1) in the number of
// members. Owned by the hub goroutine, like Registry.
type Memberships struct {
	byConn  map[*Client]map[int64]struct{}
	byGroup map[int64]map[*Client]struct{}
}

// NewMemberships constructs an empty membership manager.
func NewMemberships() *Memberships {
	return &Memberships{
		byConn:  make(map[*Client]map[int64]struct{}),
		byGroup: make(map[int64]map[*Client]struct{}),
	}
}

// Join subscribes a connection to a group room. Idempotent.
func (m *Memberships) Join(c *Client, groupID int64) {
	groups, ok := m.byConn[c]
	if !ok {
		groups = make(map[int64]struct{})
		m.byConn[c] = groups
	}
	groups[groupID] = struct{}{}

	members, ok := m.byGroup[groupID]
	if !ok {
		members = make(map[*Client]struct{})
		m.byGroup[groupID] = members
	}
	members[c] = struct{}{}
}

// Leave unsubscribes a connection from a group room. Idempotent.
func (m *Memberships) Leave(c *Client, groupID int64) {
	if groups, ok := m.byConn[c]; ok {
		delete(groups, groupID)
		if len(groups) == 0 {
			delete(m.byConn, c)
		}
	}
	m.removeMember(c, groupID)
}

// LeaveAll removes every membership entry for a connection. Called
// exactly once during teardown, before the connection id becomes
// invalid; afterwards no group references the closed connection.
func (m *Memberships) LeaveAll(c *Client) {
	for groupID := range m.byConn[c] {
		m.removeMember(c, groupID)
	}
	delete(m.byConn, c)
}

// DropGroup removes a room and all its subscriptions, used when the
// group itself is deleted.
func (m *Memberships) DropGroup(groupID int64) {
	for c := range m.byGroup[groupID] {
		if groups, ok := m.byConn[c]; ok {
			delete(groups, groupID)
			if len(groups) == 0 {
				delete(m.byConn, c)
			}
		}
	}
	delete(m.byGroup, groupID)
}

// MembersOf returns the connections currently joined to a group room.
func (m *Memberships) MembersOf(groupID int64) []*Client {
	members, ok := m.byGroup[groupID]
	if !ok {
		return nil
	}
	out := make([]*Client, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	return out
}

// Groups returns the group ids a connection has joined.
func (m *Memberships) Groups(c *Client) []int64 {
	groups, ok := m.byConn[c]
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(groups))
	for id := range groups {
		out = append(out, id)
	}
	return out
}

func (m *Memberships) removeMember(c *Client, groupID int64) {
	members, ok := m.byGroup[groupID]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(m.byGroup, groupID)
	}
}

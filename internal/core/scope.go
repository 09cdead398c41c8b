package core

import (
	"fmt"
	"strconv"
	"strings"
)

// ScopeKind distinguishes direct conversations from group rooms.
type ScopeKind int

const (
	// ScopeDirect addresses a single peer user.
	ScopeDirect ScopeKind = iota
	// ScopeGroup addresses all joined members of a group room.
	ScopeGroup
)

// Scope identifies the conversation a message belongs to.
// For ScopeDirect, ID is the peer user id; for ScopeGroup, the group id.
type Scope struct {
	Kind ScopeKind
	ID   int64
}

// DirectScope builds a scope addressing one peer user.
func DirectScope(peerID int64) Scope {
	return Scope{Kind: ScopeDirect, ID: peerID}
}

// GroupScope builds a scope addressing a group room.
func GroupScope(groupID int64) Scope {
	return Scope{Kind: ScopeGroup, ID: groupID}
}

// Key renders the scope in its wire form, e.g. "direct:42" or "group:7".
func (s Scope) Key() string {
	switch s.Kind {
	case ScopeGroup:
		return "group:" + strconv.FormatInt(s.ID, 10)
	default:
		return "direct:" + strconv.FormatInt(s.ID, 10)
	}
}

// IsGroup reports whether the scope addresses a group room.
func (s Scope) IsGroup() bool {
	return s.Kind == ScopeGroup
}

// ParseScopeKey parses the wire form produced by Key.
func ParseScopeKey(key string) (Scope, error) {
	kind, rest, ok := strings.Cut(key, ":")
	if !ok {
		return Scope{}, fmt.Errorf("malformed scope %q", key)
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return Scope{}, fmt.Errorf("malformed scope id %q", key)
	}
	switch kind {
	case "direct":
		return DirectScope(id), nil
	case "group":
		return GroupScope(id), nil
	default:
		return Scope{}, fmt.Errorf("unknown scope kind %q", key)
	}
}

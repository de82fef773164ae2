package models

import (
	"strings"
	"time"

	pkgerrors "relayconf/pkg/errors"
)

// Group is a named set of configurations. At most one group is active.
type Group struct {
	ID        int64     `json:"id"` // 0 until persisted
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the fields a group must carry before it is persisted.
func (g *Group) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return &pkgerrors.ValidationError{Entity: "group", Field: "name", Reason: "is required"}
	}
	return nil
}

// Clone returns a copy that shares no state with g.
func (g *Group) Clone() *Group {
	if g == nil {
		return nil
	}
	c := *g
	return &c
}

// CloneGroups copies every group in the slice.
func CloneGroups(groups []*Group) []*Group {
	out := make([]*Group, len(groups))
	for i, g := range groups {
		out[i] = g.Clone()
	}
	return out
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// HierarchyEdge records a single parent-child spawn relationship. The full
// hierarchy forest is the set of all HierarchyEdges; an agent's ancestors and
// descendants are derived by walking this edge set rather than stored
// redundantly on Agent itself.
type HierarchyEdge struct {
	ParentID  uuid.UUID
	ChildID   uuid.UUID
	RootID    uuid.UUID
	Depth     int
	CreatedAt time.Time
}

// NewHierarchyEdge constructs the edge recorded when child is spawned under parent.
func NewHierarchyEdge(parent, child *Agent, now time.Time) *HierarchyEdge {
	return &HierarchyEdge{
		ParentID:  parent.ID,
		ChildID:   child.ID,
		RootID:    parent.RootID,
		Depth:     child.Depth,
		CreatedAt: now,
	}
}

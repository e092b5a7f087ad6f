package domain

import (
	"time"

	"github.com/google/uuid"

	kerrors "github.com/agentmesh/kernel/internal/domain/errors"
)

// Agent is a unit of work in the orchestration hierarchy: a running task with
// its own budget, status, and optionally its own children.
type Agent struct {
	ID        uuid.UUID
	ParentID  *uuid.UUID
	RootID    uuid.UUID
	Depth     int
	Name      string
	Task      string
	Status    AgentStatus
	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
	EndedAt   *time.Time
}

// NewAgent constructs a root agent (no parent, depth zero). RootID is its own
// ID since a root is the head of its own hierarchy tree.
func NewAgent(id uuid.UUID, name, task string, metadata map[string]any, now time.Time) *Agent {
	return &Agent{
		ID:        id,
		ParentID:  nil,
		RootID:    id,
		Depth:     0,
		Name:      name,
		Task:      task,
		Status:    AgentStatusPending,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewChildAgent constructs an agent spawned under parent, inheriting the
// parent's root and incrementing depth by one.
func NewChildAgent(id uuid.UUID, parent *Agent, name, task string, metadata map[string]any, now time.Time) *Agent {
	return &Agent{
		ID:        id,
		ParentID:  &parent.ID,
		RootID:    parent.RootID,
		Depth:     parent.Depth + 1,
		Name:      name,
		Task:      task,
		Status:    AgentStatusPending,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsRoot reports whether a has no parent.
func (a *Agent) IsRoot() bool {
	return a.ParentID == nil
}

// Transition moves the agent to next if the current status permits it,
// stamping UpdatedAt and, for terminal statuses, EndedAt.
func (a *Agent) Transition(next AgentStatus, now time.Time) error {
	if !a.Status.CanTransitionTo(next) {
		return kerrors.NewInvalidTransitionError("agent", string(a.Status), string(next))
	}
	a.Status = next
	a.UpdatedAt = now
	if next.IsTerminal() {
		a.EndedAt = &now
	}
	return nil
}

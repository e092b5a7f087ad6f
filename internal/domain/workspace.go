package domain

import (
	"time"

	"github.com/google/uuid"
)

// Workspace is an isolated filesystem/VCS worktree assigned to an agent so
// that sibling agents can work concurrently without colliding on shared
// state. The actual worktree operations are delegated to a WorktreeDriver;
// Workspace itself only tracks the assignment's lifecycle.
type Workspace struct {
	ID        uuid.UUID
	AgentID   uuid.UUID
	Path      string
	Branch    string
	Status    WorkspaceStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewWorkspace constructs an active workspace bound to agentID.
func NewWorkspace(id, agentID uuid.UUID, path, branch string, now time.Time) *Workspace {
	return &Workspace{
		ID:        id,
		AgentID:   agentID,
		Path:      path,
		Branch:    branch,
		Status:    WorkspaceStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkMerged records that the workspace's changes were merged upstream.
func (w *Workspace) MarkMerged(now time.Time) {
	w.Status = WorkspaceStatusMerged
	w.UpdatedAt = now
}

// MarkDiscarded records that the workspace's changes were thrown away.
func (w *Workspace) MarkDiscarded(now time.Time) {
	w.Status = WorkspaceStatusDiscarded
	w.UpdatedAt = now
}

// MarkDeleted records that the underlying worktree has been removed from disk.
func (w *Workspace) MarkDeleted(now time.Time) {
	w.Status = WorkspaceStatusDeleted
	w.UpdatedAt = now
}

// EligibleForCleanup reports whether w's status/age combination makes it a
// candidate for the workspace janitor: merged workspaces whose UpdatedAt is
// at least mergedMaxAge old, or discarded workspaces at least
// discardedMaxAge old. No other status is eligible.
func (w *Workspace) EligibleForCleanup(now time.Time, mergedMaxAge, discardedMaxAge time.Duration) bool {
	age := now.Sub(w.UpdatedAt)
	switch w.Status {
	case WorkspaceStatusMerged:
		return age >= mergedMaxAge
	case WorkspaceStatusDiscarded:
		return age >= discardedMaxAge
	default:
		return false
	}
}

// Package workspace manages the per-agent isolated working copy: creating
// it through a WorktreeDriver, tracking its lifecycle in the Workspace
// table, and sweeping stale entries for cleanup.
package workspace

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentmesh/kernel/internal/domain"
	kerrors "github.com/agentmesh/kernel/internal/domain/errors"
)

// Clock abstracts the current time so tests can control it deterministically.
type Clock func() time.Time

// Manager coordinates a WorktreeDriver with the Workspace repository.
// Creation failures never fail the owning agent's spawn: a workspace is a
// convenience the agent's execution can use, not a precondition for it to
// exist.
type Manager struct {
	workspaces domain.WorkspaceRepository
	driver     WorktreeDriver
	now        Clock
}

// New constructs a Manager.
func New(workspaces domain.WorkspaceRepository, driver WorktreeDriver, now Clock) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{workspaces: workspaces, driver: driver, now: now}
}

// Create provisions an isolated working copy for agentID and records it as
// active. Any driver error is wrapped as a WorkspaceFailure rather than
// surfaced raw, since the caller only needs to know isolation failed, not
// which VCS primitive it failed on.
func (m *Manager) Create(ctx context.Context, agentID uuid.UUID) (*domain.Workspace, error) {
	branch := fmt.Sprintf("agent/%s", agentID)
	path, err := m.driver.Create(ctx, agentID.String(), branch)
	if err != nil {
		return nil, kerrors.NewWorkspaceFailure(agentID.String(), "failed to create worktree", err)
	}

	ws := domain.NewWorkspace(uuid.New(), agentID, path, branch, m.now())
	if err := m.workspaces.SaveWorkspace(ctx, ws); err != nil {
		return nil, err
	}
	return ws, nil
}

// Diff reports the current changes in agentID's workspace.
func (m *Manager) Diff(ctx context.Context, agentID uuid.UUID) (Diff, error) {
	ws, err := m.workspaces.FindWorkspaceByAgentID(ctx, agentID)
	if err != nil {
		return Diff{}, err
	}
	diff, err := m.driver.Diff(ctx, ws.Path)
	if err != nil {
		return Diff{}, kerrors.NewWorkspaceFailure(agentID.String(), "failed to compute diff", err)
	}
	return diff, nil
}

// Changed reports whether agentID's workspace has uncommitted changes.
func (m *Manager) Changed(ctx context.Context, agentID uuid.UUID) (bool, error) {
	ws, err := m.workspaces.FindWorkspaceByAgentID(ctx, agentID)
	if err != nil {
		return false, err
	}
	changed, err := m.driver.Changed(ctx, ws.Path)
	if err != nil {
		return false, kerrors.NewWorkspaceFailure(agentID.String(), "failed to check worktree status", err)
	}
	return changed, nil
}

// UpdateStatus transitions agentID's workspace to merged, discarded or
// deleted, deleting the underlying worktree for discarded and deleted; any
// other target status is rejected as a validation failure.
func (m *Manager) UpdateStatus(ctx context.Context, agentID uuid.UUID, status domain.WorkspaceStatus) error {
	ws, err := m.workspaces.FindWorkspaceByAgentID(ctx, agentID)
	if err != nil {
		return err
	}

	now := m.now()
	switch status {
	case domain.WorkspaceStatusMerged:
		ws.MarkMerged(now)
	case domain.WorkspaceStatusDiscarded:
		ws.MarkDiscarded(now)
		if err := m.driver.Delete(ctx, ws.Path); err != nil {
			return kerrors.NewWorkspaceFailure(agentID.String(), "failed to delete worktree", err)
		}
	case domain.WorkspaceStatusDeleted:
		ws.MarkDeleted(now)
		if err := m.driver.Delete(ctx, ws.Path); err != nil {
			return kerrors.NewWorkspaceFailure(agentID.String(), "failed to delete worktree", err)
		}
	default:
		return kerrors.NewValidationFailure("workspace_status", fmt.Sprintf("unsupported target status %q", status))
	}
	return m.workspaces.SaveWorkspace(ctx, ws)
}

// Cleanup deletes every workspace eligible under mergedMaxAge/discardedMaxAge
// and marks it WorkspaceStatusDeleted, returning how many were removed.
func (m *Manager) Cleanup(ctx context.Context, mergedMaxAge, discardedMaxAge time.Duration) (int, error) {
	now := m.now()
	eligible, err := m.workspaces.FindEligibleForCleanup(ctx, now, mergedMaxAge, discardedMaxAge)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, ws := range eligible {
		if err := m.driver.Delete(ctx, ws.Path); err != nil {
			continue
		}
		ws.MarkDeleted(now)
		if err := m.workspaces.SaveWorkspace(ctx, ws); err != nil {
			continue
		}
		removed++
	}
	return removed, nil
}

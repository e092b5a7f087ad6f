package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/agentmesh/kernel/internal/domain"
)

type workspaceModel struct {
	bun.BaseModel `bun:"table:workspaces,alias:ws"`

	ID        uuid.UUID `bun:"id,pk"`
	AgentID   uuid.UUID `bun:"agent_id"`
	Path      string    `bun:"path"`
	Branch    string    `bun:"branch"`
	Status    string    `bun:"status"`
	CreatedAt time.Time `bun:"created_at"`
	UpdatedAt time.Time `bun:"updated_at"`
}

func newWorkspaceModel(w *domain.Workspace) *workspaceModel {
	return &workspaceModel{
		ID:        w.ID,
		AgentID:   w.AgentID,
		Path:      w.Path,
		Branch:    w.Branch,
		Status:    string(w.Status),
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

func (m *workspaceModel) toDomain() *domain.Workspace {
	return &domain.Workspace{
		ID:        m.ID,
		AgentID:   m.AgentID,
		Path:      m.Path,
		Branch:    m.Branch,
		Status:    domain.WorkspaceStatus(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// SaveWorkspace upserts ws.
func (s *BunStore) SaveWorkspace(ctx context.Context, ws *domain.Workspace) error {
	model := newWorkspaceModel(ws)
	_, err := s.conn(ctx).NewInsert().Model(model).On("CONFLICT (id) DO UPDATE").Exec(ctx)
	return err
}

// FindWorkspaceByID loads the workspace with id.
func (s *BunStore) FindWorkspaceByID(ctx context.Context, id uuid.UUID) (*domain.Workspace, error) {
	model := new(workspaceModel)
	if err := s.conn(ctx).NewSelect().Model(model).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}
	return model.toDomain(), nil
}

// FindWorkspaceByAgentID loads agentID's workspace.
func (s *BunStore) FindWorkspaceByAgentID(ctx context.Context, agentID uuid.UUID) (*domain.Workspace, error) {
	model := new(workspaceModel)
	if err := s.conn(ctx).NewSelect().Model(model).Where("agent_id = ?", agentID).Scan(ctx); err != nil {
		return nil, err
	}
	return model.toDomain(), nil
}

// FindEligibleForCleanup returns every workspace whose status/age combination
// makes it a janitor candidate, mirroring Workspace.EligibleForCleanup at the
// SQL level so the whole table doesn't need to be loaded into memory first.
func (s *BunStore) FindEligibleForCleanup(ctx context.Context, now time.Time, mergedMaxAge, discardedMaxAge time.Duration) ([]*domain.Workspace, error) {
	var models []workspaceModel
	err := s.conn(ctx).NewSelect().
		Model(&models).
		Where("(status = ? AND updated_at <= ?) OR (status = ? AND updated_at <= ?)",
			string(domain.WorkspaceStatusMerged), now.Add(-mergedMaxAge),
			string(domain.WorkspaceStatusDiscarded), now.Add(-discardedMaxAge)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Workspace, len(models))
	for i := range models {
		out[i] = models[i].toDomain()
	}
	return out, nil
}

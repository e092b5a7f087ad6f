package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/agentmesh/kernel/internal/domain"
	kerrors "github.com/agentmesh/kernel/internal/domain/errors"
)

type agentModel struct {
	bun.BaseModel `bun:"table:agents,alias:ag"`

	ID        uuid.UUID      `bun:"id,pk"`
	ParentID  *uuid.UUID     `bun:"parent_id"`
	RootID    uuid.UUID      `bun:"root_id"`
	Depth     int            `bun:"depth"`
	Name      string         `bun:"name"`
	Task      string         `bun:"task"`
	Status    string         `bun:"status"`
	Metadata  map[string]any `bun:"metadata,type:jsonb"`
	CreatedAt time.Time      `bun:"created_at"`
	UpdatedAt time.Time      `bun:"updated_at"`
	EndedAt   *time.Time     `bun:"ended_at"`
}

func newAgentModel(a *domain.Agent) *agentModel {
	return &agentModel{
		ID:        a.ID,
		ParentID:  a.ParentID,
		RootID:    a.RootID,
		Depth:     a.Depth,
		Name:      a.Name,
		Task:      a.Task,
		Status:    string(a.Status),
		Metadata:  a.Metadata,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
		EndedAt:   a.EndedAt,
	}
}

func (m *agentModel) toDomain() *domain.Agent {
	return &domain.Agent{
		ID:        m.ID,
		ParentID:  m.ParentID,
		RootID:    m.RootID,
		Depth:     m.Depth,
		Name:      m.Name,
		Task:      m.Task,
		Status:    domain.AgentStatus(m.Status),
		Metadata:  m.Metadata,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		EndedAt:   m.EndedAt,
	}
}

// SaveAgent upserts agent.
func (s *BunStore) SaveAgent(ctx context.Context, agent *domain.Agent) error {
	model := newAgentModel(agent)
	_, err := s.conn(ctx).NewInsert().Model(model).On("CONFLICT (id) DO UPDATE").Exec(ctx)
	return err
}

// FindAgentByID loads the agent with id.
func (s *BunStore) FindAgentByID(ctx context.Context, id uuid.UUID) (*domain.Agent, error) {
	model := new(agentModel)
	if err := s.conn(ctx).NewSelect().Model(model).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, kerrors.NewNotFound("agent", id.String())
	}
	return model.toDomain(), nil
}

// FindChildren lists every agent whose parent is parentID.
func (s *BunStore) FindChildren(ctx context.Context, parentID uuid.UUID) ([]*domain.Agent, error) {
	var models []agentModel
	if err := s.conn(ctx).NewSelect().Model(&models).Where("parent_id = ?", parentID).Scan(ctx); err != nil {
		return nil, err
	}
	return toAgentSlice(models), nil
}

// FindByRoot lists every agent belonging to rootID's hierarchy tree.
func (s *BunStore) FindByRoot(ctx context.Context, rootID uuid.UUID) ([]*domain.Agent, error) {
	var models []agentModel
	if err := s.conn(ctx).NewSelect().Model(&models).Where("root_id = ?", rootID).Scan(ctx); err != nil {
		return nil, err
	}
	return toAgentSlice(models), nil
}

// FindByStatus lists every agent currently in status.
func (s *BunStore) FindByStatus(ctx context.Context, status domain.AgentStatus) ([]*domain.Agent, error) {
	var models []agentModel
	if err := s.conn(ctx).NewSelect().Model(&models).Where("status = ?", string(status)).Scan(ctx); err != nil {
		return nil, err
	}
	return toAgentSlice(models), nil
}

// AgentExists reports whether an agent with id is stored.
func (s *BunStore) AgentExists(ctx context.Context, id uuid.UUID) (bool, error) {
	count, err := s.conn(ctx).NewSelect().Model((*agentModel)(nil)).Where("id = ?", id).Count(ctx)
	return count > 0, err
}

func toAgentSlice(models []agentModel) []*domain.Agent {
	out := make([]*domain.Agent, len(models))
	for i := range models {
		out[i] = models[i].toDomain()
	}
	return out
}

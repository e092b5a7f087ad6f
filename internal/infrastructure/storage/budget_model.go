package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/agentmesh/kernel/internal/domain"
	kerrors "github.com/agentmesh/kernel/internal/domain/errors"
)

type budgetAccountModel struct {
	bun.BaseModel `bun:"table:budget_accounts,alias:ba"`

	AgentID   uuid.UUID `bun:"agent_id,pk"`
	Allocated int64     `bun:"allocated"`
	Used      int64     `bun:"used"`
	Reserved  int64     `bun:"reserved"`
	Frozen    bool      `bun:"frozen"`
	Reclaimed bool      `bun:"reclaimed"`
	UpdatedAt time.Time `bun:"updated_at"`
}

func newBudgetAccountModel(a *domain.BudgetAccount) *budgetAccountModel {
	return &budgetAccountModel{
		AgentID:   a.AgentID,
		Allocated: a.Allocated,
		Used:      a.Used,
		Reserved:  a.Reserved,
		Frozen:    a.Frozen,
		Reclaimed: a.Reclaimed,
		UpdatedAt: a.UpdatedAt,
	}
}

func (m *budgetAccountModel) toDomain() *domain.BudgetAccount {
	return &domain.BudgetAccount{
		AgentID:   m.AgentID,
		Allocated: m.Allocated,
		Used:      m.Used,
		Reserved:  m.Reserved,
		Frozen:    m.Frozen,
		Reclaimed: m.Reclaimed,
		UpdatedAt: m.UpdatedAt,
	}
}

// SaveAccount upserts account.
func (s *BunStore) SaveAccount(ctx context.Context, account *domain.BudgetAccount) error {
	model := newBudgetAccountModel(account)
	_, err := s.conn(ctx).NewInsert().Model(model).On("CONFLICT (agent_id) DO UPDATE").Exec(ctx)
	return err
}

// FindByAgentID loads agentID's budget account without locking.
func (s *BunStore) FindByAgentID(ctx context.Context, agentID uuid.UUID) (*domain.BudgetAccount, error) {
	model := new(budgetAccountModel)
	if err := s.conn(ctx).NewSelect().Model(model).Where("agent_id = ?", agentID).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, kerrors.NewNotFound("budget_account", agentID.String())
		}
		return nil, err
	}
	return model.toDomain(), nil
}

// FindByAgentIDForUpdate loads agentID's budget account under a row lock, so
// two concurrent spawns against the same parent serialize instead of racing
// each other's Reserve/Consume.
func (s *BunStore) FindByAgentIDForUpdate(ctx context.Context, agentID uuid.UUID) (*domain.BudgetAccount, error) {
	model := new(budgetAccountModel)
	if err := s.conn(ctx).NewSelect().Model(model).Where("agent_id = ?", agentID).For("UPDATE").Scan(ctx); err != nil {
		return nil, err
	}
	return model.toDomain(), nil
}

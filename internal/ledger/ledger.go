// Package ledger implements the hierarchical budget ledger: every agent has a
// BudgetAccount, and allocating a child's budget reserves it against the
// parent's account until the child is reclaimed or consumes it outright.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agentmesh/kernel/internal/domain"
	kerrors "github.com/agentmesh/kernel/internal/domain/errors"
)

// Clock abstracts the current time so tests can control it deterministically.
type Clock func() time.Time

// Ledger enforces the budget conservation invariant across the agent
// hierarchy: an account's Allocated amount always equals Used + Reserved +
// Available, checked under a per-account row lock so concurrent spawns
// against the same parent serialize correctly.
type Ledger struct {
	store     domain.BudgetRepository
	hierarchy domain.HierarchyRepository
	now       Clock
}

// New constructs a Ledger backed by store for account persistence and
// hierarchy for resolving a child's parent when reclaiming budget.
func New(store domain.BudgetRepository, hierarchy domain.HierarchyRepository, now Clock) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{store: store, hierarchy: hierarchy, now: now}
}

// accountExists reports whether agentID already has a budget account,
// distinguishing "not found" from a genuine store failure.
func (l *Ledger) accountExists(ctx context.Context, agentID uuid.UUID) (bool, error) {
	_, err := l.store.FindByAgentID(ctx, agentID)
	if err == nil {
		return true, nil
	}
	if kerrors.KindOf(err) == kerrors.KindNotFound {
		return false, nil
	}
	return false, err
}

// OpenRoot opens a fresh account for a root agent with the given allocation.
// It fails if allocation is not positive or agentID already has an account.
func (l *Ledger) OpenRoot(ctx context.Context, agentID uuid.UUID, allocation int64) (*domain.BudgetAccount, error) {
	if allocation <= 0 {
		return nil, kerrors.NewValidationFailure("ledger.open_root", "allocation must be positive")
	}
	exists, err := l.accountExists(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, kerrors.NewConflict("ledger.open_root", "budget account already exists")
	}

	account := domain.NewBudgetAccount(agentID, allocation, l.now())
	if err := l.store.SaveAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// AllocateChild reserves amount out of parentID's account and opens a new
// account of that size for childID. Both mutations happen under the
// parent's row lock so two concurrent spawns cannot both succeed against an
// account that can only satisfy one of them. It fails if amount is not
// positive or childID already has an account.
func (l *Ledger) AllocateChild(ctx context.Context, parentID, childID uuid.UUID, amount int64) (*domain.BudgetAccount, error) {
	if amount <= 0 {
		return nil, kerrors.NewValidationFailure("ledger.allocate_child", "allocation must be positive")
	}
	exists, err := l.accountExists(ctx, childID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, kerrors.NewConflict("ledger.allocate_child", "child already has a budget account")
	}

	parent, err := l.store.FindByAgentIDForUpdate(ctx, parentID)
	if err != nil {
		return nil, err
	}

	now := l.now()
	if err := parent.Reserve(amount, now); err != nil {
		return nil, err
	}
	if err := l.store.SaveAccount(ctx, parent); err != nil {
		return nil, err
	}

	child := domain.NewBudgetAccount(childID, amount, now)
	if err := l.store.SaveAccount(ctx, child); err != nil {
		return nil, err
	}
	return child, nil
}

// Consume records amount as spent by agentID out of its available balance.
// Reserved budget committed to children is never touched.
func (l *Ledger) Consume(ctx context.Context, agentID uuid.UUID, amount int64) error {
	account, err := l.store.FindByAgentIDForUpdate(ctx, agentID)
	if err != nil {
		return err
	}
	if err := account.Consume(amount, l.now()); err != nil {
		return err
	}
	return l.store.SaveAccount(ctx, account)
}

// Reclaim returns agentID's unused allocation (Allocated - Used) back to its
// parent's Reserved->Available balance, called when an agent terminates.
// The parent is resolved from the hierarchy, not supplied by the caller, so
// the amount reclaimed always matches what was actually spent. A second
// Reclaim against the same agent is rejected via the account's Reclaimed
// flag, so a retried or duplicated termination cannot double-credit the
// parent.
func (l *Ledger) Reclaim(ctx context.Context, agentID uuid.UUID) error {
	now := l.now()

	child, err := l.store.FindByAgentIDForUpdate(ctx, agentID)
	if err != nil {
		return err
	}
	if err := child.MarkReclaimed(now); err != nil {
		return err
	}

	unused := child.Allocated - child.Used
	if unused > 0 {
		edge, err := l.hierarchy.FindEdge(ctx, agentID)
		if err != nil {
			return err
		}
		parent, err := l.store.FindByAgentIDForUpdate(ctx, edge.ParentID)
		if err != nil {
			return err
		}
		if err := parent.Reclaim(unused, now); err != nil {
			return err
		}
		if err := l.store.SaveAccount(ctx, parent); err != nil {
			return err
		}
	}

	return l.store.SaveAccount(ctx, child)
}

// AvailableOf returns the unreserved, unused balance of agentID's account.
func (l *Ledger) AvailableOf(ctx context.Context, agentID uuid.UUID) (int64, error) {
	account, err := l.store.FindByAgentID(ctx, agentID)
	if err != nil {
		return 0, err
	}
	return account.Available(), nil
}

// AccountOf returns the full account record for agentID.
func (l *Ledger) AccountOf(ctx context.Context, agentID uuid.UUID) (*domain.BudgetAccount, error) {
	return l.store.FindByAgentID(ctx, agentID)
}

// Freeze marks agentID's account frozen, rejecting further Reserve/Consume
// calls until Unfreeze. Used when an agent is suspended pending review.
func (l *Ledger) Freeze(ctx context.Context, agentID uuid.UUID) error {
	account, err := l.store.FindByAgentIDForUpdate(ctx, agentID)
	if err != nil {
		return err
	}
	account.Frozen = true
	account.UpdatedAt = l.now()
	return l.store.SaveAccount(ctx, account)
}

// Unfreeze clears a previous Freeze.
func (l *Ledger) Unfreeze(ctx context.Context, agentID uuid.UUID) error {
	account, err := l.store.FindByAgentIDForUpdate(ctx, agentID)
	if err != nil {
		return err
	}
	account.Frozen = false
	account.UpdatedAt = l.now()
	return l.store.SaveAccount(ctx, account)
}

// HierarchyOf returns the budget accounts of agentID and every one of its
// ancestors, root first, used to report the full chain an allocation draws
// against.
func (l *Ledger) HierarchyOf(ctx context.Context, hierarchy domain.HierarchyRepository, agentID uuid.UUID) ([]*domain.BudgetAccount, error) {
	edges, err := hierarchy.FindAncestors(ctx, agentID)
	if err != nil {
		return nil, err
	}

	accounts := make([]*domain.BudgetAccount, 0, len(edges)+1)
	for i := len(edges) - 1; i >= 0; i-- {
		account, err := l.store.FindByAgentID(ctx, edges[i].ParentID)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	self, err := l.store.FindByAgentID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return append(accounts, self), nil
}

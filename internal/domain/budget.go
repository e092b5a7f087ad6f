package domain

import (
	"time"

	"github.com/google/uuid"

	kerrors "github.com/agentmesh/kernel/internal/domain/errors"
)

// BudgetAccount tracks a single agent's resource allocation. The conservation
// invariant Allocated = Used + Reserved + Available must hold after every
// mutation; callers never set Available directly, it is always derived.
type BudgetAccount struct {
	AgentID   uuid.UUID
	Allocated int64
	Used      int64
	Reserved  int64
	Frozen    bool
	// Reclaimed marks that this account's unused allocation has already
	// been returned to its parent, so a second Reclaim is rejected rather
	// than double-crediting the parent's Reserved balance.
	Reclaimed bool
	UpdatedAt time.Time
}

// NewBudgetAccount constructs a freshly opened account with its full
// allocation available and nothing used or reserved.
func NewBudgetAccount(agentID uuid.UUID, allocated int64, now time.Time) *BudgetAccount {
	return &BudgetAccount{
		AgentID:   agentID,
		Allocated: allocated,
		UpdatedAt: now,
	}
}

// Available returns the unreserved, unused portion of the allocation.
func (b *BudgetAccount) Available() int64 {
	return b.Allocated - b.Used - b.Reserved
}

// Reserve earmarks amount against Available, typically when allocating a
// child's budget out of the parent's account. It returns an
// InsufficientBudget error if amount exceeds Available.
func (b *BudgetAccount) Reserve(amount int64, now time.Time) error {
	if b.Frozen {
		return kerrors.NewInvalidTransitionError("budget_account", "frozen", "reserve")
	}
	if amount > b.Available() {
		return kerrors.NewInsufficientBudget(b.AgentID.String(), amount, b.Available())
	}
	b.Reserved += amount
	b.UpdatedAt = now
	return nil
}

// Consume records amount as spent out of Available, increasing Used.
// Reserved is untouched: it represents budget committed to children that
// have their own accounts, not budget available for this agent's own
// spending, so Consume must never free it.
func (b *BudgetAccount) Consume(amount int64, now time.Time) error {
	if b.Frozen {
		return kerrors.NewInvalidTransitionError("budget_account", "frozen", "consume")
	}
	if amount > b.Available() {
		return kerrors.NewInsufficientBudget(b.AgentID.String(), amount, b.Available())
	}
	b.Used += amount
	b.UpdatedAt = now
	return nil
}

// Reclaim releases amount previously reserved back into Available, used when
// a child agent terminates without spending its full allocation.
func (b *BudgetAccount) Reclaim(amount int64, now time.Time) error {
	if amount > b.Reserved {
		return kerrors.NewValidationFailure("ledger.reclaim", "reclaim amount exceeds reserved balance")
	}
	b.Reserved -= amount
	b.UpdatedAt = now
	return nil
}

// MarkReclaimed flags this account's unused allocation as already returned
// to its parent, so the ledger can reject a second Reclaim against it.
func (b *BudgetAccount) MarkReclaimed(now time.Time) error {
	if b.Reclaimed {
		return kerrors.NewConflict("ledger.reclaim", "budget account already reclaimed")
	}
	b.Reclaimed = true
	b.UpdatedAt = now
	return nil
}

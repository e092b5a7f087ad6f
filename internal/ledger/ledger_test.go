package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmesh/kernel/internal/domain"
	kerrors "github.com/agentmesh/kernel/internal/domain/errors"
	"github.com/agentmesh/kernel/internal/testutil"
)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func TestLedger_OpenRoot(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	l := New(store, store, fixedClock(time.Now()))

	agentID := uuid.New()
	account, err := l.OpenRoot(ctx, agentID, 1000)

	require.NoError(t, err)
	assert.Equal(t, int64(1000), account.Allocated)
	assert.Equal(t, int64(1000), account.Available())
}

func TestLedger_AllocateChild(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	l := New(store, store, fixedClock(time.Now()))

	parentID := uuid.New()
	_, err := l.OpenRoot(ctx, parentID, 1000)
	require.NoError(t, err)

	childID := uuid.New()
	child, err := l.AllocateChild(ctx, parentID, childID, 400)
	require.NoError(t, err)
	assert.Equal(t, int64(400), child.Allocated)

	parentAvailable, err := l.AvailableOf(ctx, parentID)
	require.NoError(t, err)
	assert.Equal(t, int64(600), parentAvailable)
}

func TestLedger_AllocateChild_InsufficientBudget(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	l := New(store, store, fixedClock(time.Now()))

	parentID := uuid.New()
	_, err := l.OpenRoot(ctx, parentID, 100)
	require.NoError(t, err)

	_, err = l.AllocateChild(ctx, parentID, uuid.New(), 101)

	require.Error(t, err)
	assert.Equal(t, kerrors.KindInsufficientBudget, kerrors.KindOf(err))
}

func TestLedger_Consume(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	l := New(store, store, fixedClock(time.Now()))

	agentID := uuid.New()
	_, err := l.OpenRoot(ctx, agentID, 1000)
	require.NoError(t, err)

	require.NoError(t, l.Consume(ctx, agentID, 250))

	account, err := l.AccountOf(ctx, agentID)
	require.NoError(t, err)
	assert.Equal(t, int64(250), account.Used)
	assert.Equal(t, int64(750), account.Available())
}

func TestLedger_Reclaim_ReturnsOnlyTheUnspentPortion(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	now := time.Now()
	l := New(store, store, fixedClock(now))

	parent := &domain.Agent{ID: uuid.New()}
	parent.RootID = parent.ID
	require.NoError(t, store.SaveAgent(ctx, parent))
	_, err := l.OpenRoot(ctx, parent.ID, 1000)
	require.NoError(t, err)

	child := &domain.Agent{ID: uuid.New(), ParentID: &parent.ID, RootID: parent.ID, Depth: 1}
	require.NoError(t, store.SaveAgent(ctx, child))
	require.NoError(t, store.SaveEdge(ctx, domain.NewHierarchyEdge(parent, child, now)))
	_, err = l.AllocateChild(ctx, parent.ID, child.ID, 400)
	require.NoError(t, err)

	require.NoError(t, l.Consume(ctx, child.ID, 150))
	require.NoError(t, l.Reclaim(ctx, child.ID))

	parentAccount, err := l.AccountOf(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), parentAccount.Reserved)
	assert.Equal(t, int64(850), parentAccount.Available())

	childAccount, err := l.AccountOf(ctx, child.ID)
	require.NoError(t, err)
	assert.True(t, childAccount.Reclaimed)
}

func TestLedger_Reclaim_RejectsSecondCall(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	now := time.Now()
	l := New(store, store, fixedClock(now))

	parent := &domain.Agent{ID: uuid.New()}
	parent.RootID = parent.ID
	require.NoError(t, store.SaveAgent(ctx, parent))
	_, err := l.OpenRoot(ctx, parent.ID, 1000)
	require.NoError(t, err)

	child := &domain.Agent{ID: uuid.New(), ParentID: &parent.ID, RootID: parent.ID, Depth: 1}
	require.NoError(t, store.SaveAgent(ctx, child))
	require.NoError(t, store.SaveEdge(ctx, domain.NewHierarchyEdge(parent, child, now)))
	_, err = l.AllocateChild(ctx, parent.ID, child.ID, 400)
	require.NoError(t, err)

	require.NoError(t, l.Reclaim(ctx, child.ID))
	err = l.Reclaim(ctx, child.ID)

	require.Error(t, err)
	assert.Equal(t, kerrors.KindConflict, kerrors.KindOf(err))
}

func TestLedger_OpenRoot_RejectsNonPositiveAllocation(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	l := New(store, store, fixedClock(time.Now()))

	_, err := l.OpenRoot(ctx, uuid.New(), 0)

	require.Error(t, err)
	assert.Equal(t, kerrors.KindValidationFailure, kerrors.KindOf(err))
}

func TestLedger_OpenRoot_RejectsDuplicateAccount(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	l := New(store, store, fixedClock(time.Now()))

	agentID := uuid.New()
	_, err := l.OpenRoot(ctx, agentID, 1000)
	require.NoError(t, err)

	_, err = l.OpenRoot(ctx, agentID, 500)

	require.Error(t, err)
	assert.Equal(t, kerrors.KindConflict, kerrors.KindOf(err))
}

func TestLedger_AllocateChild_RejectsNonPositiveAmount(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	l := New(store, store, fixedClock(time.Now()))

	parentID := uuid.New()
	_, err := l.OpenRoot(ctx, parentID, 1000)
	require.NoError(t, err)

	_, err = l.AllocateChild(ctx, parentID, uuid.New(), 0)

	require.Error(t, err)
	assert.Equal(t, kerrors.KindValidationFailure, kerrors.KindOf(err))
}

func TestLedger_AllocateChild_RejectsDuplicateChildAccount(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	l := New(store, store, fixedClock(time.Now()))

	parentID := uuid.New()
	_, err := l.OpenRoot(ctx, parentID, 1000)
	require.NoError(t, err)

	childID := uuid.New()
	_, err = l.AllocateChild(ctx, parentID, childID, 200)
	require.NoError(t, err)

	_, err = l.AllocateChild(ctx, parentID, childID, 100)

	require.Error(t, err)
	assert.Equal(t, kerrors.KindConflict, kerrors.KindOf(err))
}

func TestLedger_FreezeRejectsConsume(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	l := New(store, store, fixedClock(time.Now()))

	agentID := uuid.New()
	_, err := l.OpenRoot(ctx, agentID, 1000)
	require.NoError(t, err)
	require.NoError(t, l.Freeze(ctx, agentID))

	err = l.Consume(ctx, agentID, 10)

	require.Error(t, err)
	assert.Equal(t, kerrors.KindInvalidTransition, kerrors.KindOf(err))
}

func TestLedger_UnfreezeRestoresConsume(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	l := New(store, store, fixedClock(time.Now()))

	agentID := uuid.New()
	_, err := l.OpenRoot(ctx, agentID, 1000)
	require.NoError(t, err)
	require.NoError(t, l.Freeze(ctx, agentID))
	require.NoError(t, l.Unfreeze(ctx, agentID))

	assert.NoError(t, l.Consume(ctx, agentID, 10))
}

func TestLedger_HierarchyOf(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	now := time.Now()
	l := New(store, store, fixedClock(now))

	root := &domain.Agent{ID: uuid.New(), RootID: uuid.New(), Depth: 0}
	root.RootID = root.ID
	require.NoError(t, store.SaveAgent(ctx, root))
	_, err := l.OpenRoot(ctx, root.ID, 1000)
	require.NoError(t, err)

	child := &domain.Agent{ID: uuid.New(), ParentID: &root.ID, RootID: root.ID, Depth: 1}
	require.NoError(t, store.SaveAgent(ctx, child))
	require.NoError(t, store.SaveEdge(ctx, domain.NewHierarchyEdge(root, child, now)))
	_, err = l.AllocateChild(ctx, root.ID, child.ID, 400)
	require.NoError(t, err)

	grandchild := &domain.Agent{ID: uuid.New(), ParentID: &child.ID, RootID: root.ID, Depth: 2}
	require.NoError(t, store.SaveAgent(ctx, grandchild))
	require.NoError(t, store.SaveEdge(ctx, domain.NewHierarchyEdge(child, grandchild, now)))
	_, err = l.AllocateChild(ctx, child.ID, grandchild.ID, 100)
	require.NoError(t, err)

	accounts, err := l.HierarchyOf(ctx, store, grandchild.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	assert.Equal(t, root.ID, accounts[0].AgentID)
	assert.Equal(t, child.ID, accounts[1].AgentID)
	assert.Equal(t, grandchild.ID, accounts[2].AgentID)
}

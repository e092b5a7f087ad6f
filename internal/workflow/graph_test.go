package workflow

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmesh/kernel/internal/domain"
	kerrors "github.com/agentmesh/kernel/internal/domain/errors"
)

func node(id, graphID uuid.UUID, dependsOn ...uuid.UUID) *domain.WorkflowNode {
	return domain.NewWorkflowNode(id, graphID, "n", "task", dependsOn, "", 0, time.Now())
}

func TestValidateDAG_Linear(t *testing.T) {
	graphID := uuid.New()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	nodes := []*domain.WorkflowNode{
		node(a, graphID),
		node(b, graphID, a),
		node(c, graphID, b),
	}

	assert.NoError(t, ValidateDAG(nodes))
}

func TestValidateDAG_Cycle(t *testing.T) {
	graphID := uuid.New()
	a, b := uuid.New(), uuid.New()
	nodes := []*domain.WorkflowNode{
		node(a, graphID, b),
		node(b, graphID, a),
	}

	err := ValidateDAG(nodes)

	require.Error(t, err)
	assert.Equal(t, kerrors.KindWorkflowInvalid, kerrors.KindOf(err))
}

func TestValidateDAG_DanglingDependency(t *testing.T) {
	graphID := uuid.New()
	a := uuid.New()
	nodes := []*domain.WorkflowNode{
		node(a, graphID, uuid.New()),
	}

	err := ValidateDAG(nodes)

	require.Error(t, err)
	assert.Equal(t, kerrors.KindWorkflowInvalid, kerrors.KindOf(err))
}

func TestTopologicalOrder_RespectsDependencies(t *testing.T) {
	graphID := uuid.New()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	nodes := []*domain.WorkflowNode{
		node(c, graphID, b),
		node(b, graphID, a),
		node(a, graphID),
	}

	order, err := TopologicalOrder(nodes)

	require.NoError(t, err)
	require.Len(t, order, 3)
	position := make(map[uuid.UUID]int, len(order))
	for i, id := range order {
		position[id] = i
	}
	assert.Less(t, position[a], position[b])
	assert.Less(t, position[b], position[c])
}

func TestStartingNodes(t *testing.T) {
	graphID := uuid.New()
	a, b := uuid.New(), uuid.New()
	nodes := []*domain.WorkflowNode{
		node(a, graphID),
		node(b, graphID, a),
	}

	starts := StartingNodes(nodes)

	require.Len(t, starts, 1)
	assert.Equal(t, a, starts[0].ID)
}

func TestReadyNodes(t *testing.T) {
	graphID := uuid.New()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	nodeB := node(b, graphID, a)
	nodeC := node(c, graphID, a, b)
	candidates := []*domain.WorkflowNode{nodeB, nodeC}

	completed := map[uuid.UUID]domain.NodeExecutionStatus{
		a: domain.NodeExecutionStatusCompleted,
	}

	ready := ReadyNodes(candidates, completed)

	require.Len(t, ready, 1)
	assert.Equal(t, b, ready[0].ID)
}

func TestReadyNodes_SkipsNonPending(t *testing.T) {
	graphID := uuid.New()
	a := uuid.New()
	already := node(a, graphID)
	already.Status = domain.NodeExecutionStatusRunning

	ready := ReadyNodes([]*domain.WorkflowNode{already}, map[uuid.UUID]domain.NodeExecutionStatus{})

	assert.Empty(t, ready)
}

func TestReadyNodes_TreatsSkippedDependencyAsSatisfied(t *testing.T) {
	graphID := uuid.New()
	a, b := uuid.New(), uuid.New()
	dependent := node(b, graphID, a)

	completed := map[uuid.UUID]domain.NodeExecutionStatus{
		a: domain.NodeExecutionStatusSkipped,
	}

	ready := ReadyNodes([]*domain.WorkflowNode{dependent}, completed)

	require.Len(t, ready, 1)
	assert.Equal(t, b, ready[0].ID)
}

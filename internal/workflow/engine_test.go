package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmesh/kernel/internal/domain"
	"github.com/agentmesh/kernel/internal/executor"
	"github.com/agentmesh/kernel/internal/ledger"
	"github.com/agentmesh/kernel/internal/lifecycle"
	"github.com/agentmesh/kernel/internal/testutil"
)

// stubExecutor returns an empty Result at once. Engine tests drive
// OnNodeCompleted and OnNodeFailed directly; any node the engine starts
// itself still runs stubExecutor on Engine.run's goroutine.
type stubExecutor struct{}

func (stubExecutor) Execute(ctx context.Context, task executor.TaskDescriptor) (executor.Result, error) {
	return executor.Result{}, nil
}

func newEngine(t *testing.T) (*Engine, *testutil.Store, *lifecycle.Lifecycle, *domain.Agent) {
	t.Helper()
	store := testutil.NewStore()
	l := ledger.New(store, store, nil)
	lc := lifecycle.New(store, store, l, 10, nil)
	engine := NewEngine(store, lc, stubExecutor{}, nil, nil)

	owner, err := lc.SpawnRoot(context.Background(), "owner", "supervise", nil, 1000)
	require.NoError(t, err)
	return engine, store, lc, owner
}

func TestEngine_CreateGraph_PersistsNodes(t *testing.T) {
	ctx := context.Background()
	engine, store, _, owner := newEngine(t)

	graph, err := engine.CreateGraph(ctx, owner.ID, "pipeline", []NodeSpec{
		{Name: "fetch", Task: "fetch data"},
		{Name: "summarize", Task: "summarize"},
	})

	require.NoError(t, err)
	assert.Equal(t, domain.GraphStatusPending, graph.Status)

	nodes, err := store.FindNodesByGraph(ctx, graph.ID)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
}

func TestEngine_ValidateGraph_MarksValid(t *testing.T) {
	ctx := context.Background()
	engine, _, _, owner := newEngine(t)
	graph, err := engine.CreateGraph(ctx, owner.ID, "pipeline", []NodeSpec{{Name: "a", Task: "do a"}})
	require.NoError(t, err)

	err = engine.ValidateGraph(ctx, graph.ID)

	require.NoError(t, err)
}

func TestEngine_ValidateGraph_RejectsCycle(t *testing.T) {
	ctx := context.Background()
	engine, store, _, owner := newEngine(t)
	graph, err := engine.CreateGraph(ctx, owner.ID, "pipeline", nil)
	require.NoError(t, err)

	now := time.Now()
	a := domain.NewWorkflowNode(uuid.New(), graph.ID, "a", "task", nil, "", 0, now)
	b := domain.NewWorkflowNode(uuid.New(), graph.ID, "b", "task", []uuid.UUID{a.ID}, "", 0, now)
	a.DependsOn = []uuid.UUID{b.ID}
	require.NoError(t, store.SaveNode(ctx, a))
	require.NoError(t, store.SaveNode(ctx, b))

	err = engine.ValidateGraph(ctx, graph.ID)

	assert.Error(t, err)
}

func TestEngine_Execute_StartsOnlyDependencyFreeNodes(t *testing.T) {
	ctx := context.Background()
	engine, store, _, owner := newEngine(t)
	graph, err := engine.CreateGraph(ctx, owner.ID, "pipeline", []NodeSpec{{Name: "a", Task: "task a", Budget: 100}})
	require.NoError(t, err)
	nodes, err := store.FindNodesByGraph(ctx, graph.ID)
	require.NoError(t, err)
	startID := nodes[0].ID

	require.NoError(t, engine.Execute(ctx, graph.ID))

	// give the background goroutine started by startNode a chance to run so
	// the node transitions past pending before we assert on it.
	time.Sleep(20 * time.Millisecond)

	node, err := store.FindNode(ctx, startID)
	require.NoError(t, err)
	assert.NotEqual(t, domain.NodeExecutionStatusPending, node.Status)
}

func TestEngine_OnNodeCompleted_AdvancesDependents(t *testing.T) {
	ctx := context.Background()
	engine, store, _, owner := newEngine(t)
	now := time.Now()

	graph := domain.NewWorkflowGraph(uuid.New(), owner.ID, "pipeline", now)
	require.NoError(t, store.SaveGraph(ctx, graph))
	a := domain.NewWorkflowNode(uuid.New(), graph.ID, "a", "task a", nil, "", 0, now)
	b := domain.NewWorkflowNode(uuid.New(), graph.ID, "b", "task b", []uuid.UUID{a.ID}, "", 100, now)
	require.NoError(t, store.SaveNode(ctx, a))
	require.NoError(t, store.SaveNode(ctx, b))

	agentA, err := engine.lifecycle.Spawn(ctx, owner.ID, "a", "task a", nil, 100)
	require.NoError(t, err)
	a.AgentID = &agentA.ID
	a.Status = domain.NodeExecutionStatusRunning
	require.NoError(t, store.SaveNode(ctx, a))
	require.NoError(t, engine.lifecycle.Start(ctx, agentA.ID))

	require.NoError(t, engine.OnNodeCompleted(ctx, graph.ID, a.ID, map[string]any{"ok": true}, time.Millisecond))

	updatedB, err := store.FindNode(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NodeExecutionStatusRunning, updatedB.Status)
	require.NotNil(t, updatedB.AgentID)

	result, err := engine.lifecycle.GetResult(ctx, agentA.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, result)
}

func TestEngine_OnNodeCompleted_CompletesGraphWhenAllDone(t *testing.T) {
	ctx := context.Background()
	engine, store, _, owner := newEngine(t)
	now := time.Now()

	graph := domain.NewWorkflowGraph(uuid.New(), owner.ID, "pipeline", now)
	require.NoError(t, graph.Transition(domain.GraphStatusRunning, now))
	require.NoError(t, store.SaveGraph(ctx, graph))
	a := domain.NewWorkflowNode(uuid.New(), graph.ID, "a", "task a", nil, "", 0, now)
	agentA, err := engine.lifecycle.Spawn(ctx, owner.ID, "a", "task a", nil, 100)
	require.NoError(t, err)
	a.AgentID = &agentA.ID
	a.Status = domain.NodeExecutionStatusRunning
	require.NoError(t, store.SaveNode(ctx, a))
	require.NoError(t, engine.lifecycle.Start(ctx, agentA.ID))

	require.NoError(t, engine.OnNodeCompleted(ctx, graph.ID, a.ID, nil, time.Millisecond))

	updatedGraph, err := store.FindGraph(ctx, graph.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GraphStatusCompleted, updatedGraph.Status)
}

func TestEngine_OnNodeFailed_TerminatesGraphWhenNothingElseCanProgress(t *testing.T) {
	ctx := context.Background()
	engine, store, _, owner := newEngine(t)
	now := time.Now()

	graph := domain.NewWorkflowGraph(uuid.New(), owner.ID, "pipeline", now)
	require.NoError(t, graph.Transition(domain.GraphStatusRunning, now))
	require.NoError(t, store.SaveGraph(ctx, graph))

	a := domain.NewWorkflowNode(uuid.New(), graph.ID, "a", "task a", nil, "", 0, now)
	agentA, err := engine.lifecycle.Spawn(ctx, owner.ID, "a", "task a", nil, 100)
	require.NoError(t, err)
	a.AgentID = &agentA.ID
	a.Status = domain.NodeExecutionStatusRunning
	require.NoError(t, store.SaveNode(ctx, a))
	require.NoError(t, engine.lifecycle.Start(ctx, agentA.ID))

	// b depends on a, so it can never become ready once a has failed.
	b := domain.NewWorkflowNode(uuid.New(), graph.ID, "b", "task b", []uuid.UUID{a.ID}, "", 0, now)
	require.NoError(t, store.SaveNode(ctx, b))

	require.NoError(t, engine.OnNodeFailed(ctx, graph.ID, a.ID, errors.New("boom"), time.Millisecond))

	updatedGraph, err := store.FindGraph(ctx, graph.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GraphStatusFailed, updatedGraph.Status)

	updatedB, err := store.FindNode(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, updatedB.Status.IsTerminal())
}

// TestEngine_OnNodeFailed_DoesNotKillIndependentSiblingBranch reproduces the
// scenario the unconditional-Terminate bug broke: a and b are independent,
// unrelated branches of the same graph. a failing must not cut b's run
// short, and the graph itself only fails once b also reaches a terminal
// status and no further progress is possible.
func TestEngine_OnNodeFailed_DoesNotKillIndependentSiblingBranch(t *testing.T) {
	ctx := context.Background()
	engine, store, _, owner := newEngine(t)
	now := time.Now()

	graph := domain.NewWorkflowGraph(uuid.New(), owner.ID, "pipeline", now)
	require.NoError(t, graph.Transition(domain.GraphStatusRunning, now))
	require.NoError(t, store.SaveGraph(ctx, graph))

	a := domain.NewWorkflowNode(uuid.New(), graph.ID, "a", "task a", nil, "", 0, now)
	agentA, err := engine.lifecycle.Spawn(ctx, owner.ID, "a", "task a", nil, 100)
	require.NoError(t, err)
	a.AgentID = &agentA.ID
	a.Status = domain.NodeExecutionStatusRunning
	require.NoError(t, store.SaveNode(ctx, a))
	require.NoError(t, engine.lifecycle.Start(ctx, agentA.ID))

	b := domain.NewWorkflowNode(uuid.New(), graph.ID, "b", "task b", nil, "", 0, now)
	agentB, err := engine.lifecycle.Spawn(ctx, owner.ID, "b", "task b", nil, 100)
	require.NoError(t, err)
	b.AgentID = &agentB.ID
	b.Status = domain.NodeExecutionStatusRunning
	require.NoError(t, store.SaveNode(ctx, b))
	require.NoError(t, engine.lifecycle.Start(ctx, agentB.ID))

	require.NoError(t, engine.OnNodeFailed(ctx, graph.ID, a.ID, errors.New("boom"), time.Millisecond))

	stillRunningGraph, err := store.FindGraph(ctx, graph.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GraphStatusRunning, stillRunningGraph.Status)

	updatedB, err := store.FindNode(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NodeExecutionStatusRunning, updatedB.Status)

	require.NoError(t, engine.OnNodeCompleted(ctx, graph.ID, b.ID, nil, time.Millisecond))

	finalGraph, err := store.FindGraph(ctx, graph.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GraphStatusFailed, finalGraph.Status)
}

func TestEngine_Progress(t *testing.T) {
	ctx := context.Background()
	engine, store, _, owner := newEngine(t)
	now := time.Now()

	graph := domain.NewWorkflowGraph(uuid.New(), owner.ID, "pipeline", now)
	require.NoError(t, store.SaveGraph(ctx, graph))
	a := domain.NewWorkflowNode(uuid.New(), graph.ID, "a", "task", nil, "", 0, now)
	a.Status = domain.NodeExecutionStatusCompleted
	b := domain.NewWorkflowNode(uuid.New(), graph.ID, "b", "task", nil, "", 0, now)
	b.Status = domain.NodeExecutionStatusFailed
	c := domain.NewWorkflowNode(uuid.New(), graph.ID, "c", "task", nil, "", 0, now)
	c.Status = domain.NodeExecutionStatusSkipped
	require.NoError(t, store.SaveNode(ctx, a))
	require.NoError(t, store.SaveNode(ctx, b))
	require.NoError(t, store.SaveNode(ctx, c))

	progress, err := engine.Progress(ctx, graph.ID)

	require.NoError(t, err)
	assert.Equal(t, Progress{Total: 3, Completed: 1, Failed: 1, Skipped: 1}, progress)
}

package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agentmesh/kernel/internal/domain"
	kerrors "github.com/agentmesh/kernel/internal/domain/errors"
	"github.com/agentmesh/kernel/internal/executor"
	"github.com/agentmesh/kernel/internal/lifecycle"
	"github.com/agentmesh/kernel/internal/observability"
)

// Clock abstracts the current time so tests can control it deterministically.
type Clock func() time.Time

// Engine runs WorkflowGraphs by spawning one agent per WorkflowNode once all
// of that node's dependencies have reached a terminal, non-failed status.
// Unlike the teacher's wave-based planner, Engine never pre-spawns a full
// wave: Execute starts only the graph's dependency-free nodes, and every
// later node is started from OnNodeCompleted as its last dependency clears.
// This keeps the engine reactive to agents that finish out of order instead
// of synchronizing on wave boundaries.
type Engine struct {
	graphs    domain.WorkflowRepository
	lifecycle *lifecycle.Lifecycle
	exec      executor.Executor
	evaluator *ConditionEvaluator
	observers *observability.Manager
	now       Clock
}

// NewEngine constructs a workflow Engine.
func NewEngine(graphs domain.WorkflowRepository, lc *lifecycle.Lifecycle, exec executor.Executor, observers *observability.Manager, now Clock) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		graphs:    graphs,
		lifecycle: lc,
		exec:      exec,
		evaluator: NewConditionEvaluator(),
		observers: observers,
		now:       now,
	}
}

// NodeSpec describes one node to create alongside a new graph.
type NodeSpec struct {
	Name      string
	Task      string
	DependsOn []uuid.UUID
	Condition string
	Budget    int64
}

// CreateGraph persists a new graph owned by ownerAgent together with one
// WorkflowNode per spec, in pending status. The graph is not validated or
// started; call ValidateGraph and then Execute once the caller is ready.
func (e *Engine) CreateGraph(ctx context.Context, ownerAgent uuid.UUID, name string, specs []NodeSpec) (*domain.WorkflowGraph, error) {
	now := e.now()
	graph := domain.NewWorkflowGraph(uuid.New(), ownerAgent, name, now)
	if err := e.graphs.SaveGraph(ctx, graph); err != nil {
		return nil, err
	}
	for _, spec := range specs {
		node := domain.NewWorkflowNode(uuid.New(), graph.ID, spec.Name, spec.Task, spec.DependsOn, spec.Condition, spec.Budget, now)
		if err := e.graphs.SaveNode(ctx, node); err != nil {
			return nil, err
		}
	}
	return graph, nil
}

// ValidateGraph checks graphID's nodes for cycles and dangling dependencies,
// recording the outcome on the graph without starting anything.
func (e *Engine) ValidateGraph(ctx context.Context, graphID uuid.UUID) error {
	graph, err := e.graphs.FindGraph(ctx, graphID)
	if err != nil {
		return err
	}
	nodes, err := e.graphs.FindNodesByGraph(ctx, graphID)
	if err != nil {
		return err
	}

	validateErr := ValidateDAG(nodes)
	if validateErr != nil {
		graph.Validation = domain.ValidationStatusInvalid
	} else {
		graph.Validation = domain.ValidationStatusValid
	}
	if err := e.graphs.SaveGraph(ctx, graph); err != nil {
		return err
	}
	return validateErr
}

// TerminateGraph is the public name for stopping a graph outright; it
// delegates to Terminate.
func (e *Engine) TerminateGraph(ctx context.Context, graphID uuid.UUID) error {
	return e.Terminate(ctx, graphID)
}

// Execute validates graphID's nodes and starts every node with no
// dependencies, leaving the rest pending until OnNodeCompleted advances
// them.
func (e *Engine) Execute(ctx context.Context, graphID uuid.UUID) error {
	graph, err := e.graphs.FindGraph(ctx, graphID)
	if err != nil {
		return err
	}
	nodes, err := e.graphs.FindNodesByGraph(ctx, graphID)
	if err != nil {
		return err
	}
	if err := ValidateDAG(nodes); err != nil {
		graph.Validation = domain.ValidationStatusInvalid
		_ = e.graphs.SaveGraph(ctx, graph)
		return err
	}
	graph.Validation = domain.ValidationStatusValid

	now := e.now()
	if err := graph.Transition(domain.GraphStatusRunning, now); err != nil {
		return err
	}
	if err := e.graphs.SaveGraph(ctx, graph); err != nil {
		return err
	}

	for _, node := range StartingNodes(nodes) {
		if err := e.startNode(ctx, graph, node); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) startNode(ctx context.Context, graph *domain.WorkflowGraph, node *domain.WorkflowNode) error {
	ok, err := e.evaluator.Evaluate(node.Condition, map[string]any{})
	if err != nil {
		return err
	}
	now := e.now()
	if !ok {
		node.Status = domain.NodeExecutionStatusSkipped
		node.UpdatedAt = now
		return e.graphs.SaveNode(ctx, node)
	}

	agent, err := e.lifecycle.Spawn(ctx, graph.OwnerAgent, node.Name, node.Task, nil, node.Budget)
	if err != nil {
		return err
	}
	node.AgentID = &agent.ID
	node.Status = domain.NodeExecutionStatusRunning
	node.UpdatedAt = now
	if err := e.graphs.SaveNode(ctx, node); err != nil {
		return err
	}

	if err := e.lifecycle.Start(ctx, agent.ID); err != nil {
		return err
	}
	e.notify(observability.EventNodeStarted, agent.ID, graph.ID, node.ID, "node started", nil, 0)

	go e.run(context.WithoutCancel(ctx), graph.ID, node.ID, agent.ID, node.Task)
	return nil
}

func (e *Engine) run(ctx context.Context, graphID, nodeID, agentID uuid.UUID, task string) {
	start := time.Now()
	result, err := e.exec.Execute(ctx, executor.TaskDescriptor{AgentID: agentID, Task: task})
	duration := time.Since(start)

	if err != nil {
		_ = e.OnNodeFailed(ctx, graphID, nodeID, err, duration)
		return
	}
	_ = e.OnNodeCompleted(ctx, graphID, nodeID, result.Output, duration)
}

// OnNodeCompleted records nodeID's success and starts every sibling node
// whose dependencies are now fully satisfied. It is the engine's sole
// continuation mechanism — there is no separate "check all nodes" sweep.
func (e *Engine) OnNodeCompleted(ctx context.Context, graphID, nodeID uuid.UUID, output map[string]any, duration time.Duration) error {
	node, err := e.graphs.FindNode(ctx, nodeID)
	if err != nil {
		return err
	}
	now := e.now()
	node.Status = domain.NodeExecutionStatusCompleted
	node.UpdatedAt = now
	if err := e.graphs.SaveNode(ctx, node); err != nil {
		return err
	}
	if node.AgentID != nil {
		if err := e.lifecycle.CompleteWithResult(ctx, *node.AgentID, output); err != nil {
			return err
		}
	}
	e.notify(observability.EventNodeCompleted, agentOf(node), graphID, nodeID, "node completed", nil, duration)

	return e.advance(ctx, graphID)
}

// OnNodeFailed records nodeID's failure and fails its agent. A failed node
// never unblocks anything depending on it, but independent sibling branches
// that don't depend on it keep running: the graph is only terminated once
// advance finds no pending or executing nodes left to make progress on.
func (e *Engine) OnNodeFailed(ctx context.Context, graphID, nodeID uuid.UUID, cause error, duration time.Duration) error {
	node, err := e.graphs.FindNode(ctx, nodeID)
	if err != nil {
		return err
	}
	now := e.now()
	node.Status = domain.NodeExecutionStatusFailed
	node.UpdatedAt = now
	if err := e.graphs.SaveNode(ctx, node); err != nil {
		return err
	}
	if node.AgentID != nil {
		if err := e.lifecycle.Fail(ctx, *node.AgentID); err != nil {
			return err
		}
	}
	e.notify(observability.EventNodeFailed, agentOf(node), graphID, nodeID, "node failed", cause, duration)

	return e.advance(ctx, graphID)
}

// Resume re-evaluates graphID's nodes and starts anything now ready. It is
// the entry point for the workflow poller's recovery sweep, which exists
// because OnNodeCompleted/OnNodeFailed never fire for a process that
// crashed mid-graph: Resume re-derives the next startable nodes purely from
// persisted node status instead of depending on an in-memory callback.
func (e *Engine) Resume(ctx context.Context, graphID uuid.UUID) error {
	return e.advance(ctx, graphID)
}

// advance starts every pending node whose dependencies are now satisfied. A
// node downstream of a failed dependency can never become ready, so "no
// progress left to make" is not the same as "every node terminal": advance
// treats the graph as done once nothing is running and nothing is ready,
// which also covers nodes stranded behind a failed dependency. Terminate is
// only called then, so a failure in one branch never cuts short an
// unrelated branch still running or still able to start.
func (e *Engine) advance(ctx context.Context, graphID uuid.UUID) error {
	graph, err := e.graphs.FindGraph(ctx, graphID)
	if err != nil {
		return err
	}
	nodes, err := e.graphs.FindNodesByGraph(ctx, graphID)
	if err != nil {
		return err
	}

	completed := make(map[uuid.UUID]domain.NodeExecutionStatus, len(nodes))
	anyRunning := false
	anyFailed := false
	for _, n := range nodes {
		completed[n.ID] = n.Status
		if n.Status == domain.NodeExecutionStatusRunning {
			anyRunning = true
		}
		if n.Status == domain.NodeExecutionStatusFailed {
			anyFailed = true
		}
	}

	ready := ReadyNodes(nodes, completed)

	if !anyRunning && len(ready) == 0 {
		if anyFailed {
			return e.Terminate(ctx, graphID)
		}
		now := e.now()
		if err := graph.Transition(domain.GraphStatusCompleted, now); err != nil {
			return err
		}
		if err := e.graphs.SaveGraph(ctx, graph); err != nil {
			return err
		}
		e.notify(observability.EventGraphCompleted, graph.OwnerAgent, graphID, uuid.Nil, "graph completed", nil, 0)
		return nil
	}

	for _, n := range ready {
		if err := e.startNode(ctx, graph, n); err != nil {
			return err
		}
	}
	return nil
}

// Terminate marks every node of graphID not yet in a terminal status as
// skipped, terminating the agent behind it if it has one, and fails the graph.
func (e *Engine) Terminate(ctx context.Context, graphID uuid.UUID) error {
	graph, err := e.graphs.FindGraph(ctx, graphID)
	if err != nil {
		return err
	}
	nodes, err := e.graphs.FindNodesByGraph(ctx, graphID)
	if err != nil {
		return err
	}

	for _, n := range nodes {
		if n.Status.IsTerminal() {
			continue
		}
		if n.AgentID != nil {
			if err := e.lifecycle.Terminate(ctx, *n.AgentID); err != nil && kerrors.KindOf(err) != kerrors.KindNotFound {
				return err
			}
		}
		n.Status = domain.NodeExecutionStatusSkipped
		n.UpdatedAt = e.now()
		if err := e.graphs.SaveNode(ctx, n); err != nil {
			return err
		}
	}

	if graph.Status.IsTerminal() {
		return nil
	}
	if err := graph.Transition(domain.GraphStatusFailed, e.now()); err != nil {
		return err
	}
	if err := e.graphs.SaveGraph(ctx, graph); err != nil {
		return err
	}
	e.notify(observability.EventGraphFailed, graph.OwnerAgent, graphID, uuid.Nil, "graph terminated", nil, 0)
	return nil
}

// Progress reports how many of a graph's nodes have reached a terminal
// status, for external progress reporting.
type Progress struct {
	Total     int
	Completed int
	Failed    int
	Skipped   int
}

// Progress computes the current Progress of graphID.
func (e *Engine) Progress(ctx context.Context, graphID uuid.UUID) (Progress, error) {
	nodes, err := e.graphs.FindNodesByGraph(ctx, graphID)
	if err != nil {
		return Progress{}, err
	}
	p := Progress{Total: len(nodes)}
	for _, n := range nodes {
		switch n.Status {
		case domain.NodeExecutionStatusCompleted:
			p.Completed++
		case domain.NodeExecutionStatusFailed:
			p.Failed++
		case domain.NodeExecutionStatusSkipped:
			p.Skipped++
		}
	}
	return p, nil
}

func agentOf(node *domain.WorkflowNode) uuid.UUID {
	if node.AgentID == nil {
		return uuid.Nil
	}
	return *node.AgentID
}

func (e *Engine) notify(eventType observability.EventType, agentID, graphID, nodeID uuid.UUID, message string, err error, duration time.Duration) {
	if e.observers == nil {
		return
	}
	e.observers.Notify(observability.Event{
		Type:     eventType,
		AgentID:  agentID,
		GraphID:  graphID,
		NodeID:   nodeID,
		Message:  message,
		Err:      err,
		Duration: duration,
		At:       e.now(),
	})
}

package domain

import (
	"time"

	"github.com/google/uuid"

	kerrors "github.com/agentmesh/kernel/internal/domain/errors"
)

// WorkflowNode is a single unit of work in a WorkflowGraph: a node spawns an
// agent once every node it depends on has completed (or been skipped).
type WorkflowNode struct {
	ID        uuid.UUID
	GraphID   uuid.UUID
	Name      string
	Task      string
	DependsOn []uuid.UUID
	Condition string // optional expr-lang expression gating execution
	Budget    int64
	AgentID   *uuid.UUID
	Status    NodeExecutionStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewWorkflowNode constructs a pending node. budget is the token allocation
// passed to Spawn when the node's dependencies are satisfied.
func NewWorkflowNode(id, graphID uuid.UUID, name, task string, dependsOn []uuid.UUID, condition string, budget int64, now time.Time) *WorkflowNode {
	return &WorkflowNode{
		ID:        id,
		GraphID:   graphID,
		Name:      name,
		Task:      task,
		DependsOn: dependsOn,
		Condition: condition,
		Budget:    budget,
		Status:    NodeExecutionStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsStart reports whether n has no dependencies and can run immediately.
func (n *WorkflowNode) IsStart() bool {
	return len(n.DependsOn) == 0
}

// WorkflowGraph is a DAG of WorkflowNodes executed by the WorkflowEngine.
// Unlike the underlying agent hierarchy, a graph's nodes are siblings of one
// another; each spawns its own agent, independent of its position in any
// other agent's hierarchy tree.
type WorkflowGraph struct {
	ID          uuid.UUID
	Name        string
	OwnerAgent  uuid.UUID
	Status      GraphStatus
	Validation  ValidationStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// NewWorkflowGraph constructs a pending, not-yet-validated graph owned by ownerAgent.
func NewWorkflowGraph(id, ownerAgent uuid.UUID, name string, now time.Time) *WorkflowGraph {
	return &WorkflowGraph{
		ID:         id,
		Name:       name,
		OwnerAgent: ownerAgent,
		Status:     GraphStatusPending,
		Validation: ValidationStatusInvalid,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Transition moves the graph to next status if legal, stamping UpdatedAt and,
// for terminal statuses, CompletedAt.
func (g *WorkflowGraph) Transition(next GraphStatus, now time.Time) error {
	if g.Status.IsTerminal() {
		return kerrors.NewInvalidTransitionError("workflow_graph", string(g.Status), string(next))
	}
	g.Status = next
	g.UpdatedAt = now
	if next.IsTerminal() {
		g.CompletedAt = &now
	}
	return nil
}

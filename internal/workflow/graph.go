package workflow

import (
	"github.com/google/uuid"

	"github.com/agentmesh/kernel/internal/domain"
	kerrors "github.com/agentmesh/kernel/internal/domain/errors"
)

// graph is an in-memory adjacency representation of a WorkflowGraph's nodes,
// built fresh from repository rows each time validation or ordering is
// needed. It never owns the nodes' execution state.
type graph struct {
	nodeIDs []uuid.UUID
	out     map[uuid.UUID][]uuid.UUID
	in      map[uuid.UUID][]uuid.UUID
}

func buildGraph(nodes []*domain.WorkflowNode) *graph {
	g := &graph{
		out: make(map[uuid.UUID][]uuid.UUID),
		in:  make(map[uuid.UUID][]uuid.UUID),
	}
	for _, n := range nodes {
		g.nodeIDs = append(g.nodeIDs, n.ID)
	}
	for _, n := range nodes {
		for _, dep := range n.DependsOn {
			g.out[dep] = append(g.out[dep], n.ID)
			g.in[n.ID] = append(g.in[n.ID], dep)
		}
	}
	return g
}

// dfsColor tracks DFS visitation state for cycle detection: white (unvisited),
// gray (on the current recursion stack), black (fully explored).
type dfsColor int

const (
	white dfsColor = iota
	gray
	black
)

// detectCycle runs a white/gray/black DFS cycle check, returning an error
// naming the offending node if a back edge (gray -> gray) is found.
func (g *graph) detectCycle() error {
	color := make(map[uuid.UUID]dfsColor, len(g.nodeIDs))
	for _, id := range g.nodeIDs {
		color[id] = white
	}

	var visit func(id uuid.UUID) error
	visit = func(id uuid.UUID) error {
		color[id] = gray
		for _, next := range g.out[id] {
			switch color[next] {
			case gray:
				return kerrors.NewWorkflowInvalid("cycle detected involving node " + next.String())
			case white:
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		color[id] = black
		return nil
	}

	for _, id := range g.nodeIDs {
		if color[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// topologicalSort orders nodes via Kahn's algorithm. It is run after
// detectCycle as an independent cross-check: a DAG that passes the DFS
// check must also fully drain through Kahn's queue, or the two disagree and
// the graph is rejected regardless.
func (g *graph) topologicalSort() ([]uuid.UUID, error) {
	indeg := make(map[uuid.UUID]int, len(g.nodeIDs))
	for _, id := range g.nodeIDs {
		indeg[id] = 0
	}
	for id := range g.out {
		for _, to := range g.out[id] {
			indeg[to]++
		}
	}

	queue := make([]uuid.UUID, 0)
	for _, id := range g.nodeIDs {
		if indeg[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]uuid.UUID, 0, len(g.nodeIDs))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, next := range g.out[id] {
			indeg[next]--
			if indeg[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(g.nodeIDs) {
		return nil, kerrors.NewWorkflowInvalid("graph has a cycle or a dangling dependency")
	}
	return order, nil
}

// ValidateDAG checks nodes for cycles and dangling dependency references,
// returning a WorkflowInvalid error describing the first problem found.
func ValidateDAG(nodes []*domain.WorkflowNode) error {
	known := make(map[uuid.UUID]bool, len(nodes))
	for _, n := range nodes {
		known[n.ID] = true
	}
	for _, n := range nodes {
		for _, dep := range n.DependsOn {
			if !known[dep] {
				return kerrors.NewWorkflowInvalid("node " + n.ID.String() + " depends on unknown node " + dep.String())
			}
		}
	}

	g := buildGraph(nodes)
	if err := g.detectCycle(); err != nil {
		return err
	}
	if _, err := g.topologicalSort(); err != nil {
		return err
	}
	return nil
}

// TopologicalOrder returns nodes' IDs in a valid execution order. Callers
// must have already validated the graph with ValidateDAG.
func TopologicalOrder(nodes []*domain.WorkflowNode) ([]uuid.UUID, error) {
	g := buildGraph(nodes)
	return g.topologicalSort()
}

// StartingNodes returns the nodes with no dependencies, the initial
// frontier spawned by Execute.
func StartingNodes(nodes []*domain.WorkflowNode) []*domain.WorkflowNode {
	var starts []*domain.WorkflowNode
	for _, n := range nodes {
		if n.IsStart() {
			starts = append(starts, n)
		}
	}
	return starts
}

// ReadyNodes returns the pending nodes among candidates whose dependencies
// have all reached a terminal, non-failed status within completed.
func ReadyNodes(candidates []*domain.WorkflowNode, completed map[uuid.UUID]domain.NodeExecutionStatus) []*domain.WorkflowNode {
	var ready []*domain.WorkflowNode
	for _, n := range candidates {
		if n.Status != domain.NodeExecutionStatusPending {
			continue
		}
		allDone := true
		for _, dep := range n.DependsOn {
			status, done := completed[dep]
			if !done || (status != domain.NodeExecutionStatusCompleted && status != domain.NodeExecutionStatusSkipped) {
				allDone = false
				break
			}
		}
		if allDone {
			ready = append(ready, n)
		}
	}
	return ready
}

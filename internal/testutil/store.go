// Package testutil provides an in-memory implementation of domain.Storage
// for exercising the ledger, lifecycle, queue, workflow, and poller packages
// without a Postgres instance.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	kerrors "github.com/agentmesh/kernel/internal/domain/errors"

	"github.com/agentmesh/kernel/internal/domain"
)

// Store is an in-memory domain.Storage backed by plain maps guarded by a
// single mutex. Transactions are accepted but not isolated: BeginTransaction
// returns ctx unchanged, and Commit/Rollback are no-ops, since every mutation
// is already applied immediately and visible to every caller.
type Store struct {
	mu sync.Mutex

	agents     map[uuid.UUID]*domain.Agent
	edges      map[uuid.UUID]*domain.HierarchyEdge // keyed by ChildID
	accounts   map[uuid.UUID]*domain.BudgetAccount
	messages   map[uuid.UUID]*domain.Message
	workspaces map[uuid.UUID]*domain.Workspace
	graphs     map[uuid.UUID]*domain.WorkflowGraph
	nodes      map[uuid.UUID]*domain.WorkflowNode
}

// NewStore constructs an empty in-memory Store.
func NewStore() *Store {
	return &Store{
		agents:     make(map[uuid.UUID]*domain.Agent),
		edges:      make(map[uuid.UUID]*domain.HierarchyEdge),
		accounts:   make(map[uuid.UUID]*domain.BudgetAccount),
		messages:   make(map[uuid.UUID]*domain.Message),
		workspaces: make(map[uuid.UUID]*domain.Workspace),
		graphs:     make(map[uuid.UUID]*domain.WorkflowGraph),
		nodes:      make(map[uuid.UUID]*domain.WorkflowNode),
	}
}

func clone[T any](v T) *T {
	cp := v
	return &cp
}

// -- AgentRepository --

func (s *Store) SaveAgent(ctx context.Context, agent *domain.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[agent.ID] = clone(*agent)
	return nil
}

func (s *Store) FindAgentByID(ctx context.Context, id uuid.UUID) (*domain.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return nil, kerrors.NewNotFound("agent", id.String())
	}
	return clone(*a), nil
}

func (s *Store) FindChildren(ctx context.Context, parentID uuid.UUID) ([]*domain.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Agent
	for _, a := range s.agents {
		if a.ParentID != nil && *a.ParentID == parentID {
			out = append(out, clone(*a))
		}
	}
	sortAgents(out)
	return out, nil
}

func (s *Store) FindByRoot(ctx context.Context, rootID uuid.UUID) ([]*domain.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Agent
	for _, a := range s.agents {
		if a.RootID == rootID {
			out = append(out, clone(*a))
		}
	}
	sortAgents(out)
	return out, nil
}

func (s *Store) FindByStatus(ctx context.Context, status domain.AgentStatus) ([]*domain.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Agent
	for _, a := range s.agents {
		if a.Status == status {
			out = append(out, clone(*a))
		}
	}
	sortAgents(out)
	return out, nil
}

func (s *Store) AgentExists(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.agents[id]
	return ok, nil
}

func sortAgents(agents []*domain.Agent) {
	sort.Slice(agents, func(i, j int) bool { return agents[i].CreatedAt.Before(agents[j].CreatedAt) })
}

// -- HierarchyRepository --

func (s *Store) SaveEdge(ctx context.Context, edge *domain.HierarchyEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges[edge.ChildID] = clone(*edge)
	return nil
}

func (s *Store) FindEdge(ctx context.Context, childID uuid.UUID) (*domain.HierarchyEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.edges[childID]
	if !ok {
		return nil, kerrors.NewNotFound("hierarchy_edge", childID.String())
	}
	return clone(*e), nil
}

func (s *Store) FindDescendants(ctx context.Context, agentID uuid.UUID) ([]*domain.HierarchyEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	childrenOf := make(map[uuid.UUID][]*domain.HierarchyEdge)
	for _, e := range s.edges {
		childrenOf[e.ParentID] = append(childrenOf[e.ParentID], e)
	}

	var out []*domain.HierarchyEdge
	queue := []uuid.UUID{agentID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, e := range childrenOf[current] {
			out = append(out, clone(*e))
			queue = append(queue, e.ChildID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Depth < out[j].Depth })
	return out, nil
}

func (s *Store) FindAncestors(ctx context.Context, agentID uuid.UUID) ([]*domain.HierarchyEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.HierarchyEdge
	current := agentID
	for {
		e, ok := s.edges[current]
		if !ok {
			break
		}
		out = append(out, clone(*e))
		current = e.ParentID
	}
	return out, nil
}

// -- BudgetRepository --

func (s *Store) SaveAccount(ctx context.Context, account *domain.BudgetAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.AgentID] = clone(*account)
	return nil
}

func (s *Store) FindByAgentID(ctx context.Context, agentID uuid.UUID) (*domain.BudgetAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[agentID]
	if !ok {
		return nil, kerrors.NewNotFound("budget_account", agentID.String())
	}
	return clone(*a), nil
}

func (s *Store) FindByAgentIDForUpdate(ctx context.Context, agentID uuid.UUID) (*domain.BudgetAccount, error) {
	return s.FindByAgentID(ctx, agentID)
}

// -- MessageRepository --

func (s *Store) SaveMessage(ctx context.Context, message *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[message.ID] = clone(*message)
	return nil
}

func (s *Store) FindMessageByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, kerrors.NewNotFound("message", id.String())
	}
	return clone(*m), nil
}

func (s *Store) FindPendingForRecipient(ctx context.Context, recipient uuid.UUID, limit int) ([]*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Message
	for _, m := range s.messages {
		if m.Status != domain.MessageStatusPending {
			continue
		}
		if m.RecipientID != nil && *m.RecipientID != recipient {
			continue
		}
		out = append(out, clone(*m))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) FindByThread(ctx context.Context, threadID uuid.UUID) ([]*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Message
	for _, m := range s.messages {
		if m.ThreadID == threadID {
			out = append(out, clone(*m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CountByStatus(ctx context.Context, status domain.MessageStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.messages {
		if m.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, m := range s.messages {
		if m.Status == domain.MessageStatusProcessed && m.ProcessedAt != nil && m.ProcessedAt.Before(cutoff) {
			delete(s.messages, id)
			n++
		}
	}
	return n, nil
}

// -- WorkspaceRepository --

func (s *Store) SaveWorkspace(ctx context.Context, ws *domain.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workspaces[ws.ID] = clone(*ws)
	return nil
}

func (s *Store) FindWorkspaceByID(ctx context.Context, id uuid.UUID) (*domain.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workspaces[id]
	if !ok {
		return nil, kerrors.NewNotFound("workspace", id.String())
	}
	return clone(*w), nil
}

func (s *Store) FindWorkspaceByAgentID(ctx context.Context, agentID uuid.UUID) (*domain.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.workspaces {
		if w.AgentID == agentID {
			return clone(*w), nil
		}
	}
	return nil, kerrors.NewNotFound("workspace", agentID.String())
}

func (s *Store) FindEligibleForCleanup(ctx context.Context, now time.Time, mergedMaxAge, discardedMaxAge time.Duration) ([]*domain.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Workspace
	for _, w := range s.workspaces {
		if w.EligibleForCleanup(now, mergedMaxAge, discardedMaxAge) {
			out = append(out, clone(*w))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

// -- WorkflowRepository --

func (s *Store) SaveGraph(ctx context.Context, graph *domain.WorkflowGraph) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphs[graph.ID] = clone(*graph)
	return nil
}

func (s *Store) FindGraph(ctx context.Context, id uuid.UUID) (*domain.WorkflowGraph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.graphs[id]
	if !ok {
		return nil, kerrors.NewNotFound("workflow_graph", id.String())
	}
	return clone(*g), nil
}

func (s *Store) SaveNode(ctx context.Context, node *domain.WorkflowNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[node.ID] = clone(*node)
	return nil
}

func (s *Store) FindNode(ctx context.Context, id uuid.UUID) (*domain.WorkflowNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, kerrors.NewNotFound("workflow_node", id.String())
	}
	return clone(*n), nil
}

func (s *Store) FindNodeByAgentID(ctx context.Context, agentID uuid.UUID) (*domain.WorkflowNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.nodes {
		if n.AgentID != nil && *n.AgentID == agentID {
			return clone(*n), nil
		}
	}
	return nil, kerrors.NewNotFound("workflow_node", agentID.String())
}

func (s *Store) FindNodesByGraph(ctx context.Context, graphID uuid.UUID) ([]*domain.WorkflowNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.WorkflowNode
	for _, n := range s.nodes {
		if n.GraphID == graphID {
			out = append(out, clone(*n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) FindGraphsByStatus(ctx context.Context, status domain.GraphStatus) ([]*domain.WorkflowGraph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.WorkflowGraph
	for _, g := range s.graphs {
		if g.Status == status {
			out = append(out, clone(*g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// -- Transactions, lifecycle --

type txMarker struct{}

func (s *Store) BeginTransaction(ctx context.Context) (context.Context, error) {
	return context.WithValue(ctx, txMarker{}, true), nil
}

func (s *Store) CommitTransaction(ctx context.Context) error   { return nil }
func (s *Store) RollbackTransaction(ctx context.Context) error { return nil }

func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close() error                   { return nil }

var _ domain.Storage = (*Store)(nil)

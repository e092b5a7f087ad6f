package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/agentmesh/kernel/internal/domain"
)

type workflowGraphModel struct {
	bun.BaseModel `bun:"table:workflow_graphs,alias:wg"`

	ID          uuid.UUID  `bun:"id,pk"`
	Name        string     `bun:"name"`
	OwnerAgent  uuid.UUID  `bun:"owner_agent"`
	Status      string     `bun:"status"`
	Validation  string     `bun:"validation"`
	CreatedAt   time.Time  `bun:"created_at"`
	UpdatedAt   time.Time  `bun:"updated_at"`
	CompletedAt *time.Time `bun:"completed_at"`
}

func newWorkflowGraphModel(g *domain.WorkflowGraph) *workflowGraphModel {
	return &workflowGraphModel{
		ID:          g.ID,
		Name:        g.Name,
		OwnerAgent:  g.OwnerAgent,
		Status:      string(g.Status),
		Validation:  string(g.Validation),
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
		CompletedAt: g.CompletedAt,
	}
}

func (m *workflowGraphModel) toDomain() *domain.WorkflowGraph {
	return &domain.WorkflowGraph{
		ID:          m.ID,
		Name:        m.Name,
		OwnerAgent:  m.OwnerAgent,
		Status:      domain.GraphStatus(m.Status),
		Validation:  domain.ValidationStatus(m.Validation),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		CompletedAt: m.CompletedAt,
	}
}

type workflowNodeModel struct {
	bun.BaseModel `bun:"table:workflow_nodes,alias:wn"`

	ID        uuid.UUID   `bun:"id,pk"`
	GraphID   uuid.UUID   `bun:"graph_id"`
	Name      string      `bun:"name"`
	Task      string      `bun:"task"`
	DependsOn []uuid.UUID `bun:"depends_on,array"`
	Condition string      `bun:"condition"`
	Budget    int64       `bun:"budget"`
	AgentID   *uuid.UUID  `bun:"agent_id"`
	Status    string      `bun:"status"`
	CreatedAt time.Time   `bun:"created_at"`
	UpdatedAt time.Time   `bun:"updated_at"`
}

func newWorkflowNodeModel(n *domain.WorkflowNode) *workflowNodeModel {
	return &workflowNodeModel{
		ID:        n.ID,
		GraphID:   n.GraphID,
		Name:      n.Name,
		Task:      n.Task,
		DependsOn: n.DependsOn,
		Condition: n.Condition,
		Budget:    n.Budget,
		AgentID:   n.AgentID,
		Status:    string(n.Status),
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func (m *workflowNodeModel) toDomain() *domain.WorkflowNode {
	return &domain.WorkflowNode{
		ID:        m.ID,
		GraphID:   m.GraphID,
		Name:      m.Name,
		Task:      m.Task,
		DependsOn: m.DependsOn,
		Condition: m.Condition,
		Budget:    m.Budget,
		AgentID:   m.AgentID,
		Status:    domain.NodeExecutionStatus(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// SaveGraph upserts graph.
func (s *BunStore) SaveGraph(ctx context.Context, graph *domain.WorkflowGraph) error {
	model := newWorkflowGraphModel(graph)
	_, err := s.conn(ctx).NewInsert().Model(model).On("CONFLICT (id) DO UPDATE").Exec(ctx)
	return err
}

// FindGraph loads the graph with id.
func (s *BunStore) FindGraph(ctx context.Context, id uuid.UUID) (*domain.WorkflowGraph, error) {
	model := new(workflowGraphModel)
	if err := s.conn(ctx).NewSelect().Model(model).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}
	return model.toDomain(), nil
}

// FindGraphsByStatus returns every graph currently in status.
func (s *BunStore) FindGraphsByStatus(ctx context.Context, status domain.GraphStatus) ([]*domain.WorkflowGraph, error) {
	var models []workflowGraphModel
	if err := s.conn(ctx).NewSelect().Model(&models).Where("status = ?", string(status)).Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]*domain.WorkflowGraph, len(models))
	for i := range models {
		out[i] = models[i].toDomain()
	}
	return out, nil
}

// SaveNode upserts node.
func (s *BunStore) SaveNode(ctx context.Context, node *domain.WorkflowNode) error {
	model := newWorkflowNodeModel(node)
	_, err := s.conn(ctx).NewInsert().Model(model).On("CONFLICT (id) DO UPDATE").Exec(ctx)
	return err
}

// FindNode loads the node with id.
func (s *BunStore) FindNode(ctx context.Context, id uuid.UUID) (*domain.WorkflowNode, error) {
	model := new(workflowNodeModel)
	if err := s.conn(ctx).NewSelect().Model(model).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}
	return model.toDomain(), nil
}

// FindNodeByAgentID loads the node that spawned agentID, used by the
// execution poller to route a finished agent's result back to its graph.
func (s *BunStore) FindNodeByAgentID(ctx context.Context, agentID uuid.UUID) (*domain.WorkflowNode, error) {
	model := new(workflowNodeModel)
	if err := s.conn(ctx).NewSelect().Model(model).Where("agent_id = ?", agentID).Scan(ctx); err != nil {
		return nil, err
	}
	return model.toDomain(), nil
}

// FindNodesByGraph lists every node belonging to graphID.
func (s *BunStore) FindNodesByGraph(ctx context.Context, graphID uuid.UUID) ([]*domain.WorkflowNode, error) {
	var models []workflowNodeModel
	if err := s.conn(ctx).NewSelect().Model(&models).Where("graph_id = ?", graphID).Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]*domain.WorkflowNode, len(models))
	for i := range models {
		out[i] = models[i].toDomain()
	}
	return out, nil
}

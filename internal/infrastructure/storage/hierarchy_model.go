package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/agentmesh/kernel/internal/domain"
)

type hierarchyEdgeModel struct {
	bun.BaseModel `bun:"table:hierarchy_edges,alias:he"`

	ParentID  uuid.UUID `bun:"parent_id,pk"`
	ChildID   uuid.UUID `bun:"child_id,pk"`
	RootID    uuid.UUID `bun:"root_id"`
	Depth     int       `bun:"depth"`
	CreatedAt time.Time `bun:"created_at"`
}

func newHierarchyEdgeModel(e *domain.HierarchyEdge) *hierarchyEdgeModel {
	return &hierarchyEdgeModel{
		ParentID:  e.ParentID,
		ChildID:   e.ChildID,
		RootID:    e.RootID,
		Depth:     e.Depth,
		CreatedAt: e.CreatedAt,
	}
}

func (m *hierarchyEdgeModel) toDomain() *domain.HierarchyEdge {
	return &domain.HierarchyEdge{
		ParentID:  m.ParentID,
		ChildID:   m.ChildID,
		RootID:    m.RootID,
		Depth:     m.Depth,
		CreatedAt: m.CreatedAt,
	}
}

// SaveEdge persists edge.
func (s *BunStore) SaveEdge(ctx context.Context, edge *domain.HierarchyEdge) error {
	model := newHierarchyEdgeModel(edge)
	_, err := s.conn(ctx).NewInsert().Model(model).On("CONFLICT (parent_id, child_id) DO UPDATE").Exec(ctx)
	return err
}

// FindEdge returns the edge recording childID's spawn.
func (s *BunStore) FindEdge(ctx context.Context, childID uuid.UUID) (*domain.HierarchyEdge, error) {
	model := new(hierarchyEdgeModel)
	if err := s.conn(ctx).NewSelect().Model(model).Where("child_id = ?", childID).Scan(ctx); err != nil {
		return nil, err
	}
	return model.toDomain(), nil
}

// FindDescendants returns every edge in agentID's subtree, including
// agentID's direct children, via a recursive CTE walking child_id down from
// parent_id = agentID.
func (s *BunStore) FindDescendants(ctx context.Context, agentID uuid.UUID) ([]*domain.HierarchyEdge, error) {
	var models []hierarchyEdgeModel
	err := s.conn(ctx).NewRaw(`
		WITH RECURSIVE subtree AS (
			SELECT parent_id, child_id, root_id, depth, created_at
			FROM hierarchy_edges WHERE parent_id = ?
			UNION ALL
			SELECT he.parent_id, he.child_id, he.root_id, he.depth, he.created_at
			FROM hierarchy_edges he
			JOIN subtree s ON he.parent_id = s.child_id
		)
		SELECT * FROM subtree
	`, agentID).Scan(ctx, &models)
	if err != nil {
		return nil, err
	}
	return toEdgeSlice(models), nil
}

// FindAncestors returns the chain of edges from agentID's own edge (whose
// ParentID is agentID's direct parent) up to the edge whose ParentID is the
// root, nearest parent first.
func (s *BunStore) FindAncestors(ctx context.Context, agentID uuid.UUID) ([]*domain.HierarchyEdge, error) {
	var models []hierarchyEdgeModel
	err := s.conn(ctx).NewRaw(`
		WITH RECURSIVE chain AS (
			SELECT parent_id, child_id, root_id, depth, created_at
			FROM hierarchy_edges WHERE child_id = ?
			UNION ALL
			SELECT he.parent_id, he.child_id, he.root_id, he.depth, he.created_at
			FROM hierarchy_edges he
			JOIN chain c ON he.child_id = c.parent_id
		)
		SELECT * FROM chain ORDER BY depth DESC
	`, agentID).Scan(ctx, &models)
	if err != nil {
		return nil, err
	}
	return toEdgeSlice(models), nil
}

func toEdgeSlice(models []hierarchyEdgeModel) []*domain.HierarchyEdge {
	out := make([]*domain.HierarchyEdge, len(models))
	for i := range models {
		out[i] = models[i].toDomain()
	}
	return out
}

package lifecycle

import (
	"context"

	"github.com/google/uuid"

	"github.com/agentmesh/kernel/internal/domain"
)

// Children returns agentID's direct children.
func (lc *Lifecycle) Children(ctx context.Context, agentID uuid.UUID) ([]*domain.Agent, error) {
	return lc.agents.FindChildren(ctx, agentID)
}

// Descendants returns every agent transitively spawned under agentID.
func (lc *Lifecycle) Descendants(ctx context.Context, agentID uuid.UUID) ([]*domain.Agent, error) {
	edges, err := lc.hierarchy.FindDescendants(ctx, agentID)
	if err != nil {
		return nil, err
	}
	agents := make([]*domain.Agent, 0, len(edges))
	for _, edge := range edges {
		agent, err := lc.agents.FindAgentByID(ctx, edge.ChildID)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	return agents, nil
}

// Ancestors returns agentID's chain of ancestors, nearest parent first.
func (lc *Lifecycle) Ancestors(ctx context.Context, agentID uuid.UUID) ([]*domain.Agent, error) {
	edges, err := lc.hierarchy.FindAncestors(ctx, agentID)
	if err != nil {
		return nil, err
	}
	agents := make([]*domain.Agent, 0, len(edges))
	for _, edge := range edges {
		agent, err := lc.agents.FindAgentByID(ctx, edge.ParentID)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	return agents, nil
}

// Siblings returns the other children of agentID's parent, excluding
// agentID itself. A root agent has no siblings.
func (lc *Lifecycle) Siblings(ctx context.Context, agentID uuid.UUID) ([]*domain.Agent, error) {
	agent, err := lc.agents.FindAgentByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if agent.ParentID == nil {
		return nil, nil
	}
	children, err := lc.agents.FindChildren(ctx, *agent.ParentID)
	if err != nil {
		return nil, err
	}
	siblings := make([]*domain.Agent, 0, len(children))
	for _, c := range children {
		if c.ID != agentID {
			siblings = append(siblings, c)
		}
	}
	return siblings, nil
}

// SubHierarchy returns agentID together with every one of its descendants —
// the full subtree rooted at agentID.
func (lc *Lifecycle) SubHierarchy(ctx context.Context, agentID uuid.UUID) ([]*domain.Agent, error) {
	self, err := lc.agents.FindAgentByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	descendants, err := lc.Descendants(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return append([]*domain.Agent{self}, descendants...), nil
}

// Depth returns agentID's depth in its hierarchy tree (0 for a root agent).
func (lc *Lifecycle) Depth(ctx context.Context, agentID uuid.UUID) (int, error) {
	agent, err := lc.agents.FindAgentByID(ctx, agentID)
	if err != nil {
		return 0, err
	}
	return agent.Depth, nil
}

// IsRoot reports whether agentID has no parent.
func (lc *Lifecycle) IsRoot(ctx context.Context, agentID uuid.UUID) (bool, error) {
	agent, err := lc.agents.FindAgentByID(ctx, agentID)
	if err != nil {
		return false, err
	}
	return agent.IsRoot(), nil
}

// IsLeaf reports whether agentID has no children.
func (lc *Lifecycle) IsLeaf(ctx context.Context, agentID uuid.UUID) (bool, error) {
	children, err := lc.agents.FindChildren(ctx, agentID)
	if err != nil {
		return false, err
	}
	return len(children) == 0, nil
}

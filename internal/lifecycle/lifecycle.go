// Package lifecycle implements agent spawn/terminate operations and enforces
// the hierarchy's depth and budget invariants at the moment a new agent is
// created.
package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agentmesh/kernel/internal/domain"
	kerrors "github.com/agentmesh/kernel/internal/domain/errors"
	"github.com/agentmesh/kernel/internal/ledger"
)

// Clock abstracts the current time so tests can control it deterministically.
type Clock func() time.Time

// Lifecycle manages agent creation, state transitions, and termination. It
// coordinates the agent repository, the hierarchy repository, and the
// Ledger so that spawning a child is a single consistent operation: depth is
// checked, budget is reserved, and the new agent and its hierarchy edge are
// recorded together.
type Lifecycle struct {
	agents    domain.AgentRepository
	hierarchy domain.HierarchyRepository
	ledger    *ledger.Ledger
	maxDepth  int
	now       Clock
}

// New constructs a Lifecycle manager. maxDepth bounds how many spawn levels
// deep the hierarchy may go; a root agent is depth zero.
func New(agents domain.AgentRepository, hierarchy domain.HierarchyRepository, l *ledger.Ledger, maxDepth int, now Clock) *Lifecycle {
	if now == nil {
		now = time.Now
	}
	return &Lifecycle{agents: agents, hierarchy: hierarchy, ledger: l, maxDepth: maxDepth, now: now}
}

// SpawnRoot creates a new root agent with its own freshly opened budget
// account.
func (lc *Lifecycle) SpawnRoot(ctx context.Context, name, task string, metadata map[string]any, budget int64) (*domain.Agent, error) {
	agent := domain.NewAgent(uuid.New(), name, task, metadata, lc.now())
	if err := lc.agents.SaveAgent(ctx, agent); err != nil {
		return nil, err
	}
	if _, err := lc.ledger.OpenRoot(ctx, agent.ID, budget); err != nil {
		return nil, err
	}
	return agent, nil
}

// Spawn creates a new agent as a child of parentID, enforcing the hierarchy
// depth limit and reserving budget out of the parent's account before the
// child or its hierarchy edge is recorded.
func (lc *Lifecycle) Spawn(ctx context.Context, parentID uuid.UUID, name, task string, metadata map[string]any, budget int64) (*domain.Agent, error) {
	parent, err := lc.agents.FindAgentByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent.Status.IsTerminal() {
		return nil, kerrors.NewInvalidTransitionError("agent", string(parent.Status), "spawn_child")
	}
	if parent.Depth+1 > lc.maxDepth {
		return nil, kerrors.NewMaxDepthExceeded(parent.Depth+1, lc.maxDepth)
	}

	now := lc.now()
	child := domain.NewChildAgent(uuid.New(), parent, name, task, metadata, now)

	if _, err := lc.ledger.AllocateChild(ctx, parent.ID, child.ID, budget); err != nil {
		return nil, err
	}
	if err := lc.agents.SaveAgent(ctx, child); err != nil {
		return nil, err
	}

	edge := domain.NewHierarchyEdge(parent, child, now)
	if err := lc.hierarchy.SaveEdge(ctx, edge); err != nil {
		return nil, err
	}
	return child, nil
}

// Start transitions agentID from pending to running.
func (lc *Lifecycle) Start(ctx context.Context, agentID uuid.UUID) error {
	return lc.transition(ctx, agentID, domain.AgentStatusRunning)
}

// Suspend transitions agentID from running to suspended.
func (lc *Lifecycle) Suspend(ctx context.Context, agentID uuid.UUID) error {
	return lc.transition(ctx, agentID, domain.AgentStatusSuspended)
}

// Resume transitions agentID from suspended back to running.
func (lc *Lifecycle) Resume(ctx context.Context, agentID uuid.UUID) error {
	return lc.transition(ctx, agentID, domain.AgentStatusRunning)
}

// Complete transitions agentID to completed and reclaims any unused budget
// reserved against its parent.
func (lc *Lifecycle) Complete(ctx context.Context, agentID uuid.UUID) error {
	return lc.finish(ctx, agentID, domain.AgentStatusCompleted)
}

// Fail transitions agentID to failed and reclaims any unused budget reserved
// against its parent.
func (lc *Lifecycle) Fail(ctx context.Context, agentID uuid.UUID) error {
	return lc.finish(ctx, agentID, domain.AgentStatusFailed)
}

// Terminate stops agentID and every one of its descendants, reclaiming
// unused budget at each level. Terminate is the only transition permitted
// from any non-terminal state, matching an operator-driven or
// budget-exhaustion cancellation that cannot wait for a voluntary
// completion.
func (lc *Lifecycle) Terminate(ctx context.Context, agentID uuid.UUID) error {
	descendants, err := lc.hierarchy.FindDescendants(ctx, agentID)
	if err != nil {
		return err
	}

	victims := make([]uuid.UUID, 0, len(descendants)+1)
	victims = append(victims, agentID)
	for _, edge := range descendants {
		victims = append(victims, edge.ChildID)
	}

	for _, id := range victims {
		if err := lc.finish(ctx, id, domain.AgentStatusTerminated); err != nil {
			if kerrors.KindOf(err) == kerrors.KindInvalidTransition {
				continue
			}
			return err
		}
	}
	return nil
}

func (lc *Lifecycle) transition(ctx context.Context, agentID uuid.UUID, next domain.AgentStatus) error {
	agent, err := lc.agents.FindAgentByID(ctx, agentID)
	if err != nil {
		return err
	}
	if err := agent.Transition(next, lc.now()); err != nil {
		return err
	}
	return lc.agents.SaveAgent(ctx, agent)
}

// CompleteWithResult transitions agentID to completed, stamping output onto
// its metadata under the "result" key before reclaiming unused budget, so a
// later GetResult can retrieve what the agent produced.
func (lc *Lifecycle) CompleteWithResult(ctx context.Context, agentID uuid.UUID, output map[string]any) error {
	agent, err := lc.agents.FindAgentByID(ctx, agentID)
	if err != nil {
		return err
	}
	if agent.Metadata == nil {
		agent.Metadata = make(map[string]any, 1)
	}
	agent.Metadata["result"] = output
	if err := lc.agents.SaveAgent(ctx, agent); err != nil {
		return err
	}
	return lc.finish(ctx, agentID, domain.AgentStatusCompleted)
}

// GetResult returns the output an already-completed agent produced, or nil
// if the agent hasn't completed or never recorded one.
func (lc *Lifecycle) GetResult(ctx context.Context, agentID uuid.UUID) (map[string]any, error) {
	agent, err := lc.agents.FindAgentByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	result, _ := agent.Metadata["result"].(map[string]any)
	return result, nil
}

// GetAgent loads a single agent by id.
func (lc *Lifecycle) GetAgent(ctx context.Context, agentID uuid.UUID) (*domain.Agent, error) {
	return lc.agents.FindAgentByID(ctx, agentID)
}

// ListAgents returns every agent in status, or every agent under rootID when
// rootID is non-nil; a zero-value filter is not supported since the
// repository does not expose an unbounded table scan.
type AgentFilter struct {
	Status *domain.AgentStatus
	RootID *uuid.UUID
}

// ListAgents applies filter against the agent repository.
func (lc *Lifecycle) ListAgents(ctx context.Context, filter AgentFilter) ([]*domain.Agent, error) {
	if filter.RootID != nil {
		return lc.agents.FindByRoot(ctx, *filter.RootID)
	}
	if filter.Status != nil {
		return lc.agents.FindByStatus(ctx, *filter.Status)
	}
	return nil, kerrors.NewValidationFailure("filter", "ListAgents requires a status or root_id filter")
}

// GetHierarchy returns rootID together with every descendant in its tree.
func (lc *Lifecycle) GetHierarchy(ctx context.Context, rootID uuid.UUID) ([]*domain.Agent, error) {
	return lc.SubHierarchy(ctx, rootID)
}

func (lc *Lifecycle) finish(ctx context.Context, agentID uuid.UUID, next domain.AgentStatus) error {
	agent, err := lc.agents.FindAgentByID(ctx, agentID)
	if err != nil {
		return err
	}
	if err := agent.Transition(next, lc.now()); err != nil {
		return err
	}
	if err := lc.agents.SaveAgent(ctx, agent); err != nil {
		return err
	}

	if agent.ParentID == nil {
		return nil
	}
	// Reclaim resolves the parent from the hierarchy itself and returns
	// only the portion of the allocation the agent never spent.
	return lc.ledger.Reclaim(ctx, agent.ID)
}

package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AgentRepository persists Agent entities.
type AgentRepository interface {
	SaveAgent(ctx context.Context, agent *Agent) error
	FindAgentByID(ctx context.Context, id uuid.UUID) (*Agent, error)
	FindChildren(ctx context.Context, parentID uuid.UUID) ([]*Agent, error)
	FindByRoot(ctx context.Context, rootID uuid.UUID) ([]*Agent, error)
	// FindByStatus returns every agent currently in status, used by the
	// execution poller to discover newly-pending work.
	FindByStatus(ctx context.Context, status AgentStatus) ([]*Agent, error)
	AgentExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// HierarchyRepository persists HierarchyEdge entities and answers
// ancestry/descent queries over the agent forest.
type HierarchyRepository interface {
	SaveEdge(ctx context.Context, edge *HierarchyEdge) error
	FindEdge(ctx context.Context, childID uuid.UUID) (*HierarchyEdge, error)
	FindDescendants(ctx context.Context, agentID uuid.UUID) ([]*HierarchyEdge, error)
	FindAncestors(ctx context.Context, agentID uuid.UUID) ([]*HierarchyEdge, error)
}

// BudgetRepository persists BudgetAccount entities. Implementations must
// apply row-level locking on Get-for-update so concurrent spawns against the
// same parent account serialize correctly.
type BudgetRepository interface {
	SaveAccount(ctx context.Context, account *BudgetAccount) error
	FindByAgentID(ctx context.Context, agentID uuid.UUID) (*BudgetAccount, error)
	FindByAgentIDForUpdate(ctx context.Context, agentID uuid.UUID) (*BudgetAccount, error)
}

// MessageRepository persists Message entities with priority-FIFO retrieval.
type MessageRepository interface {
	SaveMessage(ctx context.Context, message *Message) error
	FindMessageByID(ctx context.Context, id uuid.UUID) (*Message, error)
	// FindPendingForRecipient returns pending messages addressed to
	// recipient together with every pending broadcast (nil RecipientID),
	// ordered by (priority DESC, created_at ASC).
	FindPendingForRecipient(ctx context.Context, recipient uuid.UUID, limit int) ([]*Message, error)
	FindByThread(ctx context.Context, threadID uuid.UUID) ([]*Message, error)
	CountByStatus(ctx context.Context, status MessageStatus) (int64, error)
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// WorkspaceRepository persists Workspace entities.
type WorkspaceRepository interface {
	SaveWorkspace(ctx context.Context, ws *Workspace) error
	FindWorkspaceByID(ctx context.Context, id uuid.UUID) (*Workspace, error)
	FindWorkspaceByAgentID(ctx context.Context, agentID uuid.UUID) (*Workspace, error)
	FindEligibleForCleanup(ctx context.Context, now time.Time, mergedMaxAge, discardedMaxAge time.Duration) ([]*Workspace, error)
}

// WorkflowRepository persists WorkflowGraph and WorkflowNode entities.
type WorkflowRepository interface {
	SaveGraph(ctx context.Context, graph *WorkflowGraph) error
	FindGraph(ctx context.Context, id uuid.UUID) (*WorkflowGraph, error)
	SaveNode(ctx context.Context, node *WorkflowNode) error
	FindNode(ctx context.Context, id uuid.UUID) (*WorkflowNode, error)
	FindNodeByAgentID(ctx context.Context, agentID uuid.UUID) (*WorkflowNode, error)
	FindNodesByGraph(ctx context.Context, graphID uuid.UUID) ([]*WorkflowNode, error)
	// FindGraphsByStatus returns every graph currently in status, for
	// recovery sweeps after a process restart.
	FindGraphsByStatus(ctx context.Context, status GraphStatus) ([]*WorkflowGraph, error)
}

// Storage is the unified repository interface every kernel component
// depends on, combining per-entity repositories with transaction support.
type Storage interface {
	AgentRepository
	HierarchyRepository
	BudgetRepository
	MessageRepository
	WorkspaceRepository
	WorkflowRepository

	BeginTransaction(ctx context.Context) (context.Context, error)
	CommitTransaction(ctx context.Context) error
	RollbackTransaction(ctx context.Context) error

	Ping(ctx context.Context) error
	Close() error
}

// QueryOptions provides generic pagination/sorting/filtering for listing
// endpoints built on top of the repositories above.
type QueryOptions struct {
	Limit     int
	Offset    int
	SortBy    string
	SortOrder string // "asc" or "desc"
	Filters   map[string]any
}

// Package kernel is the hierarchical agent orchestration runtime's public,
// programmatic API: spawning and terminating agents, tracking their nested
// budgets, routing inter-agent messages, running workflow graphs, and
// isolating each agent's working copy. There is no HTTP or gRPC surface —
// embed Kernel directly, the way mbflow embeds its own engine.
package kernel

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agentmesh/kernel/internal/config"
	"github.com/agentmesh/kernel/internal/domain"
	"github.com/agentmesh/kernel/internal/executor"
	"github.com/agentmesh/kernel/internal/infrastructure/storage"
	"github.com/agentmesh/kernel/internal/ledger"
	"github.com/agentmesh/kernel/internal/lifecycle"
	"github.com/agentmesh/kernel/internal/logging"
	"github.com/agentmesh/kernel/internal/observability"
	"github.com/agentmesh/kernel/internal/poller"
	"github.com/agentmesh/kernel/internal/queue"
	"github.com/agentmesh/kernel/internal/workflow"
	"github.com/agentmesh/kernel/internal/workspace"
)

// Re-exported so callers never need to import internal/domain directly.
type (
	Agent         = domain.Agent
	AgentStatus   = domain.AgentStatus
	BudgetAccount = domain.BudgetAccount
	Message       = domain.Message
	Workspace     = domain.Workspace
	WorkflowGraph = domain.WorkflowGraph
	WorkflowNode  = domain.WorkflowNode
)

// Kernel bundles every subsystem the orchestration runtime exposes. Each
// field is also usable standalone by packages that only need one concern.
type Kernel struct {
	Lifecycle *lifecycle.Lifecycle
	Ledger    *ledger.Ledger
	Queue     *queue.Queue
	Workflow  *workflow.Engine
	Workspace *workspace.Manager

	store      *storage.BunStore
	logger     *slog.Logger
	observers  *observability.Manager
	execPoller *poller.ExecutionPoller
	flowPoller *poller.WorkflowPoller
}

// New wires a Kernel from cfg: opens the database, builds every subsystem on
// top of it, and registers the log observer; other observers (metrics,
// websocket) are added through RegisterObserver. It does not start the
// background pollers — call Start for that.
func New(cfg *config.Config, exec executor.Executor) (*Kernel, error) {
	logger := logging.New(cfg.Logging)

	store := storage.NewBunStore(cfg.Database.DSN)
	if err := store.InitSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	observers := observability.NewManager()
	observers.Add(observability.NewLogObserver(logger))

	led := ledger.New(store, store, nil)
	lc := lifecycle.New(store, store, led, cfg.Budget.MaxDepth, nil)
	q := queue.New(store, nil)
	engine := workflow.NewEngine(store, lc, exec, observers, nil)
	wsDriver := workspace.NewInMemoryDriver()
	wsManager := workspace.New(store, wsDriver, nil)

	execPoller := poller.NewExecutionPoller(
		cfg.Schedule.ExecutionCron,
		store, store, lc, led, exec, engine,
		poller.DefaultRetryPolicy(),
		logger,
	)
	flowPoller := poller.NewWorkflowPoller(cfg.Schedule.WorkflowCron, store, engine, logger)

	return &Kernel{
		Lifecycle:  lc,
		Ledger:     led,
		Queue:      q,
		Workflow:   engine,
		Workspace:  wsManager,
		store:      store,
		logger:     logger,
		observers:  observers,
		execPoller: execPoller,
		flowPoller: flowPoller,
	}, nil
}

// RegisterObserver adds an additional Observer (e.g. Metrics or a
// websocket Hub) to the Kernel's event fan-out.
func (k *Kernel) RegisterObserver(o observability.Observer) {
	k.observers.Add(o)
}

// Start launches the execution and workflow pollers. It returns once both
// cron schedulers are running; the pollers themselves run until ctx is
// canceled or Stop is called.
func (k *Kernel) Start(ctx context.Context) error {
	if err := k.execPoller.Start(ctx); err != nil {
		return fmt.Errorf("start execution poller: %w", err)
	}
	if err := k.flowPoller.Start(ctx); err != nil {
		return fmt.Errorf("start workflow poller: %w", err)
	}
	return nil
}

// Stop halts both pollers and closes the underlying database connection.
func (k *Kernel) Stop() error {
	k.execPoller.Stop()
	k.flowPoller.Stop()
	return k.store.Close()
}

// Ping verifies the underlying database is reachable.
func (k *Kernel) Ping(ctx context.Context) error {
	return k.store.Ping(ctx)
}

// Logger returns the Kernel's root structured logger, for wiring additional
// observers (such as a websocket Hub) that need one of their own.
func (k *Kernel) Logger() *slog.Logger {
	return k.logger
}

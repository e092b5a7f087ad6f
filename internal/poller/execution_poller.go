// Package poller runs the kernel's background sweeps — execution and
// workflow continuation — on robfig/cron schedules rather than bare
// tickers.
package poller

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/agentmesh/kernel/internal/domain"
	kerrors "github.com/agentmesh/kernel/internal/domain/errors"
	"github.com/agentmesh/kernel/internal/executor"
	"github.com/agentmesh/kernel/internal/ledger"
	"github.com/agentmesh/kernel/internal/lifecycle"
	"github.com/agentmesh/kernel/internal/workflow"
)

// RetryPolicy bounds how many times the ExecutionPoller retries an
// ExecutorFailure before letting the agent fail, distinct from the
// internally-handled TransientStoreError retries the store layer performs
// on its own.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy returns a sensible default exponential backoff policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	if attempt <= 1 {
		return p.InitialDelay
	}
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	jitter := d * 0.1 * (2*rand.Float64() - 1)
	return time.Duration(d + jitter)
}

// ExecutionPoller sweeps pending agents, runs each through an Executor, and
// feeds the outcome back into the Ledger and Lifecycle. A node belonging to
// a workflow graph additionally notifies the Engine so dependent nodes can
// start.
type ExecutionPoller struct {
	mu        sync.Mutex
	cron      *cron.Cron
	schedule  string
	agents    domain.AgentRepository
	graphs    domain.WorkflowRepository
	lifecycle *lifecycle.Lifecycle
	ledger    *ledger.Ledger
	exec      executor.Executor
	engine    *workflow.Engine
	policy    RetryPolicy
	logger    *slog.Logger

	inFlight map[uuid.UUID]bool
	running  bool
}

// NewExecutionPoller constructs an ExecutionPoller.
func NewExecutionPoller(
	schedule string,
	agents domain.AgentRepository,
	graphs domain.WorkflowRepository,
	lc *lifecycle.Lifecycle,
	l *ledger.Ledger,
	exec executor.Executor,
	engine *workflow.Engine,
	policy RetryPolicy,
	logger *slog.Logger,
) *ExecutionPoller {
	return &ExecutionPoller{
		cron:      cron.New(cron.WithParser(cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
		schedule:  schedule,
		agents:    agents,
		graphs:    graphs,
		lifecycle: lc,
		ledger:    l,
		exec:      exec,
		engine:    engine,
		policy:    policy,
		logger:    logger,
		inFlight:  make(map[uuid.UUID]bool),
	}
}

// Start registers the sweep job and starts the underlying cron scheduler.
func (p *ExecutionPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}

	if _, err := p.cron.AddFunc(p.schedule, func() {
		p.sweep(ctx)
	}); err != nil {
		return err
	}
	p.cron.Start()
	p.running = true

	go func() {
		<-ctx.Done()
		p.Stop()
	}()
	return nil
}

func (p *ExecutionPoller) sweep(ctx context.Context) {
	candidates, err := p.pendingAgents(ctx)
	if err != nil {
		p.logger.Error("failed to list pending agents", slog.String("error", err.Error()))
		return
	}

	for _, agent := range candidates {
		p.mu.Lock()
		if p.inFlight[agent.ID] {
			p.mu.Unlock()
			continue
		}
		p.inFlight[agent.ID] = true
		p.mu.Unlock()

		go func(a *domain.Agent) {
			defer func() {
				p.mu.Lock()
				delete(p.inFlight, a.ID)
				p.mu.Unlock()
			}()
			p.runAgent(ctx, a)
		}(agent)
	}
}

func (p *ExecutionPoller) pendingAgents(ctx context.Context) ([]*domain.Agent, error) {
	return p.agents.FindByStatus(ctx, domain.AgentStatusPending)
}

func (p *ExecutionPoller) runAgent(ctx context.Context, agent *domain.Agent) {
	if err := p.lifecycle.Start(ctx, agent.ID); err != nil {
		p.logger.Error("failed to start agent", slog.String("agent_id", agent.ID.String()), slog.String("error", err.Error()))
		return
	}

	result, err := p.executeWithRetry(ctx, agent)
	node, nodeErr := p.graphs.FindNodeByAgentID(ctx, agent.ID)
	hasNode := nodeErr == nil && node != nil

	if result.Cost > 0 {
		if cErr := p.ledger.Consume(ctx, agent.ID, result.Cost); cErr != nil {
			p.logger.Error("failed to record consumption", slog.String("agent_id", agent.ID.String()), slog.String("error", cErr.Error()))
		}
	}

	if err != nil {
		p.logger.Error("agent execution failed", slog.String("agent_id", agent.ID.String()), slog.String("error", err.Error()))
		if hasNode {
			_ = p.engine.OnNodeFailed(ctx, node.GraphID, node.ID, err, 0)
			return
		}
		_ = p.lifecycle.Fail(ctx, agent.ID)
		return
	}

	if hasNode {
		_ = p.engine.OnNodeCompleted(ctx, node.GraphID, node.ID, result.Output, 0)
		return
	}
	_ = p.lifecycle.CompleteWithResult(ctx, agent.ID, result.Output)
}

func (p *ExecutionPoller) executeWithRetry(ctx context.Context, agent *domain.Agent) (executor.Result, error) {
	var lastErr error
	for attempt := 1; attempt <= p.policy.MaxAttempts+1; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return executor.Result{}, ctx.Err()
			case <-time.After(p.policy.delay(attempt - 1)):
			}
		}

		result, err := p.exec.Execute(ctx, executor.TaskDescriptor{AgentID: agent.ID, Task: agent.Task})
		if err == nil {
			return result, nil
		}
		if kerrors.KindOf(err) != kerrors.KindExecutorFailure {
			return executor.Result{}, err
		}
		lastErr = err
	}
	return executor.Result{}, lastErr
}

// Stop halts the scheduler, waiting for any in-flight sweep to finish.
func (p *ExecutionPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	stopCtx := p.cron.Stop()
	<-stopCtx.Done()
	p.running = false
}

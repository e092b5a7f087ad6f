package poller

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/agentmesh/kernel/internal/domain"
	"github.com/agentmesh/kernel/internal/workflow"
)

// WorkflowPoller sweeps every running WorkflowGraph on a schedule and asks
// the Engine to resume it. Normal progress is driven entirely by
// OnNodeCompleted/OnNodeFailed callbacks; this sweep only matters after a
// restart, when graphs can be left with ready nodes nobody has started yet.
type WorkflowPoller struct {
	mu       sync.Mutex
	cron     *cron.Cron
	schedule string
	graphs   domain.WorkflowRepository
	engine   *workflow.Engine
	logger   *slog.Logger
	running  bool
}

// NewWorkflowPoller constructs a WorkflowPoller.
func NewWorkflowPoller(schedule string, graphs domain.WorkflowRepository, engine *workflow.Engine, logger *slog.Logger) *WorkflowPoller {
	return &WorkflowPoller{
		cron:     cron.New(cron.WithParser(cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
		schedule: schedule,
		graphs:   graphs,
		engine:   engine,
		logger:   logger,
	}
}

// Start begins sweeping on the configured schedule until ctx is canceled.
func (p *WorkflowPoller) Start(ctx context.Context) error {
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

func (p *WorkflowPoller) sweep(ctx context.Context) {
	running, err := p.graphs.FindGraphsByStatus(ctx, domain.GraphStatusRunning)
	if err != nil {
		p.logger.Error("failed to list running graphs", slog.String("error", err.Error()))
		return
	}
	for _, graph := range running {
		if err := p.engine.Resume(ctx, graph.ID); err != nil {
			p.logger.Error("failed to resume graph",
				slog.String("graph_id", graph.ID.String()),
				slog.String("error", err.Error()))
		}
	}
}

// Stop halts the scheduler, waiting for any in-flight sweep to finish.
func (p *WorkflowPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	stopCtx := p.cron.Stop()
	<-stopCtx.Done()
	p.running = false
}

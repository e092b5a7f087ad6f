package executor

import (
	"context"

	"github.com/google/uuid"
)

// TaskDescriptor is the unit of work handed to an Executor: the agent
// performing the task, the task description itself, and any variables
// accumulated from upstream workflow nodes.
type TaskDescriptor struct {
	AgentID uuid.UUID
	Task    string
	Inputs  map[string]any
}

// Result is what an Executor hands back once a task finishes. Cost is the
// number of budget units the task consumed (for an LLM-backed executor,
// typically its total token usage); a zero Cost records no consumption
// against the agent's budget.
type Result struct {
	Output map[string]any
	Cost   int64
}

// Executor is the external collaborator boundary the kernel calls into to
// actually perform an agent's task. The kernel itself has no opinion on how
// a task is carried out — only on tracking its budget, lifecycle, and
// position in the hierarchy and workflow graph.
type Executor interface {
	Execute(ctx context.Context, task TaskDescriptor) (Result, error)
}

// StreamingExecutor is implemented by executors that can report incremental
// output as a task runs, in addition to the final Result an Execute call
// returns.
type StreamingExecutor interface {
	Executor
	ExecuteStream(ctx context.Context, task TaskDescriptor, onChunk func(chunk string)) (Result, error)
}

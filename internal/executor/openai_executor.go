package executor

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	kerrors "github.com/agentmesh/kernel/internal/domain/errors"
)

// OpenAIExecutor runs a TaskDescriptor as a single chat completion request,
// sending task.Task as the only user message; task.Inputs is not read. It is
// the kernel's reference Executor implementation.
type OpenAIExecutor struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAIExecutor constructs an executor bound to apiKey, running every
// task against model.
func NewOpenAIExecutor(apiKey, model string, maxTokens int, temperature float32) *OpenAIExecutor {
	return &OpenAIExecutor{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// Execute runs task as a single-turn chat completion and returns its content
// under the "output" key.
func (e *OpenAIExecutor) Execute(ctx context.Context, task TaskDescriptor) (Result, error) {
	req := openai.ChatCompletionRequest{
		Model:               e.model,
		MaxCompletionTokens: e.maxTokens,
		Temperature:         e.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: task.Task,
			},
		},
	}

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Result{}, kerrors.NewExecutorFailure(task.AgentID.String(), "openai chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, kerrors.NewExecutorFailure(task.AgentID.String(), "openai returned no choices", nil)
	}

	return Result{
		Output: map[string]any{
			"output": resp.Choices[0].Message.Content,
			"model":  resp.Model,
		},
		Cost: int64(resp.Usage.TotalTokens),
	}, nil
}

// ExecuteStream runs task as a streaming chat completion, invoking onChunk
// with each incremental delta before returning the assembled Result.
func (e *OpenAIExecutor) ExecuteStream(ctx context.Context, task TaskDescriptor, onChunk func(chunk string)) (Result, error) {
	req := openai.ChatCompletionRequest{
		Model:               e.model,
		MaxCompletionTokens: e.maxTokens,
		Temperature:         e.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: task.Task,
			},
		},
		Stream: true,
	}

	stream, err := e.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return Result{}, kerrors.NewExecutorFailure(task.AgentID.String(), "openai stream failed to start", err)
	}
	defer stream.Close()

	var full string
	for {
		chunk, err := stream.Recv()
		if err != nil {
			if err.Error() == "EOF" {
				break
			}
			return Result{}, kerrors.NewExecutorFailure(task.AgentID.String(), "openai stream interrupted", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		full += delta
		if onChunk != nil {
			onChunk(delta)
		}
	}

	return Result{Output: map[string]any{"output": full}}, nil
}

var _ StreamingExecutor = (*OpenAIExecutor)(nil)

// NoOpExecutor performs no work, returning an empty Output with zero Cost
// for any task.
type NoOpExecutor struct{}

// Execute returns an empty Result immediately.
func (NoOpExecutor) Execute(_ context.Context, task TaskDescriptor) (Result, error) {
	return Result{Output: map[string]any{}}, nil
}

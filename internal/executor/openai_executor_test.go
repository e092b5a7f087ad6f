package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/agentmesh/kernel/internal/domain/errors"
)

func newTestExecutor(serverURL string) *OpenAIExecutor {
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = serverURL + "/v1"
	return &OpenAIExecutor{
		client:      openai.NewClientWithConfig(cfg),
		model:       "gpt-4",
		maxTokens:   256,
		temperature: 0.2,
	}
}

func mockChatCompletionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		response := map[string]any{
			"id":      "chatcmpl-test-123",
			"object":  "chat.completion",
			"created": 1234567890,
			"model":   "gpt-4",
			"choices": []map[string]any{
				{
					"index":         0,
					"message":       map[string]any{"role": "assistant", "content": content},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]any{
				"prompt_tokens":     10,
				"completion_tokens": 20,
				"total_tokens":      30,
			},
		}
		_ = json.NewEncoder(w).Encode(response)
	}))
}

func TestOpenAIExecutor_Execute_ReturnsCompletionContent(t *testing.T) {
	server := mockChatCompletionServer(t, "the answer is 42")
	defer server.Close()
	exec := newTestExecutor(server.URL)

	result, err := exec.Execute(context.Background(), TaskDescriptor{AgentID: uuid.New(), Task: "what is the answer?"})

	require.NoError(t, err)
	assert.Equal(t, "the answer is 42", result.Output["output"])
	assert.Equal(t, int64(30), result.Cost)
}

func TestOpenAIExecutor_Execute_WrapsTransportErrorAsExecutorFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = fmt.Fprint(w, `{"error":{"message":"boom"}}`)
	}))
	defer server.Close()
	exec := newTestExecutor(server.URL)

	_, err := exec.Execute(context.Background(), TaskDescriptor{AgentID: uuid.New(), Task: "fail please"})

	require.Error(t, err)
	assert.Equal(t, kerrors.KindExecutorFailure, kerrors.KindOf(err))
}

func TestOpenAIExecutor_Execute_NoChoicesIsExecutorFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-empty",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4",
			"choices": []map[string]any{},
			"usage":   map[string]any{},
		})
	}))
	defer server.Close()
	exec := newTestExecutor(server.URL)

	_, err := exec.Execute(context.Background(), TaskDescriptor{AgentID: uuid.New(), Task: "anything"})

	require.Error(t, err)
	assert.Equal(t, kerrors.KindExecutorFailure, kerrors.KindOf(err))
}

func TestNoOpExecutor_Execute_ReturnsEmptyResult(t *testing.T) {
	result, err := NoOpExecutor{}.Execute(context.Background(), TaskDescriptor{})

	require.NoError(t, err)
	assert.Empty(t, result.Output)
}

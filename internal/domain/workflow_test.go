package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowNode_IsStart(t *testing.T) {
	now := time.Now()
	start := NewWorkflowNode(uuid.New(), uuid.New(), "fetch", "fetch data", nil, "", 0, now)
	dependent := NewWorkflowNode(uuid.New(), uuid.New(), "summarize", "summarize data", []uuid.UUID{start.ID}, "", 0, now)

	assert.True(t, start.IsStart())
	assert.False(t, dependent.IsStart())
}

func TestNewWorkflowGraph_StartsPendingAndUnvalidated(t *testing.T) {
	now := time.Now()
	graph := NewWorkflowGraph(uuid.New(), uuid.New(), "pipeline", now)

	assert.Equal(t, GraphStatusPending, graph.Status)
	assert.Equal(t, ValidationStatusInvalid, graph.Validation)
	assert.Nil(t, graph.CompletedAt)
}

func TestWorkflowGraph_Transition_StampsCompletedAtOnTerminal(t *testing.T) {
	now := time.Now()
	graph := NewWorkflowGraph(uuid.New(), uuid.New(), "pipeline", now)

	require.NoError(t, graph.Transition(GraphStatusRunning, now))
	assert.Nil(t, graph.CompletedAt)

	completedAt := now.Add(time.Hour)
	require.NoError(t, graph.Transition(GraphStatusCompleted, completedAt))

	require.NotNil(t, graph.CompletedAt)
	assert.Equal(t, completedAt, *graph.CompletedAt)
}

func TestWorkflowGraph_Transition_RejectsFromTerminal(t *testing.T) {
	now := time.Now()
	graph := NewWorkflowGraph(uuid.New(), uuid.New(), "pipeline", now)
	require.NoError(t, graph.Transition(GraphStatusFailed, now))

	err := graph.Transition(GraphStatusRunning, now)

	assert.Error(t, err)
}

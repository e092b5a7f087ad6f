package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAgent_IsRoot(t *testing.T) {
	now := time.Now()
	id := uuid.New()
	agent := NewAgent(id, "root", "do the thing", nil, now)

	assert.True(t, agent.IsRoot())
	assert.Equal(t, id, agent.RootID)
	assert.Equal(t, 0, agent.Depth)
	assert.Equal(t, AgentStatusPending, agent.Status)
	assert.Nil(t, agent.ParentID)
}

func TestNewChildAgent_InheritsRootAndIncrementsDepth(t *testing.T) {
	now := time.Now()
	root := NewAgent(uuid.New(), "root", "task", nil, now)
	root.Depth = 2

	child := NewChildAgent(uuid.New(), root, "child", "subtask", nil, now)

	assert.False(t, child.IsRoot())
	assert.Equal(t, root.RootID, child.RootID)
	assert.Equal(t, root.Depth+1, child.Depth)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, root.ID, *child.ParentID)
}

func TestAgent_Transition_Legal(t *testing.T) {
	now := time.Now()
	agent := NewAgent(uuid.New(), "root", "task", nil, now)

	later := now.Add(time.Minute)
	err := agent.Transition(AgentStatusRunning, later)

	require.NoError(t, err)
	assert.Equal(t, AgentStatusRunning, agent.Status)
	assert.Equal(t, later, agent.UpdatedAt)
	assert.Nil(t, agent.EndedAt)
}

func TestAgent_Transition_StampsEndedAtOnTerminal(t *testing.T) {
	now := time.Now()
	agent := NewAgent(uuid.New(), "root", "task", nil, now)
	require.NoError(t, agent.Transition(AgentStatusRunning, now))

	completedAt := now.Add(time.Hour)
	require.NoError(t, agent.Transition(AgentStatusCompleted, completedAt))

	require.NotNil(t, agent.EndedAt)
	assert.Equal(t, completedAt, *agent.EndedAt)
}

func TestAgent_Transition_Illegal(t *testing.T) {
	now := time.Now()
	agent := NewAgent(uuid.New(), "root", "task", nil, now)

	err := agent.Transition(AgentStatusCompleted, now)

	require.Error(t, err)
	assert.Equal(t, AgentStatusPending, agent.Status)
}

func TestAgent_Transition_NoOutgoingFromTerminal(t *testing.T) {
	now := time.Now()
	agent := NewAgent(uuid.New(), "root", "task", nil, now)
	require.NoError(t, agent.Transition(AgentStatusRunning, now))
	require.NoError(t, agent.Transition(AgentStatusFailed, now))

	err := agent.Transition(AgentStatusTerminated, now)

	assert.Error(t, err)
}

package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewWorkspace_StartsActive(t *testing.T) {
	now := time.Now()
	ws := NewWorkspace(uuid.New(), uuid.New(), "/work/agent-1", "agent-1", now)

	assert.Equal(t, WorkspaceStatusActive, ws.Status)
	assert.Equal(t, now, ws.UpdatedAt)
}

func TestWorkspace_MarkMerged(t *testing.T) {
	now := time.Now()
	ws := NewWorkspace(uuid.New(), uuid.New(), "/work/agent-1", "agent-1", now)

	later := now.Add(time.Minute)
	ws.MarkMerged(later)

	assert.Equal(t, WorkspaceStatusMerged, ws.Status)
	assert.Equal(t, later, ws.UpdatedAt)
}

func TestWorkspace_EligibleForCleanup(t *testing.T) {
	now := time.Now()
	mergedMaxAge := time.Hour
	discardedMaxAge := 10 * time.Minute

	tests := []struct {
		name      string
		status    WorkspaceStatus
		updatedAt time.Time
		want      bool
	}{
		{"active never eligible", WorkspaceStatusActive, now.Add(-24 * time.Hour), false},
		{"merged too young", WorkspaceStatusMerged, now.Add(-30 * time.Minute), false},
		{"merged old enough", WorkspaceStatusMerged, now.Add(-2 * time.Hour), true},
		{"discarded too young", WorkspaceStatusDiscarded, now.Add(-time.Minute), false},
		{"discarded old enough", WorkspaceStatusDiscarded, now.Add(-time.Hour), true},
		{"deleted never eligible again", WorkspaceStatusDeleted, now.Add(-24 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := &Workspace{Status: tt.status, UpdatedAt: tt.updatedAt}
			assert.Equal(t, tt.want, ws.EligibleForCleanup(now, mergedMaxAge, discardedMaxAge))
		})
	}
}

package workspace

import (
	"context"
	"fmt"
	"sync"
)

// memoryWorktree tracks the fake state of one working copy kept entirely in
// memory, used by InMemoryDriver.
type memoryWorktree struct {
	branch  string
	changed bool
}

// InMemoryDriver is a WorktreeDriver with no real VCS behind it: Create
// allocates a synthetic path, Diff/Changed report whatever was set via
// MarkChanged, and nothing ever touches a filesystem. It exists so the
// workspace Manager and its callers can be exercised without a real git
// driver, which is outside the kernel's scope.
type InMemoryDriver struct {
	mu        sync.Mutex
	worktrees map[string]*memoryWorktree
	seq       int
}

// NewInMemoryDriver constructs an empty InMemoryDriver.
func NewInMemoryDriver() *InMemoryDriver {
	return &InMemoryDriver{worktrees: make(map[string]*memoryWorktree)}
}

// Create allocates a synthetic path for agentID and records it as unchanged.
func (d *InMemoryDriver) Create(_ context.Context, agentID, branch string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	path := fmt.Sprintf("/workspaces/%s/%d", agentID, d.seq)
	d.worktrees[path] = &memoryWorktree{branch: branch}
	return path, nil
}

// Delete forgets path.
func (d *InMemoryDriver) Delete(_ context.Context, path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.worktrees, path)
	return nil
}

// Diff returns a zero-valued Diff unless MarkChanged was called for path.
func (d *InMemoryDriver) Diff(_ context.Context, path string) (Diff, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	wt, ok := d.worktrees[path]
	if !ok {
		return Diff{}, fmt.Errorf("no such worktree: %s", path)
	}
	if !wt.changed {
		return Diff{}, nil
	}
	return Diff{FilesChanged: 1, Insertions: 1, Patch: "synthetic diff"}, nil
}

// Changed reports whether MarkChanged was called for path.
func (d *InMemoryDriver) Changed(_ context.Context, path string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	wt, ok := d.worktrees[path]
	if !ok {
		return false, fmt.Errorf("no such worktree: %s", path)
	}
	return wt.changed, nil
}

// ListAll returns every path the driver currently tracks.
func (d *InMemoryDriver) ListAll(_ context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	paths := make([]string, 0, len(d.worktrees))
	for p := range d.worktrees {
		paths = append(paths, p)
	}
	return paths, nil
}

// MarkChanged flags path as having uncommitted changes, for tests that need
// Diff/Changed to report activity.
func (d *InMemoryDriver) MarkChanged(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if wt, ok := d.worktrees[path]; ok {
		wt.changed = true
	}
}

var _ WorktreeDriver = (*InMemoryDriver)(nil)

package workspace

import "context"

// Diff summarizes the changes a workspace's working copy holds relative to
// the branch it was created from.
type Diff struct {
	FilesChanged int
	Insertions   int
	Deletions    int
	Patch        string
}

// WorktreeDriver isolates the VCS mechanics of giving an agent its own
// working copy. The kernel never talks to a version-control system
// directly — only through this boundary — so the concrete driver (a git
// worktree, a container volume snapshot, anything else) is an external
// collaborator outside the kernel's scope.
type WorktreeDriver interface {
	// Create provisions a new isolated working copy on a fresh branch and
	// returns its filesystem path.
	Create(ctx context.Context, agentID, branch string) (path string, err error)
	// Delete removes the working copy at path, discarding any uncommitted
	// changes.
	Delete(ctx context.Context, path string) error
	// Diff reports the changes currently held in the working copy at path.
	Diff(ctx context.Context, path string) (Diff, error)
	// Changed reports whether the working copy at path has any uncommitted
	// changes at all, cheaper than computing a full Diff.
	Changed(ctx context.Context, path string) (bool, error)
	// ListAll returns the paths of every working copy the driver currently
	// manages, used to reconcile the Workspace table against driver state.
	ListAll(ctx context.Context) ([]string, error)
}

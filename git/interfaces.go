package git

import "context"

// Provider defines the version-control operations the session lifecycle
// depends on. The CLI-backed implementation lives in this package; tests
// substitute fakes.
type Provider interface {
	// Repository information
	IsRepo(ctx context.Context, dir string) bool
	Root(ctx context.Context, dir string) (string, error)
	RepoName(ctx context.Context, dir string) (string, error)

	// Worktree operations
	CreateWorktree(ctx context.Context, repoPath, worktreePath, branch string, createBranch bool, baseRef string) error
	RemoveWorktree(ctx context.Context, repoPath, worktreePath string, force bool) error
	ListWorktrees(ctx context.Context, repoPath string) ([]WorktreeInfo, error)
	PruneWorktrees(ctx context.Context, repoPath string) error

	// Branch operations
	BranchExists(ctx context.Context, repoPath, branch string) bool
	DeleteBranch(ctx context.Context, repoPath, branch string) error

	// Fetch pulls refs from a remote; refspecs may name pull-request heads.
	Fetch(ctx context.Context, repoPath, remote string, refspecs ...string) error
}

package git

import (
	"context"
	"strings"

	"github.com/partools/par/command"
	"github.com/partools/par/errors"
)

// WorktreeInfo contains information about a git worktree
type WorktreeInfo struct {
	Path   string
	Branch string
	Commit string
	Bare   bool
}

// CLIGit drives the git binary through validated commands.
type CLIGit struct {
	cmdBuilder *command.SafeBuilder
}

// Ensure it implements the interface
var _ Provider = (*CLIGit)(nil)

// NewCLIGit creates a CLI-backed git provider
func NewCLIGit() *CLIGit {
	return &CLIGit{
		cmdBuilder: command.NewSafeBuilder(),
	}
}

// run executes git with the given args in dir and returns combined output.
// A non-zero exit comes back as an ExternalTool error carrying the output.
func (g *CLIGit) run(ctx context.Context, dir, action string, args ...string) (string, error) {
	cmd, err := g.cmdBuilder.Build(ctx, "git", args...)
	if err != nil {
		return "", errors.ExternalTool("git", action, err)
	}

	execCmd := cmd.Exec()
	execCmd.Dir = dir

	output, err := execCmd.CombinedOutput()
	if err != nil {
		return string(output), errors.ExternalTool("git", action, err).
			WithDetail("output", strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// CreateWorktree materializes a worktree at worktreePath. With createBranch a
// new branch is created, optionally starting from baseRef (e.g. FETCH_HEAD or
// a remote-tracking ref); otherwise the existing branch is attached.
func (g *CLIGit) CreateWorktree(ctx context.Context, repoPath, worktreePath, branch string, createBranch bool, baseRef string) error {
	if err := g.cmdBuilder.Validate("gitRef", branch); err != nil {
		return errors.Validation(err.Error())
	}
	if baseRef != "" {
		if err := g.cmdBuilder.Validate("gitRef", baseRef); err != nil {
			return errors.Validation(err.Error())
		}
	}

	args := []string{"worktree", "add"}
	if createBranch {
		args = append(args, "-b", branch)
	}
	args = append(args, worktreePath)
	switch {
	case createBranch && baseRef != "":
		args = append(args, baseRef)
	case !createBranch:
		args = append(args, branch)
	}

	output, err := g.run(ctx, repoPath, "create worktree", args...)
	if err != nil {
		if strings.Contains(output, "already exists") {
			return errors.WorktreeConflict(worktreePath)
		}
		return err
	}
	return nil
}

// RemoveWorktree removes a worktree. A worktree git no longer knows about
// surfaces as an AlreadyGone error so teardown can treat it as success.
func (g *CLIGit) RemoveWorktree(ctx context.Context, repoPath, worktreePath string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, worktreePath)

	output, err := g.run(ctx, repoPath, "remove worktree", args...)
	if err != nil {
		if isGoneOutput(output) {
			return errors.AlreadyGone("git", "worktree "+worktreePath)
		}
		return err
	}
	return nil
}

// ListWorktrees returns all worktrees registered for the repository.
func (g *CLIGit) ListWorktrees(ctx context.Context, repoPath string) ([]WorktreeInfo, error) {
	output, err := g.run(ctx, repoPath, "list worktrees", "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parseWorktreeList(output), nil
}

// PruneWorktrees drops stale worktree registrations whose directories are
// gone, e.g. after a manual rm -rf.
func (g *CLIGit) PruneWorktrees(ctx context.Context, repoPath string) error {
	_, err := g.run(ctx, repoPath, "prune worktrees", "worktree", "prune")
	return err
}

// BranchExists reports whether a local branch exists.
func (g *CLIGit) BranchExists(ctx context.Context, repoPath, branch string) bool {
	if err := g.cmdBuilder.Validate("gitRef", branch); err != nil {
		return false
	}
	_, err := g.run(ctx, repoPath, "check branch", "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

// DeleteBranch force-deletes a local branch. A missing branch surfaces as
// AlreadyGone.
func (g *CLIGit) DeleteBranch(ctx context.Context, repoPath, branch string) error {
	if err := g.cmdBuilder.Validate("gitRef", branch); err != nil {
		return errors.Validation(err.Error())
	}

	output, err := g.run(ctx, repoPath, "delete branch", "branch", "-D", branch)
	if err != nil {
		if strings.Contains(output, "not found") {
			return errors.AlreadyGone("git", "branch "+branch)
		}
		return err
	}
	return nil
}

// Fetch pulls refs from a remote. Pull-request heads are fetched by passing
// their refspec (e.g. pull/42/head) and resolving FETCH_HEAD afterwards.
func (g *CLIGit) Fetch(ctx context.Context, repoPath, remote string, refspecs ...string) error {
	if err := g.cmdBuilder.Validate("gitRef", remote); err != nil {
		return errors.Validation(err.Error())
	}
	for _, spec := range refspecs {
		if err := g.cmdBuilder.Validate("gitRef", spec); err != nil {
			return errors.Validation(err.Error())
		}
	}

	args := append([]string{"fetch", remote}, refspecs...)
	_, err := g.run(ctx, repoPath, "fetch", args...)
	return err
}

// isGoneOutput matches git's wording for resources that no longer exist.
func isGoneOutput(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "is not a working tree") ||
		strings.Contains(lower, "no such file or directory") ||
		strings.Contains(lower, "does not exist")
}

// parseWorktreeList parses git worktree list --porcelain output
func parseWorktreeList(output string) []WorktreeInfo {
	var worktrees []WorktreeInfo

	var current WorktreeInfo
	for _, line := range strings.Split(output, "\n") {
		if line == "" {
			if current.Path != "" {
				worktrees = append(worktrees, current)
				current = WorktreeInfo{}
			}
			continue
		}

		parts := strings.SplitN(line, " ", 2)
		switch parts[0] {
		case "worktree":
			if len(parts) == 2 {
				current.Path = parts[1]
			}
		case "HEAD":
			if len(parts) == 2 {
				current.Commit = parts[1]
			}
		case "branch":
			if len(parts) == 2 {
				current.Branch = strings.TrimPrefix(parts[1], "refs/heads/")
			}
		case "bare":
			current.Bare = true
		}
	}

	if current.Path != "" {
		worktrees = append(worktrees, current)
	}

	return worktrees
}

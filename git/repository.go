package git

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/partools/par/errors"
)

// IsRepo checks if the given directory is inside a git repository
func (g *CLIGit) IsRepo(ctx context.Context, dir string) bool {
	_, err := g.run(ctx, dir, "check repository", "rev-parse", "--git-dir")
	return err == nil
}

// Root returns the top-level directory of the repository containing dir.
// For a worktree this is the worktree's own root, not the main checkout.
func (g *CLIGit) Root(ctx context.Context, dir string) (string, error) {
	output, err := g.run(ctx, dir, "find repository root", "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// RepoName returns a human-readable repository name, preferring the origin
// remote and falling back to the root directory's basename.
func (g *CLIGit) RepoName(ctx context.Context, dir string) (string, error) {
	root, err := g.Root(ctx, dir)
	if err != nil {
		return "", err
	}

	output, err := g.run(ctx, root, "read remote", "config", "--get", "remote.origin.url")
	if err != nil {
		if errors.GetCode(err) == errors.ErrCodeExternalTool {
			return filepath.Base(root), nil
		}
		return "", err
	}

	if name := extractRepoName(strings.TrimSpace(output)); name != "" {
		return name, nil
	}
	return filepath.Base(root), nil
}

// extractRepoName extracts the repository name from a remote URL
func extractRepoName(url string) string {
	url = strings.TrimSuffix(url, ".git")
	url = strings.TrimSuffix(url, "/")

	// SSH URLs: git@host:user/repo
	if _, after, ok := strings.Cut(url, ":"); ok && strings.HasPrefix(url, "git@") {
		url = after
	}

	parts := strings.Split(url, "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

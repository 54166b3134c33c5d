package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partools/par/errors"
	"github.com/partools/par/testutil"
)

func TestParseWorktreeList(t *testing.T) {
	output := `worktree /path/to/main
HEAD abcdef1234567890
branch refs/heads/main

worktree /path/to/feature
HEAD 1234567890abcdef
branch refs/heads/feature

`

	worktrees := parseWorktreeList(output)

	require.Len(t, worktrees, 2)
	assert.Equal(t, "/path/to/main", worktrees[0].Path)
	assert.Equal(t, "main", worktrees[0].Branch)
	assert.Equal(t, "abcdef1234567890", worktrees[0].Commit)

	assert.Equal(t, "/path/to/feature", worktrees[1].Path)
	assert.Equal(t, "feature", worktrees[1].Branch)
}

func TestParseWorktreeList_Bare(t *testing.T) {
	output := `worktree /path/to/bare
bare

`

	worktrees := parseWorktreeList(output)

	require.Len(t, worktrees, 1)
	assert.True(t, worktrees[0].Bare)
	assert.Empty(t, worktrees[0].Branch)
}

func TestCLIGit_CreateAndListWorktrees(t *testing.T) {
	repo := t.TempDir()
	testutil.InitGitRepo(t, repo)

	g := NewCLIGit()
	ctx := context.Background()

	worktreePath := filepath.Join(t.TempDir(), "feat-a")
	require.NoError(t, g.CreateWorktree(ctx, repo, worktreePath, "feat-a", true, ""))

	worktrees, err := g.ListWorktrees(ctx, repo)
	require.NoError(t, err)
	assert.Len(t, worktrees, 2)

	var found bool
	for _, wt := range worktrees {
		if wt.Branch == "feat-a" {
			found = true
		}
	}
	assert.True(t, found, "created worktree should be listed")

	assert.True(t, g.BranchExists(ctx, repo, "feat-a"))
}

func TestCLIGit_CreateWorktreeConflict(t *testing.T) {
	repo := t.TempDir()
	testutil.InitGitRepo(t, repo)

	g := NewCLIGit()
	ctx := context.Background()

	worktreePath := filepath.Join(t.TempDir(), "feat-a")
	require.NoError(t, g.CreateWorktree(ctx, repo, worktreePath, "feat-a", true, ""))

	err := g.CreateWorktree(ctx, repo, worktreePath, "feat-a", true, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConflict))
}

func TestCLIGit_AttachExistingBranch(t *testing.T) {
	repo := t.TempDir()
	testutil.InitGitRepo(t, repo)
	testutil.CreateBranch(t, repo, "develop")
	testutil.RunGitCommand(t, repo, "checkout", "main")

	g := NewCLIGit()
	ctx := context.Background()

	worktreePath := filepath.Join(t.TempDir(), "develop")
	require.NoError(t, g.CreateWorktree(ctx, repo, worktreePath, "develop", false, ""))

	_, err := os.Stat(filepath.Join(worktreePath, "README.md"))
	assert.NoError(t, err)
}

func TestCLIGit_RemoveWorktree(t *testing.T) {
	repo := t.TempDir()
	testutil.InitGitRepo(t, repo)

	g := NewCLIGit()
	ctx := context.Background()

	worktreePath := filepath.Join(t.TempDir(), "feat-a")
	require.NoError(t, g.CreateWorktree(ctx, repo, worktreePath, "feat-a", true, ""))
	require.NoError(t, g.RemoveWorktree(ctx, repo, worktreePath, true))

	_, err := os.Stat(worktreePath)
	assert.True(t, os.IsNotExist(err))

	// Removing again reports the resource as already gone, not a failure.
	err = g.RemoveWorktree(ctx, repo, worktreePath, true)
	require.Error(t, err)
	assert.True(t, errors.IsRecoverable(err), "second removal should be recoverable, got %v", err)
}

func TestCLIGit_DeleteBranch(t *testing.T) {
	repo := t.TempDir()
	testutil.InitGitRepo(t, repo)
	testutil.CreateBranch(t, repo, "feat-a")
	testutil.RunGitCommand(t, repo, "checkout", "main")

	g := NewCLIGit()
	ctx := context.Background()

	require.True(t, g.BranchExists(ctx, repo, "feat-a"))
	require.NoError(t, g.DeleteBranch(ctx, repo, "feat-a"))
	assert.False(t, g.BranchExists(ctx, repo, "feat-a"))

	err := g.DeleteBranch(ctx, repo, "feat-a")
	require.Error(t, err)
	assert.True(t, errors.IsRecoverable(err), "deleting a missing branch should be recoverable, got %v", err)
}

func TestCLIGit_RootAndRepoName(t *testing.T) {
	repo := t.TempDir()
	testutil.InitGitRepo(t, repo)

	g := NewCLIGit()
	ctx := context.Background()

	assert.True(t, g.IsRepo(ctx, repo))
	assert.False(t, g.IsRepo(ctx, t.TempDir()))

	root, err := g.Root(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(repo), filepath.Base(root))

	// No origin remote configured: falls back to the directory name.
	name, err := g.RepoName(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(root), name)
}

func TestExtractRepoName(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"https", "https://github.com/acme/widget.git", "widget"},
		{"https no suffix", "https://github.com/acme/widget", "widget"},
		{"ssh", "git@github.com:acme/widget.git", "widget"},
		{"trailing slash", "https://example.com/acme/widget/", "widget"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractRepoName(tt.url))
		})
	}
}

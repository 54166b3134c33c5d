package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/partools/par/command"
	"github.com/partools/par/errors"
	"github.com/partools/par/naming"
)

// CreateWorkspace creates one worktree per member repository, all on a
// branch named after the label, plus a single multiplexer session rooted at
// the shared label directory. With no explicit repoNames, members are
// auto-detected as the immediate subdirectories of rootPath carrying a .git
// marker. All preconditions across every member are checked before any
// worktree is created; a mid-batch failure aborts without persisting a
// record.
func (m *Manager) CreateWorkspace(ctx context.Context, label, rootPath string, repoNames []string) (*Record, error) {
	if err := command.ValidateLabel(label); err != nil {
		return nil, errors.Validation(err.Error())
	}

	root, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, errors.Validation(fmt.Sprintf("cannot resolve workspace root '%s'", rootPath))
	}

	if len(repoNames) == 0 {
		repoNames, err = detectRepos(root)
		if err != nil {
			return nil, err
		}
	} else {
		for _, name := range repoNames {
			repoPath := filepath.Join(root, name)
			if info, err := os.Stat(repoPath); err != nil || !info.IsDir() {
				return nil, errors.Validation(fmt.Sprintf("repository '%s' not found under %s", name, root))
			}
			if !m.git.IsRepo(ctx, repoPath) {
				return nil, errors.Validation(fmt.Sprintf("'%s' is not a git repository", repoPath))
			}
		}
	}
	sort.Strings(repoNames)

	taken, err := m.labelTaken(label)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, errors.DuplicateLabel(label)
	}

	// Every member's target path must be vacant before the first worktree
	// is created; a conflict discovered mid-batch would strand the rest.
	for _, name := range repoNames {
		worktreePath := naming.WorkspaceWorktreePath(root, label, name)
		if _, err := os.Stat(worktreePath); err == nil {
			return nil, errors.WorktreeConflict(worktreePath)
		}
	}

	sessionName := naming.WorkspaceSessionName(root, label)
	live, err := m.mux.SessionExists(ctx, sessionName)
	if err != nil {
		return nil, err
	}
	if live {
		return nil, errors.SessionConflict(sessionName)
	}

	labelRoot := naming.WorkspaceLabelRoot(root, label)
	rec := &Record{
		Label:          label,
		Kind:           KindWorkspace,
		RepositoryPath: root,
		RepositoryName: filepath.Base(root),
		WorktreePath:   labelRoot,
		SessionName:    sessionName,
		BranchName:     label,
		CreatedAt:      time.Now().UTC(),
		Status:         StatusCreating,
	}

	if err := os.MkdirAll(labelRoot, 0755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "create workspace directory")
	}

	repos := make([]RepoEntry, 0, len(repoNames))
	for _, name := range repoNames {
		repoPath := filepath.Join(root, name)
		worktreePath := naming.WorkspaceWorktreePath(root, label, name)

		createBranch := !m.git.BranchExists(ctx, repoPath, label)
		if err := m.git.CreateWorktree(ctx, repoPath, worktreePath, label, createBranch, ""); err != nil {
			return nil, err
		}

		repos = append(repos, RepoEntry{
			RepoName:     name,
			RepoPath:     repoPath,
			WorktreePath: worktreePath,
			BranchName:   label,
		})
	}

	if err := m.mux.NewSession(ctx, sessionName, labelRoot); err != nil {
		return nil, err
	}

	rec.Repos = repos
	rec.Status = StatusInitializing
	if err := m.persist(m.workspaces, root, rec); err != nil {
		return nil, err
	}

	m.finishInit(ctx, m.workspaces, root, rec)
	return rec, nil
}

// detectRepos finds immediate subdirectories carrying a .git marker. The
// marker may be a directory (normal clone) or a file (worktree/submodule).
func detectRepos(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Validation(fmt.Sprintf("cannot read workspace root '%s'", root))
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, entry.Name(), ".git")); err == nil {
			names = append(names, entry.Name())
		}
	}

	if len(names) == 0 {
		return nil, errors.Validation(fmt.Sprintf("no git repositories found under '%s'", root))
	}
	return names, nil
}

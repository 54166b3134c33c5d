package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partools/par/errors"
	"github.com/partools/par/git"
	"github.com/partools/par/naming"
	"github.com/partools/par/state"
	"github.com/partools/par/tmux"
)

// fakeGit implements git.Provider in memory, creating and removing real
// directories for worktrees so path checks behave like the real tool.
type fakeGit struct {
	repos     map[string]bool
	branches  map[string]map[string]bool
	worktrees map[string]string // worktree path -> repo root

	fetches          [][]string
	lastCreateBranch bool
	lastBaseRef      string
	createErr        error
	fetchErr         error
}

var _ git.Provider = (*fakeGit)(nil)

func newFakeGit() *fakeGit {
	return &fakeGit{
		repos:     make(map[string]bool),
		branches:  make(map[string]map[string]bool),
		worktrees: make(map[string]string),
	}
}

func (f *fakeGit) addRepo(root string) {
	f.repos[root] = true
	if f.branches[root] == nil {
		f.branches[root] = map[string]bool{"main": true}
	}
}

func (f *fakeGit) IsRepo(ctx context.Context, dir string) bool {
	return f.repos[dir]
}

func (f *fakeGit) Root(ctx context.Context, dir string) (string, error) {
	if !f.repos[dir] {
		return "", errors.ExternalTool("git", "find repository root", os.ErrNotExist)
	}
	return dir, nil
}

func (f *fakeGit) RepoName(ctx context.Context, dir string) (string, error) {
	return filepath.Base(dir), nil
}

func (f *fakeGit) CreateWorktree(ctx context.Context, repoPath, worktreePath, branch string, createBranch bool, baseRef string) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, exists := f.worktrees[worktreePath]; exists {
		return errors.WorktreeConflict(worktreePath)
	}

	f.lastCreateBranch = createBranch
	f.lastBaseRef = baseRef
	if createBranch {
		f.branches[repoPath][branch] = true
	}
	f.worktrees[worktreePath] = repoPath
	return os.MkdirAll(worktreePath, 0755)
}

func (f *fakeGit) RemoveWorktree(ctx context.Context, repoPath, worktreePath string, force bool) error {
	if _, exists := f.worktrees[worktreePath]; !exists {
		return errors.AlreadyGone("git", "worktree "+worktreePath)
	}
	delete(f.worktrees, worktreePath)
	return os.RemoveAll(worktreePath)
}

func (f *fakeGit) ListWorktrees(ctx context.Context, repoPath string) ([]git.WorktreeInfo, error) {
	var out []git.WorktreeInfo
	for path, root := range f.worktrees {
		if root == repoPath {
			out = append(out, git.WorktreeInfo{Path: path})
		}
	}
	return out, nil
}

func (f *fakeGit) PruneWorktrees(ctx context.Context, repoPath string) error {
	return nil
}

func (f *fakeGit) BranchExists(ctx context.Context, repoPath, branch string) bool {
	return f.branches[repoPath][branch]
}

func (f *fakeGit) DeleteBranch(ctx context.Context, repoPath, branch string) error {
	if !f.branches[repoPath][branch] {
		return errors.AlreadyGone("git", "branch "+branch)
	}
	delete(f.branches[repoPath], branch)
	return nil
}

func (f *fakeGit) Fetch(ctx context.Context, repoPath, remote string, refspecs ...string) error {
	if f.fetchErr != nil {
		return f.fetchErr
	}
	f.fetches = append(f.fetches, append([]string{remote}, refspecs...))
	return nil
}

// fakeMux implements tmux.Multiplexer in memory.
type fakeMux struct {
	sessions   map[string]string // name -> working dir
	attached   []string
	sent       map[string][]string
	newErr     error
	serverDown bool
}

var _ tmux.Multiplexer = (*fakeMux)(nil)

func newFakeMux() *fakeMux {
	return &fakeMux{
		sessions: make(map[string]string),
		sent:     make(map[string][]string),
	}
}

func (f *fakeMux) ServerRunning(ctx context.Context) bool { return !f.serverDown }
func (f *fakeMux) InsideTmux() bool                       { return false }

func (f *fakeMux) CurrentSession(ctx context.Context) (string, error) { return "", nil }

func (f *fakeMux) SessionExists(ctx context.Context, name string) (bool, error) {
	_, ok := f.sessions[name]
	return ok, nil
}

func (f *fakeMux) NewSession(ctx context.Context, name, workingDir string) error {
	if f.newErr != nil {
		return f.newErr
	}
	if _, ok := f.sessions[name]; ok {
		return errors.SessionConflict(name)
	}
	f.sessions[name] = workingDir
	return nil
}

func (f *fakeMux) KillSession(ctx context.Context, name string) error {
	if _, ok := f.sessions[name]; !ok {
		return errors.AlreadyGone("tmux", "session "+name)
	}
	delete(f.sessions, name)
	return nil
}

func (f *fakeMux) AttachOrSwitch(ctx context.Context, name string) error {
	f.attached = append(f.attached, name)
	return nil
}

func (f *fakeMux) SendKeys(ctx context.Context, target, text string) error {
	f.sent[target] = append(f.sent[target], text)
	return nil
}

func (f *fakeMux) ListWindows(ctx context.Context, session string) ([]tmux.Window, error) {
	return nil, nil
}

func (f *fakeMux) NewWindow(ctx context.Context, opts tmux.NewWindowOptions) error { return nil }
func (f *fakeMux) KillWindow(ctx context.Context, target string) error             { return nil }
func (f *fakeMux) SelectWindow(ctx context.Context, target string) error           { return nil }
func (f *fakeMux) RenameWindow(ctx context.Context, target, name string) error     { return nil }

type testEnv struct {
	manager *Manager
	git     *fakeGit
	mux     *fakeMux
	repo    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	home := t.TempDir()
	t.Setenv("PAR_HOME", home)

	repo := filepath.Join(t.TempDir(), "myrepo")
	require.NoError(t, os.MkdirAll(repo, 0755))

	g := newFakeGit()
	g.addRepo(repo)
	mux := newFakeMux()

	dataDir := filepath.Join(home, "data", "par")
	sessions := state.NewStore(filepath.Join(dataDir, state.SessionsFile), state.DefaultTTL, nil)
	workspaces := state.NewStore(filepath.Join(dataDir, state.WorkspacesFile), state.DefaultTTL, nil)
	history := NewHistory(filepath.Join(dataDir, "history.json"))

	return &testEnv{
		manager: NewManager(sessions, workspaces, g, mux, history, nil),
		git:     g,
		mux:     mux,
		repo:    repo,
	}
}

func TestCreateSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec, err := env.manager.CreateSession(ctx, "feat-a", env.repo, CreateOptions{})
	require.NoError(t, err)

	assert.Equal(t, StatusReady, rec.Status)
	assert.Equal(t, KindSession, rec.Kind)
	assert.Equal(t, "feat-a", rec.BranchName)
	assert.Equal(t, naming.WorktreePath(env.repo, "feat-a"), rec.WorktreePath)
	assert.Equal(t, naming.SessionName(env.repo, "feat-a"), rec.SessionName)

	// Session rooted at the worktree
	assert.Equal(t, rec.WorktreePath, env.mux.sessions[rec.SessionName])
	assert.True(t, env.git.branches[env.repo]["feat-a"])

	// Record persisted under the repository scope
	listed, err := env.manager.List(ctx, env.repo, false)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "feat-a", listed[0].Label)
	assert.True(t, listed[0].Alive)
}

func TestCreateSession_DuplicateLabelAcrossRepos(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	otherRepo := filepath.Join(t.TempDir(), "other")
	require.NoError(t, os.MkdirAll(otherRepo, 0755))
	env.git.addRepo(otherRepo)

	_, err := env.manager.CreateSession(ctx, "feat-a", env.repo, CreateOptions{})
	require.NoError(t, err)

	_, err = env.manager.CreateSession(ctx, "feat-a", otherRepo, CreateOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeDuplicateLabel))

	// The failed attempt had no side effects in the second repository.
	assert.False(t, env.git.branches[otherRepo]["feat-a"])
	assert.Len(t, env.mux.sessions, 1)
}

func TestCreateSession_InvalidLabel(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.manager.CreateSession(context.Background(), "bad label!", env.repo, CreateOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))
	assert.Empty(t, env.mux.sessions)
	assert.Empty(t, env.git.worktrees)
}

func TestCreateSession_WorktreeConflict(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, os.MkdirAll(naming.WorktreePath(env.repo, "feat-a"), 0755))

	_, err := env.manager.CreateSession(context.Background(), "feat-a", env.repo, CreateOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConflict))
	assert.Empty(t, env.mux.sessions)
}

func TestCreateSession_SessionConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.mux.sessions[naming.SessionName(env.repo, "feat-a")] = "/elsewhere"

	_, err := env.manager.CreateSession(ctx, "feat-a", env.repo, CreateOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConflict))
	assert.Empty(t, env.git.worktrees)
}

func TestCreateSession_NoRecordWhenSessionCreationFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.mux.newErr = errors.ExternalTool("tmux", "new-session", os.ErrInvalid)

	_, err := env.manager.CreateSession(ctx, "feat-a", env.repo, CreateOptions{})
	require.Error(t, err)

	// The worktree stays behind (documented recovery gap) but no record
	// may exist for it.
	assert.Contains(t, env.git.worktrees, naming.WorktreePath(env.repo, "feat-a"))
	listed, err := env.manager.List(ctx, env.repo, false)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestCreateSession_AttachesExistingBranch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.git.branches[env.repo]["feat-a"] = true

	rec, err := env.manager.CreateSession(ctx, "feat-a", env.repo, CreateOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusReady, rec.Status)
	assert.False(t, env.git.lastCreateBranch, "existing branch must be attached, not recreated")
}

func TestCheckoutSession_PullRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec, err := env.manager.CheckoutSession(ctx, "pr/42", "", env.repo)
	require.NoError(t, err)

	assert.Equal(t, KindCheckout, rec.Kind)
	assert.Equal(t, "pr-42", rec.Label)
	assert.Equal(t, "pr-42", rec.BranchName)
	assert.Equal(t, "pr/42", rec.CheckoutTarget)

	require.Len(t, env.git.fetches, 1)
	assert.Equal(t, []string{"origin", "pull/42/head"}, env.git.fetches[0])
	assert.Equal(t, "FETCH_HEAD", env.git.lastBaseRef)
}

func TestCheckoutSession_RemoteBranch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec, err := env.manager.CheckoutSession(ctx, "alice:feature-x", "", env.repo)
	require.NoError(t, err)

	assert.Equal(t, "feature-x", rec.BranchName)
	require.Len(t, env.git.fetches, 1)
	assert.Equal(t, []string{"alice"}, env.git.fetches[0])
	assert.Equal(t, "alice/feature-x", env.git.lastBaseRef)
}

func TestCheckoutSession_LocalBranchNoFetch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.git.branches[env.repo]["develop"] = true

	rec, err := env.manager.CheckoutSession(ctx, "develop", "", env.repo)
	require.NoError(t, err)

	assert.Equal(t, "develop", rec.BranchName)
	assert.Empty(t, env.git.fetches)
	assert.False(t, env.git.lastCreateBranch)
}

func TestCheckoutSession_RemoteBranchFetchFailureUsesLocalRefs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// The remote is unreachable but the branch already exists locally from
	// an earlier fetch, so the checkout still succeeds and attaches.
	env.git.branches[env.repo]["feature-x"] = true
	env.git.fetchErr = errors.ExternalTool("git", "fetch", os.ErrDeadlineExceeded)

	rec, err := env.manager.CheckoutSession(ctx, "alice:feature-x", "", env.repo)
	require.NoError(t, err)

	assert.Equal(t, "feature-x", rec.BranchName)
	assert.False(t, env.git.lastCreateBranch)
	assert.Empty(t, env.git.lastBaseRef)
}

func TestCheckoutSession_HierarchicalBranchLabel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.git.branches[env.repo]["feature/login"] = true

	rec, err := env.manager.CheckoutSession(ctx, "feature/login", "", env.repo)
	require.NoError(t, err)
	assert.Equal(t, "feature-login", rec.Label)
	assert.Equal(t, "feature/login", rec.BranchName)
}

func TestRemoveSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec, err := env.manager.CreateSession(ctx, "feat-a", env.repo, CreateOptions{})
	require.NoError(t, err)

	require.NoError(t, env.manager.RemoveSession(ctx, "feat-a", env.repo))

	assert.NotContains(t, env.mux.sessions, rec.SessionName)
	assert.NotContains(t, env.git.worktrees, rec.WorktreePath)
	assert.False(t, env.git.branches[env.repo]["feat-a"])

	listed, err := env.manager.List(ctx, env.repo, false)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestRemoveSession_PartialStateStillCompletes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec, err := env.manager.CreateSession(ctx, "feat-a", env.repo, CreateOptions{})
	require.NoError(t, err)

	// The session was killed outside this process.
	delete(env.mux.sessions, rec.SessionName)

	require.NoError(t, env.manager.RemoveSession(ctx, "feat-a", env.repo))

	assert.NotContains(t, env.git.worktrees, rec.WorktreePath)
	assert.False(t, env.git.branches[env.repo]["feat-a"])

	listed, err := env.manager.List(ctx, env.repo, false)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestRemoveSession_CheckoutKeepsBranch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.git.branches[env.repo]["develop"] = true

	_, err := env.manager.CheckoutSession(ctx, "develop", "", env.repo)
	require.NoError(t, err)

	require.NoError(t, env.manager.RemoveSession(ctx, "develop", env.repo))
	assert.True(t, env.git.branches[env.repo]["develop"], "pre-existing branch must survive teardown")
}

func TestRemoveSession_UntrackedCleansStaleResources(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Simulate a crash after side effects but before persistence.
	staleSession := naming.SessionName(env.repo, "ghost")
	env.mux.sessions[staleSession] = "/somewhere"
	env.git.branches[env.repo]["ghost"] = true

	err := env.manager.RemoveSession(ctx, "ghost", env.repo)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))

	assert.NotContains(t, env.mux.sessions, staleSession)
	assert.False(t, env.git.branches[env.repo]["ghost"])
}

func TestRemoveSession_UntrackedNothingToClean(t *testing.T) {
	env := newTestEnv(t)

	err := env.manager.RemoveSession(context.Background(), "ghost", env.repo)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}

func TestRemoveAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.manager.CreateSession(ctx, "feat-a", env.repo, CreateOptions{})
	require.NoError(t, err)
	_, err = env.manager.CreateSession(ctx, "feat-b", env.repo, CreateOptions{})
	require.NoError(t, err)

	// Declining the confirmation leaves everything alone.
	require.NoError(t, env.manager.RemoveAll(ctx, env.repo, func(int) bool { return false }))
	listed, err := env.manager.List(ctx, env.repo, false)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	var confirmed int
	require.NoError(t, env.manager.RemoveAll(ctx, env.repo, func(n int) bool {
		confirmed = n
		return true
	}))
	assert.Equal(t, 2, confirmed)

	listed, err = env.manager.List(ctx, env.repo, false)
	require.NoError(t, err)
	assert.Empty(t, listed)
	assert.Empty(t, env.mux.sessions)
}

func TestList_ScopeAndLiveness(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	otherRepo := filepath.Join(t.TempDir(), "other")
	require.NoError(t, os.MkdirAll(otherRepo, 0755))
	env.git.addRepo(otherRepo)

	recA, err := env.manager.CreateSession(ctx, "feat-a", env.repo, CreateOptions{})
	require.NoError(t, err)
	_, err = env.manager.CreateSession(ctx, "feat-b", otherRepo, CreateOptions{})
	require.NoError(t, err)

	// Scoped to the first repository
	listed, err := env.manager.List(ctx, env.repo, false)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "feat-a", listed[0].Label)

	// All scopes
	listed, err = env.manager.List(ctx, env.repo, true)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	// Liveness is probed at read time.
	delete(env.mux.sessions, recA.SessionName)
	listed, err = env.manager.List(ctx, env.repo, false)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.False(t, listed[0].Alive)
}

func TestOpen_RecordsHistoryAndAttaches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.manager.CreateSession(ctx, "feat-a", env.repo, CreateOptions{})
	require.NoError(t, err)
	_, err = env.manager.CreateSession(ctx, "feat-b", env.repo, CreateOptions{})
	require.NoError(t, err)

	require.NoError(t, env.manager.Open(ctx, "feat-a"))
	require.NoError(t, env.manager.Open(ctx, "feat-b"))

	// "-" switches back to the previous one.
	require.NoError(t, env.manager.Open(ctx, "-"))

	require.Len(t, env.mux.attached, 3)
	assert.Equal(t, naming.SessionName(env.repo, "feat-a"), env.mux.attached[2])
}

func TestOpen_RecreatesDeadSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec, err := env.manager.CreateSession(ctx, "feat-a", env.repo, CreateOptions{})
	require.NoError(t, err)

	delete(env.mux.sessions, rec.SessionName)

	require.NoError(t, env.manager.Open(ctx, "feat-a"))
	assert.Equal(t, rec.WorktreePath, env.mux.sessions[rec.SessionName])
}

func TestOpen_UnknownLabel(t *testing.T) {
	env := newTestEnv(t)

	err := env.manager.Open(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}

func TestSend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec, err := env.manager.CreateSession(ctx, "feat-a", env.repo, CreateOptions{})
	require.NoError(t, err)

	require.NoError(t, env.manager.Send(ctx, "feat-a", "make test"))
	assert.Equal(t, []string{"make test"}, env.mux.sent[rec.SessionName])
}

func TestSend_DeadSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec, err := env.manager.CreateSession(ctx, "feat-a", env.repo, CreateOptions{})
	require.NoError(t, err)
	delete(env.mux.sessions, rec.SessionName)

	err = env.manager.Send(ctx, "feat-a", "make test")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}

func TestSendAll_SkipsDeadSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.manager.CreateSession(ctx, "feat-a", env.repo, CreateOptions{})
	require.NoError(t, err)
	recB, err := env.manager.CreateSession(ctx, "feat-b", env.repo, CreateOptions{})
	require.NoError(t, err)

	delete(env.mux.sessions, recB.SessionName)

	sent, err := env.manager.SendAll(ctx, "make test")
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestSend_ServerDown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.manager.CreateSession(ctx, "feat-a", env.repo, CreateOptions{})
	require.NoError(t, err)

	env.mux.serverDown = true
	err = env.manager.Send(ctx, "feat-a", "make test")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
	assert.Empty(t, env.mux.sent)
}

func TestSendAll_ServerDown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.manager.CreateSession(ctx, "feat-a", env.repo, CreateOptions{})
	require.NoError(t, err)

	env.mux.serverDown = true
	sent, err := env.manager.SendAll(ctx, "make test")
	require.Error(t, err)
	assert.Zero(t, sent)
}

// statusRunner records the status the record carries when initialization
// commands start.
type statusRunner struct {
	seen Status
}

func (r *statusRunner) Run(ctx context.Context, rec *Record) error {
	r.seen = rec.Status
	return nil
}

func TestCreateSession_InitializingWhenRunnerStarts(t *testing.T) {
	env := newTestEnv(t)
	runner := &statusRunner{}
	env.manager.SetRunner(runner)

	rec, err := env.manager.CreateSession(context.Background(), "feat-a", env.repo, CreateOptions{})
	require.NoError(t, err)

	// The record leaves the creating phase once its resources exist, so the
	// runner always sees it initializing and it settles ready afterwards.
	assert.Equal(t, StatusInitializing, runner.seen)
	assert.Equal(t, StatusReady, rec.Status)
}

// failingRunner simulates initialization commands that fail.
type failingRunner struct{}

func (failingRunner) Run(ctx context.Context, rec *Record) error {
	return errors.ExternalTool("tmux", "send-keys", os.ErrInvalid)
}

func TestCreateSession_RunnerFailureMarksError(t *testing.T) {
	env := newTestEnv(t)
	env.manager.SetRunner(failingRunner{})

	rec, err := env.manager.CreateSession(context.Background(), "feat-a", env.repo, CreateOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusError, rec.Status)

	// The terminal status is persisted, not just returned.
	listed, err := env.manager.List(context.Background(), env.repo, false)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, StatusError, listed[0].Status)
}

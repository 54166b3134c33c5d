package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/partools/par/checkout"
	"github.com/partools/par/command"
	"github.com/partools/par/errors"
	"github.com/partools/par/git"
	"github.com/partools/par/naming"
	"github.com/partools/par/state"
	"github.com/partools/par/tmux"
)

// InitRunner runs post-creation initialization commands inside a freshly
// created session. The config package provides the YAML-driven
// implementation; a nil runner skips initialization.
type InitRunner interface {
	Run(ctx context.Context, rec *Record) error
}

// Manager owns all record creation, mutation, and deletion. Every operation
// validates its preconditions before touching the external tools and only
// persists a record once the physical resources exist.
type Manager struct {
	sessions   *state.Store
	workspaces *state.Store
	git        git.Provider
	mux        tmux.Multiplexer
	history    *History
	runner     InitRunner
	log        *logrus.Entry
}

// NewManager wires a manager over its two stores and the external tools.
// A nil logger discards output.
func NewManager(sessions, workspaces *state.Store, g git.Provider, mux tmux.Multiplexer, history *History, log *logrus.Entry) *Manager {
	if log == nil {
		silenced := logrus.New()
		silenced.SetOutput(io.Discard)
		log = logrus.NewEntry(silenced)
	}
	return &Manager{
		sessions:   sessions,
		workspaces: workspaces,
		git:        g,
		mux:        mux,
		history:    history,
		log:        log,
	}
}

// SetRunner installs the post-creation command runner.
func (m *Manager) SetRunner(r InitRunner) {
	m.runner = r
}

// CreateOptions tunes session creation.
type CreateOptions struct {
	// BaseRef is an explicit starting point for the new branch. Ignored when
	// the branch already exists locally.
	BaseRef string
}

// CreateSession creates a worktree on a branch named after the label, a
// multiplexer session rooted at the worktree, and a tracked record. The
// label must be unique across every session and workspace. If the branch
// already exists locally the worktree attaches to it instead of creating a
// new one.
func (m *Manager) CreateSession(ctx context.Context, label, repoPath string, opts CreateOptions) (*Record, error) {
	if err := command.ValidateLabel(label); err != nil {
		return nil, errors.Validation(err.Error())
	}
	if !m.git.IsRepo(ctx, repoPath) {
		return nil, errors.Validation(fmt.Sprintf("'%s' is not inside a git repository", repoPath))
	}

	repoRoot, err := m.git.Root(ctx, repoPath)
	if err != nil {
		return nil, err
	}
	repoName, err := m.git.RepoName(ctx, repoRoot)
	if err != nil {
		return nil, err
	}

	worktreePath := naming.WorktreePath(repoRoot, label)
	sessionName := naming.SessionName(repoRoot, label)
	if err := m.checkAvailable(ctx, label, worktreePath, sessionName); err != nil {
		return nil, err
	}

	// Preconditions hold; start touching the world. The record stays in the
	// creating phase until its physical resources exist, and is only
	// persisted once they do.
	rec := &Record{
		Label:          label,
		Kind:           KindSession,
		RepositoryPath: repoRoot,
		RepositoryName: repoName,
		WorktreePath:   worktreePath,
		SessionName:    sessionName,
		BranchName:     label,
		CreatedAt:      time.Now().UTC(),
		Status:         StatusCreating,
	}

	if err := os.MkdirAll(filepath.Dir(worktreePath), 0755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "create worktree parent directory")
	}

	createBranch := !m.git.BranchExists(ctx, repoRoot, label)
	baseRef := ""
	if createBranch {
		baseRef = opts.BaseRef
	}
	if err := m.git.CreateWorktree(ctx, repoRoot, worktreePath, label, createBranch, baseRef); err != nil {
		return nil, err
	}
	if err := m.mux.NewSession(ctx, sessionName, worktreePath); err != nil {
		// The worktree stays behind without a record; removal of the same
		// label later cleans it up through the stale-resource path.
		return nil, err
	}

	rec.Status = StatusInitializing
	if err := m.persist(m.sessions, repoRoot, rec); err != nil {
		return nil, err
	}

	m.finishInit(ctx, m.sessions, repoRoot, rec)
	return rec, nil
}

// CheckoutSession materializes a worktree for an existing ref: a local
// branch, a remote branch in "user:branch" form, or a pull request. The
// label defaults to the branch name with hierarchy separators flattened.
func (m *Manager) CheckoutSession(ctx context.Context, target, label, repoPath string) (*Record, error) {
	branch, strategy, err := checkout.Resolve(target)
	if err != nil {
		return nil, err
	}
	if label == "" {
		label = checkout.DeriveLabel(branch)
	}
	if err := command.ValidateLabel(label); err != nil {
		return nil, errors.Validation(err.Error())
	}
	if !m.git.IsRepo(ctx, repoPath) {
		return nil, errors.Validation(fmt.Sprintf("'%s' is not inside a git repository", repoPath))
	}

	repoRoot, err := m.git.Root(ctx, repoPath)
	if err != nil {
		return nil, err
	}
	repoName, err := m.git.RepoName(ctx, repoRoot)
	if err != nil {
		return nil, err
	}

	worktreePath := naming.WorktreePath(repoRoot, label)
	sessionName := naming.SessionName(repoRoot, label)
	if err := m.checkAvailable(ctx, label, worktreePath, sessionName); err != nil {
		return nil, err
	}

	rec := &Record{
		Label:          label,
		Kind:           KindCheckout,
		RepositoryPath: repoRoot,
		RepositoryName: repoName,
		WorktreePath:   worktreePath,
		SessionName:    sessionName,
		BranchName:     branch,
		CheckoutTarget: target,
		CreatedAt:      time.Now().UTC(),
		Status:         StatusCreating,
	}

	if err := os.MkdirAll(filepath.Dir(worktreePath), 0755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "create worktree parent directory")
	}

	baseRef := ""
	switch {
	case strategy.IsPR:
		if err := m.git.Fetch(ctx, repoRoot, strategy.Remote, strategy.Ref); err != nil {
			return nil, err
		}
		baseRef = "FETCH_HEAD"
	case strategy.FetchRemote:
		if err := m.git.Fetch(ctx, repoRoot, strategy.Remote); err != nil {
			// The ref may already exist locally from an earlier fetch, so a
			// failed fetch is not fatal on its own.
			m.log.WithError(err).WithField("remote", strategy.Remote).Warn("Fetch failed; trying existing local refs")
		}
		baseRef = strategy.Ref
	default:
		if !m.git.BranchExists(ctx, repoRoot, branch) {
			// Branch is not local; try the default remote before giving up.
			if err := m.git.Fetch(ctx, repoRoot, checkout.DefaultRemote); err != nil {
				return nil, err
			}
			baseRef = checkout.DefaultRemote + "/" + branch
		}
	}

	createBranch := !m.git.BranchExists(ctx, repoRoot, branch)
	if !createBranch {
		baseRef = ""
	}
	if err := m.git.CreateWorktree(ctx, repoRoot, worktreePath, branch, createBranch, baseRef); err != nil {
		return nil, err
	}
	if err := m.mux.NewSession(ctx, sessionName, worktreePath); err != nil {
		return nil, err
	}

	rec.Status = StatusInitializing
	if err := m.persist(m.sessions, repoRoot, rec); err != nil {
		return nil, err
	}

	m.finishInit(ctx, m.sessions, repoRoot, rec)
	return rec, nil
}

// RemoveSession tears down a tracked session or workspace and deletes its
// record. Teardown steps are best-effort: a step whose resource is already
// gone is skipped, and no step aborts the rest. An untracked label still
// gets speculative cleanup of conventionally-named resources and then
// reports NotFound.
func (m *Manager) RemoveSession(ctx context.Context, label, repoPath string) error {
	scope, rec, err := m.find(m.sessions, label)
	if err != nil {
		return err
	}
	if rec != nil {
		m.teardownSession(ctx, rec)
		if err := m.deleteRecord(m.sessions, scope, label); err != nil {
			return err
		}
		m.forgetLabel(label)
		return nil
	}

	scope, rec, err = m.find(m.workspaces, label)
	if err != nil {
		return err
	}
	if rec != nil {
		m.teardownWorkspace(ctx, rec)
		if err := m.deleteRecord(m.workspaces, scope, label); err != nil {
			return err
		}
		m.forgetLabel(label)
		return nil
	}

	m.cleanupStale(ctx, label, repoPath)
	return errors.NotFound(label)
}

// RemoveAll removes every tracked session and workspace. The confirm
// callback gates the batch; returning false aborts without side effects.
// One label's teardown failure never stops the rest.
func (m *Manager) RemoveAll(ctx context.Context, repoPath string, confirm func(count int) bool) error {
	labels, err := m.allLabels()
	if err != nil {
		return err
	}
	if len(labels) == 0 {
		return nil
	}
	if confirm != nil && !confirm(len(labels)) {
		return nil
	}

	for _, label := range labels {
		if err := m.RemoveSession(ctx, label, repoPath); err != nil && !errors.Is(err, errors.ErrCodeNotFound) {
			m.log.WithError(err).WithField("label", label).Warn("Failed to remove session")
		}
	}
	return nil
}

// List returns tracked single-repo records, scoped to the repository
// containing repoPath unless all is set. Liveness is probed per record at
// read time.
func (m *Manager) List(ctx context.Context, repoPath string, all bool) ([]ListedRecord, error) {
	scopeFilter := ""
	if !all && m.git.IsRepo(ctx, repoPath) {
		root, err := m.git.Root(ctx, repoPath)
		if err != nil {
			return nil, err
		}
		scopeFilter = root
	}

	m.sessions.Invalidate()
	doc, err := m.sessions.Load()
	if err != nil {
		return nil, err
	}

	var out []ListedRecord
	for scope, records := range doc {
		if scopeFilter != "" && scope != scopeFilter {
			continue
		}
		for _, raw := range records {
			rec, err := decodeRecord(raw)
			if err != nil {
				m.log.WithError(err).WithField("scope", scope).Warn("Skipping undecodable record")
				continue
			}
			out = append(out, m.annotate(ctx, rec))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

// ListWorkspaces returns all tracked workspace records with liveness probes.
func (m *Manager) ListWorkspaces(ctx context.Context) ([]ListedRecord, error) {
	m.workspaces.Invalidate()
	doc, err := m.workspaces.Load()
	if err != nil {
		return nil, err
	}

	var out []ListedRecord
	for scope, records := range doc {
		for _, raw := range records {
			rec, err := decodeRecord(raw)
			if err != nil {
				m.log.WithError(err).WithField("scope", scope).Warn("Skipping undecodable record")
				continue
			}
			out = append(out, m.annotate(ctx, rec))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

// Open attaches or switches the user's terminal to a tracked session. The
// label "-" means the previously opened one. A session that died outside
// this process is recreated at the record's worktree first.
func (m *Manager) Open(ctx context.Context, label string) error {
	if label == "-" {
		if m.history == nil {
			return errors.New(errors.ErrCodeNotFound, "no previous session to switch to")
		}
		previous, err := m.history.Previous()
		if err != nil {
			return err
		}
		label = previous
	}

	_, _, rec, err := m.findAny(label)
	if err != nil {
		return err
	}
	if rec == nil {
		return errors.NotFound(label)
	}

	alive, err := m.mux.SessionExists(ctx, rec.SessionName)
	if err != nil {
		return err
	}
	if !alive {
		if _, err := os.Stat(rec.WorktreePath); err != nil {
			return errors.New(errors.ErrCodeConflict,
				fmt.Sprintf("worktree for '%s' is missing; remove the session and recreate it", label))
		}
		if err := m.mux.NewSession(ctx, rec.SessionName, rec.WorktreePath); err != nil {
			return err
		}
	}

	if m.history != nil {
		if err := m.history.RecordOpen(label); err != nil {
			m.log.WithError(err).Warn("Failed to update access history")
		}
	}
	return m.mux.AttachOrSwitch(ctx, rec.SessionName)
}

// Send types a command into one tracked session. Sending requires a live
// multiplexer server; unlike creation and open there is nothing to
// auto-spawn into, so a dead server is checked up front.
func (m *Manager) Send(ctx context.Context, label, text string) error {
	if !m.mux.ServerRunning(ctx) {
		return errors.New(errors.ErrCodeNotFound, "tmux server is not running; no live sessions")
	}

	_, _, rec, err := m.findAny(label)
	if err != nil {
		return err
	}
	if rec == nil {
		return errors.NotFound(label)
	}

	alive, err := m.mux.SessionExists(ctx, rec.SessionName)
	if err != nil {
		return err
	}
	if !alive {
		return errors.New(errors.ErrCodeNotFound,
			fmt.Sprintf("session for '%s' is not running", label))
	}
	return m.mux.SendKeys(ctx, rec.SessionName, text)
}

// SendAll types a command into every live tracked session and returns how
// many received it. Dead sessions are skipped, not an error; a dead server
// is, since then nothing can receive the command.
func (m *Manager) SendAll(ctx context.Context, text string) (int, error) {
	if !m.mux.ServerRunning(ctx) {
		return 0, errors.New(errors.ErrCodeNotFound, "tmux server is not running; no live sessions")
	}

	labels, err := m.allLabels()
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, label := range labels {
		if err := m.Send(ctx, label, text); err != nil {
			if errors.Is(err, errors.ErrCodeNotFound) {
				continue
			}
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// checkAvailable enforces the creation preconditions: a globally unique
// label, a vacant worktree path, and no live session under the derived name.
func (m *Manager) checkAvailable(ctx context.Context, label, worktreePath, sessionName string) error {
	taken, err := m.labelTaken(label)
	if err != nil {
		return err
	}
	if taken {
		return errors.DuplicateLabel(label)
	}

	if _, err := os.Stat(worktreePath); err == nil {
		return errors.WorktreeConflict(worktreePath)
	}

	live, err := m.mux.SessionExists(ctx, sessionName)
	if err != nil {
		return err
	}
	if live {
		return errors.SessionConflict(sessionName)
	}
	return nil
}

// finishInit runs the post-creation command runner and settles the record
// into its terminal status.
func (m *Manager) finishInit(ctx context.Context, store *state.Store, scope string, rec *Record) {
	status := StatusReady
	if m.runner != nil {
		if err := m.runner.Run(ctx, rec); err != nil {
			m.log.WithError(err).WithField("label", rec.Label).Warn("Initialization commands failed")
			status = StatusError
		}
	}

	rec.Status = status
	if err := m.persist(store, scope, rec); err != nil {
		m.log.WithError(err).WithField("label", rec.Label).Warn("Failed to persist final status")
	}
}

// teardownSession best-effort removes a single-repo session's resources.
func (m *Manager) teardownSession(ctx context.Context, rec *Record) {
	m.tryStep(rec.Label, "kill session", func() error {
		return m.mux.KillSession(ctx, rec.SessionName)
	})
	m.tryStep(rec.Label, "remove worktree", func() error {
		return m.git.RemoveWorktree(ctx, rec.RepositoryPath, rec.WorktreePath, true)
	})
	m.tryStep(rec.Label, "prune worktrees", func() error {
		return m.git.PruneWorktrees(ctx, rec.RepositoryPath)
	})
	if rec.OwnsBranch() {
		m.tryStep(rec.Label, "delete branch", func() error {
			return m.git.DeleteBranch(ctx, rec.RepositoryPath, rec.BranchName)
		})
	}
}

// teardownWorkspace best-effort removes every member worktree and branch,
// the shared session, and the shared label directory.
func (m *Manager) teardownWorkspace(ctx context.Context, rec *Record) {
	m.tryStep(rec.Label, "kill session", func() error {
		return m.mux.KillSession(ctx, rec.SessionName)
	})
	for _, entry := range rec.Repos {
		m.tryStep(rec.Label, "remove worktree "+entry.RepoName, func() error {
			return m.git.RemoveWorktree(ctx, entry.RepoPath, entry.WorktreePath, true)
		})
		m.tryStep(rec.Label, "prune worktrees "+entry.RepoName, func() error {
			return m.git.PruneWorktrees(ctx, entry.RepoPath)
		})
		m.tryStep(rec.Label, "delete branch "+entry.RepoName, func() error {
			return m.git.DeleteBranch(ctx, entry.RepoPath, entry.BranchName)
		})
	}
	m.tryStep(rec.Label, "remove workspace directory", func() error {
		return os.RemoveAll(rec.WorktreePath)
	})
}

// cleanupStale speculatively removes conventionally-named resources for a
// label that has no record, e.g. after a crash between side effects and
// persistence. It must not fail when nothing exists.
func (m *Manager) cleanupStale(ctx context.Context, label, repoPath string) {
	if err := command.ValidateLabel(label); err != nil {
		return
	}
	if !m.git.IsRepo(ctx, repoPath) {
		return
	}
	repoRoot, err := m.git.Root(ctx, repoPath)
	if err != nil {
		return
	}

	m.tryStep(label, "kill stale session", func() error {
		return m.mux.KillSession(ctx, naming.SessionName(repoRoot, label))
	})

	worktreePath := naming.WorktreePath(repoRoot, label)
	if _, err := os.Stat(worktreePath); err == nil {
		m.tryStep(label, "remove stale worktree", func() error {
			return m.git.RemoveWorktree(ctx, repoRoot, worktreePath, true)
		})
	}
	m.tryStep(label, "prune worktrees", func() error {
		return m.git.PruneWorktrees(ctx, repoRoot)
	})

	if m.git.BranchExists(ctx, repoRoot, label) {
		m.tryStep(label, "delete stale branch", func() error {
			return m.git.DeleteBranch(ctx, repoRoot, label)
		})
	}
}

// tryStep runs one teardown step, downgrading already-gone resources to a
// debug note and everything else to a warning.
func (m *Manager) tryStep(label, action string, fn func() error) {
	if err := fn(); err != nil {
		if errors.IsRecoverable(err) {
			m.log.WithField("label", label).Debugf("%s: already gone", action)
			return
		}
		m.log.WithError(err).WithField("label", label).Warnf("%s failed", action)
	}
}

// labelTaken scans both stores across every scope. Uniqueness checks always
// bypass the read cache: another invocation may have just created a record.
func (m *Manager) labelTaken(label string) (bool, error) {
	for _, store := range []*state.Store{m.sessions, m.workspaces} {
		store.Invalidate()
		doc, err := store.Load()
		if err != nil {
			return false, err
		}
		for _, records := range doc {
			if _, ok := records[label]; ok {
				return true, nil
			}
		}
	}
	return false, nil
}

// find locates a label in one store, returning its scope and decoded record.
func (m *Manager) find(store *state.Store, label string) (string, *Record, error) {
	store.Invalidate()
	doc, err := store.Load()
	if err != nil {
		return "", nil, err
	}
	for scope, records := range doc {
		if raw, ok := records[label]; ok {
			rec, err := decodeRecord(raw)
			if err != nil {
				return "", nil, err
			}
			return scope, rec, nil
		}
	}
	return "", nil, nil
}

// findAny locates a label in either store.
func (m *Manager) findAny(label string) (*state.Store, string, *Record, error) {
	scope, rec, err := m.find(m.sessions, label)
	if err != nil {
		return nil, "", nil, err
	}
	if rec != nil {
		return m.sessions, scope, rec, nil
	}

	scope, rec, err = m.find(m.workspaces, label)
	if err != nil {
		return nil, "", nil, err
	}
	if rec != nil {
		return m.workspaces, scope, rec, nil
	}
	return nil, "", nil, nil
}

func (m *Manager) allLabels() ([]string, error) {
	seen := make(map[string]struct{})
	for _, store := range []*state.Store{m.sessions, m.workspaces} {
		store.Invalidate()
		doc, err := store.Load()
		if err != nil {
			return nil, err
		}
		for _, records := range doc {
			for label := range records {
				seen[label] = struct{}{}
			}
		}
	}

	labels := make([]string, 0, len(seen))
	for label := range seen {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels, nil
}

func (m *Manager) annotate(ctx context.Context, rec *Record) ListedRecord {
	alive, err := m.mux.SessionExists(ctx, rec.SessionName)
	if err != nil {
		alive = false
	}
	return ListedRecord{Record: *rec, Alive: alive}
}

func (m *Manager) persist(store *state.Store, scope string, rec *Record) error {
	sub, err := store.Scope(scope)
	if err != nil {
		return err
	}
	sub[rec.Label] = rec
	return store.SetScope(scope, sub)
}

func (m *Manager) deleteRecord(store *state.Store, scope, label string) error {
	sub, err := store.Scope(scope)
	if err != nil {
		return err
	}
	delete(sub, label)
	return store.SetScope(scope, sub)
}

func (m *Manager) forgetLabel(label string) {
	if m.history == nil {
		return
	}
	if err := m.history.Forget(label); err != nil {
		m.log.WithError(err).Warn("Failed to update access history")
	}
}

// Package reconcile converges the control-center overview session's windows
// onto the current set of tracked sessions: one window per session, named
// after it, rooted at its worktree. Windows are diffed by name and removed
// by stable window ID, so untouched windows never move or restart.
package reconcile

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/partools/par/errors"
	"github.com/partools/par/tmux"
)

// DefaultOverviewSession is the dedicated always-on overview session name.
const DefaultOverviewSession = "par-control-center"

// Entry is one desired window: a tracked session's name and the directory
// its window should start in.
type Entry struct {
	Name       string
	WorkingDir string
}

// Reconciler converges the overview session onto a desired window set.
type Reconciler struct {
	mux      tmux.Multiplexer
	overview string
	log      *logrus.Entry
}

// New creates a reconciler for the given overview session name.
func New(mux tmux.Multiplexer, overview string, log *logrus.Entry) *Reconciler {
	if log == nil {
		silenced := logrus.New()
		silenced.SetOutput(io.Discard)
		log = logrus.NewEntry(silenced)
	}
	return &Reconciler{mux: mux, overview: overview, log: log}
}

// Reconcile brings the overview session's window set to exactly the desired
// entries. Windows in both sets are left untouched; an already-open window
// keeps the working directory it was opened with, since the multiplexer has
// no primitive to change a live window's root.
//
// It refuses to run with an empty desired set, and refuses to modify the
// overview session while the caller is inside it.
func (r *Reconciler) Reconcile(ctx context.Context, desired []Entry) error {
	if len(desired) == 0 {
		return errors.Validation("no sessions to show; create one first")
	}

	if r.mux.InsideTmux() {
		current, err := r.mux.CurrentSession(ctx)
		if err != nil {
			return err
		}
		if current == r.overview {
			return errors.New(errors.ErrCodeConflict,
				"cannot rebuild the overview session from inside it; detach first")
		}
	}

	exists, err := r.mux.SessionExists(ctx, r.overview)
	if err != nil {
		return err
	}
	if !exists {
		return r.createFresh(ctx, desired)
	}

	windows, err := r.mux.ListWindows(ctx, r.overview)
	if err != nil {
		// The session is in an unreadable state; rebuild it wholesale.
		r.log.WithError(err).Warn("Overview session is unreadable, recreating it")
		if err := r.mux.KillSession(ctx, r.overview); err != nil && !errors.IsRecoverable(err) {
			return err
		}
		return r.createFresh(ctx, desired)
	}

	remove, add := computePatch(windows, desired)

	for _, w := range remove {
		if err := r.mux.KillWindow(ctx, r.overview+":"+w.ID); err != nil && !errors.IsRecoverable(err) {
			return err
		}
	}
	for _, e := range add {
		err := r.mux.NewWindow(ctx, tmux.NewWindowOptions{
			Target:     r.overview,
			WindowName: e.Name,
			WorkingDir: e.WorkingDir,
		})
		if err != nil {
			return err
		}
	}

	return r.mux.SelectWindow(ctx, r.overview+":"+desired[0].Name)
}

// createFresh builds the overview session from scratch: the initial window
// becomes the first entry, the rest are added in order.
func (r *Reconciler) createFresh(ctx context.Context, desired []Entry) error {
	if err := r.mux.NewSession(ctx, r.overview, desired[0].WorkingDir); err != nil {
		return err
	}
	if err := r.mux.RenameWindow(ctx, r.overview, desired[0].Name); err != nil {
		return err
	}

	for _, e := range desired[1:] {
		err := r.mux.NewWindow(ctx, tmux.NewWindowOptions{
			Target:     r.overview,
			WindowName: e.Name,
			WorkingDir: e.WorkingDir,
		})
		if err != nil {
			return err
		}
	}

	return r.mux.SelectWindow(ctx, r.overview+":"+desired[0].Name)
}

// computePatch diffs live windows against desired entries by name. Windows
// present in both sets appear in neither result.
func computePatch(current []tmux.Window, desired []Entry) (remove []tmux.Window, add []Entry) {
	desiredNames := make(map[string]struct{}, len(desired))
	for _, e := range desired {
		desiredNames[e.Name] = struct{}{}
	}

	currentNames := make(map[string]struct{}, len(current))
	for _, w := range current {
		currentNames[w.Name] = struct{}{}
		if _, ok := desiredNames[w.Name]; !ok {
			remove = append(remove, w)
		}
	}

	for _, e := range desired {
		if _, ok := currentNames[e.Name]; !ok {
			add = append(add, e)
		}
	}
	return remove, add
}

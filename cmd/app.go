package cmd

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/partools/par/config"
	"github.com/partools/par/errors"
	"github.com/partools/par/git"
	"github.com/partools/par/logging"
	"github.com/partools/par/paths"
	"github.com/partools/par/session"
	"github.com/partools/par/state"
	"github.com/partools/par/tmux"
)

// app wires the stores, external tools, and lifecycle manager once per
// invocation. Construction runs the startup migration.
type app struct {
	mgr *session.Manager
	mux tmux.Multiplexer
	log *logrus.Entry
}

func newApp() (*app, error) {
	if err := paths.EnsureDirs(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "create data directories")
	}

	log := logging.NewLogger("par")
	if err := state.Migrate(paths.DataDir(), log); err != nil {
		return nil, err
	}

	mux, err := tmux.NewClient()
	if err != nil {
		return nil, err
	}

	sessions := state.NewStore(filepath.Join(paths.DataDir(), state.SessionsFile), state.DefaultTTL, log)
	workspaces := state.NewStore(filepath.Join(paths.DataDir(), state.WorkspacesFile), state.DefaultTTL, log)
	history := session.NewHistory(filepath.Join(paths.DataDir(), "history.json"))

	mgr := session.NewManager(sessions, workspaces, git.NewCLIGit(), mux, history, log)
	mgr.SetRunner(config.NewRunner(mux, logging.NewLogger("config")))

	return &app{mgr: mgr, mux: mux, log: log}, nil
}

// cwd returns the invoking directory, which scopes repository-bound commands.
func cwd() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "resolve working directory")
	}
	return dir, nil
}

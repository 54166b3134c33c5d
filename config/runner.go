package config

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/partools/par/command"
	"github.com/partools/par/errors"
	"github.com/partools/par/session"
)

// keySender is the one multiplexer capability the runner needs.
type keySender interface {
	SendKeys(ctx context.Context, target, text string) error
}

// Runner types a project's initialization commands into a new session's
// first pane. Commands run in declaration order; the first failure aborts
// the rest so later commands never run against a broken setup.
type Runner struct {
	mux keySender
	log *logrus.Entry
}

// Ensure it implements the interface
var _ session.InitRunner = (*Runner)(nil)

// NewRunner creates a runner sending through the given multiplexer.
func NewRunner(mux keySender, log *logrus.Entry) *Runner {
	if log == nil {
		silenced := logrus.New()
		silenced.SetOutput(io.Discard)
		log = logrus.NewEntry(silenced)
	}
	return &Runner{mux: mux, log: log}
}

// Run loads the record's project configuration and sends each initialization
// command. Worktree-local configuration wins over the repository's.
func (r *Runner) Run(ctx context.Context, rec *session.Record) error {
	cfg, err := Load(rec.WorktreePath)
	if err != nil {
		return err
	}
	if cfg == nil && rec.RepositoryPath != "" {
		cfg, err = Load(rec.RepositoryPath)
		if err != nil {
			return err
		}
	}
	if cfg == nil || len(cfg.Initialization.Commands) == 0 {
		return nil
	}

	for _, cmd := range cfg.Initialization.Commands {
		if err := command.ValidateCommandText(cmd.Command); err != nil {
			return errors.Validation(err.Error())
		}

		name := cmd.Name
		if name == "" {
			name = cmd.Command
		}
		r.log.WithFields(logrus.Fields{
			"label":   rec.Label,
			"command": name,
		}).Debug("Running initialization command")

		if err := r.mux.SendKeys(ctx, rec.SessionName, cmd.Command); err != nil {
			return err
		}
	}
	return nil
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/partools/par/cli"
	"github.com/partools/par/session"
)

func newStartCmd() *cobra.Command {
	var baseRef string
	var noAttach bool

	cmd := &cobra.Command{
		Use:   "start <label>",
		Short: "Create a worktree, branch, and tmux session for a new line of work",
		Long: `Create a git worktree on a branch named after the label, start a tmux
session rooted at the worktree, and attach to it. If a local branch with
the label's name already exists, the worktree attaches to it instead of
creating a new branch.

Initialization commands from .par.yaml run inside the new session.

Examples:
  par start feat-auth
  # Branch off a specific ref instead of HEAD
  par start hotfix --base v2.1.0
  # Create without attaching
  par start feat-auth --no-attach`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			repoPath, err := cwd()
			if err != nil {
				return err
			}

			rec, err := app.mgr.CreateSession(cmd.Context(), args[0], repoPath, session.CreateOptions{
				BaseRef: baseRef,
			})
			if err != nil {
				return err
			}

			cli.Successf("Created session '%s' on branch '%s'", rec.Label, rec.BranchName)
			if rec.Status == session.StatusError {
				cli.Warnf("Initialization commands failed; see the logs")
			}
			if noAttach {
				return nil
			}
			return app.mgr.Open(cmd.Context(), rec.Label)
		},
	}

	cmd.Flags().StringVar(&baseRef, "base", "", "Base ref for the new branch")
	cmd.Flags().BoolVar(&noAttach, "no-attach", false, "Create the session without attaching to it")
	return cmd
}

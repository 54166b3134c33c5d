package cmd

import (
	"github.com/spf13/cobra"

	"github.com/partools/par/cli"
	"github.com/partools/par/session"
)

func newCheckoutCmd() *cobra.Command {
	var label string
	var noAttach bool

	cmd := &cobra.Command{
		Use:   "checkout <target>",
		Short: "Create a session for an existing branch, remote branch, or pull request",
		Long: `Materialize a worktree for a ref that already exists and open a tmux
session on it. The target may be a local branch name, a remote branch in
user:branch form, a pull request number like pr/142, or a full pull
request URL. The branch is left in place when the session is removed.

Examples:
  par checkout pr/142
  par checkout https://github.com/acme/app/pull/142
  par checkout alice:fix-login
  par checkout release/2.4 --label rel24`,
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

			rec, err := app.mgr.CheckoutSession(cmd.Context(), args[0], label, repoPath)
			if err != nil {
				return err
			}

			cli.Successf("Checked out '%s' as session '%s'", rec.BranchName, rec.Label)
			if rec.Status == session.StatusError {
				cli.Warnf("Initialization commands failed; see the logs")
			}
			if noAttach {
				return nil
			}
			return app.mgr.Open(cmd.Context(), rec.Label)
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "Session label (defaults to a flattened branch name)")
	cmd.Flags().BoolVar(&noAttach, "no-attach", false, "Create the session without attaching to it")
	return cmd
}

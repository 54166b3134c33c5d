package cmd

import (
	"github.com/spf13/cobra"

	"github.com/partools/par/logging"
	"github.com/partools/par/reconcile"
)

func newControlCenterCmd() *cobra.Command {
	var noAttach bool

	cmd := &cobra.Command{
		Use:     "control-center",
		Aliases: []string{"open-all"},
		Short:   "Open an overview session with one window per tracked session",
		Long: `Build or update the par-control-center tmux session so it holds exactly
one window per tracked session, each rooted at that session's worktree.
Windows for sessions that still exist are left untouched; removed
sessions lose their window and new ones gain one.

Cannot run from inside the overview session itself.

Examples:
  par control-center
  par open-all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			repoPath, err := cwd()
			if err != nil {
				return err
			}

			records, err := app.mgr.List(cmd.Context(), repoPath, true)
			if err != nil {
				return err
			}

			desired := make([]reconcile.Entry, 0, len(records))
			for _, rec := range records {
				desired = append(desired, reconcile.Entry{
					Name:       rec.Label,
					WorkingDir: rec.WorktreePath,
				})
			}

			r := reconcile.New(app.mux, reconcile.DefaultOverviewSession, logging.NewLogger("reconcile"))
			if err := r.Reconcile(cmd.Context(), desired); err != nil {
				return err
			}
			if noAttach {
				return nil
			}
			return app.mux.AttachOrSwitch(cmd.Context(), reconcile.DefaultOverviewSession)
		},
	}

	cmd.Flags().BoolVar(&noAttach, "no-attach", false, "Rebuild the overview without attaching to it")
	return cmd
}

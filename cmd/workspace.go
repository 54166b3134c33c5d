package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/partools/par/cli"
	"github.com/partools/par/session"
)

func newWorkspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workspace",
		Aliases: []string{"ws"},
		Short:   "Manage multi-repository workspaces",
		Long: `A workspace federates worktrees across several repositories under one
label: every member repository gets a worktree on a branch named after
the label, and a single tmux session is rooted at the directory holding
them all.`,
	}

	cmd.AddCommand(
		newWorkspaceStartCmd(),
		newWorkspaceOpenCmd(),
		newWorkspaceRmCmd(),
		newWorkspaceLsCmd(),
	)
	return cmd
}

func newWorkspaceStartCmd() *cobra.Command {
	var repos []string
	var noAttach bool

	cmd := &cobra.Command{
		Use:   "start <label>",
		Short: "Create a workspace across the repositories under the current directory",
		Long: `Create one worktree per member repository, all on a branch named after
the label, plus a shared tmux session. Without --repo flags, members are
the immediate subdirectories of the current directory that are git
repositories.

Examples:
  par workspace start feat-billing
  par workspace start feat-billing --repo api --repo web`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			rootPath, err := cwd()
			if err != nil {
				return err
			}

			rec, err := app.mgr.CreateWorkspace(cmd.Context(), args[0], rootPath, repos)
			if err != nil {
				return err
			}

			cli.Successf("Created workspace '%s' with %d repositories", rec.Label, len(rec.Repos))
			if rec.Status == session.StatusError {
				cli.Warnf("Initialization commands failed; see the logs")
			}
			if noAttach {
				return nil
			}
			return app.mgr.Open(cmd.Context(), rec.Label)
		},
	}

	cmd.Flags().StringArrayVar(&repos, "repo", nil, "Member repository directory name (repeatable)")
	cmd.Flags().BoolVar(&noAttach, "no-attach", false, "Create the workspace without attaching to it")
	return cmd
}

func newWorkspaceOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <label>",
		Short: "Attach or switch to a workspace session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			return app.mgr.Open(cmd.Context(), args[0])
		},
	}
}

func newWorkspaceRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <label>",
		Short: "Remove a workspace, its worktrees, and its branches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			rootPath, err := cwd()
			if err != nil {
				return err
			}

			if err := app.mgr.RemoveSession(cmd.Context(), args[0], rootPath); err != nil {
				return err
			}
			cli.Successf("Removed workspace '%s'", args[0])
			return nil
		},
	}
}

func newWorkspaceLsCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List tracked workspaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}

			records, err := app.mgr.ListWorkspaces(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(records)
			}
			if len(records) == 0 {
				fmt.Println("No workspaces. Run 'par workspace start <label>' to create one.")
				return nil
			}
			for _, rec := range records {
				fmt.Printf("%s %s (%d repositories, %s)\n",
					cli.Liveness(rec.Alive), rec.Label, len(rec.Repos), rec.Status)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output records as JSON")
	return cmd
}

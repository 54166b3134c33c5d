package cmd

import (
	"github.com/spf13/cobra"
)

func newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <label>",
		Short: "Attach or switch to a tracked session",
		Long: `Attach the terminal to a tracked session, or switch the current tmux
client to it when already inside tmux. A session that died outside par is
recreated at its recorded worktree first.

The label '-' opens the previously opened session.

Examples:
  par open feat-auth
  # Toggle between the two most recent sessions
  par open -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			return app.mgr.Open(cmd.Context(), args[0])
		},
	}
}

package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/partools/par/cli"
)

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <label|all> <command...>",
		Short: "Type a command into a session without attaching",
		Long: `Send a shell command to a tracked session's first pane, followed by
Enter, without attaching to it. The target 'all' sends to every live
session and skips dead ones.

Examples:
  par send feat-auth "git pull"
  par send all "git fetch --all"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}

			text := strings.Join(args[1:], " ")
			if args[0] == "all" {
				sent, err := app.mgr.SendAll(cmd.Context(), text)
				if err != nil {
					return err
				}
				cli.Successf("Sent to %d live sessions", sent)
				return nil
			}

			if err := app.mgr.Send(cmd.Context(), args[0], text); err != nil {
				return err
			}
			cli.Successf("Sent to '%s'", args[0])
			return nil
		},
	}
}

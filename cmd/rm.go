package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/partools/par/cli"
)

func newRmCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rm <label|all>",
		Short: "Remove a session or workspace and all its resources",
		Long: `Tear down a tracked session or workspace: kill its tmux session, remove
its worktrees, delete the branch par created, and drop the record.
Checkout sessions keep their branch. Resources that are already gone are
skipped.

'rm all' removes every tracked session and workspace after confirmation.

Examples:
  par rm feat-auth
  par rm all
  par rm all --force`,
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

			if args[0] == "all" {
				return app.mgr.RemoveAll(cmd.Context(), repoPath, func(count int) bool {
					if force {
						return true
					}
					return confirm(fmt.Sprintf("Remove all %d sessions and workspaces?", count))
				})
			}

			if err := app.mgr.RemoveSession(cmd.Context(), args[0], repoPath); err != nil {
				return err
			}
			cli.Successf("Removed '%s'", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	return cmd
}

// confirm asks a yes/no question on the terminal. Anything but y/yes is no.
func confirm(question string) bool {
	fmt.Printf("%s [y/N] ", question)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

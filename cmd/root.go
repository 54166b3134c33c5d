// Package cmd defines the par command tree.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/partools/par/cli"
)

// NewRootCmd builds the full par command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "par",
		Short: "Manage parallel git worktrees with tmux sessions",
		Long: `par runs several lines of work on one repository side by side. Each
session pairs a git worktree on its own branch with a tmux session rooted
there, so switching tasks is switching sessions, not stashing.

Examples:
  # Start a new session on a fresh branch
  par start feat-auth

  # Check out an open pull request into its own session
  par checkout pr/142

  # Jump back to the previously opened session
  par open -`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Show full error details")

	rootCmd.AddCommand(
		newStartCmd(),
		newCheckoutCmd(),
		newOpenCmd(),
		newRmCmd(),
		newLsCmd(),
		newSendCmd(),
		newWorkspaceCmd(),
		newControlCenterCmd(),
		newVersionCmd(),
	)

	cli.ApplyStyledHelpRecursive(rootCmd)
	return rootCmd
}

// Execute runs the command tree and maps failures to single-line messages
// with a non-zero exit.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
		cli.NewErrorHandler(verbose).Handle(err)
		os.Exit(1)
	}
}

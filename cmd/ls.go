package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/partools/par/cli"
	"github.com/partools/par/session"
)

func newLsCmd() *cobra.Command {
	var all bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List tracked sessions",
		Long: `List tracked sessions for the current repository. Liveness of each tmux
session is probed at read time; a dead marker means the record exists but
its session has exited.

Examples:
  par ls
  # Every repository, not just the current one
  par ls --all
  par ls --json`,
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

			records, err := app.mgr.List(cmd.Context(), repoPath, all)
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(records)
			}
			if len(records) == 0 {
				fmt.Println("No sessions. Run 'par start <label>' to create one.")
				return nil
			}
			printRecords(records, all)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "List sessions from every repository")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output records as JSON")
	return cmd
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printRecords(records []session.ListedRecord, showRepo bool) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if showRepo {
		fmt.Fprintln(w, "  \tLABEL\tKIND\tBRANCH\tSTATUS\tREPO")
	} else {
		fmt.Fprintln(w, "  \tLABEL\tKIND\tBRANCH\tSTATUS")
	}
	for _, rec := range records {
		if showRepo {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				cli.Liveness(rec.Alive), rec.Label, rec.Kind, rec.BranchName, rec.Status, rec.RepositoryName)
		} else {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				cli.Liveness(rec.Alive), rec.Label, rec.Kind, rec.BranchName, rec.Status)
		}
	}
	w.Flush()
}

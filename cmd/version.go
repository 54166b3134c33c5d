package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/partools/par/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the par version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.GetInfo().String())
		},
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "copyscan",
		Short:         "Detect and identify copyrighted music inside audio recordings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newDetectCommand())
	root.AddCommand(newTimelineCommand())
	root.AddCommand(newResultsCommand())

	return root
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrgoonie/claudekit-cli-sub009/cmd"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Long:  `Print the version, commit, and build date of ck.`,
		Args:  cobra.NoArgs,
		Run: func(c *cobra.Command, _ []string) {
			w := c.OutOrStdout()
			fmt.Fprintf(w, "ck version %s\n", cmd.Version)
			fmt.Fprintf(w, "  commit: %s\n", cmd.Commit)
			fmt.Fprintf(w, "  built:  %s\n", cmd.Date)
		},
	}
}

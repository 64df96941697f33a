package commands

import "github.com/spf13/cobra"

func newInstallCmd(g *globalOptions) *cobra.Command {
	o := &reconcileOptions{}
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install kit items for the selected providers",
		Long: `Install writes kit items into each selected provider's directories and
records every file in the scope's installation registry.

Install is additive: items already installed are updated when the kit
changed them, but nothing is removed. Files you modified, and files ck did
not install, are reported as conflicts and left alone unless --force or
--on-conflict says otherwise.`,
		Example: `  # Preview the plan
  ck install --kit ./engineer --dry-run

  # Install only two agents for Codex, globally
  ck install --kit ./engineer --item planner --item tester -p codex -g

  # Back up conflicting files and replace them
  ck install --kit ./engineer --on-conflict backup

  See Also: ck update, ck status`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReconcile(cmd, g, o)
		},
	}
	o.addFlags(cmd)
	return cmd
}

package commands

import "github.com/spf13/cobra"

func newUpdateCmd(g *globalOptions) *cobra.Command {
	o := &reconcileOptions{full: true}
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Reconcile installed items with a new kit version",
		Long: `Update brings the selected providers in line with the kit: new items are
installed, changed items updated, and items the kit no longer ships are
removed when they are unmodified.

Renames and provider path moves listed in the kit's migration manifest
are applied once per scope. The applied manifest version is recorded only
after every migration in the scope succeeded.

With --item or --type, items outside the selection are left untouched and
nothing is removed.`,
		Example: `  # See what an update would do, with diffs
  ck update --kit ./engineer --dry-run --diff

  # Update, asking about each conflict
  ck update --kit ./engineer --on-conflict prompt

  See Also: ck install, ck uninstall`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReconcile(cmd, g, o)
		},
	}
	o.addFlags(cmd)
	return cmd
}

package commands

import (
	"github.com/spf13/cobra"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/cleanup"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/logging"
)

type uninstallOptions struct {
	all       bool
	types     []string
	legacyKit string
	force     bool
	dryRun    bool
	json      bool
}

func newUninstallCmd(g *globalOptions) *cobra.Command {
	o := &uninstallOptions{}
	cmd := &cobra.Command{
		Use:   "uninstall [items...]",
		Short: "Remove installed items",
		Long: `Uninstall removes files ck installed, as recorded in the scope's
installation registry.

Unmodified files are removed. Files you modified are kept unless --force
is given, in which case they are backed up first. Files ck did not install
are never touched.

With --legacy-kit, uninstall instead removes the files of a kit recorded
in the older .claude/metadata.json format.`,
		Example: `  # Remove two agents from every provider
  ck uninstall planner tester

  # Remove everything installed for Cursor
  ck uninstall --all -p cursor

  # Remove a kit installed by an older ck
  ck uninstall --legacy-kit engineer

  See Also: ck status, ck cleanup`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUninstall(cmd, g, o, args)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&o.all, "all", false, "remove every installed item in the scope")
	f.StringSliceVar(&o.types, "type", nil, "only these types")
	f.StringVar(&o.legacyKit, "legacy-kit", "", "remove a kit tracked in legacy metadata")
	f.BoolVar(&o.force, "force", false, "also remove modified files (after backing them up)")
	f.BoolVar(&o.dryRun, "dry-run", false, "show what would be removed")
	f.BoolVar(&o.json, "json", false, "output in JSON format")
	return cmd
}

func runUninstall(cmd *cobra.Command, g *globalOptions, o *uninstallOptions, items []string) error {
	ctx := cmd.Context()
	logger := logging.FromContext(ctx)
	scope, err := g.scope()
	if err != nil {
		return err
	}

	var report cleanup.Report
	if o.legacyKit != "" {
		report, err = cleanup.UninstallLegacy(ctx, cleanup.LegacyRequest{
			MetadataPath: scope.LegacyMetadata(),
			Kit:          o.legacyKit,
			Force:        o.force,
			DryRun:       o.dryRun,
			Workers:      g.cfg.Workers(),
			Logger:       logger,
		})
		if err != nil {
			return asUserError(err, "check the kit name in "+scope.LegacyMetadata())
		}
		return finishReport(cmd.OutOrStdout(), report, scope.Root, o.json)
	}

	types, err := parseTypes(o.types)
	if err != nil {
		return err
	}
	backups, err := g.backups()
	if err != nil {
		return err
	}
	report, err = cleanup.Uninstall(ctx, cleanup.Request{
		Ledger:    g.ledger(scope),
		Providers: g.providers,
		Types:     types,
		Items:     items,
		All:       o.all,
		Force:     o.force,
		DryRun:    o.dryRun,
		Backups:   backups,
		Workers:   g.cfg.Workers(),
		Logger:    logger,
	})
	if err != nil {
		return asUserError(err, "run 'ck status' to see what is installed")
	}
	return finishReport(cmd.OutOrStdout(), report, scope.Root, o.json)
}

// asUserError marks not-found errors as user errors.
func asUserError(err error, suggestion string) error {
	if errors.Is(err, errors.ErrNotFound) {
		return errors.NewUserError(err, suggestion)
	}
	return err
}

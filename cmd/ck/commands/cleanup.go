package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/checksum"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/cleanup"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/logging"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/paths"
)

// skillBackupsDir is where standalone skills are stashed, under the backup
// root. It is stable so an interrupted cleanup resumes from its backups.
const skillBackupsDir = "standalone-skills"

type cleanupOptions struct {
	prefix string
	force  bool
	dryRun bool
	json   bool
}

func newCleanupCmd(g *globalOptions) *cobra.Command {
	o := &cleanupOptions{}
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove files left behind by older kit layouts",
		Long: `Cleanup removes leftovers of earlier installs. Only files ck installed
and nobody modified are removed; everything else is reported and kept.`,
		Example: `  # Remove unprefixed commands superseded by commands/ck/
  ck cleanup prefix --prefix ck

  # Back up and remove standalone skills now shipped inside the kit
  ck cleanup skills brainstorm debugging --dry-run

  See Also: ck uninstall`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	f := cmd.PersistentFlags()
	f.BoolVar(&o.dryRun, "dry-run", false, "show what would be removed")
	f.BoolVar(&o.json, "json", false, "output in JSON format")

	prefix := &cobra.Command{
		Use:   "prefix",
		Short: "Remove command files superseded by prefixed copies",
		Long: `For every commands/<prefix>/**/*.md of the selected providers, remove the
unprefixed commands/**/*.md with the same relative path when ck installed
it and it is unmodified.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPrefixCleanup(cmd, g, o)
		},
	}
	prefix.Flags().StringVar(&o.prefix, "prefix", "ck", "namespace directory under commands/")
	prefix.Flags().BoolVar(&o.force, "force", false, "also remove modified files")

	skills := &cobra.Command{
		Use:   "skills NAME...",
		Short: "Back up and remove standalone skill directories",
		Long: `Back up each named skill directory of the selected providers, then remove
it. A directory holding any modified or untracked file is left alone.
Backups go under the backup directory and an interrupted run resumes
from them.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSkillsCleanup(cmd, g, o, args)
		},
	}

	cmd.AddCommand(prefix, skills)
	return cmd
}

func runPrefixCleanup(cmd *cobra.Command, g *globalOptions, o *cleanupOptions) error {
	ctx := cmd.Context()
	scope, err := g.scope()
	if err != nil {
		return err
	}
	ledger := g.ledger(scope)
	prov := cleanup.LoadProvenance(scope, ledger.Snapshot())

	var all cleanup.Report
	for _, name := range g.selectedProviders() {
		dir, err := g.catalog.BaseDir(name, scope.Global, scope.Root)
		if err != nil {
			return err
		}
		if _, err := os.Stat(filepath.Join(dir, "commands")); err != nil {
			continue
		}
		report, err := cleanup.PrefixCleanup(ctx, cleanup.PrefixRequest{
			Dir:        dir,
			Prefix:     o.prefix,
			Provenance: prov,
			Ledger:     ledger,
			Force:      o.force,
			DryRun:     o.dryRun,
			Workers:    g.cfg.Workers(),
			Logger:     logging.FromContext(ctx).With("provider", name),
		})
		if err != nil {
			return err
		}
		all.Entries = append(all.Entries, report.Entries...)
	}
	return finishReport(cmd.OutOrStdout(), all, scope.Root, o.json)
}

func runSkillsCleanup(cmd *cobra.Command, g *globalOptions, o *cleanupOptions, names []string) error {
	ctx := cmd.Context()
	scope, err := g.scope()
	if err != nil {
		return err
	}
	backupRoot, err := g.cfg.BackupDir()
	if err != nil {
		return errors.NewConfigError(err)
	}
	ledger := g.ledger(scope)
	prov := cleanup.LoadProvenance(scope, ledger.Snapshot())

	var all cleanup.Report
	for _, name := range g.selectedProviders() {
		dir, err := g.catalog.BaseDir(name, scope.Global, scope.Root)
		if err != nil {
			return err
		}
		report, err := cleanup.StandaloneSkills(ctx, cleanup.SkillsRequest{
			SkillsDir:  filepath.Join(dir, "skills"),
			Names:      names,
			BackupDir:  filepath.Join(backupRoot, skillBackupsDir, name, scopeKey(scope)),
			Provenance: prov,
			Ledger:     ledger,
			DryRun:     o.dryRun,
			Workers:    g.cfg.Workers(),
			Logger:     logging.FromContext(ctx).With("provider", name),
		})
		if err != nil {
			return err
		}
		all.Entries = append(all.Entries, report.Entries...)
	}
	return finishReport(cmd.OutOrStdout(), all, scope.Root, o.json)
}

// scopeKey names a scope's backup directory: "global", or a hash of the
// project root so different projects never share backups.
func scopeKey(s paths.Scope) string {
	if s.Global {
		return s.Name()
	}
	return "project-" + checksum.String(s.Root)[:12]
}

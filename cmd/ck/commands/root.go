// Package commands implements the CLI commands for ck.
package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrgoonie/claudekit-cli-sub009/cmd"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/backup"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/config"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/logging"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/paths"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/provider"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/registry"
)

// debugEnv raises verbosity when no -v flag is given: 1 or true for debug,
// 2 for trace.
const debugEnv = "CK_DEBUG"

// globalOptions holds the persistent flags and what PersistentPreRunE
// derives from them.
type globalOptions struct {
	verbosity  int
	quiet      bool
	logFormat  string
	logFile    string
	configPath string
	providers  []string
	global     bool
	projectDir string

	cfg     *config.Config
	catalog *provider.Catalog
	logger  *slog.Logger
	logOut  io.Closer
}

// NewRootCmd builds the ck command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "ck",
		Short: "Install and reconcile AI assistant kits across providers",
		Long: `ck installs kits of agents, commands, skills, rules, hooks and config
files into the directories of more than a dozen AI coding assistants.

Every file ck writes is tracked by its SHA-256 checksum, so later runs can
tell files ck installed and nobody touched apart from files you edited or
created yourself. Updates and uninstalls only ever replace or remove the
former; anything else is reported as a conflict and left alone unless you
ask otherwise.

Use --provider to choose providers (default from config) and --global to
work in your home directory instead of the current project.`,
		Example: `  # Preview what installing a kit would change
  ck install --kit ./engineer --dry-run

  # Install for Claude and Codex
  ck install --kit ./engineer -p claude -p codex

  # Update, removing items the kit dropped and applying migrations
  ck update --kit ./engineer

  # Show what is installed and whether it was modified
  ck status

  See Also: ck uninstall, ck cleanup, ck config show`,
		Version:       cmd.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			if err := opts.setupLogging(c); err != nil {
				return err
			}
			switch c.Name() {
			case "help", "version", "gen-doc":
				return nil
			}
			return opts.loadConfig()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.logOut != nil {
				_ = opts.logOut.Close()
			}
		},
		RunE: func(c *cobra.Command, _ []string) error {
			return c.Help()
		},
	}
	root.SetVersionTemplate("ck version {{.Version}}\n")

	f := root.PersistentFlags()
	f.CountVarP(&opts.verbosity, "verbose", "v", "increase verbosity level (e.g., -v, -vv, -vvv)")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress non-error output")
	f.StringVar(&opts.logFormat, "log-format", "text", "log format: text, json")
	f.StringVar(&opts.logFile, "log-file", "", "also write logs to file in JSON format")
	f.StringVar(&opts.configPath, "config", "", "config file (default: ./config.yaml or ~/.config/claudekit/config.yaml)")
	f.StringSliceVarP(&opts.providers, "provider", "p", nil,
		"target provider(s): "+strings.Join(provider.Names(), ", ")+" (default from config)")
	f.BoolVarP(&opts.global, "global", "g", false, "use the global scope (home directory)")
	f.StringVar(&opts.projectDir, "project-dir", "", "project directory (default: current directory)")

	root.AddCommand(
		newInstallCmd(opts),
		newUpdateCmd(opts),
		newUninstallCmd(opts),
		newCleanupCmd(opts),
		newStatusCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
		newGenDocCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	backup.Version = cmd.Version
	return NewRootCmd().Execute()
}

// setupLogging configures the logger based on verbosity flags.
func (o *globalOptions) setupLogging(c *cobra.Command) error {
	if o.quiet && o.verbosity > 0 {
		return errors.NewUserError(errors.New("conflicting flags"), "cannot use --quiet and --verbose together")
	}

	var level slog.Level
	if o.quiet {
		level = slog.LevelError
	} else {
		v := o.verbosity
		if v == 0 {
			switch os.Getenv(debugEnv) {
			case "1", "true":
				v = 2
			case "2":
				v = 3
			}
		}
		level = logging.LevelFromVerbosity(v)
	}

	var format logging.Format
	switch logging.Format(o.logFormat) {
	case logging.FormatText, logging.FormatJSON:
		format = logging.Format(o.logFormat)
	default:
		return errors.NewUserError(errors.Newf("unknown log format %q", o.logFormat), "use --log-format text or --log-format json")
	}

	logger := logging.New(logging.Config{Level: level, Format: format, Output: c.ErrOrStderr()})
	if o.logFile != "" {
		f, err := os.OpenFile(o.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return errors.NewUserError(err, "failed to open log file")
		}
		o.logOut = f
		logger = slog.New(logging.NewMultiHandler(
			logger.Handler(),
			slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}),
		))
	}
	o.logger = logger

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c.SetContext(logging.NewContext(ctx, logger))
	return nil
}

// loadConfig reads configuration and checks the --provider flag against the
// effective provider catalog.
func (o *globalOptions) loadConfig() error {
	config.Init()
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return errors.NewConfigError(err)
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		return errors.NewConfigError(err)
	}
	o.cfg, o.catalog = cfg, catalog

	var invalid []string
	for _, p := range o.providers {
		if !catalog.Valid(p) {
			invalid = append(invalid, p)
		}
	}
	if len(invalid) > 0 {
		err := errors.Wrapf(errors.ErrUnknownProvider, "%s (valid: %s)",
			strings.Join(invalid, ", "), strings.Join(catalog.Names(), ", "))
		return errors.NewUserError(err, "Run 'ck --help' to see valid providers")
	}
	return nil
}

// selectedProviders returns the --provider values, or the configured
// defaults, sorted and deduplicated.
func (o *globalOptions) selectedProviders() []string {
	out := slices.Clone(o.providers)
	if len(out) == 0 {
		out = slices.Clone(o.cfg.DefaultProviders)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func (o *globalOptions) scope() (paths.Scope, error) {
	scope, err := paths.ResolveScope(o.global, o.projectDir)
	if err != nil {
		return paths.Scope{}, errors.NewSystemError(err, "pass --project-dir explicitly")
	}
	return scope, nil
}

func (o *globalOptions) ledger(scope paths.Scope) *registry.Ledger {
	return registry.OpenLedger(scope.LedgerPath(), o.logger)
}

func (o *globalOptions) backups() (*backup.Manager, error) {
	dir, err := o.cfg.BackupDir()
	if err != nil {
		return nil, errors.NewConfigError(err)
	}
	return backup.NewManager(
		backup.WithBackupDir(dir),
		backup.WithRetentionCount(o.cfg.Backup.Retention),
		backup.WithLogger(o.logger),
	), nil
}

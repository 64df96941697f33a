package commands

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/kit"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/logging"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/manifest"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/paths"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/prompt"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/reconcile"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/registry"
)

// reconcileOptions are the flags shared by install and update.
type reconcileOptions struct {
	kitDir     string
	items      []string
	types      []string
	dryRun     bool
	diff       bool
	json       bool
	force      bool
	onConflict string

	// full enables orphan pruning and manifest migrations.
	full bool
	// resolver settles prompt conflicts. Nil uses the terminal picker.
	resolver *prompt.Resolver
	// interactive reports whether prompting is possible.
	interactive func() bool
}

func (o *reconcileOptions) addFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.kitDir, "kit", "", "path to the extracted kit directory")
	f.StringSliceVar(&o.items, "item", nil, "only these item names")
	f.StringSliceVar(&o.types, "type", nil, "only these types: agent, command, skill, config, rules, hooks")
	f.BoolVar(&o.dryRun, "dry-run", false, "show the plan without changing anything")
	f.BoolVar(&o.diff, "diff", false, "show content diffs for changed files")
	f.BoolVar(&o.json, "json", false, "output in JSON format")
	f.BoolVar(&o.force, "force", false, "overwrite or remove files even if modified")
	f.StringVar(&o.onConflict, "on-conflict", "", "conflict resolution: skip, backup, overwrite, prompt (default from config)")
	_ = cmd.MarkFlagRequired("kit")
}

type planOutput struct {
	Scope  string         `json:"scope"`
	Root   string         `json:"root"`
	DryRun bool           `json:"dryRun"`
	Plan   reconcile.Plan `json:"plan"`
	Result *resultOutput  `json:"result,omitempty"`
}

func runReconcile(cmd *cobra.Command, g *globalOptions, o *reconcileOptions) error {
	ctx := cmd.Context()
	logger := logging.FromContext(ctx)
	w := cmd.OutOrStdout()

	types, err := parseTypes(o.types)
	if err != nil {
		return err
	}
	modified, untracked, err := o.policies(g)
	if err != nil {
		return err
	}

	items, err := kit.NewScanner(logger, g.cfg.Kit.Ignore).Scan(o.kitDir)
	if err != nil {
		return errors.NewUserError(err, "pass --kit the directory of an extracted kit")
	}
	filtered := len(o.items) > 0 || len(types) > 0
	items = filterItems(items, o.items, types)
	if filtered && len(items) == 0 {
		return errors.NewUserError(errors.Wrap(errors.ErrNotFound, "no kit items match the filters"), "check --item and --type")
	}

	scope, err := g.scope()
	if err != nil {
		return err
	}
	ledger := g.ledger(scope)

	in := reconcile.Input{
		Items:     items,
		Providers: g.selectedProviders(),
		Catalog:   g.catalog,
		Scopes:    []reconcile.ScopeInput{{Scope: scope, Registry: ledger.Snapshot()}},
		Manifest:  manifest.LoadFromKit(o.kitDir, logger),
		Renderer:  kit.DefaultRenderer{},
		Options: reconcile.Options{
			Force: o.force,
			// a filtered run cannot tell dropped items from unselected ones
			PruneOrphans:    o.full && !filtered,
			Migrations:      o.full,
			ModifiedPolicy:  modified,
			UntrackedPolicy: untracked,
		},
	}
	probePaths, err := reconcile.CollectProbePaths(in)
	if err != nil {
		return errors.NewUserError(err, "check --provider and the kit item names")
	}
	if in.Probes, err = reconcile.ProbePaths(ctx, probePaths, g.cfg.Workers()); err != nil {
		return err
	}
	plan, err := reconcile.Build(in)
	if err != nil {
		return errors.NewUserError(err, "check --provider and the kit item names")
	}
	logger.Debug("plan built", "scope", scope.Name(), "actions", len(plan.Actions), "changes", plan.Summary.Changes())

	out := planOutput{Scope: scope.Name(), Root: scope.Root, DryRun: o.dryRun, Plan: plan}
	if !o.json {
		printPlan(w, plan, g.verbosity > 0)
		if o.diff {
			if err := printDiffs(w, plan); err != nil {
				return err
			}
		}
	}
	if o.dryRun {
		if o.json {
			return writeJSON(w, out)
		}
		fmt.Fprintln(w, "\nDry run: no files were changed.")
		return nil
	}

	if err := o.resolvePrompts(cmd.ErrOrStderr(), &plan, logger.Warn); err != nil {
		return err
	}

	backups, err := g.backups()
	if err != nil {
		return err
	}
	exec := &reconcile.Executor{
		Ledgers: map[paths.Scope]*registry.Ledger{scope: ledger},
		Backups: backups,
		Workers: g.cfg.Workers(),
		Retry:   g.cfg.RetryPolicy(),
		Logger:  logger,
	}
	res, applyErr := exec.Apply(ctx, plan)

	if o.json {
		ro := newResultOutput(res)
		out.Plan, out.Result = plan, &ro
		if err := writeJSON(w, out); err != nil {
			return err
		}
	} else {
		printResult(w, res)
	}
	if applyErr != nil {
		return errors.NewSystemError(applyErr, "re-run the command to finish the remaining actions")
	}
	if err := res.Err(); err != nil {
		return errors.NewSystemError(err, "see the errors above; completed actions were recorded")
	}
	return nil
}

// policies returns the modified and untracked conflict resolutions, from
// --on-conflict when given and from config otherwise.
func (o *reconcileOptions) policies(g *globalOptions) (reconcile.Resolution, reconcile.Resolution, error) {
	if o.onConflict != "" {
		r, err := reconcile.ParseResolution(o.onConflict)
		if err != nil {
			return "", "", errors.NewUserError(err, "use --on-conflict skip, backup, overwrite or prompt")
		}
		return r, r, nil
	}
	modified, err := reconcile.ParseResolution(g.cfg.Conflicts.Modified)
	if err != nil {
		return "", "", errors.NewConfigError(err)
	}
	untracked, err := reconcile.ParseResolution(g.cfg.Conflicts.Untracked)
	if err != nil {
		return "", "", errors.NewConfigError(err)
	}
	return modified, untracked, nil
}

// resolvePrompts asks about prompt conflicts, or skips them when no
// terminal is attached or output is JSON.
func (o *reconcileOptions) resolvePrompts(w io.Writer, plan *reconcile.Plan, warn func(string, ...any)) error {
	pending := 0
	for _, i := range plan.Conflicts() {
		if plan.Actions[i].Resolution == reconcile.ResolvePrompt {
			pending++
		}
	}
	if pending == 0 {
		return nil
	}

	interactive := o.interactive
	if interactive == nil {
		interactive = func() bool { return logging.IsTTY(os.Stdin) && logging.IsTTY(os.Stdout) }
	}
	if o.json || !interactive() {
		warn("no terminal to prompt on, skipping conflicts", "conflicts", pending)
		prompt.SkipAll(plan)
		return nil
	}

	resolver := o.resolver
	if resolver == nil {
		resolver = prompt.NewResolver()
	}
	answered, err := resolver.Resolve(plan)
	if errors.Is(err, prompt.ErrAborted) {
		return errors.NewUserError(err, "no files were changed")
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Resolved %d conflict(s).\n", answered)
	return nil
}

func parseTypes(names []string) ([]kit.Type, error) {
	out := make([]kit.Type, 0, len(names))
	for _, n := range names {
		t, err := kit.ParseType(n)
		if err != nil {
			return nil, errors.NewUserError(err, "valid types: agent, command, skill, config, rules, hooks")
		}
		out = append(out, t)
	}
	return out, nil
}

func filterItems(items []kit.Item, names []string, types []kit.Type) []kit.Item {
	if len(names) == 0 && len(types) == 0 {
		return items
	}
	var out []kit.Item
	for _, it := range items {
		if len(names) > 0 && !slices.Contains(names, it.Name) {
			continue
		}
		if len(types) > 0 && !slices.Contains(types, it.Type) {
			continue
		}
		out = append(out, it)
	}
	return out
}

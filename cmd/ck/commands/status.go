package commands

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/metadata"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/ownership"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/paths"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/registry"
)

type statusRecord struct {
	Provider    string    `json:"provider"`
	Type        string    `json:"type"`
	Item        string    `json:"item"`
	Path        string    `json:"path"`
	Ownership   string    `json:"ownership"`
	Missing     bool      `json:"missing,omitempty"`
	InstalledAt time.Time `json:"installedAt"`
}

type legacyKit struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Files   int    `json:"files"`
}

type statusOutput struct {
	Scope                  string         `json:"scope"`
	Root                   string         `json:"root"`
	AppliedManifestVersion string         `json:"appliedManifestVersion,omitempty"`
	Installations          []statusRecord `json:"installations"`
	LegacyKits             []legacyKit    `json:"legacyKits,omitempty"`
}

func newStatusCmd(g *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show installed items and whether they were modified",
		Long: `Status lists the installation registry of the scope with the live
ownership of every file: ck (unmodified), ck-modified (edited since
install) or missing. Kits recorded in legacy metadata are listed too.`,
		Example: `  ck status
  ck status -g -p codex --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := g.scope()
			if err != nil {
				return err
			}
			out, err := collectStatus(cmd, g, scope)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			printStatus(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output in JSON format")
	return cmd
}

func collectStatus(cmd *cobra.Command, g *globalOptions, scope paths.Scope) (statusOutput, error) {
	reg := g.ledger(scope).Snapshot()
	out := statusOutput{
		Scope:                  scope.Name(),
		Root:                   scope.Root,
		AppliedManifestVersion: reg.AppliedManifestVersion,
		Installations:          []statusRecord{},
	}

	var records []registry.Record
	for _, rec := range reg.Records() {
		if len(g.providers) == 0 || slices.Contains(g.providers, rec.Provider) {
			records = append(records, rec)
		}
	}
	reqs := make([]ownership.Request, len(records))
	for i := range records {
		reqs[i] = ownership.Request{Path: records[i].Path, Baseline: &records[i]}
	}
	classes, err := ownership.ClassifyBatch(cmd.Context(), reqs, g.cfg.Workers())
	if err != nil {
		return out, err
	}
	for _, rec := range records {
		res := classes[rec.Path]
		out.Installations = append(out.Installations, statusRecord{
			Provider:    rec.Provider,
			Type:        string(rec.Type),
			Item:        rec.Item,
			Path:        rec.Path,
			Ownership:   res.Ownership.String(),
			Missing:     !res.Exists,
			InstalledAt: rec.InstalledAt,
		})
	}

	if md, err := metadata.Load(scope.LegacyMetadata()); err == nil {
		for _, name := range md.KitNames() {
			entry, _ := md.Kit(name)
			out.LegacyKits = append(out.LegacyKits, legacyKit{Name: name, Version: entry.Version, Files: len(entry.Files)})
		}
	}
	return out, nil
}

func printStatus(w io.Writer, out statusOutput) {
	pal := newPalette(w)
	fmt.Fprintf(w, "%s %s (%s)\n", pal.header.Sprint("Scope:"), out.Scope, out.Root)
	if out.AppliedManifestVersion != "" {
		fmt.Fprintf(w, "%s %s\n", pal.header.Sprint("Manifest:"), out.AppliedManifestVersion)
	}
	fmt.Fprintln(w)

	if len(out.Installations) == 0 {
		fmt.Fprintln(w, "No items installed.")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  PROVIDER\tTYPE\tITEM\tSTATE\tPATH")
		for _, r := range out.Installations {
			state := pal.install.Sprint(r.Ownership)
			switch {
			case r.Missing:
				state = pal.del.Sprint("missing")
			case r.Ownership == ownership.ToolModified.String():
				state = pal.conflict.Sprint(r.Ownership)
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", r.Provider, r.Type, r.Item, state, displayPath(out.Root, r.Path))
		}
		_ = tw.Flush()
	}

	if len(out.LegacyKits) > 0 {
		fmt.Fprintf(w, "\n%s\n", pal.header.Sprint("Legacy kits (uninstall with --legacy-kit):"))
		for _, k := range out.LegacyKits {
			fmt.Fprintf(w, "  %s %s (%d files)\n", k.Name, k.Version, k.Files)
		}
	}
}

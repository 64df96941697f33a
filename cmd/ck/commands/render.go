package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/logging"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/paths"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/reconcile"
)

// palette holds the colors used for terminal output. Colors are disabled
// when w is not a terminal or NO_COLOR is set.
type palette struct {
	install, update, del, conflict, skip, header, dim *color.Color
}

func newPalette(w io.Writer) palette {
	p := palette{
		install:  color.New(color.FgGreen),
		update:   color.New(color.FgCyan),
		del:      color.New(color.FgRed),
		conflict: color.New(color.FgYellow, color.Bold),
		skip:     color.New(color.FgHiBlack),
		header:   color.New(color.Bold),
		dim:      color.New(color.FgHiBlack),
	}
	if !logging.SupportsColor(w) {
		for _, c := range []*color.Color{p.install, p.update, p.del, p.conflict, p.skip, p.header, p.dim} {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) forAction(k reconcile.ActionKind) *color.Color {
	switch k {
	case reconcile.ActionInstall:
		return p.install
	case reconcile.ActionUpdate:
		return p.update
	case reconcile.ActionDelete:
		return p.del
	case reconcile.ActionConflict:
		return p.conflict
	default:
		return p.skip
	}
}

// displayPath shows path relative to root when it lies inside it.
func displayPath(root, path string) string {
	if rel, err := paths.Rel(root, path); err == nil {
		return rel
	}
	return path
}

// printPlan writes a table of the plan. Skips are only listed when verbose.
func printPlan(w io.Writer, plan reconcile.Plan, verbose bool) {
	pal := newPalette(w)
	if len(plan.Actions) == 0 {
		fmt.Fprintln(w, "Nothing to do: no items matched the selected providers.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, a := range plan.Actions {
		if a.Action == reconcile.ActionSkip && !verbose {
			continue
		}
		kind := string(a.Action)
		if a.Action == reconcile.ActionConflict && a.Resolution != reconcile.ResolveNone {
			kind += " (" + string(a.Resolution) + ")"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n",
			pal.forAction(a.Action).Sprint(kind),
			a.Provider, a.Type, a.Item,
			pal.dim.Sprintf("%s  %s", displayPath(a.Root, a.Path), a.Reason))
	}
	_ = tw.Flush()

	s := plan.Summary
	fmt.Fprintf(w, "\n%s %d install, %d update, %d delete, %d conflict, %d unchanged\n",
		pal.header.Sprint("Plan:"), s.Install, s.Update, s.Delete, s.Conflict, s.Skip)
	if len(plan.Deferred) > 0 {
		fmt.Fprintln(w, pal.dim.Sprint("Migrations for other providers are pending; run update without --provider to finish them."))
	}
}

// printDiffs writes a unified diff for every action that changes file
// content.
func printDiffs(w io.Writer, plan reconcile.Plan) error {
	pal := newPalette(w)
	for _, a := range plan.Actions {
		preview, ok, err := reconcile.Diff(a, os.ReadFile, reconcile.DefaultDiffLines)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		fmt.Fprintf(w, "\n%s\n", pal.header.Sprintf("%s %s %s", a.Action, a.Provider, a.Item))
		for line := range strings.SplitSeq(strings.TrimRight(preview.Diff, "\n"), "\n") {
			switch {
			case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
				fmt.Fprintln(w, pal.header.Sprint(line))
			case strings.HasPrefix(line, "+"):
				fmt.Fprintln(w, pal.install.Sprint(line))
			case strings.HasPrefix(line, "-"):
				fmt.Fprintln(w, pal.del.Sprint(line))
			default:
				fmt.Fprintln(w, line)
			}
		}
	}
	return nil
}

type outcomeOutput struct {
	Action   reconcile.ActionKind `json:"action"`
	Provider string               `json:"provider"`
	Type     string               `json:"type"`
	Item     string               `json:"item"`
	Path     string               `json:"path"`
	Backup   string               `json:"backup,omitempty"`
	Error    string               `json:"error,omitempty"`
}

type resultOutput struct {
	Applied []outcomeOutput `json:"applied"`
	Skipped []outcomeOutput `json:"skipped"`
	Failed  []outcomeOutput `json:"failed"`
}

func outcomes(list []reconcile.Outcome) []outcomeOutput {
	out := make([]outcomeOutput, len(list))
	for i, o := range list {
		out[i] = outcomeOutput{
			Action:   o.Action.Action,
			Provider: o.Action.Provider,
			Type:     string(o.Action.Type),
			Item:     o.Action.Item,
			Path:     o.Action.Path,
			Backup:   o.BackupPath,
		}
		if o.Err != nil {
			out[i].Error = o.Err.Error()
		}
	}
	return out
}

func newResultOutput(res reconcile.Result) resultOutput {
	return resultOutput{
		Applied: outcomes(res.Applied),
		Skipped: outcomes(res.Skipped),
		Failed:  outcomes(res.Failed),
	}
}

// printResult summarizes an applied plan.
func printResult(w io.Writer, res reconcile.Result) {
	pal := newPalette(w)
	for _, o := range res.Failed {
		fmt.Fprintf(w, "  %s %s %s %s: %v\n", pal.del.Sprint("✗"), o.Action.Provider, o.Action.Type, o.Action.Item, o.Err)
	}
	for _, o := range res.Applied {
		if o.BackupPath != "" {
			fmt.Fprintf(w, "  %s backed up %s to %s\n", pal.dim.Sprint("•"), displayPath(o.Action.Root, o.Action.Path), o.BackupPath)
		}
	}
	fmt.Fprintf(w, "%s %d applied, %d skipped, %d failed\n",
		pal.header.Sprint("Done:"), len(res.Applied), len(res.Skipped), len(res.Failed))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "encoding output")
}

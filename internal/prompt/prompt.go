// Package prompt asks the user how to settle install conflicts.
package prompt

import (
	"fmt"
	"os"

	"github.com/ktr0731/go-fuzzyfinder"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/reconcile"
)

// ErrAborted is returned when the user cancels the picker.
var ErrAborted = errors.New("conflict resolution aborted")

// Finder picks an index out of n choices. label renders choice i and
// preview renders the side window for the highlighted choice.
type Finder func(n int, label func(i int) string, preview func(i, w, h int) string) (int, error)

// FuzzyFinder is the terminal Finder.
func FuzzyFinder(n int, label func(i int) string, preview func(i, w, h int) string) (int, error) {
	choices := make([]int, n)
	idx, err := fuzzyfinder.Find(choices, label, fuzzyfinder.WithPreviewWindow(preview))
	if errors.Is(err, fuzzyfinder.ErrAbort) {
		return -1, ErrAborted
	}
	return idx, err
}

type choice struct {
	resolution reconcile.Resolution
	label      string
}

var choices = []choice{
	{reconcile.ResolveSkip, "skip       keep the file on disk"},
	{reconcile.ResolveBackup, "backup     save the file, then write the kit version"},
	{reconcile.ResolveOverwrite, "overwrite  replace the file with the kit version"},
}

// Resolver settles the conflicts of a plan that are marked for prompting.
type Resolver struct {
	Find Finder
	// Read loads the current file for the diff preview.
	Read      func(string) ([]byte, error)
	DiffLines int
}

// NewResolver returns a Resolver backed by the terminal picker.
func NewResolver() *Resolver {
	return &Resolver{Find: FuzzyFinder, Read: os.ReadFile, DiffLines: reconcile.DefaultDiffLines}
}

// Resolve asks about every conflict whose resolution is prompt and records
// the answer in the plan. It returns how many conflicts were answered.
// Aborting leaves the remaining conflicts skipped.
func (r *Resolver) Resolve(plan *reconcile.Plan) (int, error) {
	answered := 0
	for _, i := range plan.Conflicts() {
		if plan.Actions[i].Resolution != reconcile.ResolvePrompt {
			continue
		}
		res, err := r.ask(plan.Actions[i])
		if err != nil {
			SkipAll(plan)
			return answered, err
		}
		plan.Resolve(i, res)
		answered++
	}
	return answered, nil
}

func (r *Resolver) ask(a reconcile.Action) (reconcile.Resolution, error) {
	header := fmt.Sprintf("%s %s %s (%s)\n%s\n\n", a.Provider, a.Type, a.Item, a.Reason, a.Path)
	preview := r.preview(a)
	idx, err := r.Find(len(choices),
		func(i int) string { return choices[i].label },
		func(i, _, _ int) string {
			if i == -1 {
				return header
			}
			return header + preview
		},
	)
	if err != nil {
		if errors.Is(err, ErrAborted) {
			return reconcile.ResolveSkip, err
		}
		return reconcile.ResolveSkip, errors.Wrapf(err, "prompting for %s", a.Path)
	}
	if idx < 0 || idx >= len(choices) {
		return reconcile.ResolveSkip, nil
	}
	return choices[idx].resolution, nil
}

func (r *Resolver) preview(a reconcile.Action) string {
	read := r.Read
	if read == nil {
		read = os.ReadFile
	}
	p, ok, err := reconcile.Diff(a, read, r.DiffLines)
	switch {
	case err != nil:
		return "diff unavailable: " + err.Error()
	case !ok:
		return "no content changes"
	}
	return p.Diff
}

// SkipAll settles every unanswered prompt as skip, so nothing is written
// without an answer.
func SkipAll(plan *reconcile.Plan) {
	for _, i := range plan.Conflicts() {
		if plan.Actions[i].Resolution == reconcile.ResolvePrompt {
			plan.Resolve(i, reconcile.ResolveSkip)
		}
	}
}

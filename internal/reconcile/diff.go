package reconcile

import (
	"fmt"
	"io/fs"
	"strings"

	"github.com/aymanbagabas/go-udiff"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
)

// DefaultDiffLines caps a rendered preview.
const DefaultDiffLines = 40

// Preview is the unified diff an action would apply.
type Preview struct {
	Path      string
	Diff      string
	Truncated bool
}

// Diff renders what writing a's content would change at a.Path. read is used
// to load the current file; a missing file diffs against empty. Actions that
// write nothing have no preview.
func Diff(a Action, read func(string) ([]byte, error), maxLines int) (Preview, bool, error) {
	if !a.Writes() && a.Action != ActionConflict {
		return Preview{}, false, nil
	}
	current, err := read(a.Path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Preview{}, false, errors.Wrapf(err, "reading %s", a.Path)
	}

	diff := udiff.Unified(a.Path+" (current)", a.Path+" (kit)", string(current), string(a.content))
	if strings.TrimSpace(diff) == "" {
		return Preview{}, false, nil
	}
	rendered, truncated := truncateLines(diff, maxLines)
	return Preview{Path: a.Path, Diff: rendered, Truncated: truncated}, true, nil
}

func truncateLines(diff string, maxLines int) (string, bool) {
	if maxLines <= 0 {
		maxLines = DefaultDiffLines
	}
	lines := strings.Split(strings.TrimRight(diff, "\n"), "\n")
	if len(lines) <= maxLines {
		return strings.Join(lines, "\n") + "\n", false
	}
	out := append(lines[:maxLines:maxLines], fmt.Sprintf("... (%d more lines)", len(lines)-maxLines))
	return strings.Join(out, "\n") + "\n", true
}

package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/cleanup"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
)

// printReport writes a cleanup report, one line per path.
func printReport(w io.Writer, r cleanup.Report, root string) {
	pal := newPalette(w)
	if len(r.Entries) == 0 {
		fmt.Fprintln(w, "Nothing to clean up.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, e := range r.Entries {
		c := pal.skip
		switch e.Status {
		case cleanup.StatusRemoved, cleanup.StatusWouldRemove, cleanup.StatusFailed:
			c = pal.del
		case cleanup.StatusPreserved:
			c = pal.conflict
		}
		detail := e.Reason
		if e.Err != nil {
			detail = e.Err.Error()
		}
		if e.Backup != "" {
			detail = "backup: " + e.Backup
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", c.Sprint(e.Status), displayPath(root, e.Path), pal.dim.Sprint(detail))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%s %d removed, %d would be removed, %d preserved, %d missing, %d failed\n",
		pal.header.Sprint("Summary:"),
		r.Count(cleanup.StatusRemoved), r.Count(cleanup.StatusWouldRemove),
		r.Count(cleanup.StatusPreserved), r.Count(cleanup.StatusMissing), r.Count(cleanup.StatusFailed))
}

// finishReport prints r and turns failed entries into a system error.
func finishReport(w io.Writer, r cleanup.Report, root string, asJSON bool) error {
	if asJSON {
		if err := writeJSON(w, r); err != nil {
			return err
		}
	} else {
		printReport(w, r, root)
	}
	if err := r.Err(); err != nil {
		return errors.NewSystemError(err, "see the failed entries above")
	}
	return nil
}

package cleanup

import (
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/logging"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/ownership"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/registry"
)

// PrefixRequest removes command files made redundant by prefixed copies.
type PrefixRequest struct {
	// Dir is the provider directory holding commands/, such as <root>/.claude.
	Dir string
	// Prefix is the namespace directory, such as "ck".
	Prefix     string
	Provenance Provenance
	// Ledger, when set, loses the records of removed files.
	Ledger  *registry.Ledger
	Force   bool
	DryRun  bool
	Workers int
	Logger  *slog.Logger
}

// PrefixCleanup finds every commands/<prefix>/**/*.md under Dir and removes
// the unprefixed commands/**/*.md it supersedes when ck installed that file
// and it is unmodified.
func PrefixCleanup(ctx context.Context, req PrefixRequest) (Report, error) {
	logger := logging.OrDiscard(req.Logger)
	prefix := strings.Trim(req.Prefix, "/")
	if prefix == "" || strings.ContainsAny(prefix, `/\`) || prefix == "." || prefix == ".." {
		return Report{}, errors.NewUserError(errors.Newf("invalid prefix %q", req.Prefix), "pass a single directory name, such as --prefix ck")
	}

	pattern := path.Join("commands", prefix, "**", "*.md")
	matches, err := doublestar.Glob(os.DirFS(req.Dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return Report{}, errors.Wrapf(err, "matching %s", pattern)
	}

	var reqs []ownership.Request
	for _, m := range matches {
		legacyRel := path.Join("commands", strings.TrimPrefix(m, path.Join("commands", prefix)+"/"))
		legacy := filepath.Join(req.Dir, filepath.FromSlash(legacyRel))
		if _, err := os.Lstat(legacy); err != nil {
			continue
		}
		reqs = append(reqs, ownership.Request{Path: legacy, Baseline: req.Provenance.Lookup(legacy)})
	}
	classes, err := ownership.ClassifyBatch(ctx, reqs, req.Workers)
	if err != nil {
		return Report{}, err
	}

	var report Report
	for _, r := range reqs {
		res := classes[r.Path]
		e := Entry{Path: r.Path, Ownership: res.Ownership}
		switch {
		case !res.Deletable(req.Force):
			e.Status, e.Reason = StatusPreserved, res.PreservationReason()
		case req.DryRun:
			e.Status = StatusWouldRemove
		default:
			e.Status = StatusRemoved
			if e.Err = removeFile(r.Path, false); e.Err == nil && req.Ledger != nil {
				e.Err = forgetPath(req.Ledger, r.Path)
			}
		}
		if e.Err != nil {
			e.Status = StatusFailed
			logger.Error("prefix cleanup failed", "path", r.Path, "error", e.Err)
		}
		report.add(e)
	}
	return report, nil
}

func forgetPath(l *registry.Ledger, abs string) error {
	rec, ok := l.Snapshot().FindByPath(abs)
	if !ok {
		return nil
	}
	return forget(l, *rec)
}

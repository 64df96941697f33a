package cleanup

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/logging"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/metadata"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/ownership"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/paths"
)

// LegacyRequest removes one kit tracked by the legacy metadata file.
type LegacyRequest struct {
	// MetadataPath is the legacy metadata file. Tracked paths are relative
	// to its directory.
	MetadataPath string
	Kit          string
	Force        bool
	DryRun       bool
	Workers      int
	Logger       *slog.Logger
}

// UninstallLegacy removes the files of a kit recorded in legacy metadata,
// deciding each by its recorded checksum. The metadata is upgraded to the
// multi-kit shape and saved without the removed files.
func UninstallLegacy(ctx context.Context, req LegacyRequest) (Report, error) {
	logger := logging.OrDiscard(req.Logger)

	md, err := metadata.Load(req.MetadataPath)
	if err != nil {
		return Report{}, err
	}
	mk, err := metadata.Upgrade(md)
	if err != nil {
		return Report{}, err
	}
	entry, ok := mk.Kit(req.Kit)
	if !ok {
		return Report{}, errors.Wrapf(errors.ErrNotFound, "kit %q in %s", req.Kit, req.MetadataPath)
	}

	root := filepath.Dir(req.MetadataPath)
	var report Report
	reqs := make([]ownership.Request, 0, len(entry.Files))
	abs := make(map[string]string, len(entry.Files))
	for i := range entry.Files {
		f := &entry.Files[i]
		p, err := paths.Join(root, f.Path)
		if err != nil {
			report.add(Entry{Path: f.Path, Status: StatusFailed, Reason: "unsafe tracked path", Err: err})
			continue
		}
		abs[f.Path] = p
		reqs = append(reqs, ownership.Request{Path: p, Baseline: f})
	}
	classes, err := ownership.ClassifyBatch(ctx, reqs, req.Workers)
	if err != nil {
		return report, err
	}

	var forgotten []string
	for _, f := range entry.Files {
		p, ok := abs[f.Path]
		if !ok {
			continue
		}
		res := classes[p]
		e := Entry{Path: p, Item: f.Path, Ownership: res.Ownership}
		switch {
		case !res.Exists:
			e.Status, e.Reason = StatusMissing, "already removed from disk"
			forgotten = append(forgotten, f.Path)
		case !res.Deletable(req.Force):
			e.Status, e.Reason = StatusPreserved, res.PreservationReason()
		case req.DryRun:
			e.Status = StatusWouldRemove
		default:
			skillFile := strings.HasPrefix(f.Path, "skills/")
			if e.Err = removeFile(p, skillFile); e.Err != nil {
				e.Status = StatusFailed
				logger.Error("legacy uninstall failed", "path", p, "error", e.Err)
			} else {
				e.Status = StatusRemoved
				forgotten = append(forgotten, f.Path)
			}
		}
		report.add(e)
	}

	if req.DryRun || len(forgotten) == 0 {
		return report, nil
	}
	mk.RemoveFiles(req.Kit, forgotten)
	if err := mk.Save(req.MetadataPath); err != nil {
		return report, err
	}
	logger.Info("updated legacy metadata", "path", req.MetadataPath, "kit", req.Kit, "forgotten", len(forgotten))
	return report, nil
}

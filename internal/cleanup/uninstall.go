package cleanup

import (
	"context"
	"log/slog"
	"slices"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/backup"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/kit"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/logging"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/ownership"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/registry"
)

// Request selects installations to remove from one scope's ledger.
type Request struct {
	Ledger *registry.Ledger
	// Providers, Types and Items narrow the selection; empty means any.
	Providers []string
	Types     []kit.Type
	Items     []string
	// All must be set to select everything when no filter is given.
	All    bool
	Force  bool
	DryRun bool
	// Backups, when set, receives a copy of every modified file removed
	// with Force.
	Backups *backup.Manager
	Workers int
	Logger  *slog.Logger
}

func (r Request) selects(rec registry.Record) bool {
	if len(r.Providers) > 0 && !slices.Contains(r.Providers, rec.Provider) {
		return false
	}
	if len(r.Types) > 0 && !slices.Contains(r.Types, rec.Type) {
		return false
	}
	if len(r.Items) > 0 && !slices.Contains(r.Items, rec.Item) {
		return false
	}
	return true
}

// Uninstall removes the selected installations. Pristine files are deleted,
// modified files only with Force, and files that vanished just lose their
// record. Preserved files keep their record so a later forced run can still
// remove them.
func Uninstall(ctx context.Context, req Request) (Report, error) {
	logger := logging.OrDiscard(req.Logger)
	if req.Ledger == nil {
		return Report{}, errors.New("uninstall requires an installation registry")
	}
	if !req.All && len(req.Providers) == 0 && len(req.Types) == 0 && len(req.Items) == 0 {
		return Report{}, errors.NewUserError(errors.New("nothing selected"), "name items to uninstall or pass --all")
	}

	var selected []registry.Record
	for _, rec := range req.Ledger.Snapshot().Records() {
		if req.selects(rec) {
			selected = append(selected, rec)
		}
	}
	if len(selected) == 0 {
		return Report{}, errors.Wrap(errors.ErrNotFound, "no matching installations")
	}

	reqs := make([]ownership.Request, len(selected))
	for i := range selected {
		reqs[i] = ownership.Request{Path: selected[i].Path, Baseline: &selected[i]}
	}
	classes, err := ownership.ClassifyBatch(ctx, reqs, req.Workers)
	if err != nil {
		return Report{}, err
	}

	var report Report
	for _, rec := range selected {
		if err := ctx.Err(); err != nil {
			return report, errors.Wrap(err, "uninstall interrupted")
		}
		res := classes[rec.Path]
		e := Entry{
			Path:      rec.Path,
			Provider:  rec.Provider,
			Type:      string(rec.Type),
			Item:      rec.Item,
			Ownership: res.Ownership,
		}

		switch {
		case !res.Exists:
			e.Status, e.Reason = StatusMissing, "already removed from disk"
			if !req.DryRun {
				e.Err = forget(req.Ledger, rec)
			}
		case !res.Deletable(req.Force):
			e.Status, e.Reason = StatusPreserved, res.PreservationReason()
		case req.DryRun:
			e.Status = StatusWouldRemove
		default:
			e.Status = StatusRemoved
			e.Backup, e.Err = remove(req, rec, res)
		}
		if e.Err != nil {
			e.Status = StatusFailed
			logger.Error("uninstall failed", "path", rec.Path, "error", e.Err)
		} else {
			logger.Info("uninstall", "status", e.Status, "provider", rec.Provider, "type", rec.Type, "item", rec.Item)
		}
		report.add(e)
	}
	return report, nil
}

func remove(req Request, rec registry.Record, res ownership.Result) (string, error) {
	var backupPath string
	if res.Ownership == ownership.ToolModified && req.Backups != nil {
		session, err := req.Backups.Session(rec.Provider)
		if err != nil {
			return "", err
		}
		if backupPath, err = session.Add(rec.Path); err != nil {
			return "", errors.Wrapf(err, "backing up %s", rec.Path)
		}
	}
	if err := removeFile(rec.Path, rec.Type == kit.TypeSkill); err != nil {
		return backupPath, errors.Wrapf(err, "removing %s", rec.Path)
	}
	return backupPath, forget(req.Ledger, rec)
}

func forget(l *registry.Ledger, rec registry.Record) error {
	err := l.Commit(func(r *registry.Registry) {
		r.Remove(rec.Provider, rec.Type, rec.Item, rec.Global)
	})
	if err != nil {
		return errors.Wrap(err, "updating installation registry")
	}
	return nil
}

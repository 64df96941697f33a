package cleanup

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/backup"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/logging"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/ownership"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/registry"
)

// SkillsRequest removes standalone skill directories.
type SkillsRequest struct {
	// SkillsDir holds one directory per skill.
	SkillsDir string
	Names     []string
	// BackupDir receives each removed skill directory before removal.
	BackupDir  string
	Provenance Provenance
	Ledger     *registry.Ledger
	DryRun     bool
	Workers    int
	Logger     *slog.Logger
}

// StandaloneSkills backs up and then removes each named skill directory
// whose every file is pristine. A directory with any modified or untracked
// file is left alone. An interrupted run resumes from the existing backup.
func StandaloneSkills(ctx context.Context, req SkillsRequest) (Report, error) {
	logger := logging.OrDiscard(req.Logger)
	if req.BackupDir == "" {
		return Report{}, errors.New("standalone skill cleanup requires a backup directory")
	}

	var report Report
	for _, name := range req.Names {
		if err := ctx.Err(); err != nil {
			return report, errors.Wrap(err, "skill cleanup interrupted")
		}
		if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
			report.add(Entry{Item: name, Status: StatusFailed, Reason: "invalid skill name", Err: errors.Wrapf(errors.ErrUnsafePath, "skill %q", name)})
			continue
		}
		e := stashSkill(ctx, req, name)
		if e.Err != nil {
			logger.Error("skill cleanup failed", "skill", name, "error", e.Err)
		} else {
			logger.Info("skill cleanup", "skill", name, "status", e.Status)
		}
		report.add(e)
	}
	return report, nil
}

func stashSkill(ctx context.Context, req SkillsRequest, name string) Entry {
	dir := filepath.Join(req.SkillsDir, name)
	dst := filepath.Join(req.BackupDir, name)
	e := Entry{Path: dir, Type: "skill", Item: name}

	state, err := backup.Inspect(dir, dst)
	if err != nil {
		e.Status, e.Err = StatusFailed, err
		return e
	}
	switch state {
	case backup.StateMissing:
		e.Status, e.Reason = StatusMissing, "skill directory not found"
		return e
	case backup.StateRemoved:
		e.Status, e.Reason, e.Backup = StatusRemoved, "already backed up and removed", dst
		return e
	}

	// a leftover backup means an earlier run already vetted this directory
	if state == backup.StateNone {
		files, err := listFiles(dir)
		if err != nil {
			e.Status, e.Err = StatusFailed, err
			return e
		}
		reqs := make([]ownership.Request, len(files))
		for i, f := range files {
			reqs[i] = ownership.Request{Path: f, Baseline: req.Provenance.Lookup(f)}
		}
		classes, err := ownership.ClassifyBatch(ctx, reqs, req.Workers)
		if err != nil {
			e.Status, e.Err = StatusFailed, err
			return e
		}
		e.Ownership = ownership.ToolPristine
		for _, f := range files {
			if res := classes[f]; res.Ownership != ownership.ToolPristine {
				e.Ownership = res.Ownership
				e.Status, e.Reason = StatusPreserved, res.PreservationReason()
				return e
			}
		}
	}

	if req.DryRun {
		e.Status = StatusWouldRemove
		return e
	}

	var files []string
	if req.Ledger != nil {
		files, _ = listFiles(dir)
	}
	if _, err := backup.Stash(dir, dst); err != nil {
		e.Status, e.Err = StatusFailed, err
		return e
	}
	e.Status, e.Backup = StatusRemoved, dst
	for _, f := range files {
		if err := forgetPath(req.Ledger, f); err != nil {
			e.Status, e.Err = StatusFailed, err
			return e
		}
	}
	return e
}

func listFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", dir)
	}
	return files, nil
}

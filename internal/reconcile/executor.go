package reconcile

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/backup"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/checksum"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/kit"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/logging"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/manifest"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/ownership"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/paths"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/registry"
	"github.com/mrgoonie/claudekit-cli-sub009/pkg/fileutil"
)

// FileSystem is the disk access the executor needs.
type FileSystem interface {
	WriteFile(path string, data []byte, perm os.FileMode) error
	ReadFile(path string) ([]byte, error)
	Remove(path string) error
}

// OSFileSystem writes atomically to the real filesystem.
type OSFileSystem struct{}

// WriteFile creates parent directories and replaces path atomically.
func (OSFileSystem) WriteFile(path string, data []byte, perm os.FileMode) error {
	return fileutil.WriteFile(path, data, perm)
}

// ReadFile reads path.
func (OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Remove removes path or an empty directory.
func (OSFileSystem) Remove(path string) error {
	return os.Remove(path)
}

// Outcome is the result of one action.
type Outcome struct {
	Action     Action
	Err        error
	BackupPath string
}

// Result collects outcomes by disposition.
type Result struct {
	Applied []Outcome
	Skipped []Outcome
	Failed  []Outcome
}

// Err is non-nil when any action failed.
func (r Result) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return errors.Wrapf(errors.ErrActionsFailed, "%d of %d", len(r.Failed),
		len(r.Applied)+len(r.Skipped)+len(r.Failed))
}

// Executor applies plans.
type Executor struct {
	FS      FileSystem
	Ledgers map[paths.Scope]*registry.Ledger
	// Backups is used by the backup conflict resolution. Optional otherwise.
	Backups *backup.Manager
	Workers int
	Retry   fileutil.RetryPolicy
	Logger  *slog.Logger
	Now     func() time.Time
}

func (e *Executor) fs() FileSystem {
	if e.FS == nil {
		return OSFileSystem{}
	}
	return e.FS
}

func (e *Executor) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now().UTC()
}

// Apply executes plan. Actions run concurrently on disjoint paths; a failed
// action never stops the others. Each completed action is committed to its
// scope's ledger before Apply moves on. The returned error is only ever the
// context's; per-action failures are in Result.Failed.
func (e *Executor) Apply(ctx context.Context, plan Plan) (Result, error) {
	logger := logging.OrDiscard(e.Logger)
	workers := e.Workers
	if workers < 1 {
		workers = 1
	}

	var (
		mu  sync.Mutex
		res Result
	)
	record := func(o Outcome, applied bool) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case o.Err != nil:
			res.Failed = append(res.Failed, o)
		case applied:
			res.Applied = append(res.Applied, o)
		default:
			res.Skipped = append(res.Skipped, o)
		}
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for _, a := range plan.Actions {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				record(Outcome{Action: a, Err: err}, false)
				return nil
			}
			o, applied := e.apply(ctx, a)
			if o.Err != nil {
				logger.Error("action failed", "action", a.Action, "provider", a.Provider,
					"type", a.Type, "item", a.Item, "path", a.Path, "error", o.Err)
			} else if applied {
				logger.Info(string(a.Action), "provider", a.Provider, "type", a.Type,
					"item", a.Item, "path", a.Path, "reason", a.Reason)
			}
			record(o, applied)
			return nil
		})
	}
	_ = g.Wait()

	for _, list := range [][]Outcome{res.Applied, res.Skipped, res.Failed} {
		slices.SortStableFunc(list, func(a, b Outcome) int { return compareActions(a.Action, b.Action) })
	}

	if err := ctx.Err(); err != nil {
		return res, errors.Wrap(err, "applying plan")
	}
	e.advanceManifest(plan, res, logger)
	return res, nil
}

// advanceManifest records the plan's manifest version in every scope whose
// migration actions all succeeded.
func (e *Executor) advanceManifest(plan Plan, res Result, logger *slog.Logger) {
	if plan.ManifestVersion == "" {
		return
	}
	blocked := make(map[paths.Scope]bool)
	for _, sc := range plan.Deferred {
		blocked[sc] = true
		logger.Warn("migrations pending for providers outside this run, manifest version not advanced",
			"scope", sc.Name(), "root", sc.Root)
	}
	for _, o := range res.Failed {
		if o.Action.Migration && !blocked[o.Action.Scope()] {
			blocked[o.Action.Scope()] = true
			logger.Warn("migrations incomplete, manifest version not advanced",
				"scope", o.Action.Scope().Name(), "root", o.Action.Root)
		}
	}
	for scope, ledger := range e.Ledgers {
		if blocked[scope] {
			continue
		}
		applied := ledger.Snapshot().AppliedManifestVersion
		if !manifest.Advances(applied, plan.ManifestVersion) {
			continue
		}
		err := ledger.Commit(func(r *registry.Registry) {
			r.AppliedManifestVersion = plan.ManifestVersion
		})
		if err != nil {
			logger.Error("recording manifest version failed", "scope", scope.Name(), "error", err)
			continue
		}
		logger.Debug("advanced manifest version", "scope", scope.Name(), "from", applied, "to", plan.ManifestVersion)
	}
}

func (e *Executor) apply(ctx context.Context, a Action) (Outcome, bool) {
	o := Outcome{Action: a}
	switch a.Action {
	case ActionInstall, ActionUpdate:
		o.Err = e.write(ctx, a)
		return o, o.Err == nil
	case ActionDelete:
		o.Err = e.delete(ctx, a)
		return o, o.Err == nil
	case ActionConflict:
		switch a.Resolution {
		case ResolveBackup:
			if e.Backups == nil {
				o.Err = errors.New("backup resolution requires a backup manager")
				return o, false
			}
			session, err := e.Backups.Session(a.Provider)
			if err != nil {
				o.Err = err
				return o, false
			}
			if _, err := os.Lstat(a.Path); err == nil {
				if o.BackupPath, err = session.Add(a.Path); err != nil {
					o.Err = errors.Wrapf(err, "backing up %s", a.Path)
					return o, false
				}
			}
			o.Err = e.write(ctx, a)
			return o, o.Err == nil
		case ResolveOverwrite:
			o.Err = e.write(ctx, a)
			return o, o.Err == nil
		default:
			return o, false
		}
	default:
		return o, false
	}
}

func (e *Executor) ledger(a Action) (*registry.Ledger, error) {
	l, ok := e.Ledgers[a.Scope()]
	if !ok {
		return nil, errors.Newf("no installation registry for %s scope at %s", a.Scope().Name(), a.Root)
	}
	return l, nil
}

// write installs a's content, verifies it and records the installation.
func (e *Executor) write(ctx context.Context, a Action) error {
	l, err := e.ledger(a)
	if err != nil {
		return err
	}
	perm := fileutil.FilePerm
	if a.Type == kit.TypeHooks {
		perm = 0o755
	}

	err = fileutil.Retry(ctx, e.Retry, func() error {
		return e.fs().WriteFile(a.Path, a.content, perm)
	})
	if err != nil {
		return errors.Wrapf(err, "writing %s", a.Path)
	}
	written, err := e.fs().ReadFile(a.Path)
	if err != nil {
		return errors.Wrapf(err, "verifying %s", a.Path)
	}

	rec := registry.Record{
		Item:           a.Item,
		Type:           a.Type,
		Provider:       a.Provider,
		Global:         a.Global,
		Path:           a.Path,
		InstalledAt:    e.now(),
		SourcePath:     a.SourcePath,
		SourceChecksum: a.SourceChecksum,
		TargetChecksum: checksum.Bytes(written),
		InstallSource:  registry.SourceKit,
	}
	if err := l.Commit(func(r *registry.Registry) { r.Upsert(rec) }); err != nil {
		return errors.Wrap(err, "recording installation")
	}

	if a.RemovePrevious && a.PreviousPath != "" && a.PreviousPath != a.Path {
		if err := e.unchanged(a.PreviousPath, a.PreviousChecksum); err != nil {
			return err
		}
		if err := e.remove(ctx, a.PreviousPath, a.Type); err != nil {
			return errors.Wrapf(err, "removing previous %s", a.PreviousPath)
		}
	}
	return nil
}

// unchanged fails when path no longer holds the content seen at planning.
// An empty want means the file was absent then.
func (e *Executor) unchanged(path, want string) error {
	data, err := e.fs().ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return errors.Wrapf(err, "verifying %s", path)
	case checksum.Bytes(data) != want:
		return errors.Newf("%s changed since planning, preserved", path)
	}
	return nil
}

// delete removes a's file and then its record. A file planned as pristine is
// re-checked so edits made after planning are never lost.
func (e *Executor) delete(ctx context.Context, a Action) error {
	l, err := e.ledger(a)
	if err != nil {
		return err
	}

	if !a.RecordOnly {
		if a.Ownership == ownership.ToolPristine {
			rec, ok := l.Snapshot().Find(a.Provider, a.Type, a.Item, a.Global)
			data, err := e.fs().ReadFile(a.Path)
			switch {
			case errors.Is(err, fs.ErrNotExist):
			case err != nil:
				return errors.Wrapf(err, "verifying %s", a.Path)
			case !ok || checksum.Bytes(data) != rec.TargetChecksum:
				return errors.Newf("%s changed since planning, preserved", a.Path)
			}
		}
		if err := e.remove(ctx, a.Path, a.Type); err != nil {
			return errors.Wrapf(err, "removing %s", a.Path)
		}
	}

	if err := l.Commit(func(r *registry.Registry) { r.Remove(a.Provider, a.Type, a.Item, a.Global) }); err != nil {
		return errors.Wrap(err, "removing installation record")
	}
	return nil
}

// remove deletes path, tolerating its absence. For skills the now empty
// skill directory is removed too.
func (e *Executor) remove(ctx context.Context, path string, typ kit.Type) error {
	err := fileutil.Retry(ctx, e.Retry, func() error {
		return e.fs().Remove(path)
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if typ == kit.TypeSkill {
		_ = e.fs().Remove(filepath.Dir(path))
	}
	return nil
}

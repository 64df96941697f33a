package reconcile

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/checksum"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/kit"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/manifest"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/paths"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/registry"
)

func TestApply_Idempotent(t *testing.T) {
	e := newEnv(t, "claude", "codex", "gemini")
	e.opts = Options{PruneOrphans: true, Migrations: true}
	items := []kit.Item{
		agent("planner", "---\ndescription: Plans\n---\nPlan things."),
		command("git/commit", "Commit it."),
		skill("brainstorm", "# Brainstorm"),
		{Name: "hook.sh", Type: kit.TypeHooks, SourcePath: "hooks/hook.sh", Content: []byte("#!/bin/sh\necho hi\n")},
	}

	first, res := e.cycle(items...)
	require.NoError(t, res.Err())
	assert.NotZero(t, first.Summary.Install)
	assert.Len(t, res.Applied, first.Summary.Install)

	second := e.plan(items...)
	assert.Zero(t, second.Summary.Changes(), "%+v", second.Actions)
	assert.Zero(t, second.Summary.Conflict)
	assert.Equal(t, len(second.Actions), second.Summary.Skip)

	info, err := os.Stat(e.path(".claude/hooks/hook.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestApply_RecordsWrittenChecksum(t *testing.T) {
	e := newEnv(t, "gemini")
	_, res := e.cycle(command("plan", "---\ndescription: Plan\n---\nMake a plan."))
	require.NoError(t, res.Err())

	rec, ok := e.ledger.Snapshot().Find("gemini", kit.TypeCommand, "plan", false)
	require.True(t, ok)
	sum, err := checksum.File(rec.Path)
	require.NoError(t, err)
	assert.Equal(t, sum, rec.TargetChecksum)
	assert.Equal(t, registry.SourceKit, rec.InstallSource)
	assert.Equal(t, "commands/plan.md", rec.SourcePath)

	// the ledger on disk matches memory
	onDisk := registry.Load(e.ledger.Path(), nil)
	assert.Equal(t, 1, onDisk.Len())
}

func TestApply_UpdateThenOrphanDelete(t *testing.T) {
	e := newEnv(t, "claude")
	e.opts.PruneOrphans = true
	e.cycle(agent("planner", "v1"), skill("old-skill", "old"))

	plan, res := e.cycle(agent("planner", "v2"))
	require.NoError(t, res.Err())
	assert.Equal(t, Summary{Update: 1, Delete: 1}, plan.Summary)

	assert.Equal(t, "v2", e.read(".claude/agents/planner.md"))
	assert.NoDirExists(t, e.path(".claude/skills/old-skill"))
	_, ok := e.ledger.Snapshot().Find("claude", kit.TypeSkill, "old-skill", false)
	assert.False(t, ok)
}

func TestApply_ConflictResolutions(t *testing.T) {
	const rel = ".claude/agents/planner.md"
	tests := []struct {
		name       string
		resolution Resolution
		wantFile   string
		applied    bool
	}{
		{"skip keeps user file", ResolveSkip, "mine", false},
		{"prompt left unresolved is skipped", ResolvePrompt, "mine", false},
		{"overwrite", ResolveOverwrite, "kit", true},
		{"backup then overwrite", ResolveBackup, "kit", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, "claude")
			e.write(rel, "mine")
			e.opts.UntrackedPolicy = tt.resolution

			plan := e.plan(agent("planner", "kit"))
			res := e.apply(plan)
			require.NoError(t, res.Err())

			assert.Equal(t, tt.wantFile, e.read(rel))
			_, recorded := e.ledger.Snapshot().Find("claude", kit.TypeAgent, "planner", false)
			assert.Equal(t, tt.applied, recorded)
			if tt.applied {
				require.Len(t, res.Applied, 1)
			} else {
				require.Len(t, res.Skipped, 1)
			}

			if tt.resolution == ResolveBackup {
				backupPath := res.Applied[0].BackupPath
				require.NotEmpty(t, backupPath)
				data, err := os.ReadFile(backupPath)
				require.NoError(t, err)
				assert.Equal(t, "mine", string(data))
			}
		})
	}
}

func TestApply_PromptResolvedBeforeExecution(t *testing.T) {
	e := newEnv(t, "claude")
	e.write(".claude/agents/planner.md", "mine")
	e.opts.UntrackedPolicy = ResolvePrompt

	plan := e.plan(agent("planner", "kit"))
	for _, i := range plan.Conflicts() {
		plan.Resolve(i, ResolveOverwrite)
	}
	res := e.apply(plan)
	require.Len(t, res.Applied, 1)
	assert.Equal(t, "kit", e.read(".claude/agents/planner.md"))
}

func TestApply_MigrationAdvancesManifestVersion(t *testing.T) {
	e := renameEnv(t, "1.0.0")
	e.manifest.Version = "2.1.0"

	_, res := e.cycle(agent("b", "agent a"))
	require.NoError(t, res.Err())

	reg := e.ledger.Snapshot()
	assert.Equal(t, "2.1.0", reg.AppliedManifestVersion)
	assert.NoFileExists(t, e.path(".claude/agents/a.md"))
	assert.FileExists(t, e.path(".claude/agents/b.md"))

	again := e.plan(agent("b", "agent a"))
	assert.Empty(t, renameDeletes(again))
	assert.Zero(t, again.Summary.Changes())
}

func TestApply_PathMigrationMovesFile(t *testing.T) {
	e := newEnv(t, "claude")
	e.seed(registry.Record{Item: "planner", Type: kit.TypeAgent, Provider: "claude", SourcePath: "agents/planner.md"},
		".claude/bots/planner.md", "planner")
	e.manifest = &manifest.Manifest{Version: "1.1.0", ProviderPathMigrations: []manifest.PathMigration{
		{Provider: "claude", Type: kit.TypeAgent, From: ".claude/bots", To: ".claude/agents", Since: "1.1.0"},
	}}
	e.opts.Migrations = true

	_, res := e.cycle(agent("planner", "planner"))
	require.NoError(t, res.Err())

	assert.NoFileExists(t, e.path(".claude/bots/planner.md"))
	assert.Equal(t, "planner", e.read(".claude/agents/planner.md"))
	rec, ok := e.ledger.Snapshot().Find("claude", kit.TypeAgent, "planner", false)
	require.True(t, ok)
	assert.Equal(t, e.path(".claude/agents/planner.md"), rec.Path)
	assert.Equal(t, "1.1.0", e.ledger.Snapshot().AppliedManifestVersion)
}

func TestApply_DeleteRechecksOwnership(t *testing.T) {
	e := newEnv(t, "claude")
	e.opts.PruneOrphans = true
	e.cycle(agent("old", "old"))

	plan := e.plan()
	require.Equal(t, 1, plan.Summary.Delete)
	// edited between planning and execution
	e.write(".claude/agents/old.md", "edited")

	res := e.apply(plan)
	require.Len(t, res.Failed, 1)
	assert.Contains(t, res.Failed[0].Err.Error(), "changed since planning")
	assert.Equal(t, "edited", e.read(".claude/agents/old.md"))
	_, ok := e.ledger.Snapshot().Find("claude", kit.TypeAgent, "old", false)
	assert.True(t, ok, "record kept when the file is preserved")
}

func TestApply_MoveRechecksPreviousPath(t *testing.T) {
	e := newEnv(t, "claude")
	e.seed(registry.Record{Item: "planner", Type: kit.TypeAgent, Provider: "claude", SourcePath: "agents/planner.md"},
		".claude/bots/planner.md", "planner")
	e.manifest = &manifest.Manifest{Version: "1.1.0", ProviderPathMigrations: []manifest.PathMigration{
		{Provider: "claude", Type: kit.TypeAgent, From: ".claude/bots", To: ".claude/agents", Since: "1.1.0"},
	}}
	e.opts.Migrations = true

	plan := e.plan(agent("planner", "planner"))
	install := only(t, plan, ActionInstall)
	require.True(t, install.RemovePrevious)
	assert.Equal(t, checksum.String("planner"), install.PreviousChecksum)
	// edited between planning and execution
	e.write(".claude/bots/planner.md", "my edits")

	res := e.apply(plan)
	require.Len(t, res.Failed, 1)
	assert.Contains(t, res.Failed[0].Err.Error(), "changed since planning")
	assert.Equal(t, "my edits", e.read(".claude/bots/planner.md"))
	assert.Equal(t, "planner", e.read(".claude/agents/planner.md"))
	assert.Empty(t, e.ledger.Snapshot().AppliedManifestVersion, "failed migration keeps the version")
}

func TestApply_ProviderSubsetDefersManifestVersion(t *testing.T) {
	e := renameEnv(t, "1.0.0")
	e.seed(registry.Record{Item: "a", Type: kit.TypeAgent, Provider: "opencode", SourcePath: "agents/a.md"},
		".opencode/agent/a.md", "agent a")

	plan, res := e.cycle(agent("b", "agent a"))
	require.NoError(t, res.Err())
	require.Len(t, plan.Deferred, 1)
	assert.Equal(t, "1.0.0", e.ledger.Snapshot().AppliedManifestVersion)
	_, ok := e.ledger.Snapshot().Find("claude", kit.TypeAgent, "a", false)
	assert.False(t, ok)

	e.providers = []string{"opencode"}
	plan, res = e.cycle(agent("b", "agent a"))
	require.NoError(t, res.Err())
	deletes := renameDeletes(plan)
	require.Len(t, deletes, 1)
	assert.Equal(t, "opencode", deletes[0].Provider)
	assert.Empty(t, plan.Deferred)
	assert.NoFileExists(t, e.path(".opencode/agent/a.md"))
	_, ok = e.ledger.Snapshot().Find("opencode", kit.TypeAgent, "a", false)
	assert.False(t, ok)
	assert.Equal(t, "2.0.0", e.ledger.Snapshot().AppliedManifestVersion)
}

var errBusy error = syscall.EBUSY

// flakyFS fails writes to one path and counts attempts.
type flakyFS struct {
	OSFileSystem
	mu       sync.Mutex
	failPath string
	err      error
	attempts int
}

func (f *flakyFS) WriteFile(path string, data []byte, perm os.FileMode) error {
	if strings.HasSuffix(path, f.failPath) {
		f.mu.Lock()
		f.attempts++
		f.mu.Unlock()
		return &fs.PathError{Op: "write", Path: path, Err: f.err}
	}
	return f.OSFileSystem.WriteFile(path, data, perm)
}

func TestApply_FailureDoesNotAbortPlan(t *testing.T) {
	e := newEnv(t, "claude")
	e.opts.Migrations = true
	e.manifest = &manifest.Manifest{Version: "3.0.0"}
	plan := e.plan(agent("a", "a"), agent("b", "b"), agent("c", "c"))

	ffs := &flakyFS{failPath: filepath.FromSlash("agents/b.md"), err: os.ErrPermission}
	ex := e.executor()
	ex.FS = ffs
	res, err := ex.Apply(context.Background(), plan)
	require.NoError(t, err)

	assert.Len(t, res.Applied, 2)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "b", res.Failed[0].Action.Item)
	assert.True(t, errors.Is(res.Err(), errors.ErrActionsFailed))
	assert.Equal(t, 1, ffs.attempts, "permission errors are not retried off windows")
	assert.Equal(t, 2, e.ledger.Snapshot().Len())
	// no failed migration action, so the version still advances
	assert.Equal(t, "3.0.0", e.ledger.Snapshot().AppliedManifestVersion)
}

func TestApply_RetriesTransientErrors(t *testing.T) {
	e := newEnv(t, "claude")
	plan := e.plan(agent("a", "a"))

	ffs := &flakyFS{failPath: filepath.FromSlash("agents/a.md"), err: errBusy}
	ex := e.executor()
	ex.FS = ffs
	ex.Retry.Attempts = 3
	ex.Retry.BaseDelay = 1
	res, err := ex.Apply(context.Background(), plan)
	require.NoError(t, err)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, 3, ffs.attempts)
}

func TestApply_FailedMigrationBlocksVersionBump(t *testing.T) {
	e := renameEnv(t, "1.0.0")
	plan := e.plan()
	require.Len(t, renameDeletes(plan), 1)

	ex := e.executor()
	ex.FS = &removeFailFS{}
	res, err := ex.Apply(context.Background(), plan)
	require.NoError(t, err)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "1.0.0", e.ledger.Snapshot().AppliedManifestVersion)
}

type removeFailFS struct{ OSFileSystem }

func (removeFailFS) Remove(path string) error {
	return &fs.PathError{Op: "remove", Path: path, Err: os.ErrPermission}
}

func TestApply_MissingLedger(t *testing.T) {
	e := newEnv(t, "claude")
	plan := e.plan(agent("a", "a"))

	ex := e.executor()
	ex.Ledgers = map[paths.Scope]*registry.Ledger{}
	res, err := ex.Apply(context.Background(), plan)
	require.NoError(t, err)
	require.Len(t, res.Failed, 1)
	assert.Contains(t, res.Failed[0].Err.Error(), "no installation registry")
}

func TestApply_Canceled(t *testing.T) {
	e := newEnv(t, "claude")
	plan := e.plan(agent("a", "a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.executor().Apply(ctx, plan)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, e.ledger.Snapshot().Len())
}

func TestDiff(t *testing.T) {
	e := newEnv(t, "claude")
	e.write(".claude/agents/planner.md", "line one\nline two\n")
	plan := e.plan(agent("planner", "line one\nline 2\n"))
	a := only(t, plan, ActionConflict)

	p, ok, err := Diff(a, os.ReadFile, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, p.Diff, "-line two")
	assert.Contains(t, p.Diff, "+line 2")
	assert.False(t, p.Truncated)

	p, ok, err = Diff(a, os.ReadFile, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, p.Truncated)
	assert.Len(t, strings.Split(strings.TrimRight(p.Diff, "\n"), "\n"), 3)

	skipped := Action{Action: ActionSkip, Path: a.Path}
	_, ok, err = Diff(skipped, os.ReadFile, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

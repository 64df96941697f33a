package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/backup"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/checksum"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/kit"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/logging"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/manifest"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/paths"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/registry"
)

func agent(name, body string) kit.Item {
	return kit.Item{Name: name, Type: kit.TypeAgent, SourcePath: "agents/" + name + ".md", Content: []byte(body)}
}

func skill(name, body string) kit.Item {
	return kit.Item{Name: name, Type: kit.TypeSkill, SourcePath: "skills/" + name + "/SKILL.md", Content: []byte(body)}
}

func command(name, body string) kit.Item {
	return kit.Item{Name: name, Type: kit.TypeCommand, SourcePath: "commands/" + name + ".md", Content: []byte(body)}
}

// env is one project scope with a persisted ledger.
type env struct {
	t         *testing.T
	scope     paths.Scope
	ledger    *registry.Ledger
	backups   *backup.Manager
	providers []string
	manifest  *manifest.Manifest
	opts      Options
}

func newEnv(t *testing.T, providers ...string) *env {
	t.Helper()
	scope := paths.Scope{Root: t.TempDir()}
	return &env{
		t:         t,
		scope:     scope,
		ledger:    registry.OpenLedger(scope.LedgerPath(), logging.ForTest(t)),
		backups:   backup.NewManager(backup.WithBackupDir(t.TempDir())),
		providers: providers,
	}
}

func (e *env) input(items []kit.Item) Input {
	e.t.Helper()
	in := Input{
		Items:     items,
		Providers: e.providers,
		Scopes:    []ScopeInput{{Scope: e.scope, Registry: e.ledger.Snapshot()}},
		Manifest:  e.manifest,
		Options:   e.opts,
	}
	list, err := CollectProbePaths(in)
	require.NoError(e.t, err)
	in.Probes, err = ProbePaths(context.Background(), list, 2)
	require.NoError(e.t, err)
	return in
}

func (e *env) plan(items ...kit.Item) Plan {
	e.t.Helper()
	plan, err := Build(e.input(items))
	require.NoError(e.t, err)
	return plan
}

func (e *env) executor() *Executor {
	return &Executor{
		Ledgers: map[paths.Scope]*registry.Ledger{e.scope: e.ledger},
		Backups: e.backups,
		Workers: 4,
		Logger:  logging.ForTest(e.t),
	}
}

func (e *env) apply(plan Plan) Result {
	e.t.Helper()
	res, err := e.executor().Apply(context.Background(), plan)
	require.NoError(e.t, err)
	return res
}

// cycle plans and applies once.
func (e *env) cycle(items ...kit.Item) (Plan, Result) {
	e.t.Helper()
	plan := e.plan(items...)
	return plan, e.apply(plan)
}

func (e *env) path(rel string) string {
	return filepath.Join(e.scope.Root, filepath.FromSlash(rel))
}

func (e *env) write(rel, content string) {
	e.t.Helper()
	p := e.path(rel)
	require.NoError(e.t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(e.t, os.WriteFile(p, []byte(content), 0o644))
}

func (e *env) read(rel string) string {
	e.t.Helper()
	data, err := os.ReadFile(e.path(rel))
	require.NoError(e.t, err)
	return string(data)
}

// seed records a pristine installation of content at rel.
func (e *env) seed(rec registry.Record, rel, content string) {
	e.t.Helper()
	e.write(rel, content)
	rec.Path = e.path(rel)
	rec.TargetChecksum = checksum.String(content)
	if rec.SourceChecksum == "" {
		rec.SourceChecksum = rec.TargetChecksum
	}
	require.NoError(e.t, e.ledger.Commit(func(r *registry.Registry) { r.Upsert(rec) }))
}

func kinds(plan Plan) map[ActionKind]int {
	out := make(map[ActionKind]int)
	for _, a := range plan.Actions {
		out[a.Action]++
	}
	return out
}

func only(t *testing.T, plan Plan, kind ActionKind) Action {
	t.Helper()
	var found []Action
	for _, a := range plan.Actions {
		if a.Action == kind {
			found = append(found, a)
		}
	}
	require.Len(t, found, 1, "want exactly one %s action in %+v", kind, plan.Actions)
	return found[0]
}

func removeFile(p string) error {
	return os.Remove(p)
}

package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/kit"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/logging"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/ownership"
)

func record(provider string, typ kit.Type, item string, global bool) Record {
	return Record{
		Item:           item,
		Type:           typ,
		Provider:       provider,
		Global:         global,
		Path:           "/p/" + provider + "/" + item,
		InstalledAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		SourcePath:     string(typ) + "s/" + item + ".md",
		SourceChecksum: "src-" + item,
		TargetChecksum: "dst-" + item,
		InstallSource:  SourceKit,
	}
}

func TestUpsertFindRemove(t *testing.T) {
	r := New()
	a := record("claude", kit.TypeAgent, "planner", false)
	r.Upsert(a)
	r.Upsert(record("claude", kit.TypeAgent, "planner", true))
	require.Equal(t, 2, r.Len())

	a.TargetChecksum = "changed"
	r.Upsert(a)
	assert.Equal(t, 2, r.Len(), "upsert must replace, not duplicate")

	got, ok := r.Find("claude", kit.TypeAgent, "planner", false)
	require.True(t, ok)
	assert.Equal(t, "changed", got.TargetChecksum)

	got.TargetChecksum = "mutated copy"
	again, _ := r.Find("claude", kit.TypeAgent, "planner", false)
	assert.Equal(t, "changed", again.TargetChecksum, "Find returns a copy")

	assert.True(t, r.Remove("claude", kit.TypeAgent, "planner", false))
	assert.False(t, r.Remove("claude", kit.TypeAgent, "planner", false))
	_, ok = r.Find("claude", kit.TypeAgent, "planner", false)
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestRecordsOrderedAndFiltered(t *testing.T) {
	r := New()
	r.Upsert(record("codex", kit.TypeSkill, "b", true))
	r.Upsert(record("claude", kit.TypeSkill, "b", false))
	r.Upsert(record("claude", kit.TypeAgent, "z", false))
	r.Upsert(record("claude", kit.TypeAgent, "a", true))

	var keys []string
	for _, rec := range r.Records() {
		keys = append(keys, rec.Provider+"/"+string(rec.Type)+"/"+rec.Item)
	}
	assert.Equal(t, []string{"claude/agent/a", "claude/agent/z", "claude/skill/b", "codex/skill/b"}, keys)

	assert.Len(t, r.ForProvider("claude"), 3)
	assert.Len(t, r.BySourcePath("skills/b.md"), 2)

	rec, ok := r.FindByPath("/p/codex/b")
	require.True(t, ok)
	assert.Equal(t, "codex", rec.Provider)
}

func TestRecordIsBaseline(t *testing.T) {
	var nilRec *Record
	var b ownership.Baseline = nilRec
	assert.Equal(t, "", b.ExpectedChecksum())

	rec := record("claude", kit.TypeAgent, "a", false)
	assert.Equal(t, ownership.Result{Ownership: ownership.ToolPristine, Exists: true},
		ownership.Decide(true, "dst-a", &rec))
	assert.Equal(t, ownership.Result{Ownership: ownership.UserOwned, Exists: true},
		ownership.Decide(true, "dst-a", nilRec))
}

func TestLoad_Missing(t *testing.T) {
	r := Load(filepath.Join(t.TempDir(), "none.json"), logging.ForTest(t))
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, CurrentVersion, r.Version)
}

func TestLoad_CorruptIsEmpty(t *testing.T) {
	for name, content := range map[string]string{
		"garbage":     "{not json",
		"wrong shape": `{"installations": "nope"}`,
		"empty":       "",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "installations.json")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			r := Load(path, logging.ForTest(t))
			assert.Equal(t, 0, r.Len())
			assert.NotNil(t, r.Installations)
		})
	}
}

func TestSaveLoad_PreservesUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".claudekit", "installations.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	original := `{
  "version": 1,
  "installations": [],
  "appliedManifestVersion": "1.2.0",
  "futureField": {"nested": [1, 2]},
  "owner": "someone"
}`
	require.NoError(t, os.WriteFile(path, []byte(original), 0o644))

	r := Load(path, logging.ForTest(t))
	assert.Equal(t, "1.2.0", r.AppliedManifestVersion)
	r.Upsert(record("claude", kit.TypeAgent, "planner", false))
	require.NoError(t, r.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, map[string]any{"nested": []any{float64(1), float64(2)}}, raw["futureField"])
	assert.Equal(t, "someone", raw["owner"])

	again := Load(path, logging.ForTest(t))
	require.Equal(t, 1, again.Len())
	assert.Equal(t, r.Installations[0], again.Installations[0])
	assert.Equal(t, "1.2.0", again.AppliedManifestVersion)
}

func TestLoad_DedupesKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "installations.json")
	r := New()
	first := record("claude", kit.TypeAgent, "a", false)
	second := first
	second.TargetChecksum = "later"
	r.Installations = []Record{first, second}
	require.NoError(t, r.Save(path))

	loaded := Load(path, nil)
	require.Equal(t, 1, loaded.Len())
	assert.Equal(t, "later", loaded.Installations[0].TargetChecksum)
}

func TestLedgerCommitPersistsEachChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".claudekit", "installations.json")
	l := OpenLedger(path, logging.ForTest(t))

	require.NoError(t, l.Commit(func(r *Registry) { r.Upsert(record("claude", kit.TypeAgent, "a", false)) }))
	assert.Equal(t, 1, Load(path, nil).Len())

	require.NoError(t, l.Commit(func(r *Registry) { r.AppliedManifestVersion = "2.0.0" }))
	assert.Equal(t, "2.0.0", Load(path, nil).AppliedManifestVersion)
	assert.Equal(t, "2.0.0", l.Snapshot().AppliedManifestVersion)
	assert.Equal(t, path, l.Path())
}

func TestLedgerCommitConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "installations.json")
	l := NewLedger(path, nil, nil)

	var wg sync.WaitGroup
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Commit(func(r *Registry) { r.Upsert(record("claude", kit.TypeAgent, name, false)) }))
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, Load(path, nil).Len())
}

func TestLedgerCommitRollsBackOnSaveFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	l := NewLedger(filepath.Join(blocker, "installations.json"), nil, nil)

	err := l.Commit(func(r *Registry) { r.Upsert(record("claude", kit.TypeAgent, "a", false)) })
	assert.Error(t, err)
	assert.Equal(t, 0, l.Snapshot().Len())
}

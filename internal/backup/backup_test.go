package backup

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/logging"
)

func writeFile(t *testing.T, path, content string, perm os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
}

func TestSession_OnePerGroup(t *testing.T) {
	m := NewManager(WithBackupDir(t.TempDir()), WithLogger(logging.ForTest(t)))

	a, err := m.Session("claude")
	require.NoError(t, err)
	b, err := m.Session("claude")
	require.NoError(t, err)
	c, err := m.Session("codex")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotEqual(t, a.ID(), c.ID())
}

func TestSessionIDsDoNotCollide(t *testing.T) {
	root := t.TempDir()
	fixed := func() time.Time { return time.Date(2026, 1, 23, 10, 7, 12, 0, time.UTC) }

	a, err := NewManager(WithBackupDir(root), WithClock(fixed)).Session("claude")
	require.NoError(t, err)
	b, err := NewManager(WithBackupDir(root), WithClock(fixed)).Session("claude")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID(), b.ID())
	assert.True(t, strings.HasPrefix(a.ID(), "20260123T100712-"))
}

func TestSnapshotAndRestore(t *testing.T) {
	src := t.TempDir()
	agent := filepath.Join(src, ".claude", "agents", "planner.md")
	hook := filepath.Join(src, ".claude", "hooks", "pre.sh")
	writeFile(t, agent, "original agent", 0o644)
	writeFile(t, hook, "#!/bin/sh\n", 0o755)

	m := NewManager(WithBackupDir(t.TempDir()))
	s, err := m.Snapshot("claude", []string{agent, filepath.Dir(hook), filepath.Join(src, "missing")})
	require.NoError(t, err)
	require.Len(t, s.Manifest().Files, 2)

	writeFile(t, agent, "overwritten", 0o644)
	require.NoError(t, os.Remove(hook))

	require.NoError(t, m.Restore("claude", s.ID()))

	got, err := os.ReadFile(agent)
	require.NoError(t, err)
	assert.Equal(t, "original agent", string(got))
	info, err := os.Stat(hook)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestRestore_DetectsCorruption(t *testing.T) {
	src := filepath.Join(t.TempDir(), "a.md")
	writeFile(t, src, "content", 0o644)

	m := NewManager(WithBackupDir(t.TempDir()))
	s, err := m.Snapshot("claude", []string{src})
	require.NoError(t, err)
	copyPath, err := s.Add(src)
	require.NoError(t, err)
	writeFile(t, copyPath, "tampered", 0o644)

	err = m.Restore("claude", s.ID())
	assert.True(t, errors.Is(err, ErrBackupCorrupted))
}

func TestSession_AddConcurrent(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(WithBackupDir(t.TempDir()))
	s, err := m.Session("claude")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 10 {
		p := filepath.Join(dir, "f"+string(rune('a'+i)))
		writeFile(t, p, p, 0o644)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Add(p)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := m.Get("claude", s.ID())
	require.NoError(t, err)
	assert.Len(t, got.Files, 10)
}

func TestListAndPrune(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(t.TempDir(), "a.md")
	writeFile(t, src, "x", 0o644)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := range 4 {
		at := base.Add(time.Duration(i) * time.Hour)
		m := NewManager(WithBackupDir(root), WithRetentionCount(10), WithClock(func() time.Time { return at }))
		s, err := m.Snapshot("claude", []string{src})
		require.NoError(t, err)
		ids = append(ids, s.ID())
	}

	m := NewManager(WithBackupDir(root))
	list, err := m.List("claude")
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, ids[3], list[0].ID, "newest first")

	require.NoError(t, m.Prune("claude", 2))
	list, err = m.List("claude")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []string{ids[3], ids[2]}, []string{list[0].ID, list[1].ID})

	_, err = m.List("nobody")
	assert.True(t, errors.Is(err, ErrNoBackupsFound))
}

func TestSession_PrunesToRetention(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 5 {
		at := base.Add(time.Duration(i) * time.Minute)
		_, err := NewManager(WithBackupDir(root), WithRetentionCount(3), WithClock(func() time.Time { return at })).Session("claude")
		require.NoError(t, err)
	}

	list, err := NewManager(WithBackupDir(root)).List("claude")
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestStorageRelPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/usr/local/bin", "usr/local/bin"},
		{"/home/u/.claude/agents/a.md", "home/u/.claude/agents/a.md"},
		{"/odd/file:name", "odd/filename"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, storageRelPath(filepath.FromSlash(tt.in)))
	}
}

func TestStash(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "skills", "old-skill")
	writeFile(t, filepath.Join(src, "SKILL.md"), "skill", 0o644)
	writeFile(t, filepath.Join(src, "assets", "a.txt"), "asset", 0o644)
	dst := filepath.Join(dir, "backup", "old-skill")

	state, err := Inspect(src, dst)
	require.NoError(t, err)
	assert.Equal(t, StateNone, state)

	state, err = Stash(src, dst)
	require.NoError(t, err)
	assert.Equal(t, StateRemoved, state)
	assert.NoDirExists(t, src)
	got, err := os.ReadFile(filepath.Join(dst, "assets", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "asset", string(got))

	// re-running after completion is a no-op
	state, err = Stash(src, dst)
	require.NoError(t, err)
	assert.Equal(t, StateRemoved, state)
}

func TestStash_ResumesWithoutRecopying(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "skill.md")
	dst := filepath.Join(dir, "backup", "skill.md")
	writeFile(t, src, "current", 0o644)
	// an earlier interrupted run already made the backup
	writeFile(t, dst, "earlier snapshot", 0o644)

	state, err := Inspect(src, dst)
	require.NoError(t, err)
	assert.Equal(t, StateBackedUp, state)

	state, err = Stash(src, dst)
	require.NoError(t, err)
	assert.Equal(t, StateRemoved, state)
	assert.NoFileExists(t, src)
	got, _ := os.ReadFile(dst)
	assert.Equal(t, "earlier snapshot", string(got), "existing backup must not be clobbered")
}

func TestStash_ClearsPartialCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.md")
	dst := filepath.Join(dir, "backup", "a.md")
	writeFile(t, src, "real", 0o644)
	writeFile(t, dst+partialSuffix, "half written", 0o644)

	state, err := Stash(src, dst)
	require.NoError(t, err)
	assert.Equal(t, StateRemoved, state)
	got, _ := os.ReadFile(dst)
	assert.Equal(t, "real", string(got))
	assert.NoFileExists(t, dst+partialSuffix)
}

func TestStash_Missing(t *testing.T) {
	dir := t.TempDir()
	state, err := Stash(filepath.Join(dir, "nope"), filepath.Join(dir, "b"))
	require.NoError(t, err)
	assert.Equal(t, StateMissing, state)
}

package backup

import (
	"encoding/json"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/checksum"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/logging"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/paths"
	"github.com/mrgoonie/claudekit-cli-sub009/pkg/fileutil"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Manager creates, lists, restores and prunes backup sessions.
type Manager struct {
	rootDir        string
	retentionCount int
	logger         *slog.Logger
	now            func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// Option configures a Manager.
type Option func(*Manager)

// WithBackupDir sets the root backup directory.
func WithBackupDir(dir string) Option {
	return func(m *Manager) {
		if dir != "" {
			m.rootDir = dir
		}
	}
}

// WithRetentionCount sets the number of sessions kept per group.
func WithRetentionCount(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.retentionCount = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logging.OrDiscard(logger)
	}
}

// WithClock sets the time source used for session IDs.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a Manager rooted at paths.BackupsDir unless overridden.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		rootDir:        paths.BackupsDir(),
		retentionCount: DefaultRetentionCount,
		logger:         logging.NewDiscard(),
		now:            time.Now,
		sessions:       make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Root is the backup root directory.
func (m *Manager) Root() string {
	return m.rootDir
}

// Session returns this manager's session for group, creating it on first use.
// Every file backed up during one run lands in the same session.
func (m *Manager) Session(group string) (*Session, error) {
	if group == "" {
		return nil, errors.New("backup group is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[group]; ok {
		return s, nil
	}

	// make room for the new session before creating it
	if err := m.Prune(group, m.retentionCount-1); err != nil {
		m.logger.Warn("pruning old backups failed", "group", group, "error", err)
	}

	now := m.now()
	id := now.UTC().Format("20060102T150405") + "-" + uuid.NewString()[:8]
	dir := m.sessionPath(group, id)
	if err := os.MkdirAll(dir, fileutil.DirPerm); err != nil {
		return nil, errors.Wrap(err, "creating backup directory")
	}

	s := &Session{
		dir: dir,
		manifest: Manifest{
			Version:   ManifestVersion,
			CreatedAt: now.UTC(),
			Group:     group,
			Files:     []File{},
			CKVersion: Version,
			ID:        id,
		},
	}
	if err := s.writeManifest(); err != nil {
		return nil, err
	}
	m.sessions[group] = s
	m.logger.Debug("opened backup session", "group", group, "dir", dir)
	return s, nil
}

// Snapshot backs up paths into the group's session. Directories are copied
// recursively and missing paths are skipped.
func (m *Manager) Snapshot(group string, targets []string) (*Session, error) {
	s, err := m.Session(group)
	if err != nil {
		return nil, err
	}
	for _, p := range targets {
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "stat %s", p)
		}
		if !info.IsDir() {
			if _, err := s.Add(p); err != nil {
				return nil, err
			}
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			_, err = s.Add(path)
			return err
		})
		if err != nil {
			return nil, errors.Wrapf(err, "backing up directory %s", p)
		}
	}
	return s, nil
}

// Restore copies every file of a session back to its original location
// after verifying its hash.
func (m *Manager) Restore(group, id string) error {
	manifest, err := m.Get(group, id)
	if err != nil {
		return err
	}
	dir := m.sessionPath(group, id)

	for _, bf := range manifest.Files {
		src := filepath.Join(dir, filepath.FromSlash(bf.RelPath))
		sum, err := checksum.File(src)
		if err != nil {
			return errors.Wrapf(err, "reading backup file %s", bf.RelPath)
		}
		if sum != bf.SHA256Hash {
			return errors.Wrapf(ErrBackupCorrupted, "file %s hash mismatch", bf.RelPath)
		}
		if err := fileutil.CopyFile(src, bf.OriginalPath); err != nil {
			return errors.Wrapf(err, "restoring %s", bf.OriginalPath)
		}
		if err := os.Chmod(bf.OriginalPath, bf.Mode.Perm()); err != nil {
			return errors.Wrapf(err, "setting permissions for %s", bf.OriginalPath)
		}
	}
	m.logger.Info("restored backup", "group", group, "id", id, "files", len(manifest.Files))
	return nil
}

// List returns the group's sessions, newest first.
func (m *Manager) List(group string) ([]Manifest, error) {
	if group == "" {
		return nil, errors.New("backup group is required")
	}
	entries, err := os.ReadDir(filepath.Join(m.rootDir, group))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoBackupsFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading backup directory")
	}

	manifests := make([]Manifest, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		manifest, err := m.Get(group, entry.Name())
		if err != nil {
			continue
		}
		manifests = append(manifests, *manifest)
	}
	if len(manifests) == 0 {
		return nil, ErrNoBackupsFound
	}

	slices.SortFunc(manifests, func(a, b Manifest) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return manifests, nil
}

// Prune keeps the newest keep sessions of group and removes the rest.
func (m *Manager) Prune(group string, keep int) error {
	if keep < 0 {
		keep = 0
	}
	manifests, err := m.List(group)
	if errors.Is(err, ErrNoBackupsFound) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, old := range manifests[min(keep, len(manifests)):] {
		if err := os.RemoveAll(m.sessionPath(group, old.ID)); err != nil {
			return errors.Wrapf(err, "removing backup %s", old.ID)
		}
		m.logger.Debug("pruned backup", "group", group, "id", old.ID)
	}
	return nil
}

// Get loads one session's manifest.
func (m *Manager) Get(group, id string) (*Manifest, error) {
	if group == "" || id == "" {
		return nil, errors.New("backup group and id are required")
	}
	data, err := fileutil.ReadFileWithLimit(filepath.Join(m.sessionPath(group, id), manifestFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrapf(ErrNoBackupsFound, "backup %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading manifest")
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, errors.Wrap(err, "parsing manifest")
	}
	manifest.ID = id
	return &manifest, nil
}

func (m *Manager) sessionPath(group, id string) string {
	return filepath.Join(m.rootDir, group, id)
}

// storageRelPath maps an absolute path to a relative location inside a
// session, dropping the volume name and any colons.
func storageRelPath(absPath string) string {
	clean := filepath.Clean(absPath)
	clean = strings.TrimPrefix(clean, filepath.VolumeName(clean))
	clean = strings.TrimLeft(clean, `/\`)
	clean = strings.ReplaceAll(clean, ":", "")
	return filepath.ToSlash(clean)
}

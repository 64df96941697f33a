package backup

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/checksum"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
	"github.com/mrgoonie/claudekit-cli-sub009/pkg/fileutil"
)

// Session is one backup directory being filled during a run. It is safe for
// concurrent use.
type Session struct {
	dir string

	mu       sync.Mutex
	manifest Manifest
}

// ID is the session directory name.
func (s *Session) ID() string {
	return s.manifest.ID
}

// Dir is the session directory.
func (s *Session) Dir() string {
	return s.dir
}

// Manifest returns a copy of the session manifest.
func (s *Session) Manifest() Manifest {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.manifest
	m.Files = append([]File(nil), s.manifest.Files...)
	return m
}

// Add copies the file at path into the session and returns the copy's path.
// Adding the same path twice keeps the first copy.
func (s *Session) Add(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrapf(err, "resolving %s", path)
	}
	rel := storageRelPath(abs)
	dst := filepath.Join(s.dir, filepath.FromSlash(rel))

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.manifest.Files {
		if f.OriginalPath == abs {
			return dst, nil
		}
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", errors.Wrapf(err, "stat %s", abs)
	}
	if err := fileutil.CopyFile(abs, dst); err != nil {
		return "", errors.Wrapf(err, "backing up %s", abs)
	}
	sum, err := checksum.File(dst)
	if err != nil {
		return "", errors.Wrapf(err, "hashing backup of %s", abs)
	}

	s.manifest.Files = append(s.manifest.Files, File{
		OriginalPath: abs,
		RelPath:      rel,
		SHA256Hash:   sum,
		Mode:         info.Mode().Perm(),
	})
	if err := s.writeManifest(); err != nil {
		return "", err
	}
	return dst, nil
}

func (s *Session) writeManifest() error {
	if err := fileutil.AtomicWriteJSON(filepath.Join(s.dir, manifestFile), s.manifest); err != nil {
		return errors.Wrap(err, "writing backup manifest")
	}
	return nil
}

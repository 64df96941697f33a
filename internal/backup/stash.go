package backup

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
	"github.com/mrgoonie/claudekit-cli-sub009/pkg/fileutil"
)

// State is the progress of a backup-then-remove of one path.
type State int

const (
	// StateNone means the source is present and not yet backed up.
	StateNone State = iota
	// StateBackedUp means a backup exists and the source is still present.
	StateBackedUp
	// StateRemoved means the backup exists and the source is gone.
	StateRemoved
	// StateMissing means neither source nor backup exists.
	StateMissing
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateBackedUp:
		return "backed-up"
	case StateRemoved:
		return "removed"
	case StateMissing:
		return "missing"
	default:
		return "unknown"
	}
}

const partialSuffix = ".partial"

// Inspect reports how far a stash of src into dst has progressed.
func Inspect(src, dst string) (State, error) {
	srcExists, err := present(src)
	if err != nil {
		return StateNone, err
	}
	dstExists, err := present(dst)
	if err != nil {
		return StateNone, err
	}
	switch {
	case srcExists && dstExists:
		return StateBackedUp, nil
	case srcExists:
		return StateNone, nil
	case dstExists:
		return StateRemoved, nil
	default:
		return StateMissing, nil
	}
}

// Stash copies src (a file or directory) to dst and then removes src.
//
// The copy is built under dst+".partial" and renamed into place, so dst
// existing means the backup is complete. An existing dst is never
// overwritten: a re-run in StateBackedUp only performs the removal. The
// returned state is the final one.
func Stash(src, dst string) (State, error) {
	state, err := Inspect(src, dst)
	if err != nil {
		return state, err
	}

	if state == StateNone {
		partial := dst + partialSuffix
		if err := os.RemoveAll(partial); err != nil {
			return state, errors.Wrapf(err, "clearing %s", partial)
		}
		if err := copyTree(src, partial); err != nil {
			os.RemoveAll(partial)
			return state, errors.Wrapf(err, "backing up %s", src)
		}
		if err := os.Rename(partial, dst); err != nil {
			return state, errors.Wrapf(err, "finalizing backup %s", dst)
		}
		state = StateBackedUp
	}

	if state == StateBackedUp {
		if err := os.RemoveAll(src); err != nil {
			return state, errors.Wrapf(err, "removing %s", src)
		}
		state = StateRemoved
	}
	return state, nil
}

func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fileutil.CopyFile(src, dst)
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, fileutil.DirPerm)
		}
		return fileutil.CopyFile(path, target)
	})
}

func present(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, errors.Wrapf(err, "checking %s", path)
}

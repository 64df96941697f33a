// Package fileutil provides the file primitives every mutating ck operation
// goes through: atomic writes, bounded reads, copies and retry of transient
// I/O failures.
package fileutil

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
)

const (
	// DirPerm is the mode used for directories created on the way to a target.
	DirPerm os.FileMode = 0o755
	// FilePerm is the default mode for installed files and ledgers.
	FilePerm os.FileMode = 0o644

	tempPattern = ".ck-atomic-*.tmp"
)

// AtomicWriteFile writes data to path through a temp file in the same
// directory followed by a rename, so readers see either the old or the new
// content and never a partial file.
//
// The parent directory must exist. Use WriteFile to create it on demand.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), tempPattern)
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return errors.Wrap(err, "writing temp file")
	}
	if err := tmp.Sync(); err != nil {
		return errors.Wrap(err, "syncing temp file")
	}
	if err := tmp.Chmod(perm); err != nil {
		return errors.Wrap(err, "setting file permissions")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrap(err, "renaming temp file")
	}
	committed = true
	return nil
}

// WriteFile creates the parent directories of path and writes data atomically.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), DirPerm); err != nil {
		return errors.Wrapf(err, "creating directory for %s", path)
	}
	return AtomicWriteFile(path, data, perm)
}

// AtomicWriteJSON writes v as 2-space indented JSON with a trailing newline,
// creating parent directories as needed.
func AtomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling JSON")
	}
	data = append(data, '\n')
	return WriteFile(path, data, FilePerm)
}

// CopyFile copies src to dst atomically, keeping the source mode.
// Parent directories of dst are created.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "opening source")
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return errors.Wrap(err, "stating source")
	}
	if err := os.MkdirAll(filepath.Dir(dst), DirPerm); err != nil {
		return errors.Wrapf(err, "creating directory for %s", dst)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), tempPattern)
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		return errors.Wrap(err, "copying content")
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		return errors.Wrap(err, "setting file permissions")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return errors.Wrap(err, "renaming temp file")
	}
	committed = true
	return nil
}

// Exists reports whether path exists. Errors other than not-exist count as existing
// so callers never treat an unreadable file as absent.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil || !os.IsNotExist(err)
}

package manifest

import (
	"path"
	"strings"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
)

// SafeRelPath validates a manifest-declared path and returns it cleaned with
// forward slashes. Empty, absolute and drive-qualified paths are rejected, as
// is any ".." segment under either separator.
func SafeRelPath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", errors.Wrap(errors.ErrUnsafePath, "empty path")
	}
	slashed := strings.ReplaceAll(p, `\`, "/")
	if strings.HasPrefix(slashed, "/") || hasDrive(slashed) {
		return "", errors.Wrapf(errors.ErrUnsafePath, "%q is absolute", p)
	}
	for _, seg := range strings.Split(slashed, "/") {
		if seg == ".." {
			return "", errors.Wrapf(errors.ErrUnsafePath, "%q contains a parent segment", p)
		}
	}
	cleaned := path.Clean(slashed)
	if cleaned == "." {
		return "", errors.Wrapf(errors.ErrUnsafePath, "%q is empty after cleaning", p)
	}
	return cleaned, nil
}

func hasDrive(p string) bool {
	return len(p) >= 2 && p[1] == ':' && ((p[0] >= 'a' && p[0] <= 'z') || (p[0] >= 'A' && p[0] <= 'Z'))
}

// Safe reports whether both ends of the rename are safe relative paths.
func (r Rename) Safe() bool {
	return bothSafe(r.From, r.To)
}

// Safe reports whether both prefixes are safe relative paths.
func (pm PathMigration) Safe() bool {
	return bothSafe(pm.From, pm.To)
}

func bothSafe(from, to string) bool {
	if _, err := SafeRelPath(from); err != nil {
		return false
	}
	_, err := SafeRelPath(to)
	return err == nil
}

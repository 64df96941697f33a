package paths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/mitchellh/go-homedir"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
)

// AppName names the tool's directories under the XDG homes.
const AppName = "claudekit"

const (
	// StateDirName is the per-scope state directory.
	StateDirName = ".claudekit"
	// LedgerFileName is the installation registry inside StateDirName.
	LedgerFileName = "installations.json"
	// LegacyMetadataPath is the pre-registry kit ledger, relative to a scope root.
	LegacyMetadataPath = ".claude/metadata.json"
)

var (
	// ErrHomeDirNotFound indicates the user's home directory could not be determined.
	ErrHomeDirNotFound = errors.New("home directory not found")

	// ErrOutsideRoot indicates a path resolves outside its scope root.
	ErrOutsideRoot = errors.New("path escapes scope root")
)

// Scope is an installation root: a project directory, or the home directory
// when Global is set.
type Scope struct {
	Global bool
	Root   string
}

// Name is "global" or "project".
func (s Scope) Name() string {
	if s.Global {
		return "global"
	}
	return "project"
}

// LedgerPath is where the scope's installation registry is persisted.
func (s Scope) LedgerPath() string {
	return filepath.Join(s.Root, StateDirName, LedgerFileName)
}

// LegacyMetadata is the scope's pre-registry metadata file.
func (s Scope) LegacyMetadata() string {
	return filepath.Join(s.Root, filepath.FromSlash(LegacyMetadataPath))
}

// ResolveHome returns the user's home directory.
func ResolveHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "", errors.Wrapf(ErrHomeDirNotFound, "%v", err)
	}
	return home, nil
}

// ResolveScope returns the scope for a run. Global scopes are rooted at the
// home directory. Project scopes use projectDir, or the working directory when
// it is empty.
func ResolveScope(global bool, projectDir string) (Scope, error) {
	if global {
		home, err := ResolveHome()
		if err != nil {
			return Scope{}, err
		}
		return Scope{Global: true, Root: home}, nil
	}

	dir := projectDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Scope{}, errors.Wrap(err, "resolving working directory")
		}
		dir = wd
	}
	dir, err := Expand(dir)
	if err != nil {
		return Scope{}, err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Scope{}, errors.Wrapf(err, "resolving %s", dir)
	}
	return Scope{Root: abs}, nil
}

// ConfigHome returns the XDG config home directory.
func ConfigHome() string {
	return xdg.ConfigHome
}

// DataHome returns the XDG data home directory.
func DataHome() string {
	return xdg.DataHome
}

// ConfigDir returns <ConfigHome>/claudekit.
func ConfigDir() string {
	return filepath.Join(ConfigHome(), AppName)
}

// BackupsDir returns the default backup root, <DataHome>/claudekit/backups.
func BackupsDir() string {
	return filepath.Join(DataHome(), AppName, "backups")
}

// Expand replaces a leading "~" with the home directory.
func Expand(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", errors.Wrapf(err, "expanding %s", path)
	}
	return expanded, nil
}

// Within reports whether path is root itself or lies below it.
func Within(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Join joins a slash-separated relative path onto root and fails when the
// result escapes it.
func Join(root, rel string) (string, error) {
	if filepath.IsAbs(filepath.FromSlash(rel)) {
		return "", errors.Wrapf(ErrOutsideRoot, "%s is absolute", rel)
	}
	p := filepath.Join(root, filepath.FromSlash(rel))
	if !Within(root, p) {
		return "", errors.Wrapf(ErrOutsideRoot, "%s", rel)
	}
	return p, nil
}

// Rel returns path relative to root with forward slashes, the form used in
// persisted ledgers on every platform.
func Rel(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", errors.Wrapf(err, "relativizing %s", path)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Wrapf(ErrOutsideRoot, "%s", path)
	}
	return filepath.ToSlash(rel), nil
}

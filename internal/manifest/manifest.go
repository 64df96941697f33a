// Package manifest reads the migration manifest a kit ships at
// migration-manifest.json. The manifest declares renames of kit files and
// relocations of provider install paths. Each entry carries the kit version
// that introduced it and is applied at most once per scope: only entries whose
// version is newer than the scope's applied manifest version are pending.
package manifest

import (
	"encoding/json"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/kit"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/logging"
	"github.com/mrgoonie/claudekit-cli-sub009/pkg/fileutil"
)

// FileName is the manifest's location relative to the kit root.
const FileName = "migration-manifest.json"

// Rename moves a kit file from one source path to another.
type Rename struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Since string `json:"since"`
}

// PathMigration relocates where a provider installs one item type. From and
// To are path prefixes relative to the scope root.
type PathMigration struct {
	Provider string   `json:"provider"`
	Type     kit.Type `json:"type"`
	From     string   `json:"from"`
	To       string   `json:"to"`
	Since    string   `json:"since"`
}

// SectionRename retitles a section of merge-single documents. An empty
// Provider applies to every provider.
type SectionRename struct {
	Provider string `json:"provider,omitempty"`
	From     string `json:"from"`
	To       string `json:"to"`
	Since    string `json:"since"`
}

// Manifest is the parsed migration manifest.
type Manifest struct {
	Version                string          `json:"version"`
	CLIVersion             string          `json:"cliVersion,omitempty"`
	Renames                []Rename        `json:"renames"`
	ProviderPathMigrations []PathMigration `json:"providerPathMigrations"`
	SectionRenames         []SectionRename `json:"sectionRenames"`
}

// Load reads the manifest at path. A missing or corrupt manifest is empty:
// no migrations run, which is always safe.
func Load(path string, logger *slog.Logger) *Manifest {
	logger = logging.OrDiscard(logger)

	data, err := fileutil.ReadFileWithLimit(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("migration manifest unreadable, ignoring", "path", path, "error", err)
		}
		return &Manifest{}
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		logger.Warn("migration manifest corrupt, ignoring", "path", path, "error", err)
		return &Manifest{}
	}
	logger.Debug("loaded migration manifest", "path", path, "version", m.Version,
		"renames", len(m.Renames), "pathMigrations", len(m.ProviderPathMigrations))
	return &m
}

// LoadFromKit reads the manifest shipped in the kit at root.
func LoadFromKit(root string, logger *slog.Logger) *Manifest {
	return Load(filepath.Join(root, FileName), logger)
}

// newer reports whether since is strictly greater than applied. Empty applied
// means nothing has been applied. Unparsable versions are never pending.
func newer(since, applied string) bool {
	s, err := semver.NewVersion(since)
	if err != nil {
		return false
	}
	if strings.TrimSpace(applied) == "" {
		return true
	}
	a, err := semver.NewVersion(applied)
	if err != nil {
		return true
	}
	return s.GreaterThan(a)
}

// PendingRenames returns renames newer than applied, in manifest order.
func (m *Manifest) PendingRenames(applied string) []Rename {
	if m == nil {
		return nil
	}
	var out []Rename
	for _, r := range m.Renames {
		if newer(r.Since, applied) {
			out = append(out, r)
		}
	}
	return out
}

// PendingPathMigrations returns path migrations newer than applied.
func (m *Manifest) PendingPathMigrations(applied string) []PathMigration {
	if m == nil {
		return nil
	}
	var out []PathMigration
	for _, pm := range m.ProviderPathMigrations {
		if newer(pm.Since, applied) {
			out = append(out, pm)
		}
	}
	return out
}

// SectionRenameMap returns old-to-new section titles applying to provider.
// Section renames are idempotent, so they are not version gated.
func (m *Manifest) SectionRenameMap(provider string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string)
	for _, sr := range m.SectionRenames {
		if sr.Provider != "" && sr.Provider != provider {
			continue
		}
		if sr.From == "" || sr.To == "" {
			continue
		}
		out[sr.From] = sr.To
	}
	return out
}

// Latest is the version a scope reaches once this manifest is applied: the
// manifest version, or the newest entry version when that is higher or the
// manifest version is unparsable. Empty when nothing is versioned.
func (m *Manifest) Latest() string {
	if m == nil {
		return ""
	}
	var best *semver.Version
	consider := func(raw string) {
		v, err := semver.NewVersion(raw)
		if err != nil {
			return
		}
		if best == nil || v.GreaterThan(best) {
			best = v
		}
	}
	consider(m.Version)
	for _, r := range m.Renames {
		consider(r.Since)
	}
	for _, pm := range m.ProviderPathMigrations {
		consider(pm.Since)
	}
	if best == nil {
		return ""
	}
	return best.String()
}

// Advances reports whether moving from applied to next is a forward step.
func Advances(applied, next string) bool {
	if next == "" {
		return false
	}
	return newer(next, applied)
}

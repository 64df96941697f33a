// Package metadata reads and upgrades the legacy kit ledger kept at
// .claude/metadata.json by older installs.
//
// Two shapes exist on disk. The flat shape tracks a single kit:
//
//	{"name": "engineer", "version": "1.2.0", "files": [...]}
//
// The multi-kit shape keys entries by kit name:
//
//	{"kits": {"engineer": {"version": "1.2.0", "files": [...]}}}
//
// [Load] returns one of [*Legacy] or [*MultiKit]; [Upgrade] converts any
// value to the multi-kit shape and keeps the flat fields alongside so older
// readers still find them.
package metadata

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"maps"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/ownership"
	"github.com/mrgoonie/claudekit-cli-sub009/pkg/fileutil"
)

// TrackedFile is one file an older install recorded. Path is relative to the
// installation root and always uses forward slashes.
type TrackedFile struct {
	Path             string              `json:"path"`
	Checksum         string              `json:"checksum"`
	Ownership        ownership.Ownership `json:"ownership,omitempty"`
	InstalledVersion string              `json:"installedVersion,omitempty"`
}

// ExpectedChecksum implements ownership.Baseline.
func (f *TrackedFile) ExpectedChecksum() string {
	if f == nil {
		return ""
	}
	return f.Checksum
}

// Metadata is either *Legacy or *MultiKit.
type Metadata interface {
	// Kit returns the entry for name.
	Kit(name string) (KitEntry, bool)
	// KitNames lists tracked kits, sorted.
	KitNames() []string

	sealed()
}

// Legacy is the flat single-kit shape.
type Legacy struct {
	Name        string
	Version     string
	InstalledAt time.Time
	Files       []TrackedFile

	// Extra holds unrecognized top-level fields.
	Extra map[string]json.RawMessage
}

// KitEntry is one kit in the multi-kit shape.
type KitEntry struct {
	Version     string        `json:"version"`
	InstalledAt time.Time     `json:"installedAt,omitzero"`
	Files       []TrackedFile `json:"files"`
}

// MultiKit is the keyed-by-kit shape.
type MultiKit struct {
	Kits map[string]KitEntry

	// Extra holds every other top-level field, including the flat fields of
	// an upgraded legacy document.
	Extra map[string]json.RawMessage
}

func (*Legacy) sealed()   {}
func (*MultiKit) sealed() {}

// Kit implements Metadata.
func (l *Legacy) Kit(name string) (KitEntry, bool) {
	if l == nil || l.Name != name {
		return KitEntry{}, false
	}
	return KitEntry{Version: l.Version, InstalledAt: l.InstalledAt, Files: l.Files}, true
}

// KitNames implements Metadata.
func (l *Legacy) KitNames() []string {
	if l == nil || l.Name == "" {
		return nil
	}
	return []string{l.Name}
}

// Kit implements Metadata.
func (m *MultiKit) Kit(name string) (KitEntry, bool) {
	if m == nil {
		return KitEntry{}, false
	}
	e, ok := m.Kits[name]
	return e, ok
}

// KitNames implements Metadata.
func (m *MultiKit) KitNames() []string {
	if m == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(m.Kits))
}

// SetKit replaces the entry for name.
func (m *MultiKit) SetKit(name string, e KitEntry) {
	if m.Kits == nil {
		m.Kits = make(map[string]KitEntry)
	}
	e.Files = normalizeFiles(e.Files)
	m.Kits[name] = e
}

// RemoveFiles drops the given paths from a kit's file list and removes the
// kit when nothing is left. It reports how many entries were dropped.
func (m *MultiKit) RemoveFiles(name string, paths []string) int {
	e, ok := m.Kits[name]
	if !ok {
		return 0
	}
	drop := make(map[string]bool, len(paths))
	for _, p := range paths {
		drop[NormalizePath(p)] = true
	}
	before := len(e.Files)
	e.Files = slices.DeleteFunc(e.Files, func(f TrackedFile) bool { return drop[f.Path] })
	if len(e.Files) == 0 {
		delete(m.Kits, name)
	} else {
		m.Kits[name] = e
	}
	return before - len(e.Files)
}

// Flat field names of the legacy shape.
const (
	keyKits        = "kits"
	keyName        = "name"
	keyVersion     = "version"
	keyInstalledAt = "installedAt"
	keyFiles       = "files"
)

// Parse decodes either shape. A document with a "kits" object is multi-kit
// even when flat fields are also present.
func Parse(data []byte) (Metadata, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parsing metadata")
	}
	if raw == nil {
		return nil, errors.New("parsing metadata: not a JSON object")
	}

	if kitsRaw, ok := raw[keyKits]; ok {
		m := &MultiKit{}
		if err := json.Unmarshal(kitsRaw, &m.Kits); err != nil {
			return nil, errors.Wrap(err, "parsing metadata kits")
		}
		for name, e := range m.Kits {
			e.Files = normalizeFiles(e.Files)
			m.Kits[name] = e
		}
		delete(raw, keyKits)
		m.Extra = nonEmpty(raw)
		return m, nil
	}

	l := &Legacy{}
	fields := []struct {
		key string
		dst any
	}{
		{keyName, &l.Name},
		{keyVersion, &l.Version},
		{keyInstalledAt, &l.InstalledAt},
		{keyFiles, &l.Files},
	}
	for _, f := range fields {
		v, ok := raw[f.key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, f.dst); err != nil {
			return nil, errors.Wrapf(err, "parsing metadata field %q", f.key)
		}
		delete(raw, f.key)
	}
	l.Files = normalizeFiles(l.Files)
	l.Extra = nonEmpty(raw)
	return l, nil
}

// Load reads the metadata file at path. A missing file wraps ErrNotFound.
func Load(path string) (Metadata, error) {
	data, err := fileutil.ReadFileWithLimit(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrapf(errors.ErrNotFound, "metadata %s", path)
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading metadata")
	}
	md, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "metadata %s", path)
	}
	return md, nil
}

// Upgrade returns md in the multi-kit shape. A *MultiKit is returned as is.
// A legacy document becomes a single keyed entry and keeps its flat fields
// in Extra.
func Upgrade(md Metadata) (*MultiKit, error) {
	switch v := md.(type) {
	case *MultiKit:
		return v, nil
	case *Legacy:
		out := &MultiKit{Kits: map[string]KitEntry{}, Extra: maps.Clone(v.Extra)}
		if out.Extra == nil {
			out.Extra = map[string]json.RawMessage{}
		}
		flat := map[string]any{
			keyName:     v.Name,
			keyVersion:  v.Version,
			keyFiles:   v.Files,
		}
		if !v.InstalledAt.IsZero() {
			flat[keyInstalledAt] = v.InstalledAt
		}
		for key, val := range flat {
			data, err := json.Marshal(val)
			if err != nil {
				return nil, errors.Wrapf(err, "preserving %q", key)
			}
			out.Extra[key] = data
		}
		name := v.Name
		if name == "" {
			name = "default"
		}
		out.Kits[name] = KitEntry{Version: v.Version, InstalledAt: v.InstalledAt, Files: v.Files}
		return out, nil
	case nil:
		return &MultiKit{Kits: map[string]KitEntry{}}, nil
	default:
		return nil, errors.Newf("unknown metadata shape %T", md)
	}
}

// MarshalJSON writes the kits object and every preserved field, keys sorted.
func (m *MultiKit) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+1)
	for k, v := range m.Extra {
		out[k] = v
	}
	kits := m.Kits
	if kits == nil {
		kits = map[string]KitEntry{}
	}
	out[keyKits] = kits
	return json.Marshal(out)
}

// Save atomically writes m to path in the multi-kit shape.
func (m *MultiKit) Save(path string) error {
	data, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "marshaling metadata")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return errors.Wrap(err, "formatting metadata")
	}
	buf.WriteByte('\n')
	if err := fileutil.WriteFile(path, buf.Bytes(), fileutil.FilePerm); err != nil {
		return errors.Wrap(err, "writing metadata")
	}
	return nil
}

// NormalizePath converts p to the stored form: relative, forward slashes.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(filepath.ToSlash(p), `\`, "/")
	p = path.Clean(p)
	return strings.TrimPrefix(p, "./")
}

func normalizeFiles(files []TrackedFile) []TrackedFile {
	for i := range files {
		files[i].Path = NormalizePath(files[i].Path)
	}
	return files
}

func nonEmpty(m map[string]json.RawMessage) map[string]json.RawMessage {
	if len(m) == 0 {
		return nil
	}
	return m
}

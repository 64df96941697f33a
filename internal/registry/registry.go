// Package registry persists what ck installed in a scope.
//
// Each scope root holds one ledger, .claudekit/installations.json, listing
// every (provider, type, item, scope) installation with the checksums of the
// kit source and of the file as written. The ledger is the provenance the
// ownership classifier relies on: a file without a record is user-owned.
package registry

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/kit"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/logging"
	"github.com/mrgoonie/claudekit-cli-sub009/pkg/fileutil"
)

// CurrentVersion is the ledger format written by this build.
const CurrentVersion = 1

// InstallSource records who asked for an installation.
type InstallSource string

const (
	SourceKit  InstallSource = "kit"
	SourceUser InstallSource = "user"
)

// Record is one installation.
type Record struct {
	Item           string        `json:"item"`
	Type           kit.Type      `json:"type"`
	Provider       string        `json:"provider"`
	Global         bool          `json:"global"`
	Path           string        `json:"path"`
	InstalledAt    time.Time     `json:"installedAt"`
	SourcePath     string        `json:"sourcePath"`
	SourceChecksum string        `json:"sourceChecksum"`
	TargetChecksum string        `json:"targetChecksum"`
	InstallSource  InstallSource `json:"installSource,omitempty"`
}

// ExpectedChecksum is the hash of the file as ck wrote it.
func (r *Record) ExpectedChecksum() string {
	if r == nil {
		return ""
	}
	return r.TargetChecksum
}

// Key identifies a record.
type Key struct {
	Provider string
	Type     kit.Type
	Item     string
	Global   bool
}

// Key returns the record's identity.
func (r Record) Key() Key {
	return Key{Provider: r.Provider, Type: r.Type, Item: r.Item, Global: r.Global}
}

func compareRecords(a, b Record) int {
	if c := strings.Compare(a.Provider, b.Provider); c != 0 {
		return c
	}
	if c := strings.Compare(string(a.Type), string(b.Type)); c != 0 {
		return c
	}
	if c := strings.Compare(a.Item, b.Item); c != 0 {
		return c
	}
	switch {
	case a.Global == b.Global:
		return 0
	case !a.Global:
		return -1
	default:
		return 1
	}
}

// Registry is the in-memory ledger of one scope.
type Registry struct {
	Version                int      `json:"version"`
	Installations          []Record `json:"installations"`
	AppliedManifestVersion string   `json:"appliedManifestVersion,omitempty"`

	// fields written by other versions, kept verbatim
	extra map[string]json.RawMessage
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{Version: CurrentVersion, Installations: []Record{}}
}

var knownFields = []string{"version", "installations", "appliedManifestVersion"}

type wireRegistry struct {
	Version                int      `json:"version"`
	Installations          []Record `json:"installations"`
	AppliedManifestVersion string   `json:"appliedManifestVersion,omitempty"`
}

// UnmarshalJSON keeps unknown top-level fields for the next save.
func (r *Registry) UnmarshalJSON(data []byte) error {
	var w wireRegistry
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range knownFields {
		delete(all, k)
	}

	r.Version = w.Version
	r.Installations = w.Installations
	r.AppliedManifestVersion = w.AppliedManifestVersion
	r.extra = all
	if r.Installations == nil {
		r.Installations = []Record{}
	}
	return nil
}

// MarshalJSON writes known fields followed by preserved unknown ones.
func (r Registry) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(wireRegistry{
		Version:                r.Version,
		Installations:          r.Installations,
		AppliedManifestVersion: r.AppliedManifestVersion,
	})
	if err != nil {
		return nil, err
	}
	if len(r.extra) == 0 {
		return known, nil
	}

	keys := make([]string, 0, len(r.extra))
	for k := range r.extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var buf bytes.Buffer
	buf.Write(known[:len(known)-1])
	for _, k := range keys {
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(r.extra[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Load reads the ledger at path. A missing, unreadable or corrupt ledger
// yields an empty registry: every file then classifies as user-owned, which
// never causes data loss.
func Load(path string, logger *slog.Logger) *Registry {
	logger = logging.OrDiscard(logger)

	data, err := fileutil.ReadFileWithLimit(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("installation registry unreadable, starting empty", "path", path, "error", err)
		}
		return New()
	}

	var r Registry
	if err := json.Unmarshal(data, &r); err != nil {
		logger.Warn("installation registry corrupt, starting empty", "path", path, "error", err)
		return New()
	}
	if r.Version == 0 {
		r.Version = CurrentVersion
	}
	r.dedupe()
	logger.Debug("loaded installation registry", "path", path, "records", len(r.Installations))
	return &r
}

// dedupe keeps the last record for each key so a hand-edited ledger cannot
// break the one-record-per-key invariant.
func (r *Registry) dedupe() {
	seen := make(map[Key]int, len(r.Installations))
	out := r.Installations[:0]
	for _, rec := range r.Installations {
		if i, ok := seen[rec.Key()]; ok {
			out[i] = rec
			continue
		}
		seen[rec.Key()] = len(out)
		out = append(out, rec)
	}
	r.Installations = out
}

// Save writes the registry atomically.
func (r *Registry) Save(path string) error {
	if err := fileutil.AtomicWriteJSON(path, r); err != nil {
		return errors.Wrapf(err, "saving installation registry %s", path)
	}
	return nil
}

// Clone returns a deep copy.
func (r *Registry) Clone() *Registry {
	c := *r
	c.Installations = slices.Clone(r.Installations)
	if c.Installations == nil {
		c.Installations = []Record{}
	}
	if r.extra != nil {
		c.extra = make(map[string]json.RawMessage, len(r.extra))
		for k, v := range r.extra {
			c.extra[k] = slices.Clone(v)
		}
	}
	return &c
}

// Upsert inserts rec or replaces the record with the same key.
func (r *Registry) Upsert(rec Record) {
	for i := range r.Installations {
		if r.Installations[i].Key() == rec.Key() {
			r.Installations[i] = rec
			return
		}
	}
	r.Installations = append(r.Installations, rec)
}

// Remove deletes the record for the key and reports whether one existed.
func (r *Registry) Remove(provider string, typ kit.Type, item string, global bool) bool {
	key := Key{Provider: provider, Type: typ, Item: item, Global: global}
	for i := range r.Installations {
		if r.Installations[i].Key() == key {
			r.Installations = slices.Delete(r.Installations, i, i+1)
			return true
		}
	}
	return false
}

// Find returns a copy of the record for the key.
func (r *Registry) Find(provider string, typ kit.Type, item string, global bool) (*Record, bool) {
	key := Key{Provider: provider, Type: typ, Item: item, Global: global}
	for i := range r.Installations {
		if r.Installations[i].Key() == key {
			rec := r.Installations[i]
			return &rec, true
		}
	}
	return nil, false
}

// FindByPath returns the record whose target is path.
func (r *Registry) FindByPath(path string) (*Record, bool) {
	for i := range r.Installations {
		if r.Installations[i].Path == path {
			rec := r.Installations[i]
			return &rec, true
		}
	}
	return nil, false
}

// Records returns all records in key order.
func (r *Registry) Records() []Record {
	out := slices.Clone(r.Installations)
	slices.SortFunc(out, compareRecords)
	return out
}

// ForProvider returns the provider's records in key order.
func (r *Registry) ForProvider(provider string) []Record {
	var out []Record
	for _, rec := range r.Records() {
		if rec.Provider == provider {
			out = append(out, rec)
		}
	}
	return out
}

// BySourcePath returns records produced from the kit file at sourcePath.
func (r *Registry) BySourcePath(sourcePath string) []Record {
	var out []Record
	for _, rec := range r.Records() {
		if rec.SourcePath == sourcePath {
			out = append(out, rec)
		}
	}
	return out
}

// Len is the number of records.
func (r *Registry) Len() int {
	return len(r.Installations)
}

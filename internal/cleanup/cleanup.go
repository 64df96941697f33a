// Package cleanup removes files ck installed without ever touching files the
// user owns or has edited.
//
// Every removal is decided by the ownership classifier: pristine files go,
// modified files go only with force, user-owned files always stay.
package cleanup

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/metadata"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/ownership"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/paths"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/registry"
)

// Status is what happened to one path.
type Status string

const (
	StatusRemoved     Status = "removed"
	StatusWouldRemove Status = "would-remove"
	StatusPreserved   Status = "preserved"
	StatusMissing     Status = "missing"
	StatusFailed      Status = "failed"
)

// Entry reports one path.
type Entry struct {
	Path      string              `json:"path"`
	Provider  string              `json:"provider,omitempty"`
	Type      string              `json:"type,omitempty"`
	Item      string              `json:"item,omitempty"`
	Ownership ownership.Ownership `json:"ownership"`
	Status    Status              `json:"status"`
	Reason    string              `json:"reason,omitempty"`
	Backup    string              `json:"backup,omitempty"`
	Err       error               `json:"-"`
}

// Report collects entries in a stable order.
type Report struct {
	Entries []Entry `json:"entries"`
}

func (r *Report) add(e Entry) {
	r.Entries = append(r.Entries, e)
}

// Count returns the number of entries with status s.
func (r Report) Count(s Status) int {
	n := 0
	for _, e := range r.Entries {
		if e.Status == s {
			n++
		}
	}
	return n
}

// Err is non-nil when any entry failed.
func (r Report) Err() error {
	if n := r.Count(StatusFailed); n > 0 {
		return errors.Wrapf(errors.ErrActionsFailed, "%d removals failed", n)
	}
	return nil
}

// Provenance finds what ck recorded about a path, from the installation
// registry first and the legacy metadata second.
type Provenance struct {
	Registry *registry.Registry
	Legacy   metadata.Metadata
	// LegacyRoot is the directory legacy paths are relative to.
	LegacyRoot string
}

// Lookup returns the baseline recorded for abs, or nil.
func (p Provenance) Lookup(abs string) ownership.Baseline {
	if p.Registry != nil {
		if rec, ok := p.Registry.FindByPath(abs); ok {
			return rec
		}
	}
	if p.Legacy == nil || p.LegacyRoot == "" {
		return nil
	}
	rel, err := paths.Rel(p.LegacyRoot, abs)
	if err != nil {
		return nil
	}
	for _, name := range p.Legacy.KitNames() {
		entry, _ := p.Legacy.Kit(name)
		for i := range entry.Files {
			if entry.Files[i].Path == rel {
				return &entry.Files[i]
			}
		}
	}
	return nil
}

// LoadProvenance reads the ledger and legacy metadata of a scope. A missing
// or corrupt legacy file is ignored.
func LoadProvenance(scope paths.Scope, reg *registry.Registry) Provenance {
	p := Provenance{Registry: reg, LegacyRoot: filepath.Dir(scope.LegacyMetadata())}
	if md, err := metadata.Load(scope.LegacyMetadata()); err == nil {
		p.Legacy = md
	}
	return p
}

// removeFile deletes path, tolerating its absence, and prunes the parent
// directory when removeEmptyParent is set and it became empty.
func removeFile(path string, removeEmptyParent bool) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if removeEmptyParent {
		_ = os.Remove(filepath.Dir(path))
	}
	return nil
}

package reconcile

import (
	"cmp"
	"slices"
	"strings"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/kit"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/ownership"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/paths"
)

// ActionKind is what an action does to its target.
type ActionKind string

const (
	ActionInstall  ActionKind = "install"
	ActionUpdate   ActionKind = "update"
	ActionSkip     ActionKind = "skip"
	ActionConflict ActionKind = "conflict"
	ActionDelete   ActionKind = "delete"
)

var kindOrder = map[ActionKind]int{
	ActionInstall:  0,
	ActionUpdate:   1,
	ActionSkip:     2,
	ActionConflict: 3,
	ActionDelete:   4,
}

// Resolution is how a conflict is settled.
type Resolution string

const (
	// ResolveNone leaves the conflict unresolved; it is reported and skipped.
	ResolveNone      Resolution = ""
	ResolveSkip      Resolution = "skip"
	ResolveBackup    Resolution = "backup"
	ResolveOverwrite Resolution = "overwrite"
	// ResolvePrompt asks the user before execution.
	ResolvePrompt Resolution = "prompt"
)

// ParseResolution accepts a policy name. Empty means skip.
func ParseResolution(s string) (Resolution, error) {
	switch r := Resolution(strings.ToLower(strings.TrimSpace(s))); r {
	case ResolveNone, ResolveSkip:
		return ResolveSkip, nil
	case ResolveBackup, ResolveOverwrite, ResolvePrompt:
		return r, nil
	default:
		return ResolveNone, errors.Wrapf(errors.ErrInvalidConfig, "unknown conflict resolution %q", s)
	}
}

// Writes reports whether r replaces the file on disk.
func (r Resolution) Writes() bool {
	return r == ResolveBackup || r == ResolveOverwrite
}

// Action is one planned change.
type Action struct {
	Action   ActionKind `json:"action"`
	Item     string     `json:"item"`
	Type     kit.Type   `json:"type"`
	Provider string     `json:"provider"`
	Global   bool       `json:"global"`
	Root     string     `json:"root"`
	Path     string     `json:"path"`
	Reason   string     `json:"reason"`

	PreviousItem string     `json:"previousItem,omitempty"`
	PreviousPath string     `json:"previousPath,omitempty"`
	Resolution   Resolution `json:"resolution,omitempty"`
	// PreviousChecksum is the content of PreviousPath seen at planning. The
	// file is only removed if it still matches.
	PreviousChecksum string `json:"previousChecksum,omitempty"`

	SourcePath     string              `json:"sourcePath,omitempty"`
	SourceChecksum string              `json:"sourceChecksum,omitempty"`
	Ownership      ownership.Ownership `json:"ownership"`

	// ManifestVersion is the manifest entry a migration action came from.
	ManifestVersion string `json:"manifestVersion,omitempty"`
	Migration       bool   `json:"migration,omitempty"`
	// RemovePrevious removes PreviousPath after an install at a moved path.
	RemovePrevious bool `json:"removePrevious,omitempty"`
	// RecordOnly deletes drop the record but leave the file, which another
	// action owns.
	RecordOnly bool `json:"recordOnly,omitempty"`

	content []byte
}

// Content is the rendered bytes an install, update or resolved conflict writes.
func (a Action) Content() []byte {
	return a.content
}

// Scope is the scope the action applies to.
func (a Action) Scope() paths.Scope {
	return paths.Scope{Global: a.Global, Root: a.Root}
}

// Writes reports whether executing a changes the file at Path.
func (a Action) Writes() bool {
	switch a.Action {
	case ActionInstall, ActionUpdate:
		return true
	case ActionConflict:
		return a.Resolution.Writes()
	default:
		return false
	}
}

// Summary counts actions by kind.
type Summary struct {
	Install  int `json:"install"`
	Update   int `json:"update"`
	Skip     int `json:"skip"`
	Conflict int `json:"conflict"`
	Delete   int `json:"delete"`
}

// Changes is the number of actions that modify the disk or a ledger.
func (s Summary) Changes() int {
	return s.Install + s.Update + s.Delete
}

// Plan is the ordered outcome of Build.
type Plan struct {
	Actions []Action `json:"actions"`
	Summary Summary  `json:"summary"`
	// ManifestVersion is what the scopes' applied manifest version becomes
	// once the plan's migrations succeed. Empty when migrations are off.
	ManifestVersion string `json:"manifestVersion,omitempty"`
	// Deferred lists scopes with pending migrations for providers outside
	// the run. Their applied manifest version must not advance.
	Deferred []paths.Scope `json:"-"`
}

// Sort orders actions by kind, type, provider, item, scope and path.
func (p *Plan) Sort() {
	slices.SortStableFunc(p.Actions, compareActions)
}

// Tally recomputes the summary from the actions.
func (p *Plan) Tally() {
	var s Summary
	for _, a := range p.Actions {
		switch a.Action {
		case ActionInstall:
			s.Install++
		case ActionUpdate:
			s.Update++
		case ActionSkip:
			s.Skip++
		case ActionConflict:
			s.Conflict++
		case ActionDelete:
			s.Delete++
		}
	}
	p.Summary = s
}

// Conflicts returns the indexes of conflict actions.
func (p *Plan) Conflicts() []int {
	var out []int
	for i, a := range p.Actions {
		if a.Action == ActionConflict {
			out = append(out, i)
		}
	}
	return out
}

// Resolve sets the resolution of the conflict at index i.
func (p *Plan) Resolve(i int, r Resolution) {
	if i < 0 || i >= len(p.Actions) || p.Actions[i].Action != ActionConflict {
		return
	}
	p.Actions[i].Resolution = r
}

func compareActions(a, b Action) int {
	return cmp.Or(
		cmp.Compare(kindOrder[a.Action], kindOrder[b.Action]),
		strings.Compare(string(a.Type), string(b.Type)),
		strings.Compare(a.Provider, b.Provider),
		strings.Compare(a.Item, b.Item),
		compareBool(a.Global, b.Global),
		strings.Compare(a.Path, b.Path),
	)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

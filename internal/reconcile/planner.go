package reconcile

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/checksum"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/kit"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/manifest"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/ownership"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/paths"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/provider"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/registry"
)

// Reasons attached to actions.
const (
	ReasonNew             = "new item"
	ReasonAdopted         = "target already matches kit content"
	ReasonUnchanged       = "unchanged"
	ReasonKitChanged      = "kit content changed"
	ReasonUntracked       = "untracked file at target path"
	ReasonUserModified    = "user modified installed file"
	ReasonMissing         = "installed file missing from disk"
	ReasonUnreadable      = "installed file unreadable"
	ReasonMoved           = "target path changed"
	ReasonPathMigrated    = "Provider path migrated"
	ReasonRenamed         = "Renamed"
	ReasonRemovedUpstream = "removed upstream"
	ReasonUnsafePath      = "unsafe target path"
	ReasonRenderFailed    = "render failed"
	ReasonClaimed         = "target path already claimed"
)

// target is one desired installation.
type target struct {
	scope          int
	provider       string
	typ            kit.Type
	item           string
	sourcePath     string
	path           string
	content        []byte
	sourceChecksum string
	skipReason     string
}

// expand computes the desired installations in a fixed order: scopes as
// given, providers sorted, types in kit.Types order, items by name.
func expand(in Input) ([]target, error) {
	cat := in.catalog()
	render := in.renderer()

	providers := slices.Clone(in.Providers)
	slices.Sort(providers)
	providers = slices.Compact(providers)
	for _, name := range providers {
		if !cat.Valid(name) {
			return nil, errors.Wrapf(errors.ErrUnknownProvider, "%q", name)
		}
	}

	byType := make(map[kit.Type][]kit.Item)
	items := slices.Clone(in.Items)
	kit.SortItems(items)
	for _, item := range items {
		byType[item.Type] = append(byType[item.Type], item)
	}

	var out []target
	for si, sc := range in.Scopes {
		global := sc.Scope.Global
		for _, name := range providers {
			for _, typ := range kit.Types() {
				typed := byType[typ]
				if len(typed) == 0 {
					continue
				}
				t, ok := cat.Lookup(name, typ)
				if !ok || !t.Supports(global) {
					continue
				}

				switch t.WriteStrategy {
				case provider.MergeSingle:
					item := kit.Item{
						Name:       collectionName(typ),
						Type:       typ,
						SourcePath: collectionName(typ) + "/",
						Content:    kit.ComposeSections(typed, in.Manifest.SectionRenameMap(name)),
					}
					out = append(out, newTarget(cat, si, sc.Scope, name, item, item.Content, nil))
				case provider.SingleFile:
					item := pickSingle(typed, t.Template(global))
					content, err := render.Render(item, name, t.FileExtension)
					out = append(out, newTarget(cat, si, sc.Scope, name, item, content, err))
				default:
					for _, item := range typed {
						content, err := render.Render(item, name, t.FileExtension)
						out = append(out, newTarget(cat, si, sc.Scope, name, item, content, err))
					}
				}
			}
		}
	}

	claims := make(map[string]target)
	for i, t := range out {
		if t.path == "" || t.skipReason != "" {
			continue
		}
		if prev, ok := claims[t.path]; ok {
			out[i].skipReason = fmt.Sprintf("%s by %s %s %s", ReasonClaimed, prev.provider, prev.typ, prev.item)
			continue
		}
		claims[t.path] = t
	}
	return out, nil
}

func newTarget(cat *provider.Catalog, si int, sc paths.Scope, name string, item kit.Item, content []byte, renderErr error) target {
	t := target{
		scope:      si,
		provider:   name,
		typ:        item.Type,
		item:       item.Name,
		sourcePath: item.SourcePath,
	}
	p, err := cat.Resolve(name, item.Type, item.Name, sc.Global, sc.Root)
	if err != nil {
		t.skipReason = fmt.Sprintf("%s: %v", ReasonUnsafePath, err)
		return t
	}
	t.path = p
	if renderErr != nil {
		t.skipReason = fmt.Sprintf("%s: %v", ReasonRenderFailed, renderErr)
		return t
	}
	t.content = content
	t.sourceChecksum = checksum.Bytes(content)
	return t
}

// collectionName names the single installation a merge-single target holds.
func collectionName(typ kit.Type) string {
	s := string(typ)
	if strings.HasSuffix(s, "s") {
		return s
	}
	return s + "s"
}

// pickSingle chooses the item for a single-file target: the one named like
// the target file, else the first by name.
func pickSingle(items []kit.Item, template string) kit.Item {
	stem := strings.TrimSuffix(path.Base(template), path.Ext(template))
	for _, item := range items {
		if strings.EqualFold(path.Base(item.Name), stem) {
			return item
		}
	}
	return items[0]
}

// Build computes the plan for in. It performs no I/O: every filesystem fact
// comes from in.Probes. Identical inputs always produce identical plans.
func Build(in Input) (Plan, error) {
	targets, err := expand(in)
	if err != nil {
		return Plan{}, err
	}

	p := &planner{
		in:       in,
		inRun:    make(map[string]bool, len(in.Providers)),
		claims:   make(map[string]bool, len(targets)),
		deferred: make(map[int]bool),
	}
	for _, name := range in.Providers {
		p.inRun[name] = true
	}
	for _, t := range targets {
		if t.path != "" && t.skipReason == "" {
			p.claims[t.path] = true
		}
	}

	for si := range in.Scopes {
		p.scope(si, targets)
	}

	plan := Plan{Actions: p.actions}
	if plan.Actions == nil {
		plan.Actions = []Action{}
	}
	plan.Sort()
	plan.Tally()
	if in.Options.Migrations {
		plan.ManifestVersion = in.Manifest.Latest()
		for si, sc := range in.Scopes {
			if p.deferred[si] {
				plan.Deferred = append(plan.Deferred, sc.Scope)
			}
		}
	}
	return plan, nil
}

type planner struct {
	in     Input
	inRun  map[string]bool
	claims map[string]bool
	// deferred marks scopes holding pending migrations for providers
	// outside this run.
	deferred map[int]bool
	actions  []Action
}

func (p *planner) emit(a Action) {
	p.actions = append(p.actions, a)
}

func (p *planner) scope(si int, targets []target) {
	sc := p.in.Scopes[si].Scope
	reg := p.in.registry(si)
	opts := p.in.Options

	var renames []manifest.Rename
	var migrations []manifest.PathMigration
	if opts.Migrations {
		for _, r := range p.in.Manifest.PendingRenames(reg.AppliedManifestVersion) {
			if r.Safe() {
				renames = append(renames, r)
			}
		}
		for _, m := range p.in.Manifest.PendingPathMigrations(reg.AppliedManifestVersion) {
			if m.Safe() {
				migrations = append(migrations, m)
			}
		}
	}

	handled := make(map[registry.Key]bool)
	for _, t := range targets {
		if t.scope != si {
			continue
		}
		handled[registry.Key{Provider: t.provider, Type: t.typ, Item: t.item, Global: sc.Global}] = true
		p.decide(sc, reg, t, migrations)
	}

	records := reg.Records()
	for _, rn := range renames {
		from, _ := manifest.SafeRelPath(rn.From)
		reason := fmt.Sprintf("%s: %s -> %s", ReasonRenamed, rn.From, rn.To)
		for _, rec := range records {
			if handled[rec.Key()] || metadataPath(rec.SourcePath) != from {
				continue
			}
			if !p.inRun[rec.Provider] {
				p.deferred[si] = true
				continue
			}
			handled[rec.Key()] = true
			p.retire(sc, rec, reason, rn.Since, true)
		}
	}
	for _, pm := range migrations {
		for _, rec := range records {
			if rec.Provider != pm.Provider || rec.Type != pm.Type || handled[rec.Key()] {
				continue
			}
			if !underPrefix(sc.Root, rec.Path, pm.From) {
				continue
			}
			if !p.inRun[rec.Provider] {
				p.deferred[si] = true
				continue
			}
			handled[rec.Key()] = true
			p.retire(sc, rec, ReasonPathMigrated, pm.Since, true)
		}
	}

	if !opts.PruneOrphans {
		return
	}
	for _, rec := range records {
		if !p.inRun[rec.Provider] || handled[rec.Key()] {
			continue
		}
		handled[rec.Key()] = true
		p.retire(sc, rec, ReasonRemovedUpstream, "", false)
	}
}

// decide plans one desired installation.
func (p *planner) decide(sc paths.Scope, reg *registry.Registry, t target, migrations []manifest.PathMigration) {
	a := Action{
		Item:           t.item,
		Type:           t.typ,
		Provider:       t.provider,
		Global:         sc.Global,
		Root:           sc.Root,
		Path:           t.path,
		SourcePath:     t.sourcePath,
		SourceChecksum: t.sourceChecksum,
		content:        t.content,
	}
	if t.skipReason != "" {
		a.Action, a.Reason = ActionSkip, t.skipReason
		a.content = nil
		p.emit(a)
		return
	}

	rec, ok := reg.Find(t.provider, t.typ, t.item, sc.Global)
	if !ok {
		p.emit(p.untracked(a, ReasonNew))
		return
	}

	if rec.Path != t.path {
		old := p.classify(rec.Path, rec)
		a.PreviousPath = rec.Path
		a.RemovePrevious = p.removable(old) && !p.claims[rec.Path]
		if a.RemovePrevious {
			a.PreviousChecksum = p.in.Probes[rec.Path].Checksum
		}
		reason := ReasonMoved
		if pm, ok := matchMigration(migrations, sc.Root, rec); ok {
			reason = ReasonPathMigrated
			a.Migration = true
			a.ManifestVersion = pm.Since
		}
		p.emit(p.untracked(a, reason))
		return
	}

	res := p.classify(t.path, rec)
	probe := p.in.Probes[t.path]
	a.Ownership = res.Ownership
	switch {
	case !res.Exists:
		a.Action, a.Reason, a.Resolution = ActionConflict, ReasonMissing, p.in.Options.modified()
	case probe.Err != nil:
		a.Action, a.Reason, a.Resolution = ActionConflict, ReasonUnreadable, p.in.Options.modified()
	case res.Ownership == ownership.ToolPristine && t.sourceChecksum == rec.SourceChecksum:
		a.Action, a.Reason = ActionSkip, ReasonUnchanged
		a.content = nil
	case res.Ownership == ownership.ToolPristine:
		a.Action, a.Reason = ActionUpdate, ReasonKitChanged
	case probe.Checksum == t.sourceChecksum:
		a.Action, a.Reason = ActionUpdate, ReasonAdopted
	default:
		a.Action, a.Reason, a.Resolution = ActionConflict, ReasonUserModified, p.in.Options.modified()
	}
	p.emit(a)
}

// untracked plans a write to a path no record vouches for.
func (p *planner) untracked(a Action, reason string) Action {
	probe := p.in.Probes[a.Path]
	a.Ownership = ownership.UserOwned
	switch {
	case !probe.Exists:
		a.Action, a.Reason = ActionInstall, reason
	case probe.Err == nil && probe.Checksum == a.SourceChecksum:
		a.Action, a.Reason = ActionInstall, ReasonAdopted
	default:
		a.Action, a.Reason, a.Resolution = ActionConflict, ReasonUntracked, p.in.Options.untracked()
	}
	return a
}

// retire plans the removal of a record no longer wanted at its path.
func (p *planner) retire(sc paths.Scope, rec registry.Record, reason, since string, previous bool) {
	a := Action{
		Action:          ActionDelete,
		Item:            rec.Item,
		Type:            rec.Type,
		Provider:        rec.Provider,
		Global:          sc.Global,
		Root:            sc.Root,
		Path:            rec.Path,
		Reason:          reason,
		SourcePath:      rec.SourcePath,
		ManifestVersion: since,
		Migration:       since != "",
	}
	if previous {
		a.PreviousItem = rec.Item
		a.PreviousPath = rec.Path
	}

	res := p.classify(rec.Path, &rec)
	a.Ownership = res.Ownership
	switch {
	case p.claims[rec.Path]:
		a.RecordOnly = true
	case !res.Exists, p.removable(res):
	default:
		a.Action = ActionSkip
		a.Reason = reason + ", " + res.PreservationReason()
	}
	p.emit(a)
}

func (p *planner) classify(path string, rec *registry.Record) ownership.Result {
	probe := p.in.Probes[path]
	if probe.Err != nil {
		if rec.ExpectedChecksum() != "" {
			return ownership.Result{Ownership: ownership.ToolModified, Exists: true}
		}
		return ownership.Result{Ownership: ownership.UserOwned, Exists: true}
	}
	return ownership.Decide(probe.Exists, probe.Checksum, rec)
}

func (p *planner) removable(res ownership.Result) bool {
	return res.Deletable(p.in.Options.Force)
}

func matchMigration(migrations []manifest.PathMigration, root string, rec *registry.Record) (manifest.PathMigration, bool) {
	for _, pm := range migrations {
		if pm.Provider == rec.Provider && pm.Type == rec.Type && underPrefix(root, rec.Path, pm.From) {
			return pm, true
		}
	}
	return manifest.PathMigration{}, false
}

// metadataPath normalizes a recorded source path for comparison with
// manifest paths. Unsafe paths never match.
func metadataPath(p string) string {
	clean, err := manifest.SafeRelPath(p)
	if err != nil {
		return ""
	}
	return clean
}

// underPrefix reports whether abs, relative to root, is prefix or lies below it.
func underPrefix(root, abs, prefix string) bool {
	prefix, err := manifest.SafeRelPath(prefix)
	if err != nil {
		return false
	}
	rel, err := paths.Rel(root, abs)
	if err != nil {
		return false
	}
	return rel == prefix || strings.HasPrefix(rel, prefix+"/")
}

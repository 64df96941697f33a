package reconcile

import (
	"context"
	"slices"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/checksum"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/kit"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/manifest"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/paths"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/provider"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/registry"
)

// ScopeInput is one scope to reconcile with its ledger contents.
type ScopeInput struct {
	Scope    paths.Scope
	Registry *registry.Registry
}

// Probe is the observed state of one path.
type Probe struct {
	Exists   bool
	Checksum string
	Err      error
}

// Options tune planning.
type Options struct {
	// Force lets modified files be overwritten and removed.
	Force bool
	// PruneOrphans deletes records no longer wanted by the kit.
	PruneOrphans bool
	// Migrations applies pending manifest renames and path migrations.
	Migrations bool

	ModifiedPolicy  Resolution
	UntrackedPolicy Resolution
}

func (o Options) modified() Resolution {
	if o.Force {
		return ResolveOverwrite
	}
	return orSkip(o.ModifiedPolicy)
}

func (o Options) untracked() Resolution {
	if o.Force {
		return ResolveOverwrite
	}
	return orSkip(o.UntrackedPolicy)
}

func orSkip(r Resolution) Resolution {
	if r == ResolveNone {
		return ResolveSkip
	}
	return r
}

// Input is everything Build needs. It is not modified.
type Input struct {
	Items     []kit.Item
	Providers []string
	Catalog   *provider.Catalog
	Scopes    []ScopeInput
	Manifest  *manifest.Manifest
	Probes    map[string]Probe
	Renderer  kit.Renderer
	Options   Options
}

func (in Input) catalog() *provider.Catalog {
	if in.Catalog == nil {
		return provider.Default()
	}
	return in.Catalog
}

func (in Input) renderer() kit.Renderer {
	if in.Renderer == nil {
		return kit.DefaultRenderer{}
	}
	return in.Renderer
}

func (in Input) registry(i int) *registry.Registry {
	if r := in.Scopes[i].Registry; r != nil {
		return r
	}
	return registry.New()
}

// CollectProbePaths lists every path Build will look at: the desired targets
// and the recorded paths of every scope. The result is sorted.
func CollectProbePaths(in Input) ([]string, error) {
	targets, err := expand(in)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, t := range targets {
		if t.path != "" {
			seen[t.path] = true
		}
	}
	for i := range in.Scopes {
		for _, rec := range in.registry(i).Records() {
			if rec.Path != "" {
				seen[rec.Path] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	slices.Sort(out)
	return out, nil
}

// ProbePaths hashes paths concurrently. It is the only filesystem access
// planning needs.
func ProbePaths(ctx context.Context, list []string, workers int) (map[string]Probe, error) {
	results, err := checksum.Files(ctx, list, workers)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Probe, len(results))
	for p, r := range results {
		out[p] = Probe{Exists: r.Exists, Checksum: r.Checksum, Err: r.Err}
	}
	return out, nil
}

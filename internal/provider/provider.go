package provider

import (
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/kit"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/paths"
)

// WriteStrategy is how items of one type map onto files.
type WriteStrategy string

const (
	// PerFile writes one file per item.
	PerFile WriteStrategy = "per-file"
	// SingleFile writes one item to a fixed file; later items are not installed.
	SingleFile WriteStrategy = "single-file"
	// MergeSingle composes every item of the type into one document.
	MergeSingle WriteStrategy = "merge-single"
)

// Target is where one item type lands for a provider.
type Target struct {
	ProjectPath   string
	GlobalPath    string
	WriteStrategy WriteStrategy
	FileExtension string
}

// Template returns the path template for the scope.
func (t Target) Template(global bool) string {
	if global {
		return t.GlobalPath
	}
	return t.ProjectPath
}

// Supports reports whether the target has a location in the scope.
func (t Target) Supports(global bool) bool {
	return t.Template(global) != ""
}

// Provider is one coding assistant and its targets.
type Provider struct {
	Name        string
	DisplayName string
	ProjectDir  string
	GlobalDir   string
	Targets     map[kit.Type]Target
}

func (p Provider) dir(global bool) string {
	if global {
		return p.GlobalDir
	}
	return p.ProjectDir
}

// Override replaces a provider's base directories. Empty fields keep the default.
type Override struct {
	ProjectDir string
	GlobalDir  string
}

// Catalog is an immutable set of providers.
type Catalog struct {
	providers map[string]Provider
}

var defaultCatalog = &Catalog{providers: builtin()}

// Default returns the built-in catalog.
func Default() *Catalog {
	return defaultCatalog
}

// Names lists the built-in provider names, sorted.
func Names() []string {
	return defaultCatalog.Names()
}

// Valid reports whether name is a built-in provider.
func Valid(name string) bool {
	return defaultCatalog.Valid(name)
}

// WithOverrides returns a copy of c with base directories replaced.
func (c *Catalog) WithOverrides(overrides map[string]Override) (*Catalog, error) {
	next := make(map[string]Provider, len(c.providers))
	for name, p := range c.providers {
		next[name] = p
	}
	for name, o := range overrides {
		p, ok := next[name]
		if !ok {
			return nil, errors.Wrapf(errors.ErrUnknownProvider, "override for %q", name)
		}
		if o.ProjectDir != "" {
			dir, err := paths.Expand(o.ProjectDir)
			if err != nil {
				return nil, err
			}
			p.ProjectDir = filepath.ToSlash(dir)
		}
		if o.GlobalDir != "" {
			dir, err := paths.Expand(o.GlobalDir)
			if err != nil {
				return nil, err
			}
			p.GlobalDir = filepath.ToSlash(dir)
		}
		next[name] = p
	}
	return &Catalog{providers: next}, nil
}

// Names lists provider names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.providers))
	for name := range c.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Valid reports whether name is in the catalog.
func (c *Catalog) Valid(name string) bool {
	_, ok := c.providers[name]
	return ok
}

// Get returns the named provider.
func (c *Catalog) Get(name string) (Provider, bool) {
	p, ok := c.providers[name]
	return p, ok
}

// Lookup returns the provider's target for typ.
func (c *Catalog) Lookup(name string, typ kit.Type) (Target, bool) {
	p, ok := c.providers[name]
	if !ok {
		return Target{}, false
	}
	t, ok := p.Targets[typ]
	return t, ok
}

// Supports reports whether the provider installs typ in the scope.
func (c *Catalog) Supports(name string, typ kit.Type, global bool) bool {
	t, ok := c.Lookup(name, typ)
	return ok && t.Supports(global)
}

// Resolve expands the target path for an item. The result is absolute. It
// fails for unknown providers, unsupported types and paths that would escape
// root. A base directory overridden with an absolute path is trusted as is.
func (c *Catalog) Resolve(name string, typ kit.Type, item string, global bool, root string) (string, error) {
	p, ok := c.providers[name]
	if !ok {
		return "", errors.Wrapf(errors.ErrUnknownProvider, "%q", name)
	}
	t, ok := p.Targets[typ]
	if !ok || !t.Supports(global) {
		return "", errors.Wrapf(errors.ErrUnsupportedType, "%s %s (%s)", name, typ, scopeName(global))
	}
	if err := checkItemName(item); err != nil {
		return "", err
	}

	expanded := strings.NewReplacer("{dir}", p.dir(global), "{name}", item).Replace(t.Template(global))
	if filepath.IsAbs(filepath.FromSlash(expanded)) {
		return filepath.Clean(filepath.FromSlash(expanded)), nil
	}
	resolved, err := paths.Join(root, path.Clean(expanded))
	if err != nil {
		return "", errors.Wrapf(errors.ErrUnsafePath, "%s: %v", expanded, err)
	}
	return resolved, nil
}

// BaseDir returns the provider's base directory in the scope rooted at root,
// such as <root>/.claude.
func (c *Catalog) BaseDir(name string, global bool, root string) (string, error) {
	p, ok := c.providers[name]
	if !ok {
		return "", errors.Wrapf(errors.ErrUnknownProvider, "%q", name)
	}
	dir := p.dir(global)
	if dir == "" {
		return "", errors.Wrapf(errors.ErrUnsupportedType, "%s has no %s directory", name, scopeName(global))
	}
	if filepath.IsAbs(filepath.FromSlash(dir)) {
		return filepath.Clean(filepath.FromSlash(dir)), nil
	}
	resolved, err := paths.Join(root, path.Clean(dir))
	if err != nil {
		return "", errors.Wrapf(errors.ErrUnsafePath, "%s: %v", dir, err)
	}
	return resolved, nil
}

func checkItemName(item string) error {
	if item == "" {
		return errors.Wrap(errors.ErrUnsafePath, "empty item name")
	}
	if strings.HasPrefix(item, "/") || strings.ContainsRune(item, '\\') {
		return errors.Wrapf(errors.ErrUnsafePath, "item name %q", item)
	}
	for _, seg := range strings.Split(item, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return errors.Wrapf(errors.ErrUnsafePath, "item name %q", item)
		}
	}
	return nil
}

func scopeName(global bool) string {
	if global {
		return "global"
	}
	return "project"
}

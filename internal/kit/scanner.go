package kit

import (
	"io/fs"
	"log/slog"
	"os"
	"path"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/logging"
	"github.com/mrgoonie/claudekit-cli-sub009/pkg/fileutil"
	"github.com/mrgoonie/claudekit-cli-sub009/pkg/frontmatter"
)

// layout maps kit-relative glob patterns to item types.
var layout = []struct {
	typ     Type
	pattern string
}{
	{TypeAgent, "agents/*.md"},
	{TypeCommand, "commands/**/*.md"},
	{TypeSkill, "skills/*/SKILL.md"},
	{TypeConfig, "config/*.md"},
	{TypeRules, "rules/**/*.md"},
	{TypeHooks, "hooks/*"},
}

// Scanner reads items from an extracted kit tree.
type Scanner struct {
	logger *slog.Logger
	ignore []string
}

// NewScanner creates a Scanner. Ignore patterns are doublestar globs matched
// against kit-relative slash paths.
func NewScanner(logger *slog.Logger, ignore []string) *Scanner {
	return &Scanner{logger: logging.OrDiscard(logger), ignore: ignore}
}

// Scan returns every item under root sorted by type and name.
func (s *Scanner) Scan(root string) ([]Item, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrapf(err, "opening kit %s", root)
	}
	if !info.IsDir() {
		return nil, errors.Newf("kit %s is not a directory", root)
	}
	for _, p := range s.ignore {
		if !doublestar.ValidatePattern(p) {
			return nil, errors.Wrapf(errors.ErrInvalidConfig, "bad ignore pattern %q", p)
		}
	}

	fsys := os.DirFS(root)
	type job struct {
		typ Type
		rel string
	}
	var jobs []job
	for _, l := range layout {
		matches, err := doublestar.Glob(fsys, l.pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.Wrapf(err, "matching %s", l.pattern)
		}
		for _, rel := range matches {
			if s.ignored(rel) {
				s.logger.Debug("ignoring kit file", "path", rel)
				continue
			}
			jobs = append(jobs, job{typ: l.typ, rel: rel})
		}
	}
	if len(jobs) == 0 {
		return nil, nil
	}

	workers := min(runtime.GOMAXPROCS(0), len(jobs))
	work := make(chan job, len(jobs))
	type result struct {
		item Item
		err  error
	}
	results := make(chan result, len(jobs))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range work {
				item, err := readItem(fsys, j.typ, j.rel)
				results <- result{item: item, err: err}
			}
		}()
	}
	for _, j := range jobs {
		work <- j
	}
	close(work)
	go func() {
		wg.Wait()
		close(results)
	}()

	items := make([]Item, 0, len(jobs))
	var errs []error
	for r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		items = append(items, r.item)
	}
	if len(errs) > 0 {
		slices.SortFunc(errs, func(a, b error) int { return strings.Compare(a.Error(), b.Error()) })
		return nil, errs[0]
	}

	SortItems(items)
	s.logger.Debug("scanned kit", "root", root, "items", len(items))
	return items, nil
}

func (s *Scanner) ignored(rel string) bool {
	for _, p := range s.ignore {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(p+"/**", rel); ok {
			return true
		}
	}
	return false
}

type itemMeta struct {
	Description string `yaml:"description"`
}

func readItem(fsys fs.FS, typ Type, rel string) (Item, error) {
	f, err := fsys.Open(rel)
	if err != nil {
		return Item{}, errors.Wrapf(err, "opening %s", rel)
	}
	info, err := f.Stat()
	f.Close()
	if err != nil {
		return Item{}, errors.Wrapf(err, "stating %s", rel)
	}
	if info.Size() > fileutil.MaxFileSize {
		return Item{}, errors.Wrapf(fileutil.ErrFileTooLarge, "%s", rel)
	}
	content, err := fs.ReadFile(fsys, rel)
	if err != nil {
		return Item{}, errors.Wrapf(err, "reading %s", rel)
	}

	item := Item{
		Name:       itemName(typ, rel),
		Type:       typ,
		SourcePath: rel,
		Content:    content,
	}
	if typ != TypeHooks {
		var meta itemMeta
		if _, err := frontmatter.Parse(content, &meta); err == nil {
			item.Description = meta.Description
		}
	}
	return item, nil
}

// itemName derives the stable item identity from its kit path.
func itemName(typ Type, rel string) string {
	switch typ {
	case TypeSkill:
		return path.Base(path.Dir(rel))
	case TypeHooks:
		return path.Base(rel)
	default:
		dir, _, _ := strings.Cut(rel, "/")
		name := strings.TrimPrefix(rel, dir+"/")
		return strings.TrimSuffix(name, path.Ext(name))
	}
}

// SortItems orders items by type then name.
func SortItems(items []Item) {
	order := make(map[Type]int, len(Types()))
	for i, t := range Types() {
		order[t] = i
	}
	slices.SortFunc(items, func(a, b Item) int {
		if a.Type != b.Type {
			return order[a.Type] - order[b.Type]
		}
		return strings.Compare(a.Name, b.Name)
	})
}

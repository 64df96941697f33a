// Package ownership decides who owns a file ck may touch.
//
// A file is tool-pristine when its bytes hash to the checksum recorded when ck
// wrote it, tool-modified when a record exists but the hash differs, and
// user-owned when there is no record or no file. Every delete and overwrite
// decision downstream is made from this three-way result.
package ownership

import (
	"context"
	"io/fs"
	"os"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/checksum"
	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
)

// Ownership is the closed set of ownership states.
type Ownership int

const (
	// UserOwned files are never deleted or overwritten without consent.
	UserOwned Ownership = iota
	// ToolPristine files match what ck last wrote.
	ToolPristine
	// ToolModified files were written by ck and edited since.
	ToolModified
)

// String returns the persisted name of o.
func (o Ownership) String() string {
	switch o {
	case UserOwned:
		return "user"
	case ToolPristine:
		return "ck"
	case ToolModified:
		return "ck-modified"
	default:
		return "unknown"
	}
}

// ParseOwnership accepts persisted names including older spellings.
func ParseOwnership(s string) (Ownership, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "user-owned", "userowned":
		return UserOwned, nil
	case "ck", "tool", "pristine", "tool-pristine", "toolpristine":
		return ToolPristine, nil
	case "ck-modified", "modified", "tool-modified", "toolmodified":
		return ToolModified, nil
	default:
		return UserOwned, errors.Newf("unknown ownership %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Ownership) MarshalText() ([]byte, error) {
	switch o {
	case UserOwned, ToolPristine, ToolModified:
		return []byte(o.String()), nil
	default:
		return nil, errors.Newf("invalid ownership %d", int(o))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Ownership) UnmarshalText(b []byte) error {
	v, err := ParseOwnership(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// Baseline is the provenance a file is checked against: the checksum of the
// file as ck wrote it. Implementations must tolerate nil pointer receivers.
type Baseline interface {
	ExpectedChecksum() string
}

// Checksum is a Baseline holding a bare digest.
type Checksum string

// ExpectedChecksum implements Baseline.
func (c Checksum) ExpectedChecksum() string { return string(c) }

// Result is the classification of one path.
type Result struct {
	Ownership Ownership
	Exists    bool
}

// Decide classifies from already gathered facts. baseline may be nil.
func Decide(exists bool, actual string, baseline Baseline) Result {
	if !exists {
		return Result{Ownership: UserOwned}
	}
	if !hasBaseline(baseline) {
		return Result{Ownership: UserOwned, Exists: true}
	}
	if actual == baseline.ExpectedChecksum() {
		return Result{Ownership: ToolPristine, Exists: true}
	}
	return Result{Ownership: ToolModified, Exists: true}
}

func hasBaseline(b Baseline) bool {
	return b != nil && b.ExpectedChecksum() != ""
}

func exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, errors.Wrapf(err, "checking %s", path)
}

// Classify hashes the file at path and classifies it against baseline.
// The file is only read when a baseline exists.
func Classify(path string, baseline Baseline) (Result, error) {
	if !hasBaseline(baseline) {
		found, err := exists(path)
		if err != nil {
			return Result{}, err
		}
		return Decide(found, "", nil), nil
	}

	sum, err := checksum.File(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Decide(false, "", baseline), nil
	}
	if err != nil {
		return Result{}, errors.Wrapf(err, "classifying %s", path)
	}
	return Decide(true, sum, baseline), nil
}

// Request is one path to classify in a batch.
type Request struct {
	Path     string
	Baseline Baseline
}

// ClassifyBatch classifies paths concurrently. A path whose file cannot be
// read is reported as existing and user-owned so it is never deleted.
func ClassifyBatch(ctx context.Context, reqs []Request, workers int) (map[string]Result, error) {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]Result, len(reqs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, req := range reqs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := Classify(req.Path, req.Baseline)
			if err != nil {
				r = Result{Ownership: UserOwned, Exists: true}
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "classifying files")
	}

	out := make(map[string]Result, len(reqs))
	for i, req := range reqs {
		out[req.Path] = results[i]
	}
	return out, nil
}

// Deletable reports whether the classified file may be removed. Pristine files
// may always go, modified files only with force, user-owned files never. A
// missing file has nothing to remove.
func (r Result) Deletable(force bool) bool {
	if !r.Exists {
		return false
	}
	switch r.Ownership {
	case ToolPristine:
		return true
	case ToolModified:
		return force
	case UserOwned:
		return false
	default:
		return false
	}
}

// Protected reports whether the file must be preserved absent a force override.
func (r Result) Protected() bool {
	if !r.Exists {
		return false
	}
	switch r.Ownership {
	case ToolPristine:
		return false
	case ToolModified, UserOwned:
		return true
	default:
		return true
	}
}

// PreservationReason explains why a file is kept.
func (r Result) PreservationReason() string {
	switch r.Ownership {
	case ToolModified:
		return "modified since install, preserved"
	case UserOwned:
		return "not installed by ck, preserved"
	case ToolPristine:
		return ""
	default:
		return "unknown ownership, preserved"
	}
}

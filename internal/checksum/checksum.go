// Package checksum computes the SHA-256 content hashes that decide file
// ownership. Digests are 64 lowercase hex characters.
package checksum

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
)

// Size is the length of a hex digest.
const Size = sha256.Size * 2

// Reader hashes everything read from r without buffering it whole.
func Reader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", errors.Wrap(err, "hashing content")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Bytes hashes b.
func Bytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// String hashes s.
func String(s string) string {
	return Bytes([]byte(s))
}

// File hashes the file at path.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return Reader(f)
}

// FileResult is the outcome of hashing one path in a batch.
type FileResult struct {
	Exists   bool
	Checksum string
	Err      error
}

// Files hashes paths concurrently using at most workers goroutines
// (GOMAXPROCS when workers < 1). A missing file yields Exists=false. Other
// failures are recorded on the path's result and do not stop the batch; the
// returned error is only the context's.
func Files(ctx context.Context, paths []string, workers int) (map[string]FileResult, error) {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]FileResult, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = hashPath(p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "hashing files")
	}

	out := make(map[string]FileResult, len(paths))
	for i, p := range paths {
		out[p] = results[i]
	}
	return out, nil
}

func hashPath(path string) FileResult {
	sum, err := File(path)
	switch {
	case err == nil:
		return FileResult{Exists: true, Checksum: sum}
	case errors.Is(err, fs.ErrNotExist):
		return FileResult{}
	default:
		return FileResult{Exists: true, Err: err}
	}
}

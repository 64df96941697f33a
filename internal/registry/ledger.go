package registry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/logging"
)

// Ledger is a registry bound to its file. Every Commit persists immediately,
// so an interrupted run leaves the file describing exactly the actions that
// completed. It is safe for concurrent use within one process.
type Ledger struct {
	mu     sync.Mutex
	path   string
	reg    *Registry
	logger *slog.Logger
}

// OpenLedger loads the registry at path. It never fails; see Load.
func OpenLedger(path string, logger *slog.Logger) *Ledger {
	logger = logging.OrDiscard(logger)
	return &Ledger{path: path, reg: Load(path, logger), logger: logger}
}

// NewLedger binds an already loaded registry to path.
func NewLedger(path string, reg *Registry, logger *slog.Logger) *Ledger {
	if reg == nil {
		reg = New()
	}
	return &Ledger{path: path, reg: reg, logger: logging.OrDiscard(logger)}
}

// Path is the ledger file.
func (l *Ledger) Path() string {
	return l.path
}

// Snapshot returns a copy of the current registry.
func (l *Ledger) Snapshot() *Registry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reg.Clone()
}

// Commit applies fn to the registry and saves it. On a save failure the
// in-memory registry is rolled back so memory and disk stay in step.
func (l *Ledger) Commit(fn func(*Registry)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.reg.Clone()
	fn(next)
	if err := next.Save(l.path); err != nil {
		return err
	}
	l.reg = next
	l.logger.Log(context.Background(), logging.LevelTrace, "committed installation registry", "path", l.path, "records", next.Len())
	return nil
}

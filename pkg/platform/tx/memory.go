package tx

import (
	"context"
	"sync"
)

// MemoryRunner serializes operations behind a single mutex. Memory-mode
// stores cannot roll back, so callers must order their writes with the
// only fallible step first; with that ordering, serialization alone makes
// each operation atomic.
type MemoryRunner struct {
	mu sync.Mutex
}

// NewMemoryRunner builds a Runner for memory-backed deployments.
func NewMemoryRunner() *MemoryRunner {
	return &MemoryRunner{}
}

// RunInTx runs fn while holding the global operation lock.
func (r *MemoryRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx)
}

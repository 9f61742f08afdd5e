package registry

import (
	"context"
	"fmt"
	"sync"

	"lineage/internal/hierarchy/models"
	"lineage/pkg/platform/sentinel"
)

// InMemory stores the registry singleton in memory for tests/dev.
// The store is pure I/O: it holds copies and never mutates them, so
// service-side edits only land through Update.
type InMemory struct {
	mu       sync.RWMutex
	registry *models.Registry
}

// NewInMemory constructs an empty in-memory registry store.
func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Create(_ context.Context, registry *models.Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registry != nil {
		return fmt.Errorf("registry already initialized: %w", sentinel.ErrConflict)
	}
	cp := *registry
	s.registry = &cp
	return nil
}

func (s *InMemory) Get(_ context.Context) (*models.Registry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.registry == nil {
		return nil, fmt.Errorf("registry not found: %w", sentinel.ErrNotFound)
	}
	cp := *s.registry
	return &cp, nil
}

// GetForUpdate is the locked-read variant. Memory mode already serializes
// whole operations behind the runner mutex, so it reads the same way as
// Get.
func (s *InMemory) GetForUpdate(ctx context.Context) (*models.Registry, error) {
	return s.Get(ctx)
}

func (s *InMemory) Update(_ context.Context, registry *models.Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registry == nil {
		return fmt.Errorf("registry not found: %w", sentinel.ErrNotFound)
	}
	cp := *registry
	s.registry = &cp
	return nil
}

// Clear drops the registry. Test helper.
func (s *InMemory) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry = nil
}

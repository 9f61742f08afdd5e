package memory

import (
	"context"
	"sync"

	id "lineage/pkg/domain"
	"lineage/pkg/platform/eventlog"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events []eventlog.Event
	byAgnt map[id.Address][]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byAgnt: make(map[id.Address][]int)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.byAgnt = make(map[id.Address][]int)
}

func (s *InMemoryStore) Append(_ context.Context, event eventlog.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	if !event.Agent.IsZero() {
		s.byAgnt[event.Agent] = append(s.byAgnt[event.Agent], len(s.events)-1)
	}
	return nil
}

func (s *InMemoryStore) ListByAgent(_ context.Context, agent id.Address) ([]eventlog.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idxs := s.byAgnt[agent]
	out := make([]eventlog.Event, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, s.events[i])
	}
	return out, nil
}

// ListRecent returns the most recent N events in append order.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]eventlog.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := len(s.events) - limit
	if start < 0 {
		start = 0
	}
	return append([]eventlog.Event{}, s.events[start:]...), nil
}

package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"lineage/internal/hierarchy/models"
	id "lineage/pkg/domain"
	"lineage/pkg/platform/sentinel"
)

// InMemory stores agent accounts in memory for tests/dev. Pure I/O: it
// holds copies and returns copies, so callers can only change state
// through Create and Update.
type InMemory struct {
	mu     sync.RWMutex
	agents map[id.Address]models.AgentAccount
}

// NewInMemory constructs an empty in-memory agent store.
func NewInMemory() *InMemory {
	return &InMemory{agents: make(map[id.Address]models.AgentAccount)}
}

func (s *InMemory) Create(_ context.Context, agent *models.AgentAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[agent.Address]; ok {
		return fmt.Errorf("agent address already taken: %w", sentinel.ErrConflict)
	}
	s.agents[agent.Address] = *agent
	return nil
}

func (s *InMemory) FindByAddress(_ context.Context, address id.Address) (*models.AgentAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agent, ok := s.agents[address]
	if !ok {
		return nil, fmt.Errorf("agent not found: %w", sentinel.ErrNotFound)
	}
	return &agent, nil
}

// FindByAddressForUpdate is the locked-read variant. Memory mode already
// serializes whole operations behind the runner mutex, so it reads the
// same way as FindByAddress.
func (s *InMemory) FindByAddressForUpdate(ctx context.Context, address id.Address) (*models.AgentAccount, error) {
	return s.FindByAddress(ctx, address)
}

func (s *InMemory) Update(_ context.Context, agent *models.AgentAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[agent.Address]; !ok {
		return fmt.Errorf("agent not found: %w", sentinel.ErrNotFound)
	}
	s.agents[agent.Address] = *agent
	return nil
}

func (s *InMemory) ListChildren(_ context.Context, parent id.Address) ([]*models.AgentAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var children []*models.AgentAccount
	for _, agent := range s.agents {
		if agent.Parent == parent {
			cp := agent
			children = append(children, &cp)
		}
	}
	sort.Slice(children, func(i, j int) bool {
		if children[i].CreatedAt.Equal(children[j].CreatedAt) {
			return children[i].Address < children[j].Address
		}
		return children[i].CreatedAt.Before(children[j].CreatedAt)
	})
	return children, nil
}

// Clear drops all agents. Test helper.
func (s *InMemory) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents = make(map[id.Address]models.AgentAccount)
}

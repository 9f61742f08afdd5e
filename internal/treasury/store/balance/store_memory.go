package balance

import (
	"context"
	"fmt"
	"sync"

	"lineage/internal/treasury/models"
	id "lineage/pkg/domain"
	"lineage/pkg/platform/sentinel"
)

// InMemory is a map-backed balance store for tests and single-node runs.
// Values are copied in and out so callers never share memory with the
// store.
type InMemory struct {
	mu       sync.RWMutex
	balances map[id.WalletID]models.Balance
}

// NewInMemory constructs an empty in-memory balance store.
func NewInMemory() *InMemory {
	return &InMemory{balances: make(map[id.WalletID]models.Balance)}
}

func (s *InMemory) Get(_ context.Context, wallet id.WalletID) (*models.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	balance, ok := s.balances[wallet]
	if !ok {
		return nil, fmt.Errorf("balance for %s: %w", wallet, sentinel.ErrNotFound)
	}
	return &balance, nil
}

// GetForUpdate matches the postgres store's locked read. The memory
// runner serializes whole operations, so a plain read suffices.
func (s *InMemory) GetForUpdate(ctx context.Context, wallet id.WalletID) (*models.Balance, error) {
	return s.Get(ctx, wallet)
}

func (s *InMemory) Upsert(_ context.Context, balance *models.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[balance.Wallet] = *balance
	return nil
}

// Clear empties the store between tests.
func (s *InMemory) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances = make(map[id.WalletID]models.Balance)
}

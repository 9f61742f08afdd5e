package credential

import (
	"context"
	"fmt"
	"sync"

	"lineage/internal/auth/models"
	id "lineage/pkg/domain"
	"lineage/pkg/platform/sentinel"
)

// InMemory is a map-backed credential store for tests and single-node
// runs.
type InMemory struct {
	mu    sync.RWMutex
	creds map[id.WalletID]models.Credential
}

// NewInMemory constructs an empty in-memory credential store.
func NewInMemory() *InMemory {
	return &InMemory{creds: make(map[id.WalletID]models.Credential)}
}

func (s *InMemory) Create(_ context.Context, cred *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.creds[cred.Wallet]; ok {
		return fmt.Errorf("credential for %s: %w", cred.Wallet, sentinel.ErrConflict)
	}
	s.creds[cred.Wallet] = *cred
	return nil
}

func (s *InMemory) Get(_ context.Context, wallet id.WalletID) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.creds[wallet]
	if !ok {
		return nil, fmt.Errorf("credential for %s: %w", wallet, sentinel.ErrNotFound)
	}
	return &cred, nil
}

// Clear empties the store between tests.
func (s *InMemory) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = make(map[id.WalletID]models.Credential)
}

package balance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"lineage/internal/treasury/models"
	id "lineage/pkg/domain"
	"lineage/pkg/platform/sentinel"
)

type InMemorySuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemory
	now   time.Time
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemory()
	s.now = time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
}

func (s *InMemorySuite) TestGet() {
	s.Run("missing balance is not found", func() {
		_, err := s.store.Get(s.ctx, id.NewWalletID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("upsert then get round-trips", func() {
		balance := models.NewBalance(id.NewWalletID(), s.now)
		s.Require().NoError(balance.Credit(500, s.now))
		s.Require().NoError(s.store.Upsert(s.ctx, balance))

		got, err := s.store.Get(s.ctx, balance.Wallet)
		s.Require().NoError(err)
		s.Equal(uint64(500), got.Amount)
		s.Equal(balance.Wallet, got.Wallet)
	})

	s.Run("returned balance is a copy", func() {
		balance := models.NewBalance(id.NewWalletID(), s.now)
		s.Require().NoError(s.store.Upsert(s.ctx, balance))

		got, err := s.store.Get(s.ctx, balance.Wallet)
		s.Require().NoError(err)
		got.Amount = 999

		again, err := s.store.Get(s.ctx, balance.Wallet)
		s.Require().NoError(err)
		s.Equal(uint64(0), again.Amount)
	})
}

func (s *InMemorySuite) TestUpsert() {
	s.Run("second upsert overwrites", func() {
		balance := models.NewBalance(id.NewWalletID(), s.now)
		s.Require().NoError(s.store.Upsert(s.ctx, balance))

		s.Require().NoError(balance.Credit(250, s.now.Add(time.Minute)))
		s.Require().NoError(s.store.Upsert(s.ctx, balance))

		got, err := s.store.GetForUpdate(s.ctx, balance.Wallet)
		s.Require().NoError(err)
		s.Equal(uint64(250), got.Amount)
		s.Equal(s.now.Add(time.Minute), got.UpdatedAt)
	})
}

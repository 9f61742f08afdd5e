package service

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	balancestore "lineage/internal/treasury/store/balance"
	id "lineage/pkg/domain"
	dErrors "lineage/pkg/domain-errors"
	"lineage/pkg/platform/eventlog"
	"lineage/pkg/platform/eventlog/publisher"
	eventmemory "lineage/pkg/platform/eventlog/store/memory"
	"lineage/pkg/platform/tx"
	"lineage/pkg/requestcontext"
)

type TreasurySuite struct {
	suite.Suite
	store   *balancestore.InMemory
	events  *eventmemory.InMemoryStore
	service *Service
	now     time.Time
}

func TestTreasurySuite(t *testing.T) {
	suite.Run(t, new(TreasurySuite))
}

func (s *TreasurySuite) SetupTest() {
	s.store = balancestore.NewInMemory()
	s.events = eventmemory.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = New(s.store, publisher.NewPublisher(s.events), tx.NewMemoryRunner(), WithLogger(logger))
	s.now = time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
}

func (s *TreasurySuite) ctxFor(wallet id.WalletID) context.Context {
	ctx := requestcontext.WithTime(context.Background(), s.now)
	return requestcontext.WithWallet(ctx, wallet)
}

func (s *TreasurySuite) deposit(wallet id.WalletID, amount uint64) {
	_, err := s.service.Deposit(s.ctxFor(wallet), amount)
	s.Require().NoError(err)
}

func (s *TreasurySuite) TestDeposit() {
	s.Run("first deposit opens the balance", func() {
		wallet := id.NewWalletID()
		balance, err := s.service.Deposit(s.ctxFor(wallet), 500)
		s.Require().NoError(err)
		s.Equal(uint64(500), balance.Amount)
		s.Equal(wallet, balance.Wallet)
	})

	s.Run("deposits accumulate", func() {
		wallet := id.NewWalletID()
		s.deposit(wallet, 500)
		balance, err := s.service.Deposit(s.ctxFor(wallet), 250)
		s.Require().NoError(err)
		s.Equal(uint64(750), balance.Amount)
	})

	s.Run("zero amount rejected", func() {
		_, err := s.service.Deposit(s.ctxFor(id.NewWalletID()), 0)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("missing caller wallet unauthorized", func() {
		_, err := s.service.Deposit(context.Background(), 10)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("emits one event per deposit", func() {
		wallet := id.NewWalletID()
		s.deposit(wallet, 123)

		recent, err := s.events.ListRecent(context.Background(), 1)
		s.Require().NoError(err)
		s.Require().Len(recent, 1)
		s.Equal(eventlog.ActionTreasuryDeposited, recent[0].Action)
		s.Equal(wallet.String(), recent[0].Wallet)
		s.Equal(uint64(123), recent[0].Amount)
	})
}

func (s *TreasurySuite) TestBalance() {
	s.Run("unseen wallet reads as zero", func() {
		balance, err := s.service.Balance(s.ctxFor(id.NewWalletID()))
		s.Require().NoError(err)
		s.Equal(uint64(0), balance.Amount)
	})

	s.Run("reflects deposits", func() {
		wallet := id.NewWalletID()
		s.deposit(wallet, 321)
		balance, err := s.service.Balance(s.ctxFor(wallet))
		s.Require().NoError(err)
		s.Equal(uint64(321), balance.Amount)
	})

	s.Run("missing caller wallet unauthorized", func() {
		_, err := s.service.Balance(context.Background())
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *TreasurySuite) TestTransfer() {
	ctx := requestcontext.WithTime(context.Background(), s.now)

	s.Run("moves funds between wallets", func() {
		from, to := id.NewWalletID(), id.NewWalletID()
		s.deposit(from, 1000)

		s.Require().NoError(s.service.Transfer(ctx, from, to, 400))

		source, err := s.service.Balance(s.ctxFor(from))
		s.Require().NoError(err)
		s.Equal(uint64(600), source.Amount)

		destination, err := s.service.Balance(s.ctxFor(to))
		s.Require().NoError(err)
		s.Equal(uint64(400), destination.Amount)
	})

	s.Run("insufficient funds conflicts without mutation", func() {
		from, to := id.NewWalletID(), id.NewWalletID()
		s.deposit(from, 30)

		err := s.service.Transfer(ctx, from, to, 40)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		source, err := s.service.Balance(s.ctxFor(from))
		s.Require().NoError(err)
		s.Equal(uint64(30), source.Amount)

		destination, err := s.service.Balance(s.ctxFor(to))
		s.Require().NoError(err)
		s.Equal(uint64(0), destination.Amount)
	})

	s.Run("wallet with no balance row cannot pay", func() {
		err := s.service.Transfer(ctx, id.NewWalletID(), id.NewWalletID(), 1)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("zero amount rejected", func() {
		err := s.service.Transfer(ctx, id.NewWalletID(), id.NewWalletID(), 0)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("same wallet rejected", func() {
		wallet := id.NewWalletID()
		err := s.service.Transfer(ctx, wallet, wallet, 10)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("destination overflow aborts both sides", func() {
		from, to := id.NewWalletID(), id.NewWalletID()
		s.deposit(from, 10)
		s.deposit(to, math.MaxUint64)

		err := s.service.Transfer(ctx, from, to, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeOverflow))

		source, err := s.service.Balance(s.ctxFor(from))
		s.Require().NoError(err)
		s.Equal(uint64(10), source.Amount)
	})
}

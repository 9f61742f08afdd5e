// Package service implements the treasury: wallet balances, deposits
// and the wallet-to-wallet transfer primitive the agent tree uses for
// distributions.
package service

import (
	"context"
	"errors"
	"log/slog"

	"lineage/internal/treasury/metrics"
	"lineage/internal/treasury/models"
	id "lineage/pkg/domain"
	dErrors "lineage/pkg/domain-errors"
	"lineage/pkg/platform/eventlog"
	"lineage/pkg/platform/sentinel"
	"lineage/pkg/requestcontext"
)

// BalanceStore persists wallet balances.
type BalanceStore interface {
	Get(ctx context.Context, wallet id.WalletID) (*models.Balance, error)
	GetForUpdate(ctx context.Context, wallet id.WalletID) (*models.Balance, error)
	Upsert(ctx context.Context, balance *models.Balance) error
}

// EventSink appends one event per completed mutation.
type EventSink interface {
	Emit(ctx context.Context, event eventlog.Event) error
}

// Runner executes a function atomically.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service moves value between wallets. Balances are u64 and only change
// through the model's checked Credit and Debit.
type Service struct {
	balances BalanceStore
	events   EventSink
	runner   Runner
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the treasury metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs the treasury service.
func New(balances BalanceStore, events EventSink, runner Runner, opts ...Option) *Service {
	s := &Service{
		balances: balances,
		events:   events,
		runner:   runner,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deposit credits the caller's wallet. It is the only way value enters
// the system.
func (s *Service) Deposit(ctx context.Context, amount uint64) (*models.Balance, error) {
	caller := requestcontext.Wallet(ctx)
	if caller.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller wallet missing from context")
	}
	if amount == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "amount must be greater than zero")
	}

	var balance *models.Balance
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)

		var err error
		balance, err = s.balances.GetForUpdate(ctx, caller)
		if errors.Is(err, sentinel.ErrNotFound) {
			balance = models.NewBalance(caller, now)
		} else if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load balance")
		}

		if err := balance.Credit(amount, now); err != nil {
			return err
		}
		if err := s.balances.Upsert(ctx, balance); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist balance")
		}

		if err := s.events.Emit(ctx, eventlog.Event{
			Action: eventlog.ActionTreasuryDeposited,
			Wallet: caller.String(),
			Amount: amount,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.Deposits.Inc()
	}
	s.logger.InfoContext(ctx, "deposit credited",
		"wallet", caller,
		"amount", amount,
		"request_id", requestcontext.RequestID(ctx),
	)
	return balance, nil
}

// Balance returns the caller's balance. Wallets that never deposited
// read as zero.
func (s *Service) Balance(ctx context.Context) (*models.Balance, error) {
	caller := requestcontext.Wallet(ctx)
	if caller.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller wallet missing from context")
	}

	balance, err := s.balances.Get(ctx, caller)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.NewBalance(caller, requestcontext.Now(ctx)), nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load balance")
	}
	return balance, nil
}

// Transfer moves amount between wallets inside the caller's transaction.
// It deliberately does not open its own: distributions wrap the transfer
// and their ledger writes in one atomic operation, so a failure on
// either side rolls back both.
//
// Balance rows lock in wallet order regardless of direction, so two
// opposite transfers cannot deadlock.
func (s *Service) Transfer(ctx context.Context, from, to id.WalletID, amount uint64) error {
	if amount == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "amount must be greater than zero")
	}
	if from == to {
		return dErrors.New(dErrors.CodeInvalidInput, "cannot transfer to the same wallet")
	}

	now := requestcontext.Now(ctx)

	lockOrder := []id.WalletID{from, to}
	if to.String() < from.String() {
		lockOrder = []id.WalletID{to, from}
	}
	locked := make(map[id.WalletID]*models.Balance, 2)
	for _, wallet := range lockOrder {
		balance, err := s.balances.GetForUpdate(ctx, wallet)
		if errors.Is(err, sentinel.ErrNotFound) {
			balance = models.NewBalance(wallet, now)
		} else if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load balance")
		}
		locked[wallet] = balance
	}

	source, destination := locked[from], locked[to]
	if err := source.Debit(amount, now); err != nil {
		s.observeTransfer(err)
		return err
	}
	if err := destination.Credit(amount, now); err != nil {
		s.observeTransfer(err)
		return err
	}

	if err := s.balances.Upsert(ctx, source); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist balance")
	}
	if err := s.balances.Upsert(ctx, destination); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist balance")
	}

	s.observeTransfer(nil)
	s.logger.InfoContext(ctx, "transfer completed",
		"from", from,
		"to", to,
		"amount", amount,
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

func (s *Service) observeTransfer(err error) {
	if s.metrics == nil {
		return
	}
	if err != nil {
		s.metrics.TransferFailures.Inc()
		return
	}
	s.metrics.Transfers.Inc()
}

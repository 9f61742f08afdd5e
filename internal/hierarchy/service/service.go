package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"log/slog"
	"time"

	"lineage/internal/hierarchy/metrics"
	"lineage/internal/hierarchy/models"
	id "lineage/pkg/domain"
	dErrors "lineage/pkg/domain-errors"
	"lineage/pkg/platform/eventlog"
	"lineage/pkg/requestcontext"
)

// AgentStore persists agent accounts. The ForUpdate variant must hold the
// row for the rest of the transaction in SQL mode.
type AgentStore interface {
	Create(ctx context.Context, agent *models.AgentAccount) error
	FindByAddress(ctx context.Context, address id.Address) (*models.AgentAccount, error)
	FindByAddressForUpdate(ctx context.Context, address id.Address) (*models.AgentAccount, error)
	Update(ctx context.Context, agent *models.AgentAccount) error
	ListChildren(ctx context.Context, parent id.Address) ([]*models.AgentAccount, error)
}

// RegistryStore persists the registry singleton.
type RegistryStore interface {
	Create(ctx context.Context, registry *models.Registry) error
	Get(ctx context.Context) (*models.Registry, error)
	GetForUpdate(ctx context.Context) (*models.Registry, error)
	Update(ctx context.Context, registry *models.Registry) error
}

// Treasury moves value between wallets. Transfer must join the ambient
// transaction and fail without side effects when funds are short.
type Treasury interface {
	Transfer(ctx context.Context, from, to id.WalletID, amount uint64) error
}

// EventSink appends one event per completed mutation. Appends join the
// ambient transaction, so a failed append rolls the mutation back.
type EventSink interface {
	Emit(ctx context.Context, event eventlog.Event) error
}

// Runner executes a function atomically.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service orchestrates the agent tree: registration, spawning, earnings,
// distributions and deactivation. Stores are pure I/O; every invariant
// lives here or in the models.
type Service struct {
	agents     AgentStore
	registries RegistryStore
	treasury   Treasury
	events     EventSink
	runner     Runner
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(agents AgentStore, registries RegistryStore, treasury Treasury, events EventSink, runner Runner, opts ...Option) *Service {
	s := &Service{
		agents:     agents,
		registries: registries,
		treasury:   treasury,
		events:     events,
		runner:     runner,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// callerWallet extracts the authenticated wallet placed in the context by
// the auth middleware.
func (s *Service) callerWallet(ctx context.Context) (id.WalletID, error) {
	wallet := requestcontext.Wallet(ctx)
	if wallet.IsNil() {
		return id.WalletID{}, dErrors.New(dErrors.CodeUnauthorized, "caller wallet missing from context")
	}
	return wallet, nil
}

// emit appends an event inside the current transaction, fail closed.
func (s *Service) emit(ctx context.Context, event eventlog.Event) error {
	if err := s.events.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append event")
	}
	return nil
}

func (s *Service) logOperation(ctx context.Context, msg string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	s.logger.InfoContext(ctx, msg, attributes...)
}

func (s *Service) observeOp(operation string, err error, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(operation, err, time.Since(start))
	}
}

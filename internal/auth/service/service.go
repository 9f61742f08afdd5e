// Package service implements wallet identity: credential creation and
// access token issuance. A wallet here is just a credential pair; it
// only gains meaning once it backs an agent or a balance.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"lineage/internal/auth/device"
	"lineage/internal/auth/metrics"
	"lineage/internal/auth/models"
	"lineage/internal/auth/secrets"
	id "lineage/pkg/domain"
	dErrors "lineage/pkg/domain-errors"
	"lineage/pkg/platform/eventlog"
	"lineage/pkg/platform/sentinel"
	"lineage/pkg/requestcontext"
)

// CredentialStore persists wallet credentials.
type CredentialStore interface {
	Create(ctx context.Context, cred *models.Credential) error
	Get(ctx context.Context, wallet id.WalletID) (*models.Credential, error)
}

// EventSink appends one event per completed mutation.
type EventSink interface {
	Emit(ctx context.Context, event eventlog.Event) error
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(wallet id.WalletID, now time.Time) (string, time.Time, error)
}

// Service creates wallets and exchanges their secrets for tokens.
type Service struct {
	credentials CredentialStore
	events      EventSink
	tokens      TokenIssuer
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the auth metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs the auth service.
func New(credentials CredentialStore, events EventSink, tokens TokenIssuer, opts ...Option) *Service {
	s := &Service{
		credentials: credentials,
		events:      events,
		tokens:      tokens,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateWallet mints a new wallet credential pair. The plaintext secret
// appears only in the return value; the store keeps its bcrypt hash.
func (s *Service) CreateWallet(ctx context.Context) (*models.WalletCredentials, error) {
	wallet := id.NewWalletID()

	secret, err := secrets.Generate()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate secret")
	}
	hash, err := secrets.Hash(secret)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash secret")
	}

	cred := &models.Credential{
		Wallet:     wallet,
		SecretHash: hash,
		CreatedAt:  requestcontext.Now(ctx),
	}
	if err := s.credentials.Create(ctx, cred); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create credential")
	}

	if s.metrics != nil {
		s.metrics.WalletsCreated.Inc()
	}
	s.logger.InfoContext(ctx, "wallet created",
		"wallet", wallet,
		"request_id", requestcontext.RequestID(ctx),
	)
	return &models.WalletCredentials{Wallet: wallet, Secret: secret}, nil
}

// IssueToken exchanges a wallet secret for a bearer token. Lookup and
// verification failures collapse into one message so callers cannot
// probe which wallets exist.
func (s *Service) IssueToken(ctx context.Context, wallet id.WalletID, secret string) (_ *models.Token, err error) {
	defer func() { s.observeToken(err) }()

	cred, err := s.credentials.Get(ctx, wallet)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "unknown wallet or wrong secret")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
	}

	if err := secrets.Verify(secret, cred.SecretHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unknown wallet or wrong secret")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify secret")
	}

	now := requestcontext.Now(ctx)
	signed, expiresAt, err := s.tokens.Issue(cred.Wallet, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}

	summary := device.Summarize(requestcontext.UserAgent(ctx))
	if err := s.events.Emit(ctx, eventlog.Event{
		Action: eventlog.ActionTokenIssued,
		Wallet: cred.Wallet.String(),
		Device: summary,
	}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append event")
	}

	s.logger.InfoContext(ctx, "token issued",
		"wallet", cred.Wallet,
		"device", summary,
		"request_id", requestcontext.RequestID(ctx),
	)
	return &models.Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(expiresAt.Sub(now) / time.Second),
	}, nil
}

func (s *Service) observeToken(err error) {
	if s.metrics == nil {
		return
	}
	if err != nil {
		s.metrics.TokenFailures.Inc()
		return
	}
	s.metrics.TokensIssued.Inc()
}

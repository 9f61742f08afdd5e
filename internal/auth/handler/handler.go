// Package handler exposes wallet creation and token issuance. Neither
// route takes a bearer token: one mints credentials, the other trades
// a secret for one.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	"lineage/internal/auth/models"
	"lineage/internal/platform/metrics"
	"lineage/internal/platform/middleware"
	id "lineage/pkg/domain"
	dErrors "lineage/pkg/domain-errors"
	"lineage/pkg/platform/httputil"
	"lineage/pkg/requestcontext"
)

// Service defines the auth operations the handler exposes.
type Service interface {
	CreateWallet(ctx context.Context) (*models.WalletCredentials, error)
	IssueToken(ctx context.Context, wallet id.WalletID, secret string) (*models.Token, error)
}

// TokenRequest is the body of POST /v1/tokens.
type TokenRequest struct {
	WalletID     string `json:"wallet_id"`
	WalletSecret string `json:"wallet_secret"`
}

// Normalize trims the wallet identifier. The secret is compared as
// sent.
func (r *TokenRequest) Normalize() {
	r.WalletID = strings.TrimSpace(r.WalletID)
}

// Validate checks the structural shape of the request.
func (r *TokenRequest) Validate() error {
	if r.WalletID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "wallet_id is required")
	}
	if !govalidator.IsUUID(r.WalletID) {
		return dErrors.New(dErrors.CodeInvalidInput, "wallet_id must be a valid UUID")
	}
	if r.WalletSecret == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "wallet_secret is required")
	}
	return nil
}

// Handler wires the wallet identity endpoints to the auth service.
type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New constructs an auth handler with its dependencies.
func New(service Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
		metrics: metrics,
	}
}

// Register adds the auth routes to r with their middleware chain.
// Client metadata is captured so issued tokens carry a device summary
// in the event feed.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.RequestID)
		r.Use(middleware.RequestTime)
		r.Use(middleware.ClientMetadata)
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.Latency(h.metrics))

		r.Post("/v1/wallets", h.handleCreateWallet)
		r.Post("/v1/tokens", h.handleIssueToken)
	})
}

// handleCreateWallet handles POST /v1/wallets.
func (h *Handler) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	creds, err := h.service.CreateWallet(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "wallet creation failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, creds)
}

// handleIssueToken handles POST /v1/tokens.
func (h *Handler) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req TokenRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	wallet, err := id.ParseWalletID(req.WalletID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	issued, err := h.service.IssueToken(ctx, wallet, req.WalletSecret)
	if err != nil {
		h.logger.WarnContext(ctx, "token request refused",
			"request_id", requestcontext.RequestID(ctx),
			"wallet", req.WalletID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, issued)
}

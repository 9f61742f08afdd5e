// Package handler exposes the treasury over HTTP. Both routes act on
// the caller's own balance, so the whole surface sits behind bearer
// auth.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"lineage/internal/platform/metrics"
	"lineage/internal/platform/middleware"
	"lineage/internal/treasury/models"
	"lineage/pkg/platform/httputil"
	"lineage/pkg/requestcontext"
)

// Service defines the treasury operations the handler exposes.
type Service interface {
	Deposit(ctx context.Context, amount uint64) (*models.Balance, error)
	Balance(ctx context.Context) (*models.Balance, error)
}

// DepositRequest is the body of POST /v1/treasury/deposits.
type DepositRequest struct {
	Amount uint64 `json:"amount"`
}

// Handler wires the treasury endpoints to the treasury service.
type Handler struct {
	service  Service
	verifier middleware.TokenVerifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New constructs a treasury handler with its dependencies.
func New(service Service, verifier middleware.TokenVerifier, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service:  service,
		verifier: verifier,
		logger:   logger,
		metrics:  metrics,
	}
}

// Register adds the treasury routes to r with their middleware chain.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.RequestID)
		r.Use(middleware.RequestTime)
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.Latency(h.metrics))
		r.Use(middleware.RequireWallet(h.verifier, h.logger))

		r.Post("/v1/treasury/deposits", h.handleDeposit)
		r.Get("/v1/treasury/balance", h.handleBalance)
	})
}

// handleDeposit handles POST /v1/treasury/deposits.
func (h *Handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req DepositRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	balance, err := h.service.Deposit(ctx, req.Amount)
	if err != nil {
		h.logger.WarnContext(ctx, "deposit rejected",
			"request_id", requestcontext.RequestID(ctx),
			"amount", req.Amount,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, balance)
}

// handleBalance handles GET /v1/treasury/balance.
func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.service.Balance(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, balance)
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"lineage/internal/hierarchy/models"
	"lineage/internal/platform/metrics"
	"lineage/internal/platform/middleware"
	id "lineage/pkg/domain"
	"lineage/pkg/platform/eventlog"
	"lineage/pkg/platform/httputil"
	"lineage/pkg/requestcontext"
)

// Service defines the agent tree operations the handler exposes.
type Service interface {
	Initialize(ctx context.Context) (*models.Registry, error)
	GetRegistry(ctx context.Context) (*models.Registry, error)
	RegisterRootAgent(ctx context.Context, name, specialization string) (*models.AgentAccount, error)
	SpawnChild(ctx context.Context, childWallet id.WalletID, name, specialization string, shareBps uint16) (*models.AgentAccount, error)
	RecordEarning(ctx context.Context, amount uint64) (*models.AgentAccount, error)
	DistributeToParent(ctx context.Context, amount uint64) (*models.AgentAccount, error)
	DeactivateAgent(ctx context.Context, wallet id.WalletID) (*models.AgentAccount, error)
	GetAgent(ctx context.Context, wallet id.WalletID) (*models.AgentAccount, error)
	ListChildren(ctx context.Context, wallet id.WalletID) ([]*models.AgentAccount, error)
}

// EventReader serves the per-agent event feed.
type EventReader interface {
	ListByAgent(ctx context.Context, agent id.Address) ([]eventlog.Event, error)
}

// Handler wires the agent tree endpoints to the hierarchy service.
type Handler struct {
	service  Service
	events   EventReader
	verifier middleware.TokenVerifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New constructs a hierarchy handler with its dependencies.
func New(service Service, events EventReader, verifier middleware.TokenVerifier, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service:  service,
		events:   events,
		verifier: verifier,
		logger:   logger,
		metrics:  metrics,
	}
}

// Register adds the hierarchy routes to r with their middleware chain.
// Reads are public; every mutation requires a bearer token.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.RequestID)
		r.Use(middleware.RequestTime)
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.Latency(h.metrics))

		r.Get("/v1/registry", h.handleGetRegistry)
		r.Get("/v1/agents/{wallet}", h.handleGetAgent)
		r.Get("/v1/agents/{wallet}/children", h.handleListChildren)
		r.Get("/v1/agents/{wallet}/events", h.handleAgentEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireWallet(h.verifier, h.logger))
			r.Post("/v1/registry", h.handleInitialize)
			r.Post("/v1/agents/root", h.handleRegisterRoot)
			r.Post("/v1/agents/spawn", h.handleSpawnChild)
			r.Post("/v1/agents/earnings", h.handleRecordEarning)
			r.Post("/v1/agents/distributions", h.handleDistribute)
			r.Post("/v1/agents/{wallet}/deactivate", h.handleDeactivate)
		})
	})
}

// handleInitialize handles POST /v1/registry.
func (h *Handler) handleInitialize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	registry, err := h.service.Initialize(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "registry initialization failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, registry)
}

// handleGetRegistry handles GET /v1/registry.
func (h *Handler) handleGetRegistry(w http.ResponseWriter, r *http.Request) {
	registry, err := h.service.GetRegistry(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, registry)
}

// handleRegisterRoot handles POST /v1/agents/root.
func (h *Handler) handleRegisterRoot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RegisterRootRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	root, err := h.service.RegisterRootAgent(ctx, req.Name, req.Specialization)
	if err != nil {
		h.logger.WarnContext(ctx, "root registration failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, root)
}

// handleSpawnChild handles POST /v1/agents/spawn.
func (h *Handler) handleSpawnChild(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SpawnChildRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	childWallet, err := id.ParseWalletID(req.ChildWallet)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	child, err := h.service.SpawnChild(ctx, childWallet, req.Name, req.Specialization, req.RevenueShareBps)
	if err != nil {
		h.logger.WarnContext(ctx, "spawn failed",
			"request_id", requestcontext.RequestID(ctx),
			"child_wallet", req.ChildWallet,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, child)
}

// handleRecordEarning handles POST /v1/agents/earnings.
func (h *Handler) handleRecordEarning(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RecordEarningRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	agent, err := h.service.RecordEarning(ctx, req.Amount)
	if err != nil {
		h.logger.WarnContext(ctx, "earning rejected",
			"request_id", requestcontext.RequestID(ctx),
			"amount", req.Amount,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, agent)
}

// handleDistribute handles POST /v1/agents/distributions.
func (h *Handler) handleDistribute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req DistributeRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	agent, err := h.service.DistributeToParent(ctx, req.Amount)
	if err != nil {
		h.logger.WarnContext(ctx, "distribution rejected",
			"request_id", requestcontext.RequestID(ctx),
			"amount", req.Amount,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, agent)
}

// handleDeactivate handles POST /v1/agents/{wallet}/deactivate.
func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	wallet, err := walletParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	agent, err := h.service.DeactivateAgent(ctx, wallet)
	if err != nil {
		h.logger.WarnContext(ctx, "deactivation rejected",
			"request_id", requestcontext.RequestID(ctx),
			"wallet", wallet,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, agent)
}

// handleGetAgent handles GET /v1/agents/{wallet}.
func (h *Handler) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	wallet, err := walletParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	agent, err := h.service.GetAgent(r.Context(), wallet)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, agent)
}

// handleListChildren handles GET /v1/agents/{wallet}/children.
func (h *Handler) handleListChildren(w http.ResponseWriter, r *http.Request) {
	wallet, err := walletParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	children, err := h.service.ListChildren(r.Context(), wallet)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, childrenResponse{Children: children})
}

// handleAgentEvents handles GET /v1/agents/{wallet}/events. The agent is
// resolved first so an unknown wallet reads as 404, not an empty feed.
func (h *Handler) handleAgentEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	wallet, err := walletParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	agent, err := h.service.GetAgent(ctx, wallet)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.events.ListByAgent(ctx, agent.Address)
	if err != nil {
		h.logger.ErrorContext(ctx, "event feed read failed",
			"request_id", requestcontext.RequestID(ctx),
			"agent", agent.Address,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, eventsResponse{Events: events})
}

func walletParam(r *http.Request) (id.WalletID, error) {
	return id.ParseWalletID(chi.URLParam(r, "wallet"))
}

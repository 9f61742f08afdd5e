package service

import (
	"context"
	"errors"
	"time"

	"lineage/internal/hierarchy/models"
	id "lineage/pkg/domain"
	dErrors "lineage/pkg/domain-errors"
	"lineage/pkg/platform/eventlog"
	"lineage/pkg/platform/sentinel"
	"lineage/pkg/requestcontext"
)

// Initialize creates the registry with the caller as authority. The
// registry address is fixed, so a second call conflicts.
func (s *Service) Initialize(ctx context.Context) (registry *models.Registry, err error) {
	start := time.Now()
	defer func() { s.observeOp("initialize", err, start) }()

	caller, err := s.callerWallet(ctx)
	if err != nil {
		return nil, err
	}

	registry = models.NewRegistry(caller, requestcontext.Now(ctx))
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.registries.Create(ctx, registry); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "registry already initialized")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create registry")
		}
		return s.emit(ctx, eventlog.Event{
			Action: eventlog.ActionRegistryInitialized,
			Agent:  registry.Address,
			Wallet: caller.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logOperation(ctx, "registry initialized", "authority", caller.String())
	return registry, nil
}

// GetRegistry returns the registry.
func (s *Service) GetRegistry(ctx context.Context) (*models.Registry, error) {
	registry, err := s.registries.Get(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "registry not initialized")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registry")
	}
	return registry, nil
}

// RegisterRootAgent creates the depth-0 agent backed by the authority's
// own wallet. Authority only.
func (s *Service) RegisterRootAgent(ctx context.Context, name, specialization string) (root *models.AgentAccount, err error) {
	start := time.Now()
	defer func() { s.observeOp("register_root_agent", err, start) }()

	caller, err := s.callerWallet(ctx)
	if err != nil {
		return nil, err
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		registry, err := s.registries.GetForUpdate(ctx)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "registry not initialized")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registry")
		}
		if !registry.IsAuthority(caller) {
			return dErrors.New(dErrors.CodeForbidden, "caller is not the registry authority")
		}

		root, err = models.NewRootAgent(caller, name, specialization, requestcontext.Now(ctx))
		if err != nil {
			return err
		}

		next := *registry
		if err := next.ApplyAgentRegistered(); err != nil {
			return err
		}

		if err := s.agents.Create(ctx, root); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "wallet already backs an agent")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create root agent")
		}
		if err := s.registries.Update(ctx, &next); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update registry")
		}

		return s.emit(ctx, eventlog.Event{
			Action:         eventlog.ActionAgentRegistered,
			Agent:          root.Address,
			Wallet:         root.Wallet.String(),
			Name:           root.Name,
			Specialization: root.Specialization,
		})
	})
	if err != nil {
		return nil, err
	}

	s.incrementRegistered()
	s.logOperation(ctx, "root agent registered", "agent", string(root.Address))
	return root, nil
}

// DeactivateAgent marks the addressed agent inactive. Authority only.
// Unconditional: deactivating an inactive agent succeeds again and emits
// another event. Children are not touched.
func (s *Service) DeactivateAgent(ctx context.Context, wallet id.WalletID) (agent *models.AgentAccount, err error) {
	start := time.Now()
	defer func() { s.observeOp("deactivate_agent", err, start) }()

	caller, err := s.callerWallet(ctx)
	if err != nil {
		return nil, err
	}
	if wallet.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "wallet is required")
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		registry, err := s.registries.Get(ctx)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "registry not initialized")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registry")
		}
		if !registry.IsAuthority(caller) {
			return dErrors.New(dErrors.CodeForbidden, "caller is not the registry authority")
		}

		current, err := s.agents.FindByAddressForUpdate(ctx, id.AgentAddress(wallet))
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "agent not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load agent")
		}

		next := *current
		next.Deactivate()
		if err := s.agents.Update(ctx, &next); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update agent")
		}
		agent = &next

		return s.emit(ctx, eventlog.Event{
			Action: eventlog.ActionAgentDeactivated,
			Agent:  next.Address,
			Wallet: next.Wallet.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.incrementDeactivated()
	s.logOperation(ctx, "agent deactivated", "agent", string(agent.Address))
	return agent, nil
}

func (s *Service) incrementRegistered() {
	if s.metrics != nil {
		s.metrics.AgentsRegistered.Inc()
	}
}

func (s *Service) incrementDeactivated() {
	if s.metrics != nil {
		s.metrics.AgentsDeactivated.Inc()
	}
}

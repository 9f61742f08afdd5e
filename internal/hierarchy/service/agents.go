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

// SpawnChild creates a child agent under the caller's agent. The child
// wallet is supplied by the caller and must not already back an agent.
func (s *Service) SpawnChild(ctx context.Context, childWallet id.WalletID, name, specialization string, shareBps uint16) (child *models.AgentAccount, err error) {
	start := time.Now()
	defer func() { s.observeOp("spawn_child", err, start) }()

	caller, err := s.callerWallet(ctx)
	if err != nil {
		return nil, err
	}
	if childWallet.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "child wallet is required")
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		parent, err := s.agents.FindByAddressForUpdate(ctx, id.AgentAddress(caller))
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "agent not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load parent agent")
		}

		if err := models.ValidateName(name); err != nil {
			return err
		}
		if err := models.ValidateSpecialization(specialization); err != nil {
			return err
		}
		if err := models.ValidateRevenueShare(shareBps); err != nil {
			return err
		}
		if err := parent.CanSpawnChild(); err != nil {
			return err
		}

		child, err = models.NewChildAgent(childWallet, parent, name, specialization, shareBps, requestcontext.Now(ctx))
		if err != nil {
			return err
		}

		nextParent := *parent
		if err := nextParent.ApplyChildSpawned(); err != nil {
			return err
		}

		registry, err := s.registries.GetForUpdate(ctx)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "registry not initialized")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registry")
		}
		nextRegistry := *registry
		if err := nextRegistry.ApplySpawn(); err != nil {
			return err
		}

		if err := s.agents.Create(ctx, child); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "wallet already backs an agent")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create child agent")
		}
		if err := s.agents.Update(ctx, &nextParent); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update parent agent")
		}
		if err := s.registries.Update(ctx, &nextRegistry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update registry")
		}

		return s.emit(ctx, eventlog.Event{
			Action:          eventlog.ActionAgentSpawned,
			Agent:           child.Address,
			Wallet:          child.Wallet.String(),
			Parent:          child.Parent,
			Name:            child.Name,
			Specialization:  child.Specialization,
			Depth:           child.Depth,
			RevenueShareBps: child.RevenueShareBps,
		})
	})
	if err != nil {
		return nil, err
	}

	s.incrementSpawned()
	s.logOperation(ctx, "child agent spawned",
		"agent", string(child.Address),
		"parent", string(child.Parent),
		"depth", child.Depth,
	)
	return child, nil
}

// RecordEarning appends an earning to the caller's agent ledger. No value
// moves; the agent and registry running totals grow by amount.
func (s *Service) RecordEarning(ctx context.Context, amount uint64) (agent *models.AgentAccount, err error) {
	start := time.Now()
	defer func() { s.observeOp("record_earning", err, start) }()

	caller, err := s.callerWallet(ctx)
	if err != nil {
		return nil, err
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.agents.FindByAddressForUpdate(ctx, id.AgentAddress(caller))
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "agent not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load agent")
		}
		if err := current.CanRecordEarning(amount); err != nil {
			return err
		}

		next := *current
		if err := next.ApplyEarning(amount); err != nil {
			return err
		}

		registry, err := s.registries.GetForUpdate(ctx)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "registry not initialized")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registry")
		}
		nextRegistry := *registry
		if err := nextRegistry.ApplyEarning(amount); err != nil {
			return err
		}

		if err := s.agents.Update(ctx, &next); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update agent")
		}
		if err := s.registries.Update(ctx, &nextRegistry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update registry")
		}
		agent = &next

		return s.emit(ctx, eventlog.Event{
			Action:      eventlog.ActionEarningRecorded,
			Agent:       next.Address,
			Wallet:      next.Wallet.String(),
			Amount:      amount,
			TotalEarned: next.TotalEarned,
		})
	})
	if err != nil {
		return nil, err
	}

	s.incrementEarnings()
	s.logOperation(ctx, "earning recorded", "agent", string(agent.Address), "amount", amount)
	return agent, nil
}

// DistributeToParent moves amount from the caller's wallet to the parent
// agent's wallet, then records it on the child's ledger. The transfer
// runs before any ledger write: if it fails, nothing changes. The parent
// may be inactive; the distribution still succeeds.
func (s *Service) DistributeToParent(ctx context.Context, amount uint64) (agent *models.AgentAccount, err error) {
	start := time.Now()
	defer func() { s.observeOp("distribute_to_parent", err, start) }()

	caller, err := s.callerWallet(ctx)
	if err != nil {
		return nil, err
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		child, err := s.agents.FindByAddressForUpdate(ctx, id.AgentAddress(caller))
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "agent not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load agent")
		}
		if err := child.CanDistribute(amount); err != nil {
			return err
		}

		parent, err := s.agents.FindByAddress(ctx, child.Parent)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load parent agent")
		}

		next := *child
		if err := next.ApplyDistribution(amount); err != nil {
			return err
		}

		if err := s.treasury.Transfer(ctx, child.Wallet, parent.Wallet, amount); err != nil {
			var dErr *dErrors.Error
			if errors.As(err, &dErr) {
				return err
			}
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "transfer failed")
		}

		if err := s.agents.Update(ctx, &next); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update agent")
		}
		agent = &next

		return s.emit(ctx, eventlog.Event{
			Action:           eventlog.ActionRevenueDistributed,
			Agent:            next.Address,
			Wallet:           next.Wallet.String(),
			Parent:           next.Parent,
			Amount:           amount,
			TotalDistributed: next.TotalDistributedToParent,
		})
	})
	if err != nil {
		return nil, err
	}

	s.incrementDistributed()
	s.logOperation(ctx, "revenue distributed",
		"agent", string(agent.Address),
		"parent", string(agent.Parent),
		"amount", amount,
	)
	return agent, nil
}

// GetAgent returns the agent backed by wallet.
func (s *Service) GetAgent(ctx context.Context, wallet id.WalletID) (*models.AgentAccount, error) {
	agent, err := s.agents.FindByAddress(ctx, id.AgentAddress(wallet))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "agent not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load agent")
	}
	return agent, nil
}

// ListChildren returns the direct children of the agent backed by wallet.
func (s *Service) ListChildren(ctx context.Context, wallet id.WalletID) ([]*models.AgentAccount, error) {
	parent, err := s.GetAgent(ctx, wallet)
	if err != nil {
		return nil, err
	}
	children, err := s.agents.ListChildren(ctx, parent.Address)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list children")
	}
	return children, nil
}

func (s *Service) incrementSpawned() {
	if s.metrics != nil {
		s.metrics.AgentsSpawned.Inc()
	}
}

func (s *Service) incrementEarnings() {
	if s.metrics != nil {
		s.metrics.EarningsRecorded.Inc()
	}
}

func (s *Service) incrementDistributed() {
	if s.metrics != nil {
		s.metrics.RevenueDistributed.Inc()
	}
}

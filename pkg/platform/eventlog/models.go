// Package eventlog is the append-only event surface of the ledger. Every
// mutating operation emits exactly one structured event after all of its
// mutations succeed; outside observers consume the log, the core never
// reads it back for decisions.
package eventlog

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "lineage/pkg/domain"
)

// Action names the operation an event records.
type Action string

const (
	ActionRegistryInitialized Action = "registry_initialized"
	ActionAgentRegistered     Action = "agent_registered"
	ActionAgentSpawned        Action = "agent_spawned"
	ActionEarningRecorded     Action = "earning_recorded"
	ActionRevenueDistributed  Action = "revenue_distributed"
	ActionAgentDeactivated    Action = "agent_deactivated"
	ActionTokenIssued         Action = "token_issued"
	ActionTreasuryDeposited   Action = "treasury_deposited"
)

// Event is emitted from domain logic to record a completed state
// transition. One flat struct covers every action; fields that do not
// apply stay zero. Keep it transport-agnostic so stores and sinks can
// fan out.
type Event struct {
	ID               uuid.UUID  `json:"id"`
	Timestamp        time.Time  `json:"timestamp"`
	Action           Action     `json:"action"`
	Agent            id.Address `json:"agent,omitempty"`
	Wallet           string     `json:"wallet,omitempty"`
	Parent           id.Address `json:"parent,omitempty"`
	Name             string     `json:"name,omitempty"`
	Specialization   string     `json:"specialization,omitempty"`
	Depth            uint8      `json:"depth,omitempty"`
	RevenueShareBps  uint16     `json:"revenue_share_bps,omitempty"`
	Amount           uint64     `json:"amount,omitempty"`
	TotalEarned      uint64     `json:"total_earned,omitempty"`
	TotalDistributed uint64     `json:"total_distributed,omitempty"`
	RequestID        string     `json:"request_id,omitempty"`
	Device           string     `json:"device,omitempty"`
}

// Store persists events. The postgres implementation writes to the
// transactional outbox so the append commits or rolls back with the
// operation that emitted it.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByAgent(ctx context.Context, agent id.Address) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

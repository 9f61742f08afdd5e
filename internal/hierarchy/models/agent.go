package models

import (
	"time"

	id "lineage/pkg/domain"
	dErrors "lineage/pkg/domain-errors"
)

// Tree and field limits. These are wire-visible contract values, not
// tuning knobs.
const (
	// MaxDepth caps the tree at six levels: root at depth 0, deepest
	// child at depth 5.
	MaxDepth = 5
	// MaxNameLen is the maximum agent name length in bytes.
	MaxNameLen = 32
	// MaxSpecializationLen is the maximum specialization length in bytes.
	MaxSpecializationLen = 64
	// MaxShareBps is the upper bound for revenue share basis points.
	MaxShareBps = 10000
)

// AgentAccount is one node of the agent tree.
//
// Invariants:
//   - Address is derived from Wallet, so one wallet backs at most one
//     agent and re-registering a wallet conflicts in storage.
//   - Parent is the zero address exactly when the agent is the root.
//   - Name and Specialization are immutable after creation.
//   - Depth is 0 for the root and parent depth + 1 for children, never
//     above MaxDepth.
//   - RevenueShareBps is recorded at spawn time and surfaced to readers
//     but never enforced; distribution amounts are caller-chosen.
//   - TotalEarned, TotalDistributedToParent and ChildrenCount are
//     monotonic, moved only through checked arithmetic.
//   - Deactivation is terminal; there is no reactivation transition.
type AgentAccount struct {
	Address                  id.Address  `json:"address"`
	Wallet                   id.WalletID `json:"wallet"`
	Parent                   id.Address  `json:"parent,omitempty"`
	Name                     string      `json:"name"`
	Specialization           string      `json:"specialization"`
	TotalEarned              uint64      `json:"total_earned"`
	TotalDistributedToParent uint64      `json:"total_distributed_to_parent"`
	ChildrenCount            uint64      `json:"children_count"`
	Depth                    uint8       `json:"depth"`
	RevenueShareBps          uint16      `json:"revenue_share_bps"`
	IsActive                 bool        `json:"is_active"`
	CreatedAt                time.Time   `json:"created_at"`
}

// ValidateName enforces the name length limit.
func ValidateName(name string) error {
	if len(name) > MaxNameLen {
		return dErrors.Newf(dErrors.CodeInvalidInput, "name exceeds %d bytes", MaxNameLen)
	}
	return nil
}

// ValidateSpecialization enforces the specialization length limit.
func ValidateSpecialization(specialization string) error {
	if len(specialization) > MaxSpecializationLen {
		return dErrors.Newf(dErrors.CodeInvalidInput, "specialization exceeds %d bytes", MaxSpecializationLen)
	}
	return nil
}

// ValidateRevenueShare enforces the basis point bound.
func ValidateRevenueShare(bps uint16) error {
	if bps > MaxShareBps {
		return dErrors.Newf(dErrors.CodeInvalidInput, "revenue share exceeds %d basis points", MaxShareBps)
	}
	return nil
}

// NewRootAgent creates the tree root: no parent, depth 0, zero share.
func NewRootAgent(wallet id.WalletID, name, specialization string, now time.Time) (*AgentAccount, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := ValidateSpecialization(specialization); err != nil {
		return nil, err
	}
	return &AgentAccount{
		Address:        id.AgentAddress(wallet),
		Wallet:         wallet,
		Name:           name,
		Specialization: specialization,
		IsActive:       true,
		CreatedAt:      now,
	}, nil
}

// NewChildAgent creates a child under parent at depth parent.Depth + 1.
// Call parent.CanSpawnChild first; this constructor only validates the
// child's own fields.
func NewChildAgent(wallet id.WalletID, parent *AgentAccount, name, specialization string, shareBps uint16, now time.Time) (*AgentAccount, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := ValidateSpecialization(specialization); err != nil {
		return nil, err
	}
	if err := ValidateRevenueShare(shareBps); err != nil {
		return nil, err
	}
	return &AgentAccount{
		Address:         id.AgentAddress(wallet),
		Wallet:          wallet,
		Parent:          parent.Address,
		Name:            name,
		Specialization:  specialization,
		Depth:           parent.Depth + 1,
		RevenueShareBps: shareBps,
		IsActive:        true,
		CreatedAt:       now,
	}, nil
}

// IsRoot reports whether the agent sits at the top of the tree.
func (a *AgentAccount) IsRoot() bool {
	return a.Parent.IsZero()
}

// CanSpawnChild checks the spawn preconditions on the parent side.
func (a *AgentAccount) CanSpawnChild() error {
	if !a.IsActive {
		return dErrors.New(dErrors.CodeConflict, "agent is inactive")
	}
	if a.Depth >= MaxDepth {
		return dErrors.Newf(dErrors.CodeConflict, "maximum depth %d reached", MaxDepth)
	}
	return nil
}

// ApplyChildSpawned counts a new direct child.
func (a *AgentAccount) ApplyChildSpawned() error {
	children, err := CheckedAdd(a.ChildrenCount, 1)
	if err != nil {
		return err
	}
	a.ChildrenCount = children
	return nil
}

// CanRecordEarning checks the earning preconditions.
func (a *AgentAccount) CanRecordEarning(amount uint64) error {
	if amount == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "amount must be greater than zero")
	}
	if !a.IsActive {
		return dErrors.New(dErrors.CodeConflict, "agent is inactive")
	}
	return nil
}

// ApplyEarning adds a recorded earning to the agent's lifetime total.
func (a *AgentAccount) ApplyEarning(amount uint64) error {
	earned, err := CheckedAdd(a.TotalEarned, amount)
	if err != nil {
		return err
	}
	a.TotalEarned = earned
	return nil
}

// CanDistribute checks the distribution preconditions on the child side.
// The parent's state is deliberately not consulted: distributions to an
// inactive parent still succeed.
func (a *AgentAccount) CanDistribute(amount uint64) error {
	if amount == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "amount must be greater than zero")
	}
	if !a.IsActive {
		return dErrors.New(dErrors.CodeConflict, "agent is inactive")
	}
	if a.IsRoot() {
		return dErrors.New(dErrors.CodeConflict, "agent has no parent")
	}
	return nil
}

// ApplyDistribution adds a completed distribution to the lifetime total.
func (a *AgentAccount) ApplyDistribution(amount uint64) error {
	distributed, err := CheckedAdd(a.TotalDistributedToParent, amount)
	if err != nil {
		return err
	}
	a.TotalDistributedToParent = distributed
	return nil
}

// Deactivate marks the agent inactive. Unconditional and idempotent:
// deactivating an already inactive agent is a no-op that still counts as
// a successful operation.
func (a *AgentAccount) Deactivate() {
	a.IsActive = false
}

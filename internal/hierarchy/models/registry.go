package models

import (
	"time"

	id "lineage/pkg/domain"
)

// Registry is the singleton aggregate anchoring the agent tree.
//
// Invariants:
//   - Exactly one registry exists per deployment; its address is fixed,
//     so a second Initialize conflicts in storage.
//   - Authority is set at initialization and never changes.
//   - TotalAgents, TotalEarnings and TotalSpawns are monotonic and only
//     move through checked arithmetic.
//   - TotalAgents == rootCount + TotalSpawns, where rootCount is 1 once
//     a root agent exists and 0 before.
type Registry struct {
	Address       id.Address  `json:"address"`
	Authority     id.WalletID `json:"authority"`
	TotalAgents   uint64      `json:"total_agents"`
	TotalEarnings uint64      `json:"total_earnings"`
	TotalSpawns   uint64      `json:"total_spawns"`
	CreatedAt     time.Time   `json:"created_at"`
}

// NewRegistry creates the registry with the caller as authority and all
// counters at zero.
func NewRegistry(authority id.WalletID, now time.Time) *Registry {
	return &Registry{
		Address:   id.RegistryAddress(),
		Authority: authority,
		CreatedAt: now,
	}
}

// IsAuthority reports whether the wallet holds administrative rights.
func (r *Registry) IsAuthority(wallet id.WalletID) bool {
	return r.Authority == wallet
}

// ApplyAgentRegistered counts a newly registered root agent.
func (r *Registry) ApplyAgentRegistered() error {
	agents, err := CheckedAdd(r.TotalAgents, 1)
	if err != nil {
		return err
	}
	r.TotalAgents = agents
	return nil
}

// ApplySpawn counts a spawned child agent.
func (r *Registry) ApplySpawn() error {
	agents, err := CheckedAdd(r.TotalAgents, 1)
	if err != nil {
		return err
	}
	spawns, err := CheckedAdd(r.TotalSpawns, 1)
	if err != nil {
		return err
	}
	r.TotalAgents = agents
	r.TotalSpawns = spawns
	return nil
}

// ApplyEarning adds a recorded earning to the global running total.
func (r *Registry) ApplyEarning(amount uint64) error {
	earnings, err := CheckedAdd(r.TotalEarnings, amount)
	if err != nil {
		return err
	}
	r.TotalEarnings = earnings
	return nil
}

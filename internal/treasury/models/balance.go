package models

import (
	"math"
	"time"

	id "lineage/pkg/domain"
	dErrors "lineage/pkg/domain-errors"
)

// Balance is the spendable amount held by one wallet. Amounts only move
// through Credit and Debit so they stay within u64 bounds.
type Balance struct {
	Wallet    id.WalletID `json:"wallet"`
	Amount    uint64      `json:"amount"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NewBalance returns an empty balance for wallet.
func NewBalance(wallet id.WalletID, now time.Time) *Balance {
	return &Balance{Wallet: wallet, UpdatedAt: now}
}

// Credit adds amount to the balance.
func (b *Balance) Credit(amount uint64, now time.Time) error {
	if b.Amount > math.MaxUint64-amount {
		return dErrors.Newf(dErrors.CodeOverflow, "u64 overflow adding %d to balance %d", amount, b.Amount)
	}
	b.Amount += amount
	b.UpdatedAt = now
	return nil
}

// Debit removes amount from the balance, failing when funds are short.
func (b *Balance) Debit(amount uint64, now time.Time) error {
	if b.Amount < amount {
		return dErrors.New(dErrors.CodeConflict, "insufficient funds")
	}
	b.Amount -= amount
	b.UpdatedAt = now
	return nil
}

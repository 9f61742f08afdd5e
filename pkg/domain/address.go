package domain

import (
	"crypto/sha256"
	"encoding/hex"

	dErrors "lineage/pkg/domain-errors"
)

// Address is the deterministic storage address of a persistent entity.
// Addresses are derived, never chosen: hashing a domain-separating label
// together with the owning wallet yields the same address every time, so
// a wallet can back at most one agent and the registry has exactly one
// well-known location.
type Address string

// Domain-separating labels. Changing one is a breaking migration.
const (
	labelAgent    = "agent"
	labelRegistry = "registry"
)

const addressHexLen = 64 // sha256 hex

// AgentAddress derives the address of the agent backed by wallet.
func AgentAddress(wallet WalletID) Address {
	h := sha256.New()
	h.Write([]byte(labelAgent))
	raw := [16]byte(wallet)
	h.Write(raw[:])
	return Address(hex.EncodeToString(h.Sum(nil)))
}

// RegistryAddress derives the singleton registry address.
func RegistryAddress() Address {
	h := sha256.Sum256([]byte(labelRegistry))
	return Address(hex.EncodeToString(h[:]))
}

// ParseAddress validates an address received from the outside.
func ParseAddress(s string) (Address, error) {
	if len(s) != addressHexLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address must be a 64-character hex string")
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "address must be hex encoded")
	}
	return Address(s), nil
}

// String returns the hex form.
func (a Address) String() string {
	return string(a)
}

// IsZero reports whether the address is unset. The zero address doubles
// as the "no parent" sentinel on root agents.
func (a Address) IsZero() bool {
	return a == ""
}

package domain

import (
	"github.com/google/uuid"

	dErrors "lineage/pkg/domain-errors"
)

// WalletID identifies the external wallet that authorizes an agent's
// operations. It is a distinct type so wallet identifiers cannot be
// confused with other UUIDs at compile time.
type WalletID uuid.UUID

// NewWalletID mints a random wallet ID.
func NewWalletID() WalletID {
	return WalletID(uuid.New())
}

// ParseWalletID validates and returns a WalletID.
// IDs must be valid, non-nil UUIDs.
func ParseWalletID(s string) (WalletID, error) {
	if s == "" {
		return WalletID{}, dErrors.New(dErrors.CodeInvalidInput, "wallet id is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return WalletID{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "wallet id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return WalletID{}, dErrors.New(dErrors.CodeInvalidInput, "wallet id must not be the nil UUID")
	}
	return WalletID(parsed), nil
}

// String returns the canonical UUID form.
func (w WalletID) String() string {
	return uuid.UUID(w).String()
}

// IsNil reports whether the wallet ID is the zero value.
func (w WalletID) IsNil() bool {
	return uuid.UUID(w) == uuid.Nil
}

// MarshalText encodes the wallet ID as its canonical UUID string so JSON
// payloads carry "wallet": "550e8400-..." rather than a byte array.
func (w WalletID) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

// UnmarshalText parses a wallet ID from its canonical UUID string.
func (w *WalletID) UnmarshalText(b []byte) error {
	parsed, err := ParseWalletID(string(b))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

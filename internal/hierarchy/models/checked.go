package models

import (
	"math"

	dErrors "lineage/pkg/domain-errors"
)

// CheckedAdd returns a + b, failing instead of wrapping. Every counter in
// this context is an append-only u64; a wrapped counter is silent ledger
// corruption, so callers abort the whole operation on error.
func CheckedAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, dErrors.Newf(dErrors.CodeOverflow, "u64 overflow adding %d to %d", b, a)
	}
	return a + b, nil
}

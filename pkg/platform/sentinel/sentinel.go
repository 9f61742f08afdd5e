package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these
// (optionally wrapped) so services can translate them into coded domain
// errors at the boundary.
//
// These represent factual states about stored entities, not validation
// failures:
// - ErrNotFound: entity does not exist at the derived address
// - ErrConflict: an entity already occupies the derived address
// - ErrInvalidState: entity in the wrong state for the operation
// - ErrExpired: credential or token past its lifetime
// - ErrUnavailable: backing store or broker temporarily unreachable
//
// For validation errors (bad input, missing fields), use
// pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrExpired      = errors.New("expired")
	ErrUnavailable  = errors.New("unavailable")
)

package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: entity does not exist in store
//   - ErrConflict: a unique key already holds a record (e.g. a second
//     delivery for the same ticket and moderator)
//   - ErrInvalidState: entity in wrong state for requested operation
//   - ErrUnavailable: backing store cannot be reached
//
// For validation errors (bad input, unknown setting key), use
// pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)

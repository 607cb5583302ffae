package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally wrapped) so
// services can translate them into domain errors.
//
//   - ErrNotFound: row does not exist in the store
//   - ErrConflict: write lost a serialization race or hit a unique constraint
//   - ErrUnavailable: store or broker temporarily unreachable
//
// For validation failures (bad input, missing fields), use the validation package.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)

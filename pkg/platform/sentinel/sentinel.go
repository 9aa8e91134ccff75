package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (wrapped with
// %w) so services and handlers can translate them into domain errors:
// - ErrNotFound: row does not exist
// - ErrConflict: a uniqueness constraint rejected the write
// - ErrUnavailable: the database could not be reached
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)

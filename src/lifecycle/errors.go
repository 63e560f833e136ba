package lifecycle

import "errors"

// Rejection reasons surfaced by Apply and the Service. Handlers map these
// to HTTP statuses; nothing in here is transport-aware.
var (
	ErrNotAvailable       = errors.New("listing is not available")
	ErrNotPending         = errors.New("listing deposit is not in the required state")
	ErrDeadlineNotReached = errors.New("deposit deadline has not passed")
	ErrUnauthorized       = errors.New("requester is not allowed to perform this action")
	ErrReferenceMismatch  = errors.New("deposit reference does not match")
	ErrNotFound           = errors.New("listing not found")
	ErrVersionConflict    = errors.New("listing was modified concurrently")
)

package engine

import "errors"

// Error kinds surfaced by commands. Callers (server, CLI) match with
// errors.Is to pick a presentation; detail text is wrapped around them.
var (
	// ErrInvalidInput covers malformed ids, negative amounts, payout-rule
	// violations and other pre-write validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrWrongState means the current reward/application status does not
	// permit the requested operation.
	ErrWrongState = errors.New("wrong state")
	// ErrLimitReached means the submission cap is exhausted.
	ErrLimitReached = errors.New("limit reached")
	// ErrForbidden means the acting user is not allowed to touch the
	// record (not a reviewer, not the owner, not an allowed submitter).
	ErrForbidden = errors.New("forbidden")
)

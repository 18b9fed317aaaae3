// Package service implements the reservation lifecycle engine: capacity
// checks, the reservation state machine, waitlist promotion, escrow
// bookkeeping, the quote workflow and the deadline sweeps. Services hold
// no in-process state between requests; all coordination happens through
// the data store's row-level atomicity.
package service

import "errors"

// Error taxonomy returned to callers. Validation, not-found and
// invalid-transition errors surface synchronously and are never retried;
// downstream failures are logged and swallowed because the primary
// transition is the source of truth.
var (
	// ErrNotFound covers both a missing entity and one not owned by the
	// caller; the two are deliberately indistinguishable.
	ErrNotFound = errors.New("not_found")

	// ErrInvalidTransition means the status precondition for the
	// requested transition no longer holds.
	ErrInvalidTransition = errors.New("invalid_transition")

	// ErrCapacityExceeded means the capacity ledger rejected admission,
	// or a concurrent admission won the last unit.
	ErrCapacityExceeded = errors.New("capacity_exceeded")

	// ErrValidation means malformed input: empty message, party size at
	// or below the group-quote threshold, inverted window.
	ErrValidation = errors.New("validation_error")
)

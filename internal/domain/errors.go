package domain

import "errors"

// Error taxonomy for the planning core.
//
// Configuration errors are rejected before any simulation step runs.
// Computation errors abort a run; the partial result already computed is
// returned alongside an explicit failure marker. Degenerate inputs
// (optimizer with fewer than two assets, zero total gain for the
// scheduler) are signalled with ErrNotApplicable and never panic.
var (
	// ErrInvalidConfig marks invalid or contradictory input configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotApplicable marks a degenerate input for which the requested
	// operation has no meaningful answer.
	ErrNotApplicable = errors.New("not applicable")

	// ErrComputation marks a mid-run numeric failure.
	ErrComputation = errors.New("computation error")
)

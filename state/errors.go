package state

import "errors"

var (
	// ErrPrecondition is returned before any mutating action when a required tool,
	// prior initialization or eligible node is missing.
	ErrPrecondition = errors.New("precondition failed")

	// ErrConvergenceTimeout is returned when routing did not converge before the deadline.
	ErrConvergenceTimeout = errors.New("routing did not converge")

	// ErrInvariant signals that the emulated environment or the protocol misbehaved,
	// e.g. an isolated node appears converged.
	ErrInvariant = errors.New("invariant violated")

	// ErrDataMismatch is returned when fetched content differs from what was published.
	ErrDataMismatch = errors.New("data mismatch")
)

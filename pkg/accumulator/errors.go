// Package accumulator implements the Accumulator Builder (spec §4.5): it
// drives a sequence of batches across a block range, maintains the STARK
// chain of previous_proofs, and selects Groth16 for exactly the terminal
// batch of a run whose batch count is known up front. An unbounded forward
// walk proves every batch as a STARK and produces no Groth16 wrap.
package accumulator

import "errors"

// Sentinel errors.
var (
	// ErrConflictingOptions is returned when a driving-mode configuration
	// mixes from_latest with an explicit start_block (spec §4.5 tie-break).
	ErrConflictingOptions = errors.New("accumulator: from_latest and start_block are mutually exclusive")
)

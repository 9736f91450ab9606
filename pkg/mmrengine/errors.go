// Package mmrengine implements the Merkle Mountain Range accumulator: append,
// peak arithmetic, bagging, root computation, and inclusion proofs.
package mmrengine

import "errors"

// Sentinel errors for engine operations.
var (
	// ErrOutOfRange is returned when a historical elements_count does not
	// correspond to any committed append.
	ErrOutOfRange = errors.New("mmrengine: requested elements_count out of range")

	// ErrInvalidProof is returned by VerifyProof on any structural mismatch.
	// It is never a panic condition: adversarial proof bytes always resolve
	// to this error or to a false verification result.
	ErrInvalidProof = errors.New("mmrengine: invalid inclusion proof")

	// ErrElementNotFound is returned when an element index has no stored hash.
	ErrElementNotFound = errors.New("mmrengine: element index not found")

	// ErrEmptyMMR names the no-leaves condition. The engine's operations
	// accept an empty MMR (no peaks, sentinel root) and do not return it.
	ErrEmptyMMR = errors.New("mmrengine: mmr has no leaves")

	// ErrInvalidU256Hex is returned when a root hash fails the U256 hex
	// validation required by spec §3.
	ErrInvalidU256Hex = errors.New("mmrengine: root is not a valid U256 hex string")
)

// Package proofgen is the Proof Generator façade (spec §4.3): it erases the
// zkVM from the rest of the system, producing either an intermediate STARK
// suitable for recursion or a terminal Groth16 wrap ready for on-chain
// submission, and decodes journals back into guestio.GuestOutput.
package proofgen

import "errors"

// Sentinel errors, the "Proof" failure kinds of spec §7. All are fatal to
// the current batch; retry policy belongs to the caller.
var (
	ErrProverUnavailable = errors.New("proofgen: prover unavailable")
	ErrInvalidReceipt    = errors.New("proofgen: invalid receipt")
	ErrJournalDecode     = errors.New("proofgen: journal decode failed")
	ErrImageMismatch     = errors.New("proofgen: chained proof image id mismatch")
)

// Package batchproc implements the Batch Processor (spec §4.4): for one
// (start_block, end_block) pair it locates or creates the batch MMR, loads
// pre-state, fetches headers, builds the guest input, invokes the Prover,
// and commits the verified post-state.
package batchproc

import (
	"errors"
	"fmt"
)

// Sentinel errors, the batch-scoped failure kinds of spec §7.
var (
	ErrEmptyHeaders           = errors.New("batchproc: header range is empty")
	ErrInvalidStateTransition = errors.New("batchproc: guest elements_count regressed")
	ErrPeaksVerificationError = errors.New("batchproc: stored peaks disagree with guest final_peaks")
)

// EmptyHeadersError is the structured form of ErrEmptyHeaders, carrying the
// block range that came back empty so a caller can act on the bounds
// instead of re-parsing them out of the error text.
type EmptyHeadersError struct {
	Start, End uint64
}

func (e *EmptyHeadersError) Error() string {
	return fmt.Sprintf("%s: [%d,%d]", ErrEmptyHeaders, e.Start, e.End)
}

// Is lets errors.Is(err, ErrEmptyHeaders) match an *EmptyHeadersError.
func (e *EmptyHeadersError) Is(target error) bool {
	return target == ErrEmptyHeaders
}

func (e *EmptyHeadersError) Unwrap() error {
	return ErrEmptyHeaders
}

// IsEmptyHeaders reports whether err is (or wraps) ErrEmptyHeaders, the
// signal an Accumulator Builder forward-walk uses to know it has reached
// the end of the available header range.
func IsEmptyHeaders(err error) bool {
	return errors.Is(err, ErrEmptyHeaders)
}

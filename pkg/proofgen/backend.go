package proofgen

import "context"

// ELFIdentity names a guest program: a content hash of its ELF
// (ImageID) and its entry point (MethodID), per spec §6/GLOSSARY. Used to
// authenticate a chained STARK's previous_proofs entries without trusting
// the host.
type ELFIdentity struct {
	ImageID  string
	MethodID string
}

// StarkBackend is the external zkVM collaborator (spec §1, "out of
// scope"): it executes a guest program over an encoded input and returns
// an opaque receipt. The receipt is self-describing enough for
// DecodeJournal to recover the guest's public journal from it; the zkVM's
// internals beyond that boundary are never interpreted by this package.
type StarkBackend interface {
	Prove(ctx context.Context, elf ELFIdentity, encodedInput []byte) (receipt []byte, err error)
}

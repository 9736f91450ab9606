package proofgen

import (
	"context"
	"fmt"

	"github.com/fossil-relay/mmr-accumulator/pkg/guestio"
)

// Prover is the Proof Generator façade of spec §4.3: it hides the zkVM
// behind GenerateStarkProof/GenerateGroth16Proof/DecodeJournal, encoding
// inputs with guestio's canonical schema and authenticating chained
// proofs by image id. The receipt a StarkBackend returns is treated as
// self-describing: DecodeJournal recovers the guest's public journal from
// it directly, so one backend invocation yields both the chaining token
// and the decoded GuestOutput.
type Prover struct {
	backend StarkBackend
	groth16 *Groth16Prover

	accumulatorELF ELFIdentity
	validatorELF   ELFIdentity
}

// New constructs a Prover. backend is the external zkVM collaborator;
// groth16Prover must already have Setup called, or GenerateGroth16Proof
// fails with ErrProverUnavailable.
func New(backend StarkBackend, groth16Prover *Groth16Prover, accumulatorELF, validatorELF ELFIdentity) *Prover {
	return &Prover{
		backend:        backend,
		groth16:        groth16Prover,
		accumulatorELF: accumulatorELF,
		validatorELF:   validatorELF,
	}
}

// GenerateStarkProof drives the accumulator guest over input, asserting
// every chained previous_proofs entry matches this Prover's accumulator
// image id before invoking the backend (spec §4.3's recursion check).
func (p *Prover) GenerateStarkProof(ctx context.Context, input guestio.CombinedInput) (guestio.ProofType, error) {
	proof, _, err := p.generateStarkProofAndOutput(ctx, input)
	return proof, err
}

// GenerateStarkProofWithOutput is GenerateStarkProof plus the journal the
// same backend call produced, already decoded. Batch Processor uses this
// to avoid invoking the zkVM twice per batch (spec §4.4 steps 8-9).
func (p *Prover) GenerateStarkProofWithOutput(ctx context.Context, input guestio.CombinedInput) (guestio.ProofType, guestio.GuestOutput, error) {
	return p.generateStarkProofAndOutput(ctx, input)
}

func (p *Prover) generateStarkProofAndOutput(ctx context.Context, input guestio.CombinedInput) (guestio.ProofType, guestio.GuestOutput, error) {
	for _, prev := range input.MMRInput.PreviousProofs {
		if prev.ImageID != p.accumulatorELF.ImageID {
			return guestio.ProofType{}, guestio.GuestOutput{}, fmt.Errorf("%w: chained proof image %q != %q", ErrImageMismatch, prev.ImageID, p.accumulatorELF.ImageID)
		}
	}
	receipt, err := p.backend.Prove(ctx, p.accumulatorELF, guestio.EncodeCombinedInput(input))
	if err != nil {
		return guestio.ProofType{}, guestio.GuestOutput{}, fmt.Errorf("%w: %v", ErrProverUnavailable, err)
	}
	output, err := p.DecodeJournal(receipt)
	if err != nil {
		return guestio.ProofType{}, guestio.GuestOutput{}, err
	}
	proof := guestio.ProofType{
		Kind:     guestio.ProofKindStark,
		Receipt:  receipt,
		ImageID:  p.accumulatorELF.ImageID,
		MethodID: p.accumulatorELF.MethodID,
	}
	return proof, output, nil
}

// GenerateGroth16Proof terminates the recursion chain: it first runs the
// accumulator guest exactly like GenerateStarkProof to obtain the journal,
// then wraps the chain (input.MMRInput.PreviousProofs plus the STARK just
// produced) in a Groth16 proof with calldata ready for the on-chain
// verifier.
func (p *Prover) GenerateGroth16Proof(ctx context.Context, input guestio.CombinedInput) (guestio.ProofType, error) {
	proof, _, err := p.GenerateGroth16ProofWithOutput(ctx, input)
	return proof, err
}

// GenerateGroth16ProofWithOutput is GenerateGroth16Proof plus the decoded
// accumulator journal, so Batch Processor can commit the post-state
// without a second backend call.
func (p *Prover) GenerateGroth16ProofWithOutput(ctx context.Context, input guestio.CombinedInput) (guestio.ProofType, guestio.GuestOutput, error) {
	stark, output, err := p.generateStarkProofAndOutput(ctx, input)
	if err != nil {
		return guestio.ProofType{}, guestio.GuestOutput{}, err
	}

	terminalProof, _ := stark.AsBatchProof()
	chain := append(append([]guestio.BatchProof{}, input.MMRInput.PreviousProofs...), terminalProof)

	receipt, calldata, err := p.groth16.Prove(output, chain)
	if err != nil {
		return guestio.ProofType{}, guestio.GuestOutput{}, err
	}

	return guestio.ProofType{
		Kind:     guestio.ProofKindGroth16,
		Receipt:  receipt,
		Calldata: calldata,
	}, output, nil
}

// GenerateValidityStarkProof drives the validator guest over input,
// proving that the given headers are included under the claimed root
// (spec §4.7).
func (p *Prover) GenerateValidityStarkProof(ctx context.Context, input guestio.BlocksValidityInput) (guestio.ProofType, error) {
	encoded := guestio.EncodeBlocksValidityInput(input)
	receipt, err := p.backend.Prove(ctx, p.validatorELF, encoded)
	if err != nil {
		return guestio.ProofType{}, fmt.Errorf("%w: %v", ErrProverUnavailable, err)
	}
	return guestio.ProofType{
		Kind:     guestio.ProofKindStark,
		Receipt:  receipt,
		ImageID:  p.validatorELF.ImageID,
		MethodID: p.validatorELF.MethodID,
	}, nil
}

// DecodeJournal parses a guest receipt's embedded journal into a
// GuestOutput, surfacing ErrJournalDecode on any malformed input
// (spec §4.3/§7).
func (p *Prover) DecodeJournal(receipt []byte) (guestio.GuestOutput, error) {
	out, err := guestio.DecodeGuestOutput(receipt)
	if err != nil {
		return guestio.GuestOutput{}, fmt.Errorf("%w: %v", ErrJournalDecode, err)
	}
	return out, nil
}

package proofgen

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// RecursionWrapCircuit proves that a chained STARK receipt commits to the
// claimed final MMR state, terminating the recursion with a constant-size
// Groth16 proof (spec §4.5/§4.3: "Groth16 consumes and proves-over"
// previous_proofs). The pairing-level STARK verification itself happens
// inside the zkVM guest; this circuit binds the Groth16 wrap to that
// guest's public journal so an on-chain verifier needs only the wrap.
type RecursionWrapCircuit struct {
	// Public inputs — mirrored into the on-chain calldata.
	RootCommitment frontend.Variable `gnark:",public"`
	ElementsCount  frontend.Variable `gnark:",public"`
	LeavesCount    frontend.Variable `gnark:",public"`

	// Private witness.
	RootHash      frontend.Variable
	ReceiptDigest frontend.Variable
	ChainLength   frontend.Variable
}

// Define implements the circuit constraints.
func (c *RecursionWrapCircuit) Define(api frontend.API) error {
	// RootCommitment must equal the in-circuit MiMC hash of the actual root
	// plus the counters and the chained receipt digest, so a prover cannot
	// supply a commitment unrelated to the claimed root or the chain it
	// terminates.
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(c.RootHash, c.ElementsCount, c.LeavesCount, c.ReceiptDigest, c.ChainLength)
	api.AssertIsEqual(c.RootCommitment, h.Sum())

	// Counters must be non-negative by construction (frontend.Variable over
	// the scalar field); assert the trivial ordering invariant that leaves
	// never exceed elements, matching spec §3's L <= N.
	api.AssertIsLessOrEqual(c.LeavesCount, c.ElementsCount)

	return nil
}

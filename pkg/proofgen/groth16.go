package proofgen

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	bn254mimc "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/fossil-relay/mmr-accumulator/pkg/guestio"
)

// Groth16Prover wraps the one-time circuit setup and per-batch proving for
// the terminal recursion wrap: a compiled constraint system plus
// proving/verifying keys behind a mutex.
type Groth16Prover struct {
	mu sync.RWMutex

	cs constraint.ConstraintSystem
	pk groth16.ProvingKey
	vk groth16.VerifyingKey

	initialized bool
}

// NewGroth16Prover constructs an uninitialised prover; call Setup before
// Prove.
func NewGroth16Prover() *Groth16Prover {
	return &Groth16Prover{}
}

// Setup compiles RecursionWrapCircuit and runs the Groth16 trusted setup.
// One-time; call before Prove.
func (p *Groth16Prover) Setup() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return nil
	}

	var circuit RecursionWrapCircuit
	cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return fmt.Errorf("proofgen: compile recursion wrap circuit: %w", err)
	}
	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return fmt.Errorf("proofgen: groth16 setup: %w", err)
	}

	p.cs = cs
	p.pk = pk
	p.vk = vk
	p.initialized = true
	return nil
}

// Prove produces a Groth16 proof binding the chained STARK receipt to the
// claimed final MMR root, returning calldata (the public inputs) and the
// serialized proof itself, both of which an on-chain verifier's ABI needs
// to run the pairing check (spec §4.3, §6).
func (p *Groth16Prover) Prove(output guestio.GuestOutput, chain []guestio.BatchProof) (receipt []byte, calldata []guestio.Felt, err error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.initialized {
		return nil, nil, fmt.Errorf("%w: groth16 circuit not set up", ErrProverUnavailable)
	}

	rootHash, err := parseU256Hex(output.RootHash)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: parse root hash: %v", ErrInvalidReceipt, err)
	}
	digest := chainDigest(chain)
	chainLength := new(big.Int).SetUint64(uint64(len(chain)))
	commitment := rootCommitment(rootHash, output.ElementsCount, output.LeavesCount, digest, chainLength)

	assignment := &RecursionWrapCircuit{
		RootCommitment: commitment,
		ElementsCount:  output.ElementsCount,
		LeavesCount:    output.LeavesCount,
		RootHash:       rootHash,
		ReceiptDigest:  digest,
		ChainLength:    chainLength,
	}

	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, nil, fmt.Errorf("proofgen: build witness: %w", err)
	}
	publicWitness, err := witness.Public()
	if err != nil {
		return nil, nil, fmt.Errorf("proofgen: public witness: %w", err)
	}

	proof, err := groth16.Prove(p.cs, p.pk, witness)
	if err != nil {
		return nil, nil, fmt.Errorf("proofgen: groth16 prove: %w", err)
	}

	if err := groth16.Verify(proof, p.vk, publicWitness); err != nil {
		return nil, nil, fmt.Errorf("%w: groth16 self-check: %v", ErrInvalidReceipt, err)
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, nil, fmt.Errorf("proofgen: serialize groth16 proof: %w", err)
	}

	return buf.Bytes(), calldataFromPublicInputs(commitment, output.ElementsCount, output.LeavesCount), nil
}

// calldataFromPublicInputs packages the circuit's public inputs as
// minimal-length big-endian Felt values, the flat field-element vector the
// on-chain verifier's ABI expects (spec §6). The A/B/C proof points
// themselves travel alongside in ProofType.Receipt.
func calldataFromPublicInputs(rootCommitment *big.Int, elementsCount, leavesCount uint64) []guestio.Felt {
	return []guestio.Felt{
		guestio.Felt(rootCommitment.Bytes()),
		guestio.Felt(new(big.Int).SetUint64(elementsCount).Bytes()),
		guestio.Felt(new(big.Int).SetUint64(leavesCount).Bytes()),
	}
}

// chainDigest folds the chained STARK receipts into one witness value; any
// change to the chain (a dropped or reordered proof) changes the digest.
func chainDigest(chain []guestio.BatchProof) *big.Int {
	h := sha256.New()
	for _, p := range chain {
		h.Write(p.Receipt)
		h.Write([]byte(p.ImageID))
		h.Write([]byte(p.MethodID))
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}

// rootCommitment binds the root hash, the counters, and the chain digest
// into one field element, using the same native MiMC compression the
// in-circuit gadget runs, so the prover-supplied commitment and the
// circuit's recomputation of it agree bit-for-bit. Each value is reduced
// modulo the scalar field first, as the witness assignment reduces it.
func rootCommitment(rootHash *big.Int, elementsCount, leavesCount uint64, digest, chainLength *big.Int) *big.Int {
	h := bn254mimc.NewMiMC()
	modulus := ecc.BN254.ScalarField()
	for _, v := range []*big.Int{rootHash, new(big.Int).SetUint64(elementsCount), new(big.Int).SetUint64(leavesCount), digest, chainLength} {
		var b [32]byte
		new(big.Int).Mod(v, modulus).FillBytes(b[:])
		h.Write(b[:])
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}

// parseU256Hex parses a 0x-prefixed hex root hash into the big.Int the
// circuit witness expects.
func parseU256Hex(s string) (*big.Int, error) {
	digits := strings.TrimPrefix(s, "0x")
	v, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return nil, fmt.Errorf("%q is not valid hex", s)
	}
	return v, nil
}

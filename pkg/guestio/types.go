// Package guestio defines the deterministic, versioned wire schema shared
// between the host, the zkVM guest, and the on-chain verifier (spec §4.2).
// Every type here round-trips through Encode/Decode bit-exactly: field
// order is fixed and integers are little-endian fixed-width, matching the
// canonical framing the journal must reproduce.
package guestio

// SchemaVersion is bumped whenever the wire layout changes; it is the first
// byte of every encoded message so a stale reader fails fast instead of
// misparsing.
const SchemaVersion uint8 = 1

// Header is the subset of a block header the accumulator touches: its
// number (for batch assignment) and its hash (the leaf value). Opaque
// otherwise, per spec §3.
type Header struct {
	Number    uint64
	BlockHash string // 0x-prefixed hex
	ParentHash string // 0x-prefixed hex
}

// BatchProof is the recursion-chaining token threaded through
// previous_proofs: bound to a specific guest ELF via ImageID/MethodID.
type BatchProof struct {
	Receipt  []byte
	ImageID  string
	MethodID string
}

// MMRInput describes the pre-state and the leaves to append for one batch.
type MMRInput struct {
	InitialPeaks    []string
	ElementsCount   uint64
	LeavesCount     uint64
	NewElements     []string
	PreviousProofs  []BatchProof
}

// CombinedInput is what the Prover actually consumes to produce an
// accumulation proof.
type CombinedInput struct {
	Headers               []Header
	MMRInput               MMRInput
	SkipProofVerification bool
}

// AppendOutcome is one entry of GuestOutput.AppendResults: the root and
// element index produced by appending one leaf inside the guest.
type AppendOutcome struct {
	RootHash     string
	ElementIndex uint64
}

// GuestOutput is the guest's journal, decoded back into a typed struct by
// the Proof Generator's DecodeJournal.
type GuestOutput struct {
	FinalPeaks    []string
	ElementsCount uint64
	LeavesCount   uint64
	AppendResults []AppendOutcome
	RootHash      string
	AllHashes     []IndexedHash
}

// IndexedHash pairs a 1-indexed MMR node position with its canonical hex
// hash, used in GuestOutput.AllHashes.
type IndexedHash struct {
	Index uint64
	Hash  string
}

// GuestProof is one inclusion proof as carried in BlocksValidityInput,
// the guest-facing counterpart of mmrengine.Proof.
type GuestProof struct {
	ElementIndex   uint64
	ElementHash    string
	SiblingsHashes []string
	PeaksHashes    []string
	ElementsCount  uint64
}

// BlocksValidityInput is what the Validator passes to the Prover to show
// that a set of headers is included under a claimed root (spec §4.7).
type BlocksValidityInput struct {
	ChainID  uint64
	Headers  []Header
	MMRInput MMRInput
	Proofs   []GuestProof
}

// ProofKind tags which arm of ProofType a Proof carries.
type ProofKind uint8

// ProofKind values, see ProofType.
const (
	ProofKindStark ProofKind = iota
	ProofKindGroth16
)

// ProofType is the tagged union returned by the Proof Generator: either an
// intermediate STARK suitable for recursion, or a terminal Groth16 wrap
// ready for on-chain submission (spec §4.3).
type ProofType struct {
	Kind ProofKind

	// Receipt carries the opaque attestation bytes for either arm: the
	// zkVM's STARK receipt when Kind == ProofKindStark, or the serialized
	// Groth16 proof (A/B/C points) when Kind == ProofKindGroth16 — an
	// on-chain verifier needs both Receipt and Calldata to run the
	// pairing check.
	Receipt []byte

	// ImageID/MethodID are valid when Kind == ProofKindStark.
	ImageID  string
	MethodID string

	// Calldata is valid when Kind == ProofKindGroth16: the circuit's
	// public inputs as a flat field-element vector.
	Calldata []Felt
}

// Felt is a 252-bit field element, the atom of Groth16 calldata for the
// on-chain verifier's ABI (spec §6). Stored as a big-endian byte string
// sized to fit the field; the core treats it as an opaque payload.
type Felt []byte

// AsBatchProof extracts the BatchProof chaining token from a STARK
// ProofType. Returns false if p is not a STARK.
func (p ProofType) AsBatchProof() (BatchProof, bool) {
	if p.Kind != ProofKindStark {
		return BatchProof{}, false
	}
	return BatchProof{Receipt: p.Receipt, ImageID: p.ImageID, MethodID: p.MethodID}, true
}

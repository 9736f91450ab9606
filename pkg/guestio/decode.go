package guestio

import (
	"encoding/binary"
	"fmt"
)

// reader consumes a canonical encoding produced by writer, failing closed
// (ErrTruncated) on any short read instead of panicking — journals are
// adversarial input from the guest's point of view.
type reader struct {
	b   []byte
	pos int
}

func newReader(b []byte) (*reader, error) {
	if len(b) < 1 {
		return nil, ErrTruncated
	}
	r := &reader{b: b}
	v := r.b[0]
	r.pos = 1
	if v != byte(SchemaVersion) {
		return nil, errSchemaVersion(v)
	}
	return r, nil
}

func (r *reader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.b) {
		return nil, ErrTruncated
	}
	out := r.b[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) u8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) bytesField() ([]byte, error) {
	n, err := r.u64()
	if err != nil {
		return nil, err
	}
	return r.take(int(n))
}

func (r *reader) str() (string, error) {
	b, err := r.bytesField()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) header() (Header, error) {
	number, err := r.u64()
	if err != nil {
		return Header{}, err
	}
	blockHash, err := r.str()
	if err != nil {
		return Header{}, err
	}
	parentHash, err := r.str()
	if err != nil {
		return Header{}, err
	}
	return Header{Number: number, BlockHash: blockHash, ParentHash: parentHash}, nil
}

func (r *reader) headers() ([]Header, error) {
	n, err := r.u64()
	if err != nil {
		return nil, err
	}
	out := make([]Header, n)
	for i := range out {
		h, err := r.header()
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}

func (r *reader) strs() ([]string, error) {
	n, err := r.u64()
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		s, err := r.str()
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func (r *reader) batchProof() (BatchProof, error) {
	receipt, err := r.bytesField()
	if err != nil {
		return BatchProof{}, err
	}
	imageID, err := r.str()
	if err != nil {
		return BatchProof{}, err
	}
	methodID, err := r.str()
	if err != nil {
		return BatchProof{}, err
	}
	return BatchProof{Receipt: receipt, ImageID: imageID, MethodID: methodID}, nil
}

func (r *reader) batchProofs() ([]BatchProof, error) {
	n, err := r.u64()
	if err != nil {
		return nil, err
	}
	out := make([]BatchProof, n)
	for i := range out {
		p, err := r.batchProof()
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

func (r *reader) mmrInput() (MMRInput, error) {
	peaks, err := r.strs()
	if err != nil {
		return MMRInput{}, err
	}
	elementsCount, err := r.u64()
	if err != nil {
		return MMRInput{}, err
	}
	leavesCount, err := r.u64()
	if err != nil {
		return MMRInput{}, err
	}
	newElements, err := r.strs()
	if err != nil {
		return MMRInput{}, err
	}
	previousProofs, err := r.batchProofs()
	if err != nil {
		return MMRInput{}, err
	}
	return MMRInput{
		InitialPeaks:   peaks,
		ElementsCount:  elementsCount,
		LeavesCount:    leavesCount,
		NewElements:    newElements,
		PreviousProofs: previousProofs,
	}, nil
}

// DecodeMMRInput parses the canonical encoding of an MMRInput.
func DecodeMMRInput(b []byte) (MMRInput, error) {
	r, err := newReader(b)
	if err != nil {
		return MMRInput{}, err
	}
	return r.mmrInput()
}

// DecodeCombinedInput parses the canonical encoding of a CombinedInput.
func DecodeCombinedInput(b []byte) (CombinedInput, error) {
	r, err := newReader(b)
	if err != nil {
		return CombinedInput{}, err
	}
	headers, err := r.headers()
	if err != nil {
		return CombinedInput{}, err
	}
	mmrInput, err := r.mmrInput()
	if err != nil {
		return CombinedInput{}, err
	}
	skip, err := r.u8()
	if err != nil {
		return CombinedInput{}, err
	}
	return CombinedInput{Headers: headers, MMRInput: mmrInput, SkipProofVerification: skip != 0}, nil
}

// DecodeGuestOutput parses a guest journal into a GuestOutput. Returns
// ErrSchemaVersion or ErrTruncated (both surfaced as §7's JournalDecode
// kind by callers) on any malformed input.
func DecodeGuestOutput(b []byte) (GuestOutput, error) {
	r, err := newReader(b)
	if err != nil {
		return GuestOutput{}, fmt.Errorf("guestio: decode guest output: %w", err)
	}
	finalPeaks, err := r.strs()
	if err != nil {
		return GuestOutput{}, err
	}
	elementsCount, err := r.u64()
	if err != nil {
		return GuestOutput{}, err
	}
	leavesCount, err := r.u64()
	if err != nil {
		return GuestOutput{}, err
	}
	n, err := r.u64()
	if err != nil {
		return GuestOutput{}, err
	}
	appendResults := make([]AppendOutcome, n)
	for i := range appendResults {
		root, err := r.str()
		if err != nil {
			return GuestOutput{}, err
		}
		idx, err := r.u64()
		if err != nil {
			return GuestOutput{}, err
		}
		appendResults[i] = AppendOutcome{RootHash: root, ElementIndex: idx}
	}
	rootHash, err := r.str()
	if err != nil {
		return GuestOutput{}, err
	}
	m, err := r.u64()
	if err != nil {
		return GuestOutput{}, err
	}
	allHashes := make([]IndexedHash, m)
	for i := range allHashes {
		idx, err := r.u64()
		if err != nil {
			return GuestOutput{}, err
		}
		hash, err := r.str()
		if err != nil {
			return GuestOutput{}, err
		}
		allHashes[i] = IndexedHash{Index: idx, Hash: hash}
	}
	return GuestOutput{
		FinalPeaks:    finalPeaks,
		ElementsCount: elementsCount,
		LeavesCount:   leavesCount,
		AppendResults: appendResults,
		RootHash:      rootHash,
		AllHashes:     allHashes,
	}, nil
}

func (r *reader) guestProof() (GuestProof, error) {
	elementIndex, err := r.u64()
	if err != nil {
		return GuestProof{}, err
	}
	elementHash, err := r.str()
	if err != nil {
		return GuestProof{}, err
	}
	siblings, err := r.strs()
	if err != nil {
		return GuestProof{}, err
	}
	peaks, err := r.strs()
	if err != nil {
		return GuestProof{}, err
	}
	elementsCount, err := r.u64()
	if err != nil {
		return GuestProof{}, err
	}
	return GuestProof{
		ElementIndex:   elementIndex,
		ElementHash:    elementHash,
		SiblingsHashes: siblings,
		PeaksHashes:    peaks,
		ElementsCount:  elementsCount,
	}, nil
}

// DecodeBlocksValidityInput parses the canonical encoding of a
// BlocksValidityInput.
func DecodeBlocksValidityInput(b []byte) (BlocksValidityInput, error) {
	r, err := newReader(b)
	if err != nil {
		return BlocksValidityInput{}, err
	}
	chainID, err := r.u64()
	if err != nil {
		return BlocksValidityInput{}, err
	}
	headers, err := r.headers()
	if err != nil {
		return BlocksValidityInput{}, err
	}
	mmrInput, err := r.mmrInput()
	if err != nil {
		return BlocksValidityInput{}, err
	}
	n, err := r.u64()
	if err != nil {
		return BlocksValidityInput{}, err
	}
	proofs := make([]GuestProof, n)
	for i := range proofs {
		p, err := r.guestProof()
		if err != nil {
			return BlocksValidityInput{}, err
		}
		proofs[i] = p
	}
	return BlocksValidityInput{ChainID: chainID, Headers: headers, MMRInput: mmrInput, Proofs: proofs}, nil
}

package mmrengine

import "fmt"

// Proof is an inclusion proof for one leaf, per spec §4.1. There is no
// explicit left/right flag: both GetProof and VerifyProof independently
// re-derive sibling order from element_index/elements_count via the same
// position arithmetic, so the sibling hashes alone are sufficient.
type Proof struct {
	ElementIndex   uint64   `json:"element_index"`
	ElementHash    string   `json:"element_hash"`
	SiblingsHashes []string `json:"siblings_hashes"`
	PeaksHashes    []string `json:"peaks_hashes"`
	ElementsCount  uint64   `json:"elements_count"`
}

// GetProof builds an inclusion proof for elementIndex. If atCount is
// non-nil, the proof is built against that historical elements_count.
func (e *Engine) GetProof(elementIndex uint64, atCount *uint64) (*Proof, error) {
	leavesCount, elementsCount, err := e.resolveAt(atCount)
	if err != nil {
		return nil, err
	}
	if elementIndex == 0 || elementIndex > elementsCount {
		return nil, fmt.Errorf("mmrengine: get proof: %w", ErrOutOfRange)
	}

	elementHash, ok, err := e.store.GetHash(elementIndex)
	if err != nil {
		return nil, fmt.Errorf("mmrengine: get proof: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("mmrengine: get proof: %w at %d", ErrElementNotFound, elementIndex)
	}

	peakPositions := findPeaks(leavesCount)
	var peakBase uint64
	var height uint
	found := false
	for i, h := range peakHeights(leavesCount) {
		size := subtreeSize(h)
		lo := peakBase + 1
		hi := peakBase + size
		if elementIndex >= lo && elementIndex <= hi {
			peakBase = peakPositions[i] - size
			height = h
			found = true
			break
		}
		peakBase += size
	}
	if !found {
		return nil, fmt.Errorf("mmrengine: get proof: %w", ErrOutOfRange)
	}

	siblings, err := e.collectSiblings(peakBase, height, elementIndex)
	if err != nil {
		return nil, err
	}

	peaks, err := e.GetPeaks(atCount)
	if err != nil {
		return nil, err
	}

	return &Proof{
		ElementIndex:   elementIndex,
		ElementHash:    elementHash,
		SiblingsHashes: siblings,
		PeaksHashes:    peaks,
		ElementsCount:  elementsCount,
	}, nil
}

// collectSiblings walks down from the subtree root at peakBase+size to the
// target elementIndex, recording the sibling hash at each level bottom-up
// (i.e. the returned slice is in verification order: leaf-adjacent sibling
// first, root-adjacent sibling last).
func (e *Engine) collectSiblings(peakBase uint64, height uint, elementIndex uint64) ([]string, error) {
	if height == 0 {
		return nil, nil
	}
	childSize := subtreeSize(height - 1)
	leftRootPos := peakBase + childSize
	rightRootPos := leftRootPos + childSize

	var siblingPos uint64
	var rest []string
	var err error
	if elementIndex <= leftRootPos {
		siblingPos = rightRootPos
		rest, err = e.collectSiblings(peakBase, height-1, elementIndex)
	} else {
		siblingPos = leftRootPos
		rest, err = e.collectSiblings(leftRootPos, height-1, elementIndex)
	}
	if err != nil {
		return nil, err
	}

	siblingHash, ok, err := e.store.GetHash(siblingPos)
	if err != nil {
		return nil, fmt.Errorf("mmrengine: collect siblings: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("mmrengine: collect siblings: %w at %d", ErrElementNotFound, siblingPos)
	}

	return append(rest, siblingHash), nil
}

// VerifyProof recomputes the candidate peak hash from proof.SiblingsHashes
// starting at leafHash and checks it appears in proof.PeaksHashes at the
// position implied by proof.ElementIndex/ElementsCount. Never panics: any
// malformed input resolves to (false, nil) or a non-nil error.
func (e *Engine) VerifyProof(proof *Proof, leafHash string) (bool, error) {
	if proof == nil {
		return false, fmt.Errorf("mmrengine: verify proof: %w: nil proof", ErrInvalidProof)
	}
	if proof.ElementHash != leafHash {
		return false, nil
	}

	leavesCount, elementsCount, err := e.resolveAt(&proof.ElementsCount)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	if elementsCount != proof.ElementsCount {
		return false, nil
	}
	if proof.ElementIndex == 0 || proof.ElementIndex > elementsCount {
		return false, nil
	}

	leafRaw, err := decodeHash(leafHash)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}

	peakPositions := findPeaks(leavesCount)
	var peakBase uint64
	var height uint
	peakIdx := -1
	for i, h := range peakHeights(leavesCount) {
		size := subtreeSize(h)
		lo := peakBase + 1
		hi := peakBase + size
		if proof.ElementIndex >= lo && proof.ElementIndex <= hi {
			peakBase = peakPositions[i] - size
			height = h
			peakIdx = i
			break
		}
		peakBase += size
	}
	if peakIdx < 0 || peakIdx >= len(proof.PeaksHashes) {
		return false, nil
	}

	candidate, ok := e.recombine(peakBase, height, proof.ElementIndex, leafRaw, proof.SiblingsHashes)
	if !ok {
		return false, nil
	}

	claimedPeak, err := decodeHash(proof.PeaksHashes[peakIdx])
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}

	return bytesEqual(candidate, claimedPeak), nil
}

// recombine rebuilds a peak hash from a leaf and its recorded siblings,
// consuming siblings in the same bottom-up order collectSiblings produced
// them. Returns ok=false (never an error) on any structural mismatch such
// as a truncated sibling list, satisfying the "never panics" edge case.
func (e *Engine) recombine(peakBase uint64, height uint, elementIndex uint64, leafRaw []byte, siblings []string) ([]byte, bool) {
	if height == 0 {
		if len(siblings) != 0 {
			return nil, false
		}
		return leafRaw, true
	}
	if len(siblings) == 0 {
		return nil, false
	}

	childSize := subtreeSize(height - 1)
	leftRootPos := peakBase + childSize

	siblingRaw, err := decodeHash(siblings[len(siblings)-1])
	if err != nil {
		return nil, false
	}
	rest := siblings[:len(siblings)-1]

	var childBase uint64
	if elementIndex <= leftRootPos {
		childBase = peakBase
	} else {
		childBase = leftRootPos
	}

	childHash, ok := e.recombine(childBase, height-1, elementIndex, leafRaw, rest)
	if !ok {
		return nil, false
	}

	if elementIndex <= leftRootPos {
		return e.hash(childHash, siblingRaw), true
	}
	return e.hash(siblingRaw, childHash), true
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

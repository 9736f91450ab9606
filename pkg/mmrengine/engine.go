package mmrengine

import (
	"fmt"

	"github.com/fossil-relay/mmr-accumulator/pkg/mmrstore"
)

// emptyBagSentinel is the bag of a zero-leaf MMR (no bytes); hashing it
// with a zero elements_count gives the bit-exact empty root H(0 || "") the
// guest and host must agree on, as described in spec §4.1's edge case.
var emptyBagSentinel = []byte{}

// AppendResult reports everything produced by a single Append call,
// including every intermediate node created by the carry cascade, per
// spec §4.1.
type AppendResult struct {
	RootHash      string
	ElementIndex  uint64
	LeavesCount   uint64
	ElementsCount uint64
	Peaks         []string
	// NewHashes lists every (index, hash) pair written during this append,
	// in write order: the leaf first, then each cascade merge.
	NewHashes []IndexedHash
}

// IndexedHash pairs a 1-indexed MMR node position with its hash.
type IndexedHash struct {
	Index uint64
	Hash  string
}

// Engine implements append, peak enumeration, bagging, root computation, and
// inclusion proofs over a mmrstore.Store, per spec §4.1. It is
// parameterised over H so host and guest can share an implementation.
type Engine struct {
	store *mmrstore.Store
	hash  HashFunc
}

// New constructs an Engine over store using the given hash function. A nil
// hash function defaults to Keccak256.
func New(store *mmrstore.Store, h HashFunc) *Engine {
	if h == nil {
		h = Keccak256
	}
	return &Engine{store: store, hash: h}
}

// Append adds one leaf hash to the MMR, staging every write into tx, and
// returns the full cascade of new node hashes. The caller commits tx once
// all leaves in the current batch have been staged and guest verification
// (spec §4.6) has passed.
func (e *Engine) Append(tx *mmrstore.Tx, leafHash string) (*AppendResult, error) {
	elementsCount, err := tx.ElementsCount()
	if err != nil {
		return nil, fmt.Errorf("mmrengine: append: %w", err)
	}
	leavesCount, err := tx.LeavesCount()
	if err != nil {
		return nil, fmt.Errorf("mmrengine: append: %w", err)
	}

	leafIndex := elementsCount + 1
	if err := tx.PutHash(leafIndex, leafHash); err != nil {
		return nil, err
	}
	if err := tx.PutIndex(leafHash, leafIndex); err != nil {
		return nil, err
	}

	result := &AppendResult{
		NewHashes: []IndexedHash{{Index: leafIndex, Hash: leafHash}},
	}

	carryHash := leafHash
	carryPos := leafIndex
	elementsCount = leafIndex

	// Carry-propagation: a set bit at height `height` in the pre-append
	// leaves_count means a peak of that height exists and must merge with
	// the new carry, exactly like incrementing a binary counter.
	preLeaves := leavesCount
	height := uint(0)
	for preLeaves&(1<<height) != 0 {
		siblingPeakPos := findPeaks(preLeaves)[len(peakHeights(preLeaves))-1]
		siblingHash, ok, err := tx.GetHash(siblingPeakPos)
		if err != nil {
			return nil, fmt.Errorf("mmrengine: append: read sibling peak: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("mmrengine: append: %w at position %d", ErrElementNotFound, siblingPeakPos)
		}

		siblingRaw, err := decodeHash(siblingHash)
		if err != nil {
			return nil, err
		}
		carryRaw, err := decodeHash(carryHash)
		if err != nil {
			return nil, err
		}
		parentRaw := e.hash(siblingRaw, carryRaw)
		parentHash := encodeHash(parentRaw)

		elementsCount++
		parentPos := elementsCount
		if err := tx.PutHash(parentPos, parentHash); err != nil {
			return nil, err
		}
		result.NewHashes = append(result.NewHashes, IndexedHash{Index: parentPos, Hash: parentHash})

		carryHash = parentHash
		carryPos = parentPos
		preLeaves &^= 1 << height
		height++
	}

	leavesCount++
	if err := tx.SetCounts(elementsCount, leavesCount); err != nil {
		return nil, err
	}

	peaks, err := e.peaksAfterStaged(tx, leavesCount, carryPos, carryHash)
	if err != nil {
		return nil, err
	}

	bag := e.bagHashes(peaks)
	root := e.calculateRootHash(bag, elementsCount)

	result.RootHash = root
	result.ElementIndex = leafIndex
	result.LeavesCount = leavesCount
	result.ElementsCount = elementsCount
	result.Peaks = peaksToHex(peaks)

	return result, nil
}

// peakHash is an internal (position, raw-bytes) pair used while bagging.
type peakHash struct {
	pos uint64
	raw []byte
}

func peaksToHex(p []peakHash) []string {
	out := make([]string, len(p))
	for i, ph := range p {
		out[i] = encodeHash(ph.raw)
	}
	return out
}

// peaksAfterStaged resolves the current peak set after staging tx but
// before it is committed, substituting the freshly-computed carry for the
// peak position it produced.
func (e *Engine) peaksAfterStaged(tx *mmrstore.Tx, leavesCount, carryPos uint64, carryHash string) ([]peakHash, error) {
	positions := findPeaks(leavesCount)
	out := make([]peakHash, 0, len(positions))
	for _, pos := range positions {
		var hexHash string
		if pos == carryPos {
			hexHash = carryHash
		} else {
			h, ok, err := tx.GetHash(pos)
			if err != nil {
				return nil, fmt.Errorf("mmrengine: peaks: %w", err)
			}
			if !ok {
				return nil, fmt.Errorf("mmrengine: peaks: %w at position %d", ErrElementNotFound, pos)
			}
			hexHash = h
		}
		raw, err := decodeHash(hexHash)
		if err != nil {
			return nil, err
		}
		out = append(out, peakHash{pos: pos, raw: raw})
	}
	return out, nil
}

// PeaksAtLeavesCount resolves the peak hashes for leavesCount by reading
// through an uncommitted Tx (so staged-but-uncommitted writes are visible),
// without requiring the caller to know which position holds the newest
// carry. Used by commit-verification code that must check guest-claimed
// peaks before the transaction is committed (spec §4.6 step 4).
func (e *Engine) PeaksAtLeavesCount(tx *mmrstore.Tx, leavesCount uint64) ([]string, error) {
	positions := findPeaks(leavesCount)
	out := make([]string, 0, len(positions))
	for _, pos := range positions {
		h, ok, err := tx.GetHash(pos)
		if err != nil {
			return nil, fmt.Errorf("mmrengine: peaks at leaves count: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("mmrengine: peaks at leaves count: %w at position %d", ErrElementNotFound, pos)
		}
		out = append(out, h)
	}
	return out, nil
}

// BagPeaksHex right-folds an explicit peak-hash list, the same algorithm
// BagThePeaks uses internally, exposed for callers that already hold a
// peak set (e.g. guest-claimed final_peaks) and want the bagged hash
// without a store round-trip.
func (e *Engine) BagPeaksHex(peaks []string) (string, error) {
	raws := make([]peakHash, len(peaks))
	for i, p := range peaks {
		r, err := decodeHash(p)
		if err != nil {
			return "", err
		}
		raws[i] = peakHash{raw: r}
	}
	return encodeHash(e.bagHashes(raws)), nil
}

// GetPeaks returns the current peaks, left (tallest) to right, as canonical
// hex strings. If atCount is non-nil, returns the peaks as of that
// historical elements_count instead of the current one.
func (e *Engine) GetPeaks(atCount *uint64) ([]string, error) {
	leavesCount, elementsCount, err := e.resolveAt(atCount)
	if err != nil {
		return nil, err
	}
	positions := findPeaks(leavesCount)
	out := make([]string, 0, len(positions))
	for _, pos := range positions {
		if pos > elementsCount {
			return nil, fmt.Errorf("mmrengine: get peaks: %w", ErrOutOfRange)
		}
		h, ok, err := e.store.GetHash(pos)
		if err != nil {
			return nil, fmt.Errorf("mmrengine: get peaks: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("mmrengine: get peaks: %w at position %d", ErrElementNotFound, pos)
		}
		out = append(out, h)
	}
	return out, nil
}

// resolveAt maps an optional historical elements_count to the leavesCount
// that produced it, by inverting the monotonic elementsCount(leavesCount)
// relation (nodeCount). Returns the current counters when atCount is nil.
func (e *Engine) resolveAt(atCount *uint64) (leavesCount, elementsCount uint64, err error) {
	if atCount == nil {
		leavesCount, err = e.store.LeavesCount()
		if err != nil {
			return 0, 0, err
		}
		elementsCount, err = e.store.ElementsCount()
		if err != nil {
			return 0, 0, err
		}
		return leavesCount, elementsCount, nil
	}

	currentLeaves, err := e.store.LeavesCount()
	if err != nil {
		return 0, 0, err
	}
	for l := uint64(0); l <= currentLeaves; l++ {
		if nodeCount(l) == *atCount {
			return l, *atCount, nil
		}
	}
	return 0, 0, fmt.Errorf("mmrengine: resolve at %d: %w", *atCount, ErrOutOfRange)
}

// BagThePeaks folds the peaks right-to-left into a single hash:
// H(p0, H(p1, H(p2, ... H(p_{k-2}, p_{k-1}) ...))), per spec §4.1/GLOSSARY.
// An empty peak set bags to the empty sentinel.
func (e *Engine) BagThePeaks(atCount *uint64) (string, error) {
	peaks, err := e.GetPeaks(atCount)
	if err != nil {
		return "", err
	}
	raws := make([]peakHash, len(peaks))
	for i, p := range peaks {
		r, err := decodeHash(p)
		if err != nil {
			return "", err
		}
		raws[i] = peakHash{raw: r}
	}
	return encodeHash(e.bagHashes(raws)), nil
}

func (e *Engine) bagHashes(peaks []peakHash) []byte {
	if len(peaks) == 0 {
		return emptyBagSentinel
	}
	if len(peaks) == 1 {
		return peaks[0].raw
	}
	acc := peaks[len(peaks)-1].raw
	for i := len(peaks) - 2; i >= 0; i-- {
		acc = e.hash(peaks[i].raw, acc)
	}
	return acc
}

// CalculateRootHash computes H(elements_count || bag), hex-encoded, per
// spec §4.1. bag may be the raw empty sentinel for a zero-leaf MMR.
func (e *Engine) CalculateRootHash(bagHex string, elementsCount uint64) (string, error) {
	bag, err := decodeBagOrEmpty(bagHex)
	if err != nil {
		return "", err
	}
	return e.calculateRootHash(bag, elementsCount), nil
}

func decodeBagOrEmpty(bagHex string) ([]byte, error) {
	if bagHex == "" {
		return emptyBagSentinel, nil
	}
	return decodeHash(bagHex)
}

func (e *Engine) calculateRootHash(bag []byte, elementsCount uint64) string {
	countBytes := uint64ToBE(elementsCount)
	raw := e.hash(countBytes, bag)
	return encodeHash(raw)
}

func uint64ToBE(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

// RootHash returns the current root, H(elements_count || bag_the_peaks()).
// On a fresh (zero-leaf) MMR, returns the empty sentinel root.
func (e *Engine) RootHash(atCount *uint64) (string, error) {
	_, elementsCount, err := e.resolveAt(atCount)
	if err != nil {
		return "", err
	}
	bag, err := e.BagThePeaks(atCount)
	if err != nil {
		return "", err
	}
	root, err := e.CalculateRootHash(bag, elementsCount)
	if err != nil {
		return "", err
	}
	if err := ValidateU256Hex(root); err != nil {
		return "", err
	}
	return root, nil
}

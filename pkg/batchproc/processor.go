package batchproc

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/fossil-relay/mmr-accumulator/pkg/chainclient"
	"github.com/fossil-relay/mmr-accumulator/pkg/guestio"
	"github.com/fossil-relay/mmr-accumulator/pkg/headerstore"
	"github.com/fossil-relay/mmr-accumulator/pkg/mmrengine"
	"github.com/fossil-relay/mmr-accumulator/pkg/mmrstore"
	"github.com/fossil-relay/mmr-accumulator/pkg/proofgen"
)

// ProofFlavour selects which arm of guestio.ProofType a batch produces.
type ProofFlavour int

// ProofFlavour values.
const (
	FlavourStark ProofFlavour = iota
	FlavourGroth16
)

// StoreOpener opens or lazily creates the persistent MMR file for a batch
// index (spec §3/§6: "one file per batch, batch_{index}.db"). Abstracted so
// Processor does not hard-code a storage root.
type StoreOpener interface {
	Open(batchIndex uint64) (*mmrstore.Store, error)
}

// BatchResult is what one successful process_batch call returns.
type BatchResult struct {
	StartBlock  uint64
	EndBlock    uint64
	NewMmrState chainclient.MmrState
	Proof       guestio.ProofType
}

// Processor implements the Batch Processor. Dependencies are injected
// collaborator interfaces (HeaderStore, Prover facade, StoreOpener).
type Processor struct {
	mu sync.Mutex

	headers   headerstore.Store
	opener    StoreOpener
	prover    *proofgen.Prover
	batchSize uint64
	logger    *log.Logger
}

// NewProcessor constructs a Processor. batchSize must be > 0.
func NewProcessor(headers headerstore.Store, opener StoreOpener, prover *proofgen.Prover, batchSize uint64) *Processor {
	return &Processor{
		headers:   headers,
		opener:    opener,
		prover:    prover,
		batchSize: batchSize,
		logger:    log.New(os.Stderr, "[batchproc] ", log.LstdFlags),
	}
}

// CalculateBatchBounds computes batch_index = startBlock/batchSize and the
// end block clamped to that batch's range, per spec §4.4 step 1.
func (p *Processor) CalculateBatchBounds(startBlock, endBlock uint64) (batchIndex, clampedEnd uint64) {
	return calculateBatchBounds(startBlock, endBlock, p.batchSize)
}

func calculateBatchBounds(startBlock, endBlock, batchSize uint64) (batchIndex, clampedEnd uint64) {
	batchIndex = startBlock / batchSize
	maxEnd := batchIndex*batchSize + batchSize - 1
	if endBlock > maxEnd {
		endBlock = maxEnd
	}
	return batchIndex, endBlock
}

// CalculateStartBlock computes the start block for a batch walking
// downward from currentEnd, saturating at 0 (spec §4.5 edge case).
func (p *Processor) CalculateStartBlock(currentEnd uint64) uint64 {
	return calculateStartBlock(currentEnd, p.batchSize)
}

func calculateStartBlock(currentEnd, batchSize uint64) uint64 {
	if currentEnd+1 < batchSize {
		return 0
	}
	return currentEnd + 1 - batchSize
}

// CalculateBatchRange returns [start, end] for batchIndex under batchSize.
func (p *Processor) CalculateBatchRange(batchIndex uint64) (start, end uint64) {
	return calculateBatchRange(batchIndex, p.batchSize)
}

func calculateBatchRange(batchIndex, batchSize uint64) (start, end uint64) {
	start = batchIndex * batchSize
	end = start + batchSize - 1
	return start, end
}

// ProcessBatch runs the full algorithm of spec §4.4 for one (start, end)
// range. previousProofs is the STARK recursion chain so far (empty for a
// fresh builder); flavour selects Groth16 for the terminal batch. Returns
// (nil, nil) for an idempotent skip (batch already complete) — the Option
// of spec §4.4's `Option<BatchResult>`.
func (p *Processor) ProcessBatch(ctx context.Context, startBlock, endBlock uint64, previousProofs []guestio.BatchProof, flavour ProofFlavour, skipProofVerification bool) (*BatchResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	batchIndex, clampedEnd := calculateBatchBounds(startBlock, endBlock, p.batchSize)

	store, err := p.opener.Open(batchIndex)
	if err != nil {
		return nil, fmt.Errorf("batchproc: open batch %d: %w", batchIndex, err)
	}

	leavesCount, err := store.LeavesCount()
	if err != nil {
		return nil, fmt.Errorf("batchproc: read leaves count: %w", err)
	}
	if leavesCount >= p.batchSize {
		return nil, nil
	}

	headers, err := p.headers.GetBlockHeadersByRange(ctx, startBlock, clampedEnd)
	if err != nil {
		return nil, fmt.Errorf("batchproc: fetch headers: %w", err)
	}
	if len(headers) == 0 {
		err := &EmptyHeadersError{Start: startBlock, End: clampedEnd}
		p.logTerminal(err, startBlock, clampedEnd)
		return nil, err
	}

	elementsCount, err := store.ElementsCount()
	if err != nil {
		return nil, fmt.Errorf("batchproc: read elements count: %w", err)
	}
	peaksBefore, err := peaksAt(store, leavesCount)
	if err != nil {
		return nil, fmt.Errorf("batchproc: snapshot peaks: %w", err)
	}

	newElements := make([]string, len(headers))
	for i, h := range headers {
		newElements[i] = h.BlockHash
	}

	mmrInput := guestio.MMRInput{
		InitialPeaks:   peaksBefore,
		ElementsCount:  elementsCount,
		LeavesCount:    leavesCount,
		NewElements:    newElements,
		PreviousProofs: previousProofs,
	}
	combined := guestio.CombinedInput{
		Headers:               headers,
		MMRInput:               mmrInput,
		SkipProofVerification: skipProofVerification,
	}

	var proof guestio.ProofType
	var output guestio.GuestOutput
	switch flavour {
	case FlavourGroth16:
		proof, output, err = p.prover.GenerateGroth16ProofWithOutput(ctx, combined)
	default:
		proof, output, err = p.prover.GenerateStarkProofWithOutput(ctx, combined)
	}
	if err != nil {
		p.logTerminal(err, startBlock, clampedEnd)
		return nil, err
	}

	newState, err := p.commit(store, output, skipProofVerification, clampedEnd)
	if err != nil {
		p.logTerminal(err, startBlock, clampedEnd)
		return nil, err
	}

	return &BatchResult{
		StartBlock:  startBlock,
		EndBlock:    clampedEnd,
		NewMmrState: newState,
		Proof:       proof,
	}, nil
}

// commit applies guest_output to the batch store under a single
// transactional scope, per spec §4.6: a failure at any step discards the
// Tx, leaving the on-disk MMR untouched (spec §5's cancellation rule).
func (p *Processor) commit(store *mmrstore.Store, output guestio.GuestOutput, skipProofVerification bool, endBlock uint64) (chainclient.MmrState, error) {
	priorElementsCount, err := store.ElementsCount()
	if err != nil {
		return chainclient.MmrState{}, fmt.Errorf("batchproc: commit: %w", err)
	}
	if output.ElementsCount < priorElementsCount {
		return chainclient.MmrState{}, fmt.Errorf("%w: guest %d < stored %d", ErrInvalidStateTransition, output.ElementsCount, priorElementsCount)
	}

	tx := store.BeginTx()

	for _, ih := range output.AllHashes {
		if err := tx.PutHash(ih.Index, ih.Hash); err != nil {
			tx.Discard()
			return chainclient.MmrState{}, fmt.Errorf("batchproc: commit: %w", err)
		}
		if err := tx.PutIndex(ih.Hash, ih.Index); err != nil {
			tx.Discard()
			return chainclient.MmrState{}, fmt.Errorf("batchproc: commit: %w", err)
		}
	}
	if err := tx.SetCounts(output.ElementsCount, output.LeavesCount); err != nil {
		tx.Discard()
		return chainclient.MmrState{}, fmt.Errorf("batchproc: commit: %w", err)
	}

	engine := mmrengine.New(store, mmrengine.Keccak256)

	if !skipProofVerification {
		storedPeaks, err := engine.PeaksAtLeavesCount(tx, output.LeavesCount)
		if err != nil {
			tx.Discard()
			return chainclient.MmrState{}, fmt.Errorf("batchproc: commit: %w", err)
		}
		if !stringSlicesEqual(storedPeaks, output.FinalPeaks) {
			tx.Discard()
			return chainclient.MmrState{}, fmt.Errorf("%w: stored=%v guest=%v", ErrPeaksVerificationError, storedPeaks, output.FinalPeaks)
		}
	}

	bag, err := engine.BagPeaksHex(output.FinalPeaks)
	if err != nil {
		tx.Discard()
		return chainclient.MmrState{}, fmt.Errorf("batchproc: commit: %w", err)
	}
	root, err := engine.CalculateRootHash(bag, output.ElementsCount)
	if err != nil {
		tx.Discard()
		return chainclient.MmrState{}, fmt.Errorf("batchproc: commit: %w", err)
	}
	if err := mmrengine.ValidateU256Hex(root); err != nil {
		tx.Discard()
		return chainclient.MmrState{}, fmt.Errorf("batchproc: commit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return chainclient.MmrState{}, fmt.Errorf("batchproc: commit: %w", err)
	}

	return chainclient.MmrState{
		LatestBlockNumber: endBlock,
		RootHash:          root,
		ElementsCount:     output.ElementsCount,
		LeavesCount:       output.LeavesCount,
	}, nil
}

func stringSlicesEqual(a, b []string) bool {
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

func peaksAt(store *mmrstore.Store, leavesCount uint64) ([]string, error) {
	eng := mmrengine.New(store, mmrengine.Keccak256)
	if leavesCount == 0 {
		return nil, nil
	}
	return eng.GetPeaks(nil)
}

func (p *Processor) logTerminal(err error, start, end uint64) {
	p.logger.Printf("fatal error in batch [%d,%d]: %v", start, end, err)
}

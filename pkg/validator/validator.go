package validator

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/fossil-relay/mmr-accumulator/pkg/chainclient"
	"github.com/fossil-relay/mmr-accumulator/pkg/guestio"
	"github.com/fossil-relay/mmr-accumulator/pkg/headerstore"
	"github.com/fossil-relay/mmr-accumulator/pkg/mmrengine"
	"github.com/fossil-relay/mmr-accumulator/pkg/mmrstore"
	"github.com/fossil-relay/mmr-accumulator/pkg/proofgen"
)

// StoreOpener opens the persistent MMR file for a batch index. Structurally
// identical to batchproc.StoreOpener so the same concrete implementation
// serves both collaborators.
type StoreOpener interface {
	Open(batchIndex uint64) (*mmrstore.Store, error)
}

// Result is the outcome of one ValidateBlocks call: one STARK proof per
// distinct batch touched, per spec §4.7.
type Result struct {
	Proofs []guestio.ProofType
}

// Validator implements the Validator component.
type Validator struct {
	opener    StoreOpener
	headers   headerstore.Store
	chain     chainclient.Client
	prover    *proofgen.Prover
	batchSize uint64
	chainID   uint64
	storeAddr string
	logger    *log.Logger
}

// New constructs a Validator.
func New(opener StoreOpener, headers headerstore.Store, chain chainclient.Client, prover *proofgen.Prover, batchSize, chainID uint64, storeAddr string) *Validator {
	return &Validator{
		opener:    opener,
		headers:   headers,
		chain:     chain,
		prover:    prover,
		batchSize: batchSize,
		chainID:   chainID,
		storeAddr: storeAddr,
		logger:    log.New(os.Stderr, "[validator] ", log.LstdFlags),
	}
}

// ValidateBlocks groups [start, end] by batch_index, proves inclusion for
// each batch's headers, and cross-checks each batch's locally computed
// root against the on-chain root (skipped if skipProof). On any failure,
// no proofs are returned for the call (spec §4.7/§8 S4/S5).
func (v *Validator) ValidateBlocks(ctx context.Context, start, end uint64, skipProof bool) (*Result, error) {
	headers, err := v.headers.GetBlockHeadersByRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("validator: fetch headers: %w", err)
	}
	if len(headers) == 0 {
		err := &EmptyHeadersError{Start: start, End: end}
		v.logTerminal(err, start, end)
		return nil, err
	}

	groups := groupByBatch(headers, v.batchSize)
	batchIndices := make([]uint64, 0, len(groups))
	for idx := range groups {
		batchIndices = append(batchIndices, idx)
	}
	sort.Slice(batchIndices, func(i, j int) bool { return batchIndices[i] < batchIndices[j] })

	result := &Result{}

	for _, batchIndex := range batchIndices {
		batchHeaders := groups[batchIndex]

		store, err := v.opener.Open(batchIndex)
		if err != nil {
			v.logTerminal(err, start, end)
			return nil, fmt.Errorf("validator: open batch %d: %w", batchIndex, err)
		}
		engine := mmrengine.New(store, mmrengine.Keccak256)

		elementsCount, err := store.ElementsCount()
		if err != nil {
			v.logTerminal(err, start, end)
			return nil, fmt.Errorf("validator: read elements count: %w", err)
		}
		leavesCount, err := store.LeavesCount()
		if err != nil {
			v.logTerminal(err, start, end)
			return nil, fmt.Errorf("validator: read leaves count: %w", err)
		}

		localRoot, err := engine.RootHash(nil)
		if err != nil {
			v.logTerminal(err, start, end)
			return nil, fmt.Errorf("validator: compute local root: %w", err)
		}

		if !skipProof {
			onchain, err := v.chain.GetMmrState(ctx, v.storeAddr, batchIndex)
			if err != nil {
				v.logTerminal(err, start, end)
				return nil, fmt.Errorf("%w: %v", ErrOnchainRootUnavailable, err)
			}
			if onchain.RootHash != localRoot {
				err := &InvalidMmrRootError{BatchIndex: batchIndex, Expected: onchain.RootHash, Actual: localRoot}
				v.logTerminal(err, start, end)
				return nil, err
			}
		}

		peaks, err := engine.GetPeaks(nil)
		if err != nil {
			v.logTerminal(err, start, end)
			return nil, fmt.Errorf("validator: snapshot peaks: %w", err)
		}

		guestProofs := make([]guestio.GuestProof, 0, len(batchHeaders))
		for _, h := range batchHeaders {
			elementIndex, ok, err := store.IndexForHash(h.BlockHash)
			if err != nil {
				v.logTerminal(err, start, end)
				return nil, fmt.Errorf("validator: lookup element index: %w", err)
			}
			if !ok {
				err := fmt.Errorf("%w: %s", ErrMissingElementIndex, h.BlockHash)
				v.logTerminal(err, start, end)
				return nil, err
			}

			proof, err := engine.GetProof(elementIndex, nil)
			if err != nil {
				v.logTerminal(err, start, end)
				return nil, fmt.Errorf("validator: get proof: %w", err)
			}
			guestProofs = append(guestProofs, guestio.GuestProof{
				ElementIndex:   proof.ElementIndex,
				ElementHash:    proof.ElementHash,
				SiblingsHashes: proof.SiblingsHashes,
				PeaksHashes:    proof.PeaksHashes,
				ElementsCount:  proof.ElementsCount,
			})
		}

		input := guestio.BlocksValidityInput{
			ChainID: v.chainID,
			Headers: batchHeaders,
			MMRInput: guestio.MMRInput{
				InitialPeaks:  peaks,
				ElementsCount: elementsCount,
				LeavesCount:   leavesCount,
			},
			Proofs: guestProofs,
		}

		proof, err := v.prover.GenerateValidityStarkProof(ctx, input)
		if err != nil {
			v.logTerminal(err, start, end)
			return nil, err
		}
		result.Proofs = append(result.Proofs, proof)
	}

	if len(result.Proofs) != len(batchIndices) {
		err := &InvalidProofsCountError{Expected: len(batchIndices), Actual: len(result.Proofs)}
		v.logTerminal(err, start, end)
		return nil, err
	}

	return result, nil
}

func groupByBatch(headers []guestio.Header, batchSize uint64) map[uint64][]guestio.Header {
	groups := make(map[uint64][]guestio.Header)
	for _, h := range headers {
		idx := h.Number / batchSize
		groups[idx] = append(groups[idx], h)
	}
	return groups
}

func (v *Validator) logTerminal(err error, start, end uint64) {
	v.logger.Printf("fatal error validating blocks [%d,%d]: %v", start, end, err)
}

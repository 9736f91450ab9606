package accumulator

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fossil-relay/mmr-accumulator/pkg/batchproc"
	"github.com/fossil-relay/mmr-accumulator/pkg/chainclient"
	"github.com/fossil-relay/mmr-accumulator/pkg/guestio"
	"github.com/fossil-relay/mmr-accumulator/pkg/headerstore"
)

// batchesProcessed and proofsGenerated are registered once per process via
// a package-level prometheus.MustRegister at init; see DESIGN.md.
var (
	batchesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mmr_batches_processed_total",
		Help: "Number of batches committed by the Accumulator Builder.",
	})
	proofsGenerated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mmr_proofs_generated_total",
		Help: "Number of proofs generated by the Accumulator Builder, by kind.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(batchesProcessed, proofsGenerated)
}

// Run is the result of one Builder drive: a correlation id for the run and
// the ordered BatchResults produced (idempotent skips are not included).
type Run struct {
	RunID   uuid.UUID
	Results []*batchproc.BatchResult
}

// Builder implements the Accumulator Builder. State mirrors spec §4.5:
// batch_size, total_batches, current_batch, previous_proofs.
type Builder struct {
	processor *batchproc.Processor
	headers   headerstore.Store
	batchSize uint64
	logger    *log.Logger

	totalBatches   uint64
	currentBatch   uint64
	previousProofs []guestio.BatchProof
}

// New constructs a Builder with a fresh (empty) previous_proofs chain.
func New(processor *batchproc.Processor, headers headerstore.Store, batchSize uint64) *Builder {
	return &Builder{
		processor: processor,
		headers:   headers,
		batchSize: batchSize,
		logger:    log.New(os.Stderr, "[accumulator] ", log.LstdFlags),
	}
}

// flavourFor selects Groth16 iff current_batch == total_batches - 1, per
// spec §4.5.
func (b *Builder) flavourFor(currentBatch uint64) batchproc.ProofFlavour {
	if b.totalBatches > 0 && currentBatch == b.totalBatches-1 {
		return batchproc.FlavourGroth16
	}
	return batchproc.FlavourStark
}

// BuildFromFinalized starts at the on-chain finalized head and walks
// downward to block 0, per spec §4.5.
func (b *Builder) BuildFromFinalized(ctx context.Context, skipProofVerification bool) (*Run, error) {
	finalized, err := b.headers.LatestFinalized(ctx)
	if err != nil {
		return nil, fmt.Errorf("accumulator: build from finalized: %w", err)
	}
	// ceil((finalized+1)/batch_size), reconciling the off-by-one named in
	// spec §9.
	b.totalBatches = (finalized + b.batchSize) / b.batchSize
	return b.walkDownward(ctx, finalized, b.totalBatches, skipProofVerification)
}

// BuildWithNumBatches walks downward for n batches from the finalized head.
func (b *Builder) BuildWithNumBatches(ctx context.Context, n uint64, skipProofVerification bool) (*Run, error) {
	finalized, err := b.headers.LatestFinalized(ctx)
	if err != nil {
		return nil, fmt.Errorf("accumulator: build with num batches: %w", err)
	}
	b.totalBatches = n
	return b.walkDownward(ctx, finalized, n, skipProofVerification)
}

func (b *Builder) walkDownward(ctx context.Context, currentEnd, maxBatches uint64, skipProofVerification bool) (*Run, error) {
	run := &Run{RunID: uuid.New()}
	b.currentBatch = 0

	for maxBatches == 0 || b.currentBatch < maxBatches {
		if currentEnd == 0 && b.currentBatch > 0 {
			break
		}

		startBlock := b.processor.CalculateStartBlock(currentEnd)
		result, err := b.runOne(ctx, startBlock, currentEnd, skipProofVerification)
		if err != nil {
			return run, err
		}
		if result != nil {
			run.Results = append(run.Results, result)
		}

		b.currentBatch++
		if currentEnd == 0 {
			break
		}
		if startBlock == 0 {
			break
		}
		currentEnd = startBlock - 1
	}
	return run, nil
}

// BuildFromLatest starts just above the last persisted leaf and walks
// forward until the header store runs dry.
func (b *Builder) BuildFromLatest(ctx context.Context, lastPersistedBlock uint64, skipProofVerification bool) (*Run, error) {
	return b.BuildFromLatestWithBatches(ctx, lastPersistedBlock, 0, skipProofVerification)
}

// BuildFromLatestWithBatches is BuildFromLatest bounded to n batches (0
// means unbounded, stopping only on empty headers; a batch that is already
// complete is skipped and the walk moves on to the next one).
func (b *Builder) BuildFromLatestWithBatches(ctx context.Context, lastPersistedBlock, n uint64, skipProofVerification bool) (*Run, error) {
	start := lastPersistedBlock + 1
	return b.BuildFromBlockWithBatches(ctx, start, n, skipProofVerification)
}

// BuildFromBlock starts at s and walks forward until the header store runs
// dry.
func (b *Builder) BuildFromBlock(ctx context.Context, s uint64, skipProofVerification bool) (*Run, error) {
	return b.BuildFromBlockWithBatches(ctx, s, 0, skipProofVerification)
}

// BuildFromBlockWithBatches is BuildFromBlock bounded to n batches (0
// means unbounded). With n == 0 every batch is proved as a STARK and no
// Groth16 wrap is produced; a bounded run that stops on empty headers
// before its n-th batch also ends without one.
func (b *Builder) BuildFromBlockWithBatches(ctx context.Context, s, n uint64, skipProofVerification bool) (*Run, error) {
	run := &Run{RunID: uuid.New()}
	b.currentBatch = 0
	b.totalBatches = n

	startBlock := s
	for n == 0 || b.currentBatch < n {
		_, clampedEnd := b.processor.CalculateBatchBounds(startBlock, startBlock+b.batchSize-1)
		result, err := b.runOne(ctx, startBlock, clampedEnd, skipProofVerification)
		if batchproc.IsEmptyHeaders(err) {
			break
		}
		if err != nil {
			return run, err
		}
		if result != nil {
			run.Results = append(run.Results, result)
		}
		b.currentBatch++
		startBlock = clampedEnd + 1
	}
	return run, nil
}

// UpdateMmrWithNewHeaders processes exactly one batch and MUST produce a
// Groth16 proof ready for on-chain submission, per spec §4.5. Returns
// the resulting MmrState alongside the proof calldata, since an
// on-chain submission needs both.
func (b *Builder) UpdateMmrWithNewHeaders(ctx context.Context, start, end uint64) (chainclient.MmrState, []guestio.Felt, error) {
	b.totalBatches = 1
	b.currentBatch = 0
	result, err := b.runOne(ctx, start, end, false)
	if err != nil {
		return chainclient.MmrState{}, nil, err
	}
	if result == nil {
		return chainclient.MmrState{}, nil, fmt.Errorf("accumulator: update mmr with new headers: batch already complete")
	}
	if result.Proof.Kind != guestio.ProofKindGroth16 {
		return chainclient.MmrState{}, nil, fmt.Errorf("accumulator: update mmr with new headers: expected groth16 proof, got kind %d", result.Proof.Kind)
	}
	return result.NewMmrState, result.Proof.Calldata, nil
}

// runOne drives one batch through the processor, advancing previous_proofs
// for STARK results and resetting the chain once it is consumed by a
// Groth16 wrap (spec §4.5's chaining discipline).
func (b *Builder) runOne(ctx context.Context, start, end uint64, skipProofVerification bool) (*batchproc.BatchResult, error) {
	flavour := b.flavourFor(b.currentBatch)

	result, err := b.processor.ProcessBatch(ctx, start, end, b.previousProofs, flavour, skipProofVerification)
	if err != nil {
		b.logger.Printf("fatal error in batch [%d,%d]: %v", start, end, err)
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	batchesProcessed.Inc()
	switch result.Proof.Kind {
	case guestio.ProofKindStark:
		proofsGenerated.WithLabelValues("stark").Inc()
		if bp, ok := result.Proof.AsBatchProof(); ok {
			b.previousProofs = append(b.previousProofs, bp)
		}
	case guestio.ProofKindGroth16:
		proofsGenerated.WithLabelValues("groth16").Inc()
		b.previousProofs = nil
	}

	return result, nil
}

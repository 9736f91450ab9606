// Command build-mmr drives the Accumulator Builder over a range of
// blocks, writing one MMR batch file per batch_size blocks and proving the
// terminal batch of each bounded run with Groth16. It does not submit the
// proofs on-chain.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/fossil-relay/mmr-accumulator/pkg/accumulator"
	"github.com/fossil-relay/mmr-accumulator/pkg/batchproc"
	"github.com/fossil-relay/mmr-accumulator/pkg/config"
	"github.com/fossil-relay/mmr-accumulator/pkg/mmrstore"
	"github.com/fossil-relay/mmr-accumulator/pkg/proofgen"
)

func main() {
	batchSize := flag.Uint64("batch-size", 1024, "batch size for processing blocks")
	numBatches := flag.Uint64("num-batches", 0, "number of batches to process (0: until block #0, or until the header store runs dry with -from-latest)")
	skipProof := flag.Bool("skip-proof", false, "skip proof verification")
	envFile := flag.String("env-file", ".env", "path to environment file")
	startBlock := flag.Int64("start-block", -1, "start building from this block number (-1: use the latest finalized block)")
	fromLatest := flag.Bool("from-latest", false, "start building from the latest mmr block")
	lastPersisted := flag.Uint64("last-persisted-block", 0, "last block already persisted in the mmr, used with -from-latest")
	flag.Parse()

	if err := run(*batchSize, *numBatches, *skipProof, *envFile, *startBlock, *fromLatest, *lastPersisted); err != nil {
		log.Fatalf("build-mmr: %v", err)
	}
}

func run(batchSize, numBatches uint64, skipProof bool, envFile string, startBlock int64, fromLatest bool, lastPersistedBlock uint64) error {
	_ = godotenv.Load(envFile)
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if batchSize > 0 {
		cfg.BatchSize = batchSize
	}
	cfg.SkipProofVerification = cfg.SkipProofVerification || skipProof

	if fromLatest && startBlock >= 0 {
		return fmt.Errorf("cannot specify both -from-latest and -start-block: %w", accumulator.ErrConflictingOptions)
	}

	headerStore, chainClient, starkBackend, err := wireExternalCollaborators(cfg)
	if err != nil {
		return fmt.Errorf("wire external collaborators: %w", err)
	}

	groth16Prover := proofgen.NewGroth16Prover()
	if err := groth16Prover.Setup(); err != nil {
		return fmt.Errorf("groth16 setup: %w", err)
	}

	opener := mmrstore.NewDirOpener(cfg.MmrStoreDir, cfg.BatchSize)
	prover := proofgen.New(starkBackend, groth16Prover, proofgen.ELFIdentity{}, proofgen.ELFIdentity{})
	processor := batchproc.NewProcessor(headerStore, opener, prover, cfg.BatchSize)
	builder := accumulator.New(processor, headerStore, cfg.BatchSize)

	_ = chainClient // held for parity with the original CLI; on-chain reads are not required to drive a build

	ctx := context.Background()

	switch {
	case fromLatest && numBatches > 0:
		_, err = builder.BuildFromLatestWithBatches(ctx, lastPersistedBlock, numBatches, cfg.SkipProofVerification)
	case fromLatest:
		_, err = builder.BuildFromLatest(ctx, lastPersistedBlock, cfg.SkipProofVerification)
	case startBlock >= 0 && numBatches > 0:
		_, err = builder.BuildFromBlockWithBatches(ctx, uint64(startBlock), numBatches, cfg.SkipProofVerification)
	case startBlock >= 0:
		_, err = builder.BuildFromBlock(ctx, uint64(startBlock), cfg.SkipProofVerification)
	case numBatches > 0:
		_, err = builder.BuildWithNumBatches(ctx, numBatches, cfg.SkipProofVerification)
	default:
		_, err = builder.BuildFromFinalized(ctx, cfg.SkipProofVerification)
	}
	return err
}

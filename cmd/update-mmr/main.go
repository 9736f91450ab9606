// Command update-mmr processes exactly one batch for [start, end],
// producing a Groth16 proof and submitting it to the on-chain verifier.
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
	envFile := flag.String("env-file", ".env", "path to environment file")
	start := flag.Uint64("start", 0, "start block")
	end := flag.Uint64("end", 0, "end block")
	flag.Parse()

	if err := run(*envFile, *start, *end); err != nil {
		log.Fatalf("update-mmr: %v", err)
	}
}

func run(envFile string, start, end uint64) error {
	_ = godotenv.Load(envFile)
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
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

	ctx := context.Background()
	newMmrState, calldata, err := builder.UpdateMmrWithNewHeaders(ctx, start, end)
	if err != nil {
		return err
	}

	receipt, err := chainClient.VerifyMmrProof(ctx, cfg.FossilVerifierAddress, newMmrState, calldata)
	if err != nil {
		return fmt.Errorf("submit verification: %w", err)
	}
	log.Printf("update-mmr: submitted tx %s at block %d (success=%v)", receipt.TxHash, receipt.BlockNumber, receipt.Success)
	return nil
}

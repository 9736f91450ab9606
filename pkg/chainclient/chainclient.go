// Package chainclient declares the on-chain verifier contract / RPC
// contract this core submits proofs to and reads MMR state from. Its
// implementation is an external collaborator, out of scope per spec §1.
package chainclient

import (
	"context"

	"github.com/fossil-relay/mmr-accumulator/pkg/guestio"
)

// MmrState is the on-chain view of a batch's accumulator state, spec §3.
type MmrState struct {
	LatestBlockNumber uint64
	RootHash          string // U256 hex
	ElementsCount     uint64
	LeavesCount       uint64
}

// TxReceipt is the opaque confirmation of a submitted verification
// transaction; the core never interprets its fields beyond logging them.
type TxReceipt struct {
	TxHash      string
	BlockNumber uint64
	Success     bool
}

// Client is the contract a Groth16-producing caller submits to.
type Client interface {
	// GetMmrState reads the currently-anchored MmrState for batchIndex
	// from storeAddr.
	GetMmrState(ctx context.Context, storeAddr string, batchIndex uint64) (MmrState, error)

	// VerifyMmrProof submits a Groth16 proof's calldata to verifierAddr,
	// authenticating the transition to newState.
	VerifyMmrProof(ctx context.Context, verifierAddr string, newState MmrState, calldata []guestio.Felt) (TxReceipt, error)
}

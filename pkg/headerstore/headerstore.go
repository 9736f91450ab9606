// Package headerstore declares the read-only header ingestion contract the
// Batch Processor pulls from. Its implementation — the database, RPC
// client, or reorg handling behind it — is an external collaborator, out of
// scope per spec §1.
package headerstore

import (
	"context"

	"github.com/fossil-relay/mmr-accumulator/pkg/guestio"
)

// Store returns canonical block headers by inclusive block-number range.
type Store interface {
	// GetBlockHeadersByRange returns headers with number in [start, end],
	// ascending by number. Returns an empty slice (not an error) if the
	// store has none in range.
	GetBlockHeadersByRange(ctx context.Context, start, end uint64) ([]guestio.Header, error)

	// LatestFinalized returns the highest block number the store considers
	// final, for Accumulator Builder driving modes that walk from the
	// chain tip.
	LatestFinalized(ctx context.Context) (uint64, error)
}

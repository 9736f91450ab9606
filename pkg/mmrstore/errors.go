// Package mmrstore provides the persistent key/value substrate for a single
// batch MMR: node hashes by element index, the elements/leaves counters, and
// the hash -> element_index secondary index (spec §3).
package mmrstore

import "errors"

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when a requested key has no stored value.
	ErrNotFound = errors.New("mmrstore: key not found")

	// ErrNilKV is returned when a Store is constructed over a nil KV.
	ErrNilKV = errors.New("mmrstore: kv cannot be nil")

	// ErrTxClosed is returned when Commit or Set is called on a Tx that has
	// already been committed or discarded.
	ErrTxClosed = errors.New("mmrstore: transaction already closed")
)

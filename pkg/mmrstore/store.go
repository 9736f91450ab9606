package mmrstore

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Key layout: fixed string prefixes plus big-endian integer/byte suffixes
// so keys sort in a useful order under the underlying LSM store.
var (
	keyElementsCount = []byte("mmr:elements_count")
	keyLeavesCount   = []byte("mmr:leaves_count")
	nodePrefix       = []byte("mmr:node:")
	indexPrefix      = []byte("mmr:index:")
)

func nodeKey(index uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, index)
	return append(append([]byte{}, nodePrefix...), b...)
}

func indexKey(hash string) ([]byte, error) {
	digits := hash
	if len(digits) >= 2 && digits[0:2] == "0x" {
		digits = digits[2:]
	}
	raw, err := hex.DecodeString(digits)
	if err != nil {
		return nil, fmt.Errorf("mmrstore: hash %q is not valid hex: %w", hash, err)
	}
	return append(append([]byte{}, indexPrefix...), raw...), nil
}

// Store is the persistent substrate for a single batch MMR: node hashes by
// element index, the elements/leaves counters, and the hash -> index
// secondary index. One Store corresponds to one on-disk batch file
// (spec §6, "batch_{index}.db").
type Store struct {
	kv KV
}

// NewStore wraps kv as a Store. kv must not be nil.
func NewStore(kv KV) (*Store, error) {
	if kv == nil {
		return nil, ErrNilKV
	}
	return &Store{kv: kv}, nil
}

// ElementsCount returns the current N counter, 0 for a fresh batch.
func (s *Store) ElementsCount() (uint64, error) {
	return s.readCounter(keyElementsCount)
}

// LeavesCount returns the current L counter, 0 for a fresh batch.
func (s *Store) LeavesCount() (uint64, error) {
	return s.readCounter(keyLeavesCount)
}

func (s *Store) readCounter(key []byte) (uint64, error) {
	v, err := s.kv.Get(key)
	if err != nil {
		return 0, fmt.Errorf("mmrstore: read counter: %w", err)
	}
	if v == nil {
		return 0, nil
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("mmrstore: counter value has bad length %d", len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}

// GetHash returns the node hash stored at element index, the canonical
// 0x-prefixed hex string, and whether it was present.
func (s *Store) GetHash(index uint64) (string, bool, error) {
	v, err := s.kv.Get(nodeKey(index))
	if err != nil {
		return "", false, fmt.Errorf("mmrstore: get hash: %w", err)
	}
	if v == nil {
		return "", false, nil
	}
	return string(v), true, nil
}

// IndexForHash looks up the element index previously recorded for hash via
// the secondary index.
func (s *Store) IndexForHash(hash string) (uint64, bool, error) {
	k, err := indexKey(hash)
	if err != nil {
		return 0, false, err
	}
	v, err := s.kv.Get(k)
	if err != nil {
		return 0, false, fmt.Errorf("mmrstore: get index: %w", err)
	}
	if v == nil {
		return 0, false, nil
	}
	if len(v) != 8 {
		return 0, false, fmt.Errorf("mmrstore: index value has bad length %d", len(v))
	}
	return binary.BigEndian.Uint64(v), true, nil
}

// Close releases the underlying KV handle.
func (s *Store) Close() error {
	return s.kv.Close()
}

// Tx is the transactional scope around a single committed state transition
// (spec §5 / §4.6): writes staged via Tx are invisible until Commit, so a
// cancellation before Commit leaves the on-disk MMR untouched.
type Tx struct {
	s      *Store
	writes map[string][]byte
	order  []string
	closed bool
}

// BeginTx opens a new transactional scope against the store.
func (s *Store) BeginTx() *Tx {
	return &Tx{s: s, writes: make(map[string][]byte)}
}

// PutHash stages a node write at index.
func (t *Tx) PutHash(index uint64, hash string) error {
	if t.closed {
		return ErrTxClosed
	}
	k := nodeKey(index)
	t.stage(k, []byte(hash))
	return nil
}

// PutIndex stages a hash -> element_index secondary-index write.
func (t *Tx) PutIndex(hash string, index uint64) error {
	if t.closed {
		return ErrTxClosed
	}
	k, err := indexKey(hash)
	if err != nil {
		return err
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, index)
	t.stage(k, b)
	return nil
}

// SetCounts stages the elements_count/leaves_count counters.
func (t *Tx) SetCounts(elementsCount, leavesCount uint64) error {
	if t.closed {
		return ErrTxClosed
	}
	eb := make([]byte, 8)
	binary.BigEndian.PutUint64(eb, elementsCount)
	lb := make([]byte, 8)
	binary.BigEndian.PutUint64(lb, leavesCount)
	t.stage(keyElementsCount, eb)
	t.stage(keyLeavesCount, lb)
	return nil
}

func (t *Tx) stage(key, value []byte) {
	ks := string(key)
	if _, exists := t.writes[ks]; !exists {
		t.order = append(t.order, ks)
	}
	t.writes[ks] = value
}

// read-through helpers let a caller observe writes staged earlier in the
// same Tx before it has been committed, so a batch that appends several
// leaves under one transactional scope sees its own uncommitted cascade.

// GetHash returns the node hash at index, preferring an uncommitted staged
// write over the underlying store.
func (t *Tx) GetHash(index uint64) (string, bool, error) {
	if t.closed {
		return "", false, ErrTxClosed
	}
	k := nodeKey(index)
	if v, ok := t.writes[string(k)]; ok {
		return string(v), true, nil
	}
	return t.s.GetHash(index)
}

// ElementsCount returns N, folding in a staged-but-uncommitted counter write.
func (t *Tx) ElementsCount() (uint64, error) {
	if t.closed {
		return 0, ErrTxClosed
	}
	if v, ok := t.writes[string(keyElementsCount)]; ok {
		return binary.BigEndian.Uint64(v), nil
	}
	return t.s.ElementsCount()
}

// LeavesCount returns L, folding in a staged-but-uncommitted counter write.
func (t *Tx) LeavesCount() (uint64, error) {
	if t.closed {
		return 0, ErrTxClosed
	}
	if v, ok := t.writes[string(keyLeavesCount)]; ok {
		return binary.BigEndian.Uint64(v), nil
	}
	return t.s.LeavesCount()
}

// Commit flushes all staged writes to the underlying KV in stable order.
// A partial failure (a Set error partway through) may leave a subset of
// keys written; callers treat any Commit error as fatal to the batch per
// spec §4.6/§7 and do not retry within the core.
func (t *Tx) Commit() error {
	if t.closed {
		return ErrTxClosed
	}
	t.closed = true
	for _, k := range t.order {
		if err := t.s.kv.Set([]byte(k), t.writes[k]); err != nil {
			return fmt.Errorf("mmrstore: commit: %w", err)
		}
	}
	return nil
}

// Discard abandons all staged writes. Safe to call even if nothing was
// staged; used on any failure path before Commit.
func (t *Tx) Discard() {
	t.closed = true
	t.writes = nil
	t.order = nil
}

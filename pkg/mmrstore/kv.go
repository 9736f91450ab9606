package mmrstore

import (
	"fmt"

	dbm "github.com/cometbft/cometbft-db"
)

// KV is the minimal key/value contract a batch MMR file is built on. Kept
// deliberately small so alternative backends can be swapped in without
// touching Store.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Close() error
}

// cometKV wraps a cometbft-db handle and exposes it as KV.
type cometKV struct {
	db dbm.DB
}

// NewGoLevelDB opens (creating if absent) a goleveldb-backed batch file at
// dir/name.db, the on-disk unit named in spec §6 ("one file per batch").
func NewGoLevelDB(name, dir string) (KV, error) {
	db, err := dbm.NewGoLevelDB(name, dir)
	if err != nil {
		return nil, fmt.Errorf("mmrstore: open goleveldb %s/%s: %w", dir, name, err)
	}
	return &cometKV{db: db}, nil
}

// Get implements KV.
func (a *cometKV) Get(key []byte) ([]byte, error) {
	v, err := a.db.Get(key)
	if err != nil {
		return nil, fmt.Errorf("mmrstore: get: %w", err)
	}
	return v, nil
}

// Set implements KV. Uses SetSync so a committed write survives a crash
// immediately.
func (a *cometKV) Set(key, value []byte) error {
	if err := a.db.SetSync(key, value); err != nil {
		return fmt.Errorf("mmrstore: set: %w", err)
	}
	return nil
}

// Close implements KV.
func (a *cometKV) Close() error {
	return a.db.Close()
}

// MemKV is an in-process KV backed by a map, used by tests and by callers
// that want an ephemeral batch scratch space.
type MemKV struct {
	data map[string][]byte
}

// NewMemKV constructs an empty in-memory KV.
func NewMemKV() *MemKV {
	return &MemKV{data: make(map[string][]byte)}
}

// Get implements KV.
func (m *MemKV) Get(key []byte) ([]byte, error) {
	v, ok := m.data[string(key)]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

// Set implements KV.
func (m *MemKV) Set(key, value []byte) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[string(key)] = cp
	return nil
}

// Close implements KV.
func (m *MemKV) Close() error { return nil }

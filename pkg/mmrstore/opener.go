package mmrstore

import (
	"fmt"
	"sync"
)

// DirOpener opens (and caches) one goleveldb-backed Store per batch
// index under a common directory, the "one file per batch" layout
// named in spec §6.
type DirOpener struct {
	dir       string
	batchSize uint64

	mu     sync.Mutex
	stores map[uint64]*Store
}

// NewDirOpener constructs a DirOpener rooted at dir.
func NewDirOpener(dir string, batchSize uint64) *DirOpener {
	return &DirOpener{
		dir:       dir,
		batchSize: batchSize,
		stores:    make(map[uint64]*Store),
	}
}

// Open returns the Store for batchIndex, opening its on-disk file on
// first use and reusing the handle afterward.
func (o *DirOpener) Open(batchIndex uint64) (*Store, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if s, ok := o.stores[batchIndex]; ok {
		return s, nil
	}

	name := fmt.Sprintf("batch_%d", batchIndex)
	kv, err := NewGoLevelDB(name, o.dir)
	if err != nil {
		return nil, err
	}
	store, err := NewStore(kv)
	if err != nil {
		return nil, err
	}
	o.stores[batchIndex] = store
	return store, nil
}

// Close closes every Store opened so far.
func (o *DirOpener) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var firstErr error
	for _, s := range o.stores {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

package batchproc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fossil-relay/mmr-accumulator/pkg/guestio"
	"github.com/fossil-relay/mmr-accumulator/pkg/mmrengine"
	"github.com/fossil-relay/mmr-accumulator/pkg/mmrstore"
	"github.com/fossil-relay/mmr-accumulator/pkg/proofgen"
)

// fakeHeaderStore serves a fixed in-memory range of headers, standing in
// for the external header ingestion collaborator.
type fakeHeaderStore struct {
	headers []guestio.Header
}

func (f *fakeHeaderStore) GetBlockHeadersByRange(ctx context.Context, start, end uint64) ([]guestio.Header, error) {
	var out []guestio.Header
	for _, h := range f.headers {
		if h.Number >= start && h.Number <= end {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeHeaderStore) LatestFinalized(ctx context.Context) (uint64, error) {
	if len(f.headers) == 0 {
		return 0, nil
	}
	return f.headers[len(f.headers)-1].Number, nil
}

// mapOpener hands out one in-memory Store per batch index, lazily created.
type mapOpener struct {
	stores map[uint64]*mmrstore.Store
}

func newMapOpener() *mapOpener {
	return &mapOpener{stores: map[uint64]*mmrstore.Store{}}
}

func (o *mapOpener) Open(batchIndex uint64) (*mmrstore.Store, error) {
	if s, ok := o.stores[batchIndex]; ok {
		return s, nil
	}
	s, err := mmrstore.NewStore(mmrstore.NewMemKV())
	if err != nil {
		return nil, err
	}
	o.stores[batchIndex] = s
	return s, nil
}

// canningBackend is a zkVM stand-in that computes the real MMR append
// sequence against a scratch store (using mmrengine directly, the same
// algorithm the guest would run) and replays it as a GuestOutput journal,
// so the batch processor's post-commit peak verification exercises real
// MMR arithmetic rather than a hand-faked value.
type canningBackend struct{}

func (canningBackend) Prove(ctx context.Context, elf proofgen.ELFIdentity, encodedInput []byte) ([]byte, error) {
	input, err := guestio.DecodeCombinedInput(encodedInput)
	if err != nil {
		return nil, err
	}

	store, err := mmrstore.NewStore(mmrstore.NewMemKV())
	if err != nil {
		return nil, err
	}
	tx := store.BeginTx()
	if err := tx.SetCounts(input.MMRInput.ElementsCount, input.MMRInput.LeavesCount); err != nil {
		return nil, err
	}
	for i, peak := range findPeakPositions(input.MMRInput.LeavesCount) {
		if err := tx.PutHash(peak, input.MMRInput.InitialPeaks[i]); err != nil {
			return nil, err
		}
	}

	engine := mmrengine.New(store, mmrengine.Keccak256)
	var allHashes []guestio.IndexedHash
	var appendResults []guestio.AppendOutcome
	for _, leaf := range input.MMRInput.NewElements {
		result, err := engine.Append(tx, leaf)
		if err != nil {
			return nil, err
		}
		for _, nh := range result.NewHashes {
			allHashes = append(allHashes, guestio.IndexedHash{Index: nh.Index, Hash: nh.Hash})
		}
		appendResults = append(appendResults, guestio.AppendOutcome{RootHash: result.RootHash, ElementIndex: result.ElementIndex})
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	finalPeaks, err := engine.GetPeaks(nil)
	if err != nil {
		return nil, err
	}
	elementsCount, err := store.ElementsCount()
	if err != nil {
		return nil, err
	}
	leavesCount, err := store.LeavesCount()
	if err != nil {
		return nil, err
	}
	rootHash, err := engine.RootHash(nil)
	if err != nil {
		return nil, err
	}

	output := guestio.GuestOutput{
		FinalPeaks:    finalPeaks,
		ElementsCount: elementsCount,
		LeavesCount:   leavesCount,
		AppendResults: appendResults,
		RootHash:      rootHash,
		AllHashes:     allHashes,
	}
	return guestio.EncodeGuestOutput(output), nil
}

// findPeakPositions mirrors mmrengine's internal peak-position algorithm
// (binary decomposition of leavesCount, most-significant bit first) just
// enough to seed a scratch store's existing peaks; duplicated here rather
// than exported because it is purely a test fixture concern.
func findPeakPositions(leavesCount uint64) []uint64 {
	var positions []uint64
	var pos uint64
	for h := 63; h >= 0; h-- {
		if leavesCount&(uint64(1)<<uint(h)) == 0 {
			continue
		}
		size := (uint64(1) << uint(h+1)) - 1 // perfect subtree of height h
		pos += size
		positions = append(positions, pos)
	}
	return positions
}

func headersRange(start, end uint64) []guestio.Header {
	var out []guestio.Header
	for n := start; n <= end; n++ {
		leaf := mmrengine.Keccak256([]byte{byte(n), byte(n >> 8)})
		out = append(out, guestio.Header{Number: n, BlockHash: hexEncode(leaf), ParentHash: "0x0"})
	}
	return out
}

func hexEncode(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, 2+len(b)*2)
	out[0], out[1] = '0', 'x'
	for i, c := range b {
		out[2+i*2] = hextable[c>>4]
		out[3+i*2] = hextable[c&0x0F]
	}
	return string(out)
}

func newTestProcessor(headers []guestio.Header, batchSize uint64) (*Processor, *mapOpener) {
	opener := newMapOpener()
	prover := proofgen.New(canningBackend{}, proofgen.NewGroth16Prover(), proofgen.ELFIdentity{ImageID: "acc"}, proofgen.ELFIdentity{})
	return NewProcessor(&fakeHeaderStore{headers: headers}, opener, prover, batchSize), opener
}

func TestProcessBatch_HappyPath(t *testing.T) {
	headers := headersRange(0, 3)
	p, _ := newTestProcessor(headers, 4)

	result, err := p.ProcessBatch(context.Background(), 0, 3, nil, FlavourStark, false)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, uint64(0), result.StartBlock)
	assert.Equal(t, uint64(3), result.EndBlock)
	assert.Equal(t, guestio.ProofKindStark, result.Proof.Kind)
	assert.Equal(t, uint64(4), result.NewMmrState.LeavesCount)
	require.NoError(t, mmrengine.ValidateU256Hex(result.NewMmrState.RootHash))
}

func TestProcessBatch_IdempotentSkipWhenAlreadyComplete(t *testing.T) {
	headers := headersRange(0, 3)
	p, opener := newTestProcessor(headers, 4)

	first, err := p.ProcessBatch(context.Background(), 0, 3, nil, FlavourStark, false)
	require.NoError(t, err)
	require.NotNil(t, first)

	store, err := opener.Open(0)
	require.NoError(t, err)
	leavesCount, err := store.LeavesCount()
	require.NoError(t, err)
	require.Equal(t, uint64(4), leavesCount)

	second, err := p.ProcessBatch(context.Background(), 0, 3, nil, FlavourStark, false)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestProcessBatch_EmptyHeaderRangeFails(t *testing.T) {
	p, _ := newTestProcessor(nil, 4)

	_, err := p.ProcessBatch(context.Background(), 0, 3, nil, FlavourStark, false)
	assert.ErrorIs(t, err, ErrEmptyHeaders)
	assert.True(t, IsEmptyHeaders(err))
}

func TestCalculateBatchBounds(t *testing.T) {
	idx, end := calculateBatchBounds(5, 20, 4)
	assert.Equal(t, uint64(1), idx)
	assert.Equal(t, uint64(7), end) // clamped to batch 1's range [4,7]
}

func TestCalculateStartBlock_SaturatesAtZero(t *testing.T) {
	assert.Equal(t, uint64(0), calculateStartBlock(2, 8))
}

func TestCalculateBatchRange(t *testing.T) {
	start, end := calculateBatchRange(2, 10)
	assert.Equal(t, uint64(20), start)
	assert.Equal(t, uint64(29), end)
}

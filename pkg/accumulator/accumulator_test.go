package accumulator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fossil-relay/mmr-accumulator/pkg/batchproc"
	"github.com/fossil-relay/mmr-accumulator/pkg/guestio"
	"github.com/fossil-relay/mmr-accumulator/pkg/mmrengine"
	"github.com/fossil-relay/mmr-accumulator/pkg/mmrstore"
	"github.com/fossil-relay/mmr-accumulator/pkg/proofgen"
)

type fakeHeaderStore struct {
	headers   []guestio.Header
	finalized uint64
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
	return f.finalized, nil
}

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

// canningBackend replays a real MMR append sequence as the guest's journal;
// see batchproc's equivalent fixture for the rationale.
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

	return guestio.EncodeGuestOutput(guestio.GuestOutput{
		FinalPeaks:    finalPeaks,
		ElementsCount: elementsCount,
		LeavesCount:   leavesCount,
		AppendResults: appendResults,
		RootHash:      rootHash,
		AllHashes:     allHashes,
	}), nil
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

func newTestBuilder(t *testing.T, headers []guestio.Header, finalized, batchSize uint64) *Builder {
	t.Helper()
	opener := newMapOpener()
	groth16Prover := proofgen.NewGroth16Prover()
	require.NoError(t, groth16Prover.Setup())
	prover := proofgen.New(canningBackend{}, groth16Prover, proofgen.ELFIdentity{ImageID: "acc"}, proofgen.ELFIdentity{})
	hs := &fakeHeaderStore{headers: headers, finalized: finalized}
	processor := batchproc.NewProcessor(hs, opener, prover, batchSize)
	return New(processor, hs, batchSize)
}

// TestBuildFromBlockWithBatches_PlacesGroth16OnlyOnTerminalBatch drives three
// batches forward and checks the STARK/STARK/Groth16 placement required by
// spec §4.5: every non-terminal batch chains a STARK, and only the last
// batch in the bounded run produces the Groth16 wrap.
func TestBuildFromBlockWithBatches_PlacesGroth16OnlyOnTerminalBatch(t *testing.T) {
	headers := headersRange(0, 5)
	b := newTestBuilder(t, headers, 5, 2)

	run, err := b.BuildFromBlockWithBatches(context.Background(), 0, 3, false)
	require.NoError(t, err)
	require.Len(t, run.Results, 3)

	assert.Equal(t, guestio.ProofKindStark, run.Results[0].Proof.Kind)
	assert.Equal(t, guestio.ProofKindStark, run.Results[1].Proof.Kind)
	assert.Equal(t, guestio.ProofKindGroth16, run.Results[2].Proof.Kind)

	assert.Equal(t, uint64(0), run.Results[0].StartBlock)
	assert.Equal(t, uint64(1), run.Results[0].EndBlock)
	assert.Equal(t, uint64(4), run.Results[2].StartBlock)
	assert.Equal(t, uint64(5), run.Results[2].EndBlock)
}

func TestBuildFromBlock_StopsOnEmptyHeaderRange(t *testing.T) {
	headers := headersRange(0, 3)
	b := newTestBuilder(t, headers, 3, 2)

	run, err := b.BuildFromBlock(context.Background(), 0, false)
	require.NoError(t, err)
	assert.Len(t, run.Results, 2) // batches [0,1] and [2,3]; nothing past block 3
}

func TestUpdateMmrWithNewHeaders_ReturnsGroth16StateAndCalldata(t *testing.T) {
	headers := headersRange(0, 1)
	b := newTestBuilder(t, headers, 1, 2)

	state, calldata, err := b.UpdateMmrWithNewHeaders(context.Background(), 0, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), state.LatestBlockNumber)
	assert.NotEmpty(t, calldata)
}

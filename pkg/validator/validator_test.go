package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fossil-relay/mmr-accumulator/pkg/chainclient"
	"github.com/fossil-relay/mmr-accumulator/pkg/guestio"
	"github.com/fossil-relay/mmr-accumulator/pkg/mmrengine"
	"github.com/fossil-relay/mmr-accumulator/pkg/mmrstore"
	"github.com/fossil-relay/mmr-accumulator/pkg/proofgen"
)

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

type mapOpener struct {
	stores map[uint64]*mmrstore.Store
}

func (o *mapOpener) Open(batchIndex uint64) (*mmrstore.Store, error) {
	s, ok := o.stores[batchIndex]
	if !ok {
		return nil, assert.AnError
	}
	return s, nil
}

type fakeChainClient struct {
	states map[uint64]chainclient.MmrState
	err    error
}

func (f *fakeChainClient) GetMmrState(ctx context.Context, storeAddr string, batchIndex uint64) (chainclient.MmrState, error) {
	if f.err != nil {
		return chainclient.MmrState{}, f.err
	}
	return f.states[batchIndex], nil
}

func (f *fakeChainClient) VerifyMmrProof(ctx context.Context, verifierAddr string, newState chainclient.MmrState, calldata []guestio.Felt) (chainclient.TxReceipt, error) {
	return chainclient.TxReceipt{Success: true}, nil
}

type fakeStarkBackend struct{}

func (fakeStarkBackend) Prove(ctx context.Context, elf proofgen.ELFIdentity, encodedInput []byte) ([]byte, error) {
	return guestio.EncodeGuestOutput(guestio.GuestOutput{}), nil
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

// buildPopulatedBatch appends n leaves (one per header in [0, n)) to a
// fresh store and returns the store alongside the headers and the
// resulting on-chain-equivalent root.
func buildPopulatedBatch(t *testing.T, n int) (*mmrstore.Store, []guestio.Header, string) {
	t.Helper()
	store, err := mmrstore.NewStore(mmrstore.NewMemKV())
	require.NoError(t, err)
	engine := mmrengine.New(store, mmrengine.Keccak256)

	headers := make([]guestio.Header, n)
	for i := 0; i < n; i++ {
		leaf := mmrengine.Keccak256([]byte{byte(i), byte(i >> 8)})
		hash := hexEncode(leaf)
		headers[i] = guestio.Header{Number: uint64(i), BlockHash: hash, ParentHash: "0x0"}

		tx := store.BeginTx()
		_, err := engine.Append(tx, hash)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
	}

	root, err := engine.RootHash(nil)
	require.NoError(t, err)
	return store, headers, root
}

func TestValidateBlocks_HappyPath(t *testing.T) {
	store, headers, root := buildPopulatedBatch(t, 4)
	opener := &mapOpener{stores: map[uint64]*mmrstore.Store{0: store}}
	headerStore := &fakeHeaderStore{headers: headers}
	chain := &fakeChainClient{states: map[uint64]chainclient.MmrState{0: {RootHash: root}}}
	prover := proofgen.New(fakeStarkBackend{}, proofgen.NewGroth16Prover(), proofgen.ELFIdentity{}, proofgen.ELFIdentity{ImageID: "val"})

	v := New(opener, headerStore, chain, prover, 4, 1, "0xstore")
	result, err := v.ValidateBlocks(context.Background(), 0, 3, false)
	require.NoError(t, err)
	require.Len(t, result.Proofs, 1)
	assert.Equal(t, guestio.ProofKindStark, result.Proofs[0].Kind)
}

func TestValidateBlocks_RejectsOnchainRootMismatch(t *testing.T) {
	store, headers, _ := buildPopulatedBatch(t, 4)
	opener := &mapOpener{stores: map[uint64]*mmrstore.Store{0: store}}
	headerStore := &fakeHeaderStore{headers: headers}
	chain := &fakeChainClient{states: map[uint64]chainclient.MmrState{0: {RootHash: "0xdeadbeef"}}}
	prover := proofgen.New(fakeStarkBackend{}, proofgen.NewGroth16Prover(), proofgen.ELFIdentity{}, proofgen.ELFIdentity{ImageID: "val"})

	v := New(opener, headerStore, chain, prover, 4, 1, "0xstore")
	_, err := v.ValidateBlocks(context.Background(), 0, 3, false)
	assert.ErrorIs(t, err, ErrInvalidMmrRoot)
}

func TestValidateBlocks_SkipProofSkipsOnchainCheck(t *testing.T) {
	store, headers, _ := buildPopulatedBatch(t, 4)
	opener := &mapOpener{stores: map[uint64]*mmrstore.Store{0: store}}
	headerStore := &fakeHeaderStore{headers: headers}
	chain := &fakeChainClient{err: assert.AnError}
	prover := proofgen.New(fakeStarkBackend{}, proofgen.NewGroth16Prover(), proofgen.ELFIdentity{}, proofgen.ELFIdentity{ImageID: "val"})

	v := New(opener, headerStore, chain, prover, 4, 1, "0xstore")
	result, err := v.ValidateBlocks(context.Background(), 0, 3, true)
	require.NoError(t, err)
	require.Len(t, result.Proofs, 1)
}

func TestValidateBlocks_EmptyHeaderRangeFails(t *testing.T) {
	headerStore := &fakeHeaderStore{}
	opener := &mapOpener{stores: map[uint64]*mmrstore.Store{}}
	chain := &fakeChainClient{}
	prover := proofgen.New(fakeStarkBackend{}, proofgen.NewGroth16Prover(), proofgen.ELFIdentity{}, proofgen.ELFIdentity{})

	v := New(opener, headerStore, chain, prover, 4, 1, "0xstore")
	_, err := v.ValidateBlocks(context.Background(), 0, 3, false)
	assert.ErrorIs(t, err, ErrEmptyHeaders)
}

package mmrengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fossil-relay/mmr-accumulator/pkg/mmrstore"
)

func newTestEngine(t *testing.T) (*Engine, *mmrstore.Store) {
	t.Helper()
	store, err := mmrstore.NewStore(mmrstore.NewMemKV())
	require.NoError(t, err)
	return New(store, Keccak256), store
}

func appendLeaf(t *testing.T, e *Engine, store *mmrstore.Store, leaf string) *AppendResult {
	t.Helper()
	tx := store.BeginTx()
	result, err := e.Append(tx, leaf)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	return result
}

func syntheticLeaf(i int) string {
	raw := Keccak256([]byte{byte(i), byte(i >> 8)})
	return encodeHash(raw)
}

func TestNodeCount(t *testing.T) {
	cases := []struct {
		leaves uint64
		want   uint64
	}{
		{0, 0},
		{1, 1},
		{2, 3},
		{3, 4},
		{4, 7},
		{11, 19},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, nodeCount(c.leaves), "leaves=%d", c.leaves)
	}
}

func TestFindPeaks_SinglePerfectTree(t *testing.T) {
	// 4 leaves: one perfect subtree of height 2, one peak at node 7.
	peaks := findPeaks(4)
	assert.Equal(t, []uint64{7}, peaks)
}

func TestFindPeaks_MultiplePeaks(t *testing.T) {
	// 5 leaves: one height-2 subtree (nodes 1-7) and one height-0 leaf (node 8).
	peaks := findPeaks(5)
	assert.Equal(t, []uint64{7, 8}, peaks)
}

func TestAppend_SingleLeaf(t *testing.T) {
	e, store := newTestEngine(t)
	leaf := syntheticLeaf(0)

	result := appendLeaf(t, e, store, leaf)

	assert.Equal(t, uint64(1), result.ElementIndex)
	assert.Equal(t, uint64(1), result.LeavesCount)
	assert.Equal(t, uint64(1), result.ElementsCount)
	require.Len(t, result.Peaks, 1)
	assert.Equal(t, leaf, result.Peaks[0])
	require.NoError(t, ValidateU256Hex(result.RootHash))
}

func TestAppend_CarryCascade(t *testing.T) {
	e, store := newTestEngine(t)

	for i := 0; i < 3; i++ {
		appendLeaf(t, e, store, syntheticLeaf(i))
	}

	// 3 leaves -> elements_count = 2*3 - popcount(3) = 4.
	elementsCount, err := store.ElementsCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), elementsCount)

	leavesCount, err := store.LeavesCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), leavesCount)

	peaks, err := e.GetPeaks(nil)
	require.NoError(t, err)
	assert.Len(t, peaks, 2) // one height-1 subtree, one lone leaf
}

func TestRootHash_Deterministic(t *testing.T) {
	e1, store1 := newTestEngine(t)
	e2, store2 := newTestEngine(t)

	leaves := []string{syntheticLeaf(0), syntheticLeaf(1), syntheticLeaf(2), syntheticLeaf(3), syntheticLeaf(4)}
	for _, l := range leaves {
		appendLeaf(t, e1, store1, l)
		appendLeaf(t, e2, store2, l)
	}

	root1, err := e1.RootHash(nil)
	require.NoError(t, err)
	root2, err := e2.RootHash(nil)
	require.NoError(t, err)

	assert.Equal(t, root1, root2)
}

func TestRootHash_EmptyMMR(t *testing.T) {
	e, _ := newTestEngine(t)
	root, err := e.RootHash(nil)
	require.NoError(t, err)
	require.NoError(t, ValidateU256Hex(root))
}

func TestGetProof_RoundTripsForEveryLeaf(t *testing.T) {
	e, store := newTestEngine(t)
	const n = 11
	leaves := make([]string, n)
	indices := make([]uint64, n)
	for i := 0; i < n; i++ {
		leaves[i] = syntheticLeaf(i)
		indices[i] = appendLeaf(t, e, store, leaves[i]).ElementIndex
	}

	for i := 0; i < n; i++ {
		proof, err := e.GetProof(indices[i], nil)
		require.NoError(t, err)

		ok, err := e.VerifyProof(proof, leaves[i])
		require.NoError(t, err)
		assert.True(t, ok, "leaf %d should verify", i)
	}
}

func TestVerifyProof_RejectsMutatedSibling(t *testing.T) {
	e, store := newTestEngine(t)
	for i := 0; i < 7; i++ {
		appendLeaf(t, e, store, syntheticLeaf(i))
	}

	// Element 4 is the third leaf (elements 1, 2 are leaves, 3 is their parent).
	proof, err := e.GetProof(4, nil)
	require.NoError(t, err)
	require.NotEmpty(t, proof.SiblingsHashes)

	mutated := *proof
	mutated.SiblingsHashes = append([]string{}, proof.SiblingsHashes...)
	mutatedRaw, err := decodeHash(mutated.SiblingsHashes[0])
	require.NoError(t, err)
	mutatedRaw[0] ^= 0xFF
	mutated.SiblingsHashes[0] = encodeHash(mutatedRaw)

	ok, err := e.VerifyProof(&mutated, proof.ElementHash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyProof_RejectsWrongLeaf(t *testing.T) {
	e, store := newTestEngine(t)
	for i := 0; i < 4; i++ {
		appendLeaf(t, e, store, syntheticLeaf(i))
	}
	proof, err := e.GetProof(1, nil)
	require.NoError(t, err)

	ok, err := e.VerifyProof(proof, syntheticLeaf(99))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidateU256Hex(t *testing.T) {
	assert.NoError(t, ValidateU256Hex("0x1"))
	assert.NoError(t, ValidateU256Hex("0xab"))
	assert.Error(t, ValidateU256Hex("1234"))
	assert.Error(t, ValidateU256Hex("0x"))
	assert.Error(t, ValidateU256Hex("0xzz"))
}

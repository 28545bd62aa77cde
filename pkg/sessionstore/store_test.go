package sessionstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exfinen/mpc-cluster/pkg/apierrors"
)

func openTestStore(t *testing.T, prohibitMultiples bool) *Store {
	t.Helper()
	store, err := Open(context.Background(), "file::memory:?cache=shared", prohibitMultiples)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestInsertAndCount(t *testing.T) {
	store := openTestStore(t, false)
	ctx := context.Background()

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	id, err := store.Insert(ctx, Record{EthAddress: "0xAB", UID: 1, ProofPath: "proofs/proof_1.json"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, id)

	n, err = store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestHasAddressSharedData(t *testing.T) {
	store := openTestStore(t, false)
	ctx := context.Background()

	has, err := store.HasAddressSharedData(ctx, "0xAB")
	require.NoError(t, err)
	assert.False(t, has)

	_, err = store.Insert(ctx, Record{EthAddress: "0xAB", UID: 1, ProofPath: "p"})
	require.NoError(t, err)

	has, err = store.HasAddressSharedData(ctx, "0xAB")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestProhibitMultipleContributions(t *testing.T) {
	store := openTestStore(t, true)
	ctx := context.Background()

	_, err := store.Insert(ctx, Record{EthAddress: "0xAB", UID: 42, ProofPath: "p1"})
	require.NoError(t, err)

	exists, err := store.ExistsUID(ctx, 42)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = store.Insert(ctx, Record{EthAddress: "0xCD", UID: 42, ProofPath: "p2"})
	require.Error(t, err)
	assert.Equal(t, apierrors.KindInvalidRequest, apierrors.KindOf(err))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestMultipleContributionsAllowedWhenNotProhibited(t *testing.T) {
	store := openTestStore(t, false)
	ctx := context.Background()

	_, err := store.Insert(ctx, Record{EthAddress: "0xAB", UID: 42, ProofPath: "p1"})
	require.NoError(t, err)
	_, err = store.Insert(ctx, Record{EthAddress: "0xCD", UID: 42, ProofPath: "p2"})
	require.NoError(t, err)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

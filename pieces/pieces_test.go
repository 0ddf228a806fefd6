package pieces

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/events"
	"github.com/tolelom/purgegame/internal/testutil"
)

func TestMintBatchSequentialIDs(t *testing.T) {
	buf := events.NewBuffer("tx")
	l := New(testutil.NewStateDB(), buf)

	first, err := l.MintBatch("alice", 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first)

	first, err = l.MintBatch("bob", 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), first)

	owner, err := l.OwnerOf(5)
	require.NoError(t, err)
	assert.Equal(t, "bob", owner)

	n, _ := l.Minted()
	assert.Equal(t, uint64(5), n)
	assert.Len(t, buf.Events(), 2)
}

func TestMintBatchValidation(t *testing.T) {
	l := New(testutil.NewStateDB(), nil)
	_, err := l.MintBatch("", 1)
	assert.Error(t, err)
	_, err = l.MintBatch("alice", 0)
	assert.Error(t, err)
}

func TestBurnRemovesOwnership(t *testing.T) {
	l := New(testutil.NewStateDB(), nil)
	_, err := l.MintBatch("alice", 1)
	require.NoError(t, err)

	ok, err := l.Exists(1)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, l.BurnOne(1))
	ok, _ = l.Exists(1)
	assert.False(t, ok)

	_, err = l.OwnerOf(1)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, l.BurnOne(1), core.ErrNotFound)
}

func TestTransfer(t *testing.T) {
	l := New(testutil.NewStateDB(), nil)
	_, err := l.MintBatch("alice", 1)
	require.NoError(t, err)

	assert.ErrorIs(t, l.Transfer("bob", "carol", 1), core.ErrGuard)
	require.NoError(t, l.Transfer("alice", "bob", 1))

	owner, _ := l.OwnerOf(1)
	assert.Equal(t, "bob", owner)
}

package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/internal/testutil"
)

func TestMintBurnSupply(t *testing.T) {
	l := New(testutil.NewStateDB(), nil, 0)
	require.NoError(t, l.Mint("alice", 100))
	require.NoError(t, l.Burn("alice", 30))

	bal, err := l.BalanceOf("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(70), bal)

	s, err := l.Supply()
	require.NoError(t, err)
	assert.Equal(t, uint64(70), s)
}

func TestBurnInsufficient(t *testing.T) {
	l := New(testutil.NewStateDB(), nil, 0)
	require.NoError(t, l.Mint("alice", 5))
	assert.ErrorIs(t, l.Burn("alice", 6), core.ErrGuard)
}

func TestAffiliate(t *testing.T) {
	st := testutil.NewStateDB()
	l := New(st, nil, 500)
	require.NoError(t, l.Affiliate("ref", 2000))

	bal, _ := l.BalanceOf("ref")
	assert.Equal(t, uint64(100), bal)

	acc, err := st.GetAccount("ref")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), acc.Balance, "affiliate pays tokens, not native")
}

func TestAffiliateLargeCost(t *testing.T) {
	l := New(testutil.NewStateDB(), nil, 500)
	require.NoError(t, l.Affiliate("ref", 1<<62))

	bal, err := l.BalanceOf("ref")
	require.NoError(t, err)
	assert.Equal(t, uint64(230584300921369395), bal, "5% of 2^62 without wrapping")
}

func TestSupplyBounds(t *testing.T) {
	st := testutil.NewStateDB()
	l := New(st, nil, 0)
	require.NoError(t, l.Mint("alice", ^uint64(0)))
	assert.ErrorIs(t, l.Mint("alice", 1), core.ErrGuard, "balance overflow")
	assert.ErrorIs(t, l.Mint("bob", 1), core.ErrGuard, "supply overflow")

	st2 := testutil.NewStateDB()
	l = New(st2, nil, 0)
	require.NoError(t, l.Mint("alice", 10))
	require.NoError(t, st2.SetCounter(counterSupply, 3))
	assert.Error(t, l.Burn("alice", 5))
	s, err := l.Supply()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), s, "supply never wraps below zero")
}

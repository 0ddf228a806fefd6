package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/internal/testutil"
)

func TestDepositMovePay(t *testing.T) {
	st := testutil.NewStateDB()
	var pools core.Pools
	l := New(st, &pools)

	l.Deposit(NextRound, 1000)
	assert.Equal(t, uint64(1000), pools.TotalAssets)
	require.NoError(t, l.Move(NextRound, Live, 600))
	require.NoError(t, l.Pay(Live, "alice", 250))

	assert.Equal(t, uint64(400), pools.NextRound)
	assert.Equal(t, uint64(350), pools.Live)
	assert.Equal(t, uint64(250), pools.ClaimableTotal)
	require.NoError(t, Check(pools))

	c, err := l.Claimable("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(250), c)
}

func TestMoveRejectsOverdraft(t *testing.T) {
	var pools core.Pools
	l := New(testutil.NewStateDB(), &pools)
	l.Deposit(Carryover, 10)

	err := l.Move(Carryover, Live, 11)
	assert.ErrorIs(t, err, core.ErrGuard)
	err = l.Pay(Carryover, "bob", 11)
	assert.ErrorIs(t, err, core.ErrGuard)
	assert.Equal(t, uint64(10), pools.Carryover)
}

func TestWithdrawLeavesSentinel(t *testing.T) {
	st := testutil.NewStateDB()
	var pools core.Pools
	l := New(st, &pools)
	l.Deposit(Live, 100)
	require.NoError(t, l.Pay(Live, "alice", 40))

	amt, err := l.Withdraw("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(39), amt)

	c, _ := l.Claimable("alice")
	assert.Equal(t, uint64(Sentinel), c)
	assert.Equal(t, uint64(1), pools.ClaimableTotal)
	assert.Equal(t, uint64(61), pools.TotalAssets)
	require.NoError(t, Check(pools))

	_, err = l.Withdraw("alice")
	assert.ErrorIs(t, err, core.ErrGuard, "sentinel alone is not claimable")
}

func TestCheckDetectsViolation(t *testing.T) {
	p := core.Pools{Live: 5, TotalAssets: 4}
	assert.Error(t, Check(p))
}

func TestPercentHelpers(t *testing.T) {
	assert.Equal(t, uint64(12), Percent(125, 10))
	assert.Equal(t, uint64(25), Permille(1250, 20))
	assert.Equal(t, uint64(50), Bps(1000, 500))
	assert.Equal(t, uint64(1<<62), Percent(1<<63, 50))
}

package keeper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/game"
	"github.com/tolelom/purgegame/internal/testutil"
	"github.com/tolelom/purgegame/randomness"
	"github.com/tolelom/purgegame/storage"
	"github.com/tolelom/purgegame/vm"
	"github.com/tolelom/purgegame/wallet"

	_ "github.com/tolelom/purgegame/vm/modules/economy"
	_ "github.com/tolelom/purgegame/vm/modules/game"
)

func newKeeper(t *testing.T) (*Keeper, *testutil.MemDB) {
	t.Helper()
	db := testutil.NewMemDB()
	st := storage.NewStateDB(db)
	p := game.DefaultParams()
	exec := vm.NewExecutor(st, nil, vm.Config{
		ChainID: "purge-test",
		Clock:   testutil.NewFakeClock(testutil.Epoch),
		RNG:     randomness.NewSequence([]byte("keeper"), true),
		Params:  p,
	})
	w, err := wallet.Generate()
	require.NoError(t, err)
	return New(st, exec, w, nil, Options{Budget: p.DefaultBudget}), db
}

func TestRunOnceDrainsAvailableWork(t *testing.T) {
	k, db := newKeeper(t)

	// request, init, then an idle tick that consumes the day's word
	assert.Equal(t, 3, k.RunOnce())
	assert.Equal(t, 0, k.RunOnce(), "nothing left today")

	_, err := db.Get([]byte("meta"))
	require.NoError(t, err, "state committed")

	require.NoError(t, k.View(func(g *game.Game) error {
		st, err := g.Status()
		require.NoError(t, err)
		assert.Equal(t, uint32(1), st.Level)
		assert.Equal(t, core.PhasePurchase, st.Phase)
		assert.True(t, st.RNGConsumed)
		return nil
	}))
}

func TestSubmitRejectsWithoutCommit(t *testing.T) {
	k, db := newKeeper(t)
	other, err := wallet.Generate()
	require.NoError(t, err)

	tx, err := other.Transfer("purge-test", k.Address(), 10, 0)
	require.NoError(t, err)
	_, err = k.Submit(tx)
	require.ErrorIs(t, err, core.ErrGuard)

	_, err = db.Get([]byte("acct:" + other.PubKey()))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRunRejectsBadSchedule(t *testing.T) {
	k, _ := newKeeper(t)
	k.opts.Schedule = "every so often"
	err := k.Run(context.Background())
	assert.Error(t, err)
}

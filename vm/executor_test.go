package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/events"
	"github.com/tolelom/purgegame/game"
	"github.com/tolelom/purgegame/internal/testutil"
	"github.com/tolelom/purgegame/randomness"
	"github.com/tolelom/purgegame/storage"
	"github.com/tolelom/purgegame/vm"
	"github.com/tolelom/purgegame/wallet"

	_ "github.com/tolelom/purgegame/vm/modules/economy"
	_ "github.com/tolelom/purgegame/vm/modules/game"
)

const chainID = "purge-test"

type env struct {
	t    *testing.T
	st   *storage.StateDB
	exec *vm.Executor
	evs  []events.Event
}

func newEnv(t *testing.T) *env {
	t.Helper()
	p := game.DefaultParams()
	p.UnitPrice = 100
	p.BootstrapTarget = 1_000
	e := &env{t: t, st: testutil.NewStateDB()}
	em := events.NewEmitter()
	em.SubscribeAll(func(ev events.Event) { e.evs = append(e.evs, ev) })
	e.exec = vm.NewExecutor(e.st, em, vm.Config{
		ChainID: chainID,
		Clock:   testutil.NewFakeClock(testutil.Epoch),
		RNG:     randomness.NewSequence([]byte("vm"), true),
		Params:  p,
	})
	return e
}

func (e *env) fund(t *testing.T, w *wallet.Wallet, amount uint64) {
	t.Helper()
	require.NoError(t, e.st.SetAccount(&core.Account{Address: w.PubKey(), Balance: amount}))
}

// send executes a freshly built transaction.
func (e *env) send(tx *core.Transaction, err error) (*vm.Receipt, error) {
	e.t.Helper()
	require.NoError(e.t, err)
	return e.exec.ExecuteTx(tx)
}

func (e *env) account(t *testing.T, w *wallet.Wallet) *core.Account {
	t.Helper()
	acc, err := e.st.GetAccount(w.PubKey())
	require.NoError(t, err)
	return acc
}

func TestTransfer(t *testing.T) {
	e := newEnv(t)
	a, _ := wallet.Generate()
	b, _ := wallet.Generate()
	e.fund(t, a, 1_000)

	_, err := e.send(a.Transfer(chainID, b.PubKey(), 300, 0))
	require.NoError(t, err)
	assert.Equal(t, uint64(700), e.account(t, a).Balance)
	assert.Equal(t, uint64(1), e.account(t, a).Nonce)
	assert.Equal(t, uint64(300), e.account(t, b).Balance)

	_, err = e.send(a.Transfer(chainID, b.PubKey(), 5_000, 1))
	assert.ErrorIs(t, err, core.ErrGuard)
	assert.Equal(t, uint64(1), e.account(t, a).Nonce, "failed tx leaves the nonce")
}

func TestExecutorRejects(t *testing.T) {
	e := newEnv(t)
	a, _ := wallet.Generate()
	b, _ := wallet.Generate()
	e.fund(t, a, 1_000)

	_, err := e.send(a.Transfer("other-chain", b.PubKey(), 1, 0))
	assert.ErrorIs(t, err, core.ErrGuard, "chain id")

	_, err = e.send(a.Transfer(chainID, b.PubKey(), 1, 5))
	assert.ErrorIs(t, err, core.ErrGuard, "nonce")

	_, err = e.send(a.NewTx(chainID, core.TxTransfer, 0, 10, core.TransferPayload{To: b.PubKey(), Amount: 1}))
	assert.ErrorIs(t, err, core.ErrGuard, "value on a non-payable tx")
	assert.Equal(t, uint64(1_000), e.account(t, a).Balance)

	tx, err := a.Transfer(chainID, b.PubKey(), 1, 0)
	require.NoError(t, err)
	tx.Payload = []byte(`{"to":"x","amount":999}`)
	_, err = e.exec.ExecuteTx(tx)
	assert.Error(t, err, "tampered payload")
}

func TestGameFlowThroughExecutor(t *testing.T) {
	e := newEnv(t)
	keeper, _ := wallet.Generate()
	alice, _ := wallet.Generate()
	e.fund(t, alice, 5_000)

	var nk uint64
	advance := func(budget uint32) (*game.TickResult, error) {
		r, err := e.send(keeper.Advance(chainID, budget, nk))
		if err != nil {
			return nil, err
		}
		nk++
		return r.Result.(*game.TickResult), nil
	}

	res, err := advance(1)
	require.NoError(t, err)
	assert.Equal(t, game.ActionRNGRequested, res.Action)
	res, err = advance(1)
	require.NoError(t, err)
	assert.Equal(t, game.ActionInit, res.Action)

	_, err = e.send(alice.Purchase(chainID, 4, 399, false, "", 0))
	require.ErrorIs(t, err, core.ErrGuard, "underpaid")
	assert.Equal(t, uint64(5_000), e.account(t, alice).Balance, "escrow refunded")

	r, err := e.send(alice.Purchase(chainID, 4, 400, false, "", 0))
	require.NoError(t, err)
	pr := r.Result.(*game.PurchaseResult)
	assert.Equal(t, uint64(1), pr.FirstID)
	assert.Equal(t, uint64(4_600), e.account(t, alice).Balance)

	st, err := e.exec.Game().Status()
	require.NoError(t, err)
	assert.Equal(t, uint64(400), st.Pools.NextRound)
	assert.Equal(t, uint64(400), st.Pools.TotalAssets)

	_, err = advance(0)
	require.ErrorIs(t, err, core.ErrEngagement, "keeper has not played")
	res, err = advance(5)
	require.NoError(t, err)
	assert.Equal(t, game.ActionMint, res.Action)

	owner, err := e.st.GetOwner(1)
	require.NoError(t, err)
	assert.Equal(t, alice.PubKey(), owner)

	bob, _ := wallet.Generate()
	_, err = e.send(alice.TransferPiece(chainID, 1, bob.PubKey(), 1))
	require.NoError(t, err)
	owner, err = e.st.GetOwner(1)
	require.NoError(t, err)
	assert.Equal(t, bob.PubKey(), owner)

	var types []events.EventType
	for _, ev := range e.evs {
		types = append(types, ev.Type)
	}
	assert.Contains(t, types, events.EventPurchase)
	assert.Contains(t, types, events.EventPieceMinted)
	assert.Contains(t, types, events.EventPieceTransfer)
	for _, ev := range e.evs {
		if ev.Type == events.EventPurchase {
			assert.Equal(t, pr.Quantity, ev.Data["quantity"])
			assert.Equal(t, r.TxID, ev.TxID)
		}
	}
}

func TestRegisteredTypes(t *testing.T) {
	assert.ElementsMatch(t, []core.TxType{
		core.TxAdvance, core.TxBurn, core.TxClaim, core.TxPurchase, core.TxPurchaseMap,
		core.TxRegisterCode, core.TxTransfer, core.TxTransferPiece,
	}, vm.RegisteredTypes())
}

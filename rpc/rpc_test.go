package rpc_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/events"
	"github.com/tolelom/purgegame/game"
	"github.com/tolelom/purgegame/indexer"
	"github.com/tolelom/purgegame/internal/testutil"
	"github.com/tolelom/purgegame/keeper"
	"github.com/tolelom/purgegame/metrics"
	"github.com/tolelom/purgegame/randomness"
	"github.com/tolelom/purgegame/rpc"
	"github.com/tolelom/purgegame/storage"
	"github.com/tolelom/purgegame/vm"
	"github.com/tolelom/purgegame/wallet"

	_ "github.com/tolelom/purgegame/vm/modules/economy"
	_ "github.com/tolelom/purgegame/vm/modules/game"
)

const chainID = "purge-test"

type node struct {
	t       *testing.T
	st      *storage.StateDB
	keeper  *keeper.Keeper
	handler *rpc.Handler
	metrics *metrics.Collector
}

func newNode(t *testing.T) *node {
	t.Helper()
	db := testutil.NewMemDB()
	st := storage.NewStateDB(db)
	em := events.NewEmitter()
	idx := indexer.New(db, em)
	m := metrics.New()
	m.Attach(em)

	p := game.DefaultParams()
	p.UnitPrice = 100
	p.BootstrapTarget = 1_000
	exec := vm.NewExecutor(st, em, vm.Config{
		ChainID: chainID,
		Clock:   testutil.NewFakeClock(testutil.Epoch),
		RNG:     randomness.NewSequence([]byte("rpc"), true),
		Params:  p,
	})
	kw, err := wallet.Generate()
	require.NoError(t, err)
	k := keeper.New(st, exec, kw, m, keeper.Options{Budget: p.DefaultBudget})
	return &node{t: t, st: st, keeper: k, handler: rpc.NewHandler(k, idx), metrics: m}
}

func (n *node) fund(t *testing.T, w *wallet.Wallet, amount uint64) {
	t.Helper()
	require.NoError(t, n.st.SetAccount(&core.Account{Address: w.PubKey(), Balance: amount}))
	require.NoError(t, n.st.Commit())
}

func dispatch(h *rpc.Handler, method string, params any) rpc.Response {
	raw, _ := json.Marshal(params)
	return h.Dispatch(rpc.Request{JSONRPC: "2.0", ID: 1, Method: method, Params: raw})
}

// send submits a freshly built transaction through sendTx.
func (n *node) send(tx *core.Transaction, err error) rpc.Response {
	n.t.Helper()
	require.NoError(n.t, err)
	return dispatch(n.handler, "sendTx", tx)
}

// post performs one HTTP round trip and decodes the JSON-RPC response.
func post(t *testing.T, url string, header http.Header, req rpc.Request) (int, rpc.Response) {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	hreq, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		hreq.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(hreq)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out rpc.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestGetBalanceUnknownAccount(t *testing.T) {
	n := newNode(t)
	resp := dispatch(n.handler, "getBalance", map[string]string{"address": "nonexistent"})
	require.Nil(t, resp.Error)
	acc, ok := resp.Result.(*core.Account)
	require.True(t, ok, "got %T", resp.Result)
	assert.Zero(t, acc.Balance)
	assert.Zero(t, acc.Nonce)

	resp = dispatch(n.handler, "getBalance", struct{}{})
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeInvalidParams, resp.Error.Code)
}

func TestSendTxTransfer(t *testing.T) {
	n := newNode(t)
	a, _ := wallet.Generate()
	b, _ := wallet.Generate()
	n.fund(t, a, 1_000)

	resp := n.send(a.Transfer(chainID, b.PubKey(), 250, 0))
	require.Nil(t, resp.Error)
	r, ok := resp.Result.(*vm.Receipt)
	require.True(t, ok)
	assert.Equal(t, core.TxTransfer, r.Type)

	resp = dispatch(n.handler, "getBalance", map[string]string{"address": b.PubKey()})
	require.Nil(t, resp.Error)
	assert.Equal(t, uint64(250), resp.Result.(*core.Account).Balance)

	resp = n.send(a.Transfer("elsewhere", b.PubKey(), 1, 1))
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeGuard, resp.Error.Code)
}

func TestErrorCodes(t *testing.T) {
	n := newNode(t)
	alice, _ := wallet.Generate()
	n.fund(t, alice, 1_000)

	// Purchases are refused until the engine has initialised its first level.
	resp := n.send(alice.Purchase(chainID, 1, 100, false, "", 0))
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeGuard, resp.Error.Code)

	resp = dispatch(n.handler, "getPiece", map[string]uint64{"id": 42})
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeNotFound, resp.Error.Code)

	resp = dispatch(n.handler, "getTraitRemaining", map[string]uint32{"level": 1})
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeInvalidParams, resp.Error.Code)

	resp = dispatch(n.handler, "noSuchMethod", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeMethodNotFound, resp.Error.Code)
}

func TestGameQueries(t *testing.T) {
	n := newNode(t)
	alice, _ := wallet.Generate()
	n.fund(t, alice, 5_000)

	res, err := n.keeper.Advance()
	require.NoError(t, err)
	assert.Equal(t, game.ActionRNGRequested, res.Action)
	res, err = n.keeper.Advance()
	require.NoError(t, err)
	assert.Equal(t, game.ActionInit, res.Action)

	resp := n.send(alice.Purchase(chainID, 2, 200, false, "", 0))
	require.Nil(t, resp.Error, "%+v", resp.Error)

	res, err = n.keeper.Advance()
	require.NoError(t, err)
	assert.Equal(t, game.ActionMint, res.Action)

	resp = dispatch(n.handler, "getStatus", nil)
	require.Nil(t, resp.Error)
	st := resp.Result.(*game.Status)
	assert.Equal(t, uint32(1), st.Level)
	assert.Equal(t, uint64(200), st.Pools.NextRound)

	resp = dispatch(n.handler, "getPiecesByOwner", map[string]string{"address": alice.PubKey()})
	require.Nil(t, resp.Error)
	assert.Equal(t, []uint64{1, 2}, resp.Result)

	resp = dispatch(n.handler, "getPiece", map[string]uint64{"id": 2})
	require.Nil(t, resp.Error)
	pv := resp.Result.(*game.PieceView)
	assert.Equal(t, alice.PubKey(), pv.Owner)
	assert.Equal(t, uint32(1), pv.Level)

	trait := pv.Traits[0]
	resp = dispatch(n.handler, "getTraitRemaining", map[string]any{"trait": trait})
	require.Nil(t, resp.Error)
	assert.GreaterOrEqual(t, resp.Result.(map[string]uint32)["remaining"], uint32(1))

	resp = dispatch(n.handler, "getTickets", nil)
	require.Nil(t, resp.Error)
	assert.Empty(t, resp.Result, "no burns yet")

	resp = dispatch(n.handler, "getWinnings", map[string]string{"address": alice.PubKey()})
	require.Nil(t, resp.Error)
	assert.Equal(t, uint64(0), resp.Result.(map[string]uint64)["claimable"])
}

func TestHTTPRoutes(t *testing.T) {
	n := newNode(t)
	srv := httptest.NewServer(rpc.NewServer("", n.handler, n.metrics, rpc.Options{}).Router())
	defer srv.Close()

	code, resp := post(t, srv.URL+"/", nil, rpc.Request{JSONRPC: "2.0", ID: 1, Method: "getStatus"})
	assert.Equal(t, http.StatusOK, code)
	require.Nil(t, resp.Error)

	code, resp = post(t, srv.URL+"/", nil, rpc.Request{JSONRPC: "1.0", ID: 1, Method: "getStatus"})
	assert.Equal(t, http.StatusOK, code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeInvalidRequest, resp.Error.Code)

	hr, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	hr.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, hr.StatusCode)

	hr, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	hr.Body.Close()
	assert.Equal(t, http.StatusOK, hr.StatusCode)

	hr, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(hr.Body)
	hr.Body.Close()
	assert.Equal(t, http.StatusOK, hr.StatusCode)
	assert.Contains(t, buf.String(), "getStatus")
}

func TestHTTPAuth(t *testing.T) {
	n := newNode(t)
	srv := httptest.NewServer(rpc.NewServer("", n.handler, nil, rpc.Options{AuthToken: "s3cret"}).Router())
	defer srv.Close()

	req := rpc.Request{JSONRPC: "2.0", ID: 1, Method: "getStatus"}
	code, resp := post(t, srv.URL+"/", nil, req)
	assert.Equal(t, http.StatusUnauthorized, code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeUnauthorized, resp.Error.Code)

	code, _ = post(t, srv.URL+"/", http.Header{"Authorization": {"Bearer s3cre"}}, req)
	assert.Equal(t, http.StatusUnauthorized, code, "prefix of the token")

	code, resp = post(t, srv.URL+"/", http.Header{"Authorization": {"Bearer s3cret"}}, req)
	assert.Equal(t, http.StatusOK, code)
	assert.Nil(t, resp.Error)
}

func TestHTTPRateLimit(t *testing.T) {
	n := newNode(t)
	srv := httptest.NewServer(rpc.NewServer("", n.handler, nil, rpc.Options{RateLimit: 0.001, Burst: 2}).Router())
	defer srv.Close()

	req := rpc.Request{JSONRPC: "2.0", ID: 1, Method: "getStatus"}
	for i := 0; i < 2; i++ {
		code, _ := post(t, srv.URL+"/", nil, req)
		assert.Equal(t, http.StatusOK, code)
	}
	code, resp := post(t, srv.URL+"/", nil, req)
	assert.Equal(t, http.StatusTooManyRequests, code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeRateLimited, resp.Error.Code)
}

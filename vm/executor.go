package vm

import (
	"errors"
	"fmt"
	"math"

	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/events"
	"github.com/tolelom/purgegame/game"
	"github.com/tolelom/purgegame/randomness"
)

// Context is passed to every Handler and provides access to the state, the
// triggering transaction, a per-transaction event sink and the round engine
// bound to both.
type Context struct {
	State  core.State
	Tx     *core.Transaction
	Events events.Sink
	Game   *game.Game
	Result any

	valueTaken bool
}

// TakeValue hands the transaction's attached native value to the handler.
// A transaction whose value is never taken fails.
func (c *Context) TakeValue() uint64 {
	c.valueTaken = true
	return c.Tx.Value
}

// Receipt is the outcome of a successful transaction.
type Receipt struct {
	TxID   string      `json:"tx_id"`
	Type   core.TxType `json:"type"`
	From   string      `json:"from"`
	Result any         `json:"result,omitempty"`
}

// Config carries what the executor needs besides state.
type Config struct {
	ChainID string
	Clock   core.Clock
	RNG     randomness.Provider
	Params  game.Params
}

// Executor applies transactions to the state using the global Handler registry.
type Executor struct {
	state   core.State
	emitter *events.Emitter
	cfg     Config
}

// NewExecutor creates an Executor with the given state and event emitter.
func NewExecutor(state core.State, emitter *events.Emitter, cfg Config) *Executor {
	if cfg.Clock == nil {
		cfg.Clock = core.SystemClock{}
	}
	return &Executor{state: state, emitter: emitter, cfg: cfg}
}

// ChainID returns the chain id transactions must carry.
func (e *Executor) ChainID() string { return e.cfg.ChainID }

// Game returns a round engine over the executor's state for read-only
// views. Events it raises go nowhere.
func (e *Executor) Game() *game.Game {
	return game.New(e.env(nil))
}

func (e *Executor) env(sink events.Sink) game.Env {
	return game.Env{
		State:  e.state,
		Clock:  e.cfg.Clock,
		RNG:    e.cfg.RNG,
		Events: sink,
		Params: e.cfg.Params,
	}
}

// ExecuteTx verifies and executes a single transaction with snapshot/rollback.
// Events raised by the handler reach the emitter only if it succeeds. The
// caller commits the state.
func (e *Executor) ExecuteTx(tx *core.Transaction) (*Receipt, error) {
	if err := tx.Verify(); err != nil {
		return nil, fmt.Errorf("signature: %w: %w", err, core.ErrGuard)
	}
	if tx.ChainID != e.cfg.ChainID {
		return nil, fmt.Errorf("chain id %q does not match %q: %w", tx.ChainID, e.cfg.ChainID, core.ErrGuard)
	}

	snapID, err := e.state.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	buf := events.NewBuffer(tx.ID)
	ctx, err := e.applyTx(tx, buf)
	if err != nil {
		buf.Discard()
		if revertErr := e.state.RevertToSnapshot(snapID); revertErr != nil {
			return nil, fmt.Errorf("revert snapshot after tx failure: %w (revert: %v)", err, revertErr)
		}
		return nil, err
	}

	if e.emitter != nil {
		buf.Flush(e.emitter)
		e.emitter.Emit(events.Event{
			Type: events.EventTxExecuted,
			TxID: tx.ID,
			Data: map[string]any{"type": string(tx.Type), "from": tx.From},
		})
	}
	return &Receipt{TxID: tx.ID, Type: tx.Type, From: tx.From, Result: ctx.Result}, nil
}

// applyTx checks the nonce, escrows the attached value, then dispatches to
// the handler.
func (e *Executor) applyTx(tx *core.Transaction, buf *events.Buffer) (*Context, error) {
	acc, err := e.state.GetAccount(tx.From)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if acc.Nonce != tx.Nonce {
		return nil, fmt.Errorf("invalid nonce: expected %d got %d: %w", acc.Nonce, tx.Nonce, core.ErrGuard)
	}
	if acc.Balance < tx.Value {
		return nil, fmt.Errorf("insufficient balance for value: have %d need %d: %w", acc.Balance, tx.Value, core.ErrGuard)
	}
	if acc.Nonce == math.MaxUint64 {
		return nil, fmt.Errorf("nonce overflow for account %s", tx.From)
	}
	acc.Balance -= tx.Value
	acc.Nonce++
	if err := e.state.SetAccount(acc); err != nil {
		return nil, err
	}

	ctx := &Context{
		State:  e.state,
		Tx:     tx,
		Events: buf,
		Game:   game.New(e.env(buf)),
	}
	if err := globalRegistry.Execute(tx.Type, ctx, tx.Payload); err != nil {
		return nil, err
	}
	if tx.Value > 0 && !ctx.valueTaken {
		return nil, fmt.Errorf("%s does not accept value: %w", tx.Type, core.ErrGuard)
	}
	return ctx, nil
}

// IsRejection reports whether err is a deterministic refusal by the game
// rather than a storage or internal failure.
func IsRejection(err error) bool {
	return errors.Is(err, core.ErrGuard) ||
		errors.Is(err, core.ErrNotReady) ||
		errors.Is(err, core.ErrEngagement) ||
		errors.Is(err, core.ErrShutdown)
}

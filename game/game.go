// Package game is the round engine: it decides which phase the game is in,
// moves funds between pools and drives every multi-step job one bounded
// slice per tick.
//
// Each exported operation loads the engine record, mutates it together with
// the keyed state, and saves it. Operations are not self-rolling-back; run
// them between State.Snapshot and RevertToSnapshot (the vm executor does)
// so a failed call leaves no trace.
package game

import (
	"fmt"

	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/events"
	"github.com/tolelom/purgegame/jackpot"
	"github.com/tolelom/purgegame/ledger"
	"github.com/tolelom/purgegame/pieces"
	"github.com/tolelom/purgegame/randomness"
	"github.com/tolelom/purgegame/tickets"
	"github.com/tolelom/purgegame/tokens"
)

// PieceLedger is the ownership ledger for pieces.
type PieceLedger interface {
	MintBatch(owner string, quantity uint64) (uint64, error)
	BurnOne(id uint64) error
	OwnerOf(id uint64) (string, error)
	Exists(id uint64) (bool, error)
	Transfer(from, to string, id uint64) error
}

// TokenLedger is the reward-token ledger.
type TokenLedger interface {
	Mint(to string, amount uint64) error
	Burn(from string, amount uint64) error
	Affiliate(owner string, cost uint64) error
}

// Env wires the engine to its state and collaborators. Clock, Pieces and
// Tokens default to the system clock and the state-backed ledgers.
type Env struct {
	State  core.State
	Clock  core.Clock
	RNG    randomness.Provider
	Pieces PieceLedger
	Tokens TokenLedger
	Events events.Sink
	Params Params
}

// Game runs operations against one Env.
type Game struct {
	env Env
}

// New returns a Game over env.
func New(env Env) *Game {
	if env.Clock == nil {
		env.Clock = core.SystemClock{}
	}
	if env.Pieces == nil {
		env.Pieces = pieces.New(env.State, env.Events)
	}
	if env.Tokens == nil {
		env.Tokens = tokens.New(env.State, env.Events, env.Params.AffiliateBps)
	}
	return &Game{env: env}
}

// Params returns the economics the game runs with.
func (g *Game) Params() Params { return g.env.Params }

// round is the working set of one operation.
type round struct {
	m    *core.Meta
	led  *ledger.Ledger
	jp   *jackpot.Engine
	book *tickets.Book
	now  int64
	day  int64
}

func (g *Game) begin() (*round, error) {
	m, err := g.env.State.GetMeta()
	if err != nil {
		return nil, fmt.Errorf("load meta: %w", err)
	}
	led := ledger.New(g.env.State, &m.Pools)
	now := g.env.Clock.Now().Unix()
	return &round{
		m:    m,
		led:  led,
		jp:   jackpot.New(g.env.State, led, g.env.Events),
		book: tickets.New(g.env.State),
		now:  now,
		day:  core.DayIndex(now, g.env.Params.DayOffset),
	}, nil
}

func (g *Game) save(r *round) error {
	if err := ledger.Check(r.m.Pools); err != nil {
		return err
	}
	return g.env.State.SetMeta(r.m)
}

func (g *Game) emit(typ events.EventType, level uint32, data map[string]any) {
	if g.env.Events != nil {
		g.env.Events.Emit(events.Event{Type: typ, Level: level, Data: data})
	}
}

// engage records that player interacted with the game today.
func (g *Game) engage(r *round, player string) error {
	return g.env.State.SetEngagedDay(player, r.day)
}

func guardf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, core.ErrGuard)...)
}

func notReadyf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, core.ErrNotReady)...)
}

// mutable rejects every state-changing call once the game has shut down.
func mutable(m *core.Meta) error {
	if m.Phase == core.PhaseShutdown {
		return core.ErrShutdown
	}
	return nil
}

// Package jackpot computes and pays the game's lotteries: the map jackpot
// at the purchase/burn boundary with its periodic sub-lotteries, the daily
// and early jackpots, and the round-end extermination payout.
//
// Every random choice is keccak256 of the current word and a fixed tag, so
// a payout depends only on committed state and the delivered word.
package jackpot

import (
	"encoding/binary"

	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/crypto"
	"github.com/tolelom/purgegame/events"
	"github.com/tolelom/purgegame/ledger"
	"github.com/tolelom/purgegame/tickets"
	"github.com/tolelom/purgegame/trait"
)

// Engine pays lottery winners out of the ledger pools.
type Engine struct {
	st   core.State
	book *tickets.Book
	led  *ledger.Ledger
	sink events.Sink
}

// New returns an Engine. sink may be nil.
func New(st core.State, led *ledger.Ledger, sink events.Sink) *Engine {
	return &Engine{st: st, book: tickets.New(st), led: led, sink: sink}
}

// Seed derives a per-use random value from w.
func Seed(w core.Word, tag string, args ...uint64) core.Word {
	parts := make([][]byte, 0, len(args)+2)
	parts = append(parts, w[:], []byte(tag))
	for _, a := range args {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], a)
		parts = append(parts, b[:])
	}
	return core.Word(crypto.Keccak256(parts...))
}

// Multiplier scales winner-group sizes with the position in the 100-level
// cycle: 1 for 0..33, 2 for 34..67, 3 for 68..99.
func Multiplier(level uint32) uint64 { return 1 + uint64(level%100)/34 }

// RandomTraits picks one trait per category.
func RandomTraits(w core.Word, tag string) [4]uint8 {
	var out [4]uint8
	for c := uint8(0); c < trait.Categories; c++ {
		s := Seed(w, tag, uint64(c))
		out[c] = trait.InCategory(c, uint8(s.Lane(0)%trait.PerCategory))
	}
	return out
}

var (
	groupShares = [4]uint64{40, 20, 20, 20} // percent of the pool
	groupSizes  = [4]uint64{1, 5, 10, 20}   // winners before the multiplier
)

// PayGroups splits pool over four winner groups. Group g draws from the
// trait of category (g+rot)%4, where rot comes from the word. Each group's
// share is divided evenly among the winners actually found; division dust
// and shares of empty lists stay in from. It returns the amount paid.
func (e *Engine) PayGroups(level uint32, traits [4]uint8, pool uint64, from ledger.Pool, w core.Word, kind string) (uint64, error) {
	mult := Multiplier(level)
	rot := Seed(w, kind+"/rotate").Lane(0) % 4
	var paid uint64
	for g := uint64(0); g < 4; g++ {
		tr := traits[(g+rot)%4]
		share := ledger.Percent(pool, groupShares[g])
		seed := Seed(w, kind, g)
		winners, err := e.book.SampleMany(level, tr, seed[:], groupSizes[g]*mult)
		if err != nil {
			return paid, err
		}
		if len(winners) == 0 {
			continue
		}
		per := share / uint64(len(winners))
		for _, p := range winners {
			if err := e.pay(from, p, per, level, kind); err != nil {
				return paid, err
			}
			paid += per
		}
	}
	return paid, nil
}

// DailyTraits picks, per category, the trait burned most often today. Ties
// go to the lowest id; a category with no burns gets a random trait.
func DailyTraits(burns *core.TraitCounts, w core.Word) [4]uint8 {
	fallback := RandomTraits(w, "daily/fallback")
	var out [4]uint8
	for c := uint8(0); c < trait.Categories; c++ {
		best, bestN := fallback[c], uint32(0)
		for i := uint8(0); i < trait.PerCategory; i++ {
			t := trait.InCategory(c, i)
			if burns[t] > bestN {
				best, bestN = t, burns[t]
			}
		}
		out[c] = best
	}
	return out
}

// DailyPool is the n-th daily jackpot (0-based): (3 + n/3) percent of the
// level snapshot, capped at what the live pool still holds.
func DailyPool(snapshot uint64, n uint32, live uint64) uint64 {
	p := ledger.Percent(snapshot, 3+uint64(n)/3)
	if p > live {
		return live
	}
	return p
}

// EarlyPool is the purchase-phase jackpot: 3 percent of the carryover, or 5
// on levels ending in 9.
func EarlyPool(carry uint64, level uint32) uint64 {
	if level%10 == 9 {
		return ledger.Percent(carry, 5)
	}
	return ledger.Percent(carry, 3)
}

func (e *Engine) pay(from ledger.Pool, player string, amount uint64, level uint32, kind string) error {
	if amount == 0 {
		return nil
	}
	if err := e.led.Pay(from, player, amount); err != nil {
		return err
	}
	if e.sink != nil {
		e.sink.Emit(events.Event{
			Type:  events.EventPayout,
			Level: level,
			Data:  map[string]any{"to": player, "amount": amount, "kind": kind, "pool": from.String()},
		})
	}
	return nil
}

func (e *Engine) emitJackpot(level uint32, kind string, pool, paid uint64) {
	if e.sink != nil {
		e.sink.Emit(events.Event{
			Type:  events.EventJackpotPaid,
			Level: level,
			Data:  map[string]any{"kind": kind, "pool": pool, "paid": paid},
		})
	}
}

// PayDaily runs the n-th daily jackpot of the level from the live pool.
func (e *Engine) PayDaily(m *core.Meta, w core.Word) (uint64, error) {
	traits := DailyTraits(&m.DailyBurns, w)
	pool := DailyPool(m.LevelSnapshot, m.DailyJackpots, m.Pools.Live)
	paid, err := e.PayGroups(m.Level, traits, pool, ledger.Live, w, "daily")
	if err != nil {
		return 0, err
	}
	e.emitJackpot(m.Level, "daily", pool, paid)
	return paid, nil
}

// PayEarly runs one purchase-phase jackpot from the carryover pool.
func (e *Engine) PayEarly(m *core.Meta, w core.Word) (uint64, error) {
	traits := RandomTraits(w, "early/traits")
	pool := EarlyPool(m.Pools.Carryover, m.Level)
	paid, err := e.PayGroups(m.Level, traits, pool, ledger.Carryover, w, "early")
	if err != nil {
		return 0, err
	}
	e.emitJackpot(m.Level, "early", pool, paid)
	return paid, nil
}

package game

import (
	"github.com/tolelom/purgegame/batch"
	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/events"
	"github.com/tolelom/purgegame/ledger"
)

// settlementTick initialises the game on its first tick, otherwise drives
// one slice of the previous level's settlement: participant payout, side
// distributions, then tally and ticket cleanup and the start of the next
// level.
func (g *Game) settlementTick(r *round, budget uint32) (*TickResult, error) {
	m := r.m
	if !m.Initialized {
		m.Initialized = true
		m.Level = 1
		m.NextPieceID = 1
		m.Pools.FundingTarget = g.env.Params.BootstrapTarget
		g.startLevel(r, 1)
		return &TickResult{Action: ActionInit, Done: true}, nil
	}

	if m.MintQueue.Pending() {
		done, err := g.mintSlice(r, budget)
		if err != nil {
			return nil, err
		}
		return &TickResult{Action: ActionMint, Done: done}, nil
	}

	s := &m.Settlement
	switch s.Stage {
	case core.StagePayout:
		done, err := r.jp.PayParticipants(s, budget)
		if err != nil {
			return nil, err
		}
		if done {
			r.led.MoveAll(ledger.Live, ledger.Carryover)
			s.Stage, s.Cursor = core.StageSide, 0
		}
		return &TickResult{Action: ActionSettlePayout, Done: done}, nil

	case core.StageSide:
		if err := r.jp.PaySide(m, m.RNG.Word); err != nil {
			return nil, err
		}
		s.Stage, s.Cursor = core.StageCleanup, 0
		return &TickResult{Action: ActionSettleSide, Done: true}, nil

	default:
		// Tally reset first, then the settled level's ticket lists.
		tally := uint64(len(m.DailyBurns))
		if s.Cursor < tally {
			c, done, err := batch.Step(core.Cursor{Offset: s.Cursor}, budget, batch.Span(tally), func(_, from, n uint64) error {
				for t := from; t < from+n; t++ {
					m.DailyBurns[t] = 0
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			if !done {
				s.Cursor = c.Offset
				return &TickResult{Action: ActionSettleCleanup}, nil
			}
			budget -= uint32(tally - s.Cursor)
			s.Cursor = tally
		}
		c, done, err := r.book.Prune(s.Level, s.Prune, budget)
		if err != nil {
			return nil, err
		}
		s.Prune = c
		if !done {
			return &TickResult{Action: ActionSettleCleanup}, nil
		}
		g.startLevel(r, m.Level+1)
		return &TickResult{Action: ActionSettleCleanup, Done: true}, nil
	}
}

// startLevel opens the purchase phase of level and clears per-level flags.
func (g *Game) startLevel(r *round, level uint32) {
	m := r.m
	m.Level = level
	m.Phase = core.PhasePurchase
	m.LevelStartedAt = r.now
	m.LevelSnapshot = 0
	m.EarlyMask, m.EarlyPaid = 0, 0
	m.MapJackpot = core.MapJackpotState{}
	m.DailyJackpots = 0
	m.DailyBurns = core.TraitCounts{}
	m.Leaders = [3]core.LeaderEntry{}
	m.Entrants = 0
	m.Settlement = core.SettlementState{}
	g.emit(events.EventLevelStarted, level, map[string]any{
		"funding_target": m.Pools.FundingTarget,
		"carryover":      m.Pools.Carryover,
	})
}

package game

import (
	"fmt"

	"github.com/tolelom/purgegame/batch"
	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/events"
	"github.com/tolelom/purgegame/jackpot"
	"github.com/tolelom/purgegame/ledger"
	"github.com/tolelom/purgegame/trait"
)

// Tick actions.
const (
	ActionShutdown       = "shutdown"
	ActionRNGRequested   = "rng_requested"
	ActionRNGRerequested = "rng_rerequested"
	ActionInit           = "init"
	ActionSettlePayout   = "settle_payout"
	ActionSettleSide     = "settle_side"
	ActionSettleCleanup  = "settle_cleanup"
	ActionMapSynthesis   = "map_synthesis"
	ActionFundingReached = "funding_reached"
	ActionMint           = "mint"
	ActionEarlyJackpot   = "early_jackpot"
	ActionIdle           = "idle"
	ActionSubLottery     = "sub_lottery"
	ActionMapJackpot     = "map_jackpot"
	ActionDailyJackpot   = "daily_jackpot"
	ActionForcedEnd      = "forced_end"
)

// TickResult reports the unit of work one tick performed.
type TickResult struct {
	Action string     `json:"action"`
	Level  uint32     `json:"level"`
	Phase  core.Phase `json:"phase"`
	Done   bool       `json:"done"` // the job this slice belongs to finished
	Reward uint64     `json:"reward"`
}

// DailyJackpotLimit is how many daily jackpots a level runs before it is
// ended without an exterminator.
func DailyJackpotLimit(level uint32) uint32 {
	if level%100 == 0 {
		return 14
	}
	return 15
}

// AdvanceTick performs exactly one bounded unit of work.
//
// budget == 0 is the normal path: the default budget applies, caller must
// have purchased or burned during the current day before phase work runs,
// and successful phase work earns caller the tick reward. Randomness
// requests and not-ready answers are never gated. budget > 0 is the unstuck
// path: the engagement gate is skipped, the given budget is used and nothing
// is paid.
func (g *Game) AdvanceTick(caller string, budget uint32) (*TickResult, error) {
	r, err := g.begin()
	if err != nil {
		return nil, err
	}
	m := r.m
	p := g.env.Params
	if err := mutable(m); err != nil {
		return nil, err
	}

	normal := budget == 0
	if normal {
		budget = p.DefaultBudget
	}

	active := m.Phase == core.PhasePurchase || m.Phase == core.PhaseBurn
	if m.Initialized && active && r.now-m.LevelStartedAt > p.LivenessSeconds {
		m.Phase = core.PhaseShutdown
		if err := g.save(r); err != nil {
			return nil, err
		}
		g.emit(events.EventShutdown, m.Level, map[string]any{"level_started_at": m.LevelStartedAt})
		return &TickResult{Action: ActionShutdown, Level: m.Level, Phase: m.Phase, Done: true}, nil
	}

	if m.RNG.Locked() {
		w, ok := g.env.RNG.PullFulfilledWord(m.RNG.RequestID)
		switch {
		case ok:
			m.RNG.Fulfilled = true
			m.RNG.Word = w
			g.emit(events.EventRNGFulfilled, m.Level, map[string]any{"request_id": m.RNG.RequestID, "word": w.Hex()})
		case r.now-m.RNG.RequestedAt >= p.RNGStallSeconds:
			return g.request(r, ActionRNGRerequested)
		default:
			return nil, notReadyf("randomness request %s in flight", m.RNG.RequestID)
		}
	}

	if !m.RNG.Requested || (m.RNG.Consumed && r.day > m.RNG.Day) {
		return g.request(r, ActionRNGRequested)
	}

	if m.Phase != core.PhaseSettlement && m.RNG.Consumed {
		return nil, notReadyf("work for day %d already done", m.RNG.Day)
	}

	// Only phase work is gated, so callers see not-ready before engagement.
	if normal && m.Initialized && active {
		d, err := g.env.State.GetEngagedDay(caller)
		if err != nil {
			return nil, err
		}
		if d != r.day {
			return nil, fmt.Errorf("caller has not played today: %w", core.ErrEngagement)
		}
	}

	var res *TickResult
	switch m.Phase {
	case core.PhaseSettlement:
		res, err = g.settlementTick(r, budget)
	case core.PhasePurchase:
		res, err = g.purchaseTick(r, budget)
	case core.PhaseBurn:
		res, err = g.burnTick(r, budget)
	default:
		err = fmt.Errorf("unknown phase %s", m.Phase)
	}
	if err != nil {
		return nil, err
	}

	if normal && res.Action != ActionIdle && p.TickReward > 0 {
		if err := g.env.Tokens.Mint(caller, p.TickReward); err != nil {
			return nil, err
		}
		res.Reward = p.TickReward
	}
	if err := g.save(r); err != nil {
		return nil, err
	}
	res.Level, res.Phase = m.Level, m.Phase
	g.emit(events.EventTick, m.Level, map[string]any{"action": res.Action, "caller": caller, "done": res.Done})
	return res, nil
}

// request opens a new randomness session. The previous word is dropped.
func (g *Game) request(r *round, action string) (*TickResult, error) {
	m := r.m
	id, err := g.env.RNG.RequestRandomWord(m.Phase == core.PhaseBurn)
	if err != nil {
		return nil, fmt.Errorf("request randomness: %w", err)
	}
	m.RNG = core.RNGSession{
		RequestID:   id,
		Requested:   true,
		RequestedAt: r.now,
		Day:         m.RNG.Day,
	}
	if err := g.save(r); err != nil {
		return nil, err
	}
	g.emit(events.EventRNGRequested, m.Level, map[string]any{"request_id": id, "action": action})
	return &TickResult{Action: action, Level: m.Level, Phase: m.Phase}, nil
}

// consume marks the day's word as used.
func consume(r *round) {
	r.m.RNG.Consumed = true
	r.m.RNG.Day = r.day
}

// ---- purchase phase ----

var earlyThresholds = [3]uint64{25, 50, 75}

// updateEarlyMask sets one bit per threshold the next-round accumulator has
// reached, as a percentage of the funding target. Bits are never cleared
// within a level.
func updateEarlyMask(m *core.Meta) {
	if m.Pools.FundingTarget == 0 {
		return
	}
	for i, pct := range earlyThresholds {
		if m.Pools.NextRound*100 >= m.Pools.FundingTarget*pct {
			m.EarlyMask |= 1 << i
		}
	}
}

func (g *Game) purchaseTick(r *round, budget uint32) (*TickResult, error) {
	m := r.m
	updateEarlyMask(m)

	if m.MapQueue.Pending() {
		done, err := g.mapSlice(r, budget)
		if err != nil {
			return nil, err
		}
		return &TickResult{Action: ActionMapSynthesis, Done: done}, nil
	}

	if m.Pools.NextRound >= m.Pools.FundingTarget {
		amt := r.led.MoveAll(ledger.NextRound, ledger.Live)
		m.Phase = core.PhaseBurn
		m.MapJackpot = core.MapJackpotState{Pending: true}
		g.emit(events.EventFundingReached, m.Level, map[string]any{"live": amt, "target": m.Pools.FundingTarget})
		return &TickResult{Action: ActionFundingReached, Done: true}, nil
	}

	if m.MintQueue.Pending() {
		done, err := g.mintSlice(r, budget)
		if err != nil {
			return nil, err
		}
		return &TickResult{Action: ActionMint, Done: done}, nil
	}

	if pending := m.EarlyMask &^ m.EarlyPaid; pending != 0 {
		bit := pending & -pending
		if _, err := r.jp.PayEarly(m, m.RNG.Word); err != nil {
			return nil, err
		}
		m.EarlyPaid |= bit
		consume(r)
		return &TickResult{Action: ActionEarlyJackpot, Done: true}, nil
	}

	consume(r)
	return &TickResult{Action: ActionIdle, Done: true}, nil
}

// mintSlice hands up to budget queued pieces to the piece ledger.
func (g *Game) mintSlice(r *round, budget uint32) (bool, error) {
	m := r.m
	q := batch.NewStateQueue(g.env.State, core.QueueMint, m.MintQueue.Len)
	c, done, err := batch.Step(m.MintQueue.Cursor, budget, q, func(i, from, n uint64) error {
		e, err := q.Entry(i)
		if err != nil {
			return err
		}
		first, err := g.env.Pieces.MintBatch(e.Owner, n)
		if err != nil {
			return err
		}
		if want := e.FirstID + from; first != want {
			return fmt.Errorf("mint queue out of step: ledger issued %d, queue reserved %d", first, want)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	m.MintQueue.Cursor = c
	return done, nil
}

// mapSlice synthesises tickets for up to budget queued MAP units. Unit u
// gets the traits of trait.Derive(u, word), one ticket each.
func (g *Game) mapSlice(r *round, budget uint32) (bool, error) {
	m := r.m
	q := batch.NewStateQueue(g.env.State, core.QueueMap, m.MapQueue.Len)
	c, done, err := batch.Step(m.MapQueue.Cursor, budget, q, func(i, from, n uint64) error {
		e, err := q.Entry(i)
		if err != nil {
			return err
		}
		for u := from; u < from+n; u++ {
			quad := trait.Derive(e.FirstID+u, m.RNG.Word)
			if err := r.book.AppendAll(m.Level, quad.Traits(), e.Owner); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	m.MapQueue.Cursor = c
	return done, nil
}

// ---- burn phase ----

func (g *Game) burnTick(r *round, budget uint32) (*TickResult, error) {
	m := r.m

	if m.MintQueue.Pending() {
		done, err := g.mintSlice(r, budget)
		if err != nil {
			return nil, err
		}
		return &TickResult{Action: ActionMint, Done: done}, nil
	}

	if m.MapJackpot.Pending {
		return g.mapJackpotTick(r, budget)
	}

	if _, err := r.jp.PayDaily(m, m.RNG.Word); err != nil {
		return nil, err
	}
	m.DailyJackpots++
	m.DailyBurns = core.TraitCounts{}
	consume(r)

	if m.DailyJackpots >= DailyJackpotLimit(m.Level) {
		if err := g.endRound(r, 0, "", false); err != nil {
			return nil, err
		}
		return &TickResult{Action: ActionForcedEnd, Done: true}, nil
	}
	return &TickResult{Action: ActionDailyJackpot, Done: true}, nil
}

func (g *Game) mapJackpotTick(r *round, budget uint32) (*TickResult, error) {
	m := r.m
	mj := &m.MapJackpot
	if mj.Kind == core.SubLotteryNone {
		if sl, ok := jackpot.NextSubLottery(m.Level, mj); ok {
			jackpot.StartSubLottery(mj, sl, m.Pools.Carryover)
		}
	}
	if mj.Kind != core.SubLotteryNone {
		done, err := r.jp.SubLotterySlice(m.Level, m.RNG.Word, mj, budget)
		if err != nil {
			return nil, err
		}
		return &TickResult{Action: ActionSubLottery, Done: done}, nil
	}

	sp := jackpot.SaveParams{RareRoll: g.env.Params.RareSaveRoll, RarePercent: g.env.Params.RareSavePercent}
	if _, _, err := r.jp.RunMap(m, m.RNG.Word, sp); err != nil {
		return nil, err
	}
	mj.Pending = false
	consume(r)
	return &TickResult{Action: ActionMapJackpot, Done: true}, nil
}

// endRound closes the level. With hasTrait the extermination split is set
// aside now and paid during settlement; otherwise the live pool simply
// drains to the carryover.
func (g *Game) endRound(r *round, tr uint8, player string, hasTrait bool) error {
	m := r.m
	var res core.Extermination
	if hasTrait {
		n, err := r.book.Len(m.Level, tr)
		if err != nil {
			return err
		}
		repeat := m.PrevHasTrait && m.PrevTrait == tr
		res = jackpot.Exterminate(m.Pools.Live, m.Level, tr, player, repeat, n)
		if err := r.led.Move(ledger.Live, ledger.Reserve, jackpot.Reserved(res)); err != nil {
			return err
		}
	}
	m.PrevHasTrait, m.PrevTrait = hasTrait, tr
	m.Settlement = core.SettlementState{Stage: core.StagePayout, Level: m.Level, Result: res}
	m.Phase = core.PhaseSettlement
	g.emit(events.EventExtermination, m.Level, map[string]any{
		"trait":          tr,
		"has_trait":      hasTrait,
		"exterminator":   player,
		"pay_per_ticket": res.PayPerTicket,
		"tickets":        res.TicketCount,
	})
	return nil
}

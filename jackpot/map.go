package jackpot

import (
	"github.com/tolelom/purgegame/batch"
	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/ledger"
	"github.com/tolelom/purgegame/trait"
)

// SubLottery is a periodic carryover-funded lottery run ahead of the map
// jackpot.
type SubLottery struct {
	Kind    uint8
	Percent uint64 // of the carryover pool
	Winners uint64
}

// SubLotteries returns the sub-lotteries due at level, in run order.
func SubLotteries(level uint32) []SubLottery {
	var out []SubLottery
	if level%20 == 0 {
		out = append(out, SubLottery{Kind: core.SubLotteryTwenty, Percent: 10, Winners: 100})
	}
	if level%5 == 0 && level >= 25 && level%100 != 95 {
		out = append(out, SubLottery{Kind: core.SubLotteryFifth, Percent: 15, Winners: 50})
	}
	return out
}

// NextSubLottery returns the first due sub-lottery not yet marked done.
func NextSubLottery(level uint32, mj *core.MapJackpotState) (SubLottery, bool) {
	for _, sl := range SubLotteries(level) {
		if mj.Done&(1<<sl.Kind) == 0 {
			return sl, true
		}
	}
	return SubLottery{}, false
}

// StartSubLottery fixes the per-winner amount from the current carryover.
func StartSubLottery(mj *core.MapJackpotState, sl SubLottery, carry uint64) {
	mj.Kind = sl.Kind
	mj.Cursor = 0
	mj.Winners = sl.Winners
	mj.PerWinner = ledger.Percent(carry, sl.Percent) / sl.Winners
}

// SubLotterySlice pays up to budget winners of the running sub-lottery.
// Winner i draws a trait from the whole space and a ticket from that
// trait's list; an empty list forfeits the draw and the funds stay in the
// carryover. It reports whether the sub-lottery finished.
func (e *Engine) SubLotterySlice(level uint32, w core.Word, mj *core.MapJackpotState, budget uint32) (bool, error) {
	kind := mj.Kind
	c, done, err := batch.Step(core.Cursor{Offset: mj.Cursor}, budget, batch.Span(mj.Winners), func(_, from, n uint64) error {
		for i := from; i < from+n; i++ {
			s := Seed(w, "sub", uint64(kind), i)
			p, ok, err := e.book.Sample(level, uint8(s.Lane(0)), s.Lane(1))
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := e.pay(ledger.Carryover, p, mj.PerWinner, level, "sub_lottery"); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if !done {
		mj.Cursor = c.Offset
		return false, nil
	}
	mj.Done |= 1 << kind
	mj.Kind = core.SubLotteryNone
	mj.Cursor = 0
	mj.Winners = 0
	mj.PerWinner = 0
	return true, nil
}

// SaveParams tunes the rare branch of the save percentage.
type SaveParams struct {
	RareRoll    uint64 // rolls below this out of 1e6 take the rare branch
	RarePercent uint64
}

// SavePercent is the share of carryover plus live pool retained as the next
// carryover when funding finalises.
func SavePercent(level uint32, w core.Word, p SaveParams) uint64 {
	pos := uint64(level % 100)
	if pos == 0 {
		return 100
	}
	var save uint64
	if w.Lane(3)%1_000_000 < p.RareRoll {
		save = p.RarePercent
	} else {
		save = 20 + pos/5 + w.Lane(2)%(10+pos/10)
	}
	if level%10 == 9 {
		save += 5
	}
	if save > 100 {
		save = 100
	}
	return save
}

// Split records how funding finalisation divided the pools.
type Split struct {
	SavePercent uint64 `json:"save_percent"`
	PrevLive    uint64 `json:"prev_live"`
	Carryover   uint64 `json:"carryover"`
	Effective   uint64 `json:"effective"`
}

// FinalizeFunding merges carryover and live, keeps SavePercent of it as
// carryover and leaves the rest live. The funding target of the next level
// becomes the live pool as it stood before the split, or the new carryover
// on a 100-level boundary.
func FinalizeFunding(m *core.Meta, led *ledger.Ledger, save uint64) Split {
	prev := m.Pools.Live
	led.MoveAll(ledger.Carryover, ledger.Live)
	total := m.Pools.Live
	carry := ledger.Percent(total, save)
	// carry <= total, so this cannot fail.
	_ = led.Move(ledger.Live, ledger.Carryover, carry)

	if m.Level%100 == 0 {
		m.Pools.FundingTarget = m.Pools.Carryover
	} else {
		m.Pools.FundingTarget = prev
	}
	m.LevelSnapshot = m.Pools.Live
	return Split{SavePercent: save, PrevLive: prev, Carryover: carry, Effective: m.Pools.Live}
}

// Bucket permille of the effective pool.
const (
	bucketFull        = 20
	bucketCatSingle   = 15
	bucketCatMany     = 10
	bucketManyWinners = 10
)

// PayMapBuckets pays the nine map-jackpot buckets from the live pool: one
// single winner drawn from the whole trait space, then per category one
// single winner and one group of 10×multiplier winners. Amounts double on
// levels that are multiples of 10. Unpaid amounts stay live.
func (e *Engine) PayMapBuckets(level uint32, w core.Word, effective uint64) (uint64, error) {
	double := uint64(1)
	if level%10 == 0 {
		double = 2
	}
	var paid uint64

	single := func(tr uint8, s core.Word, amount uint64) error {
		p, ok, err := e.book.Sample(level, tr, s.Lane(1))
		if err != nil || !ok {
			return err
		}
		if err := e.pay(ledger.Live, p, amount, level, "map"); err != nil {
			return err
		}
		paid += amount
		return nil
	}

	s := Seed(w, "map", 0)
	if err := single(uint8(s.Lane(0)), s, ledger.Permille(effective, bucketFull*double)); err != nil {
		return paid, err
	}
	for c := uint8(0); c < trait.Categories; c++ {
		s := Seed(w, "map", 1+2*uint64(c))
		tr := trait.InCategory(c, uint8(s.Lane(0)%trait.PerCategory))
		if err := single(tr, s, ledger.Permille(effective, bucketCatSingle*double)); err != nil {
			return paid, err
		}

		s = Seed(w, "map", 2+2*uint64(c))
		tr = trait.InCategory(c, uint8(s.Lane(0)%trait.PerCategory))
		winners, err := e.book.SampleMany(level, tr, s[:], bucketManyWinners*Multiplier(level))
		if err != nil {
			return paid, err
		}
		if len(winners) == 0 {
			continue
		}
		per := ledger.Permille(effective, bucketCatMany*double) / uint64(len(winners))
		for _, p := range winners {
			if err := e.pay(ledger.Live, p, per, level, "map"); err != nil {
				return paid, err
			}
			paid += per
		}
	}
	return paid, nil
}

// RunMap finalises funding and pays the buckets. The sub-lotteries must
// have completed.
func (e *Engine) RunMap(m *core.Meta, w core.Word, sp SaveParams) (Split, uint64, error) {
	split := FinalizeFunding(m, e.led, SavePercent(m.Level, w, sp))
	paid, err := e.PayMapBuckets(m.Level, w, split.Effective)
	if err != nil {
		return split, 0, err
	}
	e.emitJackpot(m.Level, "map", split.Effective, paid)
	return split, paid, nil
}

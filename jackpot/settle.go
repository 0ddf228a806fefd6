package jackpot

import (
	"github.com/tolelom/purgegame/batch"
	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/ledger"
)

// Extermination split, percent of the live pool at round end.
const (
	AffiliatePercent    = 10
	TrophyPercent       = 2
	ExterminatorPercent = 20
	ExterminatorBonus   = 10 // extra on levels that are multiples of 10
)

// Exterminate computes the round-end split for trait exterminated by
// player. When the same trait ended the previous level the exterminator
// share is halved; the withheld half stays live and drains to the
// carryover after the participant payout.
func Exterminate(live uint64, level uint32, tr uint8, player string, repeat bool, ticketCount uint64) core.Extermination {
	aff := ledger.Percent(live, AffiliatePercent)
	trophy := ledger.Percent(live, TrophyPercent)
	pct := uint64(ExterminatorPercent)
	if level%10 == 0 {
		pct += ExterminatorBonus
	}
	ex := ledger.Percent(live, pct)
	participants := live - aff - trophy - ex
	if repeat {
		ex /= 2
	}
	var ppt uint64
	if ticketCount > 0 {
		ppt = participants / ticketCount
	}
	return core.Extermination{
		HasTrait:          true,
		Trait:             tr,
		Exterminator:      player,
		TicketCount:       ticketCount,
		PayPerTicket:      ppt,
		ExterminatorShare: ex,
		AffiliateShare:    aff,
		TrophyShare:       trophy,
	}
}

// Reserved is the part of the live pool set aside for side distributions.
func Reserved(x core.Extermination) uint64 {
	return x.AffiliateShare + x.TrophyShare + x.ExterminatorShare
}

// PayParticipants credits PayPerTicket to every holder of the exterminated
// trait's tickets, up to budget tickets per call, one credit per run of
// identical consecutive holders. It reports whether the list is done.
func (e *Engine) PayParticipants(s *core.SettlementState, budget uint32) (bool, error) {
	res := s.Result
	if !res.HasTrait || res.PayPerTicket == 0 || res.TicketCount == 0 {
		return true, nil
	}
	c, done, err := batch.Step(core.Cursor{Offset: s.Cursor}, budget, batch.Span(res.TicketCount), func(_, from, n uint64) error {
		_, err := e.book.Walk(s.Level, res.Trait, from, n, func(p string, run uint64) error {
			return e.pay(ledger.Live, p, res.PayPerTicket*run, s.Level, "participant")
		})
		return err
	})
	if err != nil {
		return false, err
	}
	if done {
		s.Cursor = res.TicketCount
	} else {
		s.Cursor = c.Offset
	}
	return done, nil
}

var leaderShares = [3]uint64{50, 25, 15} // percent of the affiliate share

// PaySide distributes the reserve: affiliate leaderboard, one random
// entrant, two random past exterminators and the exterminator. On a
// 100-level boundary the exterminator also takes the whole carryover.
// Whatever could not be paid moves to the carryover.
func (e *Engine) PaySide(m *core.Meta, w core.Word) error {
	s := &m.Settlement
	res := s.Result
	level := s.Level

	aff := res.AffiliateShare
	rest := aff
	for i, l := range m.Leaders {
		amt := ledger.Percent(aff, leaderShares[i])
		rest -= amt
		if l.Player == "" {
			continue
		}
		if err := e.pay(ledger.Reserve, l.Player, amt, level, "affiliate"); err != nil {
			return err
		}
	}
	if m.Entrants > 0 {
		idx := Seed(w, "entrant", uint64(level)).Lane(0) % m.Entrants
		p, err := e.st.GetEntrant(level, idx)
		if err != nil {
			return err
		}
		if err := e.pay(ledger.Reserve, p, rest, level, "affiliate_draw"); err != nil {
			return err
		}
	}

	if m.Trophies > 0 {
		half := res.TrophyShare / 2
		for k := uint64(0); k < 2; k++ {
			idx := Seed(w, "trophy", uint64(level), k).Lane(0) % m.Trophies
			p, err := e.st.GetTrophy(idx)
			if err != nil {
				return err
			}
			if err := e.pay(ledger.Reserve, p, half, level, "trophy"); err != nil {
				return err
			}
		}
	}

	if res.HasTrait {
		if err := e.pay(ledger.Reserve, res.Exterminator, res.ExterminatorShare, level, "exterminator"); err != nil {
			return err
		}
		if level%100 == 0 {
			if err := e.pay(ledger.Carryover, res.Exterminator, m.Pools.Carryover, level, "exterminator_carryover"); err != nil {
				return err
			}
		}
		if err := e.st.SetTrophy(m.Trophies, res.Exterminator); err != nil {
			return err
		}
		m.Trophies++
	}

	e.led.MoveAll(ledger.Reserve, ledger.Carryover)
	return nil
}

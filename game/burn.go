package game

import (
	"errors"

	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/events"
	"github.com/tolelom/purgegame/trait"
)

// BurnResult describes a processed burn list.
type BurnResult struct {
	Burned       int    `json:"burned"`
	Tickets      int    `json:"tickets"`
	Reward       uint64 `json:"reward"`
	Exterminated bool   `json:"exterminated"`
	Trait        uint8  `json:"trait,omitempty"`
}

// Burn destroys the listed pieces of the current level. Each piece adds one
// ticket for each of its four traits and lowers the level's remaining
// counts. The first trait whose count reaches zero ends the round with
// player as exterminator, once the whole list has been processed.
func (g *Game) Burn(player string, ids []uint64) (*BurnResult, error) {
	r, err := g.begin()
	if err != nil {
		return nil, err
	}
	m := r.m
	p := g.env.Params
	if err := mutable(m); err != nil {
		return nil, err
	}
	if m.Phase != core.PhaseBurn {
		return nil, guardf("burn closed in %s phase", m.Phase)
	}
	if m.RNG.Locked() {
		return nil, notReadyf("randomness request %s in flight", m.RNG.RequestID)
	}
	if m.MapJackpot.Pending {
		return nil, notReadyf("map jackpot not yet paid")
	}
	if len(ids) == 0 || len(ids) > p.MaxBurn {
		return nil, guardf("burn list of %d pieces out of range 1..%d", len(ids), p.MaxBurn)
	}

	st := g.env.State
	counts, err := st.GetTraitCounts(m.Level)
	if err != nil {
		return nil, err
	}
	seen := make(map[uint64]struct{}, len(ids))
	var (
		ended bool
		endTr uint8
	)
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, guardf("piece %d listed twice", id)
		}
		seen[id] = struct{}{}

		owner, err := g.env.Pieces.OwnerOf(id)
		if errors.Is(err, core.ErrNotFound) {
			return nil, guardf("piece %d not minted or already burned", id)
		}
		if err != nil {
			return nil, err
		}
		if owner != player {
			return nil, guardf("piece %d not owned by caller", id)
		}
		pc, err := st.GetPiece(id)
		if err != nil {
			return nil, err
		}
		if pc.Level != m.Level {
			return nil, guardf("piece %d belongs to level %d", id, pc.Level)
		}
		if err := g.env.Pieces.BurnOne(id); err != nil {
			return nil, err
		}
		pc.Burned = true
		if err := st.SetPiece(pc); err != nil {
			return nil, err
		}

		traits := trait.Unpack(pc.Traits).Traits()
		if err := r.book.AppendAll(m.Level, traits, player); err != nil {
			return nil, err
		}
		for _, t := range traits {
			m.DailyBurns[t]++
			if counts[t] == 0 {
				return nil, guardf("trait %d count underflow on piece %d", t, id)
			}
			counts[t]--
			if counts[t] == 0 && !ended {
				ended, endTr = true, t
			}
		}
	}
	if err := st.SetTraitCounts(m.Level, counts); err != nil {
		return nil, err
	}
	if err := g.engage(r, player); err != nil {
		return nil, err
	}

	res := &BurnResult{Burned: len(ids), Tickets: 4 * len(ids)}
	if reward := p.BurnReward * uint64(len(ids)); reward > 0 {
		if err := g.env.Tokens.Mint(player, reward); err != nil {
			return nil, err
		}
		res.Reward = reward
	}
	level := m.Level
	if ended {
		if err := g.endRound(r, endTr, player, true); err != nil {
			return nil, err
		}
		res.Exterminated, res.Trait = true, endTr
	}
	if err := g.save(r); err != nil {
		return nil, err
	}
	g.emit(events.EventBurn, level, map[string]any{
		"player": player, "pieces": len(ids), "exterminated": ended,
	})
	return res, nil
}

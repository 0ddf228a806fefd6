package game

import (
	"errors"
	"sort"

	"github.com/tolelom/purgegame/batch"
	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/events"
	"github.com/tolelom/purgegame/ledger"
	"github.com/tolelom/purgegame/trait"
)

// MaxCodeLen bounds referral codes.
const MaxCodeLen = 32

// PurchaseResult describes a queued purchase.
type PurchaseResult struct {
	FirstID  uint64 `json:"first_id"` // first piece id, or first MAP unit index
	Quantity uint64 `json:"quantity"`
	Cost     uint64 `json:"cost"` // native units, or tokens when PaidAlt
	PaidAlt  bool   `json:"paid_alt"`
}

func (g *Game) purchaseGuard(m *core.Meta, qty uint64) error {
	if err := mutable(m); err != nil {
		return err
	}
	if m.Phase != core.PhasePurchase {
		return guardf("purchase closed in %s phase", m.Phase)
	}
	if qty == 0 || qty > g.env.Params.MaxPurchase {
		return guardf("quantity %d out of range 1..%d", qty, g.env.Params.MaxPurchase)
	}
	if m.RNG.Fulfilled && !m.RNG.Consumed && m.MapQueue.Pending() {
		return notReadyf("map synthesis pending on the current word")
	}
	return nil
}

// collect takes payment: native value must match cost exactly and lands
// in the next-round accumulator; token payments are burned and credit no
// pool.
func (g *Game) collect(r *round, buyer string, payAlt bool, cost, tokenCost, value uint64) (uint64, error) {
	if payAlt {
		if value != 0 {
			return 0, guardf("native value %d attached to token payment", value)
		}
		if err := g.env.Tokens.Burn(buyer, tokenCost); err != nil {
			return 0, err
		}
		return tokenCost, nil
	}
	if value != cost {
		return 0, guardf("payment %d does not match cost %d", value, cost)
	}
	r.led.Deposit(ledger.NextRound, value)
	return value, nil
}

// Purchase buys qty pieces at the current level's price. Traits are fixed
// now from (id, current word); the pieces are minted later by the batch
// scheduler. No tickets are created.
func (g *Game) Purchase(buyer string, qty uint64, payAlt bool, referral string, value uint64) (*PurchaseResult, error) {
	r, err := g.begin()
	if err != nil {
		return nil, err
	}
	m := r.m
	if err := g.purchaseGuard(m, qty); err != nil {
		return nil, err
	}
	p := g.env.Params
	cost := qty * p.PriceAt(m.Level)
	paid, err := g.collect(r, buyer, payAlt, cost, qty*p.TokenUnitPrice, value)
	if err != nil {
		return nil, err
	}

	st := g.env.State
	counts, err := st.GetTraitCounts(m.Level)
	if err != nil {
		return nil, err
	}
	first := m.NextPieceID
	for id := first; id < first+qty; id++ {
		q := trait.Derive(id, m.RNG.Word)
		if err := st.SetPiece(&core.Piece{ID: id, Level: m.Level, Traits: q.Pack()}); err != nil {
			return nil, err
		}
		for _, t := range q.Traits() {
			counts[t]++
		}
	}
	if err := st.SetTraitCounts(m.Level, counts); err != nil {
		return nil, err
	}
	m.NextPieceID += qty

	q := batch.NewStateQueue(st, core.QueueMint, m.MintQueue.Len)
	if m.MintQueue.Len, err = q.Push(&core.QueueEntry{Owner: buyer, FirstID: first, Quantity: qty}); err != nil {
		return nil, err
	}

	if err := g.creditReferral(r, buyer, referral, cost); err != nil {
		return nil, err
	}
	if err := g.engage(r, buyer); err != nil {
		return nil, err
	}
	if err := g.save(r); err != nil {
		return nil, err
	}
	g.emit(events.EventPurchase, m.Level, map[string]any{
		"buyer": buyer, "first_id": first, "quantity": qty, "cost": paid, "alt": payAlt,
	})
	return &PurchaseResult{FirstID: first, Quantity: qty, Cost: paid, PaidAlt: payAlt}, nil
}

// PurchaseMap buys qty MAP units at a quarter of the piece price. Each unit
// later synthesises one ticket in each trait category.
func (g *Game) PurchaseMap(buyer string, qty uint64, payAlt bool, referral string, value uint64) (*PurchaseResult, error) {
	r, err := g.begin()
	if err != nil {
		return nil, err
	}
	m := r.m
	if err := g.purchaseGuard(m, qty); err != nil {
		return nil, err
	}
	p := g.env.Params
	cost := qty * p.PriceAt(m.Level) / 4
	paid, err := g.collect(r, buyer, payAlt, cost, qty*p.TokenUnitPrice/4, value)
	if err != nil {
		return nil, err
	}

	first := m.MapUnits
	m.MapUnits += qty
	q := batch.NewStateQueue(g.env.State, core.QueueMap, m.MapQueue.Len)
	if m.MapQueue.Len, err = q.Push(&core.QueueEntry{Owner: buyer, FirstID: first, Quantity: qty}); err != nil {
		return nil, err
	}

	if err := g.creditReferral(r, buyer, referral, cost); err != nil {
		return nil, err
	}
	if err := g.engage(r, buyer); err != nil {
		return nil, err
	}
	if err := g.save(r); err != nil {
		return nil, err
	}
	g.emit(events.EventMapPurchase, m.Level, map[string]any{
		"buyer": buyer, "first_unit": first, "quantity": qty, "cost": paid, "alt": payAlt,
	})
	return &PurchaseResult{FirstID: first, Quantity: qty, Cost: paid, PaidAlt: payAlt}, nil
}

// creditReferral books cost as referral volume for the code's owner in the
// current level, keeps the top-three leaderboard and pays the affiliate
// token reward.
func (g *Game) creditReferral(r *round, buyer, code string, cost uint64) error {
	if code == "" {
		return nil
	}
	st := g.env.State
	m := r.m
	owner, err := st.GetReferralCode(code)
	if errors.Is(err, core.ErrNotFound) {
		return guardf("unknown referral code %q", code)
	}
	if err != nil {
		return err
	}
	if owner == buyer {
		return guardf("self referral")
	}
	vol, err := st.GetReferralVolume(m.Level, owner)
	if err != nil {
		return err
	}
	if vol == 0 {
		if err := st.SetEntrant(m.Level, m.Entrants, owner); err != nil {
			return err
		}
		m.Entrants++
	}
	vol += cost
	if err := st.SetReferralVolume(m.Level, owner, vol); err != nil {
		return err
	}
	updateLeaders(&m.Leaders, owner, vol)
	return g.env.Tokens.Affiliate(owner, cost)
}

// updateLeaders keeps the three highest volumes, earlier entries first on
// ties.
func updateLeaders(l *[3]core.LeaderEntry, player string, vol uint64) {
	found := false
	for i := range l {
		if l[i].Player == player {
			l[i].Volume = vol
			found = true
			break
		}
	}
	if !found {
		last := &l[len(l)-1]
		if last.Player != "" && vol <= last.Volume {
			return
		}
		*last = core.LeaderEntry{Player: player, Volume: vol}
	}
	sort.SliceStable(l[:], func(i, j int) bool { return l[i].Volume > l[j].Volume })
}

// RegisterReferralCode binds code to player. Codes are first come, first
// served.
func (g *Game) RegisterReferralCode(player, code string) error {
	r, err := g.begin()
	if err != nil {
		return err
	}
	if err := mutable(r.m); err != nil {
		return err
	}
	if code == "" || len(code) > MaxCodeLen {
		return guardf("referral code must be 1..%d bytes", MaxCodeLen)
	}
	_, err = g.env.State.GetReferralCode(code)
	if err == nil {
		return guardf("referral code %q taken", code)
	}
	if !errors.Is(err, core.ErrNotFound) {
		return err
	}
	return g.env.State.SetReferralCode(code, player)
}

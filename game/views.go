package game

import (
	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/tickets"
	"github.com/tolelom/purgegame/trait"
)

// Status is the read-only summary of the engine.
type Status struct {
	Initialized   bool       `json:"initialized"`
	Level         uint32     `json:"level"`
	Phase         core.Phase `json:"phase"`
	PhaseName     string     `json:"phase_name"`
	Pools         core.Pools `json:"pools"`
	Price         uint64     `json:"price"`
	RNGRequested  bool       `json:"rng_requested"`
	RNGFulfilled  bool       `json:"rng_fulfilled"`
	RNGConsumed   bool       `json:"rng_consumed"`
	DailyJackpots uint32     `json:"daily_jackpots"`
	MintPending   bool       `json:"mint_pending"`
	MapPending    bool       `json:"map_pending"`
	NextPieceID   uint64     `json:"next_piece_id"`
}

// Status returns the current engine status.
func (g *Game) Status() (*Status, error) {
	m, err := g.env.State.GetMeta()
	if err != nil {
		return nil, err
	}
	return &Status{
		Initialized:   m.Initialized,
		Level:         m.Level,
		Phase:         m.Phase,
		PhaseName:     m.Phase.String(),
		Pools:         m.Pools,
		Price:         g.env.Params.PriceAt(m.Level),
		RNGRequested:  m.RNG.Requested,
		RNGFulfilled:  m.RNG.Fulfilled,
		RNGConsumed:   m.RNG.Consumed,
		DailyJackpots: m.DailyJackpots,
		MintPending:   m.MintQueue.Pending(),
		MapPending:    m.MapQueue.Pending(),
		NextPieceID:   m.NextPieceID,
	}, nil
}

// Winnings returns player's claimable balance, sentinel included.
func (g *Game) Winnings(player string) (uint64, error) {
	return g.env.State.GetClaimable(player)
}

// TraitRemaining is the number of unburned pieces of level carrying t.
func (g *Game) TraitRemaining(level uint32, t uint8) (uint32, error) {
	c, err := g.env.State.GetTraitCounts(level)
	if err != nil {
		return 0, err
	}
	return c[t], nil
}

// TicketCounts returns the ticket list length of every trait at level.
func (g *Game) TicketCounts(level uint32) ([256]uint64, error) {
	return tickets.New(g.env.State).Counts(level)
}

// PieceView is a piece with its decoded traits and current holder.
type PieceView struct {
	ID     uint64   `json:"id"`
	Level  uint32   `json:"level"`
	Traits [4]uint8 `json:"traits"`
	Owner  string   `json:"owner,omitempty"` // empty until minted and after burn
	Burned bool     `json:"burned"`
}

// Piece returns the view of id, or core.ErrNotFound.
func (g *Game) Piece(id uint64) (*PieceView, error) {
	pc, err := g.env.State.GetPiece(id)
	if err != nil {
		return nil, err
	}
	v := &PieceView{ID: pc.ID, Level: pc.Level, Traits: trait.Unpack(pc.Traits).Traits(), Burned: pc.Burned}
	if ok, err := g.env.Pieces.Exists(id); err != nil {
		return nil, err
	} else if ok {
		if v.Owner, err = g.env.Pieces.OwnerOf(id); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Account returns the native balance, token balance and nonce of addr.
func (g *Game) Account(addr string) (*core.Account, error) {
	return g.env.State.GetAccount(addr)
}

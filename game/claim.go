package game

import (
	"fmt"

	"github.com/tolelom/purgegame/events"
)

// ClaimWinnings pays player's claimable balance above the one-unit sentinel
// into their native account. It stays available after shutdown.
func (g *Game) ClaimWinnings(player string) (uint64, error) {
	r, err := g.begin()
	if err != nil {
		return 0, err
	}
	amt, err := r.led.Withdraw(player)
	if err != nil {
		return 0, err
	}
	acc, err := g.env.State.GetAccount(player)
	if err != nil {
		return 0, fmt.Errorf("load account: %w", err)
	}
	acc.Balance += amt
	if err := g.env.State.SetAccount(acc); err != nil {
		return 0, err
	}
	if err := g.save(r); err != nil {
		return 0, err
	}
	g.emit(events.EventClaim, r.m.Level, map[string]any{"player": player, "amount": amt})
	return amt, nil
}

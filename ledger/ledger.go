// Package ledger moves base currency between the named pools and the
// per-player claimable balances. Every mutation either records a real
// inflow or debits one bucket by exactly what it credits to another.
package ledger

import (
	"fmt"

	"github.com/tolelom/purgegame/core"
)

// Pool names a balance bucket in core.Pools.
type Pool uint8

const (
	Live Pool = iota
	NextRound
	Carryover
	Reserve
)

func (p Pool) String() string {
	switch p {
	case Live:
		return "live"
	case NextRound:
		return "next_round"
	case Carryover:
		return "carryover"
	case Reserve:
		return "reserve"
	}
	return fmt.Sprintf("pool(%d)", uint8(p))
}

// Sentinel is the amount left in a claimable slot after a withdrawal.
const Sentinel = 1

// Ledger operates on the pools of one Meta record and the claimable map.
type Ledger struct {
	st    core.State
	pools *core.Pools
}

// New returns a Ledger mutating pools in place.
func New(st core.State, pools *core.Pools) *Ledger {
	return &Ledger{st: st, pools: pools}
}

func (l *Ledger) slot(p Pool) *uint64 {
	switch p {
	case Live:
		return &l.pools.Live
	case NextRound:
		return &l.pools.NextRound
	case Carryover:
		return &l.pools.Carryover
	case Reserve:
		return &l.pools.Reserve
	}
	panic(fmt.Sprintf("ledger: unknown pool %d", p))
}

// Deposit records an inflow of real currency into p.
func (l *Ledger) Deposit(p Pool, amount uint64) {
	*l.slot(p) += amount
	l.pools.TotalAssets += amount
}

// Move transfers amount from one pool to another.
func (l *Ledger) Move(from, to Pool, amount uint64) error {
	src := l.slot(from)
	if *src < amount {
		return fmt.Errorf("move %d from %s: only %d held: %w", amount, from, *src, core.ErrGuard)
	}
	*src -= amount
	*l.slot(to) += amount
	return nil
}

// MoveAll empties from into to and returns the amount moved.
func (l *Ledger) MoveAll(from, to Pool) uint64 {
	src := l.slot(from)
	amt := *src
	*src = 0
	*l.slot(to) += amt
	return amt
}

// Pay debits amount from p and credits it to player's claimable balance.
func (l *Ledger) Pay(from Pool, player string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	src := l.slot(from)
	if *src < amount {
		return fmt.Errorf("pay %d from %s: only %d held: %w", amount, from, *src, core.ErrGuard)
	}
	cur, err := l.st.GetClaimable(player)
	if err != nil {
		return err
	}
	if err := l.st.SetClaimable(player, cur+amount); err != nil {
		return err
	}
	*src -= amount
	l.pools.ClaimableTotal += amount
	return nil
}

// Claimable returns player's withdrawable balance, sentinel included.
func (l *Ledger) Claimable(player string) (uint64, error) {
	return l.st.GetClaimable(player)
}

// Withdraw releases everything above the sentinel and returns the amount.
// The caller transfers it out; TotalAssets is reduced accordingly.
func (l *Ledger) Withdraw(player string) (uint64, error) {
	cur, err := l.st.GetClaimable(player)
	if err != nil {
		return 0, err
	}
	if cur <= Sentinel {
		return 0, fmt.Errorf("nothing to claim: %w", core.ErrGuard)
	}
	amt := cur - Sentinel
	if err := l.st.SetClaimable(player, Sentinel); err != nil {
		return 0, err
	}
	l.pools.ClaimableTotal -= amt
	l.pools.TotalAssets -= amt
	return amt, nil
}

// Check verifies that the game holds at least what the pools commit.
func Check(p core.Pools) error {
	if c := p.Committed(); c > p.TotalAssets {
		return fmt.Errorf("conservation violated: committed %d > assets %d", c, p.TotalAssets)
	}
	return nil
}

// Percent returns amount*pct/100 without overflow for realistic amounts.
func Percent(amount, pct uint64) uint64 { return mulDiv(amount, pct, 100) }

// Permille returns amount*pm/1000.
func Permille(amount, pm uint64) uint64 { return mulDiv(amount, pm, 1000) }

// Bps returns amount*bps/10000.
func Bps(amount, bps uint64) uint64 { return mulDiv(amount, bps, 10000) }

func mulDiv(a, b, d uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a <= ^uint64(0)/b {
		return a * b / d
	}
	return a/d*b + a%d*b/d
}

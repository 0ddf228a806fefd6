// Package tokens is the reward-token ledger. Balances live on core.Account
// next to the native balance; total supply is tracked as a state counter.
package tokens

import (
	"fmt"

	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/events"
	"github.com/tolelom/purgegame/ledger"
)

const counterSupply = "tokens.supply"

// Ledger mints and burns reward tokens.
type Ledger struct {
	st           core.State
	sink         events.Sink
	affiliateBps uint64
}

// New returns a Ledger. affiliateBps is the share of a referred purchase
// minted to the referrer, in basis points.
func New(st core.State, sink events.Sink, affiliateBps uint64) *Ledger {
	return &Ledger{st: st, sink: sink, affiliateBps: affiliateBps}
}

// Supply returns the number of tokens in circulation.
func (l *Ledger) Supply() (uint64, error) {
	return l.st.GetCounter(counterSupply)
}

// BalanceOf returns the token balance of addr.
func (l *Ledger) BalanceOf(addr string) (uint64, error) {
	acc, err := l.st.GetAccount(addr)
	if err != nil {
		return 0, err
	}
	return acc.Tokens, nil
}

func (l *Ledger) Mint(to string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	acc, err := l.st.GetAccount(to)
	if err != nil {
		return err
	}
	if acc.Tokens+amount < acc.Tokens {
		return fmt.Errorf("token balance of %s overflows: %w", to, core.ErrGuard)
	}
	acc.Tokens += amount
	if err := l.st.SetAccount(acc); err != nil {
		return err
	}
	return l.addSupply(amount)
}

func (l *Ledger) Burn(from string, amount uint64) error {
	acc, err := l.st.GetAccount(from)
	if err != nil {
		return err
	}
	if acc.Tokens < amount {
		return fmt.Errorf("insufficient tokens: have %d, need %d: %w", acc.Tokens, amount, core.ErrGuard)
	}
	acc.Tokens -= amount
	if err := l.st.SetAccount(acc); err != nil {
		return err
	}
	return l.subSupply(amount)
}

// Affiliate rewards the owner of a referral code for a purchase costing
// cost native units.
func (l *Ledger) Affiliate(owner string, cost uint64) error {
	amt := ledger.Bps(cost, l.affiliateBps)
	if amt == 0 {
		return nil
	}
	if err := l.Mint(owner, amt); err != nil {
		return err
	}
	if l.sink != nil {
		l.sink.Emit(events.Event{
			Type: events.EventPayout,
			Data: map[string]any{"to": owner, "amount": amt, "kind": "affiliate_tokens"},
		})
	}
	return nil
}

func (l *Ledger) addSupply(amount uint64) error {
	s, err := l.st.GetCounter(counterSupply)
	if err != nil {
		return err
	}
	if s+amount < s {
		return fmt.Errorf("token supply overflows: %w", core.ErrGuard)
	}
	return l.st.SetCounter(counterSupply, s+amount)
}

func (l *Ledger) subSupply(amount uint64) error {
	s, err := l.st.GetCounter(counterSupply)
	if err != nil {
		return err
	}
	if s < amount {
		return fmt.Errorf("burn %d exceeds supply %d", amount, s)
	}
	return l.st.SetCounter(counterSupply, s-amount)
}

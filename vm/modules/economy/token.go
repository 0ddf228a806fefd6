// Package economy registers native-currency transfers.
package economy

import (
	"encoding/json"
	"fmt"

	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/events"
	"github.com/tolelom/purgegame/vm"
)

func init() {
	vm.Register(core.TxTransfer, handleTransfer)
}

func handleTransfer(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TransferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode transfer payload: %v: %w", err, core.ErrGuard)
	}
	if p.Amount == 0 {
		return fmt.Errorf("transfer amount must be > 0: %w", core.ErrGuard)
	}
	if p.To == "" {
		return fmt.Errorf("transfer to address required: %w", core.ErrGuard)
	}
	if p.To == ctx.Tx.From {
		return fmt.Errorf("transfer to self: %w", core.ErrGuard)
	}

	sender, err := ctx.State.GetAccount(ctx.Tx.From)
	if err != nil {
		return err
	}
	if sender.Balance < p.Amount {
		return fmt.Errorf("insufficient balance: have %d, need %d: %w", sender.Balance, p.Amount, core.ErrGuard)
	}
	sender.Balance -= p.Amount
	if err := ctx.State.SetAccount(sender); err != nil {
		return err
	}

	recipient, err := ctx.State.GetAccount(p.To)
	if err != nil {
		return err
	}
	recipient.Balance += p.Amount
	if err := ctx.State.SetAccount(recipient); err != nil {
		return err
	}

	ctx.Events.Emit(events.Event{
		Type: events.EventTransfer,
		Data: map[string]any{
			"from":   ctx.Tx.From,
			"to":     p.To,
			"amount": p.Amount,
		},
	})
	return nil
}

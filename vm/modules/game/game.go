// Package game registers the round engine's transaction handlers.
package game

import (
	"encoding/json"
	"fmt"

	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/vm"
)

func init() {
	vm.Register(core.TxAdvance, handleAdvance)
	vm.Register(core.TxPurchase, handlePurchase)
	vm.Register(core.TxPurchaseMap, handlePurchaseMap)
	vm.Register(core.TxBurn, handleBurn)
	vm.Register(core.TxClaim, handleClaim)
	vm.Register(core.TxRegisterCode, handleRegisterCode)
	vm.Register(core.TxTransferPiece, handleTransferPiece)
}

func decode(payload json.RawMessage, v any, what string) error {
	if len(payload) == 0 || string(payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", what, err, core.ErrGuard)
	}
	return nil
}

func handleAdvance(ctx *vm.Context, payload json.RawMessage) error {
	var p core.AdvancePayload
	if err := decode(payload, &p, "advance"); err != nil {
		return err
	}
	res, err := ctx.Game.AdvanceTick(ctx.Tx.From, p.Budget)
	if err != nil {
		return err
	}
	ctx.Result = res
	return nil
}

func handlePurchase(ctx *vm.Context, payload json.RawMessage) error {
	var p core.PurchasePayload
	if err := decode(payload, &p, "purchase"); err != nil {
		return err
	}
	res, err := ctx.Game.Purchase(ctx.Tx.From, p.Quantity, p.PayAlt, p.Referral, ctx.TakeValue())
	if err != nil {
		return err
	}
	ctx.Result = res
	return nil
}

func handlePurchaseMap(ctx *vm.Context, payload json.RawMessage) error {
	var p core.PurchasePayload
	if err := decode(payload, &p, "purchase_map"); err != nil {
		return err
	}
	res, err := ctx.Game.PurchaseMap(ctx.Tx.From, p.Quantity, p.PayAlt, p.Referral, ctx.TakeValue())
	if err != nil {
		return err
	}
	ctx.Result = res
	return nil
}

func handleBurn(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BurnPayload
	if err := decode(payload, &p, "burn"); err != nil {
		return err
	}
	res, err := ctx.Game.Burn(ctx.Tx.From, p.IDs)
	if err != nil {
		return err
	}
	ctx.Result = res
	return nil
}

func handleClaim(ctx *vm.Context, _ json.RawMessage) error {
	amt, err := ctx.Game.ClaimWinnings(ctx.Tx.From)
	if err != nil {
		return err
	}
	ctx.Result = map[string]uint64{"amount": amt}
	return nil
}

func handleRegisterCode(ctx *vm.Context, payload json.RawMessage) error {
	var p core.RegisterCodePayload
	if err := decode(payload, &p, "register_code"); err != nil {
		return err
	}
	return ctx.Game.RegisterReferralCode(ctx.Tx.From, p.Code)
}

func handleTransferPiece(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TransferPiecePayload
	if err := decode(payload, &p, "transfer_piece"); err != nil {
		return err
	}
	if p.To == "" {
		return fmt.Errorf("transfer_piece: recipient required: %w", core.ErrGuard)
	}
	return ctx.Game.TransferPiece(ctx.Tx.From, p.To, p.ID)
}

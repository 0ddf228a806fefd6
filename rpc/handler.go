package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/game"
	"github.com/tolelom/purgegame/indexer"
	"github.com/tolelom/purgegame/keeper"
	"github.com/tolelom/purgegame/ledger"
)

// Handler routes JSON-RPC method calls to the appropriate backend function.
type Handler struct {
	keeper  *keeper.Keeper
	indexer *indexer.Indexer
	log     *logrus.Entry
}

// NewHandler creates a Handler. idx may be nil, which disables the
// index-backed methods.
func NewHandler(k *keeper.Keeper, idx *indexer.Indexer) *Handler {
	return &Handler{
		keeper:  k,
		indexer: idx,
		log:     logrus.WithField("component", "rpc"),
	}
}

// Dispatch executes the RPC method named in req.
func (h *Handler) Dispatch(req Request) Response {
	switch req.Method {
	case "sendTx":
		return h.sendTx(req)
	case "getStatus":
		return h.getStatus(req)
	case "getBalance":
		return h.getBalance(req)
	case "getWinnings":
		return h.getWinnings(req)
	case "getTraitRemaining":
		return h.getTraitRemaining(req)
	case "getTickets":
		return h.getTickets(req)
	case "getPiece":
		return h.getPiece(req)
	case "getPiecesByOwner":
		return h.getPiecesByOwner(req)
	case "getPayouts":
		return h.getPayouts(req)
	default:
		return errResponse(req.ID, CodeMethodNotFound, "method not found: "+req.Method)
	}
}

// ---- write ----

func (h *Handler) sendTx(req Request) Response {
	var tx core.Transaction
	if err := json.Unmarshal(req.Params, &tx); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	// The client-supplied ID is not trusted.
	tx.ID = tx.Hash()
	if tx.ID == "" {
		return errResponse(req.ID, CodeInvalidParams, "cannot hash transaction")
	}
	r, err := h.keeper.Submit(&tx)
	if err != nil {
		h.log.WithFields(logrus.Fields{"tx": tx.ID, "type": tx.Type}).WithError(err).Debug("tx rejected")
		return failResponse(req.ID, err)
	}
	return okResponse(req.ID, r)
}

// ---- reads ----

func (h *Handler) getStatus(req Request) Response {
	var st *game.Status
	err := h.keeper.View(func(g *game.Game) error {
		var err error
		st, err = g.Status()
		return err
	})
	if err != nil {
		return failResponse(req.ID, err)
	}
	return okResponse(req.ID, st)
}

type addressParams struct {
	Address string `json:"address"`
}

func (h *Handler) address(req Request) (string, *Response) {
	var p addressParams
	if err := json.Unmarshal(req.Params, &p); err != nil || p.Address == "" {
		resp := errResponse(req.ID, CodeInvalidParams, "address required")
		return "", &resp
	}
	return p.Address, nil
}

func (h *Handler) getBalance(req Request) Response {
	addr, bad := h.address(req)
	if bad != nil {
		return *bad
	}
	var acc *core.Account
	err := h.keeper.View(func(g *game.Game) error {
		var err error
		acc, err = g.Account(addr)
		return err
	})
	if err != nil {
		return failResponse(req.ID, err)
	}
	return okResponse(req.ID, acc)
}

func (h *Handler) getWinnings(req Request) Response {
	addr, bad := h.address(req)
	if bad != nil {
		return *bad
	}
	var amount uint64
	err := h.keeper.View(func(g *game.Game) error {
		var err error
		amount, err = g.Winnings(addr)
		return err
	})
	if err != nil {
		return failResponse(req.ID, err)
	}
	// The stored sentinel is bookkeeping and never claimable.
	claimable := uint64(0)
	if amount > ledger.Sentinel {
		claimable = amount - ledger.Sentinel
	}
	return okResponse(req.ID, map[string]uint64{"raw": amount, "claimable": claimable})
}

type levelParams struct {
	Level uint32 `json:"level"` // 0 = current level
	Trait *uint8 `json:"trait,omitempty"`
}

// currentLevel resolves a zero level to the engine's current one.
func currentLevel(g *game.Game, level uint32) (uint32, error) {
	if level != 0 {
		return level, nil
	}
	st, err := g.Status()
	if err != nil {
		return 0, err
	}
	return st.Level, nil
}

func (h *Handler) getTraitRemaining(req Request) Response {
	var p levelParams
	if err := json.Unmarshal(req.Params, &p); err != nil || p.Trait == nil {
		return errResponse(req.ID, CodeInvalidParams, "trait required")
	}
	var n uint32
	err := h.keeper.View(func(g *game.Game) error {
		level, err := currentLevel(g, p.Level)
		if err != nil {
			return err
		}
		n, err = g.TraitRemaining(level, *p.Trait)
		return err
	})
	if err != nil {
		return failResponse(req.ID, err)
	}
	return okResponse(req.ID, map[string]uint32{"remaining": n})
}

func (h *Handler) getTickets(req Request) Response {
	var p levelParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return errResponse(req.ID, CodeInvalidParams, err.Error())
		}
	}
	// Only non-empty traits are returned, keyed by trait id.
	out := make(map[string]uint64)
	err := h.keeper.View(func(g *game.Game) error {
		level, err := currentLevel(g, p.Level)
		if err != nil {
			return err
		}
		counts, err := g.TicketCounts(level)
		if err != nil {
			return err
		}
		for t, n := range counts {
			if p.Trait != nil && uint8(t) != *p.Trait {
				continue
			}
			if n > 0 {
				out[fmt.Sprint(t)] = n
			}
		}
		return nil
	})
	if err != nil {
		return failResponse(req.ID, err)
	}
	return okResponse(req.ID, out)
}

func (h *Handler) getPiece(req Request) Response {
	var p struct {
		ID uint64 `json:"id"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil || p.ID == 0 {
		return errResponse(req.ID, CodeInvalidParams, "id required")
	}
	var v *game.PieceView
	err := h.keeper.View(func(g *game.Game) error {
		var err error
		v, err = g.Piece(p.ID)
		return err
	})
	if err != nil {
		return failResponse(req.ID, err)
	}
	return okResponse(req.ID, v)
}

func (h *Handler) getPiecesByOwner(req Request) Response {
	if h.indexer == nil {
		return errResponse(req.ID, CodeMethodNotFound, "indexer disabled")
	}
	addr, bad := h.address(req)
	if bad != nil {
		return *bad
	}
	ids, err := h.indexer.GetPiecesByOwner(addr)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	if ids == nil {
		ids = []uint64{}
	}
	return okResponse(req.ID, ids)
}

func (h *Handler) getPayouts(req Request) Response {
	if h.indexer == nil {
		return errResponse(req.ID, CodeMethodNotFound, "indexer disabled")
	}
	addr, bad := h.address(req)
	if bad != nil {
		return *bad
	}
	ps, err := h.indexer.GetPayouts(addr)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	if ps == nil {
		ps = []indexer.Payout{}
	}
	return okResponse(req.ID, ps)
}

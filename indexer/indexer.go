// Package indexer maintains secondary indexes over executed transactions so
// clients can list a player's pieces and payouts without scanning state.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/events"
	"github.com/tolelom/purgegame/storage"
)

const (
	prefixOwnerPieces   = "idx:owner:piece:"
	prefixPlayerPayouts = "idx:player:payout:"
)

// MaxPayouts bounds the payout history kept per player; older entries are
// dropped first.
const MaxPayouts = 1000

// Payout is one credit to a player's claimable balance.
type Payout struct {
	TxID   string `json:"tx_id"`
	Level  uint32 `json:"level"`
	Kind   string `json:"kind"`
	Amount uint64 `json:"amount"`
}

// Indexer subscribes to game events and updates secondary lookup tables.
type Indexer struct {
	db storage.DB
}

// New creates an Indexer backed by db and subscribes to relevant events.
func New(db storage.DB, emitter *events.Emitter) *Indexer {
	idx := &Indexer{db: db}
	emitter.Subscribe(events.EventPieceMinted, idx.onPieceMinted)
	emitter.Subscribe(events.EventPieceTransfer, idx.onPieceTransferred)
	emitter.Subscribe(events.EventPieceBurned, idx.onPieceBurned)
	emitter.Subscribe(events.EventPayout, idx.onPayout)
	return idx
}

// GetPiecesByOwner returns the ids of unburned pieces held by owner, in
// ascending order.
func (idx *Indexer) GetPiecesByOwner(owner string) ([]uint64, error) {
	var ids []uint64
	if err := idx.get(prefixOwnerPieces+owner, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// GetPayouts returns player's payout history, oldest first.
func (idx *Indexer) GetPayouts(player string) ([]Payout, error) {
	var ps []Payout
	if err := idx.get(prefixPlayerPayouts+player, &ps); err != nil {
		return nil, err
	}
	return ps, nil
}

// ---- event handlers ----

func (idx *Indexer) onPieceMinted(ev events.Event) {
	owner, _ := ev.Data["owner"].(string)
	first, _ := ev.Data["first_id"].(uint64)
	n, _ := ev.Data["quantity"].(uint64)
	if owner == "" || n == 0 {
		return
	}
	_ = idx.updatePieces(owner, func(ids []uint64) []uint64 {
		for id := first; id < first+n; id++ {
			ids = append(ids, id)
		}
		return ids
	})
}

func (idx *Indexer) onPieceTransferred(ev events.Event) {
	from, _ := ev.Data["from"].(string)
	to, _ := ev.Data["to"].(string)
	id, ok := ev.Data["id"].(uint64)
	if !ok || from == "" || to == "" {
		return
	}
	if err := idx.updatePieces(from, without(id)); err != nil {
		return
	}
	_ = idx.updatePieces(to, func(ids []uint64) []uint64 { return append(ids, id) })
}

func (idx *Indexer) onPieceBurned(ev events.Event) {
	owner, _ := ev.Data["owner"].(string)
	id, ok := ev.Data["id"].(uint64)
	if !ok || owner == "" {
		return
	}
	_ = idx.updatePieces(owner, without(id))
}

func (idx *Indexer) onPayout(ev events.Event) {
	to, _ := ev.Data["to"].(string)
	amount, _ := ev.Data["amount"].(uint64)
	kind, _ := ev.Data["kind"].(string)
	if to == "" || amount == 0 {
		return
	}
	// token rewards are not claimable balance
	if kind == "affiliate_tokens" {
		return
	}
	var ps []Payout
	if err := idx.get(prefixPlayerPayouts+to, &ps); err != nil {
		return
	}
	ps = append(ps, Payout{TxID: ev.TxID, Level: ev.Level, Kind: kind, Amount: amount})
	if len(ps) > MaxPayouts {
		ps = ps[len(ps)-MaxPayouts:]
	}
	_ = idx.set(prefixPlayerPayouts+to, ps)
}

// ---- list helpers ----

func without(id uint64) func([]uint64) []uint64 {
	return func(ids []uint64) []uint64 {
		out := ids[:0]
		for _, v := range ids {
			if v != id {
				out = append(out, v)
			}
		}
		return out
	}
}

func (idx *Indexer) updatePieces(owner string, fn func([]uint64) []uint64) error {
	var ids []uint64
	if err := idx.get(prefixOwnerPieces+owner, &ids); err != nil {
		return err
	}
	ids = fn(ids)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return idx.set(prefixOwnerPieces+owner, ids)
}

func (idx *Indexer) get(key string, v any) error {
	data, err := idx.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil // empty list
		}
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("indexer unmarshal: %w", err)
	}
	return nil
}

func (idx *Indexer) set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}

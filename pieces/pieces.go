// Package pieces is the ownership ledger for game pieces. Trait data lives
// on core.Piece and survives a burn; this ledger only tracks who holds
// which id.
package pieces

import (
	"errors"
	"fmt"

	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/events"
)

const counterMinted = "pieces.minted"

// Ledger mints, burns and transfers piece ids through core.State.
type Ledger struct {
	st   core.State
	sink events.Sink
}

// New returns a Ledger. sink may be nil.
func New(st core.State, sink events.Sink) *Ledger {
	return &Ledger{st: st, sink: sink}
}

// Minted returns how many ids have been minted so far.
func (l *Ledger) Minted() (uint64, error) {
	return l.st.GetCounter(counterMinted)
}

// MintBatch assigns the next quantity ids to owner and returns the first.
// Ids start at 1 and are never reused.
func (l *Ledger) MintBatch(owner string, quantity uint64) (uint64, error) {
	if owner == "" {
		return 0, errors.New("mint: owner required")
	}
	if quantity == 0 {
		return 0, errors.New("mint: quantity must be > 0")
	}
	minted, err := l.st.GetCounter(counterMinted)
	if err != nil {
		return 0, err
	}
	first := minted + 1
	for id := first; id < first+quantity; id++ {
		if err := l.st.SetOwner(id, owner); err != nil {
			return 0, err
		}
	}
	if err := l.st.SetCounter(counterMinted, minted+quantity); err != nil {
		return 0, err
	}
	l.emit(events.EventPieceMinted, map[string]any{
		"owner":    owner,
		"first_id": first,
		"quantity": quantity,
	})
	return first, nil
}

// OwnerOf returns the holder of id, or core.ErrNotFound when the id is
// unminted or burned.
func (l *Ledger) OwnerOf(id uint64) (string, error) {
	owner, err := l.st.GetOwner(id)
	if err != nil {
		return "", fmt.Errorf("piece %d: %w", id, err)
	}
	return owner, nil
}

// Exists reports whether id is minted and not burned.
func (l *Ledger) Exists(id uint64) (bool, error) {
	_, err := l.st.GetOwner(id)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// BurnOne removes id from the ledger.
func (l *Ledger) BurnOne(id uint64) error {
	owner, err := l.OwnerOf(id)
	if err != nil {
		return err
	}
	if err := l.st.DeleteOwner(id); err != nil {
		return err
	}
	l.emit(events.EventPieceBurned, map[string]any{"id": id, "owner": owner})
	return nil
}

// Transfer moves id from one holder to another.
func (l *Ledger) Transfer(from, to string, id uint64) error {
	if to == "" {
		return errors.New("transfer: recipient required")
	}
	owner, err := l.OwnerOf(id)
	if err != nil {
		return err
	}
	if owner != from {
		return fmt.Errorf("piece %d is not owned by sender: %w", id, core.ErrGuard)
	}
	if err := l.st.SetOwner(id, to); err != nil {
		return err
	}
	l.emit(events.EventPieceTransfer, map[string]any{"id": id, "from": from, "to": to})
	return nil
}

func (l *Ledger) emit(typ events.EventType, data map[string]any) {
	if l.sink != nil {
		l.sink.Emit(events.Event{Type: typ, Data: data})
	}
}

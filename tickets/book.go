// Package tickets keeps the per-level, per-trait ticket lists. Each list is
// an append-only vector of player addresses stored one entry per key, so an
// append costs O(1) and sampling reads a single entry.
package tickets

import (
	"encoding/binary"
	"fmt"

	"github.com/tolelom/purgegame/batch"
	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/crypto"
)

// Book reads and appends ticket lists through core.State.
type Book struct {
	st core.State
}

// New returns a Book over st.
func New(st core.State) *Book {
	return &Book{st: st}
}

// Len returns the number of tickets for trait in level.
func (b *Book) Len(level uint32, trait uint8) (uint64, error) {
	return b.st.GetTicketLen(level, trait)
}

// At returns the holder of ticket idx.
func (b *Book) At(level uint32, trait uint8, idx uint64) (string, error) {
	n, err := b.st.GetTicketLen(level, trait)
	if err != nil {
		return "", err
	}
	if idx >= n {
		return "", fmt.Errorf("ticket %d of %d/%d out of range (%d): %w", idx, level, trait, n, core.ErrNotFound)
	}
	return b.st.GetTicket(level, trait, idx)
}

// Append adds one ticket for player.
func (b *Book) Append(level uint32, trait uint8, player string) error {
	n, err := b.st.GetTicketLen(level, trait)
	if err != nil {
		return err
	}
	if err := b.st.SetTicket(level, trait, n, player); err != nil {
		return err
	}
	return b.st.SetTicketLen(level, trait, n+1)
}

// AppendAll adds one ticket for player to each of traits.
func (b *Book) AppendAll(level uint32, traits [4]uint8, player string) error {
	for _, t := range traits {
		if err := b.Append(level, t, player); err != nil {
			return err
		}
	}
	return nil
}

// Counts returns the list length of every trait in level.
func (b *Book) Counts(level uint32) ([256]uint64, error) {
	var out [256]uint64
	for t := 0; t < 256; t++ {
		n, err := b.st.GetTicketLen(level, uint8(t))
		if err != nil {
			return out, err
		}
		out[t] = n
	}
	return out, nil
}

// Sample picks a ticket uniformly with replacement using r. It returns
// ok=false when the list is empty.
func (b *Book) Sample(level uint32, trait uint8, r uint64) (player string, ok bool, err error) {
	n, err := b.st.GetTicketLen(level, trait)
	if err != nil || n == 0 {
		return "", false, err
	}
	player, err = b.st.GetTicket(level, trait, r%n)
	if err != nil {
		return "", false, err
	}
	return player, true, nil
}

// SampleMany draws up to want winners from one list. Draw i uses
// keccak256(seed || i), so the sequence depends only on the seed. Fewer
// than want are returned when the list is shorter than want.
func (b *Book) SampleMany(level uint32, trait uint8, seed []byte, want uint64) ([]string, error) {
	n, err := b.st.GetTicketLen(level, trait)
	if err != nil || n == 0 {
		return nil, err
	}
	if want > n {
		want = n
	}
	out := make([]string, 0, want)
	for i := uint64(0); i < want; i++ {
		h := crypto.Keccak256(seed, be64(i))
		p, err := b.st.GetTicket(level, trait, core.Word(h).Lane(0)%n)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Walk visits tickets [from, from+limit) of one list, folding runs of the
// same consecutive holder into a single call with the run length. It
// returns the index after the last ticket visited.
func (b *Book) Walk(level uint32, trait uint8, from, limit uint64, fn func(player string, run uint64) error) (uint64, error) {
	n, err := b.st.GetTicketLen(level, trait)
	if err != nil {
		return from, err
	}
	end := from + limit
	if end > n || end < from {
		end = n
	}
	var (
		cur string
		run uint64
	)
	for i := from; i < end; i++ {
		p, err := b.st.GetTicket(level, trait, i)
		if err != nil {
			return from, err
		}
		if run > 0 && p != cur {
			if err := fn(cur, run); err != nil {
				return from, err
			}
			run = 0
		}
		cur = p
		run++
	}
	if run > 0 {
		if err := fn(cur, run); err != nil {
			return from, err
		}
	}
	if end < from {
		return from, nil
	}
	return end, nil
}

// levelLists presents the 256 lists of one level as a batch queue, one
// entry per trait.
type levelLists struct {
	st    core.State
	level uint32
}

func (q levelLists) Len() uint64 { return 256 }

func (q levelLists) EntrySize(t uint64) (uint64, error) {
	return q.st.GetTicketLen(q.level, uint8(t))
}

// Prune deletes up to budget tickets of level starting at c, dropping each
// list's length key once its last ticket is gone. It returns the cursor to
// resume from and whether the level holds no tickets any more.
func (b *Book) Prune(level uint32, c core.Cursor, budget uint32) (core.Cursor, bool, error) {
	q := levelLists{st: b.st, level: level}
	return batch.Step(c, budget, q, func(t, from, n uint64) error {
		size, err := q.EntrySize(t)
		if err != nil {
			return err
		}
		for i := from; i < from+n; i++ {
			if err := b.st.DeleteTicket(level, uint8(t), i); err != nil {
				return err
			}
		}
		if from+n == size {
			return b.st.DeleteTicketLen(level, uint8(t))
		}
		return nil
	})
}

func be64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

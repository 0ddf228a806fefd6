// Package batch drains queued work across many bounded invocations.
//
// A Cursor records the queue entry being worked on and how many units of
// that entry are already done. Step advances it by at most budget units and
// never revisits a unit, so calling it zero, one or many times before the
// queue is drained leaves the same end state.
package batch

import (
	"github.com/tolelom/purgegame/core"
)

// Queue is any ordered list of entries, each holding a number of units.
type Queue interface {
	Len() uint64
	EntrySize(i uint64) (uint64, error)
}

// ApplyFunc performs units [from, from+n) of entry.
type ApplyFunc func(entry, from, n uint64) error

// Step applies up to budget units of q starting at c. It returns the new
// cursor and whether the queue is fully drained. On error the returned
// cursor is c, unchanged.
func Step(c core.Cursor, budget uint32, q Queue, apply ApplyFunc) (core.Cursor, bool, error) {
	left := uint64(budget)
	cur := c
	for cur.Index < q.Len() {
		size, err := q.EntrySize(cur.Index)
		if err != nil {
			return c, false, err
		}
		if cur.Offset >= size {
			cur = core.Cursor{Index: cur.Index + 1}
			continue
		}
		if left == 0 {
			break
		}
		n := size - cur.Offset
		if n > left {
			n = left
		}
		if err := apply(cur.Index, cur.Offset, n); err != nil {
			return c, false, err
		}
		cur.Offset += n
		left -= n
	}
	return cur, cur.Index >= q.Len(), nil
}

// Span is a queue with a single entry of n units, used for flat loops such
// as a ticket window or a fixed-size reset.
type Span uint64

func (s Span) Len() uint64 { return 1 }

func (s Span) EntrySize(uint64) (uint64, error) { return uint64(s), nil }

// StateQueue exposes a persisted purchase queue.
type StateQueue struct {
	st   core.State
	kind core.QueueKind
	n    uint64
}

// NewStateQueue returns the queue of kind with n entries.
func NewStateQueue(st core.State, kind core.QueueKind, n uint64) *StateQueue {
	return &StateQueue{st: st, kind: kind, n: n}
}

func (q *StateQueue) Len() uint64 { return q.n }

func (q *StateQueue) EntrySize(i uint64) (uint64, error) {
	e, err := q.st.GetQueueEntry(q.kind, i)
	if err != nil {
		return 0, err
	}
	return e.Quantity, nil
}

// Entry returns entry i.
func (q *StateQueue) Entry(i uint64) (*core.QueueEntry, error) {
	return q.st.GetQueueEntry(q.kind, i)
}

// Push appends e to the queue and returns the updated length.
func (q *StateQueue) Push(e *core.QueueEntry) (uint64, error) {
	if err := q.st.SetQueueEntry(q.kind, q.n, e); err != nil {
		return q.n, err
	}
	q.n++
	return q.n, nil
}

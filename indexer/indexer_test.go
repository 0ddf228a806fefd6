package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/purgegame/events"
	"github.com/tolelom/purgegame/internal/testutil"
)

func TestPiecesByOwner(t *testing.T) {
	em := events.NewEmitter()
	idx := New(testutil.NewMemDB(), em)

	em.Emit(events.Event{Type: events.EventPieceMinted, Data: map[string]any{"owner": "alice", "first_id": uint64(1), "quantity": uint64(3)}})
	em.Emit(events.Event{Type: events.EventPieceMinted, Data: map[string]any{"owner": "bob", "first_id": uint64(4), "quantity": uint64(1)}})
	em.Emit(events.Event{Type: events.EventPieceTransfer, Data: map[string]any{"id": uint64(2), "from": "alice", "to": "bob"}})
	em.Emit(events.Event{Type: events.EventPieceBurned, Data: map[string]any{"id": uint64(1), "owner": "alice"}})

	got, err := idx.GetPiecesByOwner("alice")
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, got)

	got, err = idx.GetPiecesByOwner("bob")
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 4}, got)

	got, err = idx.GetPiecesByOwner("nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPayouts(t *testing.T) {
	em := events.NewEmitter()
	idx := New(testutil.NewMemDB(), em)

	em.Emit(events.Event{Type: events.EventPayout, TxID: "t1", Level: 3, Data: map[string]any{"to": "alice", "amount": uint64(50), "kind": "daily"}})
	em.Emit(events.Event{Type: events.EventPayout, TxID: "t2", Level: 3, Data: map[string]any{"to": "alice", "amount": uint64(7), "kind": "affiliate_tokens"}})
	em.Emit(events.Event{Type: events.EventPayout, TxID: "t3", Level: 4, Data: map[string]any{"to": "alice", "amount": uint64(9), "kind": "participant"}})

	ps, err := idx.GetPayouts("alice")
	require.NoError(t, err)
	assert.Equal(t, []Payout{
		{TxID: "t1", Level: 3, Kind: "daily", Amount: 50},
		{TxID: "t3", Level: 4, Kind: "participant", Amount: 9},
	}, ps)
}

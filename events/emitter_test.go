package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitterDeliversByType(t *testing.T) {
	em := NewEmitter()
	var got []EventType
	em.Subscribe(EventPurchase, func(ev Event) { got = append(got, ev.Type) })
	em.SubscribeAll(func(ev Event) { got = append(got, "all:"+ev.Type) })

	em.Emit(Event{Type: EventPurchase})
	em.Emit(Event{Type: EventTick})

	assert.Equal(t, []EventType{EventPurchase, "all:" + EventPurchase, "all:" + EventTick}, got)
}

func TestEmitterRecoversPanics(t *testing.T) {
	em := NewEmitter()
	called := false
	em.Subscribe(EventTick, func(Event) { panic("boom") })
	em.Subscribe(EventTick, func(Event) { called = true })

	assert.NotPanics(t, func() { em.Emit(Event{Type: EventTick}) })
	assert.True(t, called, "later subscribers must still run")
}

func TestBufferFlushAndDiscard(t *testing.T) {
	em := NewEmitter()
	var seen []Event
	em.SubscribeAll(func(ev Event) { seen = append(seen, ev) })

	buf := NewBuffer("tx1")
	buf.Emit(Event{Type: EventPieceMinted})
	buf.Emit(Event{Type: EventPieceBurned, TxID: "other"})
	assert.Empty(t, seen)

	buf.Flush(em)
	if assert.Len(t, seen, 2) {
		assert.Equal(t, "tx1", seen[0].TxID)
		assert.Equal(t, "other", seen[1].TxID)
	}
	assert.Empty(t, buf.Events())

	buf.Emit(Event{Type: EventTick})
	buf.Discard()
	buf.Flush(em)
	assert.Len(t, seen, 2)
}

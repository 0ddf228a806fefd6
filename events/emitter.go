package events

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// EventType labels what happened.
type EventType string

const (
	EventTxExecuted     EventType = "tx_executed"
	EventTransfer       EventType = "transfer"
	EventTick           EventType = "tick"
	EventRNGRequested   EventType = "rng_requested"
	EventRNGFulfilled   EventType = "rng_fulfilled"
	EventPurchase       EventType = "purchase"
	EventMapPurchase    EventType = "map_purchase"
	EventBurn           EventType = "burn"
	EventPieceMinted    EventType = "piece_minted"
	EventPieceBurned    EventType = "piece_burned"
	EventPieceTransfer  EventType = "piece_transfer"
	EventFundingReached EventType = "funding_reached"
	EventJackpotPaid    EventType = "jackpot_paid"
	EventExtermination  EventType = "extermination"
	EventLevelStarted   EventType = "level_started"
	EventPayout         EventType = "payout"
	EventClaim          EventType = "claim"
	EventShutdown       EventType = "shutdown"
)

// Event carries a typed payload emitted after a state change.
type Event struct {
	Type  EventType      `json:"type"`
	TxID  string         `json:"tx_id"`
	Level uint32         `json:"level"`
	Data  map[string]any `json:"data"`
}

// Sink receives events. Both Emitter and Buffer implement it.
type Sink interface {
	Emit(ev Event)
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a simple pub/sub broker. Subscribe before Emit.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	all      []Handler
	log      *logrus.Entry
}

// NewEmitter creates an Emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{
		handlers: make(map[EventType][]Handler),
		log:      logrus.WithField("component", "events"),
	}
}

// Subscribe registers h to be called whenever typ is emitted.
func (e *Emitter) Subscribe(typ EventType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], h)
}

// SubscribeAll registers h for every event type.
func (e *Emitter) SubscribeAll(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, h)
}

// Emit delivers ev to all subscribers for ev.Type synchronously.
// Each handler is guarded by panic recovery so a misbehaving subscriber
// cannot crash the node or halt the keeper.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	handlers := make([]Handler, 0, len(e.handlers[ev.Type])+len(e.all))
	handlers = append(handlers, e.handlers[ev.Type]...)
	handlers = append(handlers, e.all...)
	e.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.log.WithField("event", ev.Type).Errorf("handler panicked: %v", r)
				}
			}()
			h(ev)
		}()
	}
}

// Buffer holds events raised inside a transaction until it commits.
// A rolled-back transaction discards its buffer so subscribers never see
// effects that did not happen.
type Buffer struct {
	TxID   string
	events []Event
}

// NewBuffer returns an empty buffer tagging events with txID.
func NewBuffer(txID string) *Buffer {
	return &Buffer{TxID: txID}
}

func (b *Buffer) Emit(ev Event) {
	if ev.TxID == "" {
		ev.TxID = b.TxID
	}
	b.events = append(b.events, ev)
}

// Events returns the buffered events in emission order.
func (b *Buffer) Events() []Event { return b.events }

// Flush forwards every buffered event to s and empties the buffer.
func (b *Buffer) Flush(s Sink) {
	if s != nil {
		for _, ev := range b.events {
			s.Emit(ev)
		}
	}
	b.events = nil
}

// Discard drops buffered events.
func (b *Buffer) Discard() { b.events = nil }

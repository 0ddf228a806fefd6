// Package randomness supplies 256-bit words to the round engine.
//
// A request is issued during one tick and observed fulfilled on a later,
// unrelated tick. "Not yet fulfilled" is a normal state, not an error.
package randomness

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/crypto"
)

// Provider is the engine-facing side of a randomness source.
type Provider interface {
	// RequestRandomWord opens a new request and returns its id. pause asks
	// the provider to hold downstream consumers until delivery.
	RequestRandomWord(pause bool) (string, error)
	// PullFulfilledWord returns the word for id once delivered.
	PullFulfilledWord(id string) (core.Word, bool)
}

// ErrUnknownRequest is returned for ids the coordinator never issued.
var ErrUnknownRequest = errors.New("unknown randomness request")

// Request is one randomness request tracked by the Coordinator.
type Request struct {
	ID          string    `json:"id"`
	Pause       bool      `json:"pause"`
	CreatedAt   time.Time `json:"created_at"`
	Fulfilled   bool      `json:"fulfilled"`
	FulfilledAt time.Time `json:"fulfilled_at,omitempty"`
	Word        core.Word `json:"word"`
	Proof       string    `json:"proof,omitempty"` // hex ed25519 signature over the id
}

// Coordinator is an in-process verifiable randomness source. The word for a
// request is keccak256 of the coordinator's ed25519 signature over the
// request id, so anyone holding the public key can check a delivery.
type Coordinator struct {
	mu       sync.Mutex
	key      crypto.PrivateKey
	clock    core.Clock
	delay    time.Duration
	requests map[string]*Request
	pending  chan string
	log      *logrus.Entry
}

// NewCoordinator returns a coordinator signing with key. Run delivers each
// request delay after it was made.
func NewCoordinator(key crypto.PrivateKey, clock core.Clock, delay time.Duration) *Coordinator {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Coordinator{
		key:      key,
		clock:    clock,
		delay:    delay,
		requests: make(map[string]*Request),
		pending:  make(chan string, 64),
		log:      logrus.WithField("component", "randomness"),
	}
}

// PublicKey returns the key that verifies delivered words.
func (c *Coordinator) PublicKey() crypto.PublicKey { return c.key.Public() }

func (c *Coordinator) RequestRandomWord(pause bool) (string, error) {
	id := uuid.NewString()
	c.mu.Lock()
	c.requests[id] = &Request{ID: id, Pause: pause, CreatedAt: c.clock.Now()}
	c.mu.Unlock()

	select {
	case c.pending <- id:
	default:
		// Run is behind; the request stays pending and is picked up by the
		// sweep or a manual Fulfill.
		c.log.WithField("request_id", id).Warn("fulfilment queue full")
	}
	c.log.WithFields(logrus.Fields{"request_id": id, "pause": pause}).Debug("randomness requested")
	return id, nil
}

func (c *Coordinator) PullFulfilledWord(id string) (core.Word, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.requests[id]
	if !ok || !r.Fulfilled {
		return core.Word{}, false
	}
	return r.Word, true
}

// Get returns a copy of the request record.
func (c *Coordinator) Get(id string) (Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.requests[id]
	if !ok {
		return Request{}, false
	}
	return *r, true
}

// Pending returns the ids of requests not yet fulfilled.
func (c *Coordinator) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []string
	for id, r := range c.requests {
		if !r.Fulfilled {
			ids = append(ids, id)
		}
	}
	return ids
}

// Fulfill delivers the word for id immediately. Fulfilling twice returns
// the original word.
func (c *Coordinator) Fulfill(id string) (core.Word, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.requests[id]
	if !ok {
		return core.Word{}, fmt.Errorf("%w: %s", ErrUnknownRequest, id)
	}
	if r.Fulfilled {
		return r.Word, nil
	}
	proof := crypto.Sign(c.key, []byte(id))
	word, err := WordFromProof(proof)
	if err != nil {
		return core.Word{}, err
	}
	r.Fulfilled = true
	r.FulfilledAt = c.clock.Now()
	r.Word = word
	r.Proof = proof
	c.log.WithField("request_id", id).Info("randomness fulfilled")
	return word, nil
}

// Run fulfils requests in the background until ctx is cancelled. A sweep
// every delay catches requests that did not fit in the queue.
func (c *Coordinator) Run(ctx context.Context) {
	interval := c.delay
	if interval <= 0 {
		interval = time.Second
	}
	sweep := time.NewTicker(interval)
	defer sweep.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-c.pending:
			if !c.wait(ctx, id) {
				return
			}
			if _, err := c.Fulfill(id); err != nil {
				c.log.WithError(err).WithField("request_id", id).Warn("fulfil failed")
			}
		case <-sweep.C:
			for _, id := range c.Pending() {
				if r, ok := c.Get(id); ok && c.clock.Now().Sub(r.CreatedAt) >= c.delay {
					_, _ = c.Fulfill(id)
				}
			}
		}
	}
}

// wait blocks until id is at least delay old. It returns false if ctx ends.
func (c *Coordinator) wait(ctx context.Context, id string) bool {
	r, ok := c.Get(id)
	if !ok {
		return true
	}
	d := c.delay - c.clock.Now().Sub(r.CreatedAt)
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// WordFromProof derives the delivered word from a hex proof.
func WordFromProof(proofHex string) (core.Word, error) {
	b, err := hex.DecodeString(proofHex)
	if err != nil {
		return core.Word{}, fmt.Errorf("invalid proof hex: %w", err)
	}
	return core.Word(crypto.Keccak256(b)), nil
}

// VerifyWord checks that word is the delivery for id under pub.
func VerifyWord(pub crypto.PublicKey, id, proofHex string, word core.Word) error {
	if err := crypto.Verify(pub, []byte(id), proofHex); err != nil {
		return err
	}
	want, err := WordFromProof(proofHex)
	if err != nil {
		return err
	}
	if want != word {
		return errors.New("word does not match proof")
	}
	return nil
}

// Sequence is a deterministic Provider for replay and simulation: the n-th
// request receives keccak256(seed || n) once Deliver is called for it, or
// immediately when Auto is set.
type Sequence struct {
	mu        sync.Mutex
	seed      []byte
	Auto      bool
	next      uint64
	delivered map[string]core.Word
	open      []uint64
}

// NewSequence returns a Sequence derived from seed.
func NewSequence(seed []byte, auto bool) *Sequence {
	return &Sequence{seed: seed, Auto: auto, delivered: make(map[string]core.Word)}
}

func (s *Sequence) RequestRandomWord(bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := sequenceID(s.next)
	s.open = append(s.open, s.next)
	s.next++
	if s.Auto {
		s.deliverLocked()
	}
	return id, nil
}

func (s *Sequence) PullFulfilledWord(id string) (core.Word, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.delivered[id]
	return w, ok
}

// Deliver fulfils every open request and returns how many were delivered.
func (s *Sequence) Deliver() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deliverLocked()
}

// Requests returns how many requests have been issued.
func (s *Sequence) Requests() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

func (s *Sequence) deliverLocked() int {
	n := len(s.open)
	for _, idx := range s.open {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], idx)
		s.delivered[sequenceID(idx)] = core.Word(crypto.Keccak256(s.seed, buf[:]))
	}
	s.open = nil
	return n
}

func sequenceID(n uint64) string { return fmt.Sprintf("seq-%d", n) }

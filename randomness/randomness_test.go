package randomness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/purgegame/crypto"
	"github.com/tolelom/purgegame/internal/testutil"
)

func newCoordinator(t *testing.T, delay time.Duration) *Coordinator {
	t.Helper()
	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return NewCoordinator(priv, testutil.NewFakeClock(testutil.Epoch), delay)
}

func TestCoordinatorManualFulfil(t *testing.T) {
	c := newCoordinator(t, time.Hour)
	id, err := c.RequestRandomWord(true)
	require.NoError(t, err)

	_, ok := c.PullFulfilledWord(id)
	assert.False(t, ok, "undelivered request is not an error, just not ready")
	assert.Equal(t, []string{id}, c.Pending())

	w, err := c.Fulfill(id)
	require.NoError(t, err)
	got, ok := c.PullFulfilledWord(id)
	require.True(t, ok)
	assert.Equal(t, w, got)

	again, err := c.Fulfill(id)
	require.NoError(t, err)
	assert.Equal(t, w, again)
	assert.Empty(t, c.Pending())

	r, ok := c.Get(id)
	require.True(t, ok)
	require.NoError(t, VerifyWord(c.PublicKey(), id, r.Proof, w))
}

func TestCoordinatorUnknown(t *testing.T) {
	c := newCoordinator(t, 0)
	_, err := c.Fulfill("nope")
	assert.ErrorIs(t, err, ErrUnknownRequest)
}

func TestCoordinatorRun(t *testing.T) {
	c := newCoordinator(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	id, err := c.RequestRandomWord(false)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, ok := c.PullFulfilledWord(id)
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestVerifyWordRejectsTampering(t *testing.T) {
	c := newCoordinator(t, 0)
	id, _ := c.RequestRandomWord(false)
	w, err := c.Fulfill(id)
	require.NoError(t, err)
	r, _ := c.Get(id)

	w[0] ^= 1
	assert.Error(t, VerifyWord(c.PublicKey(), id, r.Proof, w))
}

func TestSequenceDeterministic(t *testing.T) {
	a := NewSequence([]byte("seed"), false)
	b := NewSequence([]byte("seed"), true)

	ida, _ := a.RequestRandomWord(false)
	idb, _ := b.RequestRandomWord(false)
	assert.Equal(t, ida, idb)

	_, ok := a.PullFulfilledWord(ida)
	assert.False(t, ok)
	assert.Equal(t, 1, a.Deliver())

	wa, ok := a.PullFulfilledWord(ida)
	require.True(t, ok)
	wb, ok := b.PullFulfilledWord(idb)
	require.True(t, ok)
	assert.Equal(t, wa, wb)

	id2, _ := b.RequestRandomWord(false)
	w2, _ := b.PullFulfilledWord(id2)
	assert.NotEqual(t, wb, w2)
}

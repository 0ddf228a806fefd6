package trait

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/purgegame/core"
)

func TestWeighted8Bounds(t *testing.T) {
	assert.Equal(t, uint8(0), Weighted8(0))
	assert.Equal(t, uint8(7), Weighted8(math.MaxUint32))

	// Each bucket's first scaled value must land in that bucket.
	prev := uint8(0)
	for r := uint64(0); r <= math.MaxUint32; r += 1 << 22 {
		got := Weighted8(uint32(r))
		require.GreaterOrEqual(t, got, prev, "distribution must be monotonic in r")
		prev = got
	}
}

func TestWeighted8Distribution(t *testing.T) {
	var hist [8]int
	const steps = 75 * 1000
	for i := 0; i < steps; i++ {
		r := uint32(uint64(i) * (1 << 32) / steps)
		hist[Weighted8(r)]++
	}
	want := [8]int{10, 10, 10, 10, 9, 9, 9, 8}
	for i, w := range want {
		assert.InDelta(t, w*1000, hist[i], 2, "bucket %d", i)
	}
}

func TestQuadPackRoundTrip(t *testing.T) {
	q := Quad{A: 5, B: 64 + 17, C: 128 + 63, D: 255}
	assert.Equal(t, q, Unpack(q.Pack()))
	assert.Equal(t, uint32(5), q.Pack()&0xff)
}

func TestDeriveIsStable(t *testing.T) {
	w, err := core.WordFromHex("1111111111111111111111111111111111111111111111111111111111111111")
	require.NoError(t, err)

	first := Derive(42, w)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Derive(42, w))
	}
	assert.NotEqual(t, first, Derive(43, w))
}

func TestDeriveCategories(t *testing.T) {
	for id := uint64(0); id < 500; id++ {
		q := Derive(id, core.Word{})
		for c, tr := range q.Traits() {
			assert.Equal(t, uint8(c), Category(tr), "piece %d trait %d", id, tr)
		}
	}
}

func TestZeroWordIsValid(t *testing.T) {
	a := Derive(7, core.Word{})
	b := Derive(7, core.Word{})
	assert.Equal(t, a, b)
}

func TestInCategory(t *testing.T) {
	assert.Equal(t, uint8(0), InCategory(0, 0))
	assert.Equal(t, uint8(127), InCategory(1, 63))
	assert.Equal(t, uint8(192), InCategory(3, 64)) // wraps within category
}

package tickets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/internal/testutil"
)

func TestAppendAndAt(t *testing.T) {
	b := New(testutil.NewStateDB())
	require.NoError(t, b.Append(1, 7, "alice"))
	require.NoError(t, b.Append(1, 7, "bob"))
	require.NoError(t, b.Append(2, 7, "carol"))

	n, err := b.Len(1, 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	p, err := b.At(1, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, "bob", p)

	_, err = b.At(1, 7, 2)
	assert.ErrorIs(t, err, core.ErrNotFound)

	n, _ = b.Len(2, 7)
	assert.Equal(t, uint64(1), n, "levels are separate lists")
}

func TestAppendAllAndCounts(t *testing.T) {
	b := New(testutil.NewStateDB())
	require.NoError(t, b.AppendAll(3, [4]uint8{1, 70, 130, 200}, "alice"))
	require.NoError(t, b.AppendAll(3, [4]uint8{1, 71, 131, 201}, "bob"))

	c, err := b.Counts(3)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), c[1])
	assert.Equal(t, uint64(1), c[70])
	assert.Equal(t, uint64(1), c[201])

	var total uint64
	for _, v := range c {
		total += v
	}
	assert.Equal(t, uint64(8), total)
}

func TestSample(t *testing.T) {
	b := New(testutil.NewStateDB())
	_, ok, err := b.Sample(1, 9, 12345)
	require.NoError(t, err)
	assert.False(t, ok, "empty list yields no winner")

	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, b.Append(1, 9, p))
	}
	p, ok, err := b.Sample(1, 9, 4)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b", p)
}

func TestSampleManyCapsAtListLength(t *testing.T) {
	b := New(testutil.NewStateDB())
	require.NoError(t, b.Append(1, 5, "a"))
	require.NoError(t, b.Append(1, 5, "b"))

	got, err := b.SampleMany(1, 5, []byte("seed"), 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	again, err := b.SampleMany(1, 5, []byte("seed"), 10)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestWalkCoalescesRuns(t *testing.T) {
	b := New(testutil.NewStateDB())
	for _, p := range []string{"a", "a", "b", "a", "c", "c", "c"} {
		require.NoError(t, b.Append(1, 0, p))
	}

	type run struct {
		p string
		n uint64
	}
	var runs []run
	fn := func(p string, n uint64) error {
		runs = append(runs, run{p, n})
		return nil
	}

	next, err := b.Walk(1, 0, 0, 5, fn)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), next)
	assert.Equal(t, []run{{"a", 2}, {"b", 1}, {"a", 1}, {"c", 1}}, runs)

	runs = nil
	next, err = b.Walk(1, 0, next, 5, fn)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), next)
	assert.Equal(t, []run{{"c", 2}}, runs)
}

func TestPruneResumes(t *testing.T) {
	st := testutil.NewStateDB()
	b := New(st)
	require.NoError(t, b.AppendAll(4, [4]uint8{1, 70, 130, 200}, "alice"))
	require.NoError(t, b.AppendAll(4, [4]uint8{1, 71, 131, 201}, "bob"))
	require.NoError(t, b.Append(5, 1, "carol"))

	var (
		c     core.Cursor
		done  bool
		err   error
		steps int
	)
	for !done {
		require.Less(t, steps, 10)
		c, done, err = b.Prune(4, c, 3)
		require.NoError(t, err)
		steps++
	}
	assert.Equal(t, 3, steps, "eight tickets at three per call")

	counts, err := b.Counts(4)
	require.NoError(t, err)
	assert.Equal(t, [256]uint64{}, counts)
	_, err = st.GetTicket(4, 1, 0)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = st.GetTicket(4, 201, 0)
	assert.ErrorIs(t, err, core.ErrNotFound)

	p, err := b.At(5, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, "carol", p, "other levels are kept")

	_, done, err = b.Prune(6, core.Cursor{}, 0)
	require.NoError(t, err)
	assert.True(t, done, "an empty level needs no budget")
}

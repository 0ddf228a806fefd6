package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/internal/testutil"
	"github.com/tolelom/purgegame/storage"
)

func TestSnapshotRevert(t *testing.T) {
	st := testutil.NewStateDB()
	require.NoError(t, st.SetAccount(&core.Account{Address: "alice", Balance: 10}))

	snap, err := st.Snapshot()
	require.NoError(t, err)
	require.NoError(t, st.SetAccount(&core.Account{Address: "alice", Balance: 99}))
	require.NoError(t, st.SetClaimable("bob", 5))
	require.NoError(t, st.DeleteOwner(1))

	require.NoError(t, st.RevertToSnapshot(snap))
	acc, err := st.GetAccount("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), acc.Balance)
	c, err := st.GetClaimable("bob")
	require.NoError(t, err)
	assert.Zero(t, c)

	assert.Error(t, st.RevertToSnapshot(snap), "snapshot consumed")
}

func TestComputeRootCoversBufferAndDB(t *testing.T) {
	db := testutil.NewMemDB()
	a := storage.NewStateDB(db)
	require.NoError(t, a.SetCounter("x", 1))
	require.NoError(t, a.SetTicket(1, 7, 0, "alice"))
	buffered := a.ComputeRoot()
	require.NoError(t, a.Commit())
	assert.Equal(t, buffered, a.ComputeRoot(), "commit does not change the root")

	// Index keys share the DB but are not game state.
	require.NoError(t, db.Set([]byte("idx:owner:piece:alice"), []byte("[1]")))
	assert.Equal(t, buffered, a.ComputeRoot())

	b := testutil.NewStateDB()
	require.NoError(t, b.SetTicket(1, 7, 0, "alice"))
	require.NoError(t, b.SetCounter("x", 1))
	assert.Equal(t, buffered, b.ComputeRoot(), "write order does not matter")

	require.NoError(t, b.SetCounter("x", 2))
	assert.NotEqual(t, buffered, b.ComputeRoot())
}

func TestLevelDBPersistsCommits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")
	db, err := storage.NewLevelDB(path)
	require.NoError(t, err)
	st := storage.NewStateDB(db)
	require.NoError(t, st.SetMeta(&core.Meta{Level: 3, Initialized: true}))
	require.NoError(t, st.SetOwner(5, "carol"))
	require.NoError(t, st.Commit())
	root := st.ComputeRoot()
	require.NoError(t, db.Close())

	db, err = storage.NewLevelDB(path)
	require.NoError(t, err)
	defer db.Close()
	st = storage.NewStateDB(db)
	m, err := st.GetMeta()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), m.Level)
	owner, err := st.GetOwner(5)
	require.NoError(t, err)
	assert.Equal(t, "carol", owner)
	assert.Equal(t, root, st.ComputeRoot())

	_, err = st.GetOwner(6)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

package wallet

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/purgegame/core"
)

func TestKeystoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.json")
	w, err := Generate()
	require.NoError(t, err)
	require.NoError(t, SaveKey(path, "pw", w.PrivKey()))

	priv, err := LoadKey(path, "pw")
	require.NoError(t, err)
	assert.Equal(t, w.PubKey(), New(priv).PubKey())

	_, err = LoadKey(path, "wrong")
	assert.ErrorIs(t, err, ErrBadPassword)
}

func TestLoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keeper.json")
	first, err := LoadOrCreate(path, "pw")
	require.NoError(t, err)
	again, err := LoadOrCreate(path, "pw")
	require.NoError(t, err)
	assert.Equal(t, first.PubKey(), again.PubKey())
}

func TestSignedBuilders(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)

	tx, err := w.Purchase("purge-dev", 3, 300, false, "ally", 7)
	require.NoError(t, err)
	require.NoError(t, tx.Verify())
	assert.Equal(t, core.TxPurchase, tx.Type)
	assert.Equal(t, uint64(300), tx.Value)
	assert.Equal(t, uint64(7), tx.Nonce)

	tx.Value = 1
	assert.Error(t, tx.Verify(), "value is covered by the signature")
}

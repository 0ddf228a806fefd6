package wallet

import (
	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/crypto"
)

// Wallet holds a key pair and provides transaction-building helpers.
type Wallet struct {
	priv crypto.PrivateKey
	pub  crypto.PublicKey
}

// New creates a Wallet from an existing private key.
func New(priv crypto.PrivateKey) *Wallet {
	return &Wallet{priv: priv, pub: priv.Public()}
}

// Generate creates a Wallet with a freshly generated key pair.
func Generate() (*Wallet, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(priv), nil
}

// PrivKey returns the raw private key (handle with care).
func (w *Wallet) PrivKey() crypto.PrivateKey {
	return w.priv
}

// PubKey returns the hex-encoded ed25519 public key, the player's address
// in the game.
func (w *Wallet) PubKey() string {
	return w.pub.Hex()
}

// Address returns the short human-readable address (first 20 bytes of SHA-256(pubkey)).
func (w *Wallet) Address() string {
	return w.pub.Address()
}

// NewTx creates a signed transaction. chainID must match the target node;
// nonce should match the account's current nonce.
func (w *Wallet) NewTx(chainID string, typ core.TxType, nonce, value uint64, payload any) (*core.Transaction, error) {
	tx, err := core.NewTransaction(chainID, typ, w.pub.Hex(), nonce, value, payload)
	if err != nil {
		return nil, err
	}
	tx.Sign(w.priv)
	return tx, nil
}

// Transfer creates a signed native transfer.
func (w *Wallet) Transfer(chainID, to string, amount, nonce uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxTransfer, nonce, 0, core.TransferPayload{
		To:     to,
		Amount: amount,
	})
}

// Advance creates a tick transaction. Budget 0 is the rewarded normal path.
func (w *Wallet) Advance(chainID string, budget uint32, nonce uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxAdvance, nonce, 0, core.AdvancePayload{Budget: budget})
}

// Purchase buys quantity pieces, attaching value native units unless payAlt.
func (w *Wallet) Purchase(chainID string, quantity, value uint64, payAlt bool, referral string, nonce uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxPurchase, nonce, value, core.PurchasePayload{
		Quantity: quantity,
		PayAlt:   payAlt,
		Referral: referral,
	})
}

// PurchaseMap buys quantity MAP units.
func (w *Wallet) PurchaseMap(chainID string, quantity, value uint64, payAlt bool, referral string, nonce uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxPurchaseMap, nonce, value, core.PurchasePayload{
		Quantity: quantity,
		PayAlt:   payAlt,
		Referral: referral,
	})
}

// Burn destroys the given pieces.
func (w *Wallet) Burn(chainID string, ids []uint64, nonce uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxBurn, nonce, 0, core.BurnPayload{IDs: ids})
}

// Claim withdraws winnings to the native balance.
func (w *Wallet) Claim(chainID string, nonce uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxClaim, nonce, 0, struct{}{})
}

// RegisterCode claims a referral code.
func (w *Wallet) RegisterCode(chainID, code string, nonce uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxRegisterCode, nonce, 0, core.RegisterCodePayload{Code: code})
}

// TransferPiece hands piece id to another player.
func (w *Wallet) TransferPiece(chainID string, id uint64, to string, nonce uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxTransferPiece, nonce, 0, core.TransferPiecePayload{ID: id, To: to})
}

package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tolelom/purgegame/crypto"
)

// TxType identifies the kind of operation a transaction performs.
type TxType string

const (
	TxTransfer      TxType = "transfer"
	TxAdvance       TxType = "advance"
	TxPurchase      TxType = "purchase"
	TxPurchaseMap   TxType = "purchase_map"
	TxBurn          TxType = "burn"
	TxClaim         TxType = "claim"
	TxRegisterCode  TxType = "register_code"
	TxTransferPiece TxType = "transfer_piece"
)

// Transaction is the atomic unit of work against the game state.
// From holds the sender's full hex-encoded ed25519 public key (64 chars).
// Value is native currency the sender attaches; the handler must consume it
// exactly or the transaction fails.
// Signature covers all fields except ID and Signature.
type Transaction struct {
	ID        string          `json:"id"`
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"` // hex-encoded ed25519 public key
	Nonce     uint64          `json:"nonce"`
	Value     uint64          `json:"value"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// signingBody holds the fields that are covered by the signature.
type signingBody struct {
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"`
	Nonce     uint64          `json:"nonce"`
	Value     uint64          `json:"value"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Hash returns a deterministic hash of the transaction (sans Signature).
// Returns an empty string if marshalling fails (which cannot happen in practice).
func (tx *Transaction) Hash() string {
	body := signingBody{
		ChainID:   tx.ChainID,
		Type:      tx.Type,
		From:      tx.From,
		Nonce:     tx.Nonce,
		Value:     tx.Value,
		Timestamp: tx.Timestamp,
		Payload:   tx.Payload,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return crypto.Hash(data)
}

// Sign computes the signature and sets ID.
func (tx *Transaction) Sign(priv crypto.PrivateKey) {
	hash := tx.Hash()
	tx.Signature = crypto.Sign(priv, []byte(hash))
	tx.ID = hash
}

// Verify checks the signature and that From is a valid public key.
func (tx *Transaction) Verify() error {
	if tx.From == "" {
		return errors.New("missing from field")
	}
	if err := crypto.VerifyHex(tx.From, []byte(tx.Hash()), tx.Signature); err != nil {
		return fmt.Errorf("tx %s: %w", tx.Type, err)
	}
	return nil
}

// NewTransaction creates an unsigned transaction with the current timestamp.
func NewTransaction(chainID string, typ TxType, from string, nonce, value uint64, payload any) (*Transaction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Transaction{
		ChainID:   chainID,
		Type:      typ,
		From:      from,
		Nonce:     nonce,
		Value:     value,
		Timestamp: time.Now().UnixNano(),
		Payload:   raw,
	}, nil
}

// ---- Payload types ----

// TransferPayload transfers native currency between accounts.
type TransferPayload struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// AdvancePayload drives one tick of the round engine. Budget 0 takes the
// default budget and earns the tick reward; any other value is the
// emergency path.
type AdvancePayload struct {
	Budget uint32 `json:"budget"`
}

// PurchasePayload buys pieces (or MAP units for TxPurchaseMap).
type PurchasePayload struct {
	Quantity uint64 `json:"quantity"`
	PayAlt   bool   `json:"pay_alt"`            // pay with reward tokens instead of native value
	Referral string `json:"referral,omitempty"` // registered referral code
}

// BurnPayload destroys pieces to register tickets.
type BurnPayload struct {
	IDs []uint64 `json:"ids"`
}

// RegisterCodePayload claims a referral code for the sender.
type RegisterCodePayload struct {
	Code string `json:"code"`
}

// TransferPiecePayload moves a piece to a new owner.
type TransferPiecePayload struct {
	ID uint64 `json:"id"`
	To string `json:"to"` // recipient pubkey hex
}

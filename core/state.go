package core

// Account holds a participant's native balance, reward-token balance and
// replay-protection nonce. Address is the hex-encoded ed25519 public key.
type Account struct {
	Address string `json:"address"` // pubkey hex
	Balance uint64 `json:"balance"` // native currency
	Tokens  uint64 `json:"tokens"`  // reward token
	Nonce   uint64 `json:"nonce"`
}

// Piece is a game piece. Traits stay queryable after the piece is burned;
// ownership lives in the piece ledger.
type Piece struct {
	ID     uint64 `json:"id"`
	Level  uint32 `json:"level"`
	Traits uint32 `json:"traits"` // packed trait.Quad
	Burned bool   `json:"burned"`
}

// TraitCounts is the per-level remaining supply of each of the 256 traits.
type TraitCounts [256]uint32

// State is the full game state interface. Implementations must be
// snapshot-able so the executor can roll back failed transactions.
type State interface {
	// Round engine record
	GetMeta() (*Meta, error)
	SetMeta(m *Meta) error

	// Accounts
	GetAccount(address string) (*Account, error)
	SetAccount(account *Account) error

	// Claimable winnings
	GetClaimable(address string) (uint64, error)
	SetClaimable(address string, amount uint64) error

	// Ticket book: append-only list per (level, trait)
	GetTicketLen(level uint32, trait uint8) (uint64, error)
	SetTicketLen(level uint32, trait uint8, n uint64) error
	GetTicket(level uint32, trait uint8, idx uint64) (string, error)
	SetTicket(level uint32, trait uint8, idx uint64, player string) error
	DeleteTicket(level uint32, trait uint8, idx uint64) error
	DeleteTicketLen(level uint32, trait uint8) error

	// Trait remaining supply per level
	GetTraitCounts(level uint32) (*TraitCounts, error)
	SetTraitCounts(level uint32, c *TraitCounts) error

	// Pieces and ownership
	GetPiece(id uint64) (*Piece, error)
	SetPiece(p *Piece) error
	GetOwner(id uint64) (string, error)
	SetOwner(id uint64, owner string) error
	DeleteOwner(id uint64) error

	// Batch queues
	GetQueueEntry(kind QueueKind, idx uint64) (*QueueEntry, error)
	SetQueueEntry(kind QueueKind, idx uint64, e *QueueEntry) error

	// Referrals, leaderboard entrants, trophies, engagement
	GetReferralCode(code string) (string, error)
	SetReferralCode(code, owner string) error
	GetReferralVolume(level uint32, player string) (uint64, error)
	SetReferralVolume(level uint32, player string, v uint64) error
	GetEntrant(level uint32, idx uint64) (string, error)
	SetEntrant(level uint32, idx uint64, player string) error
	GetTrophy(idx uint64) (string, error)
	SetTrophy(idx uint64, player string) error
	GetEngagedDay(player string) (int64, error)
	SetEngagedDay(player string, day int64) error

	// Named monotonic counters owned by collaborators (supplies)
	GetCounter(name string) (uint64, error)
	SetCounter(name string, v uint64) error

	// Snapshot / rollback / commit
	Snapshot() (int, error)
	RevertToSnapshot(id int) error
	// ComputeRoot returns the deterministic state root from the current write
	// buffer without flushing.
	ComputeRoot() string
	// Commit flushes the write buffer to the underlying DB and clears it.
	Commit() error
}

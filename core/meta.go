package core

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Phase is the round engine's current phase. Exactly one is active.
type Phase uint8

const (
	PhaseSettlement Phase = iota // pregame / previous-round settlement
	PhasePurchase
	PhaseBurn
	PhaseShutdown // terminal, set by the liveness valve
)

func (p Phase) String() string {
	switch p {
	case PhaseSettlement:
		return "settlement"
	case PhasePurchase:
		return "purchase"
	case PhaseBurn:
		return "burn"
	case PhaseShutdown:
		return "shutdown"
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// Word is a 256-bit randomness word. The zero word is a valid value.
type Word [32]byte

// Lane returns the i-th big-endian 64-bit lane of w (0..3).
func (w Word) Lane(i int) uint64 {
	return binary.BigEndian.Uint64(w[i*8 : i*8+8])
}

// Hex returns the lowercase hex encoding of w.
func (w Word) Hex() string { return hex.EncodeToString(w[:]) }

func (w Word) MarshalJSON() ([]byte, error) { return json.Marshal(w.Hex()) }

func (w *Word) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := WordFromHex(s)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// WordFromHex decodes a 64-char hex string into a Word.
func WordFromHex(s string) (Word, error) {
	var w Word
	b, err := hex.DecodeString(s)
	if err != nil {
		return w, fmt.Errorf("invalid word hex: %w", err)
	}
	if len(b) != len(w) {
		return w, fmt.Errorf("word must be %d bytes, got %d", len(w), len(b))
	}
	copy(w[:], b)
	return w, nil
}

// Pools holds every named bucket of the base currency. FundingTarget is a
// threshold, the rest are balances.
type Pools struct {
	Live           uint64 `json:"live"`
	NextRound      uint64 `json:"next_round"`
	FundingTarget  uint64 `json:"funding_target"`
	Carryover      uint64 `json:"carryover"`
	Reserve        uint64 `json:"reserve"` // side distributions set aside at round end
	ClaimableTotal uint64 `json:"claimable_total"`
	TotalAssets    uint64 `json:"total_assets"` // native units held by the game
}

// Committed is the sum of all balance pools.
func (p Pools) Committed() uint64 {
	return p.Live + p.NextRound + p.Carryover + p.Reserve + p.ClaimableTotal
}

// RNGSession tracks the single outstanding randomness request.
type RNGSession struct {
	RequestID   string `json:"request_id"`
	Requested   bool   `json:"requested"`
	RequestedAt int64  `json:"requested_at"` // unix seconds
	Fulfilled   bool   `json:"fulfilled"`
	Word        Word   `json:"word"`
	Consumed    bool   `json:"consumed"`
	Day         int64  `json:"day"` // day index of the last consumption
}

// Locked reports whether a request is in flight.
func (r RNGSession) Locked() bool { return r.Requested && !r.Fulfilled }

// Cursor is a resumable position inside a batch job: queue entry index and
// units already processed within that entry.
type Cursor struct {
	Index  uint64 `json:"index"`
	Offset uint64 `json:"offset"`
}

// QueueKind names a persisted batch queue.
type QueueKind string

const (
	QueueMint QueueKind = "mint"
	QueueMap  QueueKind = "map"
)

// QueueEntry is one queued purchase. FirstID is the first reserved piece id
// (mint queue) or the first MAP unit index (map queue).
type QueueEntry struct {
	Owner    string `json:"owner"`
	FirstID  uint64 `json:"first_id"`
	Quantity uint64 `json:"quantity"`
}

// QueueState is the length and drain cursor of a queue.
type QueueState struct {
	Len    uint64 `json:"len"`
	Cursor Cursor `json:"cursor"`
}

// Pending reports whether entries remain to be processed.
func (q QueueState) Pending() bool { return q.Cursor.Index < q.Len }

// SubLottery kinds run ahead of the map jackpot.
const (
	SubLotteryNone uint8 = iota
	SubLotteryTwenty
	SubLotteryFifth
)

// MapJackpotState tracks the multi-tick map jackpot at the purchase→burn
// boundary.
type MapJackpotState struct {
	Pending   bool   `json:"pending"`
	Kind      uint8  `json:"kind"` // sub-lottery in progress
	Done      uint8  `json:"done"` // bitmask of completed sub-lottery kinds
	Cursor    uint64 `json:"cursor"`
	Winners   uint64 `json:"winners"`
	PerWinner uint64 `json:"per_winner"`
}

// Settlement stages, driven one slice per tick.
const (
	StagePayout uint8 = iota
	StageSide
	StageCleanup
)

// Extermination is the round-end split computed when a level ends.
type Extermination struct {
	HasTrait          bool   `json:"has_trait"`
	Trait             uint8  `json:"trait"`
	Exterminator      string `json:"exterminator"`
	TicketCount       uint64 `json:"ticket_count"`
	PayPerTicket      uint64 `json:"pay_per_ticket"`
	ExterminatorShare uint64 `json:"exterminator_share"`
	AffiliateShare    uint64 `json:"affiliate_share"`
	TrophyShare       uint64 `json:"trophy_share"`
}

// SettlementState is the resumable progress of the previous round's payout.
type SettlementState struct {
	Stage  uint8         `json:"stage"`
	Cursor uint64        `json:"cursor"`
	Prune  Cursor        `json:"prune"` // ticket removal: trait index, ticket offset
	Level  uint32        `json:"level"` // level being settled
	Result Extermination `json:"result"`
}

// LeaderEntry is one slot of the per-level affiliate leaderboard.
type LeaderEntry struct {
	Player string `json:"player"`
	Volume uint64 `json:"volume"`
}

// Meta is the round engine's scalar state. Bulky collections (tickets,
// queues, pieces) live in keyed records addressed from here.
type Meta struct {
	Initialized    bool       `json:"initialized"`
	Level          uint32     `json:"level"`
	Phase          Phase      `json:"phase"`
	Pools          Pools      `json:"pools"`
	RNG            RNGSession `json:"rng"`
	LevelStartedAt int64      `json:"level_started_at"`
	LevelSnapshot  uint64     `json:"level_snapshot"` // effective pool at funding finalisation

	NextPieceID uint64     `json:"next_piece_id"`
	MapUnits    uint64     `json:"map_units"`
	MintQueue   QueueState `json:"mint_queue"`
	MapQueue    QueueState `json:"map_queue"`

	EarlyMask     uint8           `json:"early_mask"`
	EarlyPaid     uint8           `json:"early_paid"`
	MapJackpot    MapJackpotState `json:"map_jackpot"`
	DailyJackpots uint32          `json:"daily_jackpots"`
	DailyBurns    TraitCounts     `json:"daily_burns"`

	PrevHasTrait bool  `json:"prev_has_trait"`
	PrevTrait    uint8 `json:"prev_trait"`

	Settlement SettlementState `json:"settlement"`
	Leaders    [3]LeaderEntry  `json:"leaders"`
	Entrants   uint64          `json:"entrants"`
	Trophies   uint64          `json:"trophies"`
}

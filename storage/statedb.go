package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/crypto"
)

// registerPrefix records a state-key prefix into statePrefixes so that
// ComputeRoot() always covers it.  All prefix constants must be declared
// via this function.
func registerPrefix(p string) string {
	statePrefixes = append(statePrefixes, p)
	return p
}

// statePrefixes is populated automatically by registerPrefix() below.
var statePrefixes []string

var (
	keyMeta         = registerPrefix("meta")
	prefixAccount   = registerPrefix("acct:")
	prefixClaim     = registerPrefix("claim:")
	prefixTicketLen = registerPrefix("tixn:")
	prefixTicket    = registerPrefix("tix:")
	prefixTraits    = registerPrefix("traits:")
	prefixPiece     = registerPrefix("piece:")
	prefixOwner     = registerPrefix("owner:")
	prefixQueue     = registerPrefix("queue:")
	prefixRefCode   = registerPrefix("refcode:")
	prefixRefVolume = registerPrefix("refvol:")
	prefixEntrant   = registerPrefix("entrant:")
	prefixTrophy    = registerPrefix("trophy:")
	prefixEngaged   = registerPrefix("engaged:")
	prefixCounter   = registerPrefix("ctr:")
)

type stateSnapshot struct {
	dirty   map[string][]byte
	deleted map[string]bool
}

// StateDB implements core.State on top of a DB with in-memory write buffer,
// snapshot/rollback, and deterministic state-root computation.
type StateDB struct {
	db        DB
	dirty     map[string][]byte
	deleted   map[string]bool
	snapshots []stateSnapshot
}

// NewStateDB creates a StateDB backed by db.
func NewStateDB(db DB) *StateDB {
	return &StateDB{
		db:      db,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

// ---- internal helpers ----

func (s *StateDB) get(key string) ([]byte, error) {
	if s.deleted[key] {
		return nil, core.ErrNotFound
	}
	if v, ok := s.dirty[key]; ok {
		return v, nil
	}
	return s.db.Get([]byte(key))
}

func (s *StateDB) set(key string, val []byte) {
	delete(s.deleted, key)
	s.dirty[key] = val
}

func (s *StateDB) del(key string) {
	delete(s.dirty, key)
	s.deleted[key] = true
}

func (s *StateDB) getJSON(key string, v any) error {
	data, err := s.get(key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *StateDB) setJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.set(key, data)
	return nil
}

func (s *StateDB) getUint(key string) (uint64, error) {
	data, err := s.get(key)
	if errors.Is(err, core.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt counter at %q", key)
	}
	return binary.BigEndian.Uint64(data), nil
}

func (s *StateDB) setUint(key string, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	s.set(key, buf[:])
}

func (s *StateDB) getString(key string) (string, error) {
	data, err := s.get(key)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ---- Meta ----

// GetMeta returns the engine record, or a zero Meta on a fresh database.
func (s *StateDB) GetMeta() (*core.Meta, error) {
	var m core.Meta
	err := s.getJSON(keyMeta, &m)
	if errors.Is(err, core.ErrNotFound) {
		return &core.Meta{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *StateDB) SetMeta(m *core.Meta) error {
	return s.setJSON(keyMeta, m)
}

// ---- Account ----

func (s *StateDB) GetAccount(address string) (*core.Account, error) {
	var acc core.Account
	err := s.getJSON(prefixAccount+address, &acc)
	if errors.Is(err, core.ErrNotFound) {
		return &core.Account{Address: address}, nil // zero-value account
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *StateDB) SetAccount(acc *core.Account) error {
	return s.setJSON(prefixAccount+acc.Address, acc)
}

// ---- Claimable ----

func (s *StateDB) GetClaimable(address string) (uint64, error) {
	return s.getUint(prefixClaim + address)
}

func (s *StateDB) SetClaimable(address string, amount uint64) error {
	s.setUint(prefixClaim+address, amount)
	return nil
}

// ---- Tickets ----

func ticketListKey(level uint32, trait uint8) string {
	return fmt.Sprintf("%010d:%03d", level, trait)
}

func (s *StateDB) GetTicketLen(level uint32, trait uint8) (uint64, error) {
	return s.getUint(prefixTicketLen + ticketListKey(level, trait))
}

func (s *StateDB) SetTicketLen(level uint32, trait uint8, n uint64) error {
	s.setUint(prefixTicketLen+ticketListKey(level, trait), n)
	return nil
}

func (s *StateDB) GetTicket(level uint32, trait uint8, idx uint64) (string, error) {
	return s.getString(fmt.Sprintf("%s%s:%d", prefixTicket, ticketListKey(level, trait), idx))
}

func (s *StateDB) SetTicket(level uint32, trait uint8, idx uint64, player string) error {
	s.set(fmt.Sprintf("%s%s:%d", prefixTicket, ticketListKey(level, trait), idx), []byte(player))
	return nil
}

func (s *StateDB) DeleteTicket(level uint32, trait uint8, idx uint64) error {
	s.del(fmt.Sprintf("%s%s:%d", prefixTicket, ticketListKey(level, trait), idx))
	return nil
}

func (s *StateDB) DeleteTicketLen(level uint32, trait uint8) error {
	s.del(prefixTicketLen + ticketListKey(level, trait))
	return nil
}

// ---- Trait counts ----

// GetTraitCounts returns the level's remaining supply, all zero if unset.
func (s *StateDB) GetTraitCounts(level uint32) (*core.TraitCounts, error) {
	var c core.TraitCounts
	err := s.getJSON(fmt.Sprintf("%s%d", prefixTraits, level), &c)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}
	return &c, nil
}

func (s *StateDB) SetTraitCounts(level uint32, c *core.TraitCounts) error {
	return s.setJSON(fmt.Sprintf("%s%d", prefixTraits, level), c)
}

// ---- Pieces ----

func (s *StateDB) GetPiece(id uint64) (*core.Piece, error) {
	var p core.Piece
	if err := s.getJSON(fmt.Sprintf("%s%d", prefixPiece, id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *StateDB) SetPiece(p *core.Piece) error {
	return s.setJSON(fmt.Sprintf("%s%d", prefixPiece, p.ID), p)
}

func (s *StateDB) GetOwner(id uint64) (string, error) {
	return s.getString(fmt.Sprintf("%s%d", prefixOwner, id))
}

func (s *StateDB) SetOwner(id uint64, owner string) error {
	s.set(fmt.Sprintf("%s%d", prefixOwner, id), []byte(owner))
	return nil
}

func (s *StateDB) DeleteOwner(id uint64) error {
	s.del(fmt.Sprintf("%s%d", prefixOwner, id))
	return nil
}

// ---- Queues ----

func (s *StateDB) GetQueueEntry(kind core.QueueKind, idx uint64) (*core.QueueEntry, error) {
	var e core.QueueEntry
	if err := s.getJSON(fmt.Sprintf("%s%s:%d", prefixQueue, kind, idx), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *StateDB) SetQueueEntry(kind core.QueueKind, idx uint64, e *core.QueueEntry) error {
	return s.setJSON(fmt.Sprintf("%s%s:%d", prefixQueue, kind, idx), e)
}

// ---- Referrals / entrants / trophies / engagement ----

func (s *StateDB) GetReferralCode(code string) (string, error) {
	return s.getString(prefixRefCode + code)
}

func (s *StateDB) SetReferralCode(code, owner string) error {
	s.set(prefixRefCode+code, []byte(owner))
	return nil
}

func (s *StateDB) GetReferralVolume(level uint32, player string) (uint64, error) {
	return s.getUint(fmt.Sprintf("%s%d:%s", prefixRefVolume, level, player))
}

func (s *StateDB) SetReferralVolume(level uint32, player string, v uint64) error {
	s.setUint(fmt.Sprintf("%s%d:%s", prefixRefVolume, level, player), v)
	return nil
}

func (s *StateDB) GetEntrant(level uint32, idx uint64) (string, error) {
	return s.getString(fmt.Sprintf("%s%d:%d", prefixEntrant, level, idx))
}

func (s *StateDB) SetEntrant(level uint32, idx uint64, player string) error {
	s.set(fmt.Sprintf("%s%d:%d", prefixEntrant, level, idx), []byte(player))
	return nil
}

func (s *StateDB) GetTrophy(idx uint64) (string, error) {
	return s.getString(fmt.Sprintf("%s%d", prefixTrophy, idx))
}

func (s *StateDB) SetTrophy(idx uint64, player string) error {
	s.set(fmt.Sprintf("%s%d", prefixTrophy, idx), []byte(player))
	return nil
}

// GetEngagedDay returns the last day index the player interacted on, or -1.
func (s *StateDB) GetEngagedDay(player string) (int64, error) {
	data, err := s.get(prefixEngaged + player)
	if errors.Is(err, core.ErrNotFound) {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt engagement record for %s", player)
	}
	return int64(binary.BigEndian.Uint64(data)), nil
}

func (s *StateDB) SetEngagedDay(player string, day int64) error {
	s.setUint(prefixEngaged+player, uint64(day))
	return nil
}

// ---- Counters ----

func (s *StateDB) GetCounter(name string) (uint64, error) {
	return s.getUint(prefixCounter + name)
}

func (s *StateDB) SetCounter(name string, v uint64) error {
	s.setUint(prefixCounter+name, v)
	return nil
}

// ---- Snapshot / Rollback / Commit ----

// Snapshot saves the current write buffer and returns a snapshot ID.
func (s *StateDB) Snapshot() (int, error) {
	snap := stateSnapshot{
		dirty:   make(map[string][]byte, len(s.dirty)),
		deleted: make(map[string]bool, len(s.deleted)),
	}
	for k, v := range s.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		snap.dirty[k] = cp
	}
	for k, v := range s.deleted {
		snap.deleted[k] = v
	}
	s.snapshots = append(s.snapshots, snap)
	return len(s.snapshots) - 1, nil
}

// RevertToSnapshot restores the write buffer to a previously saved snapshot.
// The snapshot maps are deep-copied so that subsequent writes cannot corrupt them.
func (s *StateDB) RevertToSnapshot(id int) error {
	if id < 0 || id >= len(s.snapshots) {
		return fmt.Errorf("invalid snapshot id %d", id)
	}
	snap := s.snapshots[id]

	dirty := make(map[string][]byte, len(snap.dirty))
	for k, v := range snap.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		dirty[k] = cp
	}
	deleted := make(map[string]bool, len(snap.deleted))
	for k, v := range snap.deleted {
		deleted[k] = v
	}

	s.dirty = dirty
	s.deleted = deleted
	s.snapshots = s.snapshots[:id]
	return nil
}

// ComputeRoot returns the deterministic hash of the complete game state.
// It merges all persisted entries (scanned from DB by the known state
// prefixes) with the current write buffer, then hashes the sorted key-value
// pairs using length-prefix encoding.  It does NOT flush or modify state.
func (s *StateDB) ComputeRoot() string {
	merged := make(map[string][]byte)
	for _, prefix := range statePrefixes {
		it := s.db.NewIterator([]byte(prefix))
		for it.Next() {
			k := string(it.Key())
			v := make([]byte, len(it.Value()))
			copy(v, it.Value())
			merged[k] = v
		}
		it.Release()
	}
	for k, v := range s.dirty {
		merged[k] = v
	}
	for k := range s.deleted {
		delete(merged, k)
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	var lenBuf [4]byte
	for _, k := range keys {
		v := merged[k]
		kb := []byte(k)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(kb)))
		buf.Write(lenBuf[:])
		buf.Write(kb)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
		buf.Write(lenBuf[:])
		buf.Write(v)
	}
	return crypto.Hash(buf.Bytes())
}

// Commit atomically flushes the write buffer to the underlying DB via a
// Batch and then clears it.
func (s *StateDB) Commit() error {
	batch := s.db.NewBatch()
	for k, v := range s.dirty {
		batch.Set([]byte(k), v)
	}
	for k := range s.deleted {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.dirty = make(map[string][]byte)
	s.deleted = make(map[string]bool)
	s.snapshots = nil
	return nil
}

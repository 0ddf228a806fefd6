// Package trait maps random seeds to the 256 trait identifiers and packs the
// four traits of a piece into one integer.
//
// Traits are split into four categories of 64. Within a category a trait id
// is (bucket << 3) | sub, where bucket and sub are each drawn from the same
// piecewise weighted distribution over 0..7, so low buckets are slightly more
// common than high ones.
package trait

import (
	"encoding/binary"

	"github.com/tolelom/purgegame/core"
	"github.com/tolelom/purgegame/crypto"
)

// Count is the size of the trait space.
const Count = 256

// Categories is the number of trait categories; each holds PerCategory traits.
const (
	Categories  = 4
	PerCategory = Count / Categories
)

// weightScale and weightBounds define the piecewise distribution: a 32-bit
// value is scaled into [0, 75) and bucketed at these upper bounds.
const weightScale = 75

var weightBounds = [7]uint32{10, 20, 30, 40, 49, 58, 67}

// Weighted8 maps a 32-bit random value to 0..7 using the fixed weights
// 10,10,10,10,9,9,9,8 (out of 75).
func Weighted8(r uint32) uint8 {
	scaled := uint32((uint64(r) * weightScale) >> 32)
	for i, b := range weightBounds {
		if scaled < b {
			return uint8(i)
		}
	}
	return 7
}

// DeriveTrait maps a 64-bit random value to a trait within one category
// (0..63): the low half picks the bucket, the high half the sub-index.
func DeriveTrait(r uint64) uint8 {
	return Weighted8(uint32(r))<<3 | Weighted8(uint32(r>>32))
}

// Category returns the category (0..3) of trait t.
func Category(t uint8) uint8 { return t >> 6 }

// InCategory returns the absolute trait id for local index i in category c.
func InCategory(c, i uint8) uint8 { return c<<6 | (i & (PerCategory - 1)) }

// Quad is the four traits of one piece, one per category.
type Quad struct {
	A uint8 // 0..63
	B uint8 // 64..127
	C uint8 // 128..191
	D uint8 // 192..255
}

// Pack serialises q into one integer, one byte per trait, A lowest.
func (q Quad) Pack() uint32 {
	return uint32(q.A) | uint32(q.B)<<8 | uint32(q.C)<<16 | uint32(q.D)<<24
}

// Unpack is the inverse of Pack.
func Unpack(v uint32) Quad {
	return Quad{A: uint8(v), B: uint8(v >> 8), C: uint8(v >> 16), D: uint8(v >> 24)}
}

// Traits returns the four trait ids in category order.
func (q Quad) Traits() [4]uint8 { return [4]uint8{q.A, q.B, q.C, q.D} }

// FromRandom builds a Quad from a 256-bit random value, one big-endian
// 64-bit lane per category.
func FromRandom(h [32]byte) Quad {
	lane := func(i int) uint64 { return binary.BigEndian.Uint64(h[i*8 : i*8+8]) }
	return Quad{
		A: DeriveTrait(lane(0)),
		B: DeriveTrait(lane(1)) | 64,
		C: DeriveTrait(lane(2)) | 128,
		D: DeriveTrait(lane(3)) | 192,
	}
}

// Derive assigns the traits of piece id under randomness word w:
// keccak256(be256(id) || w). The zero word is a valid input and yields a
// fixed pattern per id.
func Derive(id uint64, w core.Word) Quad {
	var idBuf [32]byte
	binary.BigEndian.PutUint64(idBuf[24:], id)
	return FromRandom(crypto.Keccak256(idBuf[:], w[:]))
}

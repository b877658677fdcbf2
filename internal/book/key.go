package book

import (
	"encoding/binary"

	"clob_go/pkg/px"
)

// OrderKey is the 128-bit composite sort key of a resting order. The program
// packs the price into the high 64 bits and a sequence number into the low 64
// bits. Holding the halves as two uint64 keeps decoding exact over the whole
// range; no float ever touches a key.
type OrderKey struct {
	Lo uint64 // sequence number
	Hi uint64 // price lots
}

// KeyFromBytes decodes a 16-byte little-endian u128 key.
func KeyFromBytes(b [16]byte) OrderKey {
	return OrderKey{
		Lo: binary.LittleEndian.Uint64(b[0:8]),
		Hi: binary.LittleEndian.Uint64(b[8:16]),
	}
}

// Bytes re-encodes the key. KeyFromBytes(k.Bytes()) == k for any key.
func (k OrderKey) Bytes() [16]byte {
	var b [16]byte
	binary.LittleEndian.PutUint64(b[0:8], k.Lo)
	binary.LittleEndian.PutUint64(b[8:16], k.Hi)
	return b
}

// Price extracts the price component (key >> 64).
func (k OrderKey) Price() px.PriceLots {
	return px.PriceLots(k.Hi)
}

// Seq extracts the sequence component (key & (2^64 - 1)).
func (k OrderKey) Seq() uint64 {
	return k.Lo
}

// LeafOrderRecord is one resting order decoded from a book side account.
type LeafOrderRecord struct {
	Key      OrderKey
	Quantity int64 // base lots, >= 0
}

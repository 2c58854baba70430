// Package store is a bbolt-backed typed key/value adapter providing the
// ACID read/write transaction discipline spec.md §4.1 requires: one
// writer at a time, MVCC snapshots for concurrent readers, and atomic
// commit-or-discard per write transaction. It implements the 12 named
// tables from spec.md §6 plus a per-block undo journal for reorg support.
package store

import (
	"encoding/binary"

	"github.com/octobocto/bip300301-enforcer/types"
)

// unitKey is the fixed single-byte encoding for the unit-keyed singleton
// tables (current_chain_tip, current_block_height), preserved exactly so
// on-disk layout stays compatible with stores that disallow zero-length
// keys (spec.md §9).
const unitKeyByte = 0x69

var unitKey = []byte{unitKeyByte}

func encodeSidechainNumber(n types.SidechainNumber) []byte {
	return []byte{byte(n)}
}

func decodeSidechainNumber(b []byte) types.SidechainNumber {
	return types.SidechainNumber(b[0])
}

func encodeHash256(h types.Hash256) []byte {
	return append([]byte(nil), h[:]...)
}

func decodeHash256(b []byte) types.Hash256 {
	var h types.Hash256
	copy(h[:], b)
	return h
}

func encodeU32(v uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return buf[:]
}

func decodeU32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

func encodeU64(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}

func decodeU64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// encodeSlotSeqKey encodes a (slot, sequence_number) composite key for
// the treasury-UTXO table. Sequence is big-endian so iteration order
// within a slot's key range matches sequence order (spec.md I2 requires
// a dense, ordered prefix).
func encodeSlotSeqKey(slot types.SidechainNumber, seq uint64) []byte {
	buf := make([]byte, 9)
	buf[0] = byte(slot)
	binary.BigEndian.PutUint64(buf[1:], seq)
	return buf
}

func decodeSlotSeqKey(b []byte) (types.SidechainNumber, uint64) {
	return types.SidechainNumber(b[0]), binary.BigEndian.Uint64(b[1:])
}

// SlotKey, HashKey, SlotSeqKey and UnitKey expose this package's key
// encodings to callers (the drivechain engine) that need to build undo
// journal keys matching the bucket layout without re-deriving the format.
func SlotKey(n types.SidechainNumber) []byte { return encodeSidechainNumber(n) }
func HashKey(h types.Hash256) []byte         { return encodeHash256(h) }
func SlotSeqKey(slot types.SidechainNumber, seq uint64) []byte {
	return encodeSlotSeqKey(slot, seq)
}
func UnitKey() []byte { return unitKey }

// HeightKey encodes a block height key for the accepted-bmm-hashes table.
func HeightKey(height uint32) []byte { return encodeU32(height) }

// slotSeqRangeStart/End bound the iteration range for one slot's
// treasury-UTXO entries.
func slotSeqRangeStart(slot types.SidechainNumber) []byte {
	return encodeSlotSeqKey(slot, 0)
}

func slotSeqRangeEnd(slot types.SidechainNumber) []byte {
	return encodeSlotSeqKey(slot, ^uint64(0))
}

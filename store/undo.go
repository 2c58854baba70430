package store

import (
	"encoding/binary"
	"fmt"

	"github.com/octobocto/bip300301-enforcer/types"
)

// Bucket tags identify which table an UndoKV entry belongs to. Grounded on
// the teacher's node/store/undo.go UndoRecord{Spent, Created} shape, but
// generalized: the teacher only ever undoes one table (the UTXO set), while
// a drivechain block touches up to a dozen tables per connect, so instead of
// one UndoSpent/UndoCreated pair per table this journal records a single
// flat list of raw key/prior-value deltas tagged by bucket.
type BucketTag byte

const (
	TagDescriptionHashToSidechain BucketTag = iota + 1
	TagSlotToSidechain
	TagSlotToPendingM6ids
	TagSlotToCtip
	TagSlotToTreasuryUtxoCount
	TagSlotSeqToTreasuryUtxo
	TagBlockHashToDeposits
	TagBlockHashToBlockInfo
	TagBlockHashToHeaderInfo
	TagCurrentChainTip
	TagCurrentBlockHeight
	TagBmmAcceptedByHeight
)

func bucketForTag(tag BucketTag) []byte {
	switch tag {
	case TagDescriptionHashToSidechain:
		return bucketDescriptionHashToSidechain
	case TagSlotToSidechain:
		return bucketSlotToSidechain
	case TagSlotToPendingM6ids:
		return bucketSlotToPendingM6ids
	case TagSlotToCtip:
		return bucketSlotToCtip
	case TagSlotToTreasuryUtxoCount:
		return bucketSlotToTreasuryUtxoCount
	case TagSlotSeqToTreasuryUtxo:
		return bucketSlotSeqToTreasuryUtxo
	case TagBlockHashToDeposits:
		return bucketBlockHashToDeposits
	case TagBlockHashToBlockInfo:
		return bucketBlockHashToBlockInfo
	case TagBlockHashToHeaderInfo:
		return bucketBlockHashToHeaderInfo
	case TagCurrentChainTip:
		return bucketCurrentChainTip
	case TagCurrentBlockHeight:
		return bucketCurrentBlockHeight
	case TagBmmAcceptedByHeight:
		return bucketBmmAcceptedByHeight
	default:
		return nil
	}
}

// UndoKV records the prior state of one key, captured immediately before a
// mutation. HadPrior false means the key did not exist before the mutation
// (so undoing it means deleting the key); HadPrior true means PriorValue
// must be restored verbatim.
type UndoKV struct {
	Tag        BucketTag
	Key        []byte
	HadPrior   bool
	PriorValue []byte
}

// UndoRecord is the per-block undo journal entry: every key this block's
// connection touched, in the order it was touched, paired with what to
// restore on disconnect. Replaying Entries in reverse order makes
// disconnect an exact inverse of connect, matching spec.md I7.
type UndoRecord struct {
	Entries []UndoKV
}

// SnapshotBefore captures the current value of (bucketName, key) as an
// UndoKV and appends it to rec, before the caller goes on to mutate that
// key. Called by the Block Connector once per table write so the block's
// undo journal can restore the exact prior state on disconnect.
func (t *Txn) SnapshotBefore(rec *UndoRecord, tag BucketTag, key []byte) {
	b := t.bucket(bucketForTag(tag))
	raw := b.Get(key)
	entry := UndoKV{Tag: tag, Key: append([]byte(nil), key...)}
	if raw != nil {
		entry.HadPrior = true
		entry.PriorValue = append([]byte(nil), raw...)
	}
	rec.Entries = append(rec.Entries, entry)
}

// ApplyUndo replays rec's entries in reverse, restoring each key's prior
// value or deleting it if it did not previously exist.
func (t *Txn) ApplyUndo(rec UndoRecord) error {
	for i := len(rec.Entries) - 1; i >= 0; i-- {
		e := rec.Entries[i]
		name := bucketForTag(e.Tag)
		if name == nil {
			return errCorrupt("undo: unknown bucket tag")
		}
		b := t.bucket(name)
		if e.HadPrior {
			if err := b.Put(e.Key, e.PriorValue); err != nil {
				return errIO("undo: restore failed", err)
			}
		} else {
			if err := b.Delete(e.Key); err != nil {
				return errIO("undo: delete failed", err)
			}
		}
	}
	return nil
}

func (t *Txn) PutUndo(blockHash types.Hash256, rec UndoRecord) error {
	b := t.bucket(bucketUndo)
	buf, err := encodeUndoRecord(rec)
	if err != nil {
		return err
	}
	if err := b.Put(encodeHash256(blockHash), buf); err != nil {
		return errIO("put undo record failed", err)
	}
	return nil
}

func (t *Txn) GetUndo(blockHash types.Hash256) (UndoRecord, bool, error) {
	b := t.bucket(bucketUndo)
	raw := b.Get(encodeHash256(blockHash))
	if raw == nil {
		return UndoRecord{}, false, nil
	}
	rec, err := decodeUndoRecord(raw)
	if err != nil {
		return UndoRecord{}, false, err
	}
	return rec, true, nil
}

func (t *Txn) DeleteUndo(blockHash types.Hash256) error {
	b := t.bucket(bucketUndo)
	if err := b.Delete(encodeHash256(blockHash)); err != nil {
		return errIO("delete undo record failed", err)
	}
	return nil
}

// encodeUndoRecord/decodeUndoRecord follow the teacher's undo.go layout:
// a u32le count followed by fixed/length-prefixed entries.
//
// Layout:
//
//	entry_count u32le
//	  (tag u8 | key_len u32le | key_bytes | had_prior u8 | [prior_len u32le | prior_bytes]) * entry_count
func encodeUndoRecord(rec UndoRecord) ([]byte, error) {
	if len(rec.Entries) > 0xffffffff {
		return nil, fmt.Errorf("undo: too many entries")
	}
	out := make([]byte, 0, 4+len(rec.Entries)*16)
	var tmp4 [4]byte
	binary.LittleEndian.PutUint32(tmp4[:], uint32(len(rec.Entries)))
	out = append(out, tmp4[:]...)

	for _, e := range rec.Entries {
		out = append(out, byte(e.Tag))
		binary.LittleEndian.PutUint32(tmp4[:], uint32(len(e.Key)))
		out = append(out, tmp4[:]...)
		out = append(out, e.Key...)
		if e.HadPrior {
			out = append(out, 1)
			binary.LittleEndian.PutUint32(tmp4[:], uint32(len(e.PriorValue)))
			out = append(out, tmp4[:]...)
			out = append(out, e.PriorValue...)
		} else {
			out = append(out, 0)
		}
	}
	return out, nil
}

func decodeUndoRecord(b []byte) (UndoRecord, error) {
	if len(b) < 4 {
		return UndoRecord{}, fmt.Errorf("undo: truncated")
	}
	off := 0
	readU32 := func() (uint32, error) {
		if off+4 > len(b) {
			return 0, fmt.Errorf("undo: truncated u32")
		}
		v := binary.LittleEndian.Uint32(b[off : off+4])
		off += 4
		return v, nil
	}

	count, err := readU32()
	if err != nil {
		return UndoRecord{}, err
	}
	entries := make([]UndoKV, 0, count)
	for i := uint32(0); i < count; i++ {
		if off+1 > len(b) {
			return UndoRecord{}, fmt.Errorf("undo: truncated tag")
		}
		tag := BucketTag(b[off])
		off++
		keyLen, err := readU32()
		if err != nil {
			return UndoRecord{}, err
		}
		if off+int(keyLen) > len(b) {
			return UndoRecord{}, fmt.Errorf("undo: truncated key")
		}
		key := append([]byte(nil), b[off:off+int(keyLen)]...)
		off += int(keyLen)

		if off+1 > len(b) {
			return UndoRecord{}, fmt.Errorf("undo: truncated had_prior")
		}
		hadPrior := b[off] != 0
		off++

		var prior []byte
		if hadPrior {
			priorLen, err := readU32()
			if err != nil {
				return UndoRecord{}, err
			}
			if off+int(priorLen) > len(b) {
				return UndoRecord{}, fmt.Errorf("undo: truncated prior value")
			}
			prior = append([]byte(nil), b[off:off+int(priorLen)]...)
			off += int(priorLen)
		}

		entries = append(entries, UndoKV{Tag: tag, Key: key, HadPrior: hadPrior, PriorValue: prior})
	}
	if off != len(b) {
		return UndoRecord{}, fmt.Errorf("undo: trailing bytes")
	}
	return UndoRecord{Entries: entries}, nil
}

package store

import (
	"bytes"

	"github.com/octobocto/bip300301-enforcer/types"
	"github.com/octobocto/bip300301-enforcer/wire"
)

// --- description_hash_to_sidechain (proposals) ---

func (t *Txn) GetSidechainProposal(descHash types.Hash256) (types.SidechainProposal, bool, error) {
	return genericTryGet(t, bucketDescriptionHashToSidechain, descHash, encodeHash256, decodeSidechainProposal)
}

func (t *Txn) PutSidechainProposal(descHash types.Hash256, p types.SidechainProposal) error {
	return genericPut(t, bucketDescriptionHashToSidechain, descHash, p, encodeHash256, encodeSidechainProposal)
}

func (t *Txn) DeleteSidechainProposal(descHash types.Hash256) error {
	return genericDelete(t, bucketDescriptionHashToSidechain, descHash, encodeHash256)
}

// IterateSidechainProposals visits every pending proposal. Order is
// bbolt's natural key order (by description hash), which is adequate
// here since callers (the expiry sweep) only need to visit every entry
// once per block, not in any particular order.
func (t *Txn) IterateSidechainProposals(fn func(descHash types.Hash256, p types.SidechainProposal) error) error {
	b := t.bucket(bucketDescriptionHashToSidechain)
	return b.ForEach(func(k, v []byte) error {
		p, err := decodeSidechainProposal(v)
		if err != nil {
			return err
		}
		return fn(decodeHash256(k), p)
	})
}

// --- slot_to_sidechain (activated) ---

func (t *Txn) GetSidechain(slot types.SidechainNumber) (types.Sidechain, bool, error) {
	return genericTryGet(t, bucketSlotToSidechain, slot, encodeSidechainNumber, decodeSidechain)
}

func (t *Txn) PutSidechain(slot types.SidechainNumber, s types.Sidechain) error {
	return genericPut(t, bucketSlotToSidechain, slot, s, encodeSidechainNumber, encodeSidechain)
}

// --- slot_to_pending_m6ids ---

func (t *Txn) GetPendingM6ids(slot types.SidechainNumber) ([]types.PendingM6id, bool, error) {
	return genericTryGet(t, bucketSlotToPendingM6ids, slot, encodeSidechainNumber, decodePendingM6ids)
}

func (t *Txn) PutPendingM6ids(slot types.SidechainNumber, list []types.PendingM6id) error {
	return genericPut(t, bucketSlotToPendingM6ids, slot, list, encodeSidechainNumber, encodePendingM6ids)
}

func (t *Txn) IteratePendingM6ids(fn func(slot types.SidechainNumber, list []types.PendingM6id) error) error {
	b := t.bucket(bucketSlotToPendingM6ids)
	return b.ForEach(func(k, v []byte) error {
		list, err := decodePendingM6ids(v)
		if err != nil {
			return err
		}
		return fn(decodeSidechainNumber(k), list)
	})
}

// --- slot_to_ctip ---

func (t *Txn) GetCtip(slot types.SidechainNumber) (types.Ctip, bool, error) {
	return genericTryGet(t, bucketSlotToCtip, slot, encodeSidechainNumber, decodeCtip)
}

func (t *Txn) PutCtip(slot types.SidechainNumber, c types.Ctip) error {
	return genericPut(t, bucketSlotToCtip, slot, c, encodeSidechainNumber, encodeCtip)
}

// --- slot_to_treasury_utxo_count ---

func (t *Txn) GetTreasuryUtxoCount(slot types.SidechainNumber) (uint64, error) {
	b := t.bucket(bucketSlotToTreasuryUtxoCount)
	raw := b.Get(encodeSidechainNumber(slot))
	if raw == nil {
		return 0, nil
	}
	return decodeU64BE(raw), nil
}

func (t *Txn) PutTreasuryUtxoCount(slot types.SidechainNumber, count uint64) error {
	b := t.bucket(bucketSlotToTreasuryUtxoCount)
	if err := b.Put(encodeSidechainNumber(slot), encodeU64BE(count)); err != nil {
		return errIO("put treasury utxo count failed", err)
	}
	return nil
}

// --- (slot,seq)_to_treasury_utxo ---

func (t *Txn) PutTreasuryUtxo(slot types.SidechainNumber, seq uint64, u types.TreasuryUtxo) error {
	b := t.bucket(bucketSlotSeqToTreasuryUtxo)
	if err := b.Put(encodeSlotSeqKey(slot, seq), encodeTreasuryUtxo(u)); err != nil {
		return errIO("put treasury utxo failed", err)
	}
	return nil
}

func (t *Txn) GetTreasuryUtxo(slot types.SidechainNumber, seq uint64) (types.TreasuryUtxo, bool, error) {
	b := t.bucket(bucketSlotSeqToTreasuryUtxo)
	raw := b.Get(encodeSlotSeqKey(slot, seq))
	if raw == nil {
		return types.TreasuryUtxo{}, false, nil
	}
	u, err := decodeTreasuryUtxo(raw)
	return u, true, err
}

// RangeTreasuryUtxos visits every treasury UTXO for slot in ascending
// sequence order (spec.md §6 `range`).
func (t *Txn) RangeTreasuryUtxos(slot types.SidechainNumber, fn func(seq uint64, u types.TreasuryUtxo) error) error {
	b := t.bucket(bucketSlotSeqToTreasuryUtxo)
	c := b.Cursor()
	start := slotSeqRangeStart(slot)
	end := slotSeqRangeEnd(slot)
	for k, v := c.Seek(start); k != nil && bytes.Compare(k, end) <= 0; k, v = c.Next() {
		_, seq := decodeSlotSeqKey(k)
		u, err := decodeTreasuryUtxo(v)
		if err != nil {
			return err
		}
		if err := fn(seq, u); err != nil {
			return err
		}
	}
	return nil
}

// --- block_hash_to_deposits ---

func (t *Txn) PutBlockDeposits(blockHash types.Hash256, deposits []types.Deposit) error {
	// Reuses BlockInfo's encoding with every other field empty rather than
	// a bespoke deposit-list codec.
	buf := encodeBlockInfo(types.BlockInfo{Deposits: deposits})
	b := t.bucket(bucketBlockHashToDeposits)
	if err := b.Put(encodeHash256(blockHash), buf); err != nil {
		return errIO("put block deposits failed", err)
	}
	return nil
}

func (t *Txn) GetBlockDeposits(blockHash types.Hash256) ([]types.Deposit, bool, error) {
	b := t.bucket(bucketBlockHashToDeposits)
	raw := b.Get(encodeHash256(blockHash))
	if raw == nil {
		return nil, false, nil
	}
	info, err := decodeBlockInfo(raw)
	if err != nil {
		return nil, false, err
	}
	return info.Deposits, true, nil
}

// --- block_hash_to_block_info ---

func (t *Txn) PutBlockInfo(blockHash types.Hash256, info types.BlockInfo) error {
	b := t.bucket(bucketBlockHashToBlockInfo)
	if err := b.Put(encodeHash256(blockHash), encodeBlockInfo(info)); err != nil {
		return errIO("put block info failed", err)
	}
	return nil
}

func (t *Txn) GetBlockInfo(blockHash types.Hash256) (types.BlockInfo, bool, error) {
	return genericTryGet(t, bucketBlockHashToBlockInfo, blockHash, encodeHash256, decodeBlockInfo)
}

// --- block_hash_to_header_info ---

func (t *Txn) PutHeaderInfo(h types.HeaderInfo) error {
	b := t.bucket(bucketBlockHashToHeaderInfo)
	if err := b.Put(encodeHash256(h.BlockHash), encodeHeaderInfo(h)); err != nil {
		return errIO("put header info failed", err)
	}
	return nil
}

func (t *Txn) GetHeaderInfo(blockHash types.Hash256) (types.HeaderInfo, bool, error) {
	return genericTryGet(t, bucketBlockHashToHeaderInfo, blockHash, encodeHash256, decodeHeaderInfo)
}

func (t *Txn) ContainsHeaderInfo(blockHash types.Hash256) bool {
	return genericContainsKey(t, bucketBlockHashToHeaderInfo, blockHash, encodeHash256)
}

// LatestMissingAncestor walks backward from hash along stored
// prev_block_hash links, returning the first ancestor not yet present in
// the header store: the next gap the Sync Driver's header backfill must
// fetch (spec.md §4.6 "latest ancestor header we are missing"). ok is
// false once the walk reaches a header whose prev_block_hash is the zero
// hash (genesis) without finding a gap, meaning the header chain up to
// hash is already complete.
func (t *Txn) LatestMissingAncestor(hash types.Hash256) (types.Hash256, bool, error) {
	for {
		info, known, err := t.GetHeaderInfo(hash)
		if err != nil {
			return types.Hash256{}, false, err
		}
		if !known {
			return hash, true, nil
		}
		if info.PrevBlockHash == (types.Hash256{}) {
			return types.Hash256{}, false, nil
		}
		hash = info.PrevBlockHash
	}
}

// --- current_chain_tip / current_block_height (unit-keyed) ---

func (t *Txn) GetChainTip() (types.Hash256, bool, error) {
	b := t.bucket(bucketCurrentChainTip)
	raw := b.Get(unitKey)
	if raw == nil {
		return types.Hash256{}, false, nil
	}
	return decodeHash256(raw), true, nil
}

func (t *Txn) PutChainTip(hash types.Hash256) error {
	b := t.bucket(bucketCurrentChainTip)
	if err := b.Put(unitKey, encodeHash256(hash)); err != nil {
		return errIO("put chain tip failed", err)
	}
	return nil
}

func (t *Txn) GetBlockHeight() (uint32, bool, error) {
	b := t.bucket(bucketCurrentBlockHeight)
	raw := b.Get(unitKey)
	if raw == nil {
		return 0, false, nil
	}
	return decodeU32(raw), true, nil
}

func (t *Txn) PutBlockHeight(height uint32) error {
	b := t.bucket(bucketCurrentBlockHeight)
	if err := b.Put(unitKey, encodeU32(height)); err != nil {
		return errIO("put block height failed", err)
	}
	return nil
}

// --- block_height_to_accepted_bmm_block_hashes ---

func (t *Txn) PutAcceptedBmmHashes(height uint32, hashes []types.Hash256) error {
	var buf []byte
	buf = appendCompactSizeBE(buf, uint64(len(hashes)))
	for _, h := range hashes {
		buf = append(buf, h[:]...)
	}
	b := t.bucket(bucketBmmAcceptedByHeight)
	if err := b.Put(encodeU32(height), buf); err != nil {
		return errIO("put accepted bmm hashes failed", err)
	}
	return nil
}

func (t *Txn) LenAcceptedBmmHashes() (int, error) {
	return t.bucket(bucketBmmAcceptedByHeight).Stats().KeyN, nil
}

func (t *Txn) FirstAcceptedBmmHeight() (uint32, bool, error) {
	b := t.bucket(bucketBmmAcceptedByHeight)
	k, _ := b.Cursor().First()
	if k == nil {
		return 0, false, nil
	}
	return decodeU32(k), true, nil
}

func (t *Txn) DeleteAcceptedBmmHashes(height uint32) error {
	b := t.bucket(bucketBmmAcceptedByHeight)
	if err := b.Delete(encodeU32(height)); err != nil {
		return errIO("delete accepted bmm hashes failed", err)
	}
	return nil
}

func decodeU64BE(b []byte) uint64 { return decodeU64(b) }
func encodeU64BE(v uint64) []byte { return encodeU64(v) }

func appendCompactSizeBE(dst []byte, n uint64) []byte {
	// Length prefixes inside stored values use the same CompactSize rules
	// as wire encoding; reuse that codec rather than inventing a second
	// varint format purely for store-internal lengths.
	return wire.AppendCompactSize(dst, n)
}

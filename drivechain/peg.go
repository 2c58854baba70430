package drivechain

import (
	"github.com/octobocto/bip300301-enforcer/store"
	"github.com/octobocto/bip300301-enforcer/types"
	"github.com/octobocto/bip300301-enforcer/wire"
)

// pegResult tags the outcome of handleM5M6 for one transaction: it is
// either silently a non-peg transaction, a deposit, or a successful
// withdrawal — modeled as a tagged struct rather than an interface per
// spec.md §9's "do not use open inheritance" guidance, generalizing the
// original's Either<Deposit, (u8, m6id)> return type.
type pegResult struct {
	isPeg      bool
	deposit    *types.Deposit
	withdrawal *types.WithdrawalBundleEvent
}

// handleM5M6 examines one non-coinbase transaction against the Ctip/peg
// rules (spec.md §4.3). seenSlots tracks which slots already had a
// qualifying OP_DRIVECHAIN output processed earlier in this same block;
// a second qualifying output for the same slot is rejected rather than
// silently processed twice (spec.md §4.3 "Edge cases").
func handleM5M6(txn *store.Txn, undo *store.UndoRecord, tx *wire.Tx, seenSlots map[types.SidechainNumber]bool) (pegResult, error) {
	if len(tx.Outputs) < 1 {
		return pegResult{}, nil
	}
	slot, ok := ParseOpDrivechain(tx.Outputs[0].ScriptPubkey)
	if !ok {
		return pegResult{}, nil
	}
	if seenSlots[slot] {
		return pegResult{}, connErr(ErrDuplicateDrivechainOutput, slot, "duplicate OP_DRIVECHAIN output for slot in this block")
	}
	seenSlots[slot] = true

	txid := tx.Txid()
	newCtipOutpoint := types.OutPoint{Txid: types.Hash256(txid), Vout: 0}
	newTotalValue := tx.Outputs[0].Value

	var address []byte
	if len(tx.Outputs) >= 2 {
		script := tx.Outputs[1].ScriptPubkey
		if len(script) >= 1 && script[0] == opReturn {
			address = append([]byte(nil), script[1:]...)
		}
	}

	oldCtip, hadOldCtip, err := txn.GetCtip(slot)
	if err != nil {
		return pegResult{}, err
	}
	var oldTotalValue int64
	if hadOldCtip {
		spent := false
		for _, in := range tx.Inputs {
			if types.Hash256(in.PrevTxid) == oldCtip.Outpoint.Txid && in.PrevVout == oldCtip.Outpoint.Vout {
				spent = true
				break
			}
		}
		if !spent {
			return pegResult{}, connErr(ErrOldCtipUnspent, slot, "transaction does not spend the slot's current Ctip")
		}
		oldTotalValue = oldCtip.Value
	}

	var result pegResult
	result.isPeg = true

	if newTotalValue < oldTotalValue {
		m6id := M6ToID(tx, oldTotalValue)
		pending, _, err := txn.GetPendingM6ids(slot)
		if err != nil {
			return pegResult{}, err
		}
		valid := false
		for _, p := range pending {
			if p.M6id == m6id && p.VoteCount > WithdrawalBundleInclusionThreshold {
				valid = true
				break
			}
		}
		if !valid {
			return pegResult{}, connErr(ErrInvalidM6, slot, "withdrawal bundle did not reach the inclusion threshold")
		}
		kept := pending[:0:0]
		for _, p := range pending {
			if p.M6id != m6id {
				kept = append(kept, p)
			}
		}
		txn.SnapshotBefore(undo, store.TagSlotToPendingM6ids, store.SlotKey(slot))
		if err := txn.PutPendingM6ids(slot, kept); err != nil {
			return pegResult{}, err
		}
		result.withdrawal = &types.WithdrawalBundleEvent{
			SidechainID: slot,
			M6id:        m6id,
			Kind:        types.WithdrawalBundleSucceeded,
		}
	}

	count, err := txn.GetTreasuryUtxoCount(slot)
	if err != nil {
		return pegResult{}, err
	}
	seq := count
	treasuryUtxo := types.TreasuryUtxo{
		Outpoint:           newCtipOutpoint,
		Address:            address,
		TotalValue:         newTotalValue,
		PreviousTotalValue: oldTotalValue,
	}
	txn.SnapshotBefore(undo, store.TagSlotSeqToTreasuryUtxo, store.SlotSeqKey(slot, seq))
	if err := txn.PutTreasuryUtxo(slot, seq, treasuryUtxo); err != nil {
		return pegResult{}, err
	}
	txn.SnapshotBefore(undo, store.TagSlotToTreasuryUtxoCount, store.SlotKey(slot))
	if err := txn.PutTreasuryUtxoCount(slot, count+1); err != nil {
		return pegResult{}, err
	}
	txn.SnapshotBefore(undo, store.TagSlotToCtip, store.SlotKey(slot))
	if err := txn.PutCtip(slot, types.Ctip{Outpoint: newCtipOutpoint, Value: newTotalValue}); err != nil {
		return pegResult{}, err
	}

	if address != nil && newTotalValue >= oldTotalValue && result.withdrawal == nil {
		result.deposit = &types.Deposit{
			SidechainID:    slot,
			SequenceNumber: seq,
			Outpoint:       types.OutPoint{Txid: types.Hash256(txid), Vout: 0},
			Output: types.TxOut{
				Value:        newTotalValue - oldTotalValue,
				ScriptPubkey: address,
			},
		}
	}

	return result, nil
}

package drivechain

import (
	"testing"

	"github.com/octobocto/bip300301-enforcer/store"
	"github.com/octobocto/bip300301-enforcer/types"
	"github.com/octobocto/bip300301-enforcer/wire"
)

func drivechainScript(slot byte) []byte {
	return []byte{opDrivechain, slot, 0x01}
}

func addressScript(addr []byte) []byte {
	return append([]byte{opReturn}, addr...)
}

func TestHandleM5M6_FirstDepositHasNoOldCtip(t *testing.T) {
	db := openTestDB(t)
	slot := types.SidechainNumber(1)

	tx := &wire.Tx{
		Raw: []byte("deposit-tx-1"),
		Inputs: []wire.TxIn{
			{PrevTxid: [32]byte{0xAA}, PrevVout: 0},
		},
		Outputs: []wire.TxOut{
			{Value: 1000, ScriptPubkey: drivechainScript(1)},
			{Value: 0, ScriptPubkey: addressScript([]byte("sidechain-addr"))},
		},
	}

	var result pegResult
	err := db.Update(func(txn *store.Txn) error {
		undo := &store.UndoRecord{}
		var err error
		result, err = handleM5M6(txn, undo, tx, map[types.SidechainNumber]bool{})
		return err
	})
	if err != nil {
		t.Fatalf("handleM5M6: %v", err)
	}
	if !result.isPeg || result.deposit == nil {
		t.Fatalf("expected a deposit result, got %+v", result)
	}
	if result.deposit.Output.Value != 1000 {
		t.Fatalf("unexpected deposit value: %d", result.deposit.Output.Value)
	}

	err = db.View(func(txn *store.Txn) error {
		ctip, ok, err := txn.GetCtip(slot)
		if err != nil {
			return err
		}
		if !ok || ctip.Value != 1000 {
			t.Fatalf("unexpected ctip: %+v ok=%v", ctip, ok)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestHandleM5M6_RejectsUnspentOldCtip(t *testing.T) {
	db := openTestDB(t)
	slot := types.SidechainNumber(2)

	err := db.Update(func(txn *store.Txn) error {
		return txn.PutCtip(slot, types.Ctip{
			Outpoint: types.OutPoint{Txid: types.Hash256{0xAB}, Vout: 0},
			Value:    500,
		})
	})
	if err != nil {
		t.Fatalf("seed ctip: %v", err)
	}

	tx := &wire.Tx{
		Raw: []byte("tx-not-spending-old-ctip"),
		Inputs: []wire.TxIn{
			{PrevTxid: [32]byte{0xCD}, PrevVout: 0},
		},
		Outputs: []wire.TxOut{
			{Value: 600, ScriptPubkey: drivechainScript(2)},
		},
	}

	err = db.Update(func(txn *store.Txn) error {
		undo := &store.UndoRecord{}
		_, err := handleM5M6(txn, undo, tx, map[types.SidechainNumber]bool{})
		ce, ok := err.(*ConnectError)
		if !ok || ce.Code != ErrOldCtipUnspent {
			t.Fatalf("expected ErrOldCtipUnspent, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestHandleM5M6_RejectsDuplicateDrivechainOutputInSameBlock(t *testing.T) {
	db := openTestDB(t)
	tx := &wire.Tx{
		Raw: []byte("dup-tx"),
		Inputs: []wire.TxIn{
			{PrevTxid: [32]byte{0x01}, PrevVout: 0},
		},
		Outputs: []wire.TxOut{
			{Value: 100, ScriptPubkey: drivechainScript(3)},
		},
	}
	seen := map[types.SidechainNumber]bool{3: true}

	err := db.Update(func(txn *store.Txn) error {
		undo := &store.UndoRecord{}
		_, err := handleM5M6(txn, undo, tx, seen)
		ce, ok := err.(*ConnectError)
		if !ok || ce.Code != ErrDuplicateDrivechainOutput {
			t.Fatalf("expected ErrDuplicateDrivechainOutput, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestHandleM5M6_WithdrawalRequiresInclusionThreshold(t *testing.T) {
	db := openTestDB(t)
	slot := types.SidechainNumber(4)
	oldCtipTxid := types.Hash256{0xEE}

	err := db.Update(func(txn *store.Txn) error {
		return txn.PutCtip(slot, types.Ctip{
			Outpoint: types.OutPoint{Txid: oldCtipTxid, Vout: 0},
			Value:    1000,
		})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	tx := &wire.Tx{
		Raw: []byte("withdrawal-tx"),
		Inputs: []wire.TxIn{
			{PrevTxid: [32]byte(oldCtipTxid), PrevVout: 0},
		},
		Outputs: []wire.TxOut{
			{Value: 400, ScriptPubkey: drivechainScript(4)},
		},
	}

	err = db.Update(func(txn *store.Txn) error {
		undo := &store.UndoRecord{}
		_, err := handleM5M6(txn, undo, tx, map[types.SidechainNumber]bool{})
		ce, ok := err.(*ConnectError)
		if !ok || ce.Code != ErrInvalidM6 {
			t.Fatalf("expected ErrInvalidM6 with no pending bundle at threshold, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	m6id := M6ToID(tx, 1000)
	err = db.Update(func(txn *store.Txn) error {
		return txn.PutPendingM6ids(slot, []types.PendingM6id{
			{M6id: m6id, VoteCount: WithdrawalBundleInclusionThreshold + 1},
		})
	})
	if err != nil {
		t.Fatalf("seed pending: %v", err)
	}

	var result pegResult
	err = db.Update(func(txn *store.Txn) error {
		undo := &store.UndoRecord{}
		var err error
		result, err = handleM5M6(txn, undo, tx, map[types.SidechainNumber]bool{})
		return err
	})
	if err != nil {
		t.Fatalf("handleM5M6 with valid bundle: %v", err)
	}
	if result.withdrawal == nil || result.withdrawal.Kind != types.WithdrawalBundleSucceeded {
		t.Fatalf("expected successful withdrawal event, got %+v", result)
	}
}

package drivechain

import (
	"fmt"

	"github.com/octobocto/bip300301-enforcer/store"
	"github.com/octobocto/bip300301-enforcer/types"
)

// DisconnectBlock is the exact inverse of ConnectBlock (spec.md §4.5
// "Block Disconnector MUST restore all stores to their pre-connect
// state"). It replays blockHash's undo journal in reverse and removes the
// journal entry itself, so a block cannot be disconnected twice.
func DisconnectBlock(db *store.DB, blockHash types.Hash256) (types.Event, error) {
	var event types.Event
	err := db.Update(func(txn *store.Txn) error {
		undo, exists, err := txn.GetUndo(blockHash)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("disconnect: no undo record for block %x", blockHash)
		}
		if err := txn.ApplyUndo(undo); err != nil {
			return err
		}
		if err := txn.DeleteUndo(blockHash); err != nil {
			return err
		}
		event = types.DisconnectBlockEvent(blockHash)
		return nil
	})
	if err != nil {
		return types.Event{}, err
	}
	return event, nil
}

// findForkPoint walks back from a and b (via stored HeaderInfo) to their
// common ancestor, matching heights first and then walking both back in
// lockstep, grounded on the teacher's node/store/reorg.go findForkPoint.
func findForkPoint(txn *store.Txn, a, b types.Hash256) (types.Hash256, error) {
	ha, ok, err := txn.GetHeaderInfo(a)
	if err != nil {
		return types.Hash256{}, err
	}
	if !ok {
		return types.Hash256{}, fmt.Errorf("reorg: header missing for %x", a)
	}
	hb, ok, err := txn.GetHeaderInfo(b)
	if err != nil {
		return types.Hash256{}, err
	}
	if !ok {
		return types.Hash256{}, fmt.Errorf("reorg: header missing for %x", b)
	}

	for ha.Height > hb.Height {
		a = ha.PrevBlockHash
		ha, ok, err = txn.GetHeaderInfo(a)
		if err != nil {
			return types.Hash256{}, err
		}
		if !ok {
			return types.Hash256{}, fmt.Errorf("reorg: header missing for %x", a)
		}
	}
	for hb.Height > ha.Height {
		b = hb.PrevBlockHash
		hb, ok, err = txn.GetHeaderInfo(b)
		if err != nil {
			return types.Hash256{}, err
		}
		if !ok {
			return types.Hash256{}, fmt.Errorf("reorg: header missing for %x", b)
		}
	}
	for a != b {
		a = ha.PrevBlockHash
		b = hb.PrevBlockHash
		ha, ok, err = txn.GetHeaderInfo(a)
		if err != nil {
			return types.Hash256{}, err
		}
		if !ok {
			return types.Hash256{}, fmt.Errorf("reorg: header missing for %x", a)
		}
		hb, ok, err = txn.GetHeaderInfo(b)
		if err != nil {
			return types.Hash256{}, err
		}
		if !ok {
			return types.Hash256{}, fmt.Errorf("reorg: header missing for %x", b)
		}
	}
	return a, nil
}

// FindForkPoint is findForkPoint exposed for callers (the sync driver)
// that need to decide how many blocks a reorg will disconnect before
// committing to it.
func FindForkPoint(db *store.DB, a, b types.Hash256) (types.Hash256, error) {
	var fork types.Hash256
	err := db.View(func(txn *store.Txn) error {
		var err error
		fork, err = findForkPoint(txn, a, b)
		return err
	})
	return fork, err
}

package drivechain

import (
	"path/filepath"
	"testing"

	"github.com/octobocto/bip300301-enforcer/store"
	"github.com/octobocto/bip300301-enforcer/types"
	"github.com/octobocto/bip300301-enforcer/wire"
)

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestHandleM1ProposeSidechain_IgnoresDuplicateDescription(t *testing.T) {
	db := openTestDB(t)
	slot := types.SidechainNumber(1)
	desc := []byte("a sidechain")

	err := db.Update(func(txn *store.Txn) error {
		undo := &store.UndoRecord{}
		p, err := handleM1ProposeSidechain(txn, undo, 10, slot, desc)
		if err != nil {
			return err
		}
		if p == nil {
			t.Fatalf("expected first proposal to be recorded")
		}
		p2, err := handleM1ProposeSidechain(txn, undo, 11, slot, desc)
		if err != nil {
			return err
		}
		if p2 != nil {
			t.Fatalf("expected duplicate proposal to be ignored")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestHandleM2AckSidechain_ActivatesUnusedSlotAfterThreshold(t *testing.T) {
	db := openTestDB(t)
	slot := types.SidechainNumber(2)
	desc := []byte("unused slot sidechain")

	descHash := types.Hash256(wire.Sha256d(desc))
	err := db.Update(func(txn *store.Txn) error {
		undo := &store.UndoRecord{}
		_, err := handleM1ProposeSidechain(txn, undo, 0, slot, desc)
		return err
	})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	err = db.Update(func(txn *store.Txn) error {
		undo := &store.UndoRecord{}
		var last *types.SidechainProposal
		for i := uint16(0); i < UnusedSidechainSlotActivationThreshold+1; i++ {
			p, err := handleM2AckSidechain(txn, undo, 1, slot, descHash)
			if err != nil {
				return err
			}
			last = p
		}
		if last != nil {
			t.Fatalf("expected slot to activate and return nil proposal, got %+v", last)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ack: %v", err)
	}

	err = db.View(func(txn *store.Txn) error {
		sc, exists, err := txn.GetSidechain(slot)
		if err != nil {
			return err
		}
		if !exists {
			t.Fatalf("expected slot %d to be activated", slot)
		}
		if sc.ActivationHeight != 1 {
			t.Fatalf("unexpected activation height: %d", sc.ActivationHeight)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestSweepExpiredProposals_RemovesStaleUnusedProposal(t *testing.T) {
	db := openTestDB(t)
	slot := types.SidechainNumber(3)
	desc := []byte("a stale proposal")

	err := db.Update(func(txn *store.Txn) error {
		undo := &store.UndoRecord{}
		_, err := handleM1ProposeSidechain(txn, undo, 0, slot, desc)
		return err
	})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	staleHeight := UnusedSidechainSlotProposalMaxAge + 1
	err = db.Update(func(txn *store.Txn) error {
		undo := &store.UndoRecord{}
		return sweepExpiredProposals(txn, undo, staleHeight)
	})
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}

	err = db.View(func(txn *store.Txn) error {
		var count int
		err := txn.IterateSidechainProposals(func(types.Hash256, types.SidechainProposal) error {
			count++
			return nil
		})
		if err != nil {
			return err
		}
		if count != 0 {
			t.Fatalf("expected expired proposal to be swept, found %d remaining", count)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestHandleM3ProposeBundle_RejectsInactiveSidechain(t *testing.T) {
	db := openTestDB(t)
	slot := types.SidechainNumber(9)

	err := db.Update(func(txn *store.Txn) error {
		undo := &store.UndoRecord{}
		_, err := handleM3ProposeBundle(txn, undo, slot, types.Hash256{1})
		if err == nil {
			t.Fatalf("expected error for inactive sidechain")
		}
		ce, ok := err.(*ConnectError)
		if !ok || ce.Code != ErrInactiveSidechain {
			t.Fatalf("expected ErrInactiveSidechain, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestHandleM4Votes_AbstainAlarmAndIndexedVote(t *testing.T) {
	db := openTestDB(t)
	slot := types.SidechainNumber(0)

	err := db.Update(func(txn *store.Txn) error {
		return txn.PutPendingM6ids(slot, []types.PendingM6id{
			{M6id: types.Hash256{1}, VoteCount: 2},
			{M6id: types.Hash256{2}, VoteCount: 0},
		})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Index 1 gets an upvote for slot 0.
	err = db.Update(func(txn *store.Txn) error {
		undo := &store.UndoRecord{}
		return handleM4Votes(txn, undo, []uint16{1})
	})
	if err != nil {
		t.Fatalf("vote: %v", err)
	}
	err = db.View(func(txn *store.Txn) error {
		list, _, err := txn.GetPendingM6ids(slot)
		if err != nil {
			return err
		}
		if list[1].VoteCount != 1 {
			t.Fatalf("expected index 1 vote count 1, got %d", list[1].VoteCount)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}

	// ALARM decrements every entry, saturating at zero.
	err = db.Update(func(txn *store.Txn) error {
		undo := &store.UndoRecord{}
		return handleM4Votes(txn, undo, []uint16{AlarmTwoBytes})
	})
	if err != nil {
		t.Fatalf("alarm: %v", err)
	}
	err = db.View(func(txn *store.Txn) error {
		list, _, err := txn.GetPendingM6ids(slot)
		if err != nil {
			return err
		}
		if list[0].VoteCount != 1 || list[1].VoteCount != 0 {
			t.Fatalf("unexpected vote counts after alarm: %+v", list)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestHandleM4AckBundles_RejectsUnsupportedVariants(t *testing.T) {
	db := openTestDB(t)
	err := db.Update(func(txn *store.Txn) error {
		undo := &store.UndoRecord{}
		err := handleM4AckBundles(txn, undo, M4AckBundles{LeadingBy50: true})
		ce, ok := err.(*ConnectError)
		if !ok || ce.Code != ErrM4VariantUnsupported {
			t.Fatalf("expected ErrM4VariantUnsupported for LeadingBy50, got %v", err)
		}
		err = handleM4AckBundles(txn, undo, M4AckBundles{RepeatPrev: true})
		ce, ok = err.(*ConnectError)
		if !ok || ce.Code != ErrM4VariantUnsupported {
			t.Fatalf("expected ErrM4VariantUnsupported for RepeatPrevious, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestSweepFailedM6ids_RemovesAgedOutBundle(t *testing.T) {
	db := openTestDB(t)
	slot := types.SidechainNumber(4)

	err := db.Update(func(txn *store.Txn) error {
		return txn.PutPendingM6ids(slot, []types.PendingM6id{
			{M6id: types.Hash256{1}, VoteCount: WithdrawalBundleMaxAge + 1},
			{M6id: types.Hash256{2}, VoteCount: 0},
		})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	var failed []types.WithdrawalBundleEvent
	err = db.Update(func(txn *store.Txn) error {
		undo := &store.UndoRecord{}
		var err error
		failed, err = sweepFailedM6ids(txn, undo)
		return err
	})
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(failed) != 1 || failed[0].M6id != (types.Hash256{1}) {
		t.Fatalf("unexpected failed events: %+v", failed)
	}

	err = db.View(func(txn *store.Txn) error {
		list, _, err := txn.GetPendingM6ids(slot)
		if err != nil {
			return err
		}
		if len(list) != 1 || list[0].M6id != (types.Hash256{2}) {
			t.Fatalf("expected only m6id {2} to remain, got %+v", list)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

package drivechain

import (
	"github.com/octobocto/bip300301-enforcer/store"
	"github.com/octobocto/bip300301-enforcer/types"
	"github.com/octobocto/bip300301-enforcer/wire"
)

// handleM1ProposeSidechain records a new sidechain slot proposal, ignoring
// the message outright if a proposal already exists under the same
// description hash — this is the only defense against a miner resetting an
// existing proposal's vote count by re-announcing the identical data,
// grounded on the original's handle_m1_propose_sidechain.
func handleM1ProposeSidechain(txn *store.Txn, undo *store.UndoRecord, height uint32, slot types.SidechainNumber, description []byte) (*types.SidechainProposal, error) {
	descHash := types.Hash256(wire.Sha256d(description))
	if _, exists, err := txn.GetSidechainProposal(descHash); err != nil {
		return nil, err
	} else if exists {
		return nil, nil
	}
	proposal := types.SidechainProposal{
		SidechainNumber: slot,
		Description:     append([]byte(nil), description...),
		VoteCount:       0,
		ProposalHeight:  height,
	}
	txn.SnapshotBefore(undo, store.TagDescriptionHashToSidechain, store.HashKey(descHash))
	if err := txn.PutSidechainProposal(descHash, proposal); err != nil {
		return nil, err
	}
	return &proposal, nil
}

// handleM2AckSidechain tallies one ack vote for the proposal under
// descHash and activates the slot once the relevant used/unused threshold
// and age window are satisfied. Activation unconditionally overwrites any
// prior occupant of the slot — per spec.md §4.2.1's design note, this
// repository's chosen interpretation is that a super-majority vote on the
// occupied slot is itself sufficient authorization to displace it, rather
// than rejecting activation outright or attempting to carry forward the
// old occupant's pending bundles and Ctip.
func handleM2AckSidechain(txn *store.Txn, undo *store.UndoRecord, height uint32, slot types.SidechainNumber, descHash types.Hash256) (*types.SidechainProposal, error) {
	proposal, exists, err := txn.GetSidechainProposal(descHash)
	if err != nil {
		return nil, err
	}
	if !exists || proposal.SidechainNumber != slot {
		return nil, nil
	}
	proposal.VoteCount++
	txn.SnapshotBefore(undo, store.TagDescriptionHashToSidechain, store.HashKey(descHash))
	if err := txn.PutSidechainProposal(descHash, proposal); err != nil {
		return nil, err
	}

	age := height - proposal.ProposalHeight
	_, used, err := txn.GetSidechain(slot)
	if err != nil {
		return nil, err
	}

	activated := (used && proposal.VoteCount > UsedSidechainSlotActivationThreshold && age <= UsedSidechainSlotProposalMaxAge) ||
		(!used && proposal.VoteCount > UnusedSidechainSlotActivationThreshold && age <= UnusedSidechainSlotProposalMaxAge)
	if !activated {
		return &proposal, nil
	}

	sidechain := types.Sidechain{
		SidechainNumber:  slot,
		Description:      proposal.Description,
		VoteCount:        proposal.VoteCount,
		ProposalHeight:   proposal.ProposalHeight,
		ActivationHeight: height,
	}
	txn.SnapshotBefore(undo, store.TagSlotToSidechain, store.SlotKey(slot))
	if err := txn.PutSidechain(slot, sidechain); err != nil {
		return nil, err
	}
	txn.SnapshotBefore(undo, store.TagDescriptionHashToSidechain, store.HashKey(descHash))
	if err := txn.DeleteSidechainProposal(descHash); err != nil {
		return nil, err
	}
	return nil, nil
}

// sweepExpiredProposals deletes every stored proposal whose age exceeds
// the max-age window for its slot's occupancy state, run once at the end
// of every block connection (spec.md §4.2.1 "Expiry sweep").
func sweepExpiredProposals(txn *store.Txn, undo *store.UndoRecord, height uint32) error {
	var expired []types.Hash256
	err := txn.IterateSidechainProposals(func(descHash types.Hash256, p types.SidechainProposal) error {
		age := height - p.ProposalHeight
		_, used, err := txn.GetSidechain(p.SidechainNumber)
		if err != nil {
			return err
		}
		maxAge := UnusedSidechainSlotProposalMaxAge
		if used {
			maxAge = UsedSidechainSlotProposalMaxAge
		}
		if age > maxAge {
			expired = append(expired, descHash)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, descHash := range expired {
		txn.SnapshotBefore(undo, store.TagDescriptionHashToSidechain, store.HashKey(descHash))
		if err := txn.DeleteSidechainProposal(descHash); err != nil {
			return err
		}
	}
	return nil
}

// handleM3ProposeBundle appends a fresh, unvoted withdrawal bundle
// proposal to slot's pending list, failing InactiveSidechain if the slot
// has no active sidechain.
func handleM3ProposeBundle(txn *store.Txn, undo *store.UndoRecord, slot types.SidechainNumber, m6id types.Hash256) (types.WithdrawalBundleEvent, error) {
	if _, active, err := txn.GetSidechain(slot); err != nil {
		return types.WithdrawalBundleEvent{}, err
	} else if !active {
		return types.WithdrawalBundleEvent{}, connErr(ErrInactiveSidechain, slot, "M3 on inactive slot")
	}
	pending, _, err := txn.GetPendingM6ids(slot)
	if err != nil {
		return types.WithdrawalBundleEvent{}, err
	}
	pending = append(pending, types.PendingM6id{M6id: m6id, VoteCount: 0})
	txn.SnapshotBefore(undo, store.TagSlotToPendingM6ids, store.SlotKey(slot))
	if err := txn.PutPendingM6ids(slot, pending); err != nil {
		return types.WithdrawalBundleEvent{}, err
	}
	return types.WithdrawalBundleEvent{
		SidechainID: slot,
		M6id:        m6id,
		Kind:        types.WithdrawalBundleSubmitted,
	}, nil
}

// handleM4Votes applies one upvotes array (already widened to uint16,
// whether the wire form was OneByte or TwoBytes) against every slot's
// pending list, index-by-slot-number. ABSTAIN leaves a slot untouched;
// ALARM decrements every pending entry in that slot saturating at zero;
// any other value in range is an index into that slot's pending list
// whose vote_count is incremented.
func handleM4Votes(txn *store.Txn, undo *store.UndoRecord, upvotes []uint16) error {
	for i, vote := range upvotes {
		slot := types.SidechainNumber(i)
		if vote == AbstainTwoBytes {
			continue
		}
		pending, exists, err := txn.GetPendingM6ids(slot)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		if vote == AlarmTwoBytes {
			for j := range pending {
				if pending[j].VoteCount > 0 {
					pending[j].VoteCount--
				}
			}
		} else if int(vote) < len(pending) {
			pending[vote].VoteCount++
		}
		txn.SnapshotBefore(undo, store.TagSlotToPendingM6ids, store.SlotKey(slot))
		if err := txn.PutPendingM6ids(slot, pending); err != nil {
			return err
		}
	}
	return nil
}

// handleM4AckBundles dispatches a decoded M4 message to handleM4Votes for
// the OneByte/TwoBytes wire forms. LeadingBy50 and RepeatPrevious are
// rejected rather than silently ignored: the BIP300 specification text
// describing their exact vote semantics was not available to ground an
// implementation against, so this repository surfaces them as an explicit
// unsupported-variant error (spec.md §9) instead of guessing.
//
// TODO: implement LeadingBy50/RepeatPrevious once their wire semantics are
// confirmed against the BIP300/BIP301 specification text.
func handleM4AckBundles(txn *store.Txn, undo *store.UndoRecord, ack M4AckBundles) error {
	switch {
	case ack.LeadingBy50:
		return connErr(ErrM4VariantUnsupported, 0, "LeadingBy50 not implemented")
	case ack.RepeatPrev:
		return connErr(ErrM4VariantUnsupported, 0, "RepeatPrevious not implemented")
	default:
		return handleM4Votes(txn, undo, ack.Upvotes)
	}
}

// sweepFailedM6ids removes every pending bundle whose vote_count has
// exceeded WithdrawalBundleMaxAge, returning a Failed event per removed
// entry. Run once at the end of every block connection.
func sweepFailedM6ids(txn *store.Txn, undo *store.UndoRecord) ([]types.WithdrawalBundleEvent, error) {
	type update struct {
		slot types.SidechainNumber
		list []types.PendingM6id
	}
	var failed []types.WithdrawalBundleEvent
	var updates []update

	err := txn.IteratePendingM6ids(func(slot types.SidechainNumber, list []types.PendingM6id) error {
		kept := list[:0:0]
		changed := false
		for _, p := range list {
			if p.VoteCount > WithdrawalBundleMaxAge {
				failed = append(failed, types.WithdrawalBundleEvent{
					SidechainID: slot,
					M6id:        p.M6id,
					Kind:        types.WithdrawalBundleFailed,
				})
				changed = true
				continue
			}
			kept = append(kept, p)
		}
		if changed {
			updates = append(updates, update{slot: slot, list: kept})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, u := range updates {
		txn.SnapshotBefore(undo, store.TagSlotToPendingM6ids, store.SlotKey(u.slot))
		if err := txn.PutPendingM6ids(u.slot, u.list); err != nil {
			return nil, err
		}
	}
	return failed, nil
}

package drivechain

import (
	"math/big"

	"github.com/octobocto/bip300301-enforcer/store"
	"github.com/octobocto/bip300301-enforcer/types"
	"github.com/octobocto/bip300301-enforcer/wire"
)

// ConnectBlock applies block at height to db following the canonical
// per-block order (spec.md §4.5): coinbase message dispatch, proposal and
// bundle expiry sweeps, per-transaction M5/M6 and M8, then header/block
// info persistence and tip advancement, all inside one write transaction.
// A per-block undo journal is written alongside so DisconnectBlock can
// restore the pre-connect state exactly.
//
// Returns the ConnectBlock event to broadcast on the event bus, and
// whether this block became the new chain tip.
func ConnectBlock(db *store.DB, block *wire.Block, height uint32) (types.Event, bool, error) {
	var event types.Event
	becameTip := false

	err := db.Update(func(txn *store.Txn) error {
		undo := &store.UndoRecord{}
		blockHash := types.Hash256(block.Header.Hash())

		coinbase := block.Txs[0]
		bmmedSlots := make(map[types.SidechainNumber]bool)
		var commitments types.BmmCommitments
		var withdrawalEvents []types.WithdrawalBundleEvent
		var touchedProposals []types.SidechainProposal

		for _, out := range coinbase.Outputs {
			msg, ok := ParseCoinbaseScript(out.ScriptPubkey)
			if !ok {
				continue
			}
			switch msg.Kind {
			case M1ProposeSidechain:
				p, err := handleM1ProposeSidechain(txn, undo, height, msg.SidechainNumber, msg.Description)
				if err != nil {
					return err
				}
				if p != nil {
					touchedProposals = append(touchedProposals, *p)
				}
			case M2AckSidechain:
				p, err := handleM2AckSidechain(txn, undo, height, msg.SidechainNumber, msg.DescriptionHash)
				if err != nil {
					return err
				}
				if p != nil {
					touchedProposals = append(touchedProposals, *p)
				}
			case M3ProposeBundle:
				ev, err := handleM3ProposeBundle(txn, undo, msg.SidechainNumber, msg.BundleTxid)
				if err != nil {
					return err
				}
				withdrawalEvents = append(withdrawalEvents, ev)
			case M4AckBundlesMsg:
				if err := handleM4AckBundles(txn, undo, msg.AckBundles); err != nil {
					return err
				}
			case M7BmmAccept:
				if err := handleM7(msg.SidechainNumber, msg.SidechainBlockHash, bmmedSlots, &commitments); err != nil {
					return err
				}
			}
		}

		if err := recordAcceptedBmmHashes(txn, undo, height, commitments); err != nil {
			return err
		}

		if err := sweepExpiredProposals(txn, undo, height); err != nil {
			return err
		}
		failedEvents, err := sweepFailedM6ids(txn, undo)
		if err != nil {
			return err
		}
		withdrawalEvents = append(withdrawalEvents, failedEvents...)

		var deposits []types.Deposit
		seenSlots := make(map[types.SidechainNumber]bool)
		prevMainchainBlockHash := types.Hash256(block.Header.PrevBlockHash)
		for _, tx := range block.Txs[1:] {
			res, err := handleM5M6(txn, undo, tx, seenSlots)
			if err != nil {
				return err
			}
			if res.deposit != nil {
				deposits = append(deposits, *res.deposit)
			}
			if res.withdrawal != nil {
				withdrawalEvents = append(withdrawalEvents, *res.withdrawal)
			}
			if err := handleM8(tx, commitments, prevMainchainBlockHash); err != nil {
				return err
			}
		}

		txn.SnapshotBefore(undo, store.TagBlockHashToDeposits, store.HashKey(blockHash))
		if err := txn.PutBlockDeposits(blockHash, deposits); err != nil {
			return err
		}

		blockInfo := types.BlockInfo{
			CoinbaseTxid:           types.Hash256(coinbase.Txid()),
			Deposits:               deposits,
			WithdrawalBundleEvents: withdrawalEvents,
			SidechainProposals:     touchedProposals,
			BmmCommitments:         commitments,
		}
		txn.SnapshotBefore(undo, store.TagBlockHashToBlockInfo, store.HashKey(blockHash))
		if err := txn.PutBlockInfo(blockHash, blockInfo); err != nil {
			return err
		}

		cumulativeWork, err := cumulativeWorkFor(txn, block.Header)
		if err != nil {
			return err
		}
		headerInfo := types.HeaderInfo{
			BlockHash:     blockHash,
			PrevBlockHash: prevMainchainBlockHash,
			Height:        height,
			Work:          wire.EncodeWorkLE(cumulativeWork),
		}
		txn.SnapshotBefore(undo, store.TagBlockHashToHeaderInfo, store.HashKey(blockHash))
		if err := txn.PutHeaderInfo(headerInfo); err != nil {
			return err
		}

		becameTip, err = maybeAdvanceTip(txn, undo, headerInfo)
		if err != nil {
			return err
		}

		if err := txn.PutUndo(blockHash, *undo); err != nil {
			return err
		}

		event = types.ConnectBlockEvent(headerInfo, blockInfo)
		return nil
	})
	if err != nil {
		return types.Event{}, false, err
	}
	return event, becameTip, nil
}

// recordAcceptedBmmHashes stores this block's accepted BMM hashes and
// evicts the oldest entry once the retained history exceeds
// MaxBmmBlockDepth (spec.md §4.4, grounded on the original's
// MAX_BMM_BLOCK_DEPTH sweep in connect_block).
func recordAcceptedBmmHashes(txn *store.Txn, undo *store.UndoRecord, height uint32, commitments types.BmmCommitments) error {
	hashes := make([]types.Hash256, len(commitments))
	for i, c := range commitments {
		hashes[i] = c.SidechainBlockHash
	}
	txn.SnapshotBefore(undo, store.TagBmmAcceptedByHeight, store.HeightKey(height))
	if err := txn.PutAcceptedBmmHashes(height, hashes); err != nil {
		return err
	}
	n, err := txn.LenAcceptedBmmHashes()
	if err != nil {
		return err
	}
	if uint64(n) > MaxBmmBlockDepth {
		oldestHeight, exists, err := txn.FirstAcceptedBmmHeight()
		if err != nil {
			return err
		}
		if exists {
			txn.SnapshotBefore(undo, store.TagBmmAcceptedByHeight, store.HeightKey(oldestHeight))
			if err := txn.DeleteAcceptedBmmHashes(oldestHeight); err != nil {
				return err
			}
		}
	}
	return nil
}

// cumulativeWorkFor computes the new header's cumulative proof-of-work
// accumulator: the parent's accumulator plus this header's own work. A
// header with no stored parent (genesis, or the first header this store
// has seen) starts its own accumulator from zero.
func cumulativeWorkFor(txn *store.Txn, header wire.BlockHeader) (*big.Int, error) {
	ownWork := wire.WorkFromTarget(header.Target())
	parentHash := types.Hash256(header.PrevBlockHash)
	parentInfo, exists, err := txn.GetHeaderInfo(parentHash)
	if err != nil {
		return nil, err
	}
	if !exists {
		return ownWork, nil
	}
	parentWork := wire.DecodeWorkLE(parentInfo.Work)
	return new(big.Int).Add(parentWork, ownWork), nil
}

// maybeAdvanceTip updates current_chain_tip/current_block_height to this
// header if its cumulative work exceeds the currently stored tip's
// (spec.md §4.5 step 7). Returns whether the tip advanced.
func maybeAdvanceTip(txn *store.Txn, undo *store.UndoRecord, headerInfo types.HeaderInfo) (bool, error) {
	currentTipHash, hasTip, err := txn.GetChainTip()
	if err != nil {
		return false, err
	}
	if hasTip {
		currentTipInfo, exists, err := txn.GetHeaderInfo(currentTipHash)
		if err != nil {
			return false, err
		}
		if exists && wire.DecodeWorkLE(currentTipInfo.Work).Cmp(wire.DecodeWorkLE(headerInfo.Work)) >= 0 {
			return false, nil
		}
	}
	txn.SnapshotBefore(undo, store.TagCurrentChainTip, store.UnitKey())
	if err := txn.PutChainTip(headerInfo.BlockHash); err != nil {
		return false, err
	}
	txn.SnapshotBefore(undo, store.TagCurrentBlockHeight, store.UnitKey())
	if err := txn.PutBlockHeight(headerInfo.Height); err != nil {
		return false, err
	}
	return true, nil
}

package drivechain

import (
	"github.com/octobocto/bip300301-enforcer/types"
	"github.com/octobocto/bip300301-enforcer/wire"
)

// handleM7 records one coinbase BMM commitment, rejecting a second
// commitment for the same slot within the same mainchain block
// (spec.md §4.4 "M7"). bmmedSlots and commitments are per-block
// accumulators threaded through every coinbase output in order.
func handleM7(slot types.SidechainNumber, sidechainBlockHash types.Hash256, bmmedSlots map[types.SidechainNumber]bool, commitments *types.BmmCommitments) error {
	if bmmedSlots[slot] {
		return connErr(ErrMultipleBmmBlocks, slot, "duplicate M7 commitment in block")
	}
	bmmedSlots[slot] = true
	*commitments = append(*commitments, types.BmmCommitment{
		SidechainNumber:    slot,
		SidechainBlockHash: sidechainBlockHash,
	})
	return nil
}

// handleM8 validates one non-coinbase transaction's output[0] as a BMM
// request, if it parses as one (spec.md §4.4 "M8"). Non-BMM transactions
// pass through silently.
func handleM8(tx *wire.Tx, commitments types.BmmCommitments, prevMainchainBlockHash types.Hash256) error {
	if len(tx.Outputs) < 1 {
		return nil
	}
	req, ok := ParseM8BmmRequest(tx.Outputs[0].ScriptPubkey)
	if !ok {
		return nil
	}
	committed, exists := commitments.Get(req.SidechainNumber)
	if !exists || committed != req.SidechainBlockHash {
		return connErr(ErrNotAcceptedByMiners, req.SidechainNumber, "no matching M7 commitment in this block")
	}
	if req.PrevMainchainBlockHash != prevMainchainBlockHash {
		return connErr(ErrBmmRequestExpired, req.SidechainNumber, "prev_mainchain_block_hash does not match block header")
	}
	return nil
}

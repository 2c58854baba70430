package drivechain

import (
	"testing"

	"github.com/octobocto/bip300301-enforcer/types"
	"github.com/octobocto/bip300301-enforcer/wire"
)

func TestHandleM7_RejectsDuplicateCommitmentForSameSlot(t *testing.T) {
	bmmed := map[types.SidechainNumber]bool{}
	var commitments types.BmmCommitments

	if err := handleM7(1, types.Hash256{1}, bmmed, &commitments); err != nil {
		t.Fatalf("first commitment: %v", err)
	}
	err := handleM7(1, types.Hash256{2}, bmmed, &commitments)
	ce, ok := err.(*ConnectError)
	if !ok || ce.Code != ErrMultipleBmmBlocks {
		t.Fatalf("expected ErrMultipleBmmBlocks, got %v", err)
	}
	if len(commitments) != 1 {
		t.Fatalf("expected only the first commitment to be recorded, got %+v", commitments)
	}
}

func TestHandleM8_RequiresMatchingM7CommitmentAndPrevHash(t *testing.T) {
	prevHash := types.Hash256{0x10}
	sidechainBlockHash := types.Hash256{0x20}
	commitments := types.BmmCommitments{
		{SidechainNumber: 5, SidechainBlockHash: sidechainBlockHash},
	}

	body := append([]byte{tagM8BmmRequest, 5}, append(append([]byte(nil), sidechainBlockHash[:]...), prevHash[:]...)...)
	tx := &wire.Tx{Outputs: []wire.TxOut{{Value: 0, ScriptPubkey: body}}}

	if err := handleM8(tx, commitments, prevHash); err != nil {
		t.Fatalf("expected matching M8 request to validate, got %v", err)
	}

	wrongPrev := types.Hash256{0x99}
	if err := handleM8(tx, commitments, wrongPrev); err == nil {
		t.Fatalf("expected ErrBmmRequestExpired on prev hash mismatch")
	} else if ce, ok := err.(*ConnectError); !ok || ce.Code != ErrBmmRequestExpired {
		t.Fatalf("expected ErrBmmRequestExpired, got %v", err)
	}

	noCommitmentBody := append([]byte{tagM8BmmRequest, 6}, append(append([]byte(nil), sidechainBlockHash[:]...), prevHash[:]...)...)
	txNoCommitment := &wire.Tx{Outputs: []wire.TxOut{{Value: 0, ScriptPubkey: noCommitmentBody}}}
	if err := handleM8(txNoCommitment, commitments, prevHash); err == nil {
		t.Fatalf("expected ErrNotAcceptedByMiners for slot with no M7 commitment")
	} else if ce, ok := err.(*ConnectError); !ok || ce.Code != ErrNotAcceptedByMiners {
		t.Fatalf("expected ErrNotAcceptedByMiners, got %v", err)
	}
}

func TestHandleM8_NonBmmOutputPassesThroughSilently(t *testing.T) {
	tx := &wire.Tx{Outputs: []wire.TxOut{{Value: 100, ScriptPubkey: []byte{0x76, 0xa9}}}}
	if err := handleM8(tx, nil, types.Hash256{}); err != nil {
		t.Fatalf("expected ordinary payment output to pass through, got %v", err)
	}
}

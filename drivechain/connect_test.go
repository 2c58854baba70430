package drivechain

import (
	"testing"

	"github.com/octobocto/bip300301-enforcer/store"
	"github.com/octobocto/bip300301-enforcer/types"
	"github.com/octobocto/bip300301-enforcer/wire"
)

func coinbaseTx(raw []byte, outputs ...wire.TxOut) *wire.Tx {
	return &wire.Tx{
		Raw: raw,
		Inputs: []wire.TxIn{
			{PrevTxid: [32]byte{}, PrevVout: 0xFFFFFFFF},
		},
		Outputs: outputs,
	}
}

func m1Output(slot byte, description string) wire.TxOut {
	return wire.TxOut{Value: 0, ScriptPubkey: append([]byte{tagM1ProposeSidechain, slot}, []byte(description)...)}
}

func genesisBlock(description string) *wire.Block {
	cb := coinbaseTx([]byte("coinbase-genesis"), m1Output(1, description))
	header := wire.BlockHeader{Version: 1, Bits: 0x207fffff}
	return &wire.Block{Header: header, Txs: []*wire.Tx{cb}, Txids: [][32]byte{cb.Txid()}}
}

func TestConnectBlock_RecordsM1ProposalAndAdvancesTip(t *testing.T) {
	db := openTestDB(t)
	block := genesisBlock("a brand new sidechain")

	event, becameTip, err := ConnectBlock(db, block, 0)
	if err != nil {
		t.Fatalf("ConnectBlock: %v", err)
	}
	if !becameTip {
		t.Fatalf("expected genesis block to become tip")
	}
	if event.Kind != types.EventConnectBlock {
		t.Fatalf("expected ConnectBlock event, got kind=%v", event.Kind)
	}
	if len(event.BlockInfo.SidechainProposals) != 1 {
		t.Fatalf("expected 1 touched proposal, got %+v", event.BlockInfo.SidechainProposals)
	}

	blockHash := types.Hash256(block.Header.Hash())
	err = db.View(func(txn *store.Txn) error {
		tip, ok, err := txn.GetChainTip()
		if err != nil {
			return err
		}
		if !ok || tip != blockHash {
			t.Fatalf("unexpected chain tip: %x ok=%v", tip, ok)
		}
		height, ok, err := txn.GetBlockHeight()
		if err != nil {
			return err
		}
		if !ok || height != 0 {
			t.Fatalf("unexpected height: %d ok=%v", height, ok)
		}
		var count int
		err = txn.IterateSidechainProposals(func(types.Hash256, types.SidechainProposal) error {
			count++
			return nil
		})
		if err != nil {
			return err
		}
		if count != 1 {
			t.Fatalf("expected 1 stored proposal, got %d", count)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestConnectThenDisconnect_RestoresPreConnectState(t *testing.T) {
	db := openTestDB(t)
	block := genesisBlock("reorg candidate sidechain")

	_, _, err := ConnectBlock(db, block, 0)
	if err != nil {
		t.Fatalf("ConnectBlock: %v", err)
	}
	blockHash := types.Hash256(block.Header.Hash())

	_, err = DisconnectBlock(db, blockHash)
	if err != nil {
		t.Fatalf("DisconnectBlock: %v", err)
	}

	err = db.View(func(txn *store.Txn) error {
		_, hasTip, err := txn.GetChainTip()
		if err != nil {
			return err
		}
		if hasTip {
			t.Fatalf("expected no chain tip after disconnecting the only block")
		}
		_, hasHeight, err := txn.GetBlockHeight()
		if err != nil {
			return err
		}
		if hasHeight {
			t.Fatalf("expected no stored height after disconnect")
		}
		if txn.ContainsHeaderInfo(blockHash) {
			t.Fatalf("expected header info to be removed after disconnect")
		}
		var count int
		err = txn.IterateSidechainProposals(func(types.Hash256, types.SidechainProposal) error {
			count++
			return nil
		})
		if err != nil {
			return err
		}
		if count != 0 {
			t.Fatalf("expected proposal to be rolled back, found %d remaining", count)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}

	_, _, err = ConnectBlock(db, block, 0)
	if err != nil {
		t.Fatalf("expected re-connecting the same block after disconnect to succeed: %v", err)
	}
}

func TestDisconnectBlock_ErrorsWithoutUndoRecord(t *testing.T) {
	db := openTestDB(t)
	_, err := DisconnectBlock(db, types.Hash256{0xFF})
	if err == nil {
		t.Fatalf("expected error disconnecting a block with no undo record")
	}
}

func TestFindForkPoint_LocksStepsBackToCommonAncestor(t *testing.T) {
	db := openTestDB(t)

	mkHeader := func(hash, prev types.Hash256, height uint32) types.HeaderInfo {
		return types.HeaderInfo{BlockHash: hash, PrevBlockHash: prev, Height: height}
	}

	genesis := types.Hash256{0}
	a1 := types.Hash256{1}
	a2 := types.Hash256{2}
	b1 := types.Hash256{3}
	b2 := types.Hash256{4}

	err := db.Update(func(txn *store.Txn) error {
		for _, h := range []types.HeaderInfo{
			mkHeader(genesis, types.Hash256{}, 0),
			mkHeader(a1, genesis, 1),
			mkHeader(a2, a1, 2),
			mkHeader(b1, genesis, 1),
			mkHeader(b2, b1, 2),
		} {
			if err := txn.PutHeaderInfo(h); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed headers: %v", err)
	}

	fork, err := FindForkPoint(db, a2, b2)
	if err != nil {
		t.Fatalf("FindForkPoint: %v", err)
	}
	if fork != genesis {
		t.Fatalf("expected fork point to be genesis, got %x", fork)
	}
}

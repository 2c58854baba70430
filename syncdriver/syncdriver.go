// Package syncdriver drives ConnectBlock/DisconnectBlock off the
// mainchain node's RPC surface and ZMQ notification stream (spec.md
// §4.6), grounded on the original's initial_sync/task_loop_once pair and
// styled after the teacher's node.SyncEngine: a small struct wrapping the
// store and RPC client, with explicit config rather than globals.
package syncdriver

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/octobocto/bip300301-enforcer/drivechain"
	"github.com/octobocto/bip300301-enforcer/eventbus"
	"github.com/octobocto/bip300301-enforcer/rpcclient"
	"github.com/octobocto/bip300301-enforcer/store"
	"github.com/octobocto/bip300301-enforcer/types"
	"github.com/octobocto/bip300301-enforcer/wire"
	"github.com/octobocto/bip300301-enforcer/zmqsub"
)

// Driver owns the single cooperative writer task (spec.md §5): it is the
// sole caller of drivechain.ConnectBlock/DisconnectBlock and the sole
// publisher on the event bus.
type Driver struct {
	db     *store.DB
	rpc    *rpcclient.Client
	events *eventbus.Bus
}

func New(db *store.DB, rpc *rpcclient.Client, events *eventbus.Bus) *Driver {
	return &Driver{db: db, rpc: rpc, events: events}
}

// InitialSync is the startup half of spec.md §4.6: ask the node for its
// best block hash, walk backward via getblockheader filling in any header
// gap between our store and that hash, then forward-connect every header
// on that chain with no stored block yet. It is just SyncToTip run once
// at process start.
func (d *Driver) InitialSync(ctx context.Context) error {
	return d.SyncToTip(ctx)
}

// SyncToTip re-runs the header+block gap-fill up to the node's current
// best block hash (spec.md §4.6 "sync_to_tip"). It fills the header
// store's gap back to a locally-known ancestor, reorgs onto the node's
// chain if it forked below our current tip, and forward-connects every
// block between the fork point (or our tip) and the node's best hash.
// Calling it twice in a row with no new blocks is a no-op (spec.md §8
// "Idempotent sync"), since the header gap and the connect walk are both
// already satisfied.
func (d *Driver) SyncToTip(ctx context.Context) error {
	bestHashHex, err := d.rpc.GetBestBlockHash()
	if err != nil {
		return fmt.Errorf("syncdriver: getbestblockhash: %w", err)
	}
	bestHash, err := wire.HashFromHex(bestHashHex)
	if err != nil {
		return fmt.Errorf("syncdriver: parsing best block hash: %w", err)
	}

	if err := d.fillHeaderGap(ctx, bestHash); err != nil {
		return err
	}

	currentTip, hasTip, err := d.chainTip()
	if err != nil {
		return err
	}
	if hasTip && currentTip != bestHash {
		fork, err := drivechain.FindForkPoint(d.db, currentTip, bestHash)
		if err != nil {
			return fmt.Errorf("syncdriver: finding fork point: %w", err)
		}
		if fork != currentTip {
			if err := d.disconnectTo(ctx, fork); err != nil {
				return err
			}
		}
	}

	return d.connectForwardTo(ctx, bestHash)
}

// fillHeaderGap repeatedly asks the Header Store for the latest ancestor
// of tipHash it is missing and fetches that single header via
// getblockheader, until the store's chain up to tipHash has no gaps
// (spec.md §4.6 "walk backwards ... computing the latest ancestor header
// we are missing ... until no gaps remain"). Stored headers are a
// skeleton only: the real HeaderInfo.Work for each height is written by
// ConnectBlock once that height's full block is actually connected, which
// overwrites this placeholder.
func (d *Driver) fillHeaderGap(ctx context.Context, tipHash types.Hash256) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var missing types.Hash256
		var hasGap bool
		err := d.db.View(func(txn *store.Txn) error {
			var err error
			missing, hasGap, err = txn.LatestMissingAncestor(tipHash)
			return err
		})
		if err != nil {
			return err
		}
		if !hasGap {
			return nil
		}

		header, err := d.rpc.GetBlockHeader(wire.HashToHex(missing))
		if err != nil {
			return fmt.Errorf("syncdriver: getblockheader(%x): %w", missing, err)
		}
		prevHash, err := wire.HashFromHex(header.PreviousHash)
		if err != nil {
			return fmt.Errorf("syncdriver: parsing previousblockhash: %w", err)
		}

		err = d.db.Update(func(txn *store.Txn) error {
			return txn.PutHeaderInfo(types.HeaderInfo{
				BlockHash:     missing,
				PrevBlockHash: prevHash,
				Height:        header.Height,
			})
		})
		if err != nil {
			return err
		}
	}
}

// disconnectTo unwinds the current chain tip one block at a time until it
// reaches fork, mirroring spec.md §5's reorg ordering: DisconnectBlock
// events fire from the old tip down to the fork point before any new
// block connects.
func (d *Driver) disconnectTo(ctx context.Context, fork types.Hash256) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		tip, hasTip, err := d.chainTip()
		if err != nil {
			return err
		}
		if !hasTip || tip == fork {
			return nil
		}
		event, err := drivechain.DisconnectBlock(d.db, tip)
		if err != nil {
			return err
		}
		d.events.Publish(event)
	}
}

// connectForwardTo walks the header skeleton backward from target to the
// current tip (or to genesis if nothing is connected yet), then connects
// every block on that path in forward order via the Block Connector
// (spec.md §4.6 "forward-connect every header with no stored block").
func (d *Driver) connectForwardTo(ctx context.Context, target types.Hash256) error {
	var path []types.Hash256
	cursor := target
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		tip, hasTip, err := d.chainTip()
		if err != nil {
			return err
		}
		if hasTip && cursor == tip {
			break
		}
		info, ok, err := d.headerInfo(cursor)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("syncdriver: missing header for %x while connecting to tip", cursor)
		}
		path = append(path, cursor)
		if !hasTip && info.PrevBlockHash == (types.Hash256{}) {
			break
		}
		cursor = info.PrevBlockHash
	}

	for i := len(path) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.connectHash(path[i]); err != nil {
			return err
		}
	}
	return nil
}

// Run drives steady-state sync: it blocks on sub's notification channel,
// calling SyncToTip on BlockConnected and DisconnectBlock on
// BlockDisconnected. Mempool notifications are ignored (spec.md §4.6).
func (d *Driver) Run(ctx context.Context, sub zmqsub.Subscriber) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case notif, ok := <-sub.Notifications():
			if !ok {
				return nil
			}
			switch notif.Kind {
			case zmqsub.BlockConnected:
				if err := d.SyncToTip(ctx); err != nil {
					return err
				}
			case zmqsub.BlockDisconnected:
				event, err := drivechain.DisconnectBlock(d.db, types.Hash256(notif.BlockHash))
				if err != nil {
					return err
				}
				d.events.Publish(event)
			case zmqsub.TxMempoolAdded, zmqsub.TxMempoolRemoved:
				// Ignored: this engine has no mempool-dependent state.
			}
		}
	}
}

func (d *Driver) chainTip() (types.Hash256, bool, error) {
	var tip types.Hash256
	var hasTip bool
	err := d.db.View(func(txn *store.Txn) error {
		var err error
		tip, hasTip, err = txn.GetChainTip()
		return err
	})
	return tip, hasTip, err
}

func (d *Driver) headerInfo(hash types.Hash256) (types.HeaderInfo, bool, error) {
	var info types.HeaderInfo
	var ok bool
	err := d.db.View(func(txn *store.Txn) error {
		var err error
		info, ok, err = txn.GetHeaderInfo(hash)
		return err
	})
	return info, ok, err
}

// connectHash fetches and connects the single block identified by hash,
// looking up its height from the already-filled header skeleton.
func (d *Driver) connectHash(hash types.Hash256) error {
	info, ok, err := d.headerInfo(hash)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("syncdriver: missing header for %x", hash)
	}
	hashHex := wire.HashToHex(hash)
	rawHex, err := d.rpc.GetBlock(hashHex)
	if err != nil {
		return fmt.Errorf("syncdriver: getblock(%s): %w", hashHex, err)
	}
	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		return fmt.Errorf("syncdriver: decoding block hex: %w", err)
	}
	block, err := wire.ParseBlock(raw)
	if err != nil {
		return fmt.Errorf("syncdriver: parsing block %x: %w", hash, err)
	}
	event, _, err := drivechain.ConnectBlock(d.db, block, info.Height)
	if err != nil {
		return fmt.Errorf("syncdriver: connecting block %x: %w", hash, err)
	}
	d.events.Publish(event)
	return nil
}

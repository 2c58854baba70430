package drivechain

import (
	"github.com/octobocto/bip300301-enforcer/types"
	"github.com/octobocto/bip300301-enforcer/wire"
)

// M6ToID computes the deterministic identity of a withdrawal bundle
// transaction, binding it to the pre-withdrawal treasury balance so that
// re-broadcasting the same bundle under a different old_total_value (e.g.
// after additional deposits landed) cannot collide with a previously
// voted-on m6id (spec.md §4.3 step 5).
func M6ToID(tx *wire.Tx, oldTotalValue int64) types.Hash256 {
	buf := append([]byte(nil), tx.Raw...)
	buf = wire.AppendU64le(buf, uint64(oldTotalValue))
	return types.Hash256(wire.Sha256d(buf))
}

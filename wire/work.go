package wire

import "math/big"

var twoPow256 = new(big.Int).Lsh(big.NewInt(1), 256)

// WorkFromTarget computes the work a block with the given target
// represents: floor(2^256 / (target+1)), Bitcoin's standard
// proof-of-work-to-work conversion. Reused from the teacher's
// node/store/work.go (floor(2^256/target)), adjusted by the
// target+1 term Bitcoin Core uses to keep work finite when target is the
// maximum possible value.
func WorkFromTarget(target [32]byte) *big.Int {
	t := new(big.Int).SetBytes(target[:])
	if t.Sign() == 0 {
		return new(big.Int)
	}
	denom := new(big.Int).Add(t, big.NewInt(1))
	work := new(big.Int).Div(twoPow256, denom)
	return work
}

// EncodeWorkLE packs a cumulative-work accumulator into the
// little-endian [32]byte representation HeaderInfo.Work is stored in.
func EncodeWorkLE(w *big.Int) [32]byte {
	var out [32]byte
	b := w.Bytes() // big-endian
	for i := 0; i < len(b) && i < 32; i++ {
		out[i] = b[len(b)-1-i]
	}
	return out
}

// DecodeWorkLE is the inverse of EncodeWorkLE.
func DecodeWorkLE(w [32]byte) *big.Int {
	be := make([]byte, 32)
	for i := 0; i < 32; i++ {
		be[i] = w[31-i]
	}
	return new(big.Int).SetBytes(be)
}

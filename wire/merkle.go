package wire

// MerkleRoot computes a plain Bitcoin merkle root over txids: pairwise
// SHA256d reduction, duplicating the last hash of an odd-sized level
// rather than carrying it forward unchanged (the teacher's
// consensus/merkle.go promotes an odd leaf unchanged and domain-tags every
// node — that is Rubin's own tagged scheme; Bitcoin's classic merkle has
// no leaf/node tag and duplicates the odd one out).
func MerkleRoot(txids [][32]byte) ([32]byte, error) {
	if len(txids) == 0 {
		return [32]byte{}, wireErr(ErrEmptyBlock, "merkle: empty txid list")
	}

	level := make([][32]byte, len(txids))
	copy(level, txids)

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([][32]byte, 0, len(level)/2)
		var pair [64]byte
		for i := 0; i < len(level); i += 2 {
			copy(pair[:32], level[i][:])
			copy(pair[32:], level[i+1][:])
			next = append(next, Sha256d(pair[:]))
		}
		level = next
	}
	return level[0], nil
}

package wire

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sha256d is Bitcoin's double-SHA256. Unlike the teacher's sha3_256 (used
// for Rubin's own chain hash), drivechain identifiers (block hashes,
// description hashes, m6ids) are exact Bitcoin consensus values and must
// use this hash.
func Sha256d(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

// HashFromHex parses a block hash as the mainchain node's RPC prints it
// (getblockhash, getbestblockhash, getblockheader's hash/previousblockhash
// fields: hex, byte-reversed for display) into the internal byte order
// used everywhere else in this package, e.g. BlockHeader.Hash(). An empty
// string decodes to the zero hash, matching Bitcoin Core's omission of
// "previousblockhash" for the genesis header.
func HashFromHex(s string) ([32]byte, error) {
	var h [32]byte
	if s == "" {
		return h, nil
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, wireErr(ErrParse, "invalid hash hex: "+err.Error())
	}
	if len(raw) != 32 {
		return h, wireErr(ErrParse, "hash is not 32 bytes")
	}
	for i := range raw {
		h[i] = raw[len(raw)-1-i]
	}
	return h, nil
}

// HashToHex is the inverse of HashFromHex: internal byte order to the
// node's RPC display order.
func HashToHex(h [32]byte) string {
	var rev [32]byte
	for i := range h {
		rev[i] = h[len(h)-1-i]
	}
	return hex.EncodeToString(rev[:])
}

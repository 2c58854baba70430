package wire

const headerBytes = 80

// BlockHeader is the 80-byte Bitcoin block header.
type BlockHeader struct {
	Version       int32
	PrevBlockHash [32]byte
	MerkleRoot    [32]byte
	Timestamp     uint32
	Bits          uint32
	Nonce         uint32
}

// ParseBlockHeader parses the fixed 80-byte Bitcoin header.
func ParseBlockHeader(b []byte) (BlockHeader, error) {
	var h BlockHeader
	if len(b) < headerBytes {
		return h, wireErr(ErrParse, "header too short")
	}
	off := 0
	version, err := readU32le(b, &off)
	if err != nil {
		return h, err
	}
	prevHash, err := readHash256(b, &off)
	if err != nil {
		return h, err
	}
	merkleRoot, err := readHash256(b, &off)
	if err != nil {
		return h, err
	}
	ts, err := readU32le(b, &off)
	if err != nil {
		return h, err
	}
	bits, err := readU32le(b, &off)
	if err != nil {
		return h, err
	}
	nonce, err := readU32le(b, &off)
	if err != nil {
		return h, err
	}
	h = BlockHeader{
		Version:       int32(version),
		PrevBlockHash: prevHash,
		MerkleRoot:    merkleRoot,
		Timestamp:     ts,
		Bits:          bits,
		Nonce:         nonce,
	}
	return h, nil
}

// Hash is the block's identity, the double-SHA256 of its 80-byte header.
func (h BlockHeader) Hash() [32]byte {
	var buf []byte
	buf = AppendU32le(buf, uint32(h.Version))
	buf = append(buf, h.PrevBlockHash[:]...)
	buf = append(buf, h.MerkleRoot[:]...)
	buf = AppendU32le(buf, h.Timestamp)
	buf = AppendU32le(buf, h.Bits)
	buf = AppendU32le(buf, h.Nonce)
	return Sha256d(buf)
}

// Target expands Bits' compact representation into a 256-bit big-endian
// target, matching Bitcoin's nBits encoding.
func (h BlockHeader) Target() [32]byte {
	var target [32]byte
	exponent := h.Bits >> 24
	mantissa := h.Bits & 0x007fffff
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		target[29], target[30], target[31] = byte(mantissa>>16), byte(mantissa>>8), byte(mantissa)
		return target
	}
	shift := int(exponent) - 3
	pos := 32 - shift
	if pos < 0 || pos > 32 {
		return target
	}
	if pos >= 1 {
		target[pos-1] = byte(mantissa)
	}
	if pos >= 2 {
		target[pos-2] = byte(mantissa >> 8)
	}
	if pos >= 3 {
		target[pos-3] = byte(mantissa >> 16)
	}
	return target
}

// Block is a fully parsed Bitcoin block: header plus transactions.
type Block struct {
	Header BlockHeader
	Txs    []*Tx
	Txids  [][32]byte
}

// ParseBlock decodes a full serialized block.
func ParseBlock(b []byte) (*Block, error) {
	if len(b) < headerBytes+1 {
		return nil, wireErr(ErrParse, "block too short")
	}
	header, err := ParseBlockHeader(b[:headerBytes])
	if err != nil {
		return nil, err
	}

	off := headerBytes
	txCount, err := readCompactSize(b, &off)
	if err != nil {
		return nil, wireErr(ErrParse, "invalid tx_count")
	}
	if txCount == 0 {
		return nil, wireErr(ErrEmptyBlock, "block has no transactions")
	}

	txs := make([]*Tx, 0, txCount)
	txids := make([][32]byte, 0, txCount)
	for i := uint64(0); i < txCount; i++ {
		if off >= len(b) {
			return nil, wireErr(ErrParse, "unexpected EOF in tx list")
		}
		tx, n, err := ParseTx(b[off:])
		if err != nil {
			return nil, err
		}
		off += n
		txs = append(txs, tx)
		txids = append(txids, tx.Txid())
	}
	if off != len(b) {
		return nil, wireErr(ErrTrailingBytes, "trailing bytes after tx list")
	}
	if !txs[0].IsCoinbase() {
		return nil, wireErr(ErrParse, "first transaction is not coinbase")
	}

	return &Block{Header: header, Txs: txs, Txids: txids}, nil
}

package wire

// TxIn is a transaction input.
type TxIn struct {
	PrevTxid [32]byte
	PrevVout uint32
	ScriptSig []byte
	Sequence uint32
}

// TxOut is a transaction output.
type TxOut struct {
	Value        int64
	ScriptPubkey []byte
}

// Tx is a parsed Bitcoin transaction. Witness data is consumed (so byte
// offsets stay correct for following transactions in a block) but
// discarded: the drivechain engine only inspects outputs, inputs'
// previous outpoints, and the raw non-witness transaction bytes (for
// txid/m6id hashing).
type Tx struct {
	Version  int32
	Inputs   []TxIn
	Outputs  []TxOut
	Locktime uint32

	// Raw holds the non-witness serialization, used for txid and m6id
	// hashing.
	Raw []byte
}

// IsCoinbase reports whether tx's sole input spends the null outpoint,
// the canonical marker for a coinbase transaction.
func (tx *Tx) IsCoinbase() bool {
	if len(tx.Inputs) != 1 {
		return false
	}
	in := tx.Inputs[0]
	var zero [32]byte
	return in.PrevTxid == zero && in.PrevVout == ^uint32(0)
}

// Txid is the double-SHA256 of tx's non-witness serialization.
func (tx *Tx) Txid() [32]byte {
	return Sha256d(tx.Raw)
}

// ParseTx parses one transaction starting at b[0], returning the parsed
// tx and the number of bytes consumed. Supports the BIP144 segwit
// marker/flag extension so that witness transactions parse at the
// correct byte length even though witness stacks themselves are dropped.
func ParseTx(b []byte) (*Tx, int, error) {
	off := 0
	version, err := readU32le(b, &off)
	if err != nil {
		return nil, 0, wireErr(ErrParse, "tx version")
	}

	segwit := false
	if off+2 <= len(b) && b[off] == 0x00 && b[off+1] != 0x00 {
		segwit = true
		off += 2
	}

	inCount, err := readCompactSize(b, &off)
	if err != nil {
		return nil, 0, wireErr(ErrParse, "tx in_count")
	}
	inputs := make([]TxIn, 0, inCount)
	for i := uint64(0); i < inCount; i++ {
		prevTxid, err := readHash256(b, &off)
		if err != nil {
			return nil, 0, wireErr(ErrParse, "tx input prevout txid")
		}
		prevVout, err := readU32le(b, &off)
		if err != nil {
			return nil, 0, wireErr(ErrParse, "tx input prevout vout")
		}
		scriptLen, err := readCompactSize(b, &off)
		if err != nil {
			return nil, 0, wireErr(ErrParse, "tx input script length")
		}
		scriptSig, err := readBytes(b, &off, int(scriptLen))
		if err != nil {
			return nil, 0, wireErr(ErrParse, "tx input script")
		}
		sequence, err := readU32le(b, &off)
		if err != nil {
			return nil, 0, wireErr(ErrParse, "tx input sequence")
		}
		inputs = append(inputs, TxIn{
			PrevTxid:  prevTxid,
			PrevVout:  prevVout,
			ScriptSig: append([]byte(nil), scriptSig...),
			Sequence:  sequence,
		})
	}

	outCount, err := readCompactSize(b, &off)
	if err != nil {
		return nil, 0, wireErr(ErrParse, "tx out_count")
	}
	outputs := make([]TxOut, 0, outCount)
	for i := uint64(0); i < outCount; i++ {
		value, err := readI64le(b, &off)
		if err != nil {
			return nil, 0, wireErr(ErrParse, "tx output value")
		}
		scriptLen, err := readCompactSize(b, &off)
		if err != nil {
			return nil, 0, wireErr(ErrParse, "tx output script length")
		}
		scriptPubkey, err := readBytes(b, &off, int(scriptLen))
		if err != nil {
			return nil, 0, wireErr(ErrParse, "tx output script")
		}
		outputs = append(outputs, TxOut{
			Value:        value,
			ScriptPubkey: append([]byte(nil), scriptPubkey...),
		})
	}

	if segwit {
		for i := uint64(0); i < inCount; i++ {
			stackLen, err := readCompactSize(b, &off)
			if err != nil {
				return nil, 0, wireErr(ErrParse, "tx witness stack length")
			}
			for j := uint64(0); j < stackLen; j++ {
				itemLen, err := readCompactSize(b, &off)
				if err != nil {
					return nil, 0, wireErr(ErrParse, "tx witness item length")
				}
				if _, err := readBytes(b, &off, int(itemLen)); err != nil {
					return nil, 0, wireErr(ErrParse, "tx witness item")
				}
			}
		}
	}

	locktime, err := readU32le(b, &off)
	if err != nil {
		return nil, 0, wireErr(ErrParse, "tx locktime")
	}

	tx := &Tx{
		Version:  int32(version),
		Inputs:   inputs,
		Outputs:  outputs,
		Locktime: locktime,
		Raw:      reconstructNonWitness(version, inputs, outputs, locktime),
	}
	return tx, off, nil
}

// reconstructNonWitness re-serializes a parsed transaction without the
// segwit marker/flag/witness, which is the form txid/m6id hashing
// requires regardless of whether the transaction was relayed with
// witness data.
func reconstructNonWitness(version uint32, inputs []TxIn, outputs []TxOut, locktime uint32) []byte {
	var buf []byte
	buf = AppendU32le(buf, version)
	buf = AppendCompactSize(buf, uint64(len(inputs)))
	for _, in := range inputs {
		buf = append(buf, in.PrevTxid[:]...)
		buf = AppendU32le(buf, in.PrevVout)
		buf = AppendCompactSize(buf, uint64(len(in.ScriptSig)))
		buf = append(buf, in.ScriptSig...)
		buf = AppendU32le(buf, in.Sequence)
	}
	buf = AppendCompactSize(buf, uint64(len(outputs)))
	for _, out := range outputs {
		buf = AppendU64le(buf, uint64(out.Value))
		buf = AppendCompactSize(buf, uint64(len(out.ScriptPubkey)))
		buf = append(buf, out.ScriptPubkey...)
	}
	buf = AppendU32le(buf, locktime)
	return buf
}

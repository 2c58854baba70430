package wire

import "testing"

func buildCoinbaseBytes(scriptSig []byte, outputs []TxOut, locktime uint32) []byte {
	var buf []byte
	buf = AppendU32le(buf, 1)
	buf = AppendCompactSize(buf, 1)
	var zero [32]byte
	buf = append(buf, zero[:]...)
	buf = AppendU32le(buf, 0xffffffff)
	buf = AppendCompactSize(buf, uint64(len(scriptSig)))
	buf = append(buf, scriptSig...)
	buf = AppendU32le(buf, 0xffffffff)
	buf = AppendCompactSize(buf, uint64(len(outputs)))
	for _, out := range outputs {
		buf = AppendU64le(buf, uint64(out.Value))
		buf = AppendCompactSize(buf, uint64(len(out.ScriptPubkey)))
		buf = append(buf, out.ScriptPubkey...)
	}
	buf = AppendU32le(buf, locktime)
	return buf
}

func TestParseTxCoinbase(t *testing.T) {
	raw := buildCoinbaseBytes([]byte{0x03, 0x01, 0x02, 0x03}, []TxOut{{Value: 5000000000, ScriptPubkey: []byte{0x51}}}, 0)
	tx, n, err := ParseTx(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len(raw) {
		t.Fatalf("consumed %d bytes, want %d", n, len(raw))
	}
	if !tx.IsCoinbase() {
		t.Fatal("expected coinbase tx")
	}
	if len(tx.Outputs) != 1 || tx.Outputs[0].Value != 5000000000 {
		t.Fatalf("unexpected outputs: %+v", tx.Outputs)
	}
}

func TestParseTxNonCoinbaseSpendingInput(t *testing.T) {
	var buf []byte
	buf = AppendU32le(buf, 1)
	buf = AppendCompactSize(buf, 1)
	var prevTxid [32]byte
	prevTxid[0] = 0xAB
	buf = append(buf, prevTxid[:]...)
	buf = AppendU32le(buf, 0)
	buf = AppendCompactSize(buf, 0)
	buf = AppendU32le(buf, 0xffffffff)
	buf = AppendCompactSize(buf, 1)
	buf = AppendU64le(buf, 100)
	buf = AppendCompactSize(buf, 1)
	buf = append(buf, 0x51)
	buf = AppendU32le(buf, 0)

	tx, n, err := ParseTx(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("consumed %d bytes, want %d", n, len(buf))
	}
	if tx.IsCoinbase() {
		t.Fatal("did not expect coinbase")
	}
	if tx.Inputs[0].PrevTxid != prevTxid {
		t.Fatalf("prev txid mismatch")
	}
}

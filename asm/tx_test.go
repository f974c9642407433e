package asm

import (
	"bytes"
	"testing"
)

func TestParseTxLegacy(t *testing.T) {
	raw := encodeTestTx([]TxOut{
		{Value: 5000, Script: []byte{0x51}},
		{Value: 0, Script: []byte{0x6a, 0x01, 0xaa}},
	})
	tx, consumed, err := ParseTx(raw)
	if err != nil {
		t.Fatal(err)
	}
	if consumed != len(raw) {
		t.Fatalf("consumed %d of %d", consumed, len(raw))
	}
	if tx.HasWitness {
		t.Fatal("legacy tx marked witness")
	}
	if len(tx.Outputs) != 2 || tx.Outputs[0].Value != 5000 {
		t.Fatalf("outputs=%+v", tx.Outputs)
	}
	if tx.TxID() != tx.WTxID() {
		t.Fatal("legacy txid != wtxid")
	}
}

func TestParseTxSegwit(t *testing.T) {
	outs := []TxOut{{Value: 1234, Script: []byte{0x51}}}
	raw := encodeTestSegwitTx(outs)
	tx, consumed, err := ParseTx(raw)
	if err != nil {
		t.Fatal(err)
	}
	if consumed != len(raw) {
		t.Fatalf("consumed %d of %d", consumed, len(raw))
	}
	if !tx.HasWitness {
		t.Fatal("witness not detected")
	}
	if tx.TxID() == tx.WTxID() {
		t.Fatal("segwit txid == wtxid")
	}

	// The txid must match the same transaction serialized without witness.
	legacy := encodeTestTx(outs)
	lt, _, err := ParseTx(legacy)
	if err != nil {
		t.Fatal(err)
	}
	if tx.TxID() != lt.TxID() {
		t.Fatal("stripped txid mismatch")
	}
}

func TestParseTxConsumesExactPrefix(t *testing.T) {
	one := encodeTestTx([]TxOut{{Value: 1, Script: []byte{0x51}}})
	two := append(append([]byte(nil), one...), encodeTestTx([]TxOut{{Value: 2, Script: []byte{0x52}}})...)
	_, consumed, err := ParseTx(two)
	if err != nil {
		t.Fatal(err)
	}
	if consumed != len(one) {
		t.Fatalf("consumed %d want %d", consumed, len(one))
	}
}

func TestParseTxRejectsTruncated(t *testing.T) {
	raw := encodeTestTx([]TxOut{{Value: 1, Script: []byte{0x51}}})
	for _, cut := range []int{0, 3, 10, len(raw) - 1} {
		if _, _, err := ParseTx(raw[:cut]); CodeOf(err) != ASM_ERR_TX_PARSE {
			t.Fatalf("cut %d: err=%v", cut, err)
		}
	}
}

func TestParseTxRejectsZeroInputs(t *testing.T) {
	b := AppendU32(nil, 2)
	b = append(b, 0x00) // no inputs
	b = append(b, 0x00) // no outputs
	b = AppendU32(b, 0)
	if _, _, err := ParseTx(b); CodeOf(err) != ASM_ERR_TX_PARSE {
		t.Fatalf("err=%v", err)
	}
}

func TestParseL1Block(t *testing.T) {
	p := RegtestParams()
	tx1 := encodeTestTx([]TxOut{{Value: 1, Script: []byte{0x51}}})
	tx2 := encodeTestSegwitTx([]TxOut{{Value: 2, Script: []byte{0x52}}})

	hdr := mineHeader([32]byte{}, p.PowLimitBits, 1000)
	raw := hdr.Encode()
	raw = append(raw, 0x02)
	raw = append(raw, tx1...)
	raw = append(raw, tx2...)

	block, err := ParseL1Block(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(block.Txs) != 2 {
		t.Fatalf("txs=%d", len(block.Txs))
	}
	if !bytes.Equal(block.Txs[0].Bytes, tx1) {
		t.Fatal("tx bytes not preserved")
	}

	pt1, _, _ := ParseTx(tx1)
	pt2, _, _ := ParseTx(tx2)
	if block.WtxidsRoot != WtxidsRoot([][32]byte{pt1.WTxID(), pt2.WTxID()}) {
		t.Fatal("wtxids root mismatch")
	}

	if _, err := ParseL1Block(append(raw, 0x00)); CodeOf(err) != ASM_ERR_L1_HEADER_INVALID {
		t.Fatalf("trailing: %v", err)
	}
	if _, err := ParseL1Block(raw[:60]); CodeOf(err) != ASM_ERR_L1_HEADER_INVALID {
		t.Fatalf("truncated: %v", err)
	}
}

package asm

// mineHeader grinds a nonce until the header satisfies its own declared
// bits. With regtest bits virtually every nonce passes, so tests stay fast.
func mineHeader(prev [32]byte, bits uint32, timestamp uint32) *Header {
	h := &Header{
		Version:   0x20000000,
		PrevBlock: prev,
		Timestamp: timestamp,
		Bits:      bits,
	}
	for nonce := uint32(0); ; nonce++ {
		h.Nonce = nonce
		if CheckProofOfWork(h, bits) == nil {
			return h
		}
	}
}

// encodeTestTx serializes a minimal legacy transaction with one null input
// and the given outputs.
func encodeTestTx(outs []TxOut) []byte {
	b := AppendU32(nil, 2)
	b = append(b, 0x01)
	b = append(b, make([]byte, 36)...)
	b = append(b, 0x00)
	b = AppendU32(b, 0xffffffff)
	b = append(b, byte(len(outs)))
	for _, o := range outs {
		b = AppendU64(b, o.Value)
		b = append(b, byte(len(o.Script)))
		b = append(b, o.Script...)
	}
	return AppendU32(b, 0)
}

// encodeTestSegwitTx is encodeTestTx with marker/flag and one empty witness
// stack per input.
func encodeTestSegwitTx(outs []TxOut) []byte {
	b := AppendU32(nil, 2)
	b = append(b, 0x00, 0x01)
	b = append(b, 0x01)
	b = append(b, make([]byte, 36)...)
	b = append(b, 0x00)
	b = AppendU32(b, 0xffffffff)
	b = append(b, byte(len(outs)))
	for _, o := range outs {
		b = AppendU64(b, o.Value)
		b = append(b, byte(len(o.Script)))
		b = append(b, o.Script...)
	}
	b = append(b, 0x01, 0x20)
	b = append(b, make([]byte, 32)...)
	return AppendU32(b, 0)
}

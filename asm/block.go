package asm

// L1Block is one Bitcoin block split into its header and raw transactions.
type L1Block struct {
	Header *Header
	Txs    []RawTx
	// WtxidsRoot over all parsed transactions, block order.
	WtxidsRoot [32]byte
}

// ParseL1Block splits a serialized block: 80-byte header, CompactSize tx
// count, then the transactions back to back. The whole buffer must be
// consumed exactly.
func ParseL1Block(b []byte) (*L1Block, error) {
	if len(b) < HeaderBytes {
		return nil, Errf(ASM_ERR_L1_HEADER_INVALID, "block: truncated header")
	}
	hdr, err := ParseHeader(b[:HeaderBytes])
	if err != nil {
		return nil, err
	}
	off := HeaderBytes

	count, n, err := DecodeCompactSize(b[off:])
	if err != nil {
		return nil, Errf(ASM_ERR_L1_HEADER_INVALID, "block: tx count: %v", err)
	}
	off += n
	if count > 1_000_000 {
		return nil, Errf(ASM_ERR_L1_HEADER_INVALID, "block: tx count %d", count)
	}

	txs := make([]RawTx, 0, count)
	wtxids := make([][32]byte, 0, count)
	for i := uint64(0); i < uint64(count); i++ {
		tx, consumed, err := ParseTx(b[off:])
		if err != nil {
			return nil, Errf(ASM_ERR_L1_HEADER_INVALID, "block: tx %d: %v", i, err)
		}
		txs = append(txs, RawTx{Bytes: append([]byte(nil), b[off:off+consumed]...)})
		wtxids = append(wtxids, tx.WTxID())
		off += consumed
	}
	if off != len(b) {
		return nil, Errf(ASM_ERR_L1_HEADER_INVALID, "block: %d trailing bytes", len(b)-off)
	}

	return &L1Block{Header: hdr, Txs: txs, WtxidsRoot: WtxidsRoot(wtxids)}, nil
}

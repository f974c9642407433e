package asm

// Minimal Bitcoin transaction deserialization: enough to measure a tx inside
// a block, walk its outputs for the protocol tag envelope, and compute
// txid/wtxid. Script execution and input validation are deliberately absent;
// the ASM routes transactions, it does not spend-check them.

// RawTx is one L1 transaction as it appeared in the block.
type RawTx struct {
	Bytes []byte
}

// TxInputRef couples a transaction with its parsed protocol tag and its
// position in the block. References are only valid while the block is being
// processed.
type TxInputRef struct {
	Tx    *RawTx
	Tag   TxTag
	Index uint32
}

type TxOut struct {
	Value  uint64
	Script []byte
}

type ParsedTx struct {
	Outputs    []TxOut
	HasWitness bool
	// stripped is the serialization without marker/flag/witness, i.e. the
	// txid preimage. Equals the raw bytes for legacy transactions.
	stripped []byte
	raw      []byte
}

func (tx *ParsedTx) TxID() [32]byte  { return sha256d(tx.stripped) }
func (tx *ParsedTx) WTxID() [32]byte { return sha256d(tx.raw) }

// ParseTx reads one transaction from the front of b and returns it along
// with the number of bytes consumed.
func ParseTx(b []byte) (*ParsedTx, int, error) {
	if len(b) < 4 {
		return nil, 0, Errf(ASM_ERR_TX_PARSE, "tx: truncated version")
	}
	off := 4
	hasWitness := false
	if len(b) >= 6 && b[4] == 0x00 && b[5] == 0x01 {
		hasWitness = true
		off = 6
	}
	strippedStart := off

	inCount, n, err := DecodeCompactSize(b[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	if inCount == 0 || inCount > 100_000 {
		return nil, 0, Errf(ASM_ERR_TX_PARSE, "tx: input count %d", inCount)
	}
	for i := uint64(0); i < uint64(inCount); i++ {
		if len(b) < off+36 {
			return nil, 0, Errf(ASM_ERR_TX_PARSE, "tx: truncated outpoint")
		}
		off += 36
		scriptLen, n, err := DecodeCompactSize(b[off:])
		if err != nil {
			return nil, 0, err
		}
		off += n
		if uint64(len(b)) < uint64(off)+uint64(scriptLen)+4 {
			return nil, 0, Errf(ASM_ERR_TX_PARSE, "tx: truncated input script")
		}
		off += int(scriptLen) + 4
	}

	outCount, n, err := DecodeCompactSize(b[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n
	if outCount > 100_000 {
		return nil, 0, Errf(ASM_ERR_TX_PARSE, "tx: output count %d", outCount)
	}
	outputs := make([]TxOut, 0, outCount)
	for i := uint64(0); i < uint64(outCount); i++ {
		if len(b) < off+8 {
			return nil, 0, Errf(ASM_ERR_TX_PARSE, "tx: truncated output value")
		}
		value := ReadU64(b[off:])
		off += 8
		scriptLen, n, err := DecodeCompactSize(b[off:])
		if err != nil {
			return nil, 0, err
		}
		off += n
		if uint64(len(b)) < uint64(off)+uint64(scriptLen) {
			return nil, 0, Errf(ASM_ERR_TX_PARSE, "tx: truncated output script")
		}
		outputs = append(outputs, TxOut{Value: value, Script: b[off : off+int(scriptLen)]})
		off += int(scriptLen)
	}
	strippedEnd := off

	if hasWitness {
		for i := uint64(0); i < uint64(inCount); i++ {
			itemCount, n, err := DecodeCompactSize(b[off:])
			if err != nil {
				return nil, 0, err
			}
			off += n
			for j := uint64(0); j < uint64(itemCount); j++ {
				itemLen, n, err := DecodeCompactSize(b[off:])
				if err != nil {
					return nil, 0, err
				}
				off += n
				if uint64(len(b)) < uint64(off)+uint64(itemLen) {
					return nil, 0, Errf(ASM_ERR_TX_PARSE, "tx: truncated witness item")
				}
				off += int(itemLen)
			}
		}
	}

	if len(b) < off+4 {
		return nil, 0, Errf(ASM_ERR_TX_PARSE, "tx: truncated locktime")
	}
	off += 4

	raw := b[:off]
	stripped := raw
	if hasWitness {
		stripped = make([]byte, 0, 4+(strippedEnd-strippedStart)+4)
		stripped = append(stripped, raw[0:4]...)
		stripped = append(stripped, raw[strippedStart:strippedEnd]...)
		stripped = append(stripped, raw[off-4:off]...)
	}
	return &ParsedTx{
		Outputs:    outputs,
		HasWitness: hasWitness,
		stripped:   stripped,
		raw:        raw,
	}, off, nil
}

package asm

const (
	opReturn    = 0x6a
	opPushdata1 = 0x4c
	opPushdata2 = 0x4d

	// tag envelope: magic(4) | subprotocol(1) | txtype(1) | aux bytes
	tagMinLen = 6
)

// TxTag is the routing tag carved out of a transaction's OP_RETURN envelope.
type TxTag struct {
	Subprotocol SubprotocolID
	TxType      uint8
	AuxData     []byte
}

// ParseTxTag scans a transaction's outputs for the first OP_RETURN payload
// that starts with magic and decodes the tag envelope from it. Transactions
// without a matching envelope, including ones that fail to deserialize at
// all, yield (zero, false); tag extraction never errors.
func ParseTxTag(magic [4]byte, txBytes []byte) (TxTag, bool) {
	tx, _, err := ParseTx(txBytes)
	if err != nil {
		return TxTag{}, false
	}
	for i := range tx.Outputs {
		payload, ok := opReturnPayload(tx.Outputs[i].Script)
		if !ok || len(payload) < tagMinLen {
			continue
		}
		if payload[0] != magic[0] || payload[1] != magic[1] || payload[2] != magic[2] || payload[3] != magic[3] {
			continue
		}
		return TxTag{
			Subprotocol: SubprotocolID(payload[4]),
			TxType:      payload[5],
			AuxData:     append([]byte(nil), payload[6:]...),
		}, true
	}
	return TxTag{}, false
}

// opReturnPayload extracts the data of a script of the exact form
// OP_RETURN <single push>. Anything else is not a tag carrier.
func opReturnPayload(script []byte) ([]byte, bool) {
	if len(script) < 2 || script[0] != opReturn {
		return nil, false
	}
	op := script[1]
	switch {
	case op >= 1 && op <= 75:
		if len(script) != 2+int(op) {
			return nil, false
		}
		return script[2:], true
	case op == opPushdata1:
		if len(script) < 3 || len(script) != 3+int(script[2]) {
			return nil, false
		}
		return script[3:], true
	case op == opPushdata2:
		if len(script) < 4 {
			return nil, false
		}
		n := int(script[2]) | int(script[3])<<8
		if len(script) != 4+n {
			return nil, false
		}
		return script[4:], true
	}
	return nil, false
}

// BuildTagScript assembles the OP_RETURN script for a tag envelope. Used by
// tests and tooling; consensus only ever parses.
func BuildTagScript(magic [4]byte, id SubprotocolID, txType uint8, auxData []byte) []byte {
	payload := make([]byte, 0, tagMinLen+len(auxData))
	payload = append(payload, magic[:]...)
	payload = append(payload, byte(id), txType)
	payload = append(payload, auxData...)

	script := []byte{opReturn}
	switch {
	case len(payload) <= 75:
		script = append(script, byte(len(payload)))
	case len(payload) <= 0xff:
		script = append(script, opPushdata1, byte(len(payload)))
	default:
		script = append(script, opPushdata2, byte(len(payload)), byte(len(payload)>>8))
	}
	return append(script, payload...)
}

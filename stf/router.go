package stf

import "anchorsm.dev/node/asm"

// RouteProtocolTxs classifies every transaction of a block by its tag
// envelope and groups the matches per subprotocol, preserving block order
// within each group. Transactions without a valid envelope for magic are
// dropped. Pure function: grouping is fully determined by the input bytes.
func RouteProtocolTxs(magic [4]byte, txs []asm.RawTx) map[asm.SubprotocolID][]asm.TxInputRef {
	out := make(map[asm.SubprotocolID][]asm.TxInputRef)
	for i := range txs {
		tag, ok := asm.ParseTxTag(magic, txs[i].Bytes)
		if !ok {
			continue
		}
		out[tag.Subprotocol] = append(out[tag.Subprotocol], asm.TxInputRef{
			Tx:    &txs[i],
			Tag:   tag,
			Index: uint32(i),
		})
	}
	return out
}

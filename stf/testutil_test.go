package stf

import (
	"fmt"

	"anchorsm.dev/node/asm"
)

// mineHeader grinds a nonce against the header's own declared bits.
func mineHeader(prev [32]byte, bits uint32, timestamp uint32) *asm.Header {
	h := &asm.Header{
		Version:   0x20000000,
		PrevBlock: prev,
		Timestamp: timestamp,
		Bits:      bits,
	}
	for nonce := uint32(0); ; nonce++ {
		h.Nonce = nonce
		if asm.CheckProofOfWork(h, bits) == nil {
			return h
		}
	}
}

// encodeTestTx serializes a minimal legacy transaction with one null input.
func encodeTestTx(outs []asm.TxOut) []byte {
	b := asm.AppendU32(nil, 2)
	b = append(b, 0x01)
	b = append(b, make([]byte, 36)...)
	b = append(b, 0x00)
	b = asm.AppendU32(b, 0xffffffff)
	b = append(b, byte(len(outs)))
	for _, o := range outs {
		b = asm.AppendU64(b, o.Value)
		b = append(b, byte(len(o.Script)))
		b = append(b, o.Script...)
	}
	return asm.AppendU32(b, 0)
}

func taggedTx(magic [4]byte, id asm.SubprotocolID, txType uint8, aux []byte) []byte {
	return encodeTestTx([]asm.TxOut{
		{Value: 1000, Script: []byte{0x51}},
		{Value: 0, Script: asm.BuildTagScript(magic, id, txType, aux)},
	})
}

// encodeTestBlock assembles header | tx count | txs.
func encodeTestBlock(hdr *asm.Header, txs ...[]byte) []byte {
	out := hdr.Encode()
	out = append(out, asm.CompactSize(len(txs)).Encode()...)
	for _, tx := range txs {
		out = append(out, tx...)
	}
	return out
}

type fakeMsg struct {
	To   asm.SubprotocolID
	Note string
}

func (m fakeMsg) Target() asm.SubprotocolID { return m.To }

// fakeSub records the stage calls it receives and can relay one message per
// processed block.
type fakeSub struct {
	id     asm.SubprotocolID
	sendTo asm.SubprotocolID // zero means no message
	trace  *[]string

	inbox   []asm.Msg
	section []byte
}

func newFakeSub(id asm.SubprotocolID, trace *[]string) *fakeSub {
	return &fakeSub{id: id, trace: trace, section: []byte{byte(id)}}
}

func (f *fakeSub) record(event string) {
	if f.trace != nil {
		*f.trace = append(*f.trace, fmt.Sprintf("%d:%s", f.id, event))
	}
}

func (f *fakeSub) ID() asm.SubprotocolID { return f.id }

func (f *fakeSub) Init(genesis []byte) error {
	f.record("init")
	return nil
}

func (f *fakeSub) Load(section []byte) error {
	f.record("load")
	f.section = append([]byte(nil), section...)
	return nil
}

func (f *fakeSub) PreProcessTxs(txs []asm.TxInputRef, req *AuxRequester, _ *asm.AnchorState) error {
	f.record("preprocess")
	return nil
}

func (f *fakeSub) ProcessTxs(txs []asm.TxInputRef, _ *AuxResolver, _ *asm.AnchorState, out *Relayer) error {
	f.record("process")
	if f.sendTo != 0 {
		out.RelayMsg(fakeMsg{To: f.sendTo, Note: fmt.Sprintf("from-%d", f.id)})
	}
	out.EmitLog([]byte{byte(f.id)})
	return nil
}

func (f *fakeSub) ProcessMsgs(msgs []asm.Msg) {
	f.record(fmt.Sprintf("msgs(%d)", len(msgs)))
	f.inbox = append(f.inbox, msgs...)
}

func (f *fakeSub) Section() ([]byte, error) {
	return f.section, nil
}

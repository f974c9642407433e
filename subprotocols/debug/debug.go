// Package debug is the development subprotocol. Its only transaction type
// echoes a range of historical logs back through the aux protocol, which
// exercises the full request/resolve/verify path end to end on a running
// chain.
package debug

import (
	"anchorsm.dev/node/asm"
	"anchorsm.dev/node/stf"
)

const (
	TxTypeLogEcho uint8 = 1

	LogEchoDigest uint8 = 1

	// Log echo aux data: from_leaf u64 | to_leaf u64, inclusive.
	logEchoAuxLen = 16
)

// LogRangeQuery asks the provider for the logs of manifest leaves
// [From, To] with membership proofs.
type LogRangeQuery struct {
	From uint64
	To   uint64
}

func (LogRangeQuery) AuxPayload() {}

type State struct {
	Queries uint64
}

type Subprotocol struct {
	state State
}

func New() *Subprotocol { return &Subprotocol{} }

func (s *Subprotocol) ID() asm.SubprotocolID { return asm.SubprotocolDebug }

func (s *Subprotocol) Init(genesis []byte) error {
	if len(genesis) != 0 {
		return asm.Errf(asm.ASM_ERR_GENESIS_INVALID, "debug genesis: unexpected %d bytes", len(genesis))
	}
	s.state = State{}
	return nil
}

func (s *Subprotocol) Load(section []byte) error {
	if len(section) != 8 {
		return asm.Errf(asm.ASM_ERR_SECTION_INVALID, "debug state: %d bytes", len(section))
	}
	s.state = State{Queries: asm.ReadU64(section)}
	return nil
}

func (s *Subprotocol) PreProcessTxs(txs []asm.TxInputRef, req *stf.AuxRequester, _ *asm.AnchorState) error {
	for i := range txs {
		q, ok := parseQuery(&txs[i].Tag)
		if !ok {
			continue
		}
		req.Request(txs[i].Index, q)
	}
	return nil
}

func (s *Subprotocol) ProcessTxs(txs []asm.TxInputRef, aux *stf.AuxResolver, _ *asm.AnchorState, out *stf.Relayer) error {
	for i := range txs {
		if _, ok := parseQuery(&txs[i].Tag); !ok {
			continue
		}
		logs, err := aux.HistoricalLogs(txs[i].Index)
		if err != nil {
			return err
		}
		s.state.Queries++

		digest := asm.Sha3_256(asm.EncodeLogs(logs))
		entry := []byte{LogEchoDigest}
		entry = asm.AppendU32(entry, uint32(len(logs)))
		entry = append(entry, digest[:]...)
		out.EmitLog(entry)
	}
	return nil
}

func (s *Subprotocol) ProcessMsgs([]asm.Msg) {}

func (s *Subprotocol) Section() ([]byte, error) {
	return asm.AppendU64(nil, s.state.Queries), nil
}

func (s *Subprotocol) State() *State { return &s.state }

func parseQuery(tag *asm.TxTag) (LogRangeQuery, bool) {
	if tag.TxType != TxTypeLogEcho || len(tag.AuxData) != logEchoAuxLen {
		return LogRangeQuery{}, false
	}
	q := LogRangeQuery{From: asm.ReadU64(tag.AuxData), To: asm.ReadU64(tag.AuxData[8:])}
	if q.From > q.To {
		return LogRangeQuery{}, false
	}
	return q, true
}

package debug

import (
	"fmt"
	"testing"

	"anchorsm.dev/node/asm"
	"anchorsm.dev/node/stf"
)

func echoRef(index uint32, from, to uint64) asm.TxInputRef {
	aux := asm.AppendU64(nil, from)
	aux = asm.AppendU64(aux, to)
	return asm.TxInputRef{
		Tag: asm.TxTag{Subprotocol: asm.SubprotocolDebug, TxType: TxTypeLogEcho, AuxData: aux},
	}
}

func historyView(t *testing.T, n int) (*asm.ChainViewState, []stf.LogSegment) {
	t.Helper()
	h := &asm.Header{Bits: asm.RegtestParams().PowLimitBits, Timestamp: 1000}
	cv := asm.NewChainViewState(asm.NewPowState(0, h))

	blockIDs := make([][32]byte, n)
	logs := make([][]asm.LogEntry, n)
	leaves := make([][32]byte, n)
	for i := 0; i < n; i++ {
		blockIDs[i][0] = byte(i + 1)
		logs[i] = []asm.LogEntry{{Source: asm.SubprotocolBridge, Data: []byte(fmt.Sprintf("h-%d", i))}}
		leaves[i] = asm.ManifestLeafHash(blockIDs[i], logs[i])
		cv.AddManifestLeaf(leaves[i])
	}

	segments := make([]stf.LogSegment, n)
	for i := 0; i < n; i++ {
		proof, err := asm.ProofForLeaf(leaves, uint64(i))
		if err != nil {
			t.Fatal(err)
		}
		segments[i] = stf.LogSegment{BlockID: blockIDs[i], Logs: logs[i], Proof: *proof}
	}
	return cv, segments
}

func TestPreProcessCollectsRangeQueries(t *testing.T) {
	s := New()
	if err := s.Init(nil); err != nil {
		t.Fatal(err)
	}

	c := stf.NewAuxCollector()
	txs := []asm.TxInputRef{
		echoRef(0, 1, 3),
		echoRef(1, 5, 2), // inverted range, dropped
		{Tag: asm.TxTag{Subprotocol: asm.SubprotocolDebug, TxType: TxTypeLogEcho, AuxData: []byte{1}}}, // short aux
	}
	if err := s.PreProcessTxs(txs, c.Requester(asm.SubprotocolDebug), nil); err != nil {
		t.Fatal(err)
	}
	reqs := c.Requests()[asm.SubprotocolDebug]
	if len(reqs) != 1 {
		t.Fatalf("requests=%v", reqs)
	}
	q := reqs[0].Payload.(LogRangeQuery)
	if q.From != 1 || q.To != 3 {
		t.Fatalf("query=%+v", q)
	}
}

func TestLogEchoEmitsDigest(t *testing.T) {
	cv, segments := historyView(t, 4)

	s := New()
	if err := s.Init(nil); err != nil {
		t.Fatal(err)
	}
	out := stf.NewRelayer(asm.SubprotocolDebug)
	aux := stf.NewAuxResolver(asm.SubprotocolDebug, cv, map[uint32][]stf.AuxResponse{
		0: {stf.HistoricalLogsRange{Segments: segments[1:3]}},
	})

	if err := s.ProcessTxs([]asm.TxInputRef{echoRef(0, 1, 2)}, aux, nil, out); err != nil {
		t.Fatal(err)
	}
	if s.State().Queries != 1 {
		t.Fatalf("queries=%d", s.State().Queries)
	}
	logs := out.Logs()
	if len(logs) != 1 || logs[0].Data[0] != LogEchoDigest {
		t.Fatalf("logs=%v", logs)
	}
	if asm.ReadU32(logs[0].Data[1:]) != 2 {
		t.Fatalf("echoed count=%d", asm.ReadU32(logs[0].Data[1:]))
	}
}

func TestLogEchoBadProofAborts(t *testing.T) {
	cv, segments := historyView(t, 2)
	forged := segments[0]
	forged.Logs = []asm.LogEntry{{Source: asm.SubprotocolBridge, Data: []byte("forged")}}

	s := New()
	if err := s.Init(nil); err != nil {
		t.Fatal(err)
	}
	out := stf.NewRelayer(asm.SubprotocolDebug)
	aux := stf.NewAuxResolver(asm.SubprotocolDebug, cv, map[uint32][]stf.AuxResponse{
		0: {stf.HistoricalLogs{Segment: forged}},
	})

	err := s.ProcessTxs([]asm.TxInputRef{echoRef(0, 0, 0)}, aux, nil, out)
	if asm.CodeOf(err) != asm.ASM_ERR_AUX_LOG_PROOF_INVALID {
		t.Fatalf("err=%v", err)
	}
}

func TestDebugStateRoundTrip(t *testing.T) {
	s := New()
	if err := s.Init(nil); err != nil {
		t.Fatal(err)
	}
	s.State().Queries = 41
	section, err := s.Section()
	if err != nil {
		t.Fatal(err)
	}
	restored := New()
	if err := restored.Load(section); err != nil {
		t.Fatal(err)
	}
	if restored.State().Queries != 41 {
		t.Fatal("roundtrip mismatch")
	}
	if err := restored.Load([]byte{1, 2}); asm.CodeOf(err) != asm.ASM_ERR_SECTION_INVALID {
		t.Fatalf("truncated: %v", err)
	}
}

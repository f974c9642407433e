package stf

import (
	"bytes"
	"fmt"
	"testing"

	"anchorsm.dev/node/asm"
)

// historyFixture builds a chain view whose MMR holds n manifest leaves and
// returns the per-leaf block ids and logs needed to assemble segments.
func historyFixture(t *testing.T, n int) (*asm.ChainViewState, [][32]byte, [][]asm.LogEntry, [][32]byte) {
	t.Helper()
	p := asm.RegtestParams()
	genesis := mineHeader([32]byte{}, p.PowLimitBits, 1000)
	cv := asm.NewChainViewState(asm.NewPowState(0, genesis))

	blockIDs := make([][32]byte, n)
	logs := make([][]asm.LogEntry, n)
	leaves := make([][32]byte, n)
	for i := 0; i < n; i++ {
		blockIDs[i][0] = byte(i + 1)
		logs[i] = []asm.LogEntry{{Source: asm.SubprotocolBridge, Data: []byte(fmt.Sprintf("log-%d", i))}}
		leaves[i] = asm.ManifestLeafHash(blockIDs[i], logs[i])
		cv.AddManifestLeaf(leaves[i])
	}
	return cv, blockIDs, logs, leaves
}

func segment(t *testing.T, leaves [][32]byte, blockIDs [][32]byte, logs [][]asm.LogEntry, i int) LogSegment {
	t.Helper()
	proof, err := asm.ProofForLeaf(leaves, uint64(i))
	if err != nil {
		t.Fatal(err)
	}
	return LogSegment{BlockID: blockIDs[i], Logs: logs[i], Proof: *proof}
}

func TestResolverHistoricalLogs(t *testing.T) {
	cv, blockIDs, logs, leaves := historyFixture(t, 6)

	byTx := map[uint32][]AuxResponse{
		3: {HistoricalLogsRange{Segments: []LogSegment{
			segment(t, leaves, blockIDs, logs, 1),
			segment(t, leaves, blockIDs, logs, 2),
		}}},
		7: {HistoricalLogs{Segment: segment(t, leaves, blockIDs, logs, 5)}},
	}
	r := NewAuxResolver(asm.SubprotocolDebug, cv, byTx)

	got, err := r.HistoricalLogs(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || !bytes.Equal(got[0].Data, []byte("log-1")) || !bytes.Equal(got[1].Data, []byte("log-2")) {
		t.Fatalf("got %v", got)
	}

	got, err = r.HistoricalLogs(7)
	if err != nil || len(got) != 1 {
		t.Fatalf("single segment: %v %v", got, err)
	}

	// No envelopes for this tx is the common case, not an error.
	got, err = r.HistoricalLogs(99)
	if err != nil || len(got) != 0 {
		t.Fatalf("empty: %v %v", got, err)
	}
}

func TestResolverRejectsBadProof(t *testing.T) {
	cv, blockIDs, logs, leaves := historyFixture(t, 4)

	seg := segment(t, leaves, blockIDs, logs, 2)
	seg.Logs = []asm.LogEntry{{Source: asm.SubprotocolBridge, Data: []byte("forged")}}
	r := NewAuxResolver(asm.SubprotocolDebug, cv, map[uint32][]AuxResponse{
		0: {HistoricalLogs{Segment: seg}},
	})
	_, err := r.HistoricalLogs(0)
	if asm.CodeOf(err) != asm.ASM_ERR_AUX_LOG_PROOF_INVALID {
		t.Fatalf("err=%v", err)
	}

	// One bad segment in a range poisons the whole read.
	good := segment(t, leaves, blockIDs, logs, 1)
	r = NewAuxResolver(asm.SubprotocolDebug, cv, map[uint32][]AuxResponse{
		0: {HistoricalLogsRange{Segments: []LogSegment{good, seg}}},
	})
	if _, err := r.HistoricalLogs(0); asm.CodeOf(err) != asm.ASM_ERR_AUX_LOG_PROOF_INVALID {
		t.Fatalf("range err=%v", err)
	}
}

func TestResolverTypeMismatch(t *testing.T) {
	cv, _, _, _ := historyFixture(t, 2)

	r := NewAuxResolver(asm.SubprotocolBridge, cv, map[uint32][]AuxResponse{
		1: {DepositRequestTx{RawTx: []byte{0x01}}},
	})
	if _, err := r.HistoricalLogs(1); asm.CodeOf(err) != asm.ASM_ERR_AUX_TYPE_MISMATCH {
		t.Fatalf("logs err=%v", err)
	}

	r = NewAuxResolver(asm.SubprotocolBridge, cv, map[uint32][]AuxResponse{
		1: {HistoricalLogs{}},
	})
	if _, err := r.DepositRequestTx(1); asm.CodeOf(err) != asm.ASM_ERR_AUX_TYPE_MISMATCH {
		t.Fatalf("tx err=%v", err)
	}
}

func TestResolverDepositRequestTx(t *testing.T) {
	cv, _, _, _ := historyFixture(t, 1)
	raw := []byte{0xde, 0xad, 0xbe, 0xef}
	r := NewAuxResolver(asm.SubprotocolBridge, cv, map[uint32][]AuxResponse{
		4: {DepositRequestTx{RawTx: raw}},
	})

	got, err := r.DepositRequestTx(4)
	if err != nil || !bytes.Equal(got, raw) {
		t.Fatalf("got %x err=%v", got, err)
	}

	// Missing is a legitimate nil answer.
	got, err = r.DepositRequestTx(5)
	if err != nil || got != nil {
		t.Fatalf("missing: %x %v", got, err)
	}
}

func TestCollectorScopesRequests(t *testing.T) {
	c := NewAuxCollector()
	c.Requester(asm.SubprotocolBridge).Request(2, DepositTxQueryStub{})
	c.Requester(asm.SubprotocolDebug).Request(0, DepositTxQueryStub{})
	c.Requester(asm.SubprotocolBridge).Request(5, DepositTxQueryStub{})

	reqs := c.Requests()
	if len(reqs[asm.SubprotocolBridge]) != 2 || len(reqs[asm.SubprotocolDebug]) != 1 {
		t.Fatalf("requests=%v", reqs)
	}
	if reqs[asm.SubprotocolBridge][0].TxIndex != 2 || reqs[asm.SubprotocolBridge][1].TxIndex != 5 {
		t.Fatal("request order not preserved")
	}
}

// DepositTxQueryStub is a minimal payload for collector tests.
type DepositTxQueryStub struct{}

func (DepositTxQueryStub) AuxPayload() {}

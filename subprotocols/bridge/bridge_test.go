package bridge

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcutil/bech32"

	"anchorsm.dev/node/asm"
	"anchorsm.dev/node/stf"
)

var testMagic = [4]byte{'A', 'S', 'M', 'r'}

// encodeTx serializes a minimal legacy tx with one null input.
func encodeTx(outs []asm.TxOut) []byte {
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

func newBridge(t *testing.T, minDeposit uint64) *Subprotocol {
	t.Helper()
	s := New()
	cfg := GenesisConfig{MinDepositSats: minDeposit, Magic: testMagic}
	if err := s.Init(cfg.Encode()); err != nil {
		t.Fatal(err)
	}
	return s
}

// requestTx builds a deposit-request transaction carrying dest in its tag.
func requestTx(dest []byte) ([]byte, [32]byte) {
	raw := encodeTx([]asm.TxOut{
		{Value: 0, Script: asm.BuildTagScript(testMagic, asm.SubprotocolBridge, TxTypeDepositRequest, dest)},
	})
	parsed, _, _ := asm.ParseTx(raw)
	return raw, parsed.TxID()
}

// depositRef builds the deposit TxInputRef paying amount with aux
// request_txid | dest.
func depositRef(index uint32, amount uint64, reqTxid [32]byte, dest []byte) asm.TxInputRef {
	aux := append(append([]byte(nil), reqTxid[:]...), dest...)
	raw := encodeTx([]asm.TxOut{
		{Value: amount, Script: []byte{0x51}},
		{Value: 0, Script: asm.BuildTagScript(testMagic, asm.SubprotocolBridge, TxTypeDeposit, aux)},
	})
	return asm.TxInputRef{
		Tx:    &asm.RawTx{Bytes: raw},
		Tag:   asm.TxTag{Subprotocol: asm.SubprotocolBridge, TxType: TxTypeDeposit, AuxData: aux},
		Index: index,
	}
}

func resolverWith(byTx map[uint32][]stf.AuxResponse) *stf.AuxResolver {
	return stf.NewAuxResolver(asm.SubprotocolBridge, &asm.ChainViewState{}, byTx)
}

func TestPreProcessRequestsDepositTx(t *testing.T) {
	s := newBridge(t, 1000)
	_, reqTxid := requestTx([]byte("dest"))

	c := stf.NewAuxCollector()
	txs := []asm.TxInputRef{depositRef(4, 5000, reqTxid, []byte("dest"))}
	if err := s.PreProcessTxs(txs, c.Requester(asm.SubprotocolBridge), nil); err != nil {
		t.Fatal(err)
	}
	reqs := c.Requests()[asm.SubprotocolBridge]
	if len(reqs) != 1 || reqs[0].TxIndex != 4 {
		t.Fatalf("requests=%v", reqs)
	}
	q, ok := reqs[0].Payload.(DepositTxQuery)
	if !ok || q.RequestTxid != reqTxid {
		t.Fatalf("payload=%#v", reqs[0].Payload)
	}
}

func TestDepositAdmittedWithMatchingRequest(t *testing.T) {
	s := newBridge(t, 1000)
	dest := []byte("rollup-acct-1")
	rawReq, reqTxid := requestTx(dest)

	out := stf.NewRelayer(asm.SubprotocolBridge)
	txs := []asm.TxInputRef{depositRef(0, 5000, reqTxid, dest)}
	aux := resolverWith(map[uint32][]stf.AuxResponse{0: {stf.DepositRequestTx{RawTx: rawReq}}})
	if err := s.ProcessTxs(txs, aux, nil, out); err != nil {
		t.Fatal(err)
	}

	st := s.State()
	if len(st.Deposits) != 1 || st.NextDepositIdx != 1 {
		t.Fatalf("deposits=%v", st.Deposits)
	}
	d := st.Deposits[0]
	if d.AmountSats != 5000 || !bytes.Equal(d.Dest, dest) {
		t.Fatalf("deposit=%+v", d)
	}
	logs := out.Logs()
	if len(logs) != 1 || logs[0].Data[0] != LogDeposit {
		t.Fatalf("logs=%v", logs)
	}
}

func TestDepositSkippedNotAborted(t *testing.T) {
	s := newBridge(t, 1000)
	dest := []byte("dest")
	rawReq, reqTxid := requestTx(dest)
	out := stf.NewRelayer(asm.SubprotocolBridge)

	cases := []struct {
		name string
		ref  asm.TxInputRef
		aux  map[uint32][]stf.AuxResponse
	}{
		{
			name: "below minimum",
			ref:  depositRef(0, 999, reqTxid, dest),
			aux:  map[uint32][]stf.AuxResponse{0: {stf.DepositRequestTx{RawTx: rawReq}}},
		},
		{
			name: "destination mismatch",
			ref:  depositRef(0, 5000, reqTxid, []byte("other")),
			aux:  map[uint32][]stf.AuxResponse{0: {stf.DepositRequestTx{RawTx: rawReq}}},
		},
		{
			name: "aux too short",
			ref: asm.TxInputRef{
				Tx:  &asm.RawTx{Bytes: encodeTx([]asm.TxOut{{Value: 5000, Script: []byte{0x51}}})},
				Tag: asm.TxTag{Subprotocol: asm.SubprotocolBridge, TxType: TxTypeDeposit, AuxData: []byte{1, 2}},
			},
		},
	}
	for _, tc := range cases {
		if err := s.ProcessTxs([]asm.TxInputRef{tc.ref}, resolverWith(tc.aux), nil, out); err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if len(s.State().Deposits) != 0 {
			t.Fatalf("%s: deposit admitted", tc.name)
		}
	}
}

func TestDepositWithoutProviderAnswerAdmitted(t *testing.T) {
	// A missing request-tx envelope means the provider had nothing indexed;
	// the deposit stands on its own tag data.
	s := newBridge(t, 1000)
	_, reqTxid := requestTx([]byte("dest"))
	out := stf.NewRelayer(asm.SubprotocolBridge)

	txs := []asm.TxInputRef{depositRef(0, 5000, reqTxid, []byte("dest"))}
	if err := s.ProcessTxs(txs, resolverWith(nil), nil, out); err != nil {
		t.Fatal(err)
	}
	if len(s.State().Deposits) != 1 {
		t.Fatal("deposit not admitted")
	}
}

func TestDepositAuxTypeMismatchIsStructural(t *testing.T) {
	s := newBridge(t, 1000)
	_, reqTxid := requestTx([]byte("dest"))
	out := stf.NewRelayer(asm.SubprotocolBridge)

	txs := []asm.TxInputRef{depositRef(0, 5000, reqTxid, []byte("dest"))}
	aux := resolverWith(map[uint32][]stf.AuxResponse{0: {stf.HistoricalLogs{}}})
	err := s.ProcessTxs(txs, aux, nil, out)
	if asm.CodeOf(err) != asm.ASM_ERR_AUX_TYPE_MISMATCH {
		t.Fatalf("err=%v", err)
	}
}

func withdrawalRef(index uint32, amount uint64, addr string) asm.TxInputRef {
	aux := asm.AppendU64(nil, amount)
	aux = append(aux, addr...)
	return asm.TxInputRef{
		Tx:    &asm.RawTx{Bytes: encodeTx(nil)},
		Tag:   asm.TxTag{Subprotocol: asm.SubprotocolBridge, TxType: TxTypeWithdrawal, AuxData: aux},
		Index: index,
	}
}

func TestWithdrawalLifecycle(t *testing.T) {
	s := newBridge(t, 1000)
	addr, err := bech32.Encode("tb", []byte{0, 1, 2, 3, 4, 5, 6, 7})
	if err != nil {
		t.Fatal(err)
	}

	out := stf.NewRelayer(asm.SubprotocolBridge)
	txs := []asm.TxInputRef{
		withdrawalRef(0, 7000, addr),
		withdrawalRef(1, 100, "not-a-bech32-address"),
	}
	if err := s.ProcessTxs(txs, resolverWith(nil), nil, out); err != nil {
		t.Fatal(err)
	}

	st := s.State()
	if len(st.Withdrawals) != 1 {
		t.Fatalf("withdrawals=%v", st.Withdrawals)
	}
	if st.Withdrawals[0].Status != WithdrawalPending {
		t.Fatal("fresh withdrawal not pending")
	}

	// Epoch finalization flips pending withdrawals to claimable.
	s.ProcessMsgs([]asm.Msg{CheckpointFinalized{Epoch: 1}})
	if st.FinalizedEpoch != 1 || st.Withdrawals[0].Status != WithdrawalClaimable {
		t.Fatalf("state=%+v", st)
	}

	// Stale or repeated epochs are ignored.
	s.ProcessMsgs([]asm.Msg{CheckpointFinalized{Epoch: 1}})
	if st.FinalizedEpoch != 1 {
		t.Fatal("stale epoch applied")
	}
}

func TestBridgeStateRoundTrip(t *testing.T) {
	s := newBridge(t, 1000)
	st := s.State()
	st.Deposits = []DepositEntry{{Idx: 0, AmountSats: 5000, Dest: []byte("d")}}
	st.NextDepositIdx = 1
	st.Withdrawals = []WithdrawalEntry{{Idx: 0, AmountSats: 7000, Addr: "tb1q", Status: WithdrawalClaimable}}
	st.NextWithdrawalIdx = 1
	st.FinalizedEpoch = 3

	section, err := s.Section()
	if err != nil {
		t.Fatal(err)
	}
	restored := New()
	if err := restored.Load(section); err != nil {
		t.Fatal(err)
	}
	again, err := restored.Section()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(section, again) {
		t.Fatal("roundtrip mismatch")
	}

	if _, err := DecodeState(section[:10]); asm.CodeOf(err) != asm.ASM_ERR_SECTION_INVALID {
		t.Fatalf("truncated: %v", err)
	}
}

func TestBridgeGenesisValidation(t *testing.T) {
	if err := New().Init([]byte{1, 2, 3}); asm.CodeOf(err) != asm.ASM_ERR_GENESIS_INVALID {
		t.Fatalf("err=%v", err)
	}
}

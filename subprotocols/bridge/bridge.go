// Package bridge implements the deposit/withdrawal subprotocol: it ingests
// operator deposits from tagged L1 transactions, cross-checks them against
// the original deposit-request transactions fetched as aux data, and queues
// withdrawals that settle once the checkpoint subprotocol finalizes an epoch.
package bridge

import (
	"bytes"

	"github.com/btcsuite/btcutil/bech32"

	"anchorsm.dev/node/asm"
	"anchorsm.dev/node/stf"
)

const (
	TxTypeDeposit        uint8 = 1
	TxTypeDepositRequest uint8 = 2
	TxTypeWithdrawal     uint8 = 3

	LogDeposit    uint8 = 1
	LogWithdrawal uint8 = 2

	// Deposit aux data: request_txid 32 | dest 1..64 bytes.
	minDepositAux = 33
	maxDestLen    = 64

	WithdrawalPending   uint8 = 0
	WithdrawalClaimable uint8 = 1
)

// DepositTxQuery asks the aux provider for the raw deposit-request
// transaction a deposit claims to fulfill.
type DepositTxQuery struct {
	RequestTxid [32]byte
}

func (DepositTxQuery) AuxPayload() {}

// CheckpointFinalized is sent by the checkpoint subprotocol when an epoch is
// confirmed on L1; pending withdrawals become claimable.
type CheckpointFinalized struct {
	Epoch uint32
}

func (CheckpointFinalized) Target() asm.SubprotocolID { return asm.SubprotocolBridge }

type DepositEntry struct {
	Idx        uint32
	AmountSats uint64
	Dest       []byte
}

type WithdrawalEntry struct {
	Idx        uint32
	AmountSats uint64
	Addr       string
	Status     uint8
}

type State struct {
	MinDepositSats    uint64
	Magic             [4]byte
	FinalizedEpoch    uint32
	NextDepositIdx    uint32
	Deposits          []DepositEntry
	NextWithdrawalIdx uint32
	Withdrawals       []WithdrawalEntry
}

type Subprotocol struct {
	state State
}

func New() *Subprotocol { return &Subprotocol{} }

func (s *Subprotocol) ID() asm.SubprotocolID { return asm.SubprotocolBridge }

func (s *Subprotocol) Init(genesis []byte) error {
	cfg, err := DecodeGenesisConfig(genesis)
	if err != nil {
		return err
	}
	s.state = State{MinDepositSats: cfg.MinDepositSats, Magic: cfg.Magic}
	return nil
}

func (s *Subprotocol) Load(section []byte) error {
	st, err := DecodeState(section)
	if err != nil {
		return err
	}
	s.state = *st
	return nil
}

func (s *Subprotocol) PreProcessTxs(txs []asm.TxInputRef, req *stf.AuxRequester, _ *asm.AnchorState) error {
	for i := range txs {
		if txs[i].Tag.TxType != TxTypeDeposit || len(txs[i].Tag.AuxData) < minDepositAux {
			continue
		}
		var q DepositTxQuery
		copy(q.RequestTxid[:], txs[i].Tag.AuxData[:32])
		req.Request(txs[i].Index, q)
	}
	return nil
}

func (s *Subprotocol) ProcessTxs(txs []asm.TxInputRef, aux *stf.AuxResolver, _ *asm.AnchorState, out *stf.Relayer) error {
	for i := range txs {
		switch txs[i].Tag.TxType {
		case TxTypeDeposit:
			if err := s.processDeposit(&txs[i], aux, out); err != nil {
				return err
			}
		case TxTypeWithdrawal:
			s.processWithdrawal(&txs[i], out)
		}
		// Unknown tx types and deposit requests themselves are ignored here;
		// requests only matter as aux lookups for later deposits.
	}
	return nil
}

// processDeposit admits one deposit or skips it. The only error that can
// escape is an aux resolution failure, which is structural.
func (s *Subprotocol) processDeposit(tx *asm.TxInputRef, aux *stf.AuxResolver, out *stf.Relayer) error {
	auxData := tx.Tag.AuxData
	if len(auxData) < minDepositAux || len(auxData) > minDepositAux-1+maxDestLen {
		return nil
	}
	var reqTxid [32]byte
	copy(reqTxid[:], auxData[:32])
	dest := auxData[32:]

	parsed, _, err := asm.ParseTx(tx.Tx.Bytes)
	if err != nil || len(parsed.Outputs) == 0 {
		return nil
	}
	amount := parsed.Outputs[0].Value
	if amount < s.state.MinDepositSats {
		return nil
	}

	rawReq, err := aux.DepositRequestTx(tx.Index)
	if err != nil {
		return err
	}
	if rawReq != nil && !s.requestMatches(rawReq, reqTxid, dest) {
		return nil
	}

	entry := DepositEntry{
		Idx:        s.state.NextDepositIdx,
		AmountSats: amount,
		Dest:       append([]byte(nil), dest...),
	}
	s.state.Deposits = append(s.state.Deposits, entry)
	s.state.NextDepositIdx++

	log := []byte{LogDeposit}
	log = asm.AppendU32(log, entry.Idx)
	log = asm.AppendU64(log, entry.AmountSats)
	log = append(log, byte(len(entry.Dest)))
	log = append(log, entry.Dest...)
	out.EmitLog(log)
	return nil
}

// requestMatches verifies the provider-supplied request tx is the one the
// deposit names and that it asked for the same destination.
func (s *Subprotocol) requestMatches(rawReq []byte, reqTxid [32]byte, dest []byte) bool {
	parsed, _, err := asm.ParseTx(rawReq)
	if err != nil {
		return false
	}
	if parsed.TxID() != reqTxid {
		return false
	}
	tag, ok := asm.ParseTxTag(s.state.Magic, rawReq)
	if !ok || tag.Subprotocol != asm.SubprotocolBridge || tag.TxType != TxTypeDepositRequest {
		return false
	}
	return bytes.Equal(tag.AuxData, dest)
}

// Withdrawal aux data: amount u64le | bech32 address.
func (s *Subprotocol) processWithdrawal(tx *asm.TxInputRef, out *stf.Relayer) {
	auxData := tx.Tag.AuxData
	if len(auxData) < 8+1 {
		return
	}
	amount := asm.ReadU64(auxData)
	addr := string(auxData[8:])
	if _, _, err := bech32.Decode(addr); err != nil {
		return
	}

	entry := WithdrawalEntry{
		Idx:        s.state.NextWithdrawalIdx,
		AmountSats: amount,
		Addr:       addr,
		Status:     WithdrawalPending,
	}
	s.state.Withdrawals = append(s.state.Withdrawals, entry)
	s.state.NextWithdrawalIdx++

	log := []byte{LogWithdrawal}
	log = asm.AppendU32(log, entry.Idx)
	log = asm.AppendU64(log, entry.AmountSats)
	log = asm.AppendU16(log, uint16(len(addr)))
	log = append(log, addr...)
	out.EmitLog(log)
}

func (s *Subprotocol) ProcessMsgs(msgs []asm.Msg) {
	for _, m := range msgs {
		fin, ok := m.(CheckpointFinalized)
		if !ok || fin.Epoch <= s.state.FinalizedEpoch {
			continue
		}
		s.state.FinalizedEpoch = fin.Epoch
		for i := range s.state.Withdrawals {
			if s.state.Withdrawals[i].Status == WithdrawalPending {
				s.state.Withdrawals[i].Status = WithdrawalClaimable
			}
		}
	}
}

func (s *Subprotocol) Section() ([]byte, error) {
	return EncodeState(&s.state), nil
}

// State returns the current in-memory state; used by tests and tooling.
func (s *Subprotocol) State() *State { return &s.state }

// Package admin implements the governance subprotocol: threshold-signed
// actions posted to L1 that reconfigure other subprotocols via
// inter-protocol messages (upgrade scheduling, checkpoint key rotation).
package admin

import (
	"crypto/ed25519"

	"anchorsm.dev/node/asm"
	"anchorsm.dev/node/stf"
	"anchorsm.dev/node/subprotocols/checkpoint"
	"anchorsm.dev/node/subprotocols/upgrade"
)

const (
	TxTypeAction uint8 = 1

	ActionScheduleUpgrade  uint8 = 1
	ActionSetCheckpointKey uint8 = 2

	LogAction uint8 = 1

	sigContext = "asm-admin-action-v1"
)

type State struct {
	Keys      [][ed25519.PublicKeySize]byte
	Threshold uint8
	Seq       uint64 // count of applied actions
}

type Subprotocol struct {
	state State
}

func New() *Subprotocol { return &Subprotocol{} }

func (s *Subprotocol) ID() asm.SubprotocolID { return asm.SubprotocolAdmin }

func (s *Subprotocol) Init(genesis []byte) error {
	cfg, err := DecodeGenesisConfig(genesis)
	if err != nil {
		return err
	}
	if cfg.Threshold == 0 || int(cfg.Threshold) > len(cfg.Keys) {
		return asm.Errf(asm.ASM_ERR_GENESIS_INVALID, "admin: threshold %d of %d keys", cfg.Threshold, len(cfg.Keys))
	}
	s.state = State{Keys: cfg.Keys, Threshold: cfg.Threshold}
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

func (s *Subprotocol) PreProcessTxs([]asm.TxInputRef, *stf.AuxRequester, *asm.AnchorState) error {
	return nil
}

func (s *Subprotocol) ProcessTxs(txs []asm.TxInputRef, _ *stf.AuxResolver, _ *asm.AnchorState, out *stf.Relayer) error {
	for i := range txs {
		if txs[i].Tag.TxType != TxTypeAction {
			continue
		}
		s.processAction(txs[i].Tag.AuxData, out)
	}
	return nil
}

// Action aux data: action u8 | body_len u16 | body | sig_count u8 |
// (key_idx u8 | sig 64) each. Undersigned, duplicated-signer, or malformed
// actions are skipped.
func (s *Subprotocol) processAction(auxData []byte, out *stf.Relayer) {
	if len(auxData) < 1+2 {
		return
	}
	action := auxData[0]
	bodyLen := int(asm.ReadU16(auxData[1:]))
	if len(auxData) < 3+bodyLen+1 {
		return
	}
	body := auxData[3 : 3+bodyLen]
	sigCount := int(auxData[3+bodyLen])
	sigs := auxData[3+bodyLen+1:]
	if len(sigs) != sigCount*(1+ed25519.SignatureSize) {
		return
	}

	if !s.verifyThreshold(action, body, sigCount, sigs) {
		return
	}

	var msg asm.Msg
	switch action {
	case ActionScheduleUpgrade:
		if len(body) < 8+1 {
			return
		}
		msg = upgrade.Schedule{
			Height:  asm.ReadU64(body),
			Payload: append([]byte(nil), body[8:]...),
		}
	case ActionSetCheckpointKey:
		if len(body) != ed25519.PublicKeySize {
			return
		}
		var set checkpoint.SetVerifyKey
		copy(set.Key[:], body)
		msg = set
	default:
		return
	}

	s.state.Seq++
	out.RelayMsg(msg)

	log := []byte{LogAction, action}
	log = asm.AppendU64(log, s.state.Seq)
	out.EmitLog(log)
}

func (s *Subprotocol) verifyThreshold(action uint8, body []byte, sigCount int, sigs []byte) bool {
	if sigCount < int(s.state.Threshold) {
		return false
	}
	digest := ActionDigest(action, s.state.Seq, body)
	seen := make(map[int]bool, sigCount)
	valid := 0
	for i := 0; i < sigCount; i++ {
		rec := sigs[i*(1+ed25519.SignatureSize):]
		keyIdx := int(rec[0])
		if keyIdx >= len(s.state.Keys) || seen[keyIdx] {
			return false
		}
		seen[keyIdx] = true
		if !ed25519.Verify(s.state.Keys[keyIdx][:], digest, rec[1:1+ed25519.SignatureSize]) {
			return false
		}
		valid++
	}
	return valid >= int(s.state.Threshold)
}

func (s *Subprotocol) ProcessMsgs([]asm.Msg) {}

func (s *Subprotocol) Section() ([]byte, error) {
	return EncodeState(&s.state), nil
}

func (s *Subprotocol) State() *State { return &s.state }

// ActionDigest binds an action to the governance sequence number so a signed
// action cannot be replayed.
func ActionDigest(action uint8, seq uint64, body []byte) []byte {
	preimage := append([]byte(sigContext), 0x00, action)
	preimage = asm.AppendU64(preimage, seq)
	preimage = append(preimage, body...)
	digest := asm.Sha3_256(preimage)
	return digest[:]
}

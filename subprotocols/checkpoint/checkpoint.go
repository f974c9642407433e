// Package checkpoint implements the epoch-checkpoint subprotocol: it
// verifies signed checkpoints posted to L1, advances the confirmed epoch,
// and notifies the bridge so settled withdrawals can be released.
package checkpoint

import (
	"crypto/ed25519"

	"anchorsm.dev/node/asm"
	"anchorsm.dev/node/stf"
	"anchorsm.dev/node/subprotocols/bridge"
)

const (
	TxTypeCheckpoint uint8 = 1

	LogCheckpointUpdate uint8 = 1

	// Checkpoint aux data: epoch u32 | state_root 32 | sig 64.
	checkpointAuxLen = 4 + 32 + ed25519.SignatureSize

	sigContext = "asm-checkpoint-v1"
)

// SetVerifyKey rotates the checkpoint verification key; sent by the admin
// subprotocol after a governance action.
type SetVerifyKey struct {
	Key [ed25519.PublicKeySize]byte
}

func (SetVerifyKey) Target() asm.SubprotocolID { return asm.SubprotocolCheckpoint }

type State struct {
	VerifyKey     [ed25519.PublicKeySize]byte
	Epoch         uint32
	LastStateRoot [32]byte
}

type Subprotocol struct {
	state State
}

func New() *Subprotocol { return &Subprotocol{} }

func (s *Subprotocol) ID() asm.SubprotocolID { return asm.SubprotocolCheckpoint }

func (s *Subprotocol) Init(genesis []byte) error {
	cfg, err := DecodeGenesisConfig(genesis)
	if err != nil {
		return err
	}
	s.state = State{VerifyKey: cfg.VerifyKey, Epoch: cfg.StartEpoch}
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
		if txs[i].Tag.TxType != TxTypeCheckpoint {
			continue
		}
		s.processCheckpoint(txs[i].Tag.AuxData, out)
	}
	return nil
}

// processCheckpoint accepts a correctly signed successor checkpoint and
// skips everything else. Adversarial payloads must never abort the block.
func (s *Subprotocol) processCheckpoint(auxData []byte, out *stf.Relayer) {
	if len(auxData) != checkpointAuxLen {
		return
	}
	epoch := asm.ReadU32(auxData)
	var stateRoot [32]byte
	copy(stateRoot[:], auxData[4:36])
	sig := auxData[36:]

	if epoch != s.state.Epoch+1 {
		return
	}
	if !ed25519.Verify(s.state.VerifyKey[:], SigMessage(epoch, stateRoot), sig) {
		return
	}

	s.state.Epoch = epoch
	s.state.LastStateRoot = stateRoot

	log := []byte{LogCheckpointUpdate}
	log = asm.AppendU32(log, epoch)
	log = append(log, stateRoot[:]...)
	out.EmitLog(log)

	out.RelayMsg(bridge.CheckpointFinalized{Epoch: epoch})
}

func (s *Subprotocol) ProcessMsgs(msgs []asm.Msg) {
	for _, m := range msgs {
		if set, ok := m.(SetVerifyKey); ok {
			s.state.VerifyKey = set.Key
		}
	}
}

func (s *Subprotocol) Section() ([]byte, error) {
	return EncodeState(&s.state), nil
}

func (s *Subprotocol) State() *State { return &s.state }

// SigMessage is the domain-separated preimage a checkpoint signature covers.
func SigMessage(epoch uint32, stateRoot [32]byte) []byte {
	msg := append([]byte(sigContext), 0x00)
	msg = asm.AppendU32(msg, epoch)
	return append(msg, stateRoot[:]...)
}

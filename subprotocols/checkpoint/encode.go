package checkpoint

import (
	"crypto/ed25519"

	"anchorsm.dev/node/asm"
)

// GenesisConfig layout: verify_key 32 | start_epoch u32.
type GenesisConfig struct {
	VerifyKey  [ed25519.PublicKeySize]byte
	StartEpoch uint32
}

func (c *GenesisConfig) Encode() []byte {
	out := append([]byte(nil), c.VerifyKey[:]...)
	return asm.AppendU32(out, c.StartEpoch)
}

func DecodeGenesisConfig(b []byte) (*GenesisConfig, error) {
	if len(b) != ed25519.PublicKeySize+4 {
		return nil, asm.Errf(asm.ASM_ERR_GENESIS_INVALID, "checkpoint genesis: %d bytes", len(b))
	}
	var c GenesisConfig
	copy(c.VerifyKey[:], b[:32])
	c.StartEpoch = asm.ReadU32(b[32:])
	return &c, nil
}

// State layout: verify_key 32 | epoch u32 | last_state_root 32.
func EncodeState(s *State) []byte {
	out := append([]byte(nil), s.VerifyKey[:]...)
	out = asm.AppendU32(out, s.Epoch)
	return append(out, s.LastStateRoot[:]...)
}

func DecodeState(b []byte) (*State, error) {
	if len(b) != 32+4+32 {
		return nil, asm.Errf(asm.ASM_ERR_SECTION_INVALID, "checkpoint state: %d bytes", len(b))
	}
	var s State
	copy(s.VerifyKey[:], b[:32])
	s.Epoch = asm.ReadU32(b[32:])
	copy(s.LastStateRoot[:], b[36:])
	return &s, nil
}

package admin

import (
	"crypto/ed25519"

	"anchorsm.dev/node/asm"
)

// GenesisConfig layout: threshold u8 | key_count u8 | key 32 each.
type GenesisConfig struct {
	Keys      [][ed25519.PublicKeySize]byte
	Threshold uint8
}

func (c *GenesisConfig) Encode() []byte {
	out := []byte{c.Threshold, byte(len(c.Keys))}
	for i := range c.Keys {
		out = append(out, c.Keys[i][:]...)
	}
	return out
}

func DecodeGenesisConfig(b []byte) (*GenesisConfig, error) {
	if len(b) < 2 {
		return nil, asm.Errf(asm.ASM_ERR_GENESIS_INVALID, "admin genesis: truncated")
	}
	count := int(b[1])
	if len(b) != 2+32*count {
		return nil, asm.Errf(asm.ASM_ERR_GENESIS_INVALID, "admin genesis: %d bytes for %d keys", len(b), count)
	}
	c := GenesisConfig{Threshold: b[0]}
	for i := 0; i < count; i++ {
		var key [ed25519.PublicKeySize]byte
		copy(key[:], b[2+32*i:])
		c.Keys = append(c.Keys, key)
	}
	return &c, nil
}

// State layout: threshold u8 | seq u64 | key_count u8 | key 32 each.
func EncodeState(s *State) []byte {
	out := []byte{s.Threshold}
	out = asm.AppendU64(out, s.Seq)
	out = append(out, byte(len(s.Keys)))
	for i := range s.Keys {
		out = append(out, s.Keys[i][:]...)
	}
	return out
}

func DecodeState(b []byte) (*State, error) {
	if len(b) < 10 {
		return nil, asm.Errf(asm.ASM_ERR_SECTION_INVALID, "admin state: truncated")
	}
	count := int(b[9])
	if len(b) != 10+32*count {
		return nil, asm.Errf(asm.ASM_ERR_SECTION_INVALID, "admin state: %d bytes for %d keys", len(b), count)
	}
	s := State{Threshold: b[0], Seq: asm.ReadU64(b[1:])}
	for i := 0; i < count; i++ {
		var key [ed25519.PublicKeySize]byte
		copy(key[:], b[10+32*i:])
		s.Keys = append(s.Keys, key)
	}
	return &s, nil
}

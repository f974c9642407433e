package bridge

import "anchorsm.dev/node/asm"

// GenesisConfig layout: min_deposit_sats u64 | magic 4.
type GenesisConfig struct {
	MinDepositSats uint64
	Magic          [4]byte
}

func (c *GenesisConfig) Encode() []byte {
	out := asm.AppendU64(nil, c.MinDepositSats)
	return append(out, c.Magic[:]...)
}

func DecodeGenesisConfig(b []byte) (*GenesisConfig, error) {
	if len(b) != 12 {
		return nil, asm.Errf(asm.ASM_ERR_GENESIS_INVALID, "bridge genesis: %d bytes", len(b))
	}
	var c GenesisConfig
	c.MinDepositSats = asm.ReadU64(b)
	copy(c.Magic[:], b[8:12])
	return &c, nil
}

// State layout:
// min_deposit u64 | magic 4 | finalized_epoch u32 |
// next_deposit u32 | deposit_count u32 |
//   (idx u32 | amount u64 | dest_len u8 | dest) each |
// next_withdrawal u32 | withdrawal_count u32 |
//   (idx u32 | amount u64 | status u8 | addr_len u16 | addr) each.
func EncodeState(s *State) []byte {
	out := asm.AppendU64(nil, s.MinDepositSats)
	out = append(out, s.Magic[:]...)
	out = asm.AppendU32(out, s.FinalizedEpoch)
	out = asm.AppendU32(out, s.NextDepositIdx)
	out = asm.AppendU32(out, uint32(len(s.Deposits)))
	for i := range s.Deposits {
		d := &s.Deposits[i]
		out = asm.AppendU32(out, d.Idx)
		out = asm.AppendU64(out, d.AmountSats)
		out = append(out, byte(len(d.Dest)))
		out = append(out, d.Dest...)
	}
	out = asm.AppendU32(out, s.NextWithdrawalIdx)
	out = asm.AppendU32(out, uint32(len(s.Withdrawals)))
	for i := range s.Withdrawals {
		w := &s.Withdrawals[i]
		out = asm.AppendU32(out, w.Idx)
		out = asm.AppendU64(out, w.AmountSats)
		out = append(out, w.Status)
		out = asm.AppendU16(out, uint16(len(w.Addr)))
		out = append(out, w.Addr...)
	}
	return out
}

func DecodeState(b []byte) (*State, error) {
	fail := func(what string) (*State, error) {
		return nil, asm.Errf(asm.ASM_ERR_SECTION_INVALID, "bridge state: %s", what)
	}
	if len(b) < 8+4+4+4+4 {
		return fail("truncated header")
	}
	var s State
	s.MinDepositSats = asm.ReadU64(b)
	copy(s.Magic[:], b[8:12])
	s.FinalizedEpoch = asm.ReadU32(b[12:])
	s.NextDepositIdx = asm.ReadU32(b[16:])
	depCount := int(asm.ReadU32(b[20:]))
	off := 24
	s.Deposits = make([]DepositEntry, 0, depCount)
	for i := 0; i < depCount; i++ {
		if len(b) < off+13 {
			return fail("truncated deposit")
		}
		d := DepositEntry{
			Idx:        asm.ReadU32(b[off:]),
			AmountSats: asm.ReadU64(b[off+4:]),
		}
		destLen := int(b[off+12])
		off += 13
		if len(b) < off+destLen {
			return fail("truncated deposit dest")
		}
		d.Dest = append([]byte(nil), b[off:off+destLen]...)
		off += destLen
		s.Deposits = append(s.Deposits, d)
	}
	if len(b) < off+8 {
		return fail("truncated withdrawal header")
	}
	s.NextWithdrawalIdx = asm.ReadU32(b[off:])
	wdCount := int(asm.ReadU32(b[off+4:]))
	off += 8
	s.Withdrawals = make([]WithdrawalEntry, 0, wdCount)
	for i := 0; i < wdCount; i++ {
		if len(b) < off+15 {
			return fail("truncated withdrawal")
		}
		w := WithdrawalEntry{
			Idx:        asm.ReadU32(b[off:]),
			AmountSats: asm.ReadU64(b[off+4:]),
			Status:     b[off+12],
		}
		addrLen := int(asm.ReadU16(b[off+13:]))
		off += 15
		if len(b) < off+addrLen {
			return fail("truncated withdrawal addr")
		}
		w.Addr = string(b[off : off+addrLen])
		off += addrLen
		s.Withdrawals = append(s.Withdrawals, w)
	}
	if off != len(b) {
		return fail("trailing bytes")
	}
	return &s, nil
}

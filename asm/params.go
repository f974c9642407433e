package asm

// Params fixes the L1 network rules the ASM verifies against plus the magic
// bytes that mark protocol transactions. Everything here is consensus
// critical; two nodes with different Params diverge immediately.
type Params struct {
	Magic            [4]byte
	PowLimitBits     uint32
	RetargetInterval uint64
	TargetSpacing    uint64 // seconds
	// NoRetarget disables the difficulty adjustment, as Bitcoin regtest does.
	NoRetarget bool
}

func (p *Params) ExpectedTimespan() uint64 {
	return p.RetargetInterval * p.TargetSpacing
}

func MainnetParams() *Params {
	return &Params{
		Magic:            [4]byte{'A', 'S', 'M', '1'},
		PowLimitBits:     0x1d00ffff,
		RetargetInterval: 2016,
		TargetSpacing:    600,
	}
}

func RegtestParams() *Params {
	return &Params{
		Magic:            [4]byte{'A', 'S', 'M', 'r'},
		PowLimitBits:     0x207fffff,
		RetargetInterval: 2016,
		TargetSpacing:    600,
		NoRetarget:       true,
	}
}

package asm

import (
	"math/big"
	"sort"
)

const mtpWindow = 11

// PowState is the rolling Bitcoin continuity state: the last verified header
// plus exactly the context needed to validate the next one (retarget epoch
// anchor and the recent timestamps for median-time-past).
type PowState struct {
	BlockHeight  uint64
	LastBlockID  [32]byte
	LastHeader   Header
	EpochStartTs uint32
	// RecentTimestamps holds up to the last 11 block timestamps, oldest
	// first. Median-time-past is computed over this window.
	RecentTimestamps []uint32
}

// NewPowState anchors continuity tracking at a trusted header. The header is
// taken as already verified; only blocks after it are checked.
func NewPowState(height uint64, h *Header) *PowState {
	return &PowState{
		BlockHeight:      height,
		LastBlockID:      h.BlockID(),
		LastHeader:       *h,
		EpochStartTs:     h.Timestamp,
		RecentTimestamps: []uint32{h.Timestamp},
	}
}

func (s *PowState) Clone() *PowState {
	out := *s
	out.RecentTimestamps = append([]uint32(nil), s.RecentTimestamps...)
	return &out
}

func (s *PowState) medianTimePast() uint32 {
	if len(s.RecentTimestamps) == 0 {
		return 0
	}
	ts := append([]uint32(nil), s.RecentTimestamps...)
	sort.Slice(ts, func(i, j int) bool { return ts[i] < ts[j] })
	return ts[(len(ts)-1)/2]
}

// expectedBits returns the compact target the next header must declare.
// Off a retarget boundary that is simply the previous bits; on a boundary the
// standard rule applies: scale by the epoch's actual timespan clamped to
// [expected/4, expected*4], capped at the PoW limit.
func (s *PowState) expectedBits(p *Params) uint32 {
	nextHeight := s.BlockHeight + 1
	if p.NoRetarget || nextHeight%p.RetargetInterval != 0 {
		return s.LastHeader.Bits
	}

	expected := p.ExpectedTimespan()
	var actual uint64
	if s.LastHeader.Timestamp > s.EpochStartTs {
		actual = uint64(s.LastHeader.Timestamp - s.EpochStartTs)
	} else {
		actual = 1
	}
	if actual < expected/4 {
		actual = expected / 4
	}
	if actual > expected*4 {
		actual = expected * 4
	}

	targetOld := TargetFromBits(s.LastHeader.Bits)
	if targetOld == nil {
		return s.LastHeader.Bits
	}
	targetNew := new(big.Int).Mul(targetOld, new(big.Int).SetUint64(actual))
	targetNew.Quo(targetNew, new(big.Int).SetUint64(expected))

	limit := TargetFromBits(p.PowLimitBits)
	if limit != nil && targetNew.Cmp(limit) > 0 {
		targetNew = limit
	}
	return BitsFromTarget(targetNew)
}

// CheckHeader validates h as the immediate successor of the state's tip:
// linkage, declared bits vs. the retarget rule, proof of work, and a
// timestamp strictly past the median of the recent window. Read-only.
func (s *PowState) CheckHeader(p *Params, h *Header) error {
	if h.PrevBlock != s.LastBlockID {
		return Errf(ASM_ERR_L1_HEADER_INVALID, "linkage: prev %x, tip %x", h.PrevBlock[:4], s.LastBlockID[:4])
	}
	if exp := s.expectedBits(p); h.Bits != exp {
		return Errf(ASM_ERR_L1_HEADER_INVALID, "bits: declared %08x, expected %08x", h.Bits, exp)
	}
	if err := CheckProofOfWork(h, p.PowLimitBits); err != nil {
		return err
	}
	if mtp := s.medianTimePast(); h.Timestamp <= mtp {
		return Errf(ASM_ERR_L1_HEADER_INVALID, "timestamp %d not past median %d", h.Timestamp, mtp)
	}
	return nil
}

// AcceptHeader commits h after a successful CheckHeader.
func (s *PowState) AcceptHeader(p *Params, h *Header) {
	s.BlockHeight++
	s.LastHeader = *h
	s.LastBlockID = h.BlockID()
	if !p.NoRetarget && s.BlockHeight%p.RetargetInterval == 0 {
		s.EpochStartTs = h.Timestamp
	}
	s.RecentTimestamps = append(s.RecentTimestamps, h.Timestamp)
	if len(s.RecentTimestamps) > mtpWindow {
		s.RecentTimestamps = s.RecentTimestamps[len(s.RecentTimestamps)-mtpWindow:]
	}
}

package asm

// ChainViewState gates every transition: Bitcoin header continuity plus the
// append-only accumulator of past transition manifests.
type ChainViewState struct {
	Pow         PowState
	ManifestMmr Mmr
}

func NewChainViewState(pow *PowState) *ChainViewState {
	return &ChainViewState{Pow: *pow.Clone()}
}

func (cv *ChainViewState) Clone() *ChainViewState {
	return &ChainViewState{
		Pow:         *cv.Pow.Clone(),
		ManifestMmr: cv.ManifestMmr.Clone(),
	}
}

// CheckContinuity validates h as the next L1 block without committing.
// Pre-processing runs this so no work happens on an invalid header.
func (cv *ChainViewState) CheckContinuity(p *Params, h *Header) error {
	return cv.Pow.CheckHeader(p, h)
}

// CheckAndUpdateContinuity validates h and advances the PoW state.
func (cv *ChainViewState) CheckAndUpdateContinuity(p *Params, h *Header) error {
	if err := cv.Pow.CheckHeader(p, h); err != nil {
		return err
	}
	cv.Pow.AcceptHeader(p, h)
	return nil
}

// AddManifestLeaf appends a manifest commitment; one per processed block.
func (cv *ChainViewState) AddManifestLeaf(leaf [32]byte) {
	cv.ManifestMmr.AddLeaf(leaf)
}

// Layout: height u64 | block_id 32 | header 80 | epoch_start_ts u32 |
// ts_count u8 | ts u32 each | mmr.
func (cv *ChainViewState) Encode() []byte {
	out := AppendU64(nil, cv.Pow.BlockHeight)
	out = append(out, cv.Pow.LastBlockID[:]...)
	out = append(out, cv.Pow.LastHeader.Encode()...)
	out = AppendU32(out, cv.Pow.EpochStartTs)
	out = append(out, byte(len(cv.Pow.RecentTimestamps)))
	for _, ts := range cv.Pow.RecentTimestamps {
		out = AppendU32(out, ts)
	}
	return cv.ManifestMmr.EncodeTo(out)
}

func DecodeChainViewState(b []byte) (*ChainViewState, int, error) {
	const fixed = 8 + 32 + HeaderBytes + 4 + 1
	if len(b) < fixed {
		return nil, 0, Errf(ASM_ERR_SECTION_INVALID, "chainview: truncated")
	}
	var cv ChainViewState
	cv.Pow.BlockHeight = ReadU64(b)
	copy(cv.Pow.LastBlockID[:], b[8:40])
	hdr, err := ParseHeader(b[40 : 40+HeaderBytes])
	if err != nil {
		return nil, 0, Errf(ASM_ERR_SECTION_INVALID, "chainview: header: %v", err)
	}
	cv.Pow.LastHeader = *hdr
	off := 40 + HeaderBytes
	cv.Pow.EpochStartTs = ReadU32(b[off:])
	off += 4
	count := int(b[off])
	off++
	if count > mtpWindow {
		return nil, 0, Errf(ASM_ERR_SECTION_INVALID, "chainview: %d timestamps", count)
	}
	if len(b) < off+4*count {
		return nil, 0, Errf(ASM_ERR_SECTION_INVALID, "chainview: truncated timestamps")
	}
	cv.Pow.RecentTimestamps = make([]uint32, count)
	for i := 0; i < count; i++ {
		cv.Pow.RecentTimestamps[i] = ReadU32(b[off:])
		off += 4
	}
	mmr, n, err := DecodeMmr(b[off:])
	if err != nil {
		return nil, 0, err
	}
	cv.ManifestMmr = *mmr
	return &cv, off + n, nil
}

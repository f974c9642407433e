package asm

import "sort"

// Section is one subprotocol's exported state. The ASM never interprets the
// bytes; it stores and returns them keyed by subprotocol id.
type Section struct {
	ID   SubprotocolID
	Data []byte
}

// AnchorState is the global anchor state snapshot for one block height. A new
// instance is produced per block; previous instances are read-only, which is
// what makes rollback and concurrent candidate transitions safe.
type AnchorState struct {
	ChainView ChainViewState
	Sections  []Section // sorted by ID, unique
}

func NewAnchorState(cv *ChainViewState, sections []Section) *AnchorState {
	sorted := append([]Section(nil), sections...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return &AnchorState{ChainView: *cv, Sections: sorted}
}

// SectionData returns the stored bytes for id, or (nil, false) if the
// subprotocol has not exported state yet (first block after genesis).
func (s *AnchorState) SectionData(id SubprotocolID) ([]byte, bool) {
	for i := range s.Sections {
		if s.Sections[i].ID == id {
			return s.Sections[i].Data, true
		}
	}
	return nil, false
}

// Layout: chainview | section_count u8 | (id u8 | len u32 | data) each.
func (s *AnchorState) Encode() []byte {
	out := s.ChainView.Encode()
	out = append(out, byte(len(s.Sections)))
	for i := range s.Sections {
		out = append(out, byte(s.Sections[i].ID))
		out = AppendU32(out, uint32(len(s.Sections[i].Data)))
		out = append(out, s.Sections[i].Data...)
	}
	return out
}

func DecodeAnchorState(b []byte) (*AnchorState, error) {
	cv, off, err := DecodeChainViewState(b)
	if err != nil {
		return nil, err
	}
	if len(b) < off+1 {
		return nil, Errf(ASM_ERR_SECTION_INVALID, "state: truncated section count")
	}
	count := int(b[off])
	off++
	sections := make([]Section, 0, count)
	var prevID SubprotocolID
	for i := 0; i < count; i++ {
		if len(b) < off+5 {
			return nil, Errf(ASM_ERR_SECTION_INVALID, "state: truncated section header")
		}
		id := SubprotocolID(b[off])
		size := int(ReadU32(b[off+1:]))
		off += 5
		if len(b) < off+size {
			return nil, Errf(ASM_ERR_SECTION_INVALID, "state: truncated section %s", id)
		}
		if i > 0 && id <= prevID {
			return nil, Errf(ASM_ERR_SECTION_INVALID, "state: sections out of order at %s", id)
		}
		sections = append(sections, Section{ID: id, Data: append([]byte(nil), b[off:off+size]...)})
		off += size
		prevID = id
	}
	if off != len(b) {
		return nil, Errf(ASM_ERR_SECTION_INVALID, "state: %d trailing bytes", len(b)-off)
	}
	return &AnchorState{ChainView: *cv, Sections: sections}, nil
}

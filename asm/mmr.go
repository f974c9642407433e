package asm

// Mmr is an append-only Merkle Mountain Range kept in compact form: a leaf
// counter plus one root per set bit of the counter, each the root of a
// complete subtree of 2^height leaves. Appending a leaf is the binary
// increment carry chain; nothing is ever removed.
type Mmr struct {
	entries uint64
	roots   [64][32]byte
}

// MmrProof is a membership path for one leaf: the leaf's absolute index and
// the sibling hashes from the leaf up to its peak.
type MmrProof struct {
	Index    uint64
	CoHashes [][32]byte
}

func mmrNodeHash(left, right [32]byte) [32]byte {
	var preimage [1 + 32 + 32]byte
	preimage[0] = 0x01
	copy(preimage[1:33], left[:])
	copy(preimage[33:], right[:])
	return sha3_256(preimage[:])
}

// MmrLeafHash domain-separates leaf data from interior nodes.
func MmrLeafHash(data []byte) [32]byte {
	preimage := make([]byte, 1+len(data))
	preimage[0] = 0x00
	copy(preimage[1:], data)
	return sha3_256(preimage)
}

func (m *Mmr) Entries() uint64 { return m.entries }

func (m *Mmr) Clone() Mmr {
	return *m
}

// AddLeaf appends an already-hashed leaf.
func (m *Mmr) AddLeaf(leaf [32]byte) {
	carry := leaf
	h := uint(0)
	for m.entries>>h&1 == 1 {
		carry = mmrNodeHash(m.roots[h], carry)
		m.roots[h] = [32]byte{}
		h++
	}
	m.roots[h] = carry
	m.entries++
}

// Root folds the peaks into a single commitment, lowest peak first. An empty
// accumulator commits to the zero hash.
func (m *Mmr) Root() [32]byte {
	var acc [32]byte
	have := false
	for h := uint(0); h < 64; h++ {
		if m.entries>>h&1 == 0 {
			continue
		}
		if !have {
			acc = m.roots[h]
			have = true
			continue
		}
		acc = mmrNodeHash(m.roots[h], acc)
	}
	return acc
}

// peakFor locates the complete subtree containing leaf index i: its height
// and the absolute index of its first leaf.
func (m *Mmr) peakFor(i uint64) (height uint, start uint64, ok bool) {
	if i >= m.entries {
		return 0, 0, false
	}
	for h := 63; h >= 0; h-- {
		if m.entries>>uint(h)&1 == 0 {
			continue
		}
		size := uint64(1) << uint(h)
		if i < start+size {
			return uint(h), start, true
		}
		start += size
	}
	return 0, 0, false
}

// VerifyProof checks that leaf sits at proof.Index under one of the current
// peaks. Proofs are only valid against the exact accumulator state they were
// generated from.
func (m *Mmr) VerifyProof(proof *MmrProof, leaf [32]byte) bool {
	if proof == nil {
		return false
	}
	height, start, ok := m.peakFor(proof.Index)
	if !ok || uint(len(proof.CoHashes)) != height {
		return false
	}
	offset := proof.Index - start
	cur := leaf
	for level, sibling := range proof.CoHashes {
		if offset>>uint(level)&1 == 1 {
			cur = mmrNodeHash(sibling, cur)
		} else {
			cur = mmrNodeHash(cur, sibling)
		}
	}
	return cur == m.roots[height]
}

// ProofForLeaf rebuilds the membership path for leaves[index] given the full
// ordered leaf set of an accumulator with exactly len(leaves) entries. This
// is the storage-side counterpart of VerifyProof; the deterministic
// transition itself only ever verifies.
func ProofForLeaf(leaves [][32]byte, index uint64) (*MmrProof, error) {
	n := uint64(len(leaves))
	if index >= n {
		return nil, Errf(ASM_ERR_AUX_MISSING_TX, "mmr proof: leaf %d of %d", index, n)
	}
	var m Mmr
	m.entries = n
	height, start, ok := m.peakFor(index)
	if !ok {
		return nil, Errf(ASM_ERR_AUX_MISSING_TX, "mmr proof: no peak for leaf %d", index)
	}

	nodes := append([][32]byte(nil), leaves[start:start+(1<<height)]...)
	offset := index - start
	cohashes := make([][32]byte, 0, height)
	for level := uint(0); level < height; level++ {
		cohashes = append(cohashes, nodes[offset^1])
		next := make([][32]byte, len(nodes)/2)
		for i := range next {
			next[i] = mmrNodeHash(nodes[2*i], nodes[2*i+1])
		}
		nodes = next
		offset >>= 1
	}
	return &MmrProof{Index: index, CoHashes: cohashes}, nil
}

// Layout: entries u64le | root 32 per set bit, ascending height.
func (m *Mmr) EncodeTo(out []byte) []byte {
	out = AppendU64(out, m.entries)
	for h := uint(0); h < 64; h++ {
		if m.entries>>h&1 == 1 {
			out = append(out, m.roots[h][:]...)
		}
	}
	return out
}

func DecodeMmr(b []byte) (*Mmr, int, error) {
	if len(b) < 8 {
		return nil, 0, Errf(ASM_ERR_SECTION_INVALID, "mmr: truncated")
	}
	var m Mmr
	m.entries = ReadU64(b)
	off := 8
	for h := uint(0); h < 64; h++ {
		if m.entries>>h&1 == 0 {
			continue
		}
		if len(b) < off+32 {
			return nil, 0, Errf(ASM_ERR_SECTION_INVALID, "mmr: truncated root")
		}
		copy(m.roots[h][:], b[off:off+32])
		off += 32
	}
	return &m, off, nil
}

package asm

import (
	"encoding/binary"
	"math/big"
)

// HeaderBytes is the size of a serialized Bitcoin block header.
const HeaderBytes = 80

// Header is a parsed Bitcoin block header. Hash fields are kept in internal
// (little-endian) byte order, the same order they appear on the wire, so
// PrevBlock compares directly against a stored block id.
type Header struct {
	Version    int32
	PrevBlock  [32]byte
	MerkleRoot [32]byte
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32
}

func ParseHeader(b []byte) (*Header, error) {
	if len(b) != HeaderBytes {
		return nil, Errf(ASM_ERR_L1_HEADER_INVALID, "header: expected %d bytes, got %d", HeaderBytes, len(b))
	}
	h := &Header{
		Version:   int32(binary.LittleEndian.Uint32(b[0:4])),
		Timestamp: binary.LittleEndian.Uint32(b[68:72]),
		Bits:      binary.LittleEndian.Uint32(b[72:76]),
		Nonce:     binary.LittleEndian.Uint32(b[76:80]),
	}
	copy(h.PrevBlock[:], b[4:36])
	copy(h.MerkleRoot[:], b[36:68])
	return h, nil
}

func (h *Header) Encode() []byte {
	out := make([]byte, HeaderBytes)
	binary.LittleEndian.PutUint32(out[0:4], uint32(h.Version))
	copy(out[4:36], h.PrevBlock[:])
	copy(out[36:68], h.MerkleRoot[:])
	binary.LittleEndian.PutUint32(out[68:72], h.Timestamp)
	binary.LittleEndian.PutUint32(out[72:76], h.Bits)
	binary.LittleEndian.PutUint32(out[76:80], h.Nonce)
	return out
}

// BlockID returns the double-SHA256 header hash in internal byte order.
func (h *Header) BlockID() [32]byte {
	return sha256d(h.Encode())
}

// TargetFromBits expands Bitcoin's compact difficulty representation.
// Negative or overflowing encodings yield nil.
func TargetFromBits(bits uint32) *big.Int {
	mant := int64(bits & 0x007fffff)
	exp := uint(bits >> 24)
	if bits&0x00800000 != 0 {
		return nil
	}
	var target *big.Int
	if exp <= 3 {
		target = big.NewInt(mant >> (8 * (3 - exp)))
	} else {
		target = new(big.Int).Lsh(big.NewInt(mant), 8*(exp-3))
	}
	if target.BitLen() > 256 {
		return nil
	}
	return target
}

// BitsFromTarget compresses a target back into compact form, matching the
// rounding Bitcoin Core applies (mantissa truncation, sign-bit avoidance).
func BitsFromTarget(target *big.Int) uint32 {
	if target == nil || target.Sign() <= 0 {
		return 0
	}
	size := uint32((target.BitLen() + 7) / 8)
	var mant uint32
	if size <= 3 {
		mant = uint32(target.Uint64() << (8 * (3 - size)))
	} else {
		shifted := new(big.Int).Rsh(target, uint(8*(size-3)))
		mant = uint32(shifted.Uint64())
	}
	if mant&0x00800000 != 0 {
		mant >>= 8
		size++
	}
	return size<<24 | mant
}

// CheckProofOfWork verifies hash(header) <= target(bits) and that bits does
// not exceed the network PoW limit.
func CheckProofOfWork(h *Header, powLimitBits uint32) error {
	target := TargetFromBits(h.Bits)
	if target == nil || target.Sign() <= 0 {
		return Errf(ASM_ERR_L1_HEADER_INVALID, "pow: bad compact bits %08x", h.Bits)
	}
	limit := TargetFromBits(powLimitBits)
	if limit != nil && target.Cmp(limit) > 0 {
		return Errf(ASM_ERR_L1_HEADER_INVALID, "pow: target above limit")
	}
	id := h.BlockID()
	// Hash is little-endian on the wire; compare as a big-endian integer.
	var be [32]byte
	for i := 0; i < 32; i++ {
		be[i] = id[31-i]
	}
	if new(big.Int).SetBytes(be[:]).Cmp(target) > 0 {
		return Errf(ASM_ERR_L1_HEADER_INVALID, "pow: hash above target")
	}
	return nil
}

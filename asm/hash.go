package asm

import (
	"crypto/sha256"

	"golang.org/x/crypto/sha3"
)

func sha3_256(input []byte) [32]byte {
	h := sha3.New256()
	_, _ = h.Write(input)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Sha3_256 is the canonical ASM commitment hash (manifest leaves, MMR nodes,
// action digests).
func Sha3_256(input []byte) [32]byte {
	return sha3_256(input)
}

// sha256d is Bitcoin's double-SHA256, used only for L1 block and tx ids.
func sha256d(input []byte) [32]byte {
	first := sha256.Sum256(input)
	return sha256.Sum256(first[:])
}

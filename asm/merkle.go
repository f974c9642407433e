package asm

// WtxidsRoot commits to every transaction of the block, witness included.
// Domain-separated SHA3 binary tree with the odd-promotion rule: a lone
// node at the end of a level is carried forward unchanged.
func WtxidsRoot(wtxids [][32]byte) [32]byte {
	if len(wtxids) == 0 {
		return [32]byte{}
	}

	level := make([][32]byte, 0, len(wtxids))
	for _, id := range wtxids {
		level = append(level, MmrLeafHash(id[:]))
	}
	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); {
			if i == len(level)-1 {
				next = append(next, level[i])
				i++
				continue
			}
			next = append(next, mmrNodeHash(level[i], level[i+1]))
			i += 2
		}
		level = next
	}
	return level[0]
}

package asm

// LogEntry is one entry of the append-only per-block log. Data is encoded by
// the emitting subprotocol; the ASM treats it as opaque bytes.
type LogEntry struct {
	Source SubprotocolID
	Data   []byte
}

// AsmManifest is the per-block summary committed into the manifest MMR: the
// previous block linkage, the block's wtxids root, and every log emitted
// while processing the block. It is the only durable cross-block commitment
// besides AnchorState itself.
type AsmManifest struct {
	PrevBlockID [32]byte
	WtxidsRoot  [32]byte
	Logs        []LogEntry
}

// Layout: count u32 | (source u8 | len u32 | data) each.
func EncodeLogs(logs []LogEntry) []byte {
	out := AppendU32(nil, uint32(len(logs)))
	for i := range logs {
		out = append(out, byte(logs[i].Source))
		out = AppendU32(out, uint32(len(logs[i].Data)))
		out = append(out, logs[i].Data...)
	}
	return out
}

func DecodeLogs(b []byte) ([]LogEntry, int, error) {
	if len(b) < 4 {
		return nil, 0, Errf(ASM_ERR_SECTION_INVALID, "logs: truncated count")
	}
	count := int(ReadU32(b))
	off := 4
	logs := make([]LogEntry, 0, count)
	for i := 0; i < count; i++ {
		if len(b) < off+5 {
			return nil, 0, Errf(ASM_ERR_SECTION_INVALID, "logs: truncated entry header")
		}
		src := SubprotocolID(b[off])
		size := int(ReadU32(b[off+1:]))
		off += 5
		if len(b) < off+size {
			return nil, 0, Errf(ASM_ERR_SECTION_INVALID, "logs: truncated entry data")
		}
		logs = append(logs, LogEntry{Source: src, Data: append([]byte(nil), b[off:off+size]...)})
		off += size
	}
	return logs, off, nil
}

// ManifestLeafHash is the MMR leaf committed for a block: it binds the
// block id to the emitted logs and nothing else, so a historical log
// segment {block_id, logs, proof} verifies on its own.
func ManifestLeafHash(blockID [32]byte, logs []LogEntry) [32]byte {
	data := make([]byte, 0, 32+4)
	data = append(data, blockID[:]...)
	data = append(data, EncodeLogs(logs)...)
	return MmrLeafHash(data)
}

// Layout: prev_block_id 32 | wtxids_root 32 | logs.
func (m *AsmManifest) Encode() []byte {
	out := make([]byte, 0, 64)
	out = append(out, m.PrevBlockID[:]...)
	out = append(out, m.WtxidsRoot[:]...)
	return append(out, EncodeLogs(m.Logs)...)
}

func DecodeManifest(b []byte) (*AsmManifest, error) {
	if len(b) < 64 {
		return nil, Errf(ASM_ERR_SECTION_INVALID, "manifest: truncated")
	}
	var m AsmManifest
	copy(m.PrevBlockID[:], b[0:32])
	copy(m.WtxidsRoot[:], b[32:64])
	logs, n, err := DecodeLogs(b[64:])
	if err != nil {
		return nil, err
	}
	if 64+n != len(b) {
		return nil, Errf(ASM_ERR_SECTION_INVALID, "manifest: %d trailing bytes", len(b)-64-n)
	}
	m.Logs = logs
	return &m, nil
}

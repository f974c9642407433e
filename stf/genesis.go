package stf

import (
	"sort"

	"anchorsm.dev/node/asm"
)

// GenesisRegistry is the type-erased map of per-subprotocol genesis
// configuration, loaded once at chain start and consumed by Init calls.
// Entries are kept sorted by id so the encoding is canonical.
type GenesisRegistry struct {
	entries []genesisEntry
}

type genesisEntry struct {
	id   asm.SubprotocolID
	data []byte
}

func NewGenesisRegistry() *GenesisRegistry {
	return &GenesisRegistry{}
}

// Register stores the serialized genesis config for id. Registering the same
// id again replaces the previous entry; it never panics.
func (g *GenesisRegistry) Register(id asm.SubprotocolID, data []byte) {
	data = append([]byte(nil), data...)
	for i := range g.entries {
		if g.entries[i].id == id {
			g.entries[i].data = data
			return
		}
	}
	g.entries = append(g.entries, genesisEntry{id: id, data: data})
	sort.Slice(g.entries, func(i, j int) bool { return g.entries[i].id < g.entries[j].id })
}

// Entry returns the registered bytes for id.
func (g *GenesisRegistry) Entry(id asm.SubprotocolID) ([]byte, bool) {
	for i := range g.entries {
		if g.entries[i].id == id {
			return g.entries[i].data, true
		}
	}
	return nil, false
}

// Layout: count u8 | (id u8 | len u32le | data) each, ascending id.
func (g *GenesisRegistry) Encode() []byte {
	out := []byte{byte(len(g.entries))}
	for i := range g.entries {
		e := &g.entries[i]
		out = append(out, byte(e.id))
		out = asm.AppendU32(out, uint32(len(e.data)))
		out = append(out, e.data...)
	}
	return out
}

func DecodeGenesisRegistry(b []byte) (*GenesisRegistry, error) {
	if len(b) < 1 {
		return nil, asm.Errf(asm.ASM_ERR_GENESIS_INVALID, "registry: empty")
	}
	count := int(b[0])
	off := 1
	g := NewGenesisRegistry()
	var prev asm.SubprotocolID
	for i := 0; i < count; i++ {
		if len(b) < off+5 {
			return nil, asm.Errf(asm.ASM_ERR_GENESIS_INVALID, "registry: truncated entry")
		}
		id := asm.SubprotocolID(b[off])
		size := int(asm.ReadU32(b[off+1 : off+5]))
		off += 5
		if size < 0 || len(b) < off+size {
			return nil, asm.Errf(asm.ASM_ERR_GENESIS_INVALID, "registry: truncated data for %s", id)
		}
		if i > 0 && id <= prev {
			return nil, asm.Errf(asm.ASM_ERR_GENESIS_INVALID, "registry: ids out of order at %s", id)
		}
		g.Register(id, b[off:off+size])
		off += size
		prev = id
	}
	if off != len(b) {
		return nil, asm.Errf(asm.ASM_ERR_GENESIS_INVALID, "registry: %d trailing bytes", len(b)-off)
	}
	return g, nil
}

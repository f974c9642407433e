package stf

import "anchorsm.dev/node/asm"

// SubprotoManager owns one handler instance per registered subprotocol for
// the duration of a single block transition. Iteration order is the fixed
// registration order everywhere; combined with the two-pass message split
// this makes the transition independent of how subprotocols interleave.
type SubprotoManager struct {
	order    []asm.SubprotocolID
	handlers map[asm.SubprotocolID]Subprotocol
	relayers map[asm.SubprotocolID]*Relayer
	finished bool
}

func NewSubprotoManager(handlers []Subprotocol) (*SubprotoManager, error) {
	m := &SubprotoManager{
		handlers: make(map[asm.SubprotocolID]Subprotocol, len(handlers)),
		relayers: make(map[asm.SubprotocolID]*Relayer, len(handlers)),
	}
	for _, h := range handlers {
		id := h.ID()
		if _, dup := m.handlers[id]; dup {
			return nil, asm.Errf(asm.ASM_ERR_GENESIS_INVALID, "manager: duplicate subprotocol %s", id)
		}
		m.order = append(m.order, id)
		m.handlers[id] = h
		m.relayers[id] = newRelayer(id)
	}
	return m, nil
}

// Load restores every handler from the previous anchor state, falling back
// to Init with the genesis registry entry for subprotocols seen for the
// first time.
func (m *SubprotoManager) Load(pre *asm.AnchorState, genesis *GenesisRegistry) error {
	for _, id := range m.order {
		h := m.handlers[id]
		if section, ok := pre.SectionData(id); ok {
			if err := h.Load(section); err != nil {
				return asm.Errf(asm.ASM_ERR_SECTION_INVALID, "%s: load: %v", id, err)
			}
			continue
		}
		entry, _ := genesis.Entry(id)
		if err := h.Init(entry); err != nil {
			return asm.Errf(asm.ASM_ERR_GENESIS_INVALID, "%s: init: %v", id, err)
		}
	}
	return nil
}

// PreProcess runs the collection stage for every subprotocol before any
// subprotocol processes, so the block's aux requests are known atomically.
func (m *SubprotoManager) PreProcess(
	txs map[asm.SubprotocolID][]asm.TxInputRef,
	collector *AuxCollector,
	pre *asm.AnchorState,
) error {
	for _, id := range m.order {
		if err := m.handlers[id].PreProcessTxs(txs[id], collector.Requester(id), pre); err != nil {
			return err
		}
	}
	return nil
}

// Process runs the main stage with verified aux data. Every handler runs,
// with an empty transaction list if the block carried nothing for it.
func (m *SubprotoManager) Process(
	txs map[asm.SubprotocolID][]asm.TxInputRef,
	aux AuxInput,
	pre *asm.AnchorState,
) error {
	for _, id := range m.order {
		resolver := NewAuxResolver(id, &pre.ChainView, aux[id])
		if err := m.handlers[id].ProcessTxs(txs[id], resolver, pre, m.relayers[id]); err != nil {
			return err
		}
	}
	return nil
}

// Finish delivers the messages buffered during Process. Routing order is
// sender registration order, then emit order; delivery order is receiver
// registration order. A message produced while processing block N becomes
// visible to its target only here, after every subprotocol has finished
// reacting to block N's transactions.
func (m *SubprotoManager) Finish() {
	inboxes := make(map[asm.SubprotocolID][]asm.Msg)
	for _, id := range m.order {
		for _, msg := range m.relayers[id].msgs {
			target := msg.Target()
			if _, known := m.handlers[target]; !known {
				continue
			}
			inboxes[target] = append(inboxes[target], msg)
		}
	}
	for _, id := range m.order {
		m.handlers[id].ProcessMsgs(inboxes[id])
	}
	m.finished = true
}

// Sections exports the final per-subprotocol state in registration order.
// AnchorState construction re-sorts by id.
func (m *SubprotoManager) Sections() ([]asm.Section, error) {
	out := make([]asm.Section, 0, len(m.order))
	for _, id := range m.order {
		data, err := m.handlers[id].Section()
		if err != nil {
			return nil, asm.Errf(asm.ASM_ERR_SECTION_INVALID, "%s: export: %v", id, err)
		}
		out = append(out, asm.Section{ID: id, Data: data})
	}
	return out, nil
}

// Logs returns every emitted log entry, subprotocol registration order then
// emit order. This is the manifest's log sequence.
func (m *SubprotoManager) Logs() []asm.LogEntry {
	var out []asm.LogEntry
	for _, id := range m.order {
		out = append(out, m.relayers[id].logs...)
	}
	return out
}

package stf

import "anchorsm.dev/node/asm"

// Relayer collects the side effects of one subprotocol's process stage:
// inter-protocol messages (buffered until the finish phase) and log entries
// (appended to this block's manifest immediately, in emit order).
type Relayer struct {
	source asm.SubprotocolID
	msgs   []asm.Msg
	logs   []asm.LogEntry
}

func newRelayer(source asm.SubprotocolID) *Relayer {
	return &Relayer{source: source}
}

// NewRelayer builds a standalone relayer for source. The manager creates its
// own per handler; this one is for driving a subprotocol directly.
func NewRelayer(source asm.SubprotocolID) *Relayer {
	return newRelayer(source)
}

// Msgs returns the buffered messages in emit order.
func (r *Relayer) Msgs() []asm.Msg { return r.msgs }

// Logs returns the emitted log entries in emit order.
func (r *Relayer) Logs() []asm.LogEntry { return r.logs }

// RelayMsg buffers m for delivery to its target during the finish phase of
// the current block. The sender never observes the delivery.
func (r *Relayer) RelayMsg(m asm.Msg) {
	r.msgs = append(r.msgs, m)
}

// EmitLog appends an entry to the block's manifest, attributed to the
// emitting subprotocol.
func (r *Relayer) EmitLog(data []byte) {
	r.logs = append(r.logs, asm.LogEntry{Source: r.source, Data: data})
}

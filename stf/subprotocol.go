// Package stf implements the deterministic anchor state transition: routing
// of tagged L1 transactions to subprotocols, the auxiliary-data
// request/resolve protocol, and the staged per-block pipeline
// load -> pre-process -> process -> finish.
package stf

import "anchorsm.dev/node/asm"

// Subprotocol is the contract every registered handler implements. One
// instance lives for exactly one block transition attempt.
//
// Error discipline: per-transaction failures (bad parse, bad signature) are
// handled inside the methods by skipping the transaction; a returned error
// is structural and aborts the whole block.
type Subprotocol interface {
	ID() asm.SubprotocolID

	// Init constructs fresh state from the genesis registry entry. Called
	// only when the previous anchor state has no section for this id.
	Init(genesis []byte) error

	// Load restores state from the section exported after the previous block.
	Load(section []byte) error

	// PreProcessTxs may register aux requests for this block's transactions.
	// It must not mutate subprotocol state.
	PreProcessTxs(txs []asm.TxInputRef, req *AuxRequester, pre *asm.AnchorState) error

	// ProcessTxs applies this block's transactions, reading verified aux
	// data through the resolver and emitting messages/logs through out.
	ProcessTxs(txs []asm.TxInputRef, aux *AuxResolver, pre *asm.AnchorState, out *Relayer) error

	// ProcessMsgs delivers the inter-protocol messages buffered for this
	// subprotocol during the block, possibly none.
	ProcessMsgs(msgs []asm.Msg)

	// Section exports the state for inclusion in the next AnchorState.
	Section() ([]byte, error)
}

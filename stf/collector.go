package stf

import "anchorsm.dev/node/asm"

// AuxPayload is the subprotocol-defined request payload. Concrete types are
// declared next to the subprotocol that issues them and recovered by type
// assertion on the provider side.
type AuxPayload interface {
	AuxPayload()
}

// AuxRequest declares one subprotocol's need for external data about the
// transaction at TxIndex (position in the L1 block).
type AuxRequest struct {
	TxIndex uint32
	Payload AuxPayload
}

// AuxCollector gathers the aux requests of every subprotocol during the
// pre-process stage. It is created per block and threaded explicitly through
// the stage; there is no ambient collection state.
type AuxCollector struct {
	requests map[asm.SubprotocolID][]AuxRequest
}

func NewAuxCollector() *AuxCollector {
	return &AuxCollector{requests: make(map[asm.SubprotocolID][]AuxRequest)}
}

// Requester scopes the collector to one subprotocol.
func (c *AuxCollector) Requester(id asm.SubprotocolID) *AuxRequester {
	return &AuxRequester{collector: c, id: id}
}

// Requests hands out everything collected, keyed by subprotocol. The block
// pipeline flattens this for the external provider once pre-processing of
// all subprotocols has finished.
func (c *AuxCollector) Requests() map[asm.SubprotocolID][]AuxRequest {
	return c.requests
}

// AuxRequester is the only interface subprotocols see during pre-processing.
type AuxRequester struct {
	collector *AuxCollector
	id        asm.SubprotocolID
}

func (r *AuxRequester) Request(txIndex uint32, payload AuxPayload) {
	r.collector.requests[r.id] = append(r.collector.requests[r.id], AuxRequest{
		TxIndex: txIndex,
		Payload: payload,
	})
}

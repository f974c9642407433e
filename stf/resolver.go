package stf

import "anchorsm.dev/node/asm"

// AuxResponse is one fulfillment envelope from the external provider.
// Multiple envelopes may answer a single request.
type AuxResponse interface {
	auxResponse()
}

// LogSegment is a slice of one historical block's emitted logs together with
// the membership proof of that block's manifest leaf.
type LogSegment struct {
	BlockID [32]byte
	Logs    []asm.LogEntry
	Proof   asm.MmrProof
}

type HistoricalLogs struct {
	Segment LogSegment
}

type HistoricalLogsRange struct {
	Segments []LogSegment
}

type DepositRequestTx struct {
	RawTx []byte
}

func (HistoricalLogs) auxResponse()      {}
func (HistoricalLogsRange) auxResponse() {}
func (DepositRequestTx) auxResponse()    {}

// AuxInput is the provider's answer set for one block:
// subprotocol -> tx index -> envelopes.
type AuxInput map[asm.SubprotocolID]map[uint32][]AuxResponse

// AuxResolver exposes the verified aux data of exactly one subprotocol
// during the process stage. Log proofs are checked lazily, against the
// chain-view snapshot of the pre-state, at the moment a subprotocol actually
// reads them.
type AuxResolver struct {
	id   asm.SubprotocolID
	view *asm.ChainViewState
	byTx map[uint32][]AuxResponse
}

func NewAuxResolver(id asm.SubprotocolID, view *asm.ChainViewState, byTx map[uint32][]AuxResponse) *AuxResolver {
	return &AuxResolver{id: id, view: view, byTx: byTx}
}

// HistoricalLogs concatenates every log envelope registered for txIndex,
// verifying each segment's MMR proof first. A single unproven segment fails
// the whole call; logs are never silently dropped. No envelopes at all is
// the common "nothing requested" case and yields an empty slice, not an
// error.
func (r *AuxResolver) HistoricalLogs(txIndex uint32) ([]asm.LogEntry, error) {
	var out []asm.LogEntry
	for _, env := range r.byTx[txIndex] {
		switch e := env.(type) {
		case HistoricalLogs:
			verified, err := r.verifySegment(&e.Segment)
			if err != nil {
				return nil, err
			}
			out = append(out, verified...)
		case HistoricalLogsRange:
			for i := range e.Segments {
				verified, err := r.verifySegment(&e.Segments[i])
				if err != nil {
					return nil, err
				}
				out = append(out, verified...)
			}
		default:
			return nil, asm.Errf(asm.ASM_ERR_AUX_TYPE_MISMATCH,
				"%s: tx %d: expected log envelope, got %T", r.id, txIndex, env)
		}
	}
	return out, nil
}

// DepositRequestTx returns the first raw-transaction envelope for txIndex,
// or nil when none was registered (a legitimate answer, not an error). An
// envelope of the wrong variant is a hard error; a buggy or malicious
// provider must not be able to substitute wrong-shaped data.
func (r *AuxResolver) DepositRequestTx(txIndex uint32) ([]byte, error) {
	for _, env := range r.byTx[txIndex] {
		switch e := env.(type) {
		case DepositRequestTx:
			return e.RawTx, nil
		default:
			return nil, asm.Errf(asm.ASM_ERR_AUX_TYPE_MISMATCH,
				"%s: tx %d: expected deposit request tx, got %T", r.id, txIndex, env)
		}
	}
	return nil, nil
}

func (r *AuxResolver) verifySegment(seg *LogSegment) ([]asm.LogEntry, error) {
	leaf := asm.ManifestLeafHash(seg.BlockID, seg.Logs)
	if !r.view.ManifestMmr.VerifyProof(&seg.Proof, leaf) {
		return nil, asm.Errf(asm.ASM_ERR_AUX_LOG_PROOF_INVALID,
			"%s: leaf %d: segment proof rejected", r.id, seg.Proof.Index)
	}
	return seg.Logs, nil
}

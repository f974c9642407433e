package node

import (
	"context"
	"fmt"

	"anchorsm.dev/node/asm"
	"anchorsm.dev/node/node/store"
	"anchorsm.dev/node/stf"
	"anchorsm.dev/node/subprotocols/bridge"
	"anchorsm.dev/node/subprotocols/debug"
)

// AuxProvider fulfills the aux requests collected during pre-process. The
// returned envelopes are untrusted; the transition verifies everything it
// reads.
type AuxProvider interface {
	FetchAuxData(ctx context.Context, requests map[asm.SubprotocolID][]stf.AuxRequest) (stf.AuxInput, error)
}

// StoreProvider answers aux requests from the local store: manifest logs
// with freshly built MMR proofs, and indexed deposit-request transactions.
type StoreProvider struct {
	db *store.DB
}

func NewStoreProvider(db *store.DB) *StoreProvider {
	return &StoreProvider{db: db}
}

func (p *StoreProvider) FetchAuxData(ctx context.Context, requests map[asm.SubprotocolID][]stf.AuxRequest) (stf.AuxInput, error) {
	out := make(stf.AuxInput)
	for id, reqs := range requests {
		for _, req := range reqs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			envs, err := p.fulfill(req.Payload)
			if err != nil {
				return nil, fmt.Errorf("aux %s tx %d: %w", id, req.TxIndex, err)
			}
			if len(envs) == 0 {
				continue
			}
			byTx := out[id]
			if byTx == nil {
				byTx = make(map[uint32][]stf.AuxResponse)
				out[id] = byTx
			}
			byTx[req.TxIndex] = append(byTx[req.TxIndex], envs...)
		}
	}
	return out, nil
}

func (p *StoreProvider) fulfill(payload stf.AuxPayload) ([]stf.AuxResponse, error) {
	switch q := payload.(type) {
	case debug.LogRangeQuery:
		seg, err := p.logSegments(q.From, q.To)
		if err != nil {
			return nil, err
		}
		return []stf.AuxResponse{stf.HistoricalLogsRange{Segments: seg}}, nil

	case bridge.DepositTxQuery:
		raw, ok, err := p.db.GetRequestTx(q.RequestTxid)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Unknown request txid: answer nothing and let the bridge
			// reject the deposit deterministically.
			return nil, nil
		}
		return []stf.AuxResponse{stf.DepositRequestTx{RawTx: raw}}, nil

	default:
		return nil, fmt.Errorf("unsupported aux payload %T", payload)
	}
}

func (p *StoreProvider) logSegments(from, to uint64) ([]stf.LogSegment, error) {
	var out []stf.LogSegment
	for i := from; i <= to; i++ {
		blockID, m, ok, err := p.db.GetManifest(i)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("manifest leaf %d not stored", i)
		}
		proof, err := p.db.ProofForLeaf(i)
		if err != nil {
			return nil, err
		}
		out = append(out, stf.LogSegment{
			BlockID: blockID,
			Logs:    m.Logs,
			Proof:   *proof,
		})
	}
	return out, nil
}

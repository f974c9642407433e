package node

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"anchorsm.dev/node/asm"
	"anchorsm.dev/node/node/store"
	"anchorsm.dev/node/stf"
	"anchorsm.dev/node/subprotocols"
	"anchorsm.dev/node/subprotocols/bridge"
)

// Service drives the anchor state machine against the local store: it loads
// the tip state, runs the two pipeline phases around an aux-data fetch, and
// commits the result.
type Service struct {
	params     *asm.Params
	genesis    *stf.GenesisRegistry
	db         *store.DB
	provider   AuxProvider
	auxTimeout time.Duration
	log        *logrus.Entry
}

func NewService(cfg Config, params *asm.Params, genesis *stf.GenesisRegistry, db *store.DB, provider AuxProvider, log *logrus.Logger) *Service {
	return &Service{
		params:     params,
		genesis:    genesis,
		db:         db,
		provider:   provider,
		auxTimeout: time.Duration(cfg.AuxTimeoutSecs) * time.Second,
		log:        log.WithField("component", "asm-service"),
	}
}

func (s *Service) Tip() *store.TipRecord { return s.db.Tip() }

// InitGenesis anchors the chain at an L1 header: the genesis anchor state is
// the chain view alone, with no sections. Subprotocols initialize from the
// genesis registry on the first applied block.
func (s *Service) InitGenesis(network string, anchorHeight uint64, headerBytes []byte) error {
	if s.db.Tip() != nil {
		return fmt.Errorf("chain already initialized at height %d", s.db.Tip().TipHeight)
	}
	hdr, err := asm.ParseHeader(headerBytes)
	if err != nil {
		return err
	}
	if err := asm.CheckProofOfWork(hdr, s.params.PowLimitBits); err != nil {
		return err
	}

	state := asm.NewAnchorState(asm.NewChainViewState(asm.NewPowState(anchorHeight, hdr)), nil)
	if err := s.db.PutAnchorState(anchorHeight, state); err != nil {
		return err
	}

	blockID := hdr.BlockID()
	tip := &store.TipRecord{
		SchemaVersion: store.SchemaVersionV1,
		Network:       network,
		TipHeight:     anchorHeight,
		TipBlockIDHex: hex.EncodeToString(blockID[:]),
		MmrLeaves:     0,
	}
	if err := s.db.SetTip(tip); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"height":   anchorHeight,
		"block_id": tip.TipBlockIDHex,
	}).Info("genesis anchored")
	return nil
}

// ApplyBlock runs the full pipeline for one raw L1 block and commits the
// next anchor state. The block must extend the current tip.
func (s *Service) ApplyBlock(ctx context.Context, blockBytes []byte) (*stf.Transition, error) {
	tip := s.db.Tip()
	if tip == nil {
		return nil, fmt.Errorf("chain not initialized")
	}
	pre, ok, err := s.db.GetAnchorState(tip.TipHeight)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("tip state %d missing from store", tip.TipHeight)
	}

	block, err := asm.ParseL1Block(blockBytes)
	if err != nil {
		return nil, err
	}

	pp, err := stf.PreProcessAsm(s.params, pre, block, s.genesis, subprotocols.Registry())
	if err != nil {
		return nil, err
	}

	auxCtx, cancel := context.WithTimeout(ctx, s.auxTimeout)
	aux, err := s.provider.FetchAuxData(auxCtx, pp.AuxRequests)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("fetch aux data: %w", err)
	}

	tr, err := stf.ComputeAsmTransition(s.params, pre, &stf.TransitionInput{
		Block:       block,
		ProtocolTxs: pp.ProtocolTxs,
		Aux:         aux,
	}, s.genesis, subprotocols.Registry())
	if err != nil {
		return nil, err
	}

	if err := s.commit(tip, pre, block, tr); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"height":   tip.TipHeight + 1,
		"block_id": hex.EncodeToString(tr.BlockID[:]),
		"txs":      len(block.Txs),
		"logs":     len(tr.Manifest.Logs),
	}).Info("block applied")
	return tr, nil
}

func (s *Service) commit(tip *store.TipRecord, pre *asm.AnchorState, block *asm.L1Block, tr *stf.Transition) error {
	height := tip.TipHeight + 1
	leafIndex := pre.ChainView.ManifestMmr.Entries()

	if err := s.db.PutAnchorState(height, tr.State); err != nil {
		return err
	}
	if err := s.db.PutManifest(leafIndex, tr.BlockID, tr.Manifest); err != nil {
		return err
	}
	if err := s.db.PutManifestLeaf(leafIndex, asm.ManifestLeafHash(tr.BlockID, tr.Manifest.Logs)); err != nil {
		return err
	}
	if err := s.indexRequestTxs(block); err != nil {
		return err
	}

	return s.db.SetTip(&store.TipRecord{
		SchemaVersion: store.SchemaVersionV1,
		Network:       tip.Network,
		TipHeight:     height,
		TipBlockIDHex: hex.EncodeToString(tr.BlockID[:]),
		MmrLeaves:     leafIndex + 1,
	})
}

// indexRequestTxs stores every deposit-request transaction of the block by
// txid so the aux provider can serve later DepositTxQuery lookups.
func (s *Service) indexRequestTxs(block *asm.L1Block) error {
	for i := range block.Txs {
		tag, ok := asm.ParseTxTag(s.params.Magic, block.Txs[i].Bytes)
		if !ok || tag.Subprotocol != asm.SubprotocolBridge || tag.TxType != bridge.TxTypeDepositRequest {
			continue
		}
		parsed, _, err := asm.ParseTx(block.Txs[i].Bytes)
		if err != nil {
			continue // unparseable txs never reach a subprotocol either
		}
		if err := s.db.PutRequestTx(parsed.TxID(), block.Txs[i].Bytes); err != nil {
			return err
		}
	}
	return nil
}

package stf

import "anchorsm.dev/node/asm"

// PreProcessOutput is everything the caller needs between the two pipeline
// phases: the routed transactions and the flattened aux requests for the
// external provider.
type PreProcessOutput struct {
	ProtocolTxs map[asm.SubprotocolID][]asm.TxInputRef
	AuxRequests map[asm.SubprotocolID][]AuxRequest
}

// TransitionInput is the fully resolved input of the main phase.
type TransitionInput struct {
	Block       *asm.L1Block
	ProtocolTxs map[asm.SubprotocolID][]asm.TxInputRef
	Aux         AuxInput
}

// Transition is the result of one block: the next anchor state and the
// signed-off manifest whose leaf was appended to the chain view's MMR.
type Transition struct {
	State    *asm.AnchorState
	Manifest *asm.AsmManifest
	BlockID  [32]byte
}

// PreProcessAsm runs the collection phase: tentative continuity validation
// (nothing proceeds on an invalid header), transaction routing, subprotocol
// loading, and the pre-process stage of every subprotocol. Read-only on the
// pre-state.
func PreProcessAsm(
	params *asm.Params,
	pre *asm.AnchorState,
	block *asm.L1Block,
	genesis *GenesisRegistry,
	handlers []Subprotocol,
) (*PreProcessOutput, error) {
	if err := pre.ChainView.CheckContinuity(params, block.Header); err != nil {
		return nil, err
	}

	protocolTxs := RouteProtocolTxs(params.Magic, block.Txs)

	manager, err := NewSubprotoManager(handlers)
	if err != nil {
		return nil, err
	}
	if err := manager.Load(pre, genesis); err != nil {
		return nil, err
	}

	collector := NewAuxCollector()
	if err := manager.PreProcess(protocolTxs, collector, pre); err != nil {
		return nil, err
	}

	return &PreProcessOutput{
		ProtocolTxs: protocolTxs,
		AuxRequests: collector.Requests(),
	}, nil
}

// ComputeAsmTransition is the consensus rule: given identical pre-state and
// input, every correct implementation produces byte-identical state and
// manifest. It re-validates and commits continuity, runs the process stage
// with verified aux data, delivers buffered messages in the finish stage,
// and assembles the manifest and next anchor state.
func ComputeAsmTransition(
	params *asm.Params,
	pre *asm.AnchorState,
	in *TransitionInput,
	genesis *GenesisRegistry,
	handlers []Subprotocol,
) (*Transition, error) {
	chainView := pre.ChainView.Clone()
	if err := chainView.CheckAndUpdateContinuity(params, in.Block.Header); err != nil {
		return nil, err
	}

	manager, err := NewSubprotoManager(handlers)
	if err != nil {
		return nil, err
	}
	if err := manager.Load(pre, genesis); err != nil {
		return nil, err
	}

	if err := manager.Process(in.ProtocolTxs, in.Aux, pre); err != nil {
		return nil, err
	}
	manager.Finish()

	logs := manager.Logs()
	manifest := &asm.AsmManifest{
		PrevBlockID: in.Block.Header.PrevBlock,
		WtxidsRoot:  in.Block.WtxidsRoot,
		Logs:        logs,
	}

	blockID := in.Block.Header.BlockID()
	chainView.AddManifestLeaf(asm.ManifestLeafHash(blockID, logs))

	sections, err := manager.Sections()
	if err != nil {
		return nil, err
	}

	return &Transition{
		State:    asm.NewAnchorState(chainView, sections),
		Manifest: manifest,
		BlockID:  blockID,
	}, nil
}

// Package upgrade implements the parameter-upgrade subprotocol: a queue of
// governance-scheduled payloads keyed by activation height. Entries are
// scheduled through admin messages and activate when their height is
// processed.
package upgrade

import (
	"anchorsm.dev/node/asm"
	"anchorsm.dev/node/stf"
)

const LogActivated uint8 = 1

// Schedule queues an upgrade payload for activation; sent by the admin
// subprotocol after a verified governance action.
type Schedule struct {
	Height  uint64
	Payload []byte
}

func (Schedule) Target() asm.SubprotocolID { return asm.SubprotocolUpgrade }

type ScheduledUpgrade struct {
	Height  uint64
	Payload []byte
}

type State struct {
	Scheduled []ScheduledUpgrade // ascending height, then schedule order
	Activated uint32
}

type Subprotocol struct {
	state State
}

func New() *Subprotocol { return &Subprotocol{} }

func (s *Subprotocol) ID() asm.SubprotocolID { return asm.SubprotocolUpgrade }

func (s *Subprotocol) Init(genesis []byte) error {
	if len(genesis) != 0 {
		return asm.Errf(asm.ASM_ERR_GENESIS_INVALID, "upgrade genesis: unexpected %d bytes", len(genesis))
	}
	s.state = State{}
	return nil
}

func (s *Subprotocol) Load(section []byte) error {
	st, err := DecodeState(section)
	if err != nil {
		return err
	}
	s.state = *st
	return nil
}

func (s *Subprotocol) PreProcessTxs([]asm.TxInputRef, *stf.AuxRequester, *asm.AnchorState) error {
	return nil
}

// ProcessTxs activates every queued upgrade due at the block being
// processed. The subprotocol has no own transaction types; it runs on every
// block regardless.
func (s *Subprotocol) ProcessTxs(_ []asm.TxInputRef, _ *stf.AuxResolver, pre *asm.AnchorState, out *stf.Relayer) error {
	height := pre.ChainView.Pow.BlockHeight + 1
	remaining := s.state.Scheduled[:0]
	for _, u := range s.state.Scheduled {
		if u.Height > height {
			remaining = append(remaining, u)
			continue
		}
		s.state.Activated++
		log := []byte{LogActivated}
		log = asm.AppendU64(log, u.Height)
		log = asm.AppendU32(log, uint32(len(u.Payload)))
		log = append(log, u.Payload...)
		out.EmitLog(log)
	}
	s.state.Scheduled = remaining
	return nil
}

// ProcessMsgs queues schedules; a message landing in block N can activate at
// block N+1 at the earliest, since activation ran before delivery.
func (s *Subprotocol) ProcessMsgs(msgs []asm.Msg) {
	for _, m := range msgs {
		sched, ok := m.(Schedule)
		if !ok {
			continue
		}
		entry := ScheduledUpgrade{Height: sched.Height, Payload: append([]byte(nil), sched.Payload...)}
		pos := len(s.state.Scheduled)
		for pos > 0 && s.state.Scheduled[pos-1].Height > entry.Height {
			pos--
		}
		s.state.Scheduled = append(s.state.Scheduled, ScheduledUpgrade{})
		copy(s.state.Scheduled[pos+1:], s.state.Scheduled[pos:])
		s.state.Scheduled[pos] = entry
	}
}

func (s *Subprotocol) Section() ([]byte, error) {
	return EncodeState(&s.state), nil
}

func (s *Subprotocol) State() *State { return &s.state }

// State layout: activated u32 | count u32 | (height u64 | len u32 | payload) each.
func EncodeState(s *State) []byte {
	out := asm.AppendU32(nil, s.Activated)
	out = asm.AppendU32(out, uint32(len(s.Scheduled)))
	for i := range s.Scheduled {
		out = asm.AppendU64(out, s.Scheduled[i].Height)
		out = asm.AppendU32(out, uint32(len(s.Scheduled[i].Payload)))
		out = append(out, s.Scheduled[i].Payload...)
	}
	return out
}

func DecodeState(b []byte) (*State, error) {
	if len(b) < 8 {
		return nil, asm.Errf(asm.ASM_ERR_SECTION_INVALID, "upgrade state: truncated")
	}
	s := State{Activated: asm.ReadU32(b)}
	count := int(asm.ReadU32(b[4:]))
	off := 8
	for i := 0; i < count; i++ {
		if len(b) < off+12 {
			return nil, asm.Errf(asm.ASM_ERR_SECTION_INVALID, "upgrade state: truncated entry")
		}
		u := ScheduledUpgrade{Height: asm.ReadU64(b[off:])}
		size := int(asm.ReadU32(b[off+8:]))
		off += 12
		if len(b) < off+size {
			return nil, asm.Errf(asm.ASM_ERR_SECTION_INVALID, "upgrade state: truncated payload")
		}
		u.Payload = append([]byte(nil), b[off:off+size]...)
		off += size
		s.Scheduled = append(s.Scheduled, u)
	}
	if off != len(b) {
		return nil, asm.Errf(asm.ASM_ERR_SECTION_INVALID, "upgrade state: trailing bytes")
	}
	return &s, nil
}

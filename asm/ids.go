package asm

// SubprotocolID identifies one registered subprotocol. The set is fixed at
// compile time; IDs double as section keys in AnchorState and as routing
// tags in the transaction envelope.
type SubprotocolID uint8

const (
	SubprotocolBridge     SubprotocolID = 1
	SubprotocolCheckpoint SubprotocolID = 2
	SubprotocolAdmin      SubprotocolID = 3
	SubprotocolUpgrade    SubprotocolID = 4
	SubprotocolDebug      SubprotocolID = 5
)

func (id SubprotocolID) String() string {
	switch id {
	case SubprotocolBridge:
		return "bridge"
	case SubprotocolCheckpoint:
		return "checkpoint"
	case SubprotocolAdmin:
		return "admin"
	case SubprotocolUpgrade:
		return "upgrade"
	case SubprotocolDebug:
		return "debug"
	}
	return "unknown"
}

// Msg is an inter-protocol message. Concrete message types are owned by the
// package of the receiving subprotocol; delivery happens only in the finish
// phase of the block the message was sent in.
type Msg interface {
	Target() SubprotocolID
}

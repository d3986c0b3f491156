package wire

// MessageDescriptor is one tagged, ordered entry in a Protocol: its opcode
// is its index in the protocol's Messages slice, assigned by list position.
// Adding a message at the end is backward-compatible; reordering is not.
type MessageDescriptor struct {
	Name     string
	ArgKinds []Kind
}

// Protocol is a tagged, ordered list of message shapes.
type Protocol struct {
	Tag      string
	Messages []MessageDescriptor
}

// Opcode returns the index (and therefore wire opcode) of the named
// message, or -1 if the protocol has no such message.
func (p Protocol) Opcode(name string) int {
	for i, m := range p.Messages {
		if m.Name == name {
			return i
		}
	}
	return -1
}

// ByOpcode returns the descriptor at opcode, or false if out of range —
// the reactor's UnknownOpcode case.
func (p Protocol) ByOpcode(opcode uint32) (MessageDescriptor, bool) {
	if int(opcode) < 0 || int(opcode) >= len(p.Messages) {
		return MessageDescriptor{}, false
	}
	return p.Messages[opcode], true
}

// Message name constants for the worker, control and logging protocols,
// exported so callers don't have to spell out magic strings when installing
// slots.
const (
	MsgHeartbeat  = "heartbeat"
	MsgSuicide    = "suicide"
	MsgTerminate  = "terminate"
	MsgInvoke     = "invoke"
	MsgChunk      = "chunk"
	MsgError      = "error"
	MsgChoke      = "choke"
	MsgStatus     = "status"
	MsgEmit       = "emit"
)

// WorkerProtocol is the node<->worker protocol of §4.6. Opcode order is
// part of the wire format; never reorder, only append.
var WorkerProtocol = Protocol{
	Tag: "worker",
	Messages: []MessageDescriptor{
		{Name: MsgHeartbeat, ArgKinds: nil},
		{Name: MsgSuicide, ArgKinds: []Kind{KindInt32, KindString}},
		{Name: MsgTerminate, ArgKinds: nil},
		{Name: MsgInvoke, ArgKinds: []Kind{KindUint64, KindString}},
		{Name: MsgChunk, ArgKinds: []Kind{KindUint64, KindBytes}},
		{Name: MsgError, ArgKinds: []Kind{KindUint64, KindInt32, KindString}},
		{Name: MsgChoke, ArgKinds: []Kind{KindUint64}},
	},
}

// ControlProtocol is the control message catalogue (status, terminate). It
// is separate from the JSON control wire format of §4.7/§6: the control
// server parses that JSON directly and does not use this descriptor.
var ControlProtocol = Protocol{
	Tag: "control",
	Messages: []MessageDescriptor{
		{Name: MsgStatus, ArgKinds: nil},
		{Name: MsgTerminate, ArgKinds: nil},
	},
}

// LoggingProtocol is the logging service's reactor surface (§4.11).
var LoggingProtocol = Protocol{
	Tag: "logging",
	Messages: []MessageDescriptor{
		{Name: MsgEmit, ArgKinds: []Kind{KindInt32, KindString, KindString}},
	},
}

// SuicideReason is the worker-reported cause of a suicide message.
type SuicideReason int32

const (
	SuicideNormal   SuicideReason = 0
	SuicideAbnormal SuicideReason = 1
)

// BuildErrorFrame encodes a worker-protocol `error` frame for sessionID,
// used both by workers reporting failure and by the reactor terminating a
// session on a ProtocolError.
func BuildErrorFrame(sessionID uint64, code int32, message string) ([]byte, error) {
	payload, err := EncodeArray([]Value{Uint64Value(sessionID), Int32Value(code), StringValue(message)})
	if err != nil {
		return nil, err
	}
	opcode := uint32(WorkerProtocol.Opcode(MsgError))
	return EncodeFrame(opcode, payload), nil
}

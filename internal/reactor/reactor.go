// Package reactor binds one protocol tag to a slot table indexed by opcode
// and routes inbound framed messages to the matching slot (§4.5).
package reactor

import (
	"fmt"
	"sync"

	"github.com/hiveforge/hived/internal/apperrors"
	"github.com/hiveforge/hived/internal/logging"
	"github.com/hiveforge/hived/internal/slot"
	"github.com/hiveforge/hived/internal/wire"
)

// UnknownOpcodeHandler builds a reply frame for an opcode the slot table
// has no entry for. Returning ok=false means "drop the frame with a
// warning" (protocols without an error message, e.g. control/logging).
type UnknownOpcodeHandler func(opcode uint32) (frame []byte, ok bool)

// ProtocolErrorHandler builds a reply frame for a ProtocolError raised
// while decoding or dispatching opcode's payload. Worker-protocol reactors
// install this to terminate the offending session via a worker `error`
// frame; protocols with no session concept may leave it nil.
type ProtocolErrorHandler func(opcode uint32, payload []byte, cause error) (frame []byte, ok bool)

// Reactor is one socket's slot table for one protocol.
type Reactor struct {
	mu       sync.RWMutex
	protocol wire.Protocol
	table    map[uint32]*slot.Slot
	logger   logging.Logger

	onUnknownOpcode UnknownOpcodeHandler
	onProtocolError ProtocolErrorHandler
}

// New binds a Reactor to protocol. logger may be nil, in which case
// warnings about dropped frames are simply not emitted.
func New(protocol wire.Protocol, logger logging.Logger) *Reactor {
	return &Reactor{protocol: protocol, table: make(map[uint32]*slot.Slot), logger: logger}
}

// OnUnknownOpcode installs the reactor's unknown-opcode policy.
func (r *Reactor) OnUnknownOpcode(h UnknownOpcodeHandler) { r.onUnknownOpcode = h }

// OnProtocolError installs the reactor's protocol-error-to-reply policy.
func (r *Reactor) OnProtocolError(h ProtocolErrorHandler) { r.onProtocolError = h }

// On installs handler at messageName's opcode. Re-installation replaces.
// Panics (at wiring time, not per-frame) if messageName is not part of the
// bound protocol or handler's signature does not match its descriptor.
func (r *Reactor) On(messageName string, handler any) {
	opcode := r.protocol.Opcode(messageName)
	if opcode < 0 {
		panic(fmt.Sprintf("reactor: %q is not a message of protocol %q", messageName, r.protocol.Tag))
	}
	desc := r.protocol.Messages[opcode]
	s := slot.New(desc.ArgKinds, handler)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.table[uint32(opcode)] = s
}

// Dispatch parses frame's opcode prefix, indexes the slot table, decodes
// the payload, and invokes the matching slot. It returns the reply frame
// to send on the same channel, if any, and the error observed (for
// logging/metrics by the caller) even when a reply frame was produced.
func (r *Reactor) Dispatch(frame []byte) ([]byte, error) {
	opcode, payload, err := wire.DecodeFrame(frame)
	if err != nil {
		return nil, apperrors.ProtocolError("malformed frame: %v", err)
	}

	r.mu.RLock()
	s, ok := r.table[opcode]
	r.mu.RUnlock()
	if !ok {
		return r.handleUnknownOpcode(opcode)
	}

	values, err := wire.DecodeArray(payload)
	if err != nil {
		protoErr := apperrors.ProtocolError("decode payload for opcode %d: %v", opcode, err)
		return r.handleProtocolError(opcode, payload, protoErr)
	}

	result, err := s.Invoke(values)
	if err != nil {
		if apperrors.Is(err, apperrors.Protocol) {
			return r.handleProtocolError(opcode, payload, err)
		}
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	replyPayload, err := wire.EncodeArray(result)
	if err != nil {
		return nil, apperrors.UnexpectedError(err)
	}
	return wire.EncodeFrame(opcode, replyPayload), nil
}

func (r *Reactor) handleUnknownOpcode(opcode uint32) ([]byte, error) {
	protoErr := apperrors.ProtocolError("unknown opcode %d on protocol %q", opcode, r.protocol.Tag)
	if r.onUnknownOpcode != nil {
		if frame, ok := r.onUnknownOpcode(opcode); ok {
			return frame, protoErr
		}
	}
	if r.logger != nil {
		r.logger.Warn("dropping frame with unknown opcode", "protocol", r.protocol.Tag, "opcode", opcode)
	}
	return nil, protoErr
}

func (r *Reactor) handleProtocolError(opcode uint32, payload []byte, cause error) ([]byte, error) {
	if r.onProtocolError != nil {
		if frame, ok := r.onProtocolError(opcode, payload, cause); ok {
			return frame, cause
		}
	}
	if r.logger != nil {
		r.logger.Warn("protocol error", "protocol", r.protocol.Tag, "opcode", opcode, "err", cause.Error())
	}
	return nil, cause
}

// Protocol returns the bound protocol.
func (r *Reactor) Protocol() wire.Protocol { return r.protocol }

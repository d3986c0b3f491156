// Package slot implements the generic decode/dispatch bridge between the
// packed wire tuple format and statically-typed handler functions — the
// one place dynamic wire bytes cross into typed code (§4.4).
package slot

import (
	"fmt"
	"reflect"

	"github.com/hiveforge/hived/internal/apperrors"
	"github.com/hiveforge/hived/internal/wire"
)

var kindToGoType = map[wire.Kind]reflect.Type{
	wire.KindUint64: reflect.TypeOf(uint64(0)),
	wire.KindInt32:  reflect.TypeOf(int32(0)),
	wire.KindString: reflect.TypeOf(""),
	wire.KindBytes:  reflect.TypeOf([]byte(nil)),
	wire.KindBool:   reflect.TypeOf(false),
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

// Slot is a handler bound to one message shape. The handler's parameter
// types must exactly match, in order, the wire.Kind values the Slot is
// built with; its result is either nothing, a single error, or a
// (wire-representable value, error) pair.
type Slot struct {
	argKinds []wire.Kind
	fn       reflect.Value
	fnType   reflect.Type
	hasReply bool
}

// New binds handler — a plain Go function — to argKinds. It panics on a
// programmer error (handler's signature does not match argKinds or the
// allowed return shapes); this is a startup-time wiring mistake, not a
// runtime protocol error.
func New(argKinds []wire.Kind, handler any) *Slot {
	fn := reflect.ValueOf(handler)
	fnType := fn.Type()
	if fnType.Kind() != reflect.Func {
		panic("slot: handler must be a function")
	}
	if fnType.NumIn() != len(argKinds) {
		panic(fmt.Sprintf("slot: handler takes %d args, descriptor declares %d", fnType.NumIn(), len(argKinds)))
	}
	for i, k := range argKinds {
		want, ok := kindToGoType[k]
		if !ok || fnType.In(i) != want {
			panic(fmt.Sprintf("slot: arg %d: handler type %v does not match wire kind %v", i, fnType.In(i), k))
		}
	}

	hasReply := false
	switch fnType.NumOut() {
	case 0:
	case 1:
		if fnType.Out(0) != errType {
			panic("slot: single-return handler must return error")
		}
	case 2:
		if fnType.Out(1) != errType {
			panic("slot: second return value must be error")
		}
		hasReply = true
	default:
		panic("slot: handler must return (), error, or (value, error)")
	}

	return &Slot{argKinds: argKinds, fn: fn, fnType: fnType, hasReply: hasReply}
}

// Arity returns the slot's declared argument count.
func (s *Slot) Arity() int { return len(s.argKinds) }

// Invoke decodes args against the slot's declared arity and types and
// calls the bound handler. Decoding proceeds left to right; on error,
// already-decoded arguments are dropped and the handler is never called.
func (s *Slot) Invoke(args []wire.Value) ([]wire.Value, error) {
	if len(args) != len(s.argKinds) {
		return nil, apperrors.ProtocolError("arity mismatch: want %d args, got %d", len(s.argKinds), len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, v := range args {
		if v.Kind != s.argKinds[i] {
			return nil, apperrors.ProtocolError("type mismatch at arg %d: want %v, got %v", i, s.argKinds[i], v.Kind)
		}
		in[i] = reflectValueOf(v)
	}

	out := s.fn.Call(in)
	return s.unpackResults(out)
}

func reflectValueOf(v wire.Value) reflect.Value {
	switch v.Kind {
	case wire.KindUint64:
		return reflect.ValueOf(v.U64)
	case wire.KindInt32:
		return reflect.ValueOf(v.I32)
	case wire.KindString:
		return reflect.ValueOf(v.Str)
	case wire.KindBytes:
		return reflect.ValueOf(v.Bytes)
	case wire.KindBool:
		return reflect.ValueOf(v.Bool)
	default:
		panic("slot: unreachable kind")
	}
}

func (s *Slot) unpackResults(out []reflect.Value) ([]wire.Value, error) {
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if err, _ := out[0].Interface().(error); err != nil {
			return nil, err
		}
		return nil, nil
	case 2:
		if err, _ := out[1].Interface().(error); err != nil {
			return nil, err
		}
		val, err := wireValueOf(out[0])
		if err != nil {
			return nil, err
		}
		return []wire.Value{val}, nil
	default:
		panic("slot: unreachable result arity")
	}
}

func wireValueOf(v reflect.Value) (wire.Value, error) {
	switch v.Kind() {
	case reflect.Uint64:
		return wire.Uint64Value(v.Uint()), nil
	case reflect.Int32:
		return wire.Int32Value(int32(v.Int())), nil
	case reflect.String:
		return wire.StringValue(v.String()), nil
	case reflect.Bool:
		return wire.BoolValue(v.Bool()), nil
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return wire.BytesValue(v.Bytes()), nil
		}
	}
	return wire.Value{}, fmt.Errorf("slot: unrepresentable return type %v", v.Type())
}

// HasReply reports whether the bound handler produces a wire value to send
// back, as opposed to only an error/nothing.
func (s *Slot) HasReply() bool { return s.hasReply }

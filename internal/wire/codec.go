// Package wire implements the node's packed binary tuple codec and static
// protocol/message descriptors — the one deliberately stdlib-built core
// piece, justified in DESIGN.md: no msgpack-equivalent binary serialization
// library appears anywhere in the corpus, and the spec's own Non-goals
// decline to prescribe one.
package wire

import (
	"encoding/binary"
	"fmt"
)

// Kind is the closed set of wire-representable argument/return types.
type Kind byte

const (
	KindUint64 Kind = 1
	KindInt32  Kind = 2
	KindString Kind = 3
	KindBytes  Kind = 4
	KindBool   Kind = 5
)

func (k Kind) String() string {
	switch k {
	case KindUint64:
		return "uint64"
	case KindInt32:
		return "int32"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

// Value is one element of a packed tuple: a tagged union over the closed
// Kind set.
type Value struct {
	Kind   Kind
	U64    uint64
	I32    int32
	Str    string
	Bytes  []byte
	Bool   bool
}

func Uint64Value(v uint64) Value { return Value{Kind: KindUint64, U64: v} }
func Int32Value(v int32) Value   { return Value{Kind: KindInt32, I32: v} }
func StringValue(v string) Value { return Value{Kind: KindString, Str: v} }
func BytesValue(v []byte) Value  { return Value{Kind: KindBytes, Bytes: v} }
func BoolValue(v bool) Value     { return Value{Kind: KindBool, Bool: v} }

// EncodeArray packs values as [count:uint16][tag:1][payload...]*count.
func EncodeArray(values []Value) ([]byte, error) {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, uint16(len(values)))
	for _, v := range values {
		encoded, err := encodeValue(v)
		if err != nil {
			return nil, err
		}
		buf = append(buf, encoded...)
	}
	return buf, nil
}

func encodeValue(v Value) ([]byte, error) {
	switch v.Kind {
	case KindUint64:
		out := make([]byte, 9)
		out[0] = byte(KindUint64)
		binary.BigEndian.PutUint64(out[1:], v.U64)
		return out, nil
	case KindInt32:
		out := make([]byte, 5)
		out[0] = byte(KindInt32)
		binary.BigEndian.PutUint32(out[1:], uint32(v.I32))
		return out, nil
	case KindString:
		return encodeLenPrefixed(byte(KindString), []byte(v.Str)), nil
	case KindBytes:
		return encodeLenPrefixed(byte(KindBytes), v.Bytes), nil
	case KindBool:
		b := byte(0)
		if v.Bool {
			b = 1
		}
		return []byte{byte(KindBool), b}, nil
	default:
		return nil, fmt.Errorf("wire: unencodable kind %v", v.Kind)
	}
}

func encodeLenPrefixed(tag byte, data []byte) []byte {
	out := make([]byte, 1+4+len(data))
	out[0] = tag
	binary.BigEndian.PutUint32(out[1:5], uint32(len(data)))
	copy(out[5:], data)
	return out
}

// DecodeArray unpacks the [count][tagged-value]* wire format produced by
// EncodeArray. It does not know the expected arity or types up front —
// that check is the slot dispatcher's responsibility (§4.4) — it only
// decodes what is structurally present.
func DecodeArray(data []byte) ([]Value, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("wire: truncated array header")
	}
	count := int(binary.BigEndian.Uint16(data[:2]))
	rest := data[2:]
	values := make([]Value, 0, count)
	for i := 0; i < count; i++ {
		v, n, err := decodeValue(rest)
		if err != nil {
			return nil, fmt.Errorf("wire: decode element %d: %w", i, err)
		}
		values = append(values, v)
		rest = rest[n:]
	}
	return values, nil
}

func decodeValue(data []byte) (Value, int, error) {
	if len(data) < 1 {
		return Value{}, 0, fmt.Errorf("truncated value tag")
	}
	tag := Kind(data[0])
	switch tag {
	case KindUint64:
		if len(data) < 9 {
			return Value{}, 0, fmt.Errorf("truncated uint64")
		}
		return Uint64Value(binary.BigEndian.Uint64(data[1:9])), 9, nil
	case KindInt32:
		if len(data) < 5 {
			return Value{}, 0, fmt.Errorf("truncated int32")
		}
		return Int32Value(int32(binary.BigEndian.Uint32(data[1:5]))), 5, nil
	case KindString:
		s, n, err := decodeLenPrefixed(data)
		if err != nil {
			return Value{}, 0, err
		}
		return StringValue(string(s)), n, nil
	case KindBytes:
		b, n, err := decodeLenPrefixed(data)
		if err != nil {
			return Value{}, 0, err
		}
		return BytesValue(b), n, nil
	case KindBool:
		if len(data) < 2 {
			return Value{}, 0, fmt.Errorf("truncated bool")
		}
		return BoolValue(data[1] != 0), 2, nil
	default:
		return Value{}, 0, fmt.Errorf("unknown tag %d", tag)
	}
}

func decodeLenPrefixed(data []byte) ([]byte, int, error) {
	if len(data) < 5 {
		return nil, 0, fmt.Errorf("truncated length-prefixed value")
	}
	n := int(binary.BigEndian.Uint32(data[1:5]))
	if len(data) < 5+n {
		return nil, 0, fmt.Errorf("truncated length-prefixed payload")
	}
	out := make([]byte, n)
	copy(out, data[5:5+n])
	return out, 5 + n, nil
}

// EncodeFrame prepends the opcode to an already-encoded array payload,
// producing the full reactor-level frame: [opcode:uint32][array payload].
func EncodeFrame(opcode uint32, payload []byte) []byte {
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf, opcode)
	copy(buf[4:], payload)
	return buf
}

// DecodeFrame splits a reactor-level frame into its opcode and array
// payload.
func DecodeFrame(frame []byte) (uint32, []byte, error) {
	if len(frame) < 4 {
		return 0, nil, fmt.Errorf("wire: truncated frame header")
	}
	return binary.BigEndian.Uint32(frame[:4]), frame[4:], nil
}

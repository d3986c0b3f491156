package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeArrayRoundTrips(t *testing.T) {
	values := []Value{
		Uint64Value(42),
		Int32Value(-7),
		StringValue("hello"),
		BytesValue([]byte{1, 2, 3}),
		BoolValue(true),
	}

	encoded, err := EncodeArray(values)
	require.NoError(t, err)

	decoded, err := DecodeArray(encoded)
	require.NoError(t, err)

	require.Len(t, decoded, len(values))
	for i := range values {
		assert.Equal(t, values[i], decoded[i])
	}
}

func TestEncodeDecodeEmptyArray(t *testing.T) {
	encoded, err := EncodeArray(nil)
	require.NoError(t, err)
	decoded, err := DecodeArray(encoded)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestDecodeArrayTruncatedFails(t *testing.T) {
	_, err := DecodeArray([]byte{0, 1}) // claims 1 element, has none
	assert.Error(t, err)
}

func TestFrameRoundTrip(t *testing.T) {
	payload, err := EncodeArray([]Value{Uint64Value(1), StringValue("evt")})
	require.NoError(t, err)

	frame := EncodeFrame(3, payload)
	opcode, got, err := DecodeFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), opcode)
	assert.Equal(t, payload, got)
}

func TestProtocolOpcodesAssignedByPosition(t *testing.T) {
	assert.Equal(t, 0, WorkerProtocol.Opcode(MsgHeartbeat))
	assert.Equal(t, 1, WorkerProtocol.Opcode(MsgSuicide))
	assert.Equal(t, 2, WorkerProtocol.Opcode(MsgTerminate))
	assert.Equal(t, 3, WorkerProtocol.Opcode(MsgInvoke))
	assert.Equal(t, 4, WorkerProtocol.Opcode(MsgChunk))
	assert.Equal(t, 5, WorkerProtocol.Opcode(MsgError))
	assert.Equal(t, 6, WorkerProtocol.Opcode(MsgChoke))

	_, ok := WorkerProtocol.ByOpcode(99)
	assert.False(t, ok)
}

package portpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiveforge/hived/internal/apperrors"
)

func TestAcquireReleaseSequence(t *testing.T) {
	p := New(10000, 10001)

	port, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, 10000, port)

	port, err = p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, 10001, port)

	_, err = p.Acquire()
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.Resource))

	p.Release(10000)
	port, err = p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, 10000, port)
}

func TestReleaseOutsideRangeIgnored(t *testing.T) {
	p := New(10000, 10001)
	p.Release(9999)
	p.Release(20000)
	assert.Equal(t, 2, p.Available())
}

func TestReleaseNotInUseIsIdempotent(t *testing.T) {
	p := New(10000, 10000)
	p.Release(10000) // never acquired
	assert.Equal(t, 1, p.Available())
}

func TestNoDuplicateIssuanceWithoutRelease(t *testing.T) {
	p := New(10000, 10005)
	seen := make(map[int]bool)
	for i := 0; i < 6; i++ {
		port, err := p.Acquire()
		require.NoError(t, err)
		assert.False(t, seen[port], "port %d issued twice", port)
		seen[port] = true
	}
	_, err := p.Acquire()
	assert.Error(t, err)
}

package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiveforge/hived/internal/storage"
)

func TestPutGetRemove(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Get(ctx, "apps", "echo")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Put(ctx, "apps", "echo", []byte(`{"slave":"py"}`)))
	v, err := s.Get(ctx, "apps", "echo")
	require.NoError(t, err)
	assert.Equal(t, `{"slave":"py"}`, string(v))

	require.NoError(t, s.Remove(ctx, "apps", "echo"))
	_, err = s.Get(ctx, "apps", "echo")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAllReturnsSnapshotCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Put(ctx, "apps", "a", []byte("1")))
	require.NoError(t, s.Put(ctx, "apps", "b", []byte("2")))

	all, err := s.All(ctx, "apps")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	all["a"][0] = 'X'
	v, err := s.Get(ctx, "apps", "a")
	require.NoError(t, err)
	assert.Equal(t, "1", string(v), "mutating the snapshot must not affect the store")
}

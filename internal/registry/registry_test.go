package registry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiveforge/hived/internal/apperrors"
)

func echoFactory(_ any, name string, args json.RawMessage) (any, error) {
	return name + ":" + string(args), nil
}

func TestRegisterAndGet(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(CategoryStorage, "memory", echoFactory))

	instance, err := r.Get(nil, CategoryStorage, "memory", "apps", json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "apps:{}", instance)
}

func TestDuplicateTypeRejected(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(CategoryStorage, "memory", echoFactory))
	err := r.Register(CategoryStorage, "memory", echoFactory)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.Configuration))
}

func TestDistinctCategoriesShareNoNamespace(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(CategoryStorage, "redis", echoFactory))
	require.NoError(t, r.Register(CategoryLogger, "redis", echoFactory))
	assert.True(t, r.IsRegistered(CategoryStorage, "redis"))
	assert.True(t, r.IsRegistered(CategoryLogger, "redis"))
}

func TestUnknownTypeFails(t *testing.T) {
	r := New()
	_, err := r.Get(nil, CategoryStorage, "nope", "n", nil)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.Configuration))
}

func TestFreezeRejectsFurtherRegistration(t *testing.T) {
	r := New()
	r.Freeze()
	err := r.Register(CategoryStorage, "memory", echoFactory)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.Configuration))
}

func TestTypesSorted(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(CategoryStorage, "redis", echoFactory))
	require.NoError(t, r.Register(CategoryStorage, "memory", echoFactory))
	assert.Equal(t, []string{"memory", "redis"}, r.Types(CategoryStorage))
}

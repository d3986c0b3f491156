package apperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, Configuration, KindOf(ConfigurationError("already active")))
	assert.Equal(t, Storage, KindOf(StorageError(errors.New("disk"), "put failed")))
	assert.Equal(t, Unexpected, KindOf(errors.New("plain")))
}

func TestWrappedUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := StorageError(cause, "put %q", "apps")
	require.ErrorIs(t, err, cause)
	assert.True(t, Is(err, Storage))
	assert.False(t, Is(err, Protocol))
}

func TestErrorStringIncludesKind(t *testing.T) {
	err := ConfigurationError("unsupported action %q", "frobnicate")
	assert.Contains(t, err.Error(), "configuration_error")
	assert.Contains(t, err.Error(), "frobnicate")
}

func TestClientMessageStripsKindPrefix(t *testing.T) {
	err := ConfigurationError("the specified app is already active")
	assert.Equal(t, "the specified app is already active", ClientMessage(err))
	assert.NotContains(t, ClientMessage(err), "configuration_error")
}

func TestClientMessageFallsBackToPlainError(t *testing.T) {
	err := errors.New("plain failure")
	assert.Equal(t, "plain failure", ClientMessage(err))
}

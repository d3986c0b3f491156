package hmacauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiveforge/hived/internal/apperrors"
)

func TestSignThenAuthenticate(t *testing.T) {
	a := New([]byte("shared-secret"))
	message := []byte(`{"version":3,"username":"alice","action":"info"}`)

	sig, err := a.Sign(message, "alice")
	require.NoError(t, err)

	assert.NoError(t, a.Authenticate(message, sig, "alice"))
}

func TestAuthenticateRejectsTamperedMessage(t *testing.T) {
	a := New([]byte("shared-secret"))
	sig, err := a.Sign([]byte("original"), "alice")
	require.NoError(t, err)

	err = a.Authenticate([]byte("tampered"), sig, "alice")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.Authorization))
}

func TestAuthenticateRequiresUsername(t *testing.T) {
	a := New([]byte("shared-secret"))
	err := a.Authenticate([]byte("m"), []byte("s"), "")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.Authorization))
}

// Package hmacauth authenticates control requests by verifying an HMAC of
// the message bytes, keyed by a per-username subkey derived from a shared
// secret via HKDF.
package hmacauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/hiveforge/hived/internal/apperrors"
	"github.com/hiveforge/hived/internal/auth"
)

// Authenticator verifies HMAC-SHA256(message, subkey(username)).
type Authenticator struct {
	secret []byte
}

var _ auth.Authenticator = (*Authenticator)(nil)

// New builds an HMAC authenticator keyed by secret.
func New(secret []byte) *Authenticator {
	return &Authenticator{secret: secret}
}

func (a *Authenticator) subkey(username string) ([]byte, error) {
	kdf := hkdf.New(sha256.New, a.secret, nil, []byte(username))
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Authenticate checks signature against HMAC-SHA256(message) under
// username's derived subkey, in constant time.
func (a *Authenticator) Authenticate(message, signature []byte, username string) error {
	if username == "" {
		return apperrors.AuthorizationError("username expected")
	}
	key, err := a.subkey(username)
	if err != nil {
		return apperrors.AuthorizationError("derive key for %q: %v", username, err)
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	expected := mac.Sum(nil)
	if !hmac.Equal(expected, signature) {
		return apperrors.AuthorizationError("signature mismatch for %q", username)
	}
	return nil
}

// Sign produces the signature a client would send for message under
// username, for tests and client tooling.
func (a *Authenticator) Sign(message []byte, username string) ([]byte, error) {
	key, err := a.subkey(username)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return mac.Sum(nil), nil
}

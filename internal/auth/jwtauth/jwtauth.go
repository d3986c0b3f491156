// Package jwtauth authenticates control requests by treating the signature
// frame as a JWT whose subject must match the request's username. Grounded
// on the teacher's internal/middleware/serviceauth.go and
// cmd/gateway/middleware.go jwt.ParseWithClaims usage.
package jwtauth

import (
	"fmt"

	"github.com/dgrijalva/jwt-go"

	"github.com/hiveforge/hived/internal/apperrors"
	"github.com/hiveforge/hived/internal/auth"
)

// Authenticator verifies an HS256 JWT carried as the control protocol's
// signature frame.
type Authenticator struct {
	secret []byte
}

var _ auth.Authenticator = (*Authenticator)(nil)

// New builds a JWT authenticator keyed by secret.
func New(secret []byte) *Authenticator {
	return &Authenticator{secret: secret}
}

type claims struct {
	jwt.StandardClaims
}

// Authenticate ignores message (the JWT itself carries the username claim
// rather than signing the message bytes directly — the teacher's own
// serviceauth.go authenticates bearer tokens the same way, independent of
// request body).
func (a *Authenticator) Authenticate(_ []byte, signature []byte, username string) error {
	token, err := jwt.ParseWithClaims(string(signature), &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return apperrors.AuthorizationError("invalid token: %v", err)
	}
	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return apperrors.AuthorizationError("invalid token claims")
	}
	if c.Subject != username {
		return apperrors.AuthorizationError("token subject %q does not match username %q", c.Subject, username)
	}
	return nil
}

// Issue mints a token for username, for use by test clients.
func (a *Authenticator) Issue(username string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{StandardClaims: jwt.StandardClaims{Subject: username}})
	return token.SignedString(a.secret)
}

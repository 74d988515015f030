// Package auth verifies the bearer tokens presented by app clients.
package auth

import (
	"context"
	"errors"
)

// Verification errors.
var (
	ErrInvalidToken = errors.New("invalid access token")
	ErrTokenExpired = errors.New("access token has expired")
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Admin  bool
}

// Verifier turns a bearer token into an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

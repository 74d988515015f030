package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qoomy/notifier/internal/auth"
)

const (
	testIssuer   = "https://notifier.qoomy.app"
	testAudience = "qoomy-notifier"
)

func newJWTService(key string) *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: key,
		Issuer:     testIssuer,
		Audience:   testAudience,
	})
}

func TestJWTService_GenerateAndVerify(t *testing.T) {
	svc := newJWTService("test-secret-key-for-testing-only")

	token, expiresAt, err := svc.GenerateAccessToken("user-123", false)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, testIssuer, claims.Issuer)

	identity, err := svc.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, &auth.Identity{UserID: "user-123"}, identity)
}

func TestJWTService_AdminClaim(t *testing.T) {
	svc := newJWTService("test-key")

	token, _, err := svc.GenerateAccessToken("ops", true)
	require.NoError(t, err)

	identity, err := svc.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, identity.Admin)
}

func TestJWTService_InvalidToken(t *testing.T) {
	svc := newJWTService("test-key")

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"invalid base64", "xxx.yyy.zzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(context.Background(), tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}

func TestJWTService_WrongSigningKey(t *testing.T) {
	token, _, err := newJWTService("key-one").GenerateAccessToken("user-123", false)
	require.NoError(t, err)

	_, err = newJWTService("key-two").ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestJWTService_WrongAudience(t *testing.T) {
	issuer := auth.NewJWTService(auth.JWTConfig{SigningKey: "k", Issuer: testIssuer, Audience: "other"})
	token, _, err := issuer.GenerateAccessToken("user-123", false)
	require.NoError(t, err)

	_, err = newJWTService("k").ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestJWTService_Expired(t *testing.T) {
	past := time.Now().Add(-2 * auth.AccessTokenExpiry)
	issuer := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "k",
		Issuer:     testIssuer,
		Audience:   testAudience,
		Now:        func() time.Time { return past },
	})

	token, _, err := issuer.GenerateAccessToken("user-123", false)
	require.NoError(t, err)

	_, err = newJWTService("k").Verify(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

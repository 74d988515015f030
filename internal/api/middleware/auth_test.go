package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qoomy/notifier/internal/api/middleware"
	"github.com/qoomy/notifier/internal/api/models"
	"github.com/qoomy/notifier/internal/auth"
)

type stubVerifier struct {
	tokens map[string]*auth.Identity
	err    error
}

func (v *stubVerifier) Verify(_ context.Context, token string) (*auth.Identity, error) {
	if v.err != nil {
		return nil, v.err
	}
	if id, ok := v.tokens[token]; ok {
		return id, nil
	}
	return nil, auth.ErrInvalidToken
}

func newStubVerifier() *stubVerifier {
	return &stubVerifier{tokens: map[string]*auth.Identity{
		"player-token": {UserID: "P1"},
		"admin-token":  {UserID: "ops", Admin: true},
	}}
}

func identityEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(middleware.GetUserID(r.Context())))
	})
}

func TestAuth_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		verifier   *stubVerifier
		wantDetail string
	}{
		{"missing header", "", newStubVerifier(), "missing authorization header"},
		{"no bearer prefix", "token123", newStubVerifier(), "invalid authorization header format"},
		{"basic auth", "Basic dXNlcjpwYXNz", newStubVerifier(), "invalid authorization header format"},
		{"just bearer", "Bearer", newStubVerifier(), "invalid authorization header format"},
		{"empty bearer", "Bearer   ", newStubVerifier(), "missing bearer token"},
		{"unknown token", "Bearer nope", newStubVerifier(), "invalid access token"},
		{"expired token", "Bearer player-token", &stubVerifier{err: auth.ErrTokenExpired}, "access token has expired"},
		{"verifier failure", "Bearer player-token", &stubVerifier{err: errors.New("jwks fetch failed")}, "authentication failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := middleware.Auth(tt.verifier)(identityEcho())

			req := httptest.NewRequest(http.MethodGet, "/v1/me/unread", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

			var problem models.Problem
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			assert.Equal(t, tt.wantDetail, problem.Detail)
			assert.Equal(t, "/v1/me/unread", problem.Instance)
		})
	}
}

func TestAuth_ValidTokenSetsIdentity(t *testing.T) {
	handler := middleware.Auth(newStubVerifier())(identityEcho())

	req := httptest.NewRequest(http.MethodGet, "/v1/me/unread", http.NoBody)
	req.Header.Set("Authorization", "bearer player-token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "P1", rec.Body.String())
}

func TestAuth_WithJWTService(t *testing.T) {
	svc := auth.NewJWTService(auth.JWTConfig{SigningKey: "test-signing-key-with-enough-bytes"})
	token, _, err := svc.GenerateAccessToken("P2", false)
	require.NoError(t, err)

	handler := middleware.Auth(svc)(identityEcho())

	req := httptest.NewRequest(http.MethodGet, "/v1/me/unread", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "P2", rec.Body.String())
}

func TestRequireAdmin(t *testing.T) {
	handler := middleware.Auth(newStubVerifier())(middleware.RequireAdmin(identityEcho()))

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"admin allowed", "admin-token", http.StatusOK},
		{"player forbidden", "player-token", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/admin/feature-flags", http.NoBody)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestRequireAdmin_WithoutAuth(t *testing.T) {
	handler := middleware.RequireAdmin(identityEcho())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/admin/feature-flags", http.NoBody))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetUserID_Unauthenticated(t *testing.T) {
	assert.Empty(t, middleware.GetUserID(context.Background()))
	assert.Nil(t, middleware.GetIdentity(context.Background()))
}

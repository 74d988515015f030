package auth

import (
	"context"
	"fmt"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// AdminClaim is the custom claim granting access to admin endpoints.
const AdminClaim = "admin"

// IDTokenVerifier verifies Firebase ID tokens. *firebaseauth.Client satisfies it.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// FirebaseVerifier authenticates callers with Firebase ID tokens issued to the app.
type FirebaseVerifier struct {
	client IDTokenVerifier
}

// NewFirebaseVerifier creates a new Firebase ID token verifier.
func NewFirebaseVerifier(client IDTokenVerifier) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

// Verify validates a Firebase ID token.
func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	decoded, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		if firebaseauth.IsIDTokenExpired(err) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err.Error())
	}
	if decoded.UID == "" {
		return nil, ErrInvalidToken
	}

	admin, _ := decoded.Claims[AdminClaim].(bool)
	return &Identity{UserID: decoded.UID, Admin: admin}, nil
}

// Ensure FirebaseVerifier implements Verifier interface.
var _ Verifier = (*FirebaseVerifier)(nil)

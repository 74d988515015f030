package device

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	collectionUsers  = "users"
	collectionTokens = "fcmTokens"

	fieldLegacyToken    = "fcmToken"
	fieldLegacyPlatform = "fcmTokenPlatform"
)

type tokenDoc struct {
	Token     string    `firestore:"token"`
	Platform  string    `firestore:"platform"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// FirestoreRepository is a Firestore implementation of Repository.
//
// Tokens are stored as users/{uid}/fcmTokens/{token}; the legacy token is the
// fcmToken field (and optional fcmTokenPlatform) of users/{uid}.
type FirestoreRepository struct {
	client *firestore.Client
}

// NewFirestoreRepository creates a new Firestore token repository.
func NewFirestoreRepository(client *firestore.Client) *FirestoreRepository {
	return &FirestoreRepository{client: client}
}

// ListByUser retrieves the registered tokens of a user.
func (r *FirestoreRepository) ListByUser(ctx context.Context, userID string) ([]Token, error) {
	snaps, err := r.tokens(userID).OrderBy("createdAt", firestore.Asc).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}

	tokens := make([]Token, 0, len(snaps))
	for _, snap := range snaps {
		var doc tokenDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode token %s: %w", snap.Ref.ID, err)
		}
		value := doc.Token
		if value == "" {
			value = snap.Ref.ID
		}
		tokens = append(tokens, Token{Value: value, Platform: Platform(doc.Platform)})
	}
	return tokens, nil
}

// LegacyToken retrieves the legacy token of a user.
func (r *FirestoreRepository) LegacyToken(ctx context.Context, userID string) (*Token, error) {
	snap, err := r.client.Collection(collectionUsers).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}

	value, _ := snap.Data()[fieldLegacyToken].(string)
	if value == "" {
		return nil, nil
	}

	platform, _ := snap.Data()[fieldLegacyPlatform].(string)
	t := Token{Value: value, Platform: Platform(platform)}
	if !t.Platform.Valid() {
		t.Platform = LegacyPlatform
	}
	return &t, nil
}

// Save creates or refreshes a registration.
func (r *FirestoreRepository) Save(ctx context.Context, reg *Registration) (bool, error) {
	ref := r.tokens(reg.UserID).Doc(reg.Token.Value)

	_, err := ref.Create(ctx, tokenDoc{
		Token:     reg.Token.Value,
		Platform:  string(reg.Token.Platform),
		CreatedAt: reg.CreatedAt,
		UpdatedAt: reg.UpdatedAt,
	})
	if err == nil {
		return true, nil
	}
	if status.Code(err) != codes.AlreadyExists {
		return false, fmt.Errorf("create token: %w", err)
	}

	_, err = ref.Update(ctx, []firestore.Update{
		{Path: "platform", Value: string(reg.Token.Platform)},
		{Path: "updatedAt", Value: reg.UpdatedAt},
	})
	if err != nil {
		return false, fmt.Errorf("update token: %w", err)
	}
	return false, nil
}

// DeleteByValue removes every record holding the token value.
// Deleting an already deleted document is not an error, so concurrent calls are safe.
func (r *FirestoreRepository) DeleteByValue(ctx context.Context, value string) (int, error) {
	removed := 0

	snaps, err := r.client.CollectionGroup(collectionTokens).
		Where("token", "==", value).
		Select().
		Documents(ctx).GetAll()
	if err != nil {
		return 0, fmt.Errorf("find token records: %w", err)
	}
	for _, snap := range snaps {
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return removed, fmt.Errorf("delete token record %s: %w", snap.Ref.Path, err)
		}
		removed++
	}

	users, err := r.client.Collection(collectionUsers).
		Where(fieldLegacyToken, "==", value).
		Select().
		Documents(ctx).GetAll()
	if err != nil {
		return removed, fmt.Errorf("find legacy tokens: %w", err)
	}
	for _, snap := range users {
		_, err := snap.Ref.Update(ctx, []firestore.Update{
			{Path: fieldLegacyToken, Value: firestore.Delete},
			{Path: fieldLegacyPlatform, Value: firestore.Delete},
		})
		if err != nil && status.Code(err) != codes.NotFound {
			return removed, fmt.Errorf("clear legacy token of %s: %w", snap.Ref.ID, err)
		}
		removed++
	}

	return removed, nil
}

func (r *FirestoreRepository) tokens(userID string) *firestore.CollectionRef {
	return r.client.Collection(collectionUsers).Doc(userID).Collection(collectionTokens)
}

// Ensure FirestoreRepository implements Repository interface.
var _ Repository = (*FirestoreRepository)(nil)

package featureflags

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const collectionFlags = "featureFlags"

type flagDoc struct {
	Value     interface{} `firestore:"value"`
	UpdatedAt time.Time   `firestore:"updatedAt"`
}

// FirestoreRepository is a Firestore implementation of Repository.
// Each flag is a document in the featureFlags collection keyed by flag key.
type FirestoreRepository struct {
	client *firestore.Client
}

// NewFirestoreRepository creates a new Firestore feature flags repository.
func NewFirestoreRepository(client *firestore.Client) *FirestoreRepository {
	return &FirestoreRepository{client: client}
}

// GetFlag retrieves a single feature flag by key.
func (r *FirestoreRepository) GetFlag(ctx context.Context, key string) (*Flag, error) {
	snap, err := r.client.Collection(collectionFlags).Doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrFlagNotFound
		}
		return nil, fmt.Errorf("get flag %s: %w", key, err)
	}
	return decodeFlag(snap)
}

// GetAllFlags retrieves all feature flags.
func (r *FirestoreRepository) GetAllFlags(ctx context.Context) (map[string]*Flag, error) {
	snaps, err := r.client.Collection(collectionFlags).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}

	flags := make(map[string]*Flag, len(snaps))
	for _, snap := range snaps {
		flag, err := decodeFlag(snap)
		if err != nil {
			return nil, err
		}
		flags[flag.Key] = flag
	}
	return flags, nil
}

// SetFlag creates or updates a feature flag.
func (r *FirestoreRepository) SetFlag(ctx context.Context, flag *Flag) error {
	_, err := r.client.Collection(collectionFlags).Doc(flag.Key).Set(ctx, flagDoc{
		Value:     flag.Value,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("set flag %s: %w", flag.Key, err)
	}
	return nil
}

// SetFlags creates or updates multiple feature flags atomically.
func (r *FirestoreRepository) SetFlags(ctx context.Context, flags []*Flag) error {
	now := time.Now()
	err := r.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		for _, flag := range flags {
			ref := r.client.Collection(collectionFlags).Doc(flag.Key)
			if err := tx.Set(ref, flagDoc{Value: flag.Value, UpdatedAt: now}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set flags: %w", err)
	}
	return nil
}

// DeleteFlag removes a feature flag by key.
func (r *FirestoreRepository) DeleteFlag(ctx context.Context, key string) error {
	if _, err := r.client.Collection(collectionFlags).Doc(key).Delete(ctx); err != nil {
		return fmt.Errorf("delete flag %s: %w", key, err)
	}
	return nil
}

func decodeFlag(snap *firestore.DocumentSnapshot) (*Flag, error) {
	var doc flagDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode flag %s: %w", snap.Ref.ID, err)
	}
	return &Flag{Key: snap.Ref.ID, Value: doc.Value, UpdatedAt: doc.UpdatedAt}, nil
}

// Ensure FirestoreRepository implements Repository interface.
var _ Repository = (*FirestoreRepository)(nil)

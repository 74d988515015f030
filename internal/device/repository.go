package device

import "context"

// Repository defines the interface for push token persistence.
type Repository interface {
	// ListByUser retrieves the registered tokens of a user.
	ListByUser(ctx context.Context, userID string) ([]Token, error)

	// LegacyToken retrieves the single pre-multi-device token of a user.
	// Returns nil without error if the user has none.
	LegacyToken(ctx context.Context, userID string) (*Token, error)

	// Save creates or refreshes a registration keyed by user and token value.
	// Returns true if a new record was created.
	Save(ctx context.Context, reg *Registration) (created bool, err error)

	// DeleteByValue removes every record holding the token value across all users,
	// including legacy tokens. Returns the number of records removed.
	DeleteByValue(ctx context.Context, value string) (int, error)
}

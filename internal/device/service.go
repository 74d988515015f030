package device

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// RegistryConfig holds configuration for creating a Registry.
type RegistryConfig struct {
	Repository Repository
	Logger     zerolog.Logger

	// Now returns the current time. Default: time.Now
	Now func() time.Time
}

// Registry owns the push tokens of every user.
type Registry struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

// NewRegistry creates a new token registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Registry{
		repo:   cfg.Repository,
		logger: cfg.Logger,
		now:    now,
	}
}

// Register adds a token for a user, or refreshes it if already present.
// Returns true if the token was newly registered.
func (r *Registry) Register(ctx context.Context, userID, value string, platform Platform) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return false, ErrEmptyToken
	}
	if !platform.Valid() {
		return false, ErrInvalidPlatform
	}

	now := r.now()
	created, err := r.repo.Save(ctx, &Registration{
		UserID:    userID,
		Token:     Token{Value: value, Platform: platform},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return false, fmt.Errorf("save token: %w", err)
	}

	r.logger.Debug().
		Str("user_id", userID).
		Str("platform", string(platform)).
		Str("token_last4", Token{Value: value}.Last4()).
		Bool("created", created).
		Msg("push token registered")

	return created, nil
}

// ListTokens returns the registered tokens of a user together with the legacy
// token, deduplicated by value. A registered entry wins over the legacy one.
func (r *Registry) ListTokens(ctx context.Context, userID string) ([]Token, error) {
	tokens, err := r.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}

	legacy, err := r.repo.LegacyToken(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("legacy token: %w", err)
	}

	seen := make(map[string]struct{}, len(tokens)+1)
	out := make([]Token, 0, len(tokens)+1)
	for _, t := range tokens {
		if t.Value == "" {
			continue
		}
		if _, ok := seen[t.Value]; ok {
			continue
		}
		seen[t.Value] = struct{}{}
		out = append(out, t)
	}

	if legacy != nil && legacy.Value != "" {
		if _, ok := seen[legacy.Value]; !ok {
			out = append(out, *legacy)
		}
	}

	return out, nil
}

// PruneToken removes every record holding the token value across all users.
// Pruning an absent token is a no-op.
func (r *Registry) PruneToken(ctx context.Context, value string) error {
	removed, err := r.repo.DeleteByValue(ctx, value)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}

	r.logger.Info().
		Str("token_last4", Token{Value: value}.Last4()).
		Int("removed", removed).
		Msg("pruned push token")

	return nil
}

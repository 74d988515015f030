package device

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
//
// Tokens live in device_tokens (user_id, token, platform, created_at, updated_at)
// with a unique (user_id, token) key; the legacy token is users.legacy_push_token
// with an optional users.legacy_push_platform.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL token repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// ListByUser retrieves the registered tokens of a user.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Token, error) {
	query := `
		SELECT token, platform
		FROM device_tokens
		WHERE user_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []Token
	for rows.Next() {
		var t Token
		if err := rows.Scan(&t.Value, &t.Platform); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tokens, nil
}

// LegacyToken retrieves the legacy token of a user.
func (r *PostgresRepository) LegacyToken(ctx context.Context, userID string) (*Token, error) {
	query := `
		SELECT legacy_push_token, COALESCE(legacy_push_platform, '')
		FROM users
		WHERE id = $1 AND legacy_push_token IS NOT NULL AND legacy_push_token <> ''
	`

	var t Token
	err := r.pool.QueryRow(ctx, query, userID).Scan(&t.Value, &t.Platform)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if !t.Platform.Valid() {
		t.Platform = LegacyPlatform
	}
	return &t, nil
}

// Save creates or refreshes a registration.
func (r *PostgresRepository) Save(ctx context.Context, reg *Registration) (bool, error) {
	query := `
		INSERT INTO device_tokens (user_id, token, platform, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, token) DO UPDATE SET
			platform = EXCLUDED.platform,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0) AS inserted
	`

	var inserted bool
	err := r.pool.QueryRow(ctx, query,
		reg.UserID,
		reg.Token.Value,
		reg.Token.Platform,
		reg.CreatedAt,
		reg.UpdatedAt,
	).Scan(&inserted)
	if err != nil {
		return false, err
	}

	return inserted, nil
}

// DeleteByValue removes every record holding the token value.
func (r *PostgresRepository) DeleteByValue(ctx context.Context, value string) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	deleted, err := tx.Exec(ctx, `DELETE FROM device_tokens WHERE token = $1`, value)
	if err != nil {
		return 0, err
	}

	cleared, err := tx.Exec(ctx, `
		UPDATE users SET legacy_push_token = NULL, legacy_push_platform = NULL
		WHERE legacy_push_token = $1
	`, value)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	return int(deleted.RowsAffected() + cleared.RowsAffected()), nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/canteen-reservation/internal/persistence"
)

// BadgeTokenRepository implements persistence.BadgeTokenRepository using
// SQLite. Tokens are issued elsewhere; this repository stores and validates
// them.
type BadgeTokenRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewBadgeTokenRepository creates a new SQLite badge token repository.
func NewBadgeTokenRepository(pool *ConnectionPool) *BadgeTokenRepository {
	return &BadgeTokenRepository{pool: pool, mapper: NewErrorMapper()}
}

type badgeTokenRow struct {
	ID         string         `db:"id"`
	PersonID   string         `db:"person_id"`
	SecretHash string         `db:"secret_hash"`
	Status     string         `db:"status"`
	SingleUse  bool           `db:"single_use"`
	ExpiresAt  sql.NullString `db:"expires_at"`
	UsedAt     sql.NullString `db:"used_at"`
	CreatedAt  string         `db:"created_at"`
	UpdatedAt  string         `db:"updated_at"`
}

// CreateBadgeToken stores a new badge token.
func (r *BadgeTokenRepository) CreateBadgeToken(ctx context.Context, token persistence.BadgeToken) error {
	if token.ID == "" || token.PersonID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO badge_tokens (id, person_id, secret_hash, status, single_use, expires_at, used_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		token.ID,
		token.PersonID,
		token.SecretHash,
		string(token.Status),
		token.SingleUse,
		nullableInstant(token.ExpiresAt),
		nullableInstant(token.UsedAt),
		formatInstant(token.CreatedAt),
		formatInstant(token.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// GetBadgeToken retrieves a badge token by id.
func (r *BadgeTokenRepository) GetBadgeToken(ctx context.Context, id string) (persistence.BadgeToken, error) {
	if id == "" {
		return persistence.BadgeToken{}, persistence.ErrNotFound
	}

	var row badgeTokenRow
	err := r.pool.DB().GetContext(ctx, &row, `
		SELECT id, person_id, secret_hash, status, single_use, expires_at, used_at, created_at, updated_at
		FROM badge_tokens
		WHERE id = ?
	`, id)
	if err != nil {
		return persistence.BadgeToken{}, r.mapper.MapError(err)
	}

	token := persistence.BadgeToken{
		ID:         row.ID,
		PersonID:   row.PersonID,
		SecretHash: row.SecretHash,
		Status:     persistence.BadgeTokenStatus(row.Status),
		SingleUse:  row.SingleUse,
	}

	if token.ExpiresAt, err = parseNullableInstant("expires_at", row.ExpiresAt); err != nil {
		return persistence.BadgeToken{}, err
	}
	if token.UsedAt, err = parseNullableInstant("used_at", row.UsedAt); err != nil {
		return persistence.BadgeToken{}, err
	}
	if token.CreatedAt, err = parseInstant("created_at", row.CreatedAt); err != nil {
		return persistence.BadgeToken{}, err
	}
	if token.UpdatedAt, err = parseInstant("updated_at", row.UpdatedAt); err != nil {
		return persistence.BadgeToken{}, err
	}

	return token, nil
}

// RevokeBadgeToken marks a token revoked. Revoking an already revoked token
// is a no-op.
func (r *BadgeTokenRepository) RevokeBadgeToken(ctx context.Context, id string, revokedAt time.Time) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE badge_tokens
		SET status = 'revoked', updated_at = ?
		WHERE id = ?
	`, formatInstant(revokedAt), id)
	if err != nil {
		return r.mapper.MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}

	return nil
}

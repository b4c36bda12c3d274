package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solenne/boutique/internal/domain/auth"
)

const getSessionByHashSQL = `SELECT id, token_hash, user_id
	FROM sessions WHERE token_hash = $1 AND active = TRUE`

var _ auth.Repository = (*SessionRepository)(nil)

// SessionRepository provides session lookups backed by PostgreSQL.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository returns a SessionRepository that uses the given pool.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// FindByTokenHash looks up an active session by its HMAC-SHA256 token hash.
func (r *SessionRepository) FindByTokenHash(ctx context.Context, hash string) (*auth.SessionInfo, error) {
	var info auth.SessionInfo
	err := dbFrom(ctx, r.pool).QueryRow(ctx, getSessionByHashSQL, hash).Scan(
		&info.ID, &info.TokenHash, &info.UserID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("finding session by hash: %w", err)
	}
	return &info, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hcadmin/internal/models"
)

type RefreshTokenRepository struct {
	pool *pgxpool.Pool
}

func NewRefreshTokenRepository(pool *pgxpool.Pool) *RefreshTokenRepository {
	return &RefreshTokenRepository{pool: pool}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token models.RefreshToken) error {
	const query = `
		INSERT INTO refresh_tokens (id, token_hash, session_id, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		token.ID,
		token.TokenHash,
		token.SessionID,
		token.UserID,
		token.CreatedAt,
		token.ExpiresAt,
	)
	return err
}

// FindByHash returns the token whatever its revocation state.
func (r *RefreshTokenRepository) FindByHash(ctx context.Context, hash []byte) (models.RefreshToken, error) {
	const query = `
		SELECT id, token_hash, session_id, user_id, created_at, expires_at, revoked_at, replaced_by
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	var token models.RefreshToken
	if err := r.pool.QueryRow(ctx, query, hash).Scan(
		&token.ID,
		&token.TokenHash,
		&token.SessionID,
		&token.UserID,
		&token.CreatedAt,
		&token.ExpiresAt,
		&token.RevokedAt,
		&token.ReplacedBy,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.RefreshToken{}, ErrRefreshTokenNotFound
		}
		return models.RefreshToken{}, err
	}
	return token, nil
}

// Rotate revokes the old token only if it is still unrevoked, then inserts
// the replacement in the same transaction. Of two concurrent rotations the
// second blocks on the row lock and then matches zero rows.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, params RotateRefreshTokenParams) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const revoke = `
		UPDATE refresh_tokens
		SET revoked_at = $2, replaced_by = $3
		WHERE token_hash = $1 AND revoked_at IS NULL
	`
	cmd, err := tx.Exec(ctx, revoke, params.OldHash, params.At, params.Replacement.ID)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrRefreshTokenRevoked
	}

	const insert = `
		INSERT INTO refresh_tokens (id, token_hash, session_id, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	replacement := params.Replacement
	if _, err := tx.Exec(ctx, insert,
		replacement.ID,
		replacement.TokenHash,
		replacement.SessionID,
		replacement.UserID,
		replacement.CreatedAt,
		replacement.ExpiresAt,
	); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) RevokeBySession(ctx context.Context, sessionID string, at time.Time) (int64, error) {
	const query = `
		UPDATE refresh_tokens SET revoked_at = $2
		WHERE session_id = $1 AND revoked_at IS NULL
	`
	cmd, err := r.pool.Exec(ctx, query, sessionID, at)
	if err != nil {
		return 0, fmt.Errorf("revoke session tokens: %w", err)
	}
	return cmd.RowsAffected(), nil
}

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

type OtpRepository struct {
	pool *pgxpool.Pool
}

func NewOtpRepository(pool *pgxpool.Pool) *OtpRepository {
	return &OtpRepository{pool: pool}
}

// Replace supersedes the live code of (user, channel) and inserts a new one.
// The advisory lock serializes concurrent issues for the same pair so the
// partial unique index never sees two live rows.
func (r *OtpRepository) Replace(ctx context.Context, params ReplaceOtpParams) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(1, hashtext($1))`, params.UserID+":"+string(params.Channel)); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}

	const supersede = `
		UPDATE otp_records
		SET superseded_at = $3
		WHERE user_id = $1 AND channel = $2
		  AND consumed_at IS NULL AND superseded_at IS NULL
	`
	if _, err := tx.Exec(ctx, supersede, params.UserID, params.Channel, params.CreatedAt); err != nil {
		return fmt.Errorf("supersede otp: %w", err)
	}

	const insert = `
		INSERT INTO otp_records (id, user_id, channel, code_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.Exec(ctx, insert,
		params.ID,
		params.UserID,
		params.Channel,
		params.CodeHash,
		params.CreatedAt,
		params.ExpiresAt,
	); err != nil {
		return fmt.Errorf("insert otp: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// FindLatest returns the live record of (user, channel) if there is one,
// otherwise the newest consumed record, otherwise the newest superseded one.
// created_at is stamped before Replace takes its lock, so it cannot rank a
// live row against the rows it replaced.
func (r *OtpRepository) FindLatest(ctx context.Context, userID string, channel models.OtpChannel) (models.OtpRecord, error) {
	const query = `
		SELECT id, user_id, channel, code_hash, created_at, expires_at, consumed_at, superseded_at
		FROM otp_records
		WHERE user_id = $1 AND channel = $2
		ORDER BY (consumed_at IS NULL AND superseded_at IS NULL) DESC,
		         (superseded_at IS NULL) DESC,
		         created_at DESC,
		         id DESC
		LIMIT 1
	`

	var record models.OtpRecord
	if err := r.pool.QueryRow(ctx, query, userID, channel).Scan(
		&record.ID,
		&record.UserID,
		&record.Channel,
		&record.CodeHash,
		&record.CreatedAt,
		&record.ExpiresAt,
		&record.ConsumedAt,
		&record.SupersededAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.OtpRecord{}, ErrOtpNotFound
		}
		return models.OtpRecord{}, err
	}
	return record, nil
}

// MarkConsumed succeeds only for a live record; a concurrent consumer that
// lost the race gets ErrOtpAlreadyConsumed.
func (r *OtpRepository) MarkConsumed(ctx context.Context, id string, at time.Time) error {
	const query = `
		UPDATE otp_records
		SET consumed_at = $2
		WHERE id = $1 AND consumed_at IS NULL AND superseded_at IS NULL
	`
	cmd, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("mark consumed: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrOtpAlreadyConsumed
	}
	return nil
}

// CountSince counts codes issued for the user since the given time.
func (r *OtpRepository) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM otp_records WHERE user_id = $1 AND created_at >= $2`
	var count int
	if err := r.pool.QueryRow(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count otp: %w", err)
	}
	return count, nil
}

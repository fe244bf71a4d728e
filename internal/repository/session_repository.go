package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hcadmin/internal/models"
)

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, user_id, branch_id, ip_address, user_agent, browser, os, device_type, status, login_at, last_activity_at, logout_at, logout_reason`

func (r *SessionRepository) Create(ctx context.Context, session models.LoginSession) error {
	const query = `
		INSERT INTO login_sessions (
			id, user_id, branch_id, ip_address, user_agent, browser, os, device_type, status, login_at, last_activity_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	_, err := r.pool.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.BranchID,
		session.IPAddress,
		session.UserAgent,
		session.Browser,
		session.OS,
		session.DeviceType,
		session.Status,
		session.LoginAt,
		session.LastActivityAt,
	)
	return err
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (models.LoginSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM login_sessions WHERE id = $1`
	return scanSession(r.pool.QueryRow(ctx, query, id))
}

func (r *SessionRepository) ListByUser(ctx context.Context, userID string) ([]models.LoginSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM login_sessions
		WHERE user_id = $1
		ORDER BY last_activity_at DESC
		LIMIT 100
	`
	return r.list(ctx, query, userID)
}

// ListActiveByUser orders the newest activity first.
func (r *SessionRepository) ListActiveByUser(ctx context.Context, userID string) ([]models.LoginSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM login_sessions
		WHERE user_id = $1 AND status = 'active'
		ORDER BY last_activity_at DESC
	`
	return r.list(ctx, query, userID)
}

func (r *SessionRepository) ListIdle(ctx context.Context, before time.Time, limit int) ([]models.LoginSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM login_sessions
		WHERE status = 'active' AND last_activity_at < $1
		ORDER BY last_activity_at
		LIMIT $2
	`
	return r.list(ctx, query, before, limit)
}

func (r *SessionRepository) UpdateStatus(ctx context.Context, params UpdateSessionStatusParams) error {
	const query = `
		UPDATE login_sessions
		SET status = $2, logout_at = $3, logout_reason = $4
		WHERE id = $1 AND status = 'active'
	`
	cmd, err := r.pool.Exec(ctx, query, params.SessionID, params.Status, params.At, params.Reason)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, params.SessionID); err != nil {
			return err
		}
		return ErrSessionNotActive
	}
	return nil
}

func (r *SessionRepository) Touch(ctx context.Context, params TouchSessionParams) error {
	const query = `
		UPDATE login_sessions
		SET last_activity_at = $2,
		    ip_address = COALESCE(NULLIF($3, ''), ip_address),
		    user_agent = COALESCE(NULLIF($4, ''), user_agent)
		WHERE id = $1 AND status = 'active'
	`
	cmd, err := r.pool.Exec(ctx, query, params.SessionID, params.At, params.IPAddress, params.UserAgent)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, params.SessionID); err != nil {
			return err
		}
		return ErrSessionNotActive
	}
	return nil
}

func (r *SessionRepository) list(ctx context.Context, query string, args ...any) ([]models.LoginSession, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.LoginSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func scanSession(row pgx.Row) (models.LoginSession, error) {
	var session models.LoginSession
	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.BranchID,
		&session.IPAddress,
		&session.UserAgent,
		&session.Browser,
		&session.OS,
		&session.DeviceType,
		&session.Status,
		&session.LoginAt,
		&session.LastActivityAt,
		&session.LogoutAt,
		&session.LogoutReason,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.LoginSession{}, ErrSessionNotFound
		}
		return models.LoginSession{}, err
	}
	return session, nil
}

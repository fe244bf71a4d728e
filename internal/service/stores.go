package service

import (
	"context"
	"time"

	"hcadmin/internal/models"
	"hcadmin/internal/repository"
)

// Credential store contracts. The pgx repositories and the in-memory stores
// both satisfy them with the same conditional-update semantics.

type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByUsername(ctx context.Context, username string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	UpdatePasswordHash(ctx context.Context, id string, hash []byte) error
	UpdateStatus(ctx context.Context, id string, status models.UserStatus) error
	UpdateAvatar(ctx context.Context, id string, attachmentID string) error
}

type OtpStore interface {
	Replace(ctx context.Context, params repository.ReplaceOtpParams) error
	FindLatest(ctx context.Context, userID string, channel models.OtpChannel) (models.OtpRecord, error)
	MarkConsumed(ctx context.Context, id string, at time.Time) error
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
}

type SessionStore interface {
	Create(ctx context.Context, session models.LoginSession) error
	GetByID(ctx context.Context, id string) (models.LoginSession, error)
	ListByUser(ctx context.Context, userID string) ([]models.LoginSession, error)
	ListActiveByUser(ctx context.Context, userID string) ([]models.LoginSession, error)
	ListIdle(ctx context.Context, before time.Time, limit int) ([]models.LoginSession, error)
	UpdateStatus(ctx context.Context, params repository.UpdateSessionStatusParams) error
	Touch(ctx context.Context, params repository.TouchSessionParams) error
}

type RefreshTokenStore interface {
	Create(ctx context.Context, token models.RefreshToken) error
	FindByHash(ctx context.Context, hash []byte) (models.RefreshToken, error)
	Rotate(ctx context.Context, params repository.RotateRefreshTokenParams) error
	RevokeBySession(ctx context.Context, sessionID string, at time.Time) (int64, error)
}

type GrantStore interface {
	Save(ctx context.Context, tokenHash []byte, grant models.ResetGrant) error
	Consume(ctx context.Context, tokenHash []byte, at time.Time) (models.ResetGrant, error)
	// Release undoes a Consume whose password update did not happen.
	Release(ctx context.Context, tokenHash []byte) error
}

type AttachmentStore interface {
	Create(ctx context.Context, attachment models.Attachment) error
	GetByID(ctx context.Context, id string) (models.Attachment, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Attachment, error)
}

// Clock lets tests move time without sleeping.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

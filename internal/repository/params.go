package repository

import (
	"time"

	"hcadmin/internal/models"
)

// ReplaceOtpParams supersedes every live code of (UserID, Channel) and
// inserts a new one in the same store operation.
type ReplaceOtpParams struct {
	ID        string
	UserID    string
	Channel   models.OtpChannel
	CodeHash  []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

// UpdateSessionStatusParams moves an active session to Status. Sessions
// that are no longer active are left untouched.
type UpdateSessionStatusParams struct {
	SessionID string
	Status    models.SessionStatus
	Reason    string
	At        time.Time
}

type TouchSessionParams struct {
	SessionID string
	At        time.Time
	IPAddress string
	UserAgent string
}

// RotateRefreshTokenParams revokes the token with OldHash, provided it is
// still unrevoked, and inserts Replacement pointing back from it.
type RotateRefreshTokenParams struct {
	OldHash     []byte
	Replacement models.RefreshToken
	At          time.Time
}

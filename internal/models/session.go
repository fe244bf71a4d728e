package models

import "time"

type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusLoggedOut SessionStatus = "logged_out"
	SessionStatusExpired   SessionStatus = "expired"
	SessionStatusRevoked   SessionStatus = "revoked"
)

// Logout reasons recorded on LoginSession.
const (
	ReasonLogout         = "logout"
	ReasonLogoutAll      = "logout_all"
	ReasonPasswordReset  = "password_reset"
	ReasonPasswordChange = "password_change"
	ReasonSessionLimit   = "session_limit"
	ReasonIdleTimeout    = "idle_timeout"
	ReasonAdminRevoke    = "admin_revoke"
)

// LoginSession rows are never deleted; ending a session only changes its status.
type LoginSession struct {
	ID             string
	UserID         string
	BranchID       string
	IPAddress      string
	UserAgent      string
	Browser        string
	OS             string
	DeviceType     string
	Status         SessionStatus
	LoginAt        time.Time
	LastActivityAt time.Time
	LogoutAt       *time.Time
	LogoutReason   string
}

func (s LoginSession) Active() bool {
	return s.Status == SessionStatusActive
}

type RefreshToken struct {
	ID         string
	TokenHash  []byte
	SessionID  string
	UserID     string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	ReplacedBy *string
}

func (t RefreshToken) Revoked() bool {
	return t.RevokedAt != nil
}

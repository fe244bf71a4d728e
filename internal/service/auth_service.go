package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hcadmin/internal/audit"
	"hcadmin/internal/config"
	"hcadmin/internal/ids"
	"hcadmin/internal/models"
	"hcadmin/internal/repository"
	"hcadmin/internal/security"
)

type AuthService struct {
	users    UserStore
	sessions *SessionService
	policy   *security.PasswordPolicy
	audit    audit.Publisher
	tokens   security.AccessTokenKeys
	cfg      config.SecurityConfig
	now      Clock
	log      zerolog.Logger
}

func NewAuthService(
	users UserStore,
	sessions *SessionService,
	policy *security.PasswordPolicy,
	publisher audit.Publisher,
	cfg config.SecurityConfig,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		policy:   policy,
		audit:    publisher,
		tokens:   security.AccessTokenKeysFrom(cfg),
		cfg:      cfg,
		now:      systemClock,
		log:      log,
	}
}

type AuthResult struct {
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshToken    string
	Session         models.LoginSession
	User            models.User
}

type LoginInput struct {
	Username string
	Password string
	BranchID string
	Client   ClientInfo
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.loginFailed(ctx, "", username, "unknown_user")
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("find user: %w", err)
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("verify password failed")
	}
	if !ok {
		s.loginFailed(ctx, user.ID, username, "bad_password")
		return AuthResult{}, ErrInvalidCredentials
	}

	if !user.Active() {
		return AuthResult{}, ErrUserInactive
	}

	if security.NeedsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user.ID, input.Password)
	}

	branchID := input.BranchID
	if branchID == "" {
		branchID = user.BranchID
	}

	session, err := s.sessions.CreateSession(ctx, user.ID, branchID, input.Client)
	if err != nil {
		return AuthResult{}, err
	}

	refreshToken, err := s.sessions.IssueRefreshToken(ctx, user.ID, session.ID, s.cfg.RefreshTokenTTL)
	if err != nil {
		return AuthResult{}, err
	}

	if revoked, err := s.sessions.EnforceSessionLimit(ctx, user.ID, s.cfg.MaxSessions); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("enforce session limit failed")
	} else if revoked > 0 {
		s.log.Info().Str("user_id", user.ID).Int("revoked", revoked).Msg("session limit reached")
	}

	result, err := s.buildResult(user, session, refreshToken)
	if err != nil {
		return AuthResult{}, err
	}

	s.publish(ctx, audit.Event{Type: audit.EventLogin, UserID: user.ID, SessionID: session.ID, At: s.now()})
	return result, nil
}

// Refresh rotates the refresh token and mints a new access token for the
// same session.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, client ClientInfo) (AuthResult, error) {
	newToken, info, err := s.sessions.RotateRefreshToken(ctx, refreshToken)
	if err != nil {
		return AuthResult{}, err
	}

	user, err := s.users.GetByID(ctx, info.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, ErrUserNotFound
		}
		return AuthResult{}, fmt.Errorf("load user: %w", err)
	}
	if !user.Active() {
		return AuthResult{}, ErrUserInactive
	}

	if err := s.sessions.TouchSession(ctx, info.SessionID, client); err != nil {
		return AuthResult{}, err
	}
	session, err := s.sessions.ValidateSession(ctx, info.SessionID)
	if err != nil {
		return AuthResult{}, err
	}

	return s.buildResult(user, session, newToken)
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.InvalidateSession(ctx, sessionID, models.SessionStatusLoggedOut, models.ReasonLogout)
}

func (s *AuthService) LogoutEverywhere(ctx context.Context, userID string) (int, error) {
	return s.sessions.InvalidateAllUserSessions(ctx, userID, models.ReasonLogoutAll)
}

type CreateUserInput struct {
	Username  string
	Password  string
	ContactNo string
	Email     string
	Role      models.UserRole
	BranchID  string
}

// CreateUser provisions an account. Used by the admin surface and seeding.
func (s *AuthService) CreateUser(ctx context.Context, input CreateUserInput) (models.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if input.Username == "" {
		return models.User{}, fmt.Errorf("%w: username required", ErrInvalidInput)
	}
	if !s.policy.Allows(input.Password) {
		return models.User{}, &PolicyError{Message: s.policy.Message()}
	}

	role := input.Role
	if role == "" {
		role = models.UserRoleStaff
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		ID:           ids.New(),
		Username:     input.Username,
		ContactNo:    strings.TrimSpace(input.ContactNo),
		Email:        input.Email,
		PasswordHash: hash,
		Role:         role,
		Status:       models.UserStatusActive,
		BranchID:     input.BranchID,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return models.User{}, ErrUsernameTaken
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// SetUserStatus deactivating a user also ends all of their sessions.
func (s *AuthService) SetUserStatus(ctx context.Context, userID string, status models.UserStatus) error {
	if err := s.users.UpdateStatus(ctx, userID, status); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update user status: %w", err)
	}
	if status != models.UserStatusActive {
		if _, err := s.sessions.InvalidateAllUserSessions(ctx, userID, models.ReasonAdminRevoke); err != nil {
			return err
		}
	}
	return nil
}

func (s *AuthService) buildResult(user models.User, session models.LoginSession, refreshToken string) (AuthResult, error) {
	accessToken, expiresAt, err := s.tokens.Sign(security.AccessSubject{
		UserID:    user.ID,
		SessionID: session.ID,
		Role:      string(user.Role),
		BranchID:  session.BranchID,
	}, s.now())
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{
		AccessToken:     accessToken,
		AccessExpiresAt: expiresAt,
		RefreshToken:    refreshToken,
		Session:         session,
		User:            user,
	}, nil
}

func (s *AuthService) upgradeHash(ctx context.Context, userID, password string) {
	hash, err := security.HashPassword(password)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, userID, hash)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("password hash upgrade failed")
		return
	}
	s.log.Info().Str("user_id", userID).Msg("legacy password hash upgraded")
}

func (s *AuthService) loginFailed(ctx context.Context, userID, username, reason string) {
	s.publish(ctx, audit.Event{
		Type:   audit.EventLoginFailed,
		UserID: userID,
		Reason: reason,
		At:     s.now(),
		Meta:   map[string]string{"username": username},
	})
}

func (s *AuthService) publish(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("event", event.Type).Msg("audit publish failed")
	}
}

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
	"hcadmin/internal/models"
	"hcadmin/internal/notify"
	"hcadmin/internal/repository"
	"hcadmin/internal/security"
)

const resetTokenBytes = 32

// OtpDispatch describes a code that was issued. Hint is the masked contact
// or email it was sent to.
type OtpDispatch struct {
	Hint      string
	Channel   models.OtpChannel
	ExpiresAt time.Time
}

// ResetTicket authorises exactly one password update before ExpiresAt.
type ResetTicket struct {
	Token     string
	Channel   models.OtpChannel
	ExpiresAt time.Time
}

type ResetService struct {
	users    UserStore
	otpStore OtpStore
	otps     *OtpService
	sessions *SessionService
	grants   GrantStore
	sms      notify.SMSSender
	email    notify.EmailSender
	policy   *security.PasswordPolicy
	audit    audit.Publisher
	cfg      config.OTPConfig
	timeout  time.Duration
	now      Clock
	log      zerolog.Logger
}

type ResetDeps struct {
	Users    UserStore
	OtpStore OtpStore
	Otps     *OtpService
	Sessions *SessionService
	Grants   GrantStore
	SMS      notify.SMSSender
	Email    notify.EmailSender
	Policy   *security.PasswordPolicy
	Audit    audit.Publisher
}

func NewResetService(deps ResetDeps, cfg config.OTPConfig, deliveryTimeout time.Duration, log zerolog.Logger) *ResetService {
	if deliveryTimeout <= 0 {
		deliveryTimeout = 30 * time.Second
	}
	return &ResetService{
		users:    deps.Users,
		otpStore: deps.OtpStore,
		otps:     deps.Otps,
		sessions: deps.Sessions,
		grants:   deps.Grants,
		sms:      deps.SMS,
		email:    deps.Email,
		policy:   deps.Policy,
		audit:    deps.Audit,
		cfg:      cfg,
		timeout:  deliveryTimeout,
		now:      systemClock,
		log:      log,
	}
}

// ValidateUserForReset checks that contactOrEmail matches the stored value
// for the channel and returns a masked hint of it. Inactive users are
// reported as not found.
func (s *ResetService) ValidateUserForReset(ctx context.Context, userName string, channel models.OtpChannel, contactOrEmail string) (string, error) {
	_, hint, err := s.identify(ctx, userName, channel, contactOrEmail)
	return hint, err
}

// RequestOtp identifies the user, issues a code and delivers it. Delivery
// runs after the code is stored, so ErrDeliveryFailed leaves a valid code
// behind; callers retry by requesting again, which supersedes it.
func (s *ResetService) RequestOtp(ctx context.Context, userName string, channel models.OtpChannel, contactOrEmail string) (OtpDispatch, error) {
	user, hint, err := s.identify(ctx, userName, channel, contactOrEmail)
	if err != nil {
		return OtpDispatch{}, err
	}

	if err := s.checkRequestRate(ctx, user.ID); err != nil {
		return OtpDispatch{}, err
	}

	expiry := s.cfg.OTPExpiry()
	code, err := s.otps.IssueOtp(ctx, user.ID, channel, expiry)
	if err != nil {
		return OtpDispatch{}, err
	}

	now := s.now()
	dispatch := OtpDispatch{Hint: hint, Channel: channel, ExpiresAt: now.Add(expiry)}
	s.publish(ctx, audit.Event{Type: audit.EventOtpIssued, UserID: user.ID, At: now, Meta: map[string]string{"channel": string(channel)}})

	if err := s.deliver(ctx, user, channel, code); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Str("channel", string(channel)).Msg("otp delivery failed")
		s.publish(ctx, audit.Event{Type: audit.EventOtpDeliveryFail, UserID: user.ID, At: s.now(), Meta: map[string]string{"channel": string(channel)}})
		return dispatch, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return dispatch, nil
}

// VerifyOtp validates the latest code for (user, channel) and returns a
// ticket good for one password update within the grace window.
func (s *ResetService) VerifyOtp(ctx context.Context, userName string, channel models.OtpChannel, code string) (ResetTicket, error) {
	if !channel.Valid() {
		return ResetTicket{}, fmt.Errorf("%w: unknown channel %q", ErrInvalidInput, channel)
	}
	user, err := s.activeUser(ctx, userName)
	if err != nil {
		return ResetTicket{}, err
	}

	if err := s.otps.VerifyOtp(ctx, user.ID, channel, strings.TrimSpace(code)); err != nil {
		return ResetTicket{}, err
	}

	token, hash, err := security.GenerateOpaqueToken(resetTokenBytes)
	if err != nil {
		return ResetTicket{}, err
	}

	now := s.now()
	expiresAt := now.Add(s.cfg.ResetGraceWindow)
	if err := s.grants.Save(ctx, hash, models.ResetGrant{
		UserID:    user.ID,
		Channel:   channel,
		ExpiresAt: expiresAt,
	}); err != nil {
		return ResetTicket{}, fmt.Errorf("save reset grant: %w", err)
	}

	s.publish(ctx, audit.Event{Type: audit.EventOtpVerified, UserID: user.ID, At: now, Meta: map[string]string{"channel": string(channel)}})
	return ResetTicket{Token: token, Channel: channel, ExpiresAt: expiresAt}, nil
}

// ResetPassword spends a reset ticket. Confirmation and policy are checked
// before the ticket is consumed so a typo does not burn it, and the ticket
// is released again when the password could not be stored.
func (s *ResetService) ResetPassword(ctx context.Context, resetToken string, newPassword string, confirm string) error {
	if err := s.checkNewPassword(newPassword, confirm); err != nil {
		return err
	}
	if resetToken == "" {
		return ErrResetGrantNotFound
	}

	tokenHash := security.HashOpaqueToken(resetToken)
	grant, err := s.grants.Consume(ctx, tokenHash, s.now())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrGrantNotFound):
			return ErrResetGrantNotFound
		case errors.Is(err, repository.ErrGrantConsumed):
			return ErrAlreadyConsumed
		case errors.Is(err, repository.ErrGrantExpired):
			return ErrExpired
		}
		return fmt.Errorf("consume reset grant: %w", err)
	}

	if err := s.setPassword(ctx, grant.UserID, newPassword, models.ReasonPasswordReset); err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			if relErr := s.grants.Release(ctx, tokenHash); relErr != nil {
				s.log.Warn().Err(relErr).Str("user_id", grant.UserID).Msg("release reset grant failed")
			}
		}
		return err
	}

	s.publish(ctx, audit.Event{Type: audit.EventPasswordReset, UserID: grant.UserID, At: s.now(), Meta: map[string]string{"channel": string(grant.Channel)}})
	return nil
}

// ChangePassword is the authenticated variant: the current password stands
// in for the OTP.
func (s *ResetService) ChangePassword(ctx context.Context, userID string, current string, newPassword string, confirm string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}

	ok, err := security.VerifyPassword(current, user.PasswordHash)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("verify current password failed")
	}
	if !ok {
		return ErrInvalidCredentials
	}

	if err := s.checkNewPassword(newPassword, confirm); err != nil {
		return err
	}

	if err := s.setPassword(ctx, userID, newPassword, models.ReasonPasswordChange); err != nil {
		return err
	}

	s.publish(ctx, audit.Event{Type: audit.EventPasswordChanged, UserID: userID, At: s.now()})
	return nil
}

func (s *ResetService) checkNewPassword(newPassword, confirm string) error {
	if newPassword != confirm {
		return ErrPasswordConfirmMismatch
	}
	if !s.policy.Allows(newPassword) {
		return &PolicyError{Message: s.policy.Message()}
	}
	return nil
}

// setPassword stores the new hash and ends every active session of the user.
func (s *ResetService) setPassword(ctx context.Context, userID, password, reason string) error {
	hash, err := security.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}

	ended, err := s.sessions.InvalidateAllUserSessions(ctx, userID, reason)
	if err != nil {
		return fmt.Errorf("invalidate sessions: %w", err)
	}
	s.log.Info().Str("user_id", userID).Str("reason", reason).Int("sessions_ended", ended).Msg("password updated")
	return nil
}

func (s *ResetService) identify(ctx context.Context, userName string, channel models.OtpChannel, contactOrEmail string) (models.User, string, error) {
	if !channel.Valid() {
		return models.User{}, "", fmt.Errorf("%w: unknown channel %q", ErrInvalidInput, channel)
	}
	user, err := s.activeUser(ctx, userName)
	if err != nil {
		return models.User{}, "", err
	}

	provided := strings.TrimSpace(contactOrEmail)
	switch channel {
	case models.OtpChannelSMS:
		stored := security.DigitsOnly(user.ContactNo)
		if stored == "" || stored != security.DigitsOnly(provided) {
			return models.User{}, "", ErrContactMismatch
		}
		return user, security.MaskContact(user.ContactNo), nil
	default:
		stored := strings.TrimSpace(user.Email)
		if stored == "" || !strings.EqualFold(stored, provided) {
			return models.User{}, "", ErrEmailMismatch
		}
		return user, security.MaskEmail(user.Email), nil
	}
}

func (s *ResetService) activeUser(ctx context.Context, userName string) (models.User, error) {
	userName = strings.TrimSpace(userName)
	if userName == "" {
		return models.User{}, ErrUserNotFound
	}
	user, err := s.users.FindByUsername(ctx, userName)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	if !user.Active() {
		return models.User{}, ErrUserNotFound
	}
	return user, nil
}

func (s *ResetService) checkRequestRate(ctx context.Context, userID string) error {
	if s.cfg.RequestLimit <= 0 || s.cfg.RequestWindow <= 0 {
		return nil
	}
	count, err := s.otpStore.CountSince(ctx, userID, s.now().Add(-s.cfg.RequestWindow))
	if err != nil {
		return fmt.Errorf("count otp requests: %w", err)
	}
	if count >= s.cfg.RequestLimit {
		return ErrTooManyRequests
	}
	return nil
}

// deliver bounds the send with the delivery timeout. No store transaction
// is open at this point.
func (s *ResetService) deliver(ctx context.Context, user models.User, channel models.OtpChannel, code string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	minutes := s.cfg.ExpiryMinutes
	if channel == models.OtpChannelSMS {
		return s.sms.SendSMS(ctx, user.ContactNo, notify.OtpSMS(code, minutes))
	}
	return s.email.SendEmail(ctx, user.Email, notify.OtpEmailSubject, notify.OtpEmail(user.Username, code, minutes))
}

func (s *ResetService) publish(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("event", event.Type).Msg("audit publish failed")
	}
}

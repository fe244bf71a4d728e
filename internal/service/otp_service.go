package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"hcadmin/internal/config"
	"hcadmin/internal/ids"
	"hcadmin/internal/models"
	"hcadmin/internal/repository"
	"hcadmin/internal/security"
)

// OtpService issues and verifies one-time codes. Only the latest record of a
// (user, channel) pair is ever considered, and channels never affect each other.
type OtpService struct {
	otps   OtpStore
	secret string
	digits int
	now    Clock
	log    zerolog.Logger
}

func NewOtpService(otps OtpStore, cfg config.OTPConfig, log zerolog.Logger) *OtpService {
	digits := cfg.Digits
	if digits == 0 {
		digits = 6
	}
	return &OtpService{
		otps:   otps,
		secret: cfg.Secret,
		digits: digits,
		now:    systemClock,
		log:    log,
	}
}

// IssueOtp stores a fresh code for (userID, channel) and returns it in clear.
// Any earlier live code for the pair is superseded in the same store call.
func (s *OtpService) IssueOtp(ctx context.Context, userID string, channel models.OtpChannel, expiry time.Duration) (string, error) {
	if !channel.Valid() {
		return "", fmt.Errorf("%w: unknown channel %q", ErrInvalidInput, channel)
	}
	if expiry <= 0 {
		return "", fmt.Errorf("%w: otp expiry must be positive", ErrInvalidInput)
	}

	code, err := security.GenerateOtpCode(s.digits)
	if err != nil {
		return "", err
	}

	now := s.now()
	if err := s.otps.Replace(ctx, repository.ReplaceOtpParams{
		ID:        ids.New(),
		UserID:    userID,
		Channel:   channel,
		CodeHash:  s.hash(userID, channel, code),
		CreatedAt: now,
		ExpiresAt: now.Add(expiry),
	}); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}

	return code, nil
}

// VerifyOtp checks, in order: presence, consumption, expiry, code. Expiry is
// evaluated before the code so a correct late code reports ErrExpired.
func (s *OtpService) VerifyOtp(ctx context.Context, userID string, channel models.OtpChannel, code string) error {
	record, err := s.otps.FindLatest(ctx, userID, channel)
	if err != nil {
		if errors.Is(err, repository.ErrOtpNotFound) {
			return ErrOtpNotFound
		}
		return fmt.Errorf("find otp: %w", err)
	}

	if record.Consumed() {
		return ErrAlreadyConsumed
	}
	now := s.now()
	if record.SupersededAt != nil || !now.Before(record.ExpiresAt) {
		return ErrExpired
	}
	if !security.OtpHashEqual(record.CodeHash, s.hash(userID, channel, code)) {
		return ErrCodeMismatch
	}

	if err := s.otps.MarkConsumed(ctx, record.ID, now); err != nil {
		if errors.Is(err, repository.ErrOtpAlreadyConsumed) {
			return ErrAlreadyConsumed
		}
		return fmt.Errorf("consume otp: %w", err)
	}
	return nil
}

func (s *OtpService) hash(userID string, channel models.OtpChannel, code string) []byte {
	return security.HashOtp(s.secret, userID, string(channel), code)
}

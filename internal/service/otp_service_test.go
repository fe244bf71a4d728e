package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hcadmin/internal/models"
)

func TestIssueOtpReturnsConfiguredDigits(t *testing.T) {
	h := newHarness(t)

	code, err := h.otps.IssueOtp(context.Background(), "user-1", models.OtpChannelSMS, 5*time.Minute)
	require.NoError(t, err)
	assert.Regexp(t, `^\d{6}$`, code)
}

func TestIssueOtpRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.otps.IssueOtp(ctx, "user-1", models.OtpChannel("fax"), 5*time.Minute)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = h.otps.IssueOtp(ctx, "user-1", models.OtpChannelSMS, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestReissueSupersedesPreviousCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.otps.IssueOtp(ctx, "user-1", models.OtpChannelSMS, 5*time.Minute)
	require.NoError(t, err)
	h.clock.Advance(time.Second)
	second, err := h.otps.IssueOtp(ctx, "user-1", models.OtpChannelSMS, 5*time.Minute)
	require.NoError(t, err)

	if first != second {
		assert.ErrorIs(t, h.otps.VerifyOtp(ctx, "user-1", models.OtpChannelSMS, first), ErrCodeMismatch)
	}
	assert.NoError(t, h.otps.VerifyOtp(ctx, "user-1", models.OtpChannelSMS, second))
}

func TestVerifyOtpAfterExpiryReportsExpired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	code, err := h.otps.IssueOtp(ctx, "user-1", models.OtpChannelSMS, 5*time.Minute)
	require.NoError(t, err)

	h.clock.Advance(6 * time.Minute)
	assert.ErrorIs(t, h.otps.VerifyOtp(ctx, "user-1", models.OtpChannelSMS, code), ErrExpired)
	// a wrong code after expiry is also expired, never a mismatch
	assert.ErrorIs(t, h.otps.VerifyOtp(ctx, "user-1", models.OtpChannelSMS, "000000x"), ErrExpired)
}

func TestVerifyOtpExactlyAtExpiryIsExpired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	code, err := h.otps.IssueOtp(ctx, "user-1", models.OtpChannelEmail, 5*time.Minute)
	require.NoError(t, err)

	h.clock.Advance(5 * time.Minute)
	assert.ErrorIs(t, h.otps.VerifyOtp(ctx, "user-1", models.OtpChannelEmail, code), ErrExpired)
}

func TestVerifyOtpTwiceReportsAlreadyConsumed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	code, err := h.otps.IssueOtp(ctx, "user-1", models.OtpChannelSMS, 5*time.Minute)
	require.NoError(t, err)

	require.NoError(t, h.otps.VerifyOtp(ctx, "user-1", models.OtpChannelSMS, code))
	assert.ErrorIs(t, h.otps.VerifyOtp(ctx, "user-1", models.OtpChannelSMS, code), ErrAlreadyConsumed)
}

func TestVerifyOtpWithoutRecord(t *testing.T) {
	h := newHarness(t)

	err := h.otps.VerifyOtp(context.Background(), "nobody", models.OtpChannelSMS, "123456")
	assert.ErrorIs(t, err, ErrOtpNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOtpChannelsAreIndependent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	smsCode, err := h.otps.IssueOtp(ctx, "user-1", models.OtpChannelSMS, 5*time.Minute)
	require.NoError(t, err)
	emailCode, err := h.otps.IssueOtp(ctx, "user-1", models.OtpChannelEmail, 5*time.Minute)
	require.NoError(t, err)

	assert.NoError(t, h.otps.VerifyOtp(ctx, "user-1", models.OtpChannelSMS, smsCode))
	assert.NoError(t, h.otps.VerifyOtp(ctx, "user-1", models.OtpChannelEmail, emailCode))
}

func TestConcurrentVerifyConsumesOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	code, err := h.otps.IssueOtp(ctx, "user-1", models.OtpChannelSMS, 5*time.Minute)
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- h.otps.VerifyOtp(ctx, "user-1", models.OtpChannelSMS, code)
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyConsumed)
	}
	assert.Equal(t, 1, ok)
}

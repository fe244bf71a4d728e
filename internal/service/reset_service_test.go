package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hcadmin/internal/audit"
	"hcadmin/internal/models"
	"hcadmin/internal/notify"
	"hcadmin/internal/security"
)

const newPassword = "N3w!Passw0rd"

func TestPasswordResetBySMS(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.seedUser(t, "alice", "9812345610", "alice@example.com", "0ld!Passw0rd")

	_, firstToken := h.login(t, alice.ID)
	_, secondToken := h.login(t, alice.ID)

	hint, err := h.reset.ValidateUserForReset(ctx, "alice", models.OtpChannelSMS, "9812345610")
	require.NoError(t, err)
	assert.Equal(t, "98******10", hint)

	dispatch, err := h.reset.RequestOtp(ctx, "alice", models.OtpChannelSMS, "9812345610")
	require.NoError(t, err)
	assert.Equal(t, "98******10", dispatch.Hint)
	assert.Equal(t, h.clock.Now().Add(5*time.Minute), dispatch.ExpiresAt)

	require.Len(t, h.sms.sent, 1)
	assert.Equal(t, "9812345610", h.sms.sent[0].To)
	code := h.sms.lastCode(t)
	assert.Regexp(t, `^\d{6}$`, code)
	assert.Equal(t, notify.OtpSMS(code, 5), h.sms.sent[0].Body)

	ticket, err := h.reset.VerifyOtp(ctx, "alice", models.OtpChannelSMS, code)
	require.NoError(t, err)
	assert.NotEmpty(t, ticket.Token)

	require.NoError(t, h.reset.ResetPassword(ctx, ticket.Token, newPassword, newPassword))

	stored, err := h.store.Users().GetByID(ctx, alice.ID)
	require.NoError(t, err)
	ok, err := security.VerifyPassword(newPassword, stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, token := range []string{firstToken, secondToken} {
		_, err := h.sessions.ValidateRefreshToken(ctx, token)
		assert.ErrorIs(t, err, ErrSessionInactive)
	}
	sessions, err := h.sessions.ListSessions(ctx, alice.ID)
	require.NoError(t, err)
	for _, s := range sessions {
		assert.Equal(t, models.SessionStatusRevoked, s.Status)
		assert.Equal(t, models.ReasonPasswordReset, s.LogoutReason)
	}
	assert.Equal(t, 1, h.events.count(audit.EventPasswordReset))
}

func TestPasswordResetByEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedUser(t, "bob", "9000000001", "Bob.Smith@example.com", "0ld!Passw0rd")

	dispatch, err := h.reset.RequestOtp(ctx, "BOB", models.OtpChannelEmail, " bob.smith@EXAMPLE.com ")
	require.NoError(t, err)
	assert.Equal(t, "Bo***@example.com", dispatch.Hint)
	assert.Empty(t, h.sms.sent)

	ticket, err := h.reset.VerifyOtp(ctx, "bob", models.OtpChannelEmail, h.email.lastCode(t))
	require.NoError(t, err)
	require.NoError(t, h.reset.ResetPassword(ctx, ticket.Token, newPassword, newPassword))
}

func TestIdentifyFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedUser(t, "alice", "98123-45610", "alice@example.com", "0ld!Passw0rd")
	h.seedUser(t, "nomail", "9000000002", "", "0ld!Passw0rd")
	inactive := h.seedUser(t, "carol", "9000000003", "carol@example.com", "0ld!Passw0rd")
	require.NoError(t, h.store.Users().UpdateStatus(ctx, inactive.ID, models.UserStatusInactive))

	tests := []struct {
		name    string
		user    string
		channel models.OtpChannel
		value   string
		want    error
	}{
		{"unknown user", "mallory", models.OtpChannelSMS, "9812345610", ErrUserNotFound},
		{"inactive user", "carol", models.OtpChannelSMS, "9000000003", ErrUserNotFound},
		{"wrong contact", "alice", models.OtpChannelSMS, "9812345611", ErrContactMismatch},
		{"wrong email", "alice", models.OtpChannelEmail, "bob@example.com", ErrEmailMismatch},
		{"no stored email", "nomail", models.OtpChannelEmail, "", ErrEmailMismatch},
		{"bad channel", "alice", models.OtpChannel("fax"), "x", ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.reset.RequestOtp(ctx, tt.user, tt.channel, tt.value)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, h.sms.sent)
	assert.Empty(t, h.email.sent)

	// punctuation in the stored number is ignored
	hint, err := h.reset.ValidateUserForReset(ctx, "alice", models.OtpChannelSMS, "98123 45610")
	require.NoError(t, err)
	assert.Equal(t, "98******10", hint)
}

func TestDeliveryFailureKeepsCodeValid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.seedUser(t, "alice", "9812345610", "alice@example.com", "0ld!Passw0rd")

	h.sms.fail = errGatewayDown
	dispatch, err := h.reset.RequestOtp(ctx, "alice", models.OtpChannelSMS, "9812345610")
	assert.ErrorIs(t, err, ErrDeliveryFailed)
	assert.Equal(t, "98******10", dispatch.Hint)
	assert.Equal(t, 1, h.events.count(audit.EventOtpDeliveryFail))

	record, err := h.store.Otps().FindLatest(ctx, alice.ID, models.OtpChannelSMS)
	require.NoError(t, err)
	assert.False(t, record.Consumed())
	assert.Nil(t, record.SupersededAt)
}

func TestVerifyOtpThroughResetFlowAfterExpiry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedUser(t, "alice", "9812345610", "alice@example.com", "0ld!Passw0rd")

	_, err := h.reset.RequestOtp(ctx, "alice", models.OtpChannelSMS, "9812345610")
	require.NoError(t, err)

	h.clock.Advance(6 * time.Minute)
	_, err = h.reset.VerifyOtp(ctx, "alice", models.OtpChannelSMS, h.sms.lastCode(t))
	assert.ErrorIs(t, err, ErrExpired)
	assert.Equal(t, ReasonExpired, Classify(err))
}

func TestResetChecksPasswordBeforeSpendingGrant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedUser(t, "alice", "9812345610", "alice@example.com", "0ld!Passw0rd")

	_, err := h.reset.RequestOtp(ctx, "alice", models.OtpChannelSMS, "9812345610")
	require.NoError(t, err)
	ticket, err := h.reset.VerifyOtp(ctx, "alice", models.OtpChannelSMS, h.sms.lastCode(t))
	require.NoError(t, err)

	err = h.reset.ResetPassword(ctx, ticket.Token, newPassword, "something-else")
	assert.ErrorIs(t, err, ErrPasswordConfirmMismatch)

	err = h.reset.ResetPassword(ctx, ticket.Token, "short", "short")
	var policyErr *PolicyError
	require.ErrorAs(t, err, &policyErr)
	assert.ErrorIs(t, err, ErrPolicyViolation)
	assert.Contains(t, policyErr.Message, "8-64")

	require.NoError(t, h.reset.ResetPassword(ctx, ticket.Token, newPassword, newPassword))
	assert.ErrorIs(t, h.reset.ResetPassword(ctx, ticket.Token, newPassword, newPassword), ErrAlreadyConsumed)
}

// brokenPasswordWrites fails UpdatePasswordHash while err is set.
type brokenPasswordWrites struct {
	UserStore
	err error
}

func (u *brokenPasswordWrites) UpdatePasswordHash(ctx context.Context, id string, hash []byte) error {
	if u.err != nil {
		return u.err
	}
	return u.UserStore.UpdatePasswordHash(ctx, id, hash)
}

func TestResetKeepsGrantWhenPasswordWriteFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedUser(t, "alice", "9812345610", "alice@example.com", "0ld!Passw0rd")

	users := &brokenPasswordWrites{UserStore: h.store.Users(), err: errors.New("connection reset")}
	h.reset.users = users

	_, err := h.reset.RequestOtp(ctx, "alice", models.OtpChannelSMS, "9812345610")
	require.NoError(t, err)
	ticket, err := h.reset.VerifyOtp(ctx, "alice", models.OtpChannelSMS, h.sms.lastCode(t))
	require.NoError(t, err)

	err = h.reset.ResetPassword(ctx, ticket.Token, newPassword, newPassword)
	require.Error(t, err)
	assert.Equal(t, ReasonInternal, Classify(err))

	users.err = nil
	require.NoError(t, h.reset.ResetPassword(ctx, ticket.Token, newPassword, newPassword))
	assert.ErrorIs(t, h.reset.ResetPassword(ctx, ticket.Token, newPassword, newPassword), ErrAlreadyConsumed)
	assert.Equal(t, 1, h.events.count(audit.EventPasswordReset))
}

func TestResetGrantExpires(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedUser(t, "alice", "9812345610", "alice@example.com", "0ld!Passw0rd")

	_, err := h.reset.RequestOtp(ctx, "alice", models.OtpChannelSMS, "9812345610")
	require.NoError(t, err)
	ticket, err := h.reset.VerifyOtp(ctx, "alice", models.OtpChannelSMS, h.sms.lastCode(t))
	require.NoError(t, err)

	h.clock.Advance(10 * time.Minute)
	assert.ErrorIs(t, h.reset.ResetPassword(ctx, ticket.Token, newPassword, newPassword), ErrExpired)
	assert.ErrorIs(t, h.reset.ResetPassword(ctx, "unknown", newPassword, newPassword), ErrResetGrantNotFound)
}

func TestRequestOtpRateLimit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedUser(t, "alice", "9812345610", "alice@example.com", "0ld!Passw0rd")
	h.reset.cfg.RequestLimit = 2
	h.reset.cfg.RequestWindow = 10 * time.Minute

	for i := 0; i < 2; i++ {
		_, err := h.reset.RequestOtp(ctx, "alice", models.OtpChannelSMS, "9812345610")
		require.NoError(t, err)
		h.clock.Advance(time.Minute)
	}
	_, err := h.reset.RequestOtp(ctx, "alice", models.OtpChannelSMS, "9812345610")
	assert.ErrorIs(t, err, ErrTooManyRequests)

	h.clock.Advance(10 * time.Minute)
	_, err = h.reset.RequestOtp(ctx, "alice", models.OtpChannelSMS, "9812345610")
	assert.NoError(t, err)
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.seedUser(t, "alice", "9812345610", "alice@example.com", "0ld!Passw0rd")
	_, token := h.login(t, alice.ID)

	err := h.reset.ChangePassword(ctx, alice.ID, "wrong", newPassword, newPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = h.reset.ChangePassword(ctx, alice.ID, "0ld!Passw0rd", "weak", "weak")
	assert.ErrorIs(t, err, ErrPolicyViolation)

	require.NoError(t, h.reset.ChangePassword(ctx, alice.ID, "0ld!Passw0rd", newPassword, newPassword))

	_, err = h.sessions.ValidateRefreshToken(ctx, token)
	assert.ErrorIs(t, err, ErrSessionInactive)
	assert.Equal(t, 1, h.events.count(audit.EventPasswordChanged))
}

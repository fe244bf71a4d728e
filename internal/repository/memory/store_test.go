package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hcadmin/internal/models"
	"hcadmin/internal/repository"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func TestOtpReplaceSupersedesOpenCodes(t *testing.T) {
	ctx := context.Background()
	otps := NewStore().Otps()

	require.NoError(t, otps.Replace(ctx, repository.ReplaceOtpParams{ID: "a", UserID: "u1", Channel: models.OtpChannelSMS, CreatedAt: t0, ExpiresAt: t0.Add(5 * time.Minute)}))
	require.NoError(t, otps.Replace(ctx, repository.ReplaceOtpParams{ID: "e", UserID: "u1", Channel: models.OtpChannelEmail, CreatedAt: t0, ExpiresAt: t0.Add(5 * time.Minute)}))
	require.NoError(t, otps.Replace(ctx, repository.ReplaceOtpParams{ID: "b", UserID: "u1", Channel: models.OtpChannelSMS, CreatedAt: t0.Add(time.Minute), ExpiresAt: t0.Add(6 * time.Minute)}))

	latest, err := otps.FindLatest(ctx, "u1", models.OtpChannelSMS)
	require.NoError(t, err)
	assert.Equal(t, "b", latest.ID)

	assert.ErrorIs(t, otps.MarkConsumed(ctx, "a", t0), repository.ErrOtpAlreadyConsumed)
	require.NoError(t, otps.MarkConsumed(ctx, "e", t0))
	require.NoError(t, otps.MarkConsumed(ctx, "b", t0))
	assert.ErrorIs(t, otps.MarkConsumed(ctx, "b", t0), repository.ErrOtpAlreadyConsumed)

	n, err := otps.CountSince(ctx, "u1", t0.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = otps.FindLatest(ctx, "u2", models.OtpChannelSMS)
	assert.ErrorIs(t, err, repository.ErrOtpNotFound)
}

func TestOtpFindLatestPrefersLiveRecord(t *testing.T) {
	ctx := context.Background()
	otps := NewStore().Otps()

	// the second issue was stamped first but committed last
	require.NoError(t, otps.Replace(ctx, repository.ReplaceOtpParams{ID: "late", UserID: "u1", Channel: models.OtpChannelSMS, CreatedAt: t0.Add(time.Second), ExpiresAt: t0.Add(5 * time.Minute)}))
	require.NoError(t, otps.Replace(ctx, repository.ReplaceOtpParams{ID: "live", UserID: "u1", Channel: models.OtpChannelSMS, CreatedAt: t0, ExpiresAt: t0.Add(5 * time.Minute)}))

	latest, err := otps.FindLatest(ctx, "u1", models.OtpChannelSMS)
	require.NoError(t, err)
	assert.Equal(t, "live", latest.ID)

	require.NoError(t, otps.MarkConsumed(ctx, "live", t0))
	latest, err = otps.FindLatest(ctx, "u1", models.OtpChannelSMS)
	require.NoError(t, err)
	assert.Equal(t, "live", latest.ID, "a consumed code outranks an older superseded one")
	assert.True(t, latest.Consumed())
}

func TestSessionStatusOnlyLeavesActive(t *testing.T) {
	ctx := context.Background()
	sessions := NewStore().Sessions()
	require.NoError(t, sessions.Create(ctx, models.LoginSession{ID: "s1", UserID: "u1", Status: models.SessionStatusActive, LastActivityAt: t0}))
	require.NoError(t, sessions.Create(ctx, models.LoginSession{ID: "s2", UserID: "u1", Status: models.SessionStatusActive, LastActivityAt: t0.Add(time.Hour)}))

	update := repository.UpdateSessionStatusParams{SessionID: "s1", Status: models.SessionStatusLoggedOut, Reason: "logout", At: t0}
	require.NoError(t, sessions.UpdateStatus(ctx, update))
	assert.ErrorIs(t, sessions.UpdateStatus(ctx, update), repository.ErrSessionNotActive)
	assert.ErrorIs(t, sessions.Touch(ctx, repository.TouchSessionParams{SessionID: "s1", At: t0}), repository.ErrSessionNotActive)

	active, err := sessions.ListActiveByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "s2", active[0].ID)

	all, err := sessions.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	idle, err := sessions.ListIdle(ctx, t0.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, idle, 1)
	assert.Equal(t, "s2", idle[0].ID)
}

func TestRefreshRotateOnce(t *testing.T) {
	ctx := context.Background()
	tokens := NewStore().RefreshTokens()
	require.NoError(t, tokens.Create(ctx, models.RefreshToken{ID: "t1", TokenHash: []byte{1}, SessionID: "s1"}))

	rotate := repository.RotateRefreshTokenParams{
		OldHash:     []byte{1},
		Replacement: models.RefreshToken{ID: "t2", TokenHash: []byte{2}, SessionID: "s1"},
		At:          t0,
	}
	require.NoError(t, tokens.Rotate(ctx, rotate))
	assert.ErrorIs(t, tokens.Rotate(ctx, rotate), repository.ErrRefreshTokenRevoked)

	old, err := tokens.FindByHash(ctx, []byte{1})
	require.NoError(t, err)
	require.NotNil(t, old.ReplacedBy)
	assert.Equal(t, "t2", *old.ReplacedBy)

	n, err := tokens.RevokeBySession(ctx, "s1", t0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rotate.OldHash = []byte{9}
	assert.ErrorIs(t, tokens.Rotate(ctx, rotate), repository.ErrRefreshTokenNotFound)
}

func TestGrantConsume(t *testing.T) {
	ctx := context.Background()
	grants := NewGrantStore()
	require.NoError(t, grants.Save(ctx, []byte("h1"), models.ResetGrant{UserID: "u1", ExpiresAt: t0.Add(10 * time.Minute)}))
	require.NoError(t, grants.Save(ctx, []byte("h2"), models.ResetGrant{UserID: "u1", ExpiresAt: t0}))

	grant, err := grants.Consume(ctx, []byte("h1"), t0)
	require.NoError(t, err)
	assert.Equal(t, "u1", grant.UserID)

	_, err = grants.Consume(ctx, []byte("h1"), t0)
	assert.ErrorIs(t, err, repository.ErrGrantConsumed)

	require.NoError(t, grants.Release(ctx, []byte("h1")))
	_, err = grants.Consume(ctx, []byte("h1"), t0)
	require.NoError(t, err)
	require.NoError(t, grants.Release(ctx, []byte("nope")))

	_, err = grants.Consume(ctx, []byte("h2"), t0)
	assert.ErrorIs(t, err, repository.ErrGrantExpired)

	_, err = grants.Consume(ctx, []byte("nope"), t0)
	assert.ErrorIs(t, err, repository.ErrGrantNotFound)
}

func TestUsernameUniqueIgnoresCase(t *testing.T) {
	ctx := context.Background()
	users := NewStore().Users()
	require.NoError(t, users.Create(ctx, models.User{ID: "u1", Username: "Alice"}))
	assert.ErrorIs(t, users.Create(ctx, models.User{ID: "u2", Username: "alice"}), repository.ErrUsernameTaken)

	found, err := users.FindByUsername(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, "u1", found.ID)
}

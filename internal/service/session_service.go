package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"hcadmin/internal/audit"
	"hcadmin/internal/ids"
	"hcadmin/internal/models"
	"hcadmin/internal/repository"
	"hcadmin/internal/security"
)

const idleSweepBatch = 200

// TokenInfo identifies the session a refresh token belongs to.
type TokenInfo struct {
	TokenID   string
	SessionID string
	UserID    string
	ExpiresAt time.Time
}

type SessionService struct {
	sessions   SessionStore
	tokens     RefreshTokenStore
	audit      audit.Publisher
	refreshTTL time.Duration
	now        Clock
	log        zerolog.Logger
}

func NewSessionService(sessions SessionStore, tokens RefreshTokenStore, publisher audit.Publisher, refreshTTL time.Duration, log zerolog.Logger) *SessionService {
	return &SessionService{
		sessions:   sessions,
		tokens:     tokens,
		audit:      publisher,
		refreshTTL: refreshTTL,
		now:        systemClock,
		log:        log,
	}
}

func (s *SessionService) CreateSession(ctx context.Context, userID, branchID string, client ClientInfo) (models.LoginSession, error) {
	now := s.now()
	agent := describeAgent(client.UserAgent)
	session := models.LoginSession{
		ID:             ids.New(),
		UserID:         userID,
		BranchID:       branchID,
		IPAddress:      client.IPAddress,
		UserAgent:      client.UserAgent,
		Browser:        agent.Browser,
		OS:             agent.OS,
		DeviceType:     agent.DeviceType,
		Status:         models.SessionStatusActive,
		LoginAt:        now,
		LastActivityAt: now,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return models.LoginSession{}, fmt.Errorf("create session: %w", err)
	}

	s.publish(ctx, audit.Event{
		Type:      audit.EventSessionCreated,
		UserID:    userID,
		SessionID: session.ID,
		At:        now,
		Meta:      map[string]string{"ip": client.IPAddress, "device": agent.DeviceType},
	})
	return session, nil
}

// IssueRefreshToken returns the opaque token; only its hash is stored.
func (s *SessionService) IssueRefreshToken(ctx context.Context, userID, sessionID string, ttl time.Duration) (string, error) {
	token, hash, err := security.GenerateOpaqueToken(security.RefreshTokenBytes)
	if err != nil {
		return "", err
	}

	now := s.now()
	if err := s.tokens.Create(ctx, models.RefreshToken{
		ID:        ids.New(),
		TokenHash: hash,
		SessionID: sessionID,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return token, nil
}

// ValidateRefreshToken reports ErrRefreshTokenNotFound, ErrSessionInactive,
// ErrRevoked or ErrExpired. Session state is checked first: ending a session
// also revokes its tokens, and callers need to see why.
func (s *SessionService) ValidateRefreshToken(ctx context.Context, token string) (TokenInfo, error) {
	record, err := s.validateToken(ctx, token)
	if err != nil {
		return TokenInfo{}, err
	}
	return tokenInfo(record), nil
}

func (s *SessionService) validateToken(ctx context.Context, token string) (models.RefreshToken, error) {
	record, err := s.lookupToken(ctx, token)
	if err != nil {
		return models.RefreshToken{}, err
	}

	session, err := s.sessions.GetByID(ctx, record.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return record, ErrSessionInactive
		}
		return record, fmt.Errorf("load session: %w", err)
	}
	if !session.Active() {
		return record, ErrSessionInactive
	}
	if record.Revoked() {
		return record, ErrRevoked
	}
	if !s.now().Before(record.ExpiresAt) {
		return record, ErrExpired
	}
	return record, nil
}

// RotateRefreshToken exchanges a valid token for a new one on the same
// session. The store revokes the old token only if it is still unrevoked,
// so of two concurrent rotations exactly one succeeds.
func (s *SessionService) RotateRefreshToken(ctx context.Context, token string) (string, TokenInfo, error) {
	record, err := s.validateToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrRevoked) {
			s.publish(ctx, audit.Event{Type: audit.EventTokenReplay, UserID: record.UserID, SessionID: record.SessionID, At: s.now()})
		}
		return "", TokenInfo{}, err
	}
	info := tokenInfo(record)

	newToken, newHash, err := security.GenerateOpaqueToken(security.RefreshTokenBytes)
	if err != nil {
		return "", TokenInfo{}, err
	}

	now := s.now()
	replacement := models.RefreshToken{
		ID:        ids.New(),
		TokenHash: newHash,
		SessionID: info.SessionID,
		UserID:    info.UserID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.refreshTTL),
	}

	if err := s.tokens.Rotate(ctx, repository.RotateRefreshTokenParams{
		OldHash:     security.HashOpaqueToken(token),
		Replacement: replacement,
		At:          now,
	}); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenRevoked) {
			s.publish(ctx, audit.Event{Type: audit.EventTokenReplay, UserID: info.UserID, SessionID: info.SessionID, At: now})
			return "", TokenInfo{}, ErrRevoked
		}
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return "", TokenInfo{}, ErrRefreshTokenNotFound
		}
		return "", TokenInfo{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	s.publish(ctx, audit.Event{Type: audit.EventTokenRotated, UserID: info.UserID, SessionID: info.SessionID, At: now})

	return newToken, tokenInfo(replacement), nil
}

// InvalidateSession ends an active session and revokes its refresh tokens.
// A session that is already inactive yields ErrSessionInactive.
func (s *SessionService) InvalidateSession(ctx context.Context, sessionID string, status models.SessionStatus, reason string) error {
	if status == models.SessionStatusActive || status == "" {
		return fmt.Errorf("%w: invalid target status %q", ErrInvalidInput, status)
	}

	now := s.now()
	if err := s.sessions.UpdateStatus(ctx, repository.UpdateSessionStatusParams{
		SessionID: sessionID,
		Status:    status,
		Reason:    reason,
		At:        now,
	}); err != nil {
		switch {
		case errors.Is(err, repository.ErrSessionNotFound):
			return ErrSessionNotFound
		case errors.Is(err, repository.ErrSessionNotActive):
			return ErrSessionInactive
		}
		return fmt.Errorf("update session status: %w", err)
	}

	revoked, err := s.tokens.RevokeBySession(ctx, sessionID, now)
	if err != nil {
		// the session is already inactive, so its tokens no longer validate
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("revoke session tokens failed")
	}

	s.publish(ctx, audit.Event{
		Type:      audit.EventSessionEnded,
		SessionID: sessionID,
		Reason:    reason,
		At:        now,
		Meta:      map[string]string{"status": string(status), "revoked_tokens": fmt.Sprint(revoked)},
	})
	return nil
}

// InvalidateAllUserSessions revokes every session active at call time and
// returns how many it ended. Sessions created concurrently are not affected.
func (s *SessionService) InvalidateAllUserSessions(ctx context.Context, userID string, reason string) (int, error) {
	active, err := s.sessions.ListActiveByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list active sessions: %w", err)
	}

	count := 0
	for _, session := range active {
		err := s.InvalidateSession(ctx, session.ID, models.SessionStatusRevoked, reason)
		if errors.Is(err, ErrSessionInactive) {
			continue
		}
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// EnforceSessionLimit revokes the least recently active sessions beyond limit.
func (s *SessionService) EnforceSessionLimit(ctx context.Context, userID string, limit int) (int, error) {
	if limit <= 0 {
		return 0, nil
	}
	active, err := s.sessions.ListActiveByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list active sessions: %w", err)
	}
	if len(active) <= limit {
		return 0, nil
	}

	count := 0
	for _, session := range active[limit:] {
		err := s.InvalidateSession(ctx, session.ID, models.SessionStatusRevoked, models.ReasonSessionLimit)
		if errors.Is(err, ErrSessionInactive) {
			continue
		}
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (s *SessionService) TouchSession(ctx context.Context, sessionID string, client ClientInfo) error {
	err := s.sessions.Touch(ctx, repository.TouchSessionParams{
		SessionID: sessionID,
		At:        s.now(),
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrSessionNotFound):
		return ErrSessionNotFound
	case errors.Is(err, repository.ErrSessionNotActive):
		return ErrSessionInactive
	}
	return fmt.Errorf("touch session: %w", err)
}

func (s *SessionService) ValidateSession(ctx context.Context, sessionID string) (models.LoginSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return models.LoginSession{}, ErrSessionNotFound
		}
		return models.LoginSession{}, fmt.Errorf("load session: %w", err)
	}
	if !session.Active() {
		return models.LoginSession{}, ErrSessionInactive
	}
	return session, nil
}

func (s *SessionService) ListSessions(ctx context.Context, userID string) ([]models.LoginSession, error) {
	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// ExpireIdleSessions marks sessions without activity for longer than idle
// as expired. It returns the number of sessions it ended.
func (s *SessionService) ExpireIdleSessions(ctx context.Context, idle time.Duration) (int, error) {
	if idle <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-idle)

	total := 0
	for {
		batch, err := s.sessions.ListIdle(ctx, cutoff, idleSweepBatch)
		if err != nil {
			return total, fmt.Errorf("list idle sessions: %w", err)
		}
		if len(batch) == 0 {
			return total, nil
		}

		ended := 0
		for _, session := range batch {
			err := s.InvalidateSession(ctx, session.ID, models.SessionStatusExpired, models.ReasonIdleTimeout)
			if errors.Is(err, ErrSessionInactive) {
				continue
			}
			if err != nil {
				return total, err
			}
			ended++
		}
		total += ended
		if ended == 0 || len(batch) < idleSweepBatch {
			return total, nil
		}
	}
}

func (s *SessionService) lookupToken(ctx context.Context, token string) (models.RefreshToken, error) {
	if token == "" {
		return models.RefreshToken{}, ErrRefreshTokenNotFound
	}
	record, err := s.tokens.FindByHash(ctx, security.HashOpaqueToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return models.RefreshToken{}, ErrRefreshTokenNotFound
		}
		return models.RefreshToken{}, fmt.Errorf("find refresh token: %w", err)
	}
	return record, nil
}

func tokenInfo(record models.RefreshToken) TokenInfo {
	return TokenInfo{
		TokenID:   record.ID,
		SessionID: record.SessionID,
		UserID:    record.UserID,
		ExpiresAt: record.ExpiresAt,
	}
}

func (s *SessionService) publish(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("event", event.Type).Msg("audit publish failed")
	}
}

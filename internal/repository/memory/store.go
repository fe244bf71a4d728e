// Package memory holds mutex-guarded stores with the same conditional-update
// semantics as the Postgres repositories. The API runs on them when no DSN
// is configured, and service tests use them throughout.
package memory

import (
	"context"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"hcadmin/internal/models"
	"hcadmin/internal/repository"
)

type Store struct {
	mu          sync.Mutex
	users       map[string]models.User
	otps        []models.OtpRecord
	sessions    map[string]models.LoginSession
	tokens      map[string]models.RefreshToken
	attachments map[string]models.Attachment
	messages    map[string]models.ResponseMessage
}

func NewStore() *Store {
	return &Store{
		users:       map[string]models.User{},
		sessions:    map[string]models.LoginSession{},
		tokens:      map[string]models.RefreshToken{},
		attachments: map[string]models.Attachment{},
		messages:    map[string]models.ResponseMessage{},
	}
}

func (s *Store) Users() *UserStore                 { return &UserStore{s} }
func (s *Store) Otps() *OtpStore                   { return &OtpStore{s} }
func (s *Store) Sessions() *SessionStore           { return &SessionStore{s} }
func (s *Store) RefreshTokens() *RefreshTokenStore { return &RefreshTokenStore{s} }
func (s *Store) Attachments() *AttachmentStore     { return &AttachmentStore{s} }
func (s *Store) Messages() *MessageStore           { return &MessageStore{s} }

type UserStore struct{ s *Store }

func (u *UserStore) Create(_ context.Context, user models.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, existing := range u.s.users {
		if strings.EqualFold(existing.Username, user.Username) {
			return repository.ErrUsernameTaken
		}
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	u.s.users[user.ID] = user
	return nil
}

func (u *UserStore) FindByUsername(_ context.Context, username string) (models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, user := range u.s.users {
		if strings.EqualFold(user.Username, username) {
			return user, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (u *UserStore) GetByID(_ context.Context, id string) (models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (u *UserStore) List(_ context.Context, limit, offset int) ([]models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	users := make([]models.User, 0, len(u.s.users))
	for _, user := range u.s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return page(users, limit, offset), nil
}

func (u *UserStore) UpdatePasswordHash(_ context.Context, id string, hash []byte) error {
	return u.update(id, func(user *models.User) { user.PasswordHash = append([]byte(nil), hash...) })
}

func (u *UserStore) UpdateStatus(_ context.Context, id string, status models.UserStatus) error {
	return u.update(id, func(user *models.User) { user.Status = status })
}

func (u *UserStore) UpdateAvatar(_ context.Context, id string, attachmentID string) error {
	return u.update(id, func(user *models.User) { user.AvatarID = &attachmentID })
}

func (u *UserStore) update(id string, fn func(*models.User)) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	fn(&user)
	user.UpdatedAt = time.Now().UTC()
	u.s.users[id] = user
	return nil
}

type OtpStore struct{ s *Store }

func (o *OtpStore) Replace(_ context.Context, params repository.ReplaceOtpParams) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	for i := range o.s.otps {
		rec := &o.s.otps[i]
		if rec.UserID == params.UserID && rec.Channel == params.Channel &&
			rec.ConsumedAt == nil && rec.SupersededAt == nil {
			at := params.CreatedAt
			rec.SupersededAt = &at
		}
	}
	o.s.otps = append(o.s.otps, models.OtpRecord{
		ID:        params.ID,
		UserID:    params.UserID,
		Channel:   params.Channel,
		CodeHash:  append([]byte(nil), params.CodeHash...),
		CreatedAt: params.CreatedAt,
		ExpiresAt: params.ExpiresAt,
	})
	return nil
}

func (o *OtpStore) FindLatest(_ context.Context, userID string, channel models.OtpChannel) (models.OtpRecord, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	// same ranking as the SQL store: live, then consumed, then superseded;
	// newest first within each
	best, found := models.OtpRecord{}, false
	for i := len(o.s.otps) - 1; i >= 0; i-- {
		rec := o.s.otps[i]
		if rec.UserID != userID || rec.Channel != channel {
			continue
		}
		if !found || otpRank(rec) > otpRank(best) || (otpRank(rec) == otpRank(best) && rec.CreatedAt.After(best.CreatedAt)) {
			best, found = rec, true
		}
	}
	if !found {
		return models.OtpRecord{}, repository.ErrOtpNotFound
	}
	return best, nil
}

func otpRank(rec models.OtpRecord) int {
	switch {
	case rec.ConsumedAt == nil && rec.SupersededAt == nil:
		return 2
	case rec.SupersededAt == nil:
		return 1
	}
	return 0
}

func (o *OtpStore) MarkConsumed(_ context.Context, id string, at time.Time) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	for i := range o.s.otps {
		rec := &o.s.otps[i]
		if rec.ID != id {
			continue
		}
		if rec.ConsumedAt != nil || rec.SupersededAt != nil {
			return repository.ErrOtpAlreadyConsumed
		}
		rec.ConsumedAt = &at
		return nil
	}
	return repository.ErrOtpAlreadyConsumed
}

func (o *OtpStore) CountSince(_ context.Context, userID string, since time.Time) (int, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	count := 0
	for _, rec := range o.s.otps {
		if rec.UserID == userID && !rec.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

type SessionStore struct{ s *Store }

func (ss *SessionStore) Create(_ context.Context, session models.LoginSession) error {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	ss.s.sessions[session.ID] = session
	return nil
}

func (ss *SessionStore) GetByID(_ context.Context, id string) (models.LoginSession, error) {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	session, ok := ss.s.sessions[id]
	if !ok {
		return models.LoginSession{}, repository.ErrSessionNotFound
	}
	return session, nil
}

func (ss *SessionStore) ListByUser(_ context.Context, userID string) ([]models.LoginSession, error) {
	return ss.filter(func(s models.LoginSession) bool { return s.UserID == userID }, true), nil
}

func (ss *SessionStore) ListActiveByUser(_ context.Context, userID string) ([]models.LoginSession, error) {
	return ss.filter(func(s models.LoginSession) bool { return s.UserID == userID && s.Active() }, true), nil
}

func (ss *SessionStore) ListIdle(_ context.Context, before time.Time, limit int) ([]models.LoginSession, error) {
	idle := ss.filter(func(s models.LoginSession) bool { return s.Active() && s.LastActivityAt.Before(before) }, false)
	return page(idle, limit, 0), nil
}

func (ss *SessionStore) UpdateStatus(_ context.Context, params repository.UpdateSessionStatusParams) error {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	session, ok := ss.s.sessions[params.SessionID]
	if !ok {
		return repository.ErrSessionNotFound
	}
	if !session.Active() {
		return repository.ErrSessionNotActive
	}
	at := params.At
	session.Status = params.Status
	session.LogoutAt = &at
	session.LogoutReason = params.Reason
	ss.s.sessions[session.ID] = session
	return nil
}

func (ss *SessionStore) Touch(_ context.Context, params repository.TouchSessionParams) error {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	session, ok := ss.s.sessions[params.SessionID]
	if !ok {
		return repository.ErrSessionNotFound
	}
	if !session.Active() {
		return repository.ErrSessionNotActive
	}
	session.LastActivityAt = params.At
	if params.IPAddress != "" {
		session.IPAddress = params.IPAddress
	}
	if params.UserAgent != "" {
		session.UserAgent = params.UserAgent
	}
	ss.s.sessions[session.ID] = session
	return nil
}

// filter sorts by last activity, newest first when desc is set.
func (ss *SessionStore) filter(keep func(models.LoginSession) bool, desc bool) []models.LoginSession {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	var out []models.LoginSession
	for _, session := range ss.s.sessions {
		if keep(session) {
			out = append(out, session)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].LastActivityAt.After(out[j].LastActivityAt)
		}
		return out[i].LastActivityAt.Before(out[j].LastActivityAt)
	})
	return out
}

type RefreshTokenStore struct{ s *Store }

func tokenKey(hash []byte) string {
	return hex.EncodeToString(hash)
}

func (r *RefreshTokenStore) Create(_ context.Context, token models.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.tokens[tokenKey(token.TokenHash)] = token
	return nil
}

func (r *RefreshTokenStore) FindByHash(_ context.Context, hash []byte) (models.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	token, ok := r.s.tokens[tokenKey(hash)]
	if !ok {
		return models.RefreshToken{}, repository.ErrRefreshTokenNotFound
	}
	return token, nil
}

func (r *RefreshTokenStore) Rotate(_ context.Context, params repository.RotateRefreshTokenParams) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := tokenKey(params.OldHash)
	old, ok := r.s.tokens[key]
	if !ok {
		return repository.ErrRefreshTokenNotFound
	}
	if old.RevokedAt != nil {
		return repository.ErrRefreshTokenRevoked
	}
	at := params.At
	replacedBy := params.Replacement.ID
	old.RevokedAt = &at
	old.ReplacedBy = &replacedBy
	r.s.tokens[key] = old
	r.s.tokens[tokenKey(params.Replacement.TokenHash)] = params.Replacement
	return nil
}

func (r *RefreshTokenStore) RevokeBySession(_ context.Context, sessionID string, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for key, token := range r.s.tokens {
		if token.SessionID == sessionID && token.RevokedAt == nil {
			revokedAt := at
			token.RevokedAt = &revokedAt
			r.s.tokens[key] = token
			n++
		}
	}
	return n, nil
}

type AttachmentStore struct{ s *Store }

func (a *AttachmentStore) Create(_ context.Context, attachment models.Attachment) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	a.s.attachments[attachment.ID] = attachment
	return nil
}

func (a *AttachmentStore) GetByID(_ context.Context, id string) (models.Attachment, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	attachment, ok := a.s.attachments[id]
	if !ok {
		return models.Attachment{}, repository.ErrAttachmentNotFound
	}
	return attachment, nil
}

func (a *AttachmentStore) ListByUser(_ context.Context, userID string, limit, offset int) ([]models.Attachment, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	var items []models.Attachment
	for _, attachment := range a.s.attachments {
		if attachment.UserID == userID {
			items = append(items, attachment)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return page(items, limit, offset), nil
}

type MessageStore struct{ s *Store }

func (m *MessageStore) Get(_ context.Context, code string) (models.ResponseMessage, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	msg, ok := m.s.messages[code]
	if !ok {
		return models.ResponseMessage{}, repository.ErrMessageNotFound
	}
	return msg, nil
}

func (m *MessageStore) Upsert(_ context.Context, code, text string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.messages[code] = models.ResponseMessage{Code: code, Text: text, UpdatedAt: time.Now().UTC()}
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// GrantStore keeps reset grants in process memory keyed by token hash.
type GrantStore struct {
	mu     sync.Mutex
	grants map[string]models.ResetGrant
}

func NewGrantStore() *GrantStore {
	return &GrantStore{grants: map[string]models.ResetGrant{}}
}

func (g *GrantStore) Save(_ context.Context, tokenHash []byte, grant models.ResetGrant) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.grants[tokenKey(tokenHash)] = grant
	return nil
}

func (g *GrantStore) Consume(_ context.Context, tokenHash []byte, at time.Time) (models.ResetGrant, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := tokenKey(tokenHash)
	grant, ok := g.grants[key]
	if !ok {
		return models.ResetGrant{}, repository.ErrGrantNotFound
	}
	if grant.ConsumedAt != nil {
		return grant, repository.ErrGrantConsumed
	}
	if !at.Before(grant.ExpiresAt) {
		return grant, repository.ErrGrantExpired
	}
	consumedAt := at
	grant.ConsumedAt = &consumedAt
	g.grants[key] = grant
	return grant, nil
}

func (g *GrantStore) Release(_ context.Context, tokenHash []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := tokenKey(tokenHash)
	if grant, ok := g.grants[key]; ok {
		grant.ConsumedAt = nil
		g.grants[key] = grant
	}
	return nil
}

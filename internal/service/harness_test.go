package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"hcadmin/internal/audit"
	"hcadmin/internal/config"
	"hcadmin/internal/ids"
	"hcadmin/internal/models"
	"hcadmin/internal/repository/memory"
	"hcadmin/internal/security"
)

var fastArgon = security.Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentMessage struct {
	To   string
	Body string
}

// captureSender records outgoing messages. Setting fail makes every send
// return that error.
type captureSender struct {
	mu   sync.Mutex
	sent []sentMessage
	fail error
}

func (s *captureSender) SendSMS(_ context.Context, contact string, message string) error {
	return s.record(contact, message)
}

func (s *captureSender) SendEmail(_ context.Context, address string, _ string, htmlBody string) error {
	return s.record(address, htmlBody)
}

func (s *captureSender) record(to, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.sent = append(s.sent, sentMessage{To: to, Body: body})
	return nil
}

var (
	smsCodePattern   = regexp.MustCompile(`^(\d+) is your OTP`)
	emailCodePattern = regexp.MustCompile(`<strong>(\d+)</strong>`)
)

func (s *captureSender) lastCode(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.sent, "no message was sent")
	body := s.sent[len(s.sent)-1].Body
	for _, re := range []*regexp.Regexp{smsCodePattern, emailCodePattern} {
		if m := re.FindStringSubmatch(body); m != nil {
			return m[1]
		}
	}
	t.Fatalf("no code in message %q", body)
	return ""
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []audit.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event audit.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type harness struct {
	store    *memory.Store
	grants   *memory.GrantStore
	clock    *fakeClock
	sms      *captureSender
	email    *captureSender
	events   *recordingPublisher
	otps     *OtpService
	sessions *SessionService
	reset    *ResetService
	auth     *AuthService
	otpCfg   config.OTPConfig
}

func testPolicy(t *testing.T) *security.PasswordPolicy {
	t.Helper()
	policy, err := security.NewPasswordPolicy(config.PasswordPolicyConfig{
		MinLength:      8,
		MaxLength:      64,
		Pattern:        `^[\x21-\x7E]+$`,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: true,
		Message:        "Password must be 8-64 characters with mixed case, a digit and a symbol.",
	})
	require.NoError(t, err)
	return policy
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	log := zerolog.Nop()
	h := &harness{
		store:  memory.NewStore(),
		grants: memory.NewGrantStore(),
		clock:  &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
		sms:    &captureSender{},
		email:  &captureSender{},
		events: &recordingPublisher{},
		otpCfg: config.OTPConfig{
			ExpiryMinutes:    5,
			Digits:           6,
			Secret:           "test-otp-secret",
			ResetGraceWindow: 10 * time.Minute,
		},
	}
	policy := testPolicy(t)

	h.otps = NewOtpService(h.store.Otps(), h.otpCfg, log)
	h.otps.now = h.clock.Now

	h.sessions = NewSessionService(h.store.Sessions(), h.store.RefreshTokens(), h.events, 720*time.Hour, log)
	h.sessions.now = h.clock.Now

	h.reset = NewResetService(ResetDeps{
		Users:    h.store.Users(),
		OtpStore: h.store.Otps(),
		Otps:     h.otps,
		Sessions: h.sessions,
		Grants:   h.grants,
		SMS:      h.sms,
		Email:    h.email,
		Policy:   policy,
		Audit:    h.events,
	}, h.otpCfg, time.Second, log)
	h.reset.now = h.clock.Now

	h.auth = NewAuthService(h.store.Users(), h.sessions, policy, h.events, config.SecurityConfig{
		JWTAccessSecret: "test-access-secret",
		JWTAccessTTL:    15 * time.Minute,
		RefreshTokenTTL: 720 * time.Hour,
		MaxSessions:     10,
	}, log)
	h.auth.now = h.clock.Now

	return h
}

// seedUser stores an active user whose password is hashed with cheap
// argon2 parameters.
func (h *harness) seedUser(t *testing.T, username, contact, email, password string) models.User {
	t.Helper()
	hash, err := security.HashPasswordWithParams(password, fastArgon)
	require.NoError(t, err)

	user := models.User{
		ID:           ids.New(),
		Username:     username,
		ContactNo:    contact,
		Email:        email,
		PasswordHash: hash,
		Role:         models.UserRoleStaff,
		Status:       models.UserStatusActive,
		BranchID:     "branch-1",
	}
	require.NoError(t, h.store.Users().Create(context.Background(), user))
	return user
}

// login opens a session with a refresh token directly through the
// session manager.
func (h *harness) login(t *testing.T, userID string) (models.LoginSession, string) {
	t.Helper()
	ctx := context.Background()
	session, err := h.sessions.CreateSession(ctx, userID, "branch-1", ClientInfo{IPAddress: "10.0.0.1", UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"})
	require.NoError(t, err)
	token, err := h.sessions.IssueRefreshToken(ctx, userID, session.ID, 720*time.Hour)
	require.NoError(t, err)
	return session, token
}

var errGatewayDown = errors.New("gateway down")

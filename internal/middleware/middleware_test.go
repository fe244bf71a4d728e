package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hcadmin/internal/models"
	"hcadmin/internal/security"
	"hcadmin/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestRequireRoles(t *testing.T) {
	withUser := func(user *models.User) gin.HandlerFunc {
		return func(c *gin.Context) {
			if user != nil {
				c.Set(ContextUser, *user)
			}
		}
	}
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }

	tests := []struct {
		name string
		user *models.User
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"staff", &models.User{ID: "u1", Role: models.UserRoleStaff}, http.StatusForbidden},
		{"admin", &models.User{ID: "u2", Role: models.UserRoleAdmin}, http.StatusOK},
		{"superadmin", &models.User{ID: "u3", Role: models.UserRoleSuperAdmin}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := gin.New()
			engine.GET("/", withUser(tt.user), RequireRoles(models.UserRoleAdmin, models.UserRoleSuperAdmin), ok)
			rec := serve(engine, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequestID(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(requestIDHeader))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := serve(engine, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
	assert.Equal(t, "abc-123", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, strings.Repeat("x", 65))
	rec = serve(engine, req)
	assert.Len(t, rec.Header().Get(requestIDHeader), 36)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc\ninjected")
	rec = serve(engine, req)
	assert.NotEqual(t, "abc\ninjected", rec.Header().Get(requestIDHeader))

	rec = serve(engine, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

type stubLimiter struct {
	allowed int
	err     error
	keys    []string
}

func (l *stubLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.keys = append(l.keys, key)
	if l.err != nil {
		return false, l.err
	}
	if l.allowed == 0 {
		return false, nil
	}
	l.allowed--
	return true, nil
}

func TestRateLimit(t *testing.T) {
	limiter := &stubLimiter{allowed: 1}
	engine := gin.New()
	engine.Use(RateLimit(limiter, zerolog.Nop()))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5000"
	assert.Equal(t, http.StatusOK, serve(engine, req).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(engine, req).Code)
	assert.Equal(t, []string{"ip:10.0.0.7", "ip:10.0.0.7"}, limiter.keys)

	limiter.err = errors.New("redis down")
	assert.Equal(t, http.StatusOK, serve(engine, req).Code)
}

func TestRecovery(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID(), Recovery(zerolog.Nop()))
	engine.GET("/", func(c *gin.Context) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-1")
	rec := serve(engine, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal_error","request_id":"req-1"}`, rec.Body.String())
}

func TestCORS(t *testing.T) {
	engine := gin.New()
	engine.Use(CORS([]string{"https://admin.example.com/"}))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		return serve(engine, req)
	}

	rec := preflight("https://admin.example.com")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://admin.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	rec = preflight("https://evil.example.com")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	open := gin.New()
	open.Use(CORS(nil))
	open.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://any.example.com")
	rec = serve(open, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://any.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

type stubUsers map[string]models.User

func (u stubUsers) GetByID(_ context.Context, id string) (models.User, error) {
	user, ok := u[id]
	if !ok {
		return models.User{}, service.ErrUserNotFound
	}
	return user, nil
}

type stubSessions struct {
	touchErr error
	touched  int
}

func (s *stubSessions) ValidateSession(_ context.Context, sessionID string) (models.LoginSession, error) {
	return models.LoginSession{ID: sessionID, UserID: "u1", Status: models.SessionStatusActive}, nil
}

func (s *stubSessions) TouchSession(context.Context, string, service.ClientInfo) error {
	s.touched++
	return s.touchErr
}

func TestAuthTouchFailures(t *testing.T) {
	keys := security.AccessTokenKeys{Secret: "mw-secret", Issuer: "hcadmin", TTL: time.Minute}
	token, _, err := keys.Sign(security.AccessSubject{UserID: "u1", SessionID: "s1", Role: string(models.UserRoleStaff)}, time.Now())
	require.NoError(t, err)
	users := stubUsers{"u1": {ID: "u1", Role: models.UserRoleStaff, Status: models.UserStatusActive}}

	tests := []struct {
		name     string
		touchErr error
		want     int
		logged   bool
	}{
		{"touched", nil, http.StatusOK, false},
		{"store down", errors.New("pool closed"), http.StatusOK, true},
		{"ended meanwhile", service.ErrSessionInactive, http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			sessions := &stubSessions{touchErr: tt.touchErr}
			engine := gin.New()
			engine.GET("/", Auth(keys, users, sessions, zerolog.New(&buf)), func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := serve(engine, req)

			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, 1, sessions.touched)
			assert.Equal(t, tt.logged, strings.Contains(buf.String(), "touch session failed"), buf.String())
		})
	}
}

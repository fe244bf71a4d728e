package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"hcadmin/internal/config"
	"hcadmin/internal/messages"
	"hcadmin/internal/middleware"
	"hcadmin/internal/models"
	"hcadmin/internal/ratelimit"
	"hcadmin/internal/security"
	"hcadmin/internal/service"
)

// Services is everything the HTTP layer calls into. cmd/api assembles it
// over either Postgres or the in-memory stores.
type Services struct {
	Auth     *service.AuthService
	Reset    *service.ResetService
	Sessions *service.SessionService
	Uploads  *service.UploadService
	Users    service.UserStore
	Catalog  *messages.Catalog
	Limiter  ratelimit.Limiter
	Health   []HealthCheck
}

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	auth     *service.AuthService
	reset    *service.ResetService
	sessions *service.SessionService
	uploads  *service.UploadService
	users    service.UserStore
	catalog  *messages.Catalog
	limiter  ratelimit.Limiter
	health   []HealthCheck
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, svc Services) HandlerSet {
	return HandlerSet{
		log:      log,
		cfg:      cfg,
		auth:     svc.Auth,
		reset:    svc.Reset,
		sessions: svc.Sessions,
		uploads:  svc.Uploads,
		users:    svc.Users,
		catalog:  svc.Catalog,
		limiter:  svc.Limiter,
		health:   svc.Health,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")

	public := v1.Group("")
	if h.limiter != nil {
		public.Use(middleware.RateLimit(h.limiter, h.log))
	}
	{
		auth := public.Group("/auth")
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)

		reset := public.Group("/password-reset")
		reset.POST("/validate", h.ValidateResetUser)
		reset.POST("/otp", h.RequestResetOtp)
		reset.POST("/verify", h.VerifyResetOtp)
		reset.POST("/complete", h.CompleteReset)
	}

	authenticated := middleware.Auth(security.AccessTokenKeysFrom(h.cfg.Security), h.users, h.sessions, h.log)

	protected := v1.Group("/auth")
	protected.Use(authenticated)
	protected.GET("/me", h.Me)
	protected.POST("/logout", h.Logout)
	protected.POST("/logout-all", h.LogoutAll)
	protected.POST("/password", h.ChangePassword)
	protected.GET("/sessions", h.ListSessions)
	protected.DELETE("/sessions/:sessionId", h.RevokeSession)

	attachments := v1.Group("/attachments")
	attachments.Use(authenticated)
	attachments.POST("", h.UploadAttachment)
	attachments.GET("", h.ListAttachments)

	admin := v1.Group("/admin")
	admin.Use(
		authenticated,
		middleware.RequireRoles(models.UserRoleAdmin, models.UserRoleSuperAdmin),
	)
	admin.GET("/users", h.AdminListUsers)
	admin.POST("/users", h.AdminCreateUser)
	admin.PATCH("/users/:userId/status", h.AdminSetUserStatus)
	admin.POST("/users/:userId/revoke-sessions", h.AdminRevokeSessions)
	admin.PUT("/messages/:code", h.AdminSetMessage)
}

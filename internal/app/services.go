package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"hcadmin/internal/audit"
	"hcadmin/internal/config"
	"hcadmin/internal/notify"
	"hcadmin/internal/security"
	"hcadmin/internal/service"
)

type Services struct {
	Otps     *service.OtpService
	Sessions *service.SessionService
	Reset    *service.ResetService
	Auth     *service.AuthService
	Uploads  *service.UploadService
}

// NewServices wires the credential services over stores. objects may be nil
// for binaries that never upload.
func NewServices(cfg *config.AppConfig, stores Stores, publisher audit.Publisher, objects service.ObjectStore, log zerolog.Logger) (Services, error) {
	policy, err := security.NewPasswordPolicy(cfg.PasswordPolicy)
	if err != nil {
		return Services{}, err
	}

	sms, email, err := notify.Senders(cfg.Notify, log)
	if err != nil {
		return Services{}, fmt.Errorf("notification senders: %w", err)
	}

	otps := service.NewOtpService(stores.Otps, cfg.OTP, log.With().Str("component", "otp").Logger())
	sessions := service.NewSessionService(stores.Sessions, stores.Tokens, publisher, cfg.Security.RefreshTokenTTL, log.With().Str("component", "sessions").Logger())

	reset := service.NewResetService(service.ResetDeps{
		Users:    stores.Users,
		OtpStore: stores.Otps,
		Otps:     otps,
		Sessions: sessions,
		Grants:   stores.Grants,
		SMS:      sms,
		Email:    email,
		Policy:   policy,
		Audit:    publisher,
	}, cfg.OTP, cfg.Notify.DeliveryTimeout, log.With().Str("component", "reset").Logger())

	auth := service.NewAuthService(stores.Users, sessions, policy, publisher, cfg.Security, log.With().Str("component", "auth").Logger())

	var uploads *service.UploadService
	if objects != nil {
		uploads = service.NewUploadService(stores.Attachments, stores.Users, objects, cfg.Storage, log.With().Str("component", "uploads").Logger())
	}

	return Services{
		Otps:     otps,
		Sessions: sessions,
		Reset:    reset,
		Auth:     auth,
		Uploads:  uploads,
	}, nil
}

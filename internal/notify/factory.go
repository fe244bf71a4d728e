package notify

import (
	"fmt"

	"github.com/rs/zerolog"

	"hcadmin/internal/config"
)

// Senders builds the configured SMS and email transports.
func Senders(cfg config.NotifyConfig, log zerolog.Logger) (SMSSender, EmailSender, error) {
	logSender := NewLogSender(log)

	var sms SMSSender
	switch cfg.SMS.Driver {
	case "", "log":
		sms = logSender
	case "gateway":
		if cfg.SMS.GatewayURL == "" {
			return nil, nil, fmt.Errorf("notify.sms.gatewayurl is required for the gateway driver")
		}
		sms = NewGatewaySMSSender(cfg.SMS, log)
	default:
		return nil, nil, fmt.Errorf("unknown sms driver %q", cfg.SMS.Driver)
	}

	var email EmailSender
	switch cfg.Email.Driver {
	case "", "log":
		email = logSender
	case "smtp":
		if cfg.Email.Host == "" || cfg.Email.From == "" {
			return nil, nil, fmt.Errorf("notify.email.host and notify.email.from are required for the smtp driver")
		}
		email = NewSMTPEmailSender(cfg.Email, log)
	default:
		return nil, nil, fmt.Errorf("unknown email driver %q", cfg.Email.Driver)
	}

	return sms, email, nil
}

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"

	"hcadmin/internal/config"
)

type SMTPEmailSender struct {
	cfg config.EmailConfig
	log zerolog.Logger
}

func NewSMTPEmailSender(cfg config.EmailConfig, log zerolog.Logger) *SMTPEmailSender {
	return &SMTPEmailSender{cfg: cfg, log: log}
}

func (s *SMTPEmailSender) SendEmail(ctx context.Context, address string, subject string, htmlBody string) error {
	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return fmt.Errorf("email from: %w", err)
	}
	if err := msg.To(address); err != nil {
		return fmt.Errorf("email to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	s.log.Debug().Str("subject", subject).Msg("email dispatched")
	return nil
}

func (s *SMTPEmailSender) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(30 * time.Second),
		mail.WithTLSPolicy(tlsPolicy(s.cfg.TLS)),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

func tlsPolicy(name string) mail.TLSPolicy {
	switch name {
	case "mandatory":
		return mail.TLSMandatory
	case "none":
		return mail.NoTLS
	default:
		return mail.TLSOpportunistic
	}
}

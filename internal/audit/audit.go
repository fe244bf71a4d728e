package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	EventLogin           = "auth.login"
	EventLoginFailed     = "auth.login_failed"
	EventSessionCreated  = "session.created"
	EventSessionEnded    = "session.ended"
	EventTokenRotated    = "token.rotated"
	EventTokenReplay     = "token.replay"
	EventOtpIssued       = "otp.issued"
	EventOtpVerified     = "otp.verified"
	EventOtpDeliveryFail = "otp.delivery_failed"
	EventPasswordReset   = "password.reset"
	EventPasswordChanged = "password.changed"
)

type Event struct {
	Type      string            `json:"type"`
	UserID    string            `json:"userId,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	At        time.Time         `json:"at"`
	Meta      map[string]string `json:"meta,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// LogPublisher writes events to the structured log. It backs development
// setups without a broker.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log.With().Str("component", "audit").Logger()}
}

func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	entry := p.log.Info().
		Str("event", event.Type).
		Str("user_id", event.UserID).
		Str("session_id", event.SessionID).
		Time("at", event.At)
	if event.Reason != "" {
		entry = entry.Str("reason", event.Reason)
	}
	for k, v := range event.Meta {
		entry = entry.Str(k, v)
	}
	entry.Msg("audit event")
	return nil
}

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"hcadmin/internal/config"
)

// GatewaySMSSender posts messages to the SMS provider's JSON endpoint.
type GatewaySMSSender struct {
	client *http.Client
	url    string
	apiKey string
	sender string
	log    zerolog.Logger
}

func NewGatewaySMSSender(cfg config.SMSConfig, log zerolog.Logger) *GatewaySMSSender {
	return &GatewaySMSSender{
		client: &http.Client{Timeout: 30 * time.Second},
		url:    cfg.GatewayURL,
		apiKey: cfg.APIKey,
		sender: cfg.SenderID,
		log:    log,
	}
}

type smsRequest struct {
	To      string `json:"to"`
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

func (s *GatewaySMSSender) SendSMS(ctx context.Context, contact string, message string) error {
	body, err := json.Marshal(smsRequest{To: contact, Sender: s.sender, Message: message})
	if err != nil {
		return fmt.Errorf("encode sms: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway: unexpected status %d", resp.StatusCode)
	}

	s.log.Debug().Str("to", maskTail(contact)).Msg("sms dispatched")
	return nil
}

func maskTail(v string) string {
	if len(v) <= 4 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}

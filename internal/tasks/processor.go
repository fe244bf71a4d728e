package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const TypeExpireSessions = "expire_sessions"

// Task is one maintenance stream entry. Values are flat strings because
// stream fields are.
type Task struct {
	Type  string `json:"type"`
	Scope string `json:"scope,omitempty"`
}

func (t Task) Values() map[string]any {
	values := map[string]any{"type": t.Type}
	if t.Scope != "" {
		values["scope"] = t.Scope
	}
	return values
}

type SessionExpirer interface {
	ExpireIdleSessions(ctx context.Context, idle time.Duration) (int, error)
}

type Processor struct {
	sessions    SessionExpirer
	idleTimeout time.Duration
	logger      zerolog.Logger
}

func NewProcessor(sessions SessionExpirer, idleTimeout time.Duration, logger zerolog.Logger) *Processor {
	return &Processor{
		sessions:    sessions,
		idleTimeout: idleTimeout,
		logger:      logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var task Task
	if err := decodePayload(msg.Values, &task); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	switch task.Type {
	case TypeExpireSessions:
		return p.handleExpireSessions(ctx)
	default:
		p.logger.Warn().Str("type", task.Type).Str("message_id", msg.ID).Msg("unknown task type")
		return nil
	}
}

func decodePayload(values map[string]interface{}, out *Task) error {
	bytes, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, out)
}

func (p *Processor) handleExpireSessions(ctx context.Context) error {
	ended, err := p.sessions.ExpireIdleSessions(ctx, p.idleTimeout)
	if err != nil {
		return fmt.Errorf("expire idle sessions: %w", err)
	}
	p.logger.Info().Int("ended", ended).Dur("idle_timeout", p.idleTimeout).Msg("idle sessions expired")
	return nil
}

package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExpirer struct {
	calls []time.Duration
	err   error
}

func (f *fakeExpirer) ExpireIdleSessions(_ context.Context, idle time.Duration) (int, error) {
	f.calls = append(f.calls, idle)
	return 3, f.err
}

func TestProcessorExpiresSessions(t *testing.T) {
	expirer := &fakeExpirer{}
	p := NewProcessor(expirer, 72*time.Hour, zerolog.Nop())

	msg := redis.XMessage{ID: "1-0", Values: Task{Type: TypeExpireSessions}.Values()}
	require.NoError(t, p.Handle(context.Background(), msg))
	assert.Equal(t, []time.Duration{72 * time.Hour}, expirer.calls)
}

func TestProcessorPropagatesFailure(t *testing.T) {
	expirer := &fakeExpirer{err: errors.New("db down")}
	p := NewProcessor(expirer, time.Hour, zerolog.Nop())

	msg := redis.XMessage{ID: "1-0", Values: map[string]interface{}{"type": TypeExpireSessions}}
	assert.Error(t, p.Handle(context.Background(), msg))
}

func TestProcessorIgnoresUnknownTasks(t *testing.T) {
	expirer := &fakeExpirer{}
	p := NewProcessor(expirer, time.Hour, zerolog.Nop())

	msg := redis.XMessage{ID: "1-0", Values: map[string]interface{}{"type": "ingest"}}
	assert.NoError(t, p.Handle(context.Background(), msg))
	assert.Empty(t, expirer.calls)
}

package queue

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hcadmin/internal/ids"
)

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

type scriptedHandler struct {
	mu   sync.Mutex
	fail bool
	seen []string
}

func (h *scriptedHandler) Handle(_ context.Context, msg redis.XMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, msg.ID)
	if h.fail {
		return errors.New("task failed")
	}
	return nil
}

func newTestConsumer(t *testing.T, handler MessageHandler) (*Consumer, *redis.Client) {
	client := redisClient(t)
	stream := "test:maintenance:" + ids.New()
	c := NewConsumer(client, Options{
		Stream:        stream,
		Group:         "workers",
		Consumer:      "c1",
		ClaimInterval: 20 * time.Millisecond,
		MaxDeliveries: 2,
	}, handler, zerolog.Nop())
	t.Cleanup(func() {
		client.Del(context.Background(), stream, c.opts.DeadLetterStream())
	})
	require.NoError(t, c.EnsureGroup(context.Background()))
	require.NoError(t, c.EnsureGroup(context.Background()), "second create is a no-op")
	return c, client
}

func TestConsumerAcksHandledEntries(t *testing.T) {
	handler := &scriptedHandler{}
	c, client := newTestConsumer(t, handler)
	ctx := context.Background()

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: c.opts.Stream, Values: map[string]any{"type": "expire_sessions"}}).Err())
	require.NoError(t, c.read(ctx))

	assert.Len(t, handler.seen, 1)
	pending, err := client.XPending(ctx, c.opts.Stream, c.opts.Group).Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestConsumerDeadLettersRepeatedFailures(t *testing.T) {
	handler := &scriptedHandler{fail: true}
	c, client := newTestConsumer(t, handler)
	ctx := context.Background()

	id, err := client.XAdd(ctx, &redis.XAddArgs{Stream: c.opts.Stream, Values: map[string]any{"type": "expire_sessions"}}).Result()
	require.NoError(t, err)
	require.NoError(t, c.read(ctx))

	// first reclaim retries, second gives up
	for i := 0; i < 2; i++ {
		time.Sleep(30 * time.Millisecond)
		require.NoError(t, c.reclaim(ctx))
	}

	assert.Equal(t, []string{id, id}, handler.seen)

	dead, err := client.XRange(ctx, c.opts.DeadLetterStream(), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, id, dead[0].Values["source_id"])

	pending, err := client.XPending(ctx, c.opts.Stream, c.opts.Group).Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

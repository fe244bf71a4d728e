package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter is a fixed-window counter shared by every API instance.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	window time.Duration
	limit  int64
}

func NewRedisLimiter(client *redis.Client, prefix string, window time.Duration, limit int) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, window: window, limit: int64(limit)}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	bucket := time.Now().UnixNano() / int64(l.window)
	redisKey := fmt.Sprintf("rl:%s:%s:%d", l.prefix, key, bucket)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit %s: %w", l.prefix, err)
	}
	return incr.Val() <= l.limit, nil
}

// MemoryLimiter is a per-process sliding window. Keys are pruned on access.
type MemoryLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	window   time.Duration
	limit    int
	now      func() time.Time
}

func NewMemoryLimiter(window time.Duration, limit int) *MemoryLimiter {
	return &MemoryLimiter{
		requests: make(map[string][]time.Time),
		window:   window,
		limit:    limit,
		now:      time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	reqs := l.requests[key]
	kept := reqs[:0]
	for _, t := range reqs {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.limit {
		l.requests[key] = kept
		return false, nil
	}
	l.requests[key] = append(kept, now)
	return true, nil
}

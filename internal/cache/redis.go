package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"hcadmin/internal/config"
)

// NewRedisClient connects and pings once. The client backs reset grants,
// the message catalog, rate limits and the maintenance stream, so it is
// shared rather than opened per component.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
		ClientName:  "hcadmin",
	})

	if err := Ping(ctx, client); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Ping is the health probe for the shared client.
func Ping(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

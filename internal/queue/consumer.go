package queue

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultBatchSize     = 10
	defaultMaxDeliveries = 5
	readBlock            = 5 * time.Second
	readBackoff          = 2 * time.Second
)

type MessageHandler interface {
	Handle(ctx context.Context, msg redis.XMessage) error
}

type Options struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
	// MaxDeliveries moves an entry to the dead-letter stream once it has
	// been delivered this many times without being acked.
	MaxDeliveries int64
	BatchSize     int64
}

// DeadLetterStream is where entries end up after MaxDeliveries failures.
func (o Options) DeadLetterStream() string {
	return o.Stream + ":dead"
}

// Consumer reads a stream through a consumer group, acking only handled
// entries and reclaiming ones left pending by crashed workers.
type Consumer struct {
	client  *redis.Client
	opts    Options
	handler MessageHandler
	logger  zerolog.Logger
}

func NewConsumer(client *redis.Client, opts Options, handler MessageHandler, logger zerolog.Logger) *Consumer {
	if opts.ClaimInterval <= 0 {
		opts.ClaimInterval = 10 * time.Second
	}
	if opts.MaxDeliveries <= 0 {
		opts.MaxDeliveries = defaultMaxDeliveries
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	return &Consumer{
		client:  client,
		opts:    opts,
		handler: handler,
		logger:  logger.With().Str("stream", opts.Stream).Str("group", opts.Group).Logger(),
	}
}

// EnsureGroup creates the stream and group if missing.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.opts.Stream, c.opts.Group, "0").Err()
	if err != nil && !redis.HasErrorPrefix(err, "BUSYGROUP") {
		return err
	}
	return nil
}

// Start runs until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(c.opts.ClaimInterval)
	defer ticker.Stop()

	for {
		if err := c.read(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error().Err(err).Msg("stream read error")
			if !sleep(ctx, readBackoff) {
				return ctx.Err()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.reclaim(ctx); err != nil && ctx.Err() == nil {
				c.logger.Error().Err(err).Msg("reclaim pending failed")
			}
		default:
		}
	}
}

func (c *Consumer) read(ctx context.Context) error {
	result, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.opts.Group,
		Consumer: c.opts.Consumer,
		Streams:  []string{c.opts.Stream, ">"},
		Count:    c.opts.BatchSize,
		Block:    readBlock,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	for _, stream := range result {
		for _, msg := range stream.Messages {
			c.process(ctx, msg)
		}
	}
	return nil
}

func (c *Consumer) process(ctx context.Context, msg redis.XMessage) {
	if err := c.handler.Handle(ctx, msg); err != nil {
		c.logger.Error().Err(err).Str("message_id", msg.ID).Msg("handle message failed")
		return
	}
	c.ack(ctx, msg.ID)
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, c.opts.Stream, c.opts.Group, id).Err(); err != nil {
		c.logger.Error().Err(err).Str("message_id", id).Msg("ack failed")
	}
}

// reclaim retries entries idle for longer than the claim interval and
// dead-letters those that keep failing.
func (c *Consumer) reclaim(ctx context.Context) error {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.opts.Stream,
		Group:  c.opts.Group,
		Idle:   c.opts.ClaimInterval,
		Start:  "-",
		End:    "+",
		Count:  c.opts.BatchSize,
	}).Result()
	if err != nil {
		return err
	}

	for _, entry := range pending {
		msgs, err := c.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   c.opts.Stream,
			Group:    c.opts.Group,
			Consumer: c.opts.Consumer,
			MinIdle:  c.opts.ClaimInterval,
			Messages: []string{entry.ID},
		}).Result()
		if err != nil {
			c.logger.Error().Err(err).Str("message_id", entry.ID).Msg("claim error")
			continue
		}
		for _, msg := range msgs {
			if entry.RetryCount >= c.opts.MaxDeliveries {
				c.deadLetter(ctx, msg, entry.RetryCount)
				continue
			}
			c.process(ctx, msg)
		}
	}
	return nil
}

func (c *Consumer) deadLetter(ctx context.Context, msg redis.XMessage, deliveries int64) {
	values := make(map[string]any, len(msg.Values)+1)
	for k, v := range msg.Values {
		values[k] = v
	}
	values["source_id"] = msg.ID

	if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: c.opts.DeadLetterStream(), Values: values}).Err(); err != nil {
		c.logger.Error().Err(err).Str("message_id", msg.ID).Msg("dead-letter failed")
		return
	}
	c.logger.Warn().Str("message_id", msg.ID).Int64("deliveries", deliveries).Msg("message dead-lettered")
	c.ack(ctx, msg.ID)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

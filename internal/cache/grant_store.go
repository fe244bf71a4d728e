package cache

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"hcadmin/internal/models"
	"hcadmin/internal/repository"
)

// Consumed and expired grants are kept for this long past expiry so a
// replay reports the right reason instead of not-found.
const grantRetention = time.Hour

const (
	grantMissing = iota
	grantConsumed
	grantExpired
	grantOK
)

// KEYS[1] grant key, ARGV[1] now in unix millis.
var consumeGrantScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return {0}
end
local fields = redis.call('HMGET', KEYS[1], 'user_id', 'channel', 'expires_at', 'consumed_at')
if fields[4] then
	return {1, fields[1], fields[2], fields[3], fields[4]}
end
if tonumber(ARGV[1]) >= tonumber(fields[3]) then
	return {2, fields[1], fields[2], fields[3]}
end
redis.call('HSET', KEYS[1], 'consumed_at', ARGV[1])
return {3, fields[1], fields[2], fields[3], ARGV[1]}
`)

// GrantStore keeps password reset grants in Redis hashes keyed by token hash.
type GrantStore struct {
	client *redis.Client
}

func NewGrantStore(client *redis.Client) *GrantStore {
	return &GrantStore{client: client}
}

func grantKey(tokenHash []byte) string {
	return "reset:grant:" + hex.EncodeToString(tokenHash)
}

func (s *GrantStore) Save(ctx context.Context, tokenHash []byte, grant models.ResetGrant) error {
	key := grantKey(tokenHash)
	ttl := time.Until(grant.ExpiresAt) + grantRetention
	if ttl <= 0 {
		ttl = grantRetention
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		"user_id", grant.UserID,
		"channel", string(grant.Channel),
		"expires_at", grant.ExpiresAt.UnixMilli(),
	)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save grant: %w", err)
	}
	return nil
}

func (s *GrantStore) Consume(ctx context.Context, tokenHash []byte, at time.Time) (models.ResetGrant, error) {
	res, err := consumeGrantScript.Run(ctx, s.client, []string{grantKey(tokenHash)}, at.UnixMilli()).Slice()
	if err != nil {
		return models.ResetGrant{}, fmt.Errorf("consume grant: %w", err)
	}

	status, _ := res[0].(int64)
	if status == grantMissing {
		return models.ResetGrant{}, repository.ErrGrantNotFound
	}

	grant, err := decodeGrant(res[1:])
	if err != nil {
		return models.ResetGrant{}, err
	}

	switch status {
	case grantConsumed:
		return grant, repository.ErrGrantConsumed
	case grantExpired:
		return grant, repository.ErrGrantExpired
	}
	return grant, nil
}

// Release clears the consumption mark so the same token can be spent again.
func (s *GrantStore) Release(ctx context.Context, tokenHash []byte) error {
	if err := s.client.HDel(ctx, grantKey(tokenHash), "consumed_at").Err(); err != nil {
		return fmt.Errorf("release grant: %w", err)
	}
	return nil
}

func decodeGrant(fields []any) (models.ResetGrant, error) {
	str := func(i int) string {
		if i >= len(fields) {
			return ""
		}
		v, _ := fields[i].(string)
		return v
	}

	expires, err := strconv.ParseInt(str(2), 10, 64)
	if err != nil {
		return models.ResetGrant{}, fmt.Errorf("decode grant expiry: %w", err)
	}

	grant := models.ResetGrant{
		UserID:    str(0),
		Channel:   models.OtpChannel(str(1)),
		ExpiresAt: time.UnixMilli(expires).UTC(),
	}
	if consumed := str(3); consumed != "" {
		ms, err := strconv.ParseInt(consumed, 10, 64)
		if err != nil {
			return models.ResetGrant{}, fmt.Errorf("decode grant consumption: %w", err)
		}
		at := time.UnixMilli(ms).UTC()
		grant.ConsumedAt = &at
	}
	return grant, nil
}

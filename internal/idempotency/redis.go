package idempotency

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cardassist/internal/constants"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func recordKey(messageID string) string {
	return constants.CacheKeyPrefixIdempotency + messageID
}

func claimKey(messageID string) string {
	return constants.CacheKeyPrefixIdempotency + messageID + constants.CacheKeySuffixClaim
}

func (s *RedisStore) Get(ctx context.Context, messageID string) (*Record, error) {
	raw, err := s.client.Get(ctx, recordKey(messageID)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET failed: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("corrupt idempotency record for %s: %w", messageID, err)
	}
	return &rec, nil
}

func (s *RedisStore) Claim(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, claimKey(messageID), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SetNX failed: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Complete(ctx context.Context, rec Record, ttl time.Duration) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode idempotency record: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, recordKey(rec.MessageID), raw, ttl)
		pipe.Del(ctx, claimKey(rec.MessageID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis MULTI failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, messageID string) error {
	if err := s.client.Del(ctx, claimKey(messageID)).Err(); err != nil {
		return fmt.Errorf("redis DEL failed: %w", err)
	}
	return nil
}

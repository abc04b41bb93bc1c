package response

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"cardassist/internal/constants"
	"cardassist/pkg/models"
)

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = constants.DefaultResponseTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Deliver(ctx context.Context, resp models.Response) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	if err := s.client.Set(ctx, constants.CacheKeyPrefixResponse+resp.MessageID, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, messageID string) (*models.Response, error) {
	raw, err := s.client.Get(ctx, constants.CacheKeyPrefixResponse+messageID).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET failed: %w", err)
	}

	var resp models.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("corrupt response for %s: %w", messageID, err)
	}
	return &resp, nil
}

// MemoryStore is used when router and consumer share a process.
type MemoryStore struct {
	mu        sync.RWMutex
	responses map[string]models.Response
	delivered int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{responses: make(map[string]models.Response)}
}

func (s *MemoryStore) Deliver(_ context.Context, resp models.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[resp.MessageID] = resp
	s.delivered++
	return nil
}

func (s *MemoryStore) Get(_ context.Context, messageID string) (*models.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp, ok := s.responses[messageID]
	if !ok {
		return nil, nil
	}
	return &resp, nil
}

// Deliveries counts Deliver calls, including repeats for one message.
func (s *MemoryStore) Deliveries() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.delivered
}

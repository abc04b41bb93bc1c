package idempotency

import (
	"context"
	"sync"
	"time"
)

type expiring struct {
	record    *Record
	expiresAt time.Time
}

// MemoryStore is a single-process Store for tests and local runs.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]expiring
	claims  map[string]time.Time
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]expiring),
		claims:  make(map[string]time.Time),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, messageID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.records[messageID]
	if !ok {
		return nil, nil
	}
	if !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		delete(s.records, messageID)
		return nil, nil
	}
	rec := *e.record
	return &rec, nil
}

func (s *MemoryStore) Claim(_ context.Context, messageID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if until, held := s.claims[messageID]; held && (until.IsZero() || now.Before(until)) {
		return false, nil
	}
	var until time.Time
	if ttl > 0 {
		until = now.Add(ttl)
	}
	s.claims[messageID] = until
	return true, nil
}

func (s *MemoryStore) Complete(_ context.Context, rec Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.now().Add(ttl)
	}
	stored := rec
	s.records[rec.MessageID] = expiring{record: &stored, expiresAt: expiresAt}
	delete(s.claims, rec.MessageID)
	return nil
}

func (s *MemoryStore) Release(_ context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, messageID)
	return nil
}

package deadletter

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository backs the admin service when no PostgreSQL is configured.
// Nothing survives a restart.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[string]*Record
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]*Record)}
}

func (r *MemoryRepository) Insert(_ context.Context, rec *Record) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.records {
		if existing.MessageID == rec.MessageID && existing.DeadLetteredAt.Equal(rec.DeadLetteredAt) {
			return false, nil
		}
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ArchivedAt.IsZero() {
		rec.ArchivedAt = time.Now().UTC()
	}
	stored := *rec
	r.records[rec.ID] = &stored
	return true, nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, notFound(id)
	}
	out := *rec
	return &out, nil
}

func (r *MemoryRepository) List(_ context.Context, filter ListFilter) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		if filter.PendingOnly && rec.Replayed() {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DeadLetteredAt.After(out[j].DeadLetteredAt)
	})

	if filter.Offset >= len(out) {
		return []Record{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *MemoryRepository) MarkReplayed(_ context.Context, id, actor string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return notFound(id)
	}
	if rec.Replayed() {
		return alreadyReplayed(id)
	}
	rec.ReplayedAt = &at
	rec.ReplayedBy = actor
	return nil
}

func (r *MemoryRepository) UnmarkReplayed(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.records[id]; ok {
		rec.ReplayedAt = nil
		rec.ReplayedBy = ""
	}
	return nil
}

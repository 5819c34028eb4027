package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/quotagate/internal/domain/models"
	"github.com/turtacn/quotagate/internal/domain/repository"
)

var _ repository.CounterStore = (*MemoryCounterStore)(nil)

// MemoryCounterStore keeps counters in process memory. Counts are not shared
// between instances and are lost on restart, so it is only suitable for
// development and single-process tooling.
type MemoryCounterStore struct {
	mu   sync.Mutex
	rows map[models.CounterKey]models.UsageCounter
	now  func() time.Time
}

// NewMemoryCounterStore creates an empty in-memory store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		rows: make(map[models.CounterKey]models.UsageCounter),
		now:  time.Now,
	}
}

func (s *MemoryCounterStore) Find(_ context.Context, key models.CounterKey) (*models.UsageCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[normalize(key)]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (s *MemoryCounterStore) Increment(ctx context.Context, key models.CounterKey, limit int64) (*models.UsageCounter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key = normalize(key)
	row, ok := s.rows[key]
	if !ok {
		row = models.UsageCounter{
			KeyType:     key.KeyType,
			KeyValue:    key.KeyValue,
			Action:      key.Action,
			WindowStart: key.WindowStart,
		}
	}
	row.Count++
	row.Limit = limit
	row.UpdatedAt = s.now().UTC()
	s.rows[key] = row

	out := row
	return &out, nil
}

func (s *MemoryCounterStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for k := range s.rows {
		if k.WindowStart.Before(before) {
			delete(s.rows, k)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryCounterStore) Ping(context.Context) error { return nil }

func (s *MemoryCounterStore) Close() error { return nil }

// normalize makes time.Time comparable as a map key component.
func normalize(key models.CounterKey) models.CounterKey {
	key.WindowStart = time.Unix(key.WindowStart.Unix(), 0).UTC()
	return key
}

//Personal.AI order the ending

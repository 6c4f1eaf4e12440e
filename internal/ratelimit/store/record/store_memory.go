package record

import (
	"context"
	"sync"
	"time"

	"sayarat/internal/ratelimit/models"
)

// InMemoryStore keeps rate records in a mutex-guarded map. Every mutation runs
// inside the critical section, which gives Incr its per-key atomicity. State
// does not survive a process restart; use the redis store when it must.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[string]*models.Record),
	}
}

func (s *InMemoryStore) Get(_ context.Context, key string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[key]
	if !exists {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (s *InMemoryStore) Incr(_ context.Context, key string, window, retention time.Duration, now time.Time) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[key]
	blockExpired := exists && record.BlockedUntil != nil && !record.IsBlocked(now)
	if !exists || blockExpired || !now.Before(record.WindowStart.Add(window)) {
		// First request, an elapsed window, or an expired block: start a
		// fresh window. A still active block carries over; an expired one is
		// dropped so the caller is not immediately re-blocked.
		fresh := &models.Record{
			Key:         key,
			WindowStart: now,
			Attempts:    1,
		}
		if exists && record.IsBlocked(now) {
			fresh.BlockedUntil = record.BlockedUntil
		}
		record = fresh
		s.records[key] = record
	} else {
		record.Attempts++
	}
	record.ExpiresAt = now.Add(retention)

	copied := *record
	return &copied, nil
}

func (s *InMemoryStore) Block(_ context.Context, key string, until time.Time, retention time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[key]
	if !exists {
		record = &models.Record{Key: key, WindowStart: until.Add(-retention)}
		s.records[key] = record
	}
	record.BlockedUntil = &until
	if expires := until.Add(retention); expires.After(record.ExpiresAt) {
		record.ExpiresAt = expires
	}
	return nil
}

func (s *InMemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func (s *InMemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, record := range s.records {
		if now.After(record.ExpiresAt) && !record.IsBlocked(now) {
			delete(s.records, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of live records; used by tests and diagnostics.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

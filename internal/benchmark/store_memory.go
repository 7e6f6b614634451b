package benchmark

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps benchmark records in process memory.
// It is used when persistence is disabled and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Insert appends records.
func (s *MemoryStore) Insert(_ context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

// ListSince returns records tested at or after since, oldest first.
func (s *MemoryStore) ListSince(_ context.Context, since time.Time) ([]Record, error) {
	s.mu.RLock()
	var out []Record
	for _, r := range s.records {
		if !r.TestedAt.Before(since) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TestedAt.Before(out[j].TestedAt)
	})
	return out, nil
}

// DeleteOlderThan removes records tested before cutoff.
func (s *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0]
	var deleted int64
	for _, r := range s.records {
		if r.TestedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return deleted, nil
}

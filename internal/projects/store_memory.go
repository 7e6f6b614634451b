package projects

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
)

// MemoryStore keeps projects in process memory. Used in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Project
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Project)}
}

// Create stores p.
func (s *MemoryStore) Create(_ context.Context, p *Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[p.ID]; exists {
		return fmt.Errorf("project already exists: %s", p.ID)
	}
	s.items[p.ID] = clone(*p)
	return nil
}

// Get returns one project.
func (s *MemoryStore) Get(_ context.Context, id string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := clone(p)
	return &c, nil
}

// List returns every project, newest first.
func (s *MemoryStore) List(_ context.Context) ([]Project, error) {
	return s.filter(func(Project) bool { return true }), nil
}

// ListActive returns active projects.
func (s *MemoryStore) ListActive(_ context.Context) ([]Project, error) {
	return s.filter(func(p Project) bool { return p.IsActive }), nil
}

// Update overwrites p.
func (s *MemoryStore) Update(_ context.Context, p *Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[p.ID]; !ok {
		return ErrNotFound
	}
	s.items[p.ID] = clone(*p)
	return nil
}

func (s *MemoryStore) filter(keep func(Project) bool) []Project {
	s.mu.RLock()
	var out []Project
	for _, p := range s.items {
		if keep(p) {
			out = append(out, clone(p))
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func clone(p Project) Project {
	p.Metadata = maps.Clone(p.Metadata)
	return p
}

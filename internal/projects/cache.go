package projects

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"freeway/internal/observability"
)

const reloadTimeout = 30 * time.Second

type cachedProject struct {
	info ProjectInfo
	hash string
}

// Cache holds the active projects in memory for API key authentication.
// Keys are verified with bcrypt against every cached hash, so lookups are O(n).
type Cache struct {
	store Store
	keys  *KeyService

	mu       sync.RWMutex
	projects []cachedProject

	// loadMu serializes reloads so a slow reload cannot overwrite a newer one.
	loadMu  sync.Mutex
	reloads sync.WaitGroup
}

// NewCache creates an empty cache. Call LoadCache before serving requests.
func NewCache(store Store, keys *KeyService) *Cache {
	if keys == nil {
		keys = NewKeyService("")
	}
	return &Cache{store: store, keys: keys}
}

// LoadCache replaces the cache with the active projects from the store.
// On error the previous contents are kept.
func (c *Cache) LoadCache(ctx context.Context) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	active, err := c.store.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("load active projects: %w", err)
	}

	loaded := make([]cachedProject, 0, len(active))
	for _, p := range active {
		if p.APIKeyHash == "" {
			continue
		}
		loaded = append(loaded, cachedProject{
			info: ProjectInfo{
				ID:                 p.ID,
				Name:               p.Name,
				RateLimitPerMinute: p.RateLimitPerMinute,
				IsActive:           p.IsActive,
			},
			hash: p.APIKeyHash,
		})
	}

	c.mu.Lock()
	c.projects = loaded
	c.mu.Unlock()

	observability.ActiveProjects.Set(float64(len(loaded)))
	slog.Info("project cache loaded", "count", len(loaded))
	return nil
}

// ValidateAPIKey returns the project owning rawKey. The first matching hash wins.
func (c *Cache) ValidateAPIKey(rawKey string) (ProjectInfo, bool) {
	if rawKey == "" {
		return ProjectInfo{}, false
	}

	c.mu.RLock()
	snapshot := c.projects
	c.mu.RUnlock()

	// bcrypt is slow; compare outside the lock. The slice is never mutated in place.
	for _, p := range snapshot {
		if c.keys.Verify(rawKey, p.hash) {
			return p.info, true
		}
	}
	return ProjectInfo{}, false
}

// InvalidateCache reloads the cache in the background.
func (c *Cache) InvalidateCache() {
	c.reloads.Add(1)
	go func() {
		defer c.reloads.Done()
		ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
		defer cancel()
		if err := c.LoadCache(ctx); err != nil {
			slog.Error("project cache reload failed", "error", err)
		}
	}()
}

// Wait blocks until background reloads started by InvalidateCache finish.
func (c *Cache) Wait() {
	c.reloads.Wait()
}

// Count returns the number of cached projects.
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.projects)
}

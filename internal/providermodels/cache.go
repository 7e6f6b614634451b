// Package providermodels caches the model catalog of every provider, with
// change detection between validations and a reverse model→provider index.
package providermodels

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"freeway/internal/core"
	"freeway/internal/observability"
)

// ChangeResult describes how a provider's catalog moved between two updates.
type ChangeResult struct {
	Added      []core.ProviderModelInfo
	Removed    []core.ProviderModelInfo
	TotalCount int
}

// HasChanges reports whether any model was added or removed.
func (r ChangeResult) HasChanges() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0
}

// Summary is an overview of the cache contents.
type Summary struct {
	ProviderCount           int                   `json:"provider_count"`
	TotalModelCount         int                   `json:"total_model_count"`
	ModelCountByProvider    map[string]int        `json:"model_count_by_provider"`
	LastValidatedByProvider map[string]*time.Time `json:"last_validated_by_provider"`
}

// Snapshot is the serializable cache state, used for warm starts.
type Snapshot struct {
	Models        map[string][]core.ProviderModelInfo `json:"models"`
	LastValidated map[string]time.Time                `json:"last_validated"`
}

// Cache holds per-provider models. It is safe for concurrent use.
type Cache struct {
	mu            sync.RWMutex
	models        map[string][]core.ProviderModelInfo
	lastValidated map[string]time.Time
	// lowercase model ID -> set of providers hosting it as available
	index map[string]map[string]struct{}
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		models:        make(map[string][]core.ProviderModelInfo),
		lastValidated: make(map[string]time.Time),
		index:         make(map[string]map[string]struct{}),
	}
}

// GetModels returns a copy of the provider's models, or nil when uncached.
func (c *Cache) GetModels(provider string) []core.ProviderModelInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneModels(c.models[provider])
}

// GetAllProviderModels returns a deep copy of every provider's models.
func (c *Cache) GetAllProviderModels() map[string][]core.ProviderModelInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]core.ProviderModelInfo, len(c.models))
	for name, models := range c.models {
		out[name] = cloneModels(models)
	}
	return out
}

// HasProviders reports whether any provider catalog has been cached.
func (c *Cache) HasProviders() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.models) > 0
}

// IsValidModel reports whether modelID is an available model of provider.
// Providers that have never been cached accept any model.
func (c *Cache) IsValidModel(provider, modelID string) bool {
	if provider == "" || modelID == "" {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	models, ok := c.models[provider]
	if !ok {
		slog.Debug("provider not cached, allowing model pass-through", "provider", provider, "model", modelID)
		return true
	}
	for _, m := range models {
		if m.IsAvailable && strings.EqualFold(m.ID, modelID) {
			return true
		}
	}
	return false
}

// FindProvidersForModel returns the sorted names of providers hosting modelID.
func (c *Cache) FindProvidersForModel(modelID string) []string {
	if modelID == "" {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []string
	if set, ok := c.index[strings.ToLower(modelID)]; ok {
		for name := range set {
			out = append(out, name)
		}
	} else {
		for name, models := range c.models {
			for _, m := range models {
				if m.IsAvailable && strings.EqualFold(m.ID, modelID) {
					out = append(out, name)
					break
				}
			}
		}
	}
	sort.Strings(out)
	return out
}

// UpdateModels replaces the provider's catalog and reports the difference
// from the previous one. Model IDs are compared case-insensitively.
func (c *Cache) UpdateModels(provider string, models []core.ProviderModelInfo) ChangeResult {
	next := cloneModels(models)
	for i := range next {
		next[i].ProviderName = provider
	}

	c.mu.Lock()
	prev := c.models[provider]
	c.models[provider] = next
	c.lastValidated[provider] = time.Now().UTC()
	c.reindex(provider, prev, next)
	c.mu.Unlock()

	result := diff(prev, next)
	observability.ProviderModels.WithLabelValues(provider).Set(float64(len(next)))
	if result.HasChanges() {
		slog.Info("provider models updated",
			"provider", provider,
			"added", len(result.Added),
			"removed", len(result.Removed),
			"total", result.TotalCount,
		)
	} else {
		slog.Debug("provider models unchanged", "provider", provider, "total", result.TotalCount)
	}
	return result
}

// GetLastValidated returns when the provider was last updated.
func (c *Cache) GetLastValidated(provider string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.lastValidated[provider]
	return t, ok
}

// GetCacheSummary returns per-provider counts and validation times.
func (c *Cache) GetCacheSummary() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Summary{
		ProviderCount:           len(c.models),
		ModelCountByProvider:    make(map[string]int, len(c.models)),
		LastValidatedByProvider: make(map[string]*time.Time, len(c.models)),
	}
	for name, models := range c.models {
		s.TotalModelCount += len(models)
		s.ModelCountByProvider[name] = len(models)
		if t, ok := c.lastValidated[name]; ok {
			s.LastValidatedByProvider[name] = &t
		} else {
			s.LastValidatedByProvider[name] = nil
		}
	}
	return s
}

// Snapshot returns a copy of the cache state.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Snapshot{
		Models:        make(map[string][]core.ProviderModelInfo, len(c.models)),
		LastValidated: make(map[string]time.Time, len(c.lastValidated)),
	}
	for name, models := range c.models {
		s.Models[name] = cloneModels(models)
	}
	for name, t := range c.lastValidated {
		s.LastValidated[name] = t
	}
	return s
}

// Restore replaces the cache state with s and rebuilds the reverse index.
func (c *Cache) Restore(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models = make(map[string][]core.ProviderModelInfo, len(s.Models))
	c.lastValidated = make(map[string]time.Time, len(s.LastValidated))
	c.index = make(map[string]map[string]struct{})
	for name, models := range s.Models {
		next := cloneModels(models)
		c.models[name] = next
		c.reindex(name, nil, next)
		observability.ProviderModels.WithLabelValues(name).Set(float64(len(next)))
	}
	for name, t := range s.LastValidated {
		c.lastValidated[name] = t
	}
}

// reindex removes provider from every previous index entry, then inserts it
// for the available models of next. Caller holds the write lock.
func (c *Cache) reindex(provider string, prev, next []core.ProviderModelInfo) {
	for _, m := range prev {
		key := strings.ToLower(m.ID)
		if set, ok := c.index[key]; ok {
			delete(set, provider)
			if len(set) == 0 {
				delete(c.index, key)
			}
		}
	}
	for _, m := range next {
		if !m.IsAvailable {
			continue
		}
		key := strings.ToLower(m.ID)
		set, ok := c.index[key]
		if !ok {
			set = make(map[string]struct{})
			c.index[key] = set
		}
		set[provider] = struct{}{}
	}
}

func diff(prev, next []core.ProviderModelInfo) ChangeResult {
	prevIDs := make(map[string]struct{}, len(prev))
	for _, m := range prev {
		prevIDs[strings.ToLower(m.ID)] = struct{}{}
	}
	nextIDs := make(map[string]struct{}, len(next))
	for _, m := range next {
		nextIDs[strings.ToLower(m.ID)] = struct{}{}
	}

	result := ChangeResult{TotalCount: len(next)}
	for _, m := range next {
		if _, ok := prevIDs[strings.ToLower(m.ID)]; !ok {
			result.Added = append(result.Added, m)
		}
	}
	for _, m := range prev {
		if _, ok := nextIDs[strings.ToLower(m.ID)]; !ok {
			result.Removed = append(result.Removed, m)
		}
	}
	return result
}

func cloneModels(models []core.ProviderModelInfo) []core.ProviderModelInfo {
	if models == nil {
		return nil
	}
	out := make([]core.ProviderModelInfo, len(models))
	for i, m := range models {
		if m.CreatedAt != nil {
			t := *m.CreatedAt
			m.CreatedAt = &t
		}
		out[i] = m
	}
	return out
}

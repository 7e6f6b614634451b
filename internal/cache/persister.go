package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"freeway/config"
	"freeway/internal/core"
	"freeway/internal/modelcache"
	"freeway/internal/providermodels"
)

// New creates the snapshot backend selected by cfg.
func New(ctx context.Context, cfg config.CacheConfig) (Cache, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalCache(cfg.LocalPath), nil
	case "redis":
		return NewRedisCache(ctx, RedisConfig{
			URL: cfg.Redis.URL,
			Key: cfg.Redis.Key,
			TTL: time.Duration(cfg.Redis.TTLSeconds) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown cache type: %s (valid: local, redis)", cfg.Type)
	}
}

// Persister saves and restores the model caches through a Cache backend.
// Saves whose model content matches the last write are skipped.
type Persister struct {
	backend   Cache
	catalog   *modelcache.Cache
	providers *providermodels.Cache

	mu         sync.Mutex
	lastDigest uint64
}

// NewPersister creates a Persister for the two model caches.
func NewPersister(backend Cache, catalog *modelcache.Cache, providers *providermodels.Cache) *Persister {
	return &Persister{backend: backend, catalog: catalog, providers: providers}
}

// Load restores both caches from the stored snapshot. A missing snapshot is not an error.
func (p *Persister) Load(ctx context.Context) (bool, error) {
	snap, err := p.backend.Get(ctx)
	if err != nil {
		return false, err
	}
	if snap == nil {
		return false, nil
	}
	if snap.Version != SnapshotVersion {
		slog.Warn("ignoring model snapshot with unknown version", "version", snap.Version)
		return false, nil
	}

	p.catalog.Restore(snap.Catalog)
	p.providers.Restore(snap.Providers)

	p.mu.Lock()
	p.lastDigest = snap.Digest
	p.mu.Unlock()

	slog.Info("restored model caches from snapshot",
		"updated_at", snap.UpdatedAt,
		"free", len(snap.Catalog.FreeModels),
		"paid", len(snap.Catalog.PaidModels),
		"providers", len(snap.Providers.Models),
	)
	return true, nil
}

// Save writes the current cache state unless it is unchanged since the last save.
// It reports whether a write happened.
func (p *Persister) Save(ctx context.Context) (bool, error) {
	snap := &ModelSnapshot{
		Version:   SnapshotVersion,
		UpdatedAt: time.Now().UTC(),
		Catalog:   p.catalog.Snapshot(),
		Providers: p.providers.Snapshot(),
	}
	digest, err := Digest(snap)
	if err != nil {
		return false, err
	}
	snap.Digest = digest

	p.mu.Lock()
	defer p.mu.Unlock()
	if digest == p.lastDigest {
		slog.Debug("model snapshot unchanged, skipping write")
		return false, nil
	}
	if err := p.backend.Set(ctx, snap); err != nil {
		return false, err
	}
	p.lastDigest = digest
	return true, nil
}

// Close releases the backend.
func (p *Persister) Close() error {
	return p.backend.Close()
}

type digestProvider struct {
	Name   string                   `json:"name"`
	Models []core.ProviderModelInfo `json:"models"`
}

// Digest hashes the model content of snap. Timestamps do not contribute.
func Digest(snap *ModelSnapshot) (uint64, error) {
	providers := make([]digestProvider, 0, len(snap.Providers.Models))
	for name, models := range snap.Providers.Models {
		providers = append(providers, digestProvider{Name: name, Models: models})
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].Name < providers[j].Name })

	content := struct {
		Free         []modelcache.CachedModel `json:"free"`
		Paid         []modelcache.CachedModel `json:"paid"`
		SelectedFree string                   `json:"selected_free"`
		SelectedPaid string                   `json:"selected_paid"`
		Providers    []digestProvider         `json:"providers"`
	}{
		Free:         snap.Catalog.FreeModels,
		Paid:         snap.Catalog.PaidModels,
		SelectedFree: snap.Catalog.SelectedFree,
		SelectedPaid: snap.Catalog.SelectedPaid,
		Providers:    providers,
	}
	data, err := json.Marshal(content)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal snapshot digest: %w", err)
	}
	return xxhash.Sum64(data), nil
}

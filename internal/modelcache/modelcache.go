// Package modelcache keeps the ranked free and paid chat models offered by the
// paid aggregator's catalog, together with the model selected for each tier.
package modelcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"freeway/internal/core"
	"freeway/internal/observability"
)

// MinPaidContextLength is the smallest context window accepted for paid models.
const MinPaidContextLength = 8000

// ErrEmptyCatalog is returned by RefreshModels when the source lists no models.
var ErrEmptyCatalog = errors.New("model catalog is empty")

// CachedModel is one ranked catalog entry. Rank is 1-based within its tier.
type CachedModel struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	ContextLength   int    `json:"context_length"`
	PromptPrice     string `json:"prompt_price"`
	CompletionPrice string `json:"completion_price"`
	IsFree          bool   `json:"is_free"`
	Rank            int    `json:"rank"`
}

// Prices returns the per-token prompt and completion prices.
// Unparseable prices are reported as zero.
func (m CachedModel) Prices() (prompt, completion float64) {
	prompt, _ = strconv.ParseFloat(m.PromptPrice, 64)
	completion, _ = strconv.ParseFloat(m.CompletionPrice, 64)
	return prompt, completion
}

// Snapshot is the serializable state of the cache, used for warm starts.
type Snapshot struct {
	FreeModels   []CachedModel `json:"free_models"`
	PaidModels   []CachedModel `json:"paid_models"`
	SelectedFree string        `json:"selected_free,omitempty"`
	SelectedPaid string        `json:"selected_paid,omitempty"`
	LastUpdated  time.Time     `json:"last_updated"`
}

// Cache holds the ranked model tiers. It is safe for concurrent use.
type Cache struct {
	source core.CatalogSource

	mu           sync.RWMutex
	free         []CachedModel
	paid         []CachedModel
	selectedFree string
	selectedPaid string
	lastUpdated  time.Time
}

// New creates an empty cache fed by source.
func New(source core.CatalogSource) *Cache {
	return &Cache{source: source}
}

// GetFreeModels returns the ranked free models.
func (c *Cache) GetFreeModels() []CachedModel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]CachedModel(nil), c.free...)
}

// GetPaidModels returns the ranked paid models.
func (c *Cache) GetPaidModels() []CachedModel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]CachedModel(nil), c.paid...)
}

// GetSelectedFreeModel returns the selected free model, if any.
func (c *Cache) GetSelectedFreeModel() (CachedModel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return find(c.free, c.selectedFree)
}

// GetSelectedPaidModel returns the selected paid model, if any.
func (c *Cache) GetSelectedPaidModel() (CachedModel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return find(c.paid, c.selectedPaid)
}

// SelectedPaidModelID returns the selected paid model ID, or "".
func (c *Cache) SelectedPaidModelID() string {
	m, ok := c.GetSelectedPaidModel()
	if !ok {
		return ""
	}
	return m.ID
}

// SetSelectedFreeModel pins the free model. Unknown IDs leave the selection unchanged.
func (c *Cache) SetSelectedFreeModel(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := find(c.free, id)
	if !ok {
		slog.Warn("ignoring unknown free model selection", "model", id)
		return false
	}
	c.selectedFree = m.ID
	slog.Info("free model selected", "model", m.ID)
	return true
}

// SetSelectedPaidModel pins the paid model. Unknown IDs leave the selection unchanged.
func (c *Cache) SetSelectedPaidModel(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := find(c.paid, id)
	if !ok {
		slog.Warn("ignoring unknown paid model selection", "model", id)
		return false
	}
	c.selectedPaid = m.ID
	slog.Info("paid model selected", "model", m.ID)
	return true
}

// GetModelByID looks the ID up in both tiers, ignoring case.
func (c *Cache) GetModelByID(id string) (CachedModel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if m, ok := find(c.free, id); ok {
		return m, true
	}
	return find(c.paid, id)
}

// GetLastUpdated returns the time of the last successful refresh.
func (c *Cache) GetLastUpdated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdated
}

// RefreshModels rebuilds both tiers from the catalog source.
// On a fetch error or an empty catalog the previous state is kept.
func (c *Cache) RefreshModels(ctx context.Context) error {
	if c.source == nil {
		return errors.New("model cache has no catalog source")
	}
	catalog, err := c.source.FetchCatalog(ctx)
	if err != nil {
		slog.Error("failed to refresh model catalog", "error", err)
		return fmt.Errorf("fetch catalog: %w", err)
	}
	if len(catalog) == 0 {
		slog.Warn("model catalog is empty, keeping previous models")
		return ErrEmptyCatalog
	}

	free, paid := Partition(catalog)

	c.mu.Lock()
	c.free = free
	c.paid = paid
	c.selectedFree = keepOrFirst(free, c.selectedFree)
	c.selectedPaid = keepOrFirst(paid, c.selectedPaid)
	c.lastUpdated = time.Now()
	selectedFree, selectedPaid := c.selectedFree, c.selectedPaid
	c.mu.Unlock()

	observability.CachedModels.WithLabelValues("free").Set(float64(len(free)))
	observability.CachedModels.WithLabelValues("paid").Set(float64(len(paid)))
	slog.Info("model catalog refreshed",
		"free", len(free),
		"paid", len(paid),
		"selected_free", selectedFree,
		"selected_paid", selectedPaid,
	)
	return nil
}

// Snapshot returns a copy of the cache state.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		FreeModels:   append([]CachedModel(nil), c.free...),
		PaidModels:   append([]CachedModel(nil), c.paid...),
		SelectedFree: c.selectedFree,
		SelectedPaid: c.selectedPaid,
		LastUpdated:  c.lastUpdated,
	}
}

// Restore replaces the cache state with s. Selections missing from s fall back to rank 1.
func (c *Cache) Restore(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.free = append([]CachedModel(nil), s.FreeModels...)
	c.paid = append([]CachedModel(nil), s.PaidModels...)
	c.selectedFree = keepOrFirst(c.free, s.SelectedFree)
	c.selectedPaid = keepOrFirst(c.paid, s.SelectedPaid)
	c.lastUpdated = s.LastUpdated
	observability.CachedModels.WithLabelValues("free").Set(float64(len(c.free)))
	observability.CachedModels.WithLabelValues("paid").Set(float64(len(c.paid)))
}

// Partition splits the catalog into ranked free and paid tiers.
// Free models are ordered by context length descending, paid models by total
// per-token price ascending. Both sorts are stable.
func Partition(catalog []core.CatalogModel) (free, paid []CachedModel) {
	for _, m := range catalog {
		cm := CachedModel{
			ID:              m.ID,
			Name:            m.Name,
			Description:     m.Description,
			ContextLength:   m.ContextLength,
			PromptPrice:     m.PromptPrice,
			CompletionPrice: m.CompletionPrice,
		}
		switch {
		case IsFreeModel(m):
			cm.IsFree = true
			free = append(free, cm)
		case IsPaidCandidate(m):
			paid = append(paid, cm)
		}
	}

	sort.SliceStable(free, func(i, j int) bool {
		return free[i].ContextLength > free[j].ContextLength
	})
	sort.SliceStable(paid, func(i, j int) bool {
		return totalPrice(paid[i]) < totalPrice(paid[j])
	})
	for i := range free {
		free[i].Rank = i + 1
	}
	for i := range paid {
		paid[i].Rank = i + 1
	}
	return free, paid
}

// IsFreeModel reports whether the catalog entry is free: a ":free" suffix or
// both prices exactly "0".
func IsFreeModel(m core.CatalogModel) bool {
	if strings.HasSuffix(strings.ToLower(m.ID), ":free") {
		return true
	}
	return m.PromptPrice == "0" && m.CompletionPrice == "0"
}

// IsPaidCandidate reports whether a non-free entry qualifies for the paid tier.
func IsPaidCandidate(m core.CatalogModel) bool {
	id := strings.ToLower(m.ID)
	if strings.Contains(id, "/auto") || strings.Contains(id, "router") {
		return false
	}
	if m.ContextLength < MinPaidContextLength {
		return false
	}
	if _, err := strconv.ParseFloat(m.PromptPrice, 64); err != nil {
		return false
	}
	if _, err := strconv.ParseFloat(m.CompletionPrice, 64); err != nil {
		return false
	}
	return true
}

func totalPrice(m CachedModel) float64 {
	p, c := m.Prices()
	return p + c
}

func find(models []CachedModel, id string) (CachedModel, bool) {
	if id == "" {
		return CachedModel{}, false
	}
	for _, m := range models {
		if strings.EqualFold(m.ID, id) {
			return m, true
		}
	}
	return CachedModel{}, false
}

func keepOrFirst(models []CachedModel, selected string) string {
	if m, ok := find(models, selected); ok {
		return m.ID
	}
	if len(models) > 0 {
		return models[0].ID
	}
	return ""
}

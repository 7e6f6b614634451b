// Package benchmark keeps the rolling per-provider scores that decide the
// order in which free providers are tried.
package benchmark

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"freeway/internal/observability"
)

// DefaultProviderOrder is the ranking used for providers with no score yet.
var DefaultProviderOrder = []string{"gemini", "groq", "mistral", "cohere", "huggingface"}

// RefreshWindow is how far back RefreshFromDatabase looks.
const RefreshWindow = 24 * time.Hour

// minSuccessRate is the rate under which a scored provider is ranked last.
const minSuccessRate = 0.3

// ProviderScore is the rolling benchmark state of one provider.
type ProviderScore struct {
	ProviderName      string  `json:"provider_name"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
	SuccessRate       float64 `json:"success_rate"`
	TotalTests        int     `json:"total_tests"`
	Score             float64 `json:"score"`
}

func (s *ProviderScore) recompute() {
	s.Score = s.SuccessRate*100 - s.AvgResponseTimeMs/100
}

// Cache holds provider scores and the derived ranking. It is safe for concurrent use.
type Cache struct {
	store Store

	mu     sync.RWMutex
	scores map[string]*ProviderScore
	ranked []string
}

// NewCache creates a cache that reads history from store. store may be nil,
// in which case RefreshFromDatabase is a no-op.
func NewCache(store Store) *Cache {
	return &Cache{
		store:  store,
		scores: make(map[string]*ProviderScore),
		ranked: append([]string(nil), DefaultProviderOrder...),
	}
}

// GetRankedProviders returns provider names, best first.
func (c *Cache) GetRankedProviders() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.ranked...)
}

// GetProviderScore returns the provider's score, if it has one.
func (c *Cache) GetProviderScore(name string) (ProviderScore, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.scores[name]
	if !ok {
		return ProviderScore{}, false
	}
	return *s, true
}

// GetAllScores returns every score in ranking order.
func (c *Cache) GetAllScores() []ProviderScore {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ProviderScore, 0, len(c.scores))
	for _, name := range c.ranked {
		if s, ok := c.scores[name]; ok {
			out = append(out, *s)
		}
	}
	return out
}

// AddBenchmarkResult folds one observation into the provider's rolling score
// and re-ranks. Only successful calls contribute to the average latency.
func (c *Cache) AddBenchmarkResult(name string, responseTimeMs int, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.scores[name]
	if !ok {
		s = &ProviderScore{ProviderName: name}
		c.scores[name] = s
	}

	total := s.AvgResponseTimeMs * float64(s.TotalTests)
	successCount := int(math.Round(s.SuccessRate * float64(s.TotalTests)))

	s.TotalTests++
	if success {
		successCount++
		total += float64(responseTimeMs)
	}
	s.AvgResponseTimeMs = total / float64(s.TotalTests)
	s.SuccessRate = float64(successCount) / float64(s.TotalTests)
	s.recompute()

	observability.ProviderScore.WithLabelValues(name).Set(s.Score)
	c.rerank()
}

// RefreshFromDatabase rebuilds every score from the stored benchmark rows of
// the last RefreshWindow. On a store error the current scores are kept.
func (c *Cache) RefreshFromDatabase(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	records, err := c.store.ListSince(ctx, time.Now().Add(-RefreshWindow))
	if err != nil {
		slog.Error("failed to refresh benchmark cache from database", "error", err)
		return fmt.Errorf("list benchmarks: %w", err)
	}

	scores := Aggregate(records)

	c.mu.Lock()
	c.scores = scores
	c.rerank()
	c.mu.Unlock()

	for name, s := range scores {
		observability.ProviderScore.WithLabelValues(name).Set(s.Score)
	}
	slog.Info("refreshed benchmark cache", "providers", len(scores))
	return nil
}

// Aggregate computes per-provider scores from raw benchmark rows.
// Average latency counts successful rows only.
func Aggregate(records []Record) map[string]*ProviderScore {
	type acc struct {
		count, successes int
		latency          float64
	}
	byProvider := make(map[string]*acc)
	for _, r := range records {
		a, ok := byProvider[r.ProviderName]
		if !ok {
			a = &acc{}
			byProvider[r.ProviderName] = a
		}
		a.count++
		if r.Success {
			a.successes++
			a.latency += float64(r.ResponseTimeMs)
		}
	}

	out := make(map[string]*ProviderScore, len(byProvider))
	for name, a := range byProvider {
		s := &ProviderScore{
			ProviderName: name,
			SuccessRate:  float64(a.successes) / float64(a.count),
			TotalTests:   a.count,
		}
		if a.successes > 0 {
			s.AvgResponseTimeMs = a.latency / float64(a.successes)
		}
		s.recompute()
		out[name] = s
	}
	return out
}

// rerank recomputes the ranking. Caller holds the write lock.
func (c *Cache) rerank() {
	candidates := append([]string(nil), DefaultProviderOrder...)
	var extra []string
	for name := range c.scores {
		if !slices.Contains(DefaultProviderOrder, name) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	candidates = append(candidates, extra...)

	keys := make(map[string]float64, len(candidates))
	for _, name := range candidates {
		keys[name] = c.sortKey(name)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return keys[candidates[i]] > keys[candidates[j]]
	})
	c.ranked = candidates

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		parts := make([]string, len(candidates))
		for i, name := range candidates {
			score := "n/a"
			if s, ok := c.scores[name]; ok {
				score = fmt.Sprintf("%.1f", s.Score)
			}
			parts[i] = fmt.Sprintf("%d. %s (%s)", i+1, name, score)
		}
		slog.Debug("provider rankings updated", "rankings", strings.Join(parts, ", "))
	}
}

func (c *Cache) sortKey(name string) float64 {
	if s, ok := c.scores[name]; ok {
		if s.SuccessRate < minSuccessRate {
			return math.Inf(-1)
		}
		return s.Score
	}
	if i := slices.Index(DefaultProviderOrder, name); i >= 0 {
		return float64(50 - i)
	}
	return 0
}

// Package jobs runs the gateway's background work: provider model validation,
// benchmark probes, catalog and project refreshes, and score reloads.
package jobs

import (
	"context"
	"time"

	"freeway/config"
	"freeway/internal/benchmark"
	"freeway/internal/core"
	"freeway/internal/providermodels"
)

// Job names, used in logs, metrics and the admin trigger endpoints.
const (
	JobValidateModels         = "validate_models"
	JobRunBenchmark           = "run_benchmark"
	JobRefreshModels          = "refresh_models"
	JobRefreshProjectCache    = "refresh_project_cache"
	JobRefreshBenchmarkScores = "refresh_benchmark_scores"
)

// ProviderSource lists the adapters known to the gateway.
type ProviderSource interface {
	All() []core.Provider
}

// ModelIndex receives validated provider catalogs.
type ModelIndex interface {
	UpdateModels(provider string, models []core.ProviderModelInfo) providermodels.ChangeResult
	GetBestModel(provider string) (core.ProviderModelInfo, bool)
	GetBestModelID(provider string) string
	GetCacheSummary() providermodels.Summary
}

// Scores receives benchmark outcomes and reloads them from storage.
type Scores interface {
	AddBenchmarkResult(name string, responseTimeMs int, success bool)
	GetRankedProviders() []string
	RefreshFromDatabase(ctx context.Context) error
}

// CatalogRefresher reloads the paid aggregator catalog.
type CatalogRefresher interface {
	RefreshModels(ctx context.Context) error
}

// ProjectLoader reloads the project authentication cache.
type ProjectLoader interface {
	LoadCache(ctx context.Context) error
}

// SnapshotSaver persists the model caches after they change.
type SnapshotSaver interface {
	Save(ctx context.Context) (bool, error)
}

// Config holds job tuning.
type Config struct {
	ValidationConcurrency int
	ValidationDelay       time.Duration
	BenchmarkRetention    time.Duration

	ModelRefreshInterval   time.Duration
	ProjectRefreshInterval time.Duration
	ValidationInterval     time.Duration
	BenchmarkInterval      time.Duration
	ScoreRefreshInterval   time.Duration
}

// ConfigFrom converts the application job settings, applying defaults.
func ConfigFrom(cfg config.JobsConfig) Config {
	out := Config{
		ValidationConcurrency:  cfg.ValidationConcurrency,
		ValidationDelay:        time.Duration(cfg.ValidationDelayMs) * time.Millisecond,
		BenchmarkRetention:     time.Duration(cfg.BenchmarkRetentionDays) * 24 * time.Hour,
		ModelRefreshInterval:   time.Duration(cfg.ModelRefreshHours) * time.Hour,
		ProjectRefreshInterval: time.Duration(cfg.ProjectRefreshHours) * time.Hour,
		ValidationInterval:     time.Duration(cfg.ValidationHours) * time.Hour,
		BenchmarkInterval:      time.Duration(cfg.BenchmarkHours) * time.Hour,
		ScoreRefreshInterval:   time.Duration(cfg.ScoreRefreshMinutes) * time.Minute,
	}
	if out.ValidationConcurrency <= 0 {
		out.ValidationConcurrency = 3
	}
	if out.ValidationDelay < 0 {
		out.ValidationDelay = 0
	}
	if out.BenchmarkRetention <= 0 {
		out.BenchmarkRetention = 30 * 24 * time.Hour
	}
	defaultInterval(&out.ModelRefreshInterval, 24*time.Hour)
	defaultInterval(&out.ProjectRefreshInterval, 24*time.Hour)
	defaultInterval(&out.ValidationInterval, 24*time.Hour)
	defaultInterval(&out.BenchmarkInterval, 6*time.Hour)
	defaultInterval(&out.ScoreRefreshInterval, time.Hour)
	return out
}

func defaultInterval(d *time.Duration, def time.Duration) {
	if *d <= 0 {
		*d = def
	}
}

// Deps wires the jobs to the caches they maintain. Nil fields disable the
// jobs that need them.
type Deps struct {
	Providers      ProviderSource
	ProviderModels ModelIndex
	Scores         Scores
	BenchmarkStore benchmark.Store
	Catalog        CatalogRefresher
	Projects       ProjectLoader
	Snapshots      SnapshotSaver
}

// Runner executes the jobs. Every method is safe to call concurrently, but
// each job serializes with itself.
type Runner struct {
	deps Deps
	cfg  Config

	running map[string]*jobLock
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewRunner creates a Runner.
func NewRunner(deps Deps, cfg Config) *Runner {
	r := &Runner{
		deps:    deps,
		cfg:     cfg,
		running: make(map[string]*jobLock),
		now:     time.Now,
		sleep:   sleepContext,
	}
	for _, name := range []string{JobValidateModels, JobRunBenchmark, JobRefreshModels, JobRefreshProjectCache, JobRefreshBenchmarkScores} {
		r.running[name] = &jobLock{}
	}
	return r
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"freeway/internal/core"
	"freeway/internal/observability"
)

// ValidationResult is the outcome of validating one provider's catalog.
type ValidationResult struct {
	Provider   string `json:"provider"`
	Success    bool   `json:"success"`
	ModelCount int    `json:"model_count"`
	Added      int    `json:"added"`
	Removed    int    `json:"removed"`
	BestModel  string `json:"best_model,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ValidationReport summarizes a validation run.
type ValidationReport struct {
	Results     []ValidationResult `json:"results"`
	Succeeded   int                `json:"succeeded"`
	TotalModels int                `json:"total_models"`
}

// ValidateModels fetches the model list of every enabled provider that can
// list models and updates the provider model cache. A provider whose fetch
// fails or returns nothing keeps its previous catalog.
func (r *Runner) ValidateModels(ctx context.Context) (*ValidationReport, error) {
	if r.deps.Providers == nil || r.deps.ProviderModels == nil {
		return nil, fmt.Errorf("model validation is not configured")
	}

	var report *ValidationReport
	err := r.exclusive(JobValidateModels, func() error {
		report = r.validateModels(ctx)
		return nil
	})
	observability.RecordJob(JobValidateModels, err)
	return report, err
}

func (r *Runner) validateModels(ctx context.Context) *ValidationReport {
	fetchers := make(map[string]core.ModelFetcher)
	var names []string
	for _, p := range r.deps.Providers.All() {
		f, ok := p.(core.ModelFetcher)
		if !ok || !p.IsEnabled() {
			continue
		}
		fetchers[p.Name()] = f
		names = append(names, p.Name())
	}
	slog.Info("starting model validation", "providers", strings.Join(names, ", "))

	var (
		mu      sync.Mutex
		results = make([]ValidationResult, 0, len(names))
		sem     = semaphore.NewWeighted(int64(r.cfg.ValidationConcurrency))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		fetcher := fetchers[name]
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				mu.Lock()
				results = append(results, ValidationResult{Provider: name, Error: err.Error()})
				mu.Unlock()
				return nil
			}
			defer sem.Release(1)

			res := r.validateProvider(gctx, name, fetcher)
			// The slot stays held for the delay so vendors see spaced-out calls.
			_ = r.sleep(gctx, r.cfg.ValidationDelay)

			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Provider < results[j].Provider })
	report := &ValidationReport{Results: results}
	var failed []string
	for _, res := range results {
		if res.Success {
			report.Succeeded++
			report.TotalModels += res.ModelCount
		} else {
			failed = append(failed, fmt.Sprintf("%s (%s)", res.Provider, res.Error))
		}
	}

	slog.Info("model validation complete",
		"validated", report.Succeeded,
		"providers", len(results),
		"total_models", report.TotalModels,
	)
	if len(failed) > 0 {
		slog.Warn("model validation failed for some providers", "failed", strings.Join(failed, ", "))
	}
	summary := r.deps.ProviderModels.GetCacheSummary()
	slog.Info("provider model cache summary", "providers", summary.ProviderCount, "models", summary.TotalModelCount)

	r.saveSnapshot(ctx)
	return report
}

func (r *Runner) validateProvider(ctx context.Context, name string, fetcher core.ModelFetcher) ValidationResult {
	res := ValidationResult{Provider: name}

	list, err := fetchModels(ctx, fetcher)
	if err != nil {
		slog.Warn("failed to fetch models, keeping previous cache", "provider", name, "error", err)
		res.Error = err.Error()
		return res
	}
	if len(list.Models) == 0 {
		slog.Warn("provider returned empty model list, keeping previous cache", "provider", name)
		res.Error = "Empty model list returned"
		return res
	}

	changes := r.deps.ProviderModels.UpdateModels(name, list.Models)
	res.Success = true
	res.ModelCount = changes.TotalCount
	res.Added = len(changes.Added)
	res.Removed = len(changes.Removed)

	if best, ok := r.deps.ProviderModels.GetBestModel(name); ok {
		res.BestModel = best.ID
		slog.Info("best model selected", "provider", name, "model", best.ID, "context_length", best.ContextLength)
	}
	slog.Info("validated provider models",
		"provider", name,
		"models", changes.TotalCount,
		"response_time_ms", list.ResponseTimeMs,
	)
	return res
}

// fetchModels calls the fetcher, converting a panic into an error.
func fetchModels(ctx context.Context, fetcher core.ModelFetcher) (list *core.ModelListResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic while fetching models: %v", rec)
		}
	}()
	list, err = fetcher.FetchModels(ctx)
	if err == nil && list == nil {
		err = fmt.Errorf("no model list returned")
	}
	return list, err
}

func (r *Runner) saveSnapshot(ctx context.Context) {
	if r.deps.Snapshots == nil {
		return
	}
	if _, err := r.deps.Snapshots.Save(ctx); err != nil {
		slog.Warn("failed to save model snapshot", "error", err)
	}
}

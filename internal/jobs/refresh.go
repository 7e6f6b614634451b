package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"freeway/internal/observability"
)

// RefreshModels reloads the paid aggregator catalog and saves a snapshot.
func (r *Runner) RefreshModels(ctx context.Context) error {
	if r.deps.Catalog == nil {
		return fmt.Errorf("model catalog is not configured")
	}
	err := r.exclusive(JobRefreshModels, func() error {
		if err := r.deps.Catalog.RefreshModels(ctx); err != nil {
			return err
		}
		r.saveSnapshot(ctx)
		return nil
	})
	if err != nil {
		slog.Error("model catalog refresh failed", "error", err)
	}
	observability.RecordJob(JobRefreshModels, err)
	return err
}

// RefreshProjectCache reloads the active projects.
func (r *Runner) RefreshProjectCache(ctx context.Context) error {
	if r.deps.Projects == nil {
		return fmt.Errorf("project cache is not configured")
	}
	err := r.exclusive(JobRefreshProjectCache, func() error {
		return r.deps.Projects.LoadCache(ctx)
	})
	if err != nil {
		slog.Error("project cache refresh failed", "error", err)
	}
	observability.RecordJob(JobRefreshProjectCache, err)
	return err
}

// RefreshBenchmarkScores rebuilds provider scores from stored benchmark records.
func (r *Runner) RefreshBenchmarkScores(ctx context.Context) error {
	if r.deps.Scores == nil {
		return fmt.Errorf("benchmark scores are not configured")
	}
	err := r.exclusive(JobRefreshBenchmarkScores, func() error {
		return r.deps.Scores.RefreshFromDatabase(ctx)
	})
	if err != nil {
		slog.Error("benchmark score refresh failed", "error", err)
	}
	observability.RecordJob(JobRefreshBenchmarkScores, err)
	return err
}

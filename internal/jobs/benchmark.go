package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"freeway/internal/benchmark"
	"freeway/internal/core"
	"freeway/internal/observability"
)

// Probe request sent to every free provider.
var (
	benchmarkMessages = []core.Message{{Role: "user", Content: "Say hello in 5 words or less"}}
	benchmarkMaxTok   = 50
	benchmarkTemp     = 0.7
)

// BenchmarkReport summarizes a benchmark run.
type BenchmarkReport struct {
	Results   []benchmark.Record `json:"results"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Rankings  []string           `json:"rankings"`
}

// RunBenchmark sends one probe completion to every enabled free provider,
// feeds each outcome into the score cache, stores the records and prunes
// records past the retention window.
func (r *Runner) RunBenchmark(ctx context.Context) (*BenchmarkReport, error) {
	if r.deps.Providers == nil || r.deps.Scores == nil {
		return nil, fmt.Errorf("benchmark is not configured")
	}

	var report *BenchmarkReport
	err := r.exclusive(JobRunBenchmark, func() error {
		report = r.runBenchmark(ctx)
		return nil
	})
	observability.RecordJob(JobRunBenchmark, err)
	return report, err
}

func (r *Runner) runBenchmark(ctx context.Context) *BenchmarkReport {
	slog.Info("starting provider benchmark run")
	opts := core.ChatCompletionOptions{MaxTokens: &benchmarkMaxTok, Temperature: &benchmarkTemp}

	report := &BenchmarkReport{}
	for _, p := range r.deps.Providers.All() {
		if ctx.Err() != nil {
			break
		}
		if !p.IsEnabled() {
			slog.Debug("skipping provider: not configured", "provider", p.Name())
			continue
		}
		if !p.IsFreeProvider() {
			slog.Debug("skipping provider: paid provider is not benchmarked", "provider", p.Name())
			continue
		}

		model := r.benchmarkModel(p)
		slog.Info("benchmarking provider", "provider", p.DisplayName(), "model", model)
		result := probe(ctx, p, model, opts)

		rec := benchmark.Record{
			ID:             uuid.NewString(),
			ProviderName:   p.Name(),
			ModelID:        model,
			ResponseTimeMs: result.ResponseTimeMs,
			Success:        result.Success,
			ErrorMessage:   result.ErrorMessage,
			ErrorCode:      result.HTTPStatusCode,
			TestedAt:       r.now().UTC(),
		}
		report.Results = append(report.Results, rec)
		r.deps.Scores.AddBenchmarkResult(p.Name(), result.ResponseTimeMs, result.Success)

		if result.Success {
			report.Succeeded++
			slog.Info("benchmark succeeded", "provider", p.Name(), "response_time_ms", result.ResponseTimeMs)
		} else {
			report.Failed++
			slog.Warn("benchmark failed", "provider", p.Name(), "error", result.ErrorMessage, "status", result.HTTPStatusCode)
		}
	}

	r.persistBenchmarks(ctx, report.Results)

	report.Rankings = r.deps.Scores.GetRankedProviders()
	slog.Info("benchmark run complete", "succeeded", report.Succeeded, "failed", report.Failed)
	slog.Info("current provider rankings", "rankings", strings.Join(report.Rankings, " > "))
	return report
}

// benchmarkModel picks the model the orchestrator would call for p: the best
// validated model, else the adapter default.
func (r *Runner) benchmarkModel(p core.Provider) string {
	if r.deps.ProviderModels != nil {
		if id := r.deps.ProviderModels.GetBestModelID(p.Name()); id != "" {
			return id
		}
	}
	return p.DefaultModelID()
}

func (r *Runner) persistBenchmarks(ctx context.Context, records []benchmark.Record) {
	store := r.deps.BenchmarkStore
	if store == nil {
		return
	}
	if len(records) > 0 {
		if err := store.Insert(ctx, records); err != nil {
			slog.Error("failed to save benchmark results", "error", err)
		} else {
			slog.Info("saved benchmark results", "count", len(records))
		}
	}

	cutoff := r.now().Add(-r.cfg.BenchmarkRetention)
	deleted, err := store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		slog.Warn("failed to prune old benchmark results", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("pruned old benchmark results", "deleted", deleted)
	}
}

// probe runs one completion, converting a panic into a failed result.
func probe(ctx context.Context, p core.Provider, model string, opts core.ChatCompletionOptions) (result *core.ChatCompletionResult) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("error benchmarking provider", "provider", p.Name(), "panic", rec)
			result = core.ErrorResult(p.Name(), fmt.Sprintf("%v", rec), 0, 0)
		}
	}()
	result = p.CreateChatCompletion(ctx, model, benchmarkMessages, opts)
	if result == nil {
		result = core.ErrorResult(p.Name(), "empty provider result", 0, 0)
	}
	return result
}

// Package orchestrator dispatches chat completions across the free providers in
// benchmark order, retrying transient failures, and falls back to the paid
// provider when every free provider has failed.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"freeway/config"
	"freeway/internal/core"
	"freeway/internal/observability"
)

// PaidProviderName is the adapter used once the free providers are exhausted.
const PaidProviderName = "openrouter"

// Defaults used when Config leaves them unset.
const (
	DefaultMaxRetries = 2
)

// DefaultBackoff is the wait before the second and third attempts.
var DefaultBackoff = []time.Duration{500 * time.Millisecond, 1000 * time.Millisecond}

// ProviderLookup resolves adapters by name.
type ProviderLookup interface {
	Get(name string) (core.Provider, bool)
}

// Ranking supplies the provider order and receives attempt outcomes.
type Ranking interface {
	GetRankedProviders() []string
	AddBenchmarkResult(name string, responseTimeMs int, success bool)
}

// ModelPicker chooses the model to call for a provider. An empty result means
// the provider's default.
type ModelPicker interface {
	GetBestModelID(provider string) string
}

// Config holds the retry policy.
type Config struct {
	MaxRetries int
	Backoff    []time.Duration
}

// ConfigFrom converts the application orchestrator settings.
func ConfigFrom(cfg config.OrchestratorConfig) Config {
	out := Config{MaxRetries: cfg.MaxRetries}
	for _, ms := range cfg.BackoffMs {
		out.Backoff = append(out.Backoff, time.Duration(ms)*time.Millisecond)
	}
	return out
}

// Orchestrator implements the fallback dispatch. It is safe for concurrent use.
type Orchestrator struct {
	providers ProviderLookup
	ranking   Ranking
	models    ModelPicker

	maxRetries int
	backoff    []time.Duration

	// sleep waits for d or until ctx is done. Replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Orchestrator. models may be nil.
func New(providers ProviderLookup, ranking Ranking, models ModelPicker, cfg Config) *Orchestrator {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if len(cfg.Backoff) == 0 {
		cfg.Backoff = DefaultBackoff
	}
	return &Orchestrator{
		providers:  providers,
		ranking:    ranking,
		models:     models,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		sleep:      sleepContext,
	}
}

// ExecuteWithFallback tries every enabled free provider in ranked order, then
// the paid provider. It always returns a result; on total failure the result
// carries status 502 and every provider's error.
func (o *Orchestrator) ExecuteWithFallback(ctx context.Context, messages []core.Message, opts core.ChatCompletionOptions) *core.ChatCompletionResult {
	var errs []string

	for _, name := range o.ranking.GetRankedProviders() {
		if ctx.Err() != nil {
			break
		}
		p, ok := o.providers.Get(name)
		if !ok || !p.IsEnabled() || !p.IsFreeProvider() {
			continue
		}

		result := o.TryWithRetry(ctx, p, o.modelFor(p), messages, opts)
		o.ranking.AddBenchmarkResult(name, result.ResponseTimeMs, result.Success)
		if result.Success {
			observability.OrchestratorResults.WithLabelValues("free").Inc()
			return result
		}
		errs = append(errs, fmt.Sprintf("%s: %s", p.DisplayName(), result.ErrorMessage))
	}

	if paid, ok := o.providers.Get(PaidProviderName); ok && paid.IsEnabled() && ctx.Err() == nil {
		slog.Info("free providers exhausted, trying paid fallback", "provider", paid.Name())
		result := o.TryWithRetry(ctx, paid, "", messages, opts)
		if result.Success {
			observability.OrchestratorResults.WithLabelValues("paid").Inc()
			return result
		}
		errs = append(errs, fmt.Sprintf("%s: %s", paid.DisplayName(), result.ErrorMessage))
	}

	observability.OrchestratorResults.WithLabelValues("exhausted").Inc()
	slog.Error("all providers failed", "attempted", len(errs))
	return &core.ChatCompletionResult{
		Success:        false,
		ErrorMessage:   "All providers failed: " + strings.Join(errs, "; "),
		HTTPStatusCode: http.StatusBadGateway,
		ProviderName:   "orchestrator",
	}
}

// TryWithRetry calls p up to MaxRetries+1 times. 4xx responses (429 included)
// end the attempts at once; 5xx and status 0 (timeout, network) are retried.
// The returned result, ResponseTimeMs included, is the last attempt's.
func (o *Orchestrator) TryWithRetry(ctx context.Context, p core.Provider, modelID string, messages []core.Message, opts core.ChatCompletionOptions) *core.ChatCompletionResult {
	var result *core.ChatCompletionResult
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			if err := o.sleep(ctx, o.backoffFor(attempt)); err != nil {
				break
			}
		}

		result = o.call(ctx, p, modelID, messages, opts)

		if result.Success {
			observability.ProviderAttempts.WithLabelValues(p.Name(), "success").Inc()
			break
		}
		if !retryable(result.HTTPStatusCode) || attempt == o.maxRetries || ctx.Err() != nil {
			observability.ProviderAttempts.WithLabelValues(p.Name(), "abandon").Inc()
			slog.Warn("provider attempt abandoned",
				"provider", p.Name(),
				"attempt", attempt+1,
				"status", result.HTTPStatusCode,
				"error", result.ErrorMessage,
			)
			break
		}
		observability.ProviderAttempts.WithLabelValues(p.Name(), "retry").Inc()
		slog.Debug("retrying provider", "provider", p.Name(), "attempt", attempt+1, "status", result.HTTPStatusCode)
	}

	if result == nil {
		result = core.ErrorResult(p.Name(), "Request cancelled", 0, 0)
	}
	return result
}

// call invokes the adapter, converting a panic into a failed result.
func (o *Orchestrator) call(ctx context.Context, p core.Provider, modelID string, messages []core.Message, opts core.ChatCompletionOptions) (result *core.ChatCompletionResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("provider panicked", "provider", p.Name(), "panic", r)
			result = core.ErrorResult(p.Name(), fmt.Sprintf("internal error: %v", r), 0, time.Since(start))
		}
	}()

	result = p.CreateChatCompletion(ctx, modelID, messages, opts)
	if result == nil {
		result = core.ErrorResult(p.Name(), "empty provider result", 0, time.Since(start))
	}
	return result
}

func (o *Orchestrator) modelFor(p core.Provider) string {
	if o.models != nil {
		if id := o.models.GetBestModelID(p.Name()); id != "" {
			return id
		}
	}
	return p.DefaultModelID()
}

// backoffFor returns the wait before the given attempt (1-based retries).
// Past the end of the table the last entry is reused.
func (o *Orchestrator) backoffFor(attempt int) time.Duration {
	i := attempt - 1
	if i >= len(o.backoff) {
		i = len(o.backoff) - 1
	}
	return o.backoff[i]
}

func retryable(status int) bool {
	return status == 0 || status >= 500
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

// Package app provides the main application struct for centralized dependency management
// and lifecycle control of the Freeway gateway.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"freeway/config"
	"freeway/internal/admin"
	"freeway/internal/benchmark"
	"freeway/internal/cache"
	"freeway/internal/jobs"
	"freeway/internal/modelcache"
	"freeway/internal/orchestrator"
	"freeway/internal/projects"
	"freeway/internal/providermodels"
	"freeway/internal/providers"
	"freeway/internal/providers/openrouter"
	"freeway/internal/ratelimit"
	"freeway/internal/server"
	"freeway/internal/storage"
	"freeway/internal/usage"
)

// warmupTimeout bounds the startup snapshot load and project cache load.
const warmupTimeout = 30 * time.Second

// App represents the main application with all its dependencies.
// It provides centralized lifecycle management for all components.
type App struct {
	config *config.Config

	storage   storage.Storage
	registry  *providers.Registry
	models    *modelcache.Cache
	catalogs  *providermodels.Cache
	persister *cache.Persister
	usage     *usage.Result
	runner    *jobs.Runner
	scheduler *jobs.Scheduler
	server    *server.Server

	shutdownMu sync.Mutex
	shutdown   bool
}

// Config holds the configuration options for creating an App.
type Config struct {
	// AppConfig is the loaded application configuration.
	AppConfig *config.Config

	// ProviderOptions are passed to every provider adapter. Zero timeouts are
	// taken from AppConfig.
	ProviderOptions providers.Options
}

// New creates a new App with all dependencies initialized.
// The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("app config is required")
	}
	appCfg := cfg.AppConfig
	app := &App{config: appCfg}

	store, err := storage.New(ctx, storage.FromConfig(appCfg.Storage))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.storage = store

	// From here on a failure must release what was already opened.
	fail := func(step string, err error) (*App, error) {
		if closeErr := app.closeResources(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize %s: %w (also: close error: %v)", step, err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize %s: %w", step, err)
	}

	opts := cfg.ProviderOptions
	if opts.CompletionTimeout == 0 {
		opts.CompletionTimeout = time.Duration(appCfg.Server.CompletionTimeoutSeconds) * time.Second
	}
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = time.Duration(appCfg.Server.RequestTimeoutSeconds) * time.Second
	}
	registry, err := providers.Build(appCfg, opts)
	if err != nil {
		return fail("providers", err)
	}
	app.registry = registry

	// The paid catalog is fetched through the aggregator adapter.
	var catalogSource *openrouter.Provider
	if p, ok := registry.Get(orchestrator.PaidProviderName); ok {
		catalogSource, _ = p.(*openrouter.Provider)
	}
	if catalogSource == nil {
		return fail("model catalog", fmt.Errorf("provider %q is not registered", orchestrator.PaidProviderName))
	}
	app.models = modelcache.New(catalogSource)
	catalogSource.SetModelResolver(app.models.SelectedPaidModelID)
	app.catalogs = providermodels.New()

	snapshotBackend, err := cache.New(ctx, appCfg.Cache)
	if err != nil {
		return fail("model snapshot cache", err)
	}
	app.persister = cache.NewPersister(snapshotBackend, app.models, app.catalogs)

	benchmarkStore, err := benchmark.NewStore(ctx, store)
	if err != nil {
		return fail("benchmark store", err)
	}
	scores := benchmark.NewCache(benchmarkStore)

	projectStore, err := projects.NewStore(ctx, store)
	if err != nil {
		return fail("project store", err)
	}
	keys := projects.NewKeyService(appCfg.Auth.APIKeyPrefix)
	projectCache := projects.NewCache(projectStore, keys)
	projectService := projects.NewService(projectStore, keys, projectCache)

	usageResult, err := usage.New(ctx, appCfg.Usage, store)
	if err != nil {
		return fail("usage tracking", err)
	}
	app.usage = usageResult

	app.runner = jobs.NewRunner(jobs.Deps{
		Providers:      registry,
		ProviderModels: app.catalogs,
		Scores:         scores,
		BenchmarkStore: benchmarkStore,
		Catalog:        app.models,
		Projects:       projectCache,
		Snapshots:      app.persister,
	}, jobs.ConfigFrom(appCfg.Jobs))

	app.logStartupInfo()
	app.warmUp(ctx, projectCache, scores)

	fallback := orchestrator.New(registry, scores, app.catalogs, orchestrator.ConfigFrom(appCfg.Orchestrator))

	handler := server.NewHandler(server.Deps{
		Providers: registry,
		Fallback:  fallback,
		Models:    app.models,
		Catalogs:  app.catalogs,
		Scores:    scores,
		Projects:  projectCache,
		Usage:     usageResult.Logger,
	})
	adminHandler := admin.NewHandler(admin.Deps{
		Projects:  projectService,
		Models:    app.models,
		Catalogs:  app.catalogs,
		Jobs:      app.runner,
		Usage:     usageResult.Reader,
		Snapshots: app.persister,
	})

	auth := server.Auth{Keys: projectCache}
	// Leave the interface nil when disabled; a typed nil would be called.
	if appCfg.RateLimit.Enabled {
		auth.Limiter = ratelimit.New(ratelimit.ConfigFrom(appCfg.RateLimit))
	}

	app.server = server.New(handler, adminHandler, auth, &server.Config{
		AdminAPIKey:     appCfg.Auth.AdminAPIKey,
		MetricsEnabled:  appCfg.Metrics.Enabled,
		MetricsEndpoint: appCfg.Metrics.Endpoint,
		BodySizeLimit:   appCfg.Server.BodySizeLimit,
		SwaggerEnabled:  appCfg.Server.SwaggerEnabled,
	})

	if appCfg.Jobs.Enabled {
		app.scheduler = jobs.NewScheduler(app.runner)
		app.scheduler.Start(context.Background())
	} else {
		slog.Info("background jobs disabled")
	}

	return app, nil
}

// warmUp restores the model caches from the last snapshot and loads projects
// and benchmark scores. Failures are logged; the gateway still starts.
func (a *App) warmUp(ctx context.Context, projectCache *projects.Cache, scores *benchmark.Cache) {
	ctx, cancel := context.WithTimeout(ctx, warmupTimeout)
	defer cancel()

	restored, err := a.persister.Load(ctx)
	if err != nil {
		slog.Warn("failed to load model snapshot", "error", err)
	}
	if !restored {
		// Nothing to serve yet: fetch the catalog now rather than waiting for
		// the first scheduled refresh.
		go func() {
			refreshCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			_ = a.runner.RefreshModels(refreshCtx)
		}()
	}

	if err := projectCache.LoadCache(ctx); err != nil {
		slog.Warn("failed to load project cache", "error", err)
	}
	if err := scores.RefreshFromDatabase(ctx); err != nil {
		slog.Warn("failed to load benchmark scores", "error", err)
	}
}

// Models returns the paid catalog cache.
func (a *App) Models() *modelcache.Cache {
	return a.models
}

// Providers returns the provider registry.
func (a *App) Providers() *providers.Registry {
	return a.registry
}

// Start starts the HTTP server on the given address.
// This is a blocking call that returns when the server stops.
func (a *App) Start(addr string) error {
	if a.server == nil {
		return fmt.Errorf("server is not initialized")
	}
	slog.Info("starting server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully tears down app components in dependency order.
// Order:
// 1. HTTP server shutdown, honoring the passed context timeout/cancellation.
// 2. Job scheduler stop (waits for running jobs).
// 3. Model snapshot save and snapshot backend close.
// 4. Usage logger close (flushes pending usage records).
// 5. Storage close.
//
// Shutdown is idempotent; after the first call, subsequent calls are no-ops.
// It attempts every step and returns the joined errors.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	slog.Info("shutting down application...")

	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}
	if a.scheduler != nil {
		if err := a.scheduler.Stop(); err != nil {
			slog.Error("scheduler stop error", "error", err)
			errs = append(errs, fmt.Errorf("scheduler stop: %w", err))
		}
	}
	if a.persister != nil {
		if _, err := a.persister.Save(ctx); err != nil {
			slog.Error("model snapshot save error", "error", err)
			errs = append(errs, fmt.Errorf("snapshot save: %w", err))
		}
	}
	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	slog.Info("application shutdown complete")
	return nil
}

// closeResources releases the snapshot backend, the usage logger and storage,
// in that order. Nil components are skipped.
func (a *App) closeResources() error {
	var errs []error
	if a.persister != nil {
		if err := a.persister.Close(); err != nil {
			slog.Error("snapshot cache close error", "error", err)
			errs = append(errs, fmt.Errorf("snapshot cache close: %w", err))
		}
	}
	if a.usage != nil {
		if err := a.usage.Close(); err != nil {
			slog.Error("usage logger close error", "error", err)
			errs = append(errs, fmt.Errorf("usage close: %w", err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			slog.Error("storage close error", "error", err)
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
	}
	return errors.Join(errs...)
}

// logStartupInfo logs the application configuration on startup.
func (a *App) logStartupInfo() {
	cfg := a.config

	if cfg.Auth.AdminAPIKey == "" {
		slog.Warn("ADMIN_API_KEY not set - admin endpoints are unreachable",
			"recommendation", "set ADMIN_API_KEY to manage projects and models")
	} else {
		slog.Info("admin API enabled", "path", "/admin")
	}

	if cfg.Metrics.Enabled {
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	} else {
		slog.Info("prometheus metrics disabled")
	}

	if cfg.Server.SwaggerEnabled {
		slog.Info("swagger UI enabled", "path", "/swagger/index.html")
	}

	slog.Info("storage configured", "type", cfg.Storage.Type)
	slog.Info("model snapshot cache configured", "type", cfg.Cache.Type)

	if cfg.Usage.Enabled {
		slog.Info("usage tracking enabled",
			"buffer_size", cfg.Usage.BufferSize,
			"flush_interval", cfg.Usage.FlushInterval,
			"retention_days", cfg.Usage.RetentionDays,
		)
	} else {
		slog.Info("usage tracking disabled")
	}

	if cfg.RateLimit.Enabled {
		slog.Info("rate limiting enabled", "default_per_minute", cfg.RateLimit.DefaultPerMinute)
	}

	enabled := a.registry.Enabled()
	names := make([]string, 0, len(enabled))
	for _, p := range enabled {
		names = append(names, p.Name())
	}
	if len(names) == 0 {
		slog.Warn("no provider API keys configured; chat completions will fail")
	} else {
		slog.Info("providers enabled", "providers", names)
	}
}

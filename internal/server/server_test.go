package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"freeway/internal/admin"
	"freeway/internal/benchmark"
	"freeway/internal/core"
	"freeway/internal/modelcache"
	"freeway/internal/projects"
	"freeway/internal/providermodels"
	"freeway/internal/providers"
	"freeway/internal/ratelimit"
	"freeway/internal/usage"
)

const testAdminKey = "admin-secret"

// fakeProvider implements core.Provider and records the models it was asked for.
type fakeProvider struct {
	name    string
	free    bool
	enabled bool
	fail    string

	mu     sync.Mutex
	models []string
}

func (p *fakeProvider) Name() string           { return p.name }
func (p *fakeProvider) DisplayName() string    { return strings.ToUpper(p.name) }
func (p *fakeProvider) IsEnabled() bool        { return p.enabled }
func (p *fakeProvider) IsFreeProvider() bool   { return p.free }
func (p *fakeProvider) DefaultModelID() string { return p.name + "-default" }

func (p *fakeProvider) CreateChatCompletion(_ context.Context, modelID string, _ []core.Message, _ core.ChatCompletionOptions) *core.ChatCompletionResult {
	p.mu.Lock()
	p.models = append(p.models, modelID)
	p.mu.Unlock()

	if p.fail != "" {
		return core.ErrorResult(p.name, p.fail, http.StatusInternalServerError, 10*time.Millisecond)
	}
	return core.SuccessResult(p.name, "chatcmpl-"+p.name, modelID,
		[]core.Choice{{Message: core.Message{Role: "assistant", Content: "hello from " + p.name}, FinishReason: "stop"}},
		core.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, 20*time.Millisecond)
}

func (p *fakeProvider) calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.models...)
}

// fakeFallback stands in for the orchestrator.
type fakeFallback struct {
	result *core.ChatCompletionResult
	calls  int
}

func (f *fakeFallback) ExecuteWithFallback(context.Context, []core.Message, core.ChatCompletionOptions) *core.ChatCompletionResult {
	f.calls++
	return f.result
}

// captureLogger records usage entries.
type captureLogger struct {
	mu      sync.Mutex
	entries []*usage.UsageEntry
}

func (l *captureLogger) Write(e *usage.UsageEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

func (l *captureLogger) Config() usage.Config { return usage.Config{Enabled: true} }
func (l *captureLogger) Close() error         { return nil }

func (l *captureLogger) last(t *testing.T) *usage.UsageEntry {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	require.NotEmpty(t, l.entries, "no usage entry written")
	return l.entries[len(l.entries)-1]
}

type testServer struct {
	srv        *Server
	groq       *fakeProvider
	openrouter *fakeProvider
	fallback   *fakeFallback
	logger     *captureLogger
	models     *modelcache.Cache
	catalogs   *providermodels.Cache
	projectKey string
	project    *projects.ProjectWithKey
	service    *projects.Service
	cache      *projects.Cache
}

type serverOption func(*serverSetup)

type serverSetup struct {
	limiter     RateLimiter
	projectRPM  int
	skipCatalog bool
	swagger     bool
}

func withRateLimit() serverOption {
	return func(s *serverSetup) {
		s.limiter = ratelimit.New(ratelimit.Config{})
		s.projectRPM = 1
	}
}

func withSwagger() serverOption {
	return func(s *serverSetup) { s.swagger = true }
}

func withoutProviderCatalogs() serverOption {
	return func(s *serverSetup) { s.skipCatalog = true }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	setup := serverSetup{projectRPM: 60}
	for _, o := range opts {
		o(&setup)
	}

	ts := &testServer{
		groq:       &fakeProvider{name: "groq", free: true, enabled: true},
		openrouter: &fakeProvider{name: "openrouter", enabled: true},
		logger:     &captureLogger{},
		models:     modelcache.New(nil),
		catalogs:   providermodels.New(),
	}
	ts.fallback = &fakeFallback{result: core.SuccessResult("groq", "chatcmpl-fb", "llama-3.3-70b-versatile",
		[]core.Choice{{Message: core.Message{Role: "assistant", Content: "free answer"}, FinishReason: "stop"}},
		core.Usage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7}, 30*time.Millisecond)}

	ts.models.Restore(modelcache.Snapshot{
		FreeModels: []modelcache.CachedModel{
			{ID: "meta-llama/llama-3.3-70b-instruct:free", Name: "Llama 3.3 70B", ContextLength: 131072, PromptPrice: "0", CompletionPrice: "0", IsFree: true, Rank: 1},
		},
		PaidModels: []modelcache.CachedModel{
			{ID: "openai/gpt-4o-mini", Name: "GPT-4o mini", ContextLength: 128000, PromptPrice: "0.00000015", CompletionPrice: "0.0000006", Rank: 1},
			{ID: "anthropic/claude-3.5-haiku", Name: "Claude 3.5 Haiku", ContextLength: 200000, PromptPrice: "0.0000008", CompletionPrice: "0.000004", Rank: 2},
		},
		LastUpdated: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if !setup.skipCatalog {
		ts.catalogs.UpdateModels("groq", []core.ProviderModelInfo{
			{ID: "llama-3.3-70b-versatile", Name: "Llama 3.3 70B", IsAvailable: true},
			{ID: "gemma2-9b-it", IsAvailable: true},
		})
	}

	registry := providers.NewRegistry(ts.groq, ts.openrouter, &fakeProvider{name: "cohere", free: true})

	scores := benchmark.NewCache(benchmark.NewMemoryStore())
	scores.AddBenchmarkResult("groq", 200, true)

	store := projects.NewMemoryStore()
	keys := projects.NewKeyService("fw_").WithCost(bcrypt.MinCost)
	ts.cache = projects.NewCache(store, keys)
	ts.service = projects.NewService(store, keys, ts.cache)

	rpm := setup.projectRPM
	created, err := ts.service.Create(context.Background(), projects.CreateRequest{Name: "acme", RateLimitPerMinute: &rpm})
	require.NoError(t, err)
	ts.cache.Wait()
	ts.project = created
	ts.projectKey = created.APIKey

	handler := NewHandler(Deps{
		Providers: registry,
		Fallback:  ts.fallback,
		Models:    ts.models,
		Catalogs:  ts.catalogs,
		Scores:    scores,
		Projects:  ts.cache,
		Usage:     ts.logger,
	})
	adminHandler := admin.NewHandler(admin.Deps{
		Projects: ts.service,
		Models:   ts.models,
		Catalogs: ts.catalogs,
	})
	ts.srv = New(handler, adminHandler, Auth{Keys: ts.cache, Limiter: setup.limiter}, &Config{
		AdminAPIKey:    testAdminKey,
		MetricsEnabled: true,
		SwaggerEnabled: setup.swagger,
	})
	return ts
}

func (ts *testServer) request(method, path, key, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if key != "" {
		req.Header.Set("X-Api-Key", key)
	}
	return serve(ts, req)
}

func (ts *testServer) chat(model string) *httptest.ResponseRecorder {
	body := `{"model":"` + model + `","messages":[{"role":"user","content":"hi"}]}`
	return ts.request(http.MethodPost, "/chat/completions", ts.projectKey, body)
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) (errType, message string) {
	t.Helper()
	body := decodeBody[map[string]map[string]string](t, rec)
	return body["error"]["type"], body["error"]["message"]
}

func newChatRequest(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/chat/completions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", key)
	return req
}

func serve(ts *testServer, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	return rec
}

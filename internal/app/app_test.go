package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freeway/config"

	_ "freeway/internal/providers/cohere"
	_ "freeway/internal/providers/gemini"
	_ "freeway/internal/providers/groq"
	_ "freeway/internal/providers/huggingface"
	_ "freeway/internal/providers/mistral"
	_ "freeway/internal/providers/openai"
	_ "freeway/internal/providers/openrouter"
)

const catalogJSON = `{"data":[
	{"id":"meta-llama/llama-3.3-70b-instruct:free","name":"Llama 3.3 70B","context_length":131072,"pricing":{"prompt":"0","completion":"0"}},
	{"id":"openai/gpt-4o-mini","name":"GPT-4o mini","context_length":128000,"pricing":{"prompt":"0.00000015","completion":"0.0000006"}}
]}`

func testConfig(t *testing.T, catalogURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Server: config.ServerConfig{
			Port:                     "0",
			BodySizeLimit:            config.DefaultBodySizeLimit,
			RequestTimeoutSeconds:    5,
			CompletionTimeoutSeconds: 5,
		},
		Auth:    config.AuthConfig{AdminAPIKey: "admin-secret", APIKeyPrefix: "fw_"},
		Storage: config.StorageConfig{Type: "sqlite", SQLite: config.SQLiteConfig{Path: filepath.Join(dir, "freeway.db")}},
		Cache:   config.CacheConfig{Type: "local", LocalPath: filepath.Join(dir, "models.json")},
		Usage:   config.UsageConfig{Enabled: true, BufferSize: 10, FlushInterval: 1, RetentionDays: 1},
		Providers: map[string]config.ProviderConfig{
			"openrouter": {BaseURL: catalogURL},
		},
		Jobs: config.JobsConfig{Enabled: false},
	}
}

func catalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(catalogJSON))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}

func TestNew_UnknownStorage(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0")
	cfg.Storage.Type = "oracle"
	_, err := New(context.Background(), Config{AppConfig: cfg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage")
}

func TestApp_ColdStartAndShutdown(t *testing.T) {
	srv := catalogServer(t)
	cfg := testConfig(t, srv.URL)

	a, err := New(context.Background(), Config{AppConfig: cfg})
	require.NoError(t, err)

	// No snapshot on disk, so the catalog is fetched in the background.
	require.Eventually(t, func() bool {
		_, ok := a.Models().GetSelectedPaidModel()
		return ok
	}, 5*time.Second, 20*time.Millisecond)

	free, ok := a.Models().GetSelectedFreeModel()
	require.True(t, ok)
	assert.Equal(t, "meta-llama/llama-3.3-70b-instruct:free", free.ID)

	rec := httptest.NewRecorder()
	a.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/admin/projects", strings.NewReader(`{"name":"acme"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", "admin-secret")
	rec = httptest.NewRecorder()
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Shutdown(ctx))
	require.NoError(t, a.Shutdown(ctx), "second shutdown is a no-op")

	_, err = os.Stat(cfg.Cache.LocalPath)
	assert.NoError(t, err, "snapshot written on shutdown")
}

func TestApp_WarmStartFromSnapshot(t *testing.T) {
	srv := catalogServer(t)
	cfg := testConfig(t, srv.URL)

	first, err := New(context.Background(), Config{AppConfig: cfg})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(first.Models().GetPaidModels()) > 0
	}, 5*time.Second, 20*time.Millisecond)
	require.NoError(t, first.Shutdown(context.Background()))

	// The catalog server is gone; the second start must come up from disk.
	srv.Close()
	second, err := New(context.Background(), Config{AppConfig: cfg})
	require.NoError(t, err)
	defer second.Shutdown(context.Background())

	paid, ok := second.Models().GetSelectedPaidModel()
	require.True(t, ok)
	assert.Equal(t, "openai/gpt-4o-mini", paid.ID)
}

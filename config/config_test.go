package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandString(t *testing.T) {
	t.Setenv("TEST_VAR", "test_value")
	t.Setenv("EMPTY_VAR", "")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty string", input: "", want: ""},
		{name: "no placeholders", input: "plain", want: "plain"},
		{name: "simple variable", input: "${TEST_VAR}", want: "test_value"},
		{name: "variable with surrounding text", input: "prefix-${TEST_VAR}-suffix", want: "prefix-test_value-suffix"},
		{name: "unset variable left untouched", input: "${UNSET_FREEWAY_VAR}", want: "${UNSET_FREEWAY_VAR}"},
		{name: "unset variable with default", input: "${UNSET_FREEWAY_VAR:-fallback}", want: "fallback"},
		{name: "set variable ignores default", input: "${TEST_VAR:-fallback}", want: "test_value"},
		{name: "empty variable without default", input: "${EMPTY_VAR}", want: "${EMPTY_VAR}"},
		{name: "empty variable with default", input: "${EMPTY_VAR:-fallback}", want: "fallback"},
		{name: "empty default", input: "${UNSET_FREEWAY_VAR:-}", want: ""},
		{name: "multiple variables", input: "${TEST_VAR}:${UNSET_FREEWAY_VAR:-x}", want: "test_value:x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandString(tt.input))
		})
	}
}

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, DefaultBodySizeLimit, cfg.Server.BodySizeLimit)
	assert.Equal(t, 30, cfg.Server.RequestTimeoutSeconds)
	assert.Equal(t, 120, cfg.Server.CompletionTimeoutSeconds)
	assert.Equal(t, "fw_", cfg.Auth.APIKeyPrefix)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "local", cfg.Cache.Type)
	assert.Equal(t, 2, cfg.Orchestrator.MaxRetries)
	assert.Equal(t, []int{500, 1000}, cfg.Orchestrator.BackoffMs)
	assert.Equal(t, 3, cfg.Jobs.ValidationConcurrency)
	assert.Equal(t, 500, cfg.Jobs.ValidationDelayMs)
	assert.Equal(t, 6, cfg.Jobs.BenchmarkHours)
	assert.Equal(t, 60, cfg.RateLimit.DefaultPerMinute)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("PORT", "9090")
	t.Setenv("ADMIN_API_KEY", "admin-secret")
	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("OPENROUTER_API_KEY", "or-test")
	t.Setenv("COMPLETION_TIMEOUT_SECONDS", "15")
	t.Setenv("MODEL_VALIDATION_CONCURRENCY", "7")
	t.Setenv("USAGE_ENABLED", "false")
	t.Setenv("RATE_LIMIT_DEFAULT_PER_MINUTE", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "admin-secret", cfg.Auth.AdminAPIKey)
	assert.Equal(t, "gsk-test", cfg.ProviderAPIKey("groq"))
	assert.Equal(t, "or-test", cfg.ProviderAPIKey("openrouter"))
	assert.Equal(t, "", cfg.ProviderAPIKey("gemini"))
	assert.Equal(t, 15, cfg.Server.CompletionTimeoutSeconds)
	assert.Equal(t, 7, cfg.Jobs.ValidationConcurrency)
	assert.False(t, cfg.Usage.Enabled)
	// unparsable values keep the default
	assert.Equal(t, 60, cfg.RateLimit.DefaultPerMinute)
}

func TestLoad_YAMLFileWithExpansion(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("FREEWAY_TEST_MISTRAL", "mk-123")

	yamlContent := `
server:
  port: "7000"
storage:
  type: postgresql
  postgresql:
    url: ${FREEWAY_TEST_PG:-postgres://localhost/freeway}
providers:
  mistral:
    api_key: ${FREEWAY_TEST_MISTRAL}
orchestrator:
  max_retries: 1
  backoff_ms: [100]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yamlContent), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "postgresql", cfg.Storage.Type)
	assert.Equal(t, "postgres://localhost/freeway", cfg.Storage.PostgreSQL.URL)
	assert.Equal(t, "mk-123", cfg.ProviderAPIKey("mistral"))
	assert.Equal(t, 1, cfg.Orchestrator.MaxRetries)
	assert.Equal(t, []int{100}, cfg.Orchestrator.BackoffMs)
	// untouched sections keep defaults
	assert.Equal(t, "fw_", cfg.Auth.APIKeyPrefix)
}

func TestLoad_EnvBeatsYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  port: \"7000\"\n"), 0o644))
	t.Setenv("PORT", "7001")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7001", cfg.Server.Port)
}

func TestLoad_ConfigFileEnv(t *testing.T) {
	chdirTemp(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o644))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_MissingConfigFileEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CONFIG_FILE", "/does/not/exist.yaml")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "empty port", mutate: func(c *Config) { c.Server.Port = "" }, wantErr: "port"},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Type = "oracle" }, wantErr: "unknown storage type"},
		{name: "unknown cache", mutate: func(c *Config) { c.Cache.Type = "memcached" }, wantErr: "unknown cache type"},
		{name: "redis without url", mutate: func(c *Config) { c.Cache.Type = "redis" }, wantErr: "REDIS_URL"},
		{name: "negative retries", mutate: func(c *Config) { c.Orchestrator.MaxRetries = -1 }, wantErr: "max_retries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

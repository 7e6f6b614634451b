// Package config provides configuration management for the application.
//
// Configuration is layered: built-in defaults, then an optional YAML file
// (config.yaml, with ${VAR} and ${VAR:-default} expansion), then a .env file,
// then process environment variables.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultBodySizeLimit is the default maximum request body size (10MB)
const DefaultBodySizeLimit int64 = 10 * 1024 * 1024

// KnownProviders lists the provider names that are configured from the environment.
var KnownProviders = []string{"gemini", "groq", "mistral", "cohere", "huggingface", "openai", "openrouter"}

// Config holds the application configuration
type Config struct {
	Server       ServerConfig              `yaml:"server"`
	Auth         AuthConfig                `yaml:"auth"`
	Storage      StorageConfig             `yaml:"storage"`
	Cache        CacheConfig               `yaml:"cache"`
	Usage        UsageConfig               `yaml:"usage"`
	Metrics      MetricsConfig             `yaml:"metrics"`
	Logging      LoggingConfig             `yaml:"logging"`
	Providers    map[string]ProviderConfig `yaml:"providers"`
	Orchestrator OrchestratorConfig        `yaml:"orchestrator"`
	Jobs         JobsConfig                `yaml:"jobs"`
	RateLimit    RateLimitConfig           `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port          string `yaml:"port"`
	BodySizeLimit int64  `yaml:"body_size_limit"`
	// RequestTimeoutSeconds bounds non-completion upstream calls such as model listing
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
	// CompletionTimeoutSeconds bounds a single provider completion attempt
	CompletionTimeoutSeconds int `yaml:"completion_timeout_seconds"`
	// SwaggerEnabled serves the API docs at /swagger/index.html
	SwaggerEnabled bool `yaml:"swagger_enabled"`
}

// AuthConfig holds API key settings
type AuthConfig struct {
	AdminAPIKey  string `yaml:"admin_api_key"`
	APIKeyPrefix string `yaml:"api_key_prefix"`
}

// StorageConfig selects and configures the persistence backend
type StorageConfig struct {
	// Type is "sqlite", "postgresql", or "mongodb"
	Type       string           `yaml:"type"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	PostgreSQL PostgreSQLConfig `yaml:"postgresql"`
	MongoDB    MongoDBConfig    `yaml:"mongodb"`
}

// SQLiteConfig holds SQLite settings
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgreSQLConfig holds PostgreSQL settings
type PostgreSQLConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

// MongoDBConfig holds MongoDB settings
type MongoDBConfig struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
}

// CacheConfig configures where model catalog snapshots are persisted
type CacheConfig struct {
	// Type is "local" or "redis"
	Type      string      `yaml:"type"`
	LocalPath string      `yaml:"local_path"`
	Redis     RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	URL        string `yaml:"url"`
	Key        string `yaml:"key"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// UsageConfig holds usage logging settings
type UsageConfig struct {
	Enabled       bool `yaml:"enabled"`
	BufferSize    int  `yaml:"buffer_size"`
	FlushInterval int  `yaml:"flush_interval"` // seconds
	RetentionDays int  `yaml:"retention_days"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// LoggingConfig holds application log settings
type LoggingConfig struct {
	// Format is "json", "text", or empty for auto-detect (text on a TTY)
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// ProviderConfig holds per-provider credentials
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// OrchestratorConfig holds fallback retry settings
type OrchestratorConfig struct {
	MaxRetries int   `yaml:"max_retries"`
	BackoffMs  []int `yaml:"backoff_ms"`
}

// JobsConfig holds background job settings
type JobsConfig struct {
	Enabled                bool `yaml:"enabled"`
	ValidationConcurrency  int  `yaml:"validation_concurrency"`
	ValidationDelayMs      int  `yaml:"validation_delay_ms"`
	ModelRefreshHours      int  `yaml:"model_refresh_hours"`
	ProjectRefreshHours    int  `yaml:"project_refresh_hours"`
	ValidationHours        int  `yaml:"validation_hours"`
	BenchmarkHours         int  `yaml:"benchmark_hours"`
	ScoreRefreshMinutes    int  `yaml:"score_refresh_minutes"`
	BenchmarkRetentionDays int  `yaml:"benchmark_retention_days"`
}

// RateLimitConfig holds per-project rate limiting settings
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`
	// DefaultPerMinute applies to projects without their own limit
	DefaultPerMinute int `yaml:"default_per_minute"`
	Burst            int `yaml:"burst"`
}

// Load reads configuration from defaults, config file, .env and environment.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path := configFilePath(); path != "" {
		if err := loadYAML(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                     "8080",
			BodySizeLimit:            DefaultBodySizeLimit,
			RequestTimeoutSeconds:    30,
			CompletionTimeoutSeconds: 120,
		},
		Auth: AuthConfig{APIKeyPrefix: "fw_"},
		Storage: StorageConfig{
			Type:       "sqlite",
			SQLite:     SQLiteConfig{Path: "data/freeway.db"},
			PostgreSQL: PostgreSQLConfig{MaxConns: 10},
			MongoDB:    MongoDBConfig{Database: "freeway"},
		},
		Cache: CacheConfig{
			Type:      "local",
			LocalPath: ".cache/models.json",
			Redis:     RedisConfig{Key: "freeway:models", TTLSeconds: 86400},
		},
		Usage: UsageConfig{
			Enabled:       true,
			BufferSize:    1000,
			FlushInterval: 5,
			RetentionDays: 90,
		},
		Metrics:   MetricsConfig{Enabled: false, Endpoint: "/metrics"},
		Logging:   LoggingConfig{Level: "info"},
		Providers: make(map[string]ProviderConfig),
		Orchestrator: OrchestratorConfig{
			MaxRetries: 2,
			BackoffMs:  []int{500, 1000},
		},
		Jobs: JobsConfig{
			Enabled:                true,
			ValidationConcurrency:  3,
			ValidationDelayMs:      500,
			ModelRefreshHours:      24,
			ProjectRefreshHours:    24,
			ValidationHours:        24,
			BenchmarkHours:         6,
			ScoreRefreshMinutes:    60,
			BenchmarkRetentionDays: 30,
		},
		RateLimit: RateLimitConfig{Enabled: true, DefaultPerMinute: 60},
	}
}

// configFilePath returns CONFIG_FILE if set, else the first existing default location.
func configFilePath() string {
	if p := os.Getenv("CONFIG_FILE"); p != "" {
		return p
	}
	for _, p := range []string{"config.yaml", "config/config.yaml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	expanded := expandString(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	return nil
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandString replaces ${VAR} and ${VAR:-default} with environment values.
// A reference with no value and no default is left untouched.
func expandString(s string) string {
	if s == "" {
		return s
	}
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envPattern.FindStringSubmatch(match)
		name, hasDefault, def := groups[1], groups[2] != "", groups[3]
		if val, ok := os.LookupEnv(name); ok && val != "" {
			return val
		}
		if hasDefault {
			return def
		}
		return match
	})
}

func applyEnv(cfg *Config) {
	envString(&cfg.Server.Port, "PORT")
	envInt64(&cfg.Server.BodySizeLimit, "BODY_SIZE_LIMIT")
	envInt(&cfg.Server.RequestTimeoutSeconds, "REQUEST_TIMEOUT_SECONDS")
	envInt(&cfg.Server.CompletionTimeoutSeconds, "COMPLETION_TIMEOUT_SECONDS")
	envBool(&cfg.Server.SwaggerEnabled, "SWAGGER_ENABLED")

	envString(&cfg.Auth.AdminAPIKey, "ADMIN_API_KEY")
	envString(&cfg.Auth.APIKeyPrefix, "API_KEY_PREFIX")

	envString(&cfg.Storage.Type, "STORAGE_TYPE")
	envString(&cfg.Storage.SQLite.Path, "SQLITE_PATH")
	envString(&cfg.Storage.PostgreSQL.URL, "POSTGRES_URL")
	envInt(&cfg.Storage.PostgreSQL.MaxConns, "POSTGRES_MAX_CONNS")
	envString(&cfg.Storage.MongoDB.URL, "MONGODB_URL")
	envString(&cfg.Storage.MongoDB.Database, "MONGODB_DATABASE")

	envString(&cfg.Cache.Type, "CACHE_TYPE")
	envString(&cfg.Cache.LocalPath, "CACHE_LOCAL_PATH")
	envString(&cfg.Cache.Redis.URL, "REDIS_URL")
	envString(&cfg.Cache.Redis.Key, "REDIS_KEY")
	envInt(&cfg.Cache.Redis.TTLSeconds, "REDIS_TTL_SECONDS")

	envBool(&cfg.Usage.Enabled, "USAGE_ENABLED")
	envInt(&cfg.Usage.BufferSize, "USAGE_BUFFER_SIZE")
	envInt(&cfg.Usage.FlushInterval, "USAGE_FLUSH_INTERVAL")
	envInt(&cfg.Usage.RetentionDays, "USAGE_RETENTION_DAYS")

	envBool(&cfg.Metrics.Enabled, "METRICS_ENABLED")
	envString(&cfg.Metrics.Endpoint, "METRICS_ENDPOINT")

	envString(&cfg.Logging.Format, "LOG_FORMAT")
	envString(&cfg.Logging.Level, "LOG_LEVEL")

	for _, name := range KnownProviders {
		p := cfg.Providers[name]
		prefix := strings.ToUpper(name)
		envString(&p.APIKey, prefix+"_API_KEY")
		envString(&p.BaseURL, prefix+"_BASE_URL")
		if p.APIKey != "" || p.BaseURL != "" {
			cfg.Providers[name] = p
		}
	}

	envInt(&cfg.Orchestrator.MaxRetries, "ORCHESTRATOR_MAX_RETRIES")

	envBool(&cfg.Jobs.Enabled, "JOBS_ENABLED")
	envInt(&cfg.Jobs.ValidationConcurrency, "MODEL_VALIDATION_CONCURRENCY")
	envInt(&cfg.Jobs.ValidationDelayMs, "MODEL_VALIDATION_DELAY_MS")
	envInt(&cfg.Jobs.BenchmarkHours, "BENCHMARK_INTERVAL_HOURS")
	envInt(&cfg.Jobs.BenchmarkRetentionDays, "BENCHMARK_RETENTION_DAYS")

	envBool(&cfg.RateLimit.Enabled, "RATE_LIMIT_ENABLED")
	envInt(&cfg.RateLimit.DefaultPerMinute, "RATE_LIMIT_DEFAULT_PER_MINUTE")
	envInt(&cfg.RateLimit.Burst, "RATE_LIMIT_BURST")
}

// Validate checks option values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	switch c.Storage.Type {
	case "sqlite", "postgresql", "mongodb":
	default:
		return fmt.Errorf("unknown storage type: %q (valid: sqlite, postgresql, mongodb)", c.Storage.Type)
	}
	switch c.Cache.Type {
	case "local", "redis":
	default:
		return fmt.Errorf("unknown cache type: %q (valid: local, redis)", c.Cache.Type)
	}
	if c.Cache.Type == "redis" && c.Cache.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required when cache type is redis")
	}
	if c.Orchestrator.MaxRetries < 0 {
		return fmt.Errorf("orchestrator max_retries must be >= 0")
	}
	return nil
}

// ProviderAPIKey returns the configured API key for a provider, or "".
func (c *Config) ProviderAPIKey(name string) string {
	return c.Providers[name].APIKey
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func envBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

package usage

import (
	"context"
	"fmt"
	"time"

	"freeway/config"
	"freeway/internal/storage"
)

// Result holds the usage logger and the reader over the same store.
// The caller must call Close during shutdown; the storage itself is shared
// and closed by its owner.
type Result struct {
	Logger LoggerInterface
	Reader UsageReader
}

// Close flushes and stops the logger. Safe to call multiple times.
func (r *Result) Close() error {
	if r.Logger == nil {
		return nil
	}
	if err := r.Logger.Close(); err != nil {
		return fmt.Errorf("usage logger close: %w", err)
	}
	return nil
}

// New creates the usage logger and reader on the shared storage connection.
// When usage tracking is disabled the logger is a NoopLogger, while the reader
// still serves whatever was recorded before.
func New(ctx context.Context, cfg config.UsageConfig, store storage.Storage) (*Result, error) {
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}

	logCfg := buildLoggerConfig(cfg)
	retention := logCfg.RetentionDays
	if !logCfg.Enabled {
		retention = 0
	}

	// creating the store also creates the usage_logs schema the reader needs
	usageStore, err := createUsageStore(ctx, store, retention)
	if err != nil {
		return nil, err
	}

	reader, err := NewReader(store)
	if err != nil {
		_ = usageStore.Close()
		return nil, err
	}

	if !logCfg.Enabled {
		_ = usageStore.Close()
		return &Result{Logger: &NoopLogger{}, Reader: reader}, nil
	}

	return &Result{
		Logger: NewLogger(usageStore, logCfg),
		Reader: reader,
	}, nil
}

// NewReader creates the UsageReader for the storage backend. It expects the
// usage_logs schema created by NewStore.
func NewReader(store storage.Storage) (UsageReader, error) {
	switch store.Type() {
	case storage.TypeSQLite:
		return NewSQLiteReader(store.SQLiteDB())
	case storage.TypePostgreSQL:
		return NewPostgreSQLReader(store.PostgreSQLPool())
	case storage.TypeMongoDB:
		return NewMongoDBReader(store.MongoDatabase())
	default:
		return nil, fmt.Errorf("unknown storage type: %s", store.Type())
	}
}

// NewStore creates the UsageStore for the storage backend.
func NewStore(ctx context.Context, store storage.Storage, retentionDays int) (UsageStore, error) {
	return createUsageStore(ctx, store, retentionDays)
}

func createUsageStore(ctx context.Context, store storage.Storage, retentionDays int) (UsageStore, error) {
	switch store.Type() {
	case storage.TypeSQLite:
		return NewSQLiteStore(ctx, store.SQLiteDB(), retentionDays)
	case storage.TypePostgreSQL:
		return NewPostgreSQLStore(ctx, store.PostgreSQLPool(), retentionDays)
	case storage.TypeMongoDB:
		return NewMongoDBStore(ctx, store.MongoDatabase(), retentionDays)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", store.Type())
	}
}

// buildLoggerConfig converts config.UsageConfig, filling in defaults.
func buildLoggerConfig(usageCfg config.UsageConfig) Config {
	cfg := Config{
		Enabled:       usageCfg.Enabled,
		BufferSize:    usageCfg.BufferSize,
		FlushInterval: time.Duration(usageCfg.FlushInterval) * time.Second,
		RetentionDays: usageCfg.RetentionDays,
	}

	defaults := DefaultConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaults.BufferSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaults.FlushInterval
	}

	return cfg
}

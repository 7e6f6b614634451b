package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Pool tuning for the gateway's write pattern: short usage and benchmark
// inserts plus occasional analytics scans.
const (
	defaultPostgresMaxConns    = 10
	postgresMinConns           = 1
	postgresMaxConnIdleTime    = 5 * time.Minute
	postgresHealthCheckPeriod  = time.Minute
	postgresConnectTimeout     = 10 * time.Second
	postgresApplicationName    = "freeway"
	postgresApplicationNameKey = "application_name"
)

type postgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgreSQL opens the pgx pool shared by the project, usage and benchmark
// stores and verifies it with a ping.
func NewPostgreSQL(ctx context.Context, cfg PostgreSQLConfig) (Storage, error) {
	poolCfg, err := postgresPoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, postgresConnectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return &postgresStorage{pool: pool}, nil
}

// postgresPoolConfig parses the URL and applies the gateway's pool settings.
// application_name and connect_timeout given in the URL are kept.
func postgresPoolConfig(cfg PostgreSQLConfig) (*pgxpool.Config, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("PostgreSQL URL is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PostgreSQL URL: %w", err)
	}

	poolCfg.MaxConns = defaultPostgresMaxConns
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	poolCfg.MinConns = min(postgresMinConns, poolCfg.MaxConns)
	poolCfg.MaxConnIdleTime = postgresMaxConnIdleTime
	poolCfg.HealthCheckPeriod = postgresHealthCheckPeriod
	if poolCfg.ConnConfig.ConnectTimeout == 0 {
		poolCfg.ConnConfig.ConnectTimeout = postgresConnectTimeout
	}

	if poolCfg.ConnConfig.RuntimeParams == nil {
		poolCfg.ConnConfig.RuntimeParams = make(map[string]string)
	}
	if poolCfg.ConnConfig.RuntimeParams[postgresApplicationNameKey] == "" {
		poolCfg.ConnConfig.RuntimeParams[postgresApplicationNameKey] = postgresApplicationName
	}
	return poolCfg, nil
}

func (s *postgresStorage) Type() string                   { return TypePostgreSQL }
func (s *postgresStorage) SQLiteDB() *sql.DB              { return nil }
func (s *postgresStorage) PostgreSQLPool() *pgxpool.Pool  { return s.pool }
func (s *postgresStorage) MongoDatabase() *mongo.Database { return nil }

func (s *postgresStorage) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

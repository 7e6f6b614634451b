package benchmark

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLStore implements Store for PostgreSQL.
type PostgreSQLStore struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLStore creates the provider_benchmarks table if needed.
func NewPostgreSQLStore(ctx context.Context, pool *pgxpool.Pool) (*PostgreSQLStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS provider_benchmarks (
			id UUID PRIMARY KEY,
			provider_name TEXT NOT NULL,
			model_id TEXT NOT NULL,
			response_time_ms INTEGER NOT NULL DEFAULT 0,
			success BOOLEAN NOT NULL,
			error_message TEXT,
			error_code INTEGER,
			tested_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider_benchmarks table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_provider_benchmarks_tested_at ON provider_benchmarks(tested_at)",
		"CREATE INDEX IF NOT EXISTS idx_provider_benchmarks_provider ON provider_benchmarks(provider_name, tested_at)",
	}
	for _, idx := range indexes {
		if _, err := pool.Exec(ctx, idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	return &PostgreSQLStore{pool: pool}, nil
}

// Insert writes records in one batch.
func (s *PostgreSQLStore) Insert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO provider_benchmarks (id, provider_name, model_id, response_time_ms,
				success, error_message, error_code, tested_at)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, 0), $8)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, r.ProviderName, r.ModelID, r.ResponseTimeMs, r.Success, r.ErrorMessage, r.ErrorCode, r.TestedAt.UTC())
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert benchmarks: %w", err)
	}
	return nil
}

// ListSince returns records tested at or after since, oldest first.
func (s *PostgreSQLStore) ListSince(ctx context.Context, since time.Time) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, provider_name, model_id, response_time_ms, success,
			COALESCE(error_message, ''), COALESCE(error_code, 0), tested_at
		FROM provider_benchmarks
		WHERE tested_at >= $1
		ORDER BY tested_at ASC
	`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query benchmarks: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.ProviderName, &r.ModelID, &r.ResponseTimeMs, &r.Success,
			&r.ErrorMessage, &r.ErrorCode, &r.TestedAt); err != nil {
			return nil, fmt.Errorf("failed to scan benchmark row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes records tested before cutoff.
func (s *PostgreSQLStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM provider_benchmarks WHERE tested_at < $1", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete benchmarks: %w", err)
	}
	return tag.RowsAffected(), nil
}

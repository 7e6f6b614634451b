package benchmark

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"freeway/internal/storage"
)

// SQLiteStore implements Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the provider_benchmarks table if needed.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS provider_benchmarks (
			id TEXT PRIMARY KEY,
			provider_name TEXT NOT NULL,
			model_id TEXT NOT NULL,
			response_time_ms INTEGER NOT NULL DEFAULT 0,
			success INTEGER NOT NULL,
			error_message TEXT,
			error_code INTEGER,
			tested_at TEXT NOT NULL
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
		if _, err := db.ExecContext(ctx, idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Insert writes records in a single multi-row statement.
func (s *SQLiteStore) Insert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	placeholders := make([]string, len(records))
	values := make([]any, 0, len(records)*8)
	for i, r := range records {
		placeholders[i] = "(?, ?, ?, ?, ?, ?, ?, ?)"
		values = append(values,
			r.ID,
			r.ProviderName,
			r.ModelID,
			r.ResponseTimeMs,
			r.Success,
			nullString(r.ErrorMessage),
			nullInt(r.ErrorCode),
			storage.FormatSQLiteTime(r.TestedAt),
		)
	}

	query := `INSERT OR IGNORE INTO provider_benchmarks (id, provider_name, model_id, response_time_ms,
		success, error_message, error_code, tested_at) VALUES ` + strings.Join(placeholders, ",")
	if _, err := s.db.ExecContext(ctx, query, values...); err != nil {
		return fmt.Errorf("failed to insert benchmarks: %w", err)
	}
	return nil
}

// ListSince returns records tested at or after since, oldest first.
func (s *SQLiteStore) ListSince(ctx context.Context, since time.Time) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider_name, model_id, response_time_ms, success, error_message, error_code, tested_at
		FROM provider_benchmarks
		WHERE tested_at >= ?
		ORDER BY tested_at ASC
	`, storage.FormatSQLiteTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query benchmarks: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r        Record
			errMsg   sql.NullString
			errCode  sql.NullInt64
			testedAt string
		)
		if err := rows.Scan(&r.ID, &r.ProviderName, &r.ModelID, &r.ResponseTimeMs, &r.Success, &errMsg, &errCode, &testedAt); err != nil {
			return nil, fmt.Errorf("failed to scan benchmark row: %w", err)
		}
		r.ErrorMessage = errMsg.String
		r.ErrorCode = int(errCode.Int64)
		if r.TestedAt, err = storage.ParseSQLiteTime(testedAt); err != nil {
			return nil, fmt.Errorf("invalid tested_at %q: %w", testedAt, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes records tested before cutoff.
func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM provider_benchmarks WHERE tested_at < ?", storage.FormatSQLiteTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete benchmarks: %w", err)
	}
	return res.RowsAffected()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

package usage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"freeway/internal/storage"
)

// SQLite has a default limit of 999 bindable parameters per query (SQLITE_MAX_VARIABLE_NUMBER).
const (
	maxSQLiteParams      = 999
	columnsPerUsageEntry = 19
	maxEntriesPerBatch   = maxSQLiteParams / columnsPerUsageEntry
)

// usageColumns is the column order shared by the SQL stores and readers.
const usageColumns = `id, project_id, model_id, model_type, input_tokens, output_tokens, response_time_ms,
	cost_usd, prompt_cost_per_token, completion_cost_per_token, success, error_message, request_id,
	created_at, provider, request_messages, response_content, finish_reason, request_params`

// SQLiteStore implements UsageStore for SQLite databases.
type SQLiteStore struct {
	db            *sql.DB
	retentionDays int
	stopCleanup   chan struct{}
	closeOnce     sync.Once
}

// NewSQLiteStore creates the usage_logs table if needed and starts the
// retention cleanup when retentionDays is positive.
func NewSQLiteStore(ctx context.Context, db *sql.DB, retentionDays int) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS usage_logs (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			model_id TEXT NOT NULL,
			model_type TEXT NOT NULL,
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			response_time_ms INTEGER NOT NULL DEFAULT 0,
			cost_usd REAL NOT NULL DEFAULT 0,
			prompt_cost_per_token REAL,
			completion_cost_per_token REAL,
			success INTEGER NOT NULL,
			error_message TEXT,
			request_id TEXT,
			created_at TEXT NOT NULL,
			provider TEXT,
			request_messages TEXT,
			response_content TEXT,
			finish_reason TEXT,
			request_params TEXT
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create usage_logs table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_usage_logs_created_at ON usage_logs(created_at)",
		"CREATE INDEX IF NOT EXISTS idx_usage_logs_project ON usage_logs(project_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_usage_logs_model ON usage_logs(model_id)",
	}
	for _, idx := range indexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	store := &SQLiteStore{
		db:            db,
		retentionDays: retentionDays,
		stopCleanup:   make(chan struct{}),
	}

	if retentionDays > 0 {
		go RunCleanupLoop(store.stopCleanup, store.cleanup)
	}

	return store, nil
}

// WriteBatch inserts entries, chunked to stay within SQLite's parameter limit.
func (s *SQLiteStore) WriteBatch(ctx context.Context, entries []*UsageEntry) error {
	if len(entries) == 0 {
		return nil
	}

	for i := 0; i < len(entries); i += maxEntriesPerBatch {
		end := min(i+maxEntriesPerBatch, len(entries))
		chunk := entries[i:end]

		placeholders := make([]string, len(chunk))
		values := make([]any, 0, len(chunk)*columnsPerUsageEntry)

		for j, e := range chunk {
			placeholders[j] = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
			values = append(values,
				e.ID,
				e.ProjectID,
				e.ModelID,
				e.ModelType,
				e.InputTokens,
				e.OutputTokens,
				e.ResponseTimeMs,
				e.CostUSD,
				nullFloat(e.PromptCostPerToken),
				nullFloat(e.CompletionCostPerToken),
				e.Success,
				nullString(e.ErrorMessage),
				nullString(e.RequestID),
				storage.FormatSQLiteTime(e.CreatedAt),
				nullString(e.Provider),
				marshalJSON(e.RequestMessages, e.ID),
				nullString(e.ResponseContent),
				nullString(e.FinishReason),
				marshalJSON(e.RequestParams, e.ID),
			)
		}

		query := `INSERT OR IGNORE INTO usage_logs (` + usageColumns + `) VALUES ` +
			strings.Join(placeholders, ",")

		if _, err := s.db.ExecContext(ctx, query, values...); err != nil {
			return fmt.Errorf("failed to insert usage batch %d: %w", i/maxEntriesPerBatch, err)
		}
	}

	return nil
}

// Flush is a no-op for SQLite as writes are synchronous.
func (s *SQLiteStore) Flush(_ context.Context) error {
	return nil
}

// Close stops the cleanup goroutine. The DB is owned by the storage layer.
func (s *SQLiteStore) Close() error {
	if s.retentionDays > 0 && s.stopCleanup != nil {
		s.closeOnce.Do(func() {
			close(s.stopCleanup)
		})
	}
	return nil
}

// DeleteOlderThan removes entries created before cutoff.
func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM usage_logs WHERE created_at < ?", storage.FormatSQLiteTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete usage entries: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) cleanup() {
	runCleanup(s.retentionDays, s.DeleteOlderThan)
}

// marshalJSON encodes v for a JSON text column. Empty values are stored as NULL.
func marshalJSON(v any, entryID string) any {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("failed to marshal usage column", "error", err, "id", entryID)
		return nil
	}
	switch string(data) {
	case "null", "[]", "{}":
		return nil
	}
	return string(data)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const pgInsertUsage = `
	INSERT INTO usage_logs (` + usageColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), NULLIF($13, ''),
		$14, NULLIF($15, ''), $16, NULLIF($17, ''), NULLIF($18, ''), $19)
	ON CONFLICT (id) DO NOTHING
`

// PostgreSQLStore implements UsageStore for PostgreSQL databases.
type PostgreSQLStore struct {
	pool          *pgxpool.Pool
	retentionDays int
	stopCleanup   chan struct{}
	closeOnce     sync.Once
}

// NewPostgreSQLStore creates the usage_logs table if needed and starts the
// retention cleanup when retentionDays is positive.
func NewPostgreSQLStore(ctx context.Context, pool *pgxpool.Pool, retentionDays int) (*PostgreSQLStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS usage_logs (
			id UUID PRIMARY KEY,
			project_id TEXT NOT NULL,
			model_id TEXT NOT NULL,
			model_type TEXT NOT NULL,
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			response_time_ms INTEGER NOT NULL DEFAULT 0,
			cost_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
			prompt_cost_per_token DOUBLE PRECISION,
			completion_cost_per_token DOUBLE PRECISION,
			success BOOLEAN NOT NULL,
			error_message TEXT,
			request_id TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			provider TEXT,
			request_messages JSONB,
			response_content TEXT,
			finish_reason TEXT,
			request_params JSONB
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
		if _, err := pool.Exec(ctx, idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	store := &PostgreSQLStore{
		pool:          pool,
		retentionDays: retentionDays,
		stopCleanup:   make(chan struct{}),
	}

	if retentionDays > 0 {
		go RunCleanupLoop(store.stopCleanup, store.cleanup)
	}

	return store, nil
}

// WriteBatch inserts entries. Small batches skip the transaction.
func (s *PostgreSQLStore) WriteBatch(ctx context.Context, entries []*UsageEntry) error {
	if len(entries) == 0 {
		return nil
	}

	if len(entries) < 10 {
		return s.writeBatchSmall(ctx, entries)
	}

	return s.writeBatchLarge(ctx, entries)
}

func (s *PostgreSQLStore) writeBatchSmall(ctx context.Context, entries []*UsageEntry) error {
	var errs []error

	for _, e := range entries {
		if _, err := s.pool.Exec(ctx, pgInsertUsage, pgUsageArgs(e)...); err != nil {
			slog.Warn("failed to insert usage entry", "error", err, "id", e.ID)
			errs = append(errs, fmt.Errorf("insert %s: %w", e.ID, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to insert %d of %d usage entries: %w", len(errs), len(entries), errors.Join(errs...))
	}
	return nil
}

func (s *PostgreSQLStore) writeBatchLarge(ctx context.Context, entries []*UsageEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, e := range entries {
		if _, err := tx.Exec(ctx, pgInsertUsage, pgUsageArgs(e)...); err != nil {
			// a failed statement aborts the transaction, so stop here
			return fmt.Errorf("insert %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Flush is a no-op for PostgreSQL as writes are synchronous.
func (s *PostgreSQLStore) Flush(_ context.Context) error {
	return nil
}

// Close stops the cleanup goroutine. The pool is owned by the storage layer.
func (s *PostgreSQLStore) Close() error {
	if s.retentionDays > 0 && s.stopCleanup != nil {
		s.closeOnce.Do(func() {
			close(s.stopCleanup)
		})
	}
	return nil
}

// DeleteOlderThan removes entries created before cutoff.
func (s *PostgreSQLStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM usage_logs WHERE created_at < $1", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete usage entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgreSQLStore) cleanup() {
	runCleanup(s.retentionDays, s.DeleteOlderThan)
}

func pgUsageArgs(e *UsageEntry) []any {
	return []any{
		e.ID,
		e.ProjectID,
		e.ModelID,
		e.ModelType,
		e.InputTokens,
		e.OutputTokens,
		e.ResponseTimeMs,
		e.CostUSD,
		e.PromptCostPerToken,
		e.CompletionCostPerToken,
		e.Success,
		e.ErrorMessage,
		e.RequestID,
		e.CreatedAt.UTC(),
		e.Provider,
		marshalJSON(e.RequestMessages, e.ID),
		e.ResponseContent,
		e.FinishReason,
		marshalJSON(e.RequestParams, e.ID),
	}
}

package usage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"freeway/internal/storage"
)

// SQLiteReader implements UsageReader for SQLite databases.
type SQLiteReader struct {
	db *sql.DB
}

// NewSQLiteReader creates a new SQLite usage reader.
func NewSQLiteReader(db *sql.DB) (*SQLiteReader, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &SQLiteReader{db: db}, nil
}

func sqliteFilter(params UsageQueryParams) (string, []any) {
	return sqlFilter(params,
		func(int) string { return "?" },
		func(t time.Time) any { return storage.FormatSQLiteTime(t) },
	)
}

func (r *SQLiteReader) GetSummary(ctx context.Context, params UsageQueryParams) (*UsageSummary, error) {
	where, args := sqliteFilter(params)
	query := `SELECT COUNT(*), COALESCE(SUM(success), 0), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0),
		COALESCE(SUM(cost_usd), 0), COALESCE(AVG(response_time_ms), 0)
		FROM usage_logs` + where

	summary := &UsageSummary{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&summary.TotalRequests, &summary.SuccessfulRequests, &summary.TotalInputTokens,
		&summary.TotalOutputTokens, &summary.TotalCostUSD, &summary.AvgResponseTimeMs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage summary: %w", err)
	}
	return finishSummary(summary), nil
}

func (r *SQLiteReader) GetModelUsage(ctx context.Context, params UsageQueryParams) ([]ModelUsage, error) {
	where, args := sqliteFilter(params)
	query := `SELECT model_id, model_type, COUNT(*), COALESCE(SUM(input_tokens + output_tokens), 0), COALESCE(SUM(cost_usd), 0)
		FROM usage_logs` + where + ` GROUP BY model_id, model_type`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query model usage: %w", err)
	}
	defer rows.Close()

	result := make([]ModelUsage, 0)
	for rows.Next() {
		var m ModelUsage
		if err := rows.Scan(&m.ModelID, &m.ModelType, &m.Requests, &m.Tokens, &m.CostUSD); err != nil {
			return nil, fmt.Errorf("failed to scan model usage row: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating model usage rows: %w", err)
	}

	sortModelUsage(result)
	return result, nil
}

func (r *SQLiteReader) GetLogs(ctx context.Context, params LogQueryParams) (*LogPage, error) {
	limit, offset := clampLimitOffset(params.Limit, params.Offset)
	where, args := sqliteFilter(params.UsageQueryParams)

	page := &LogPage{Logs: make([]UsageEntry, 0), Limit: limit, Offset: offset}
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM usage_logs"+where, args...).Scan(&page.TotalCount); err != nil {
		return nil, fmt.Errorf("failed to count usage logs: %w", err)
	}

	query := `SELECT ` + usageColumns + ` FROM usage_logs` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage logs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanSQLiteEntry(rows)
		if err != nil {
			return nil, err
		}
		page.Logs = append(page.Logs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage log rows: %w", err)
	}
	return page, nil
}

func scanSQLiteEntry(rows *sql.Rows) (UsageEntry, error) {
	var (
		e                                 UsageEntry
		promptCost, completionCost        sql.NullFloat64
		errMsg, requestID, provider       sql.NullString
		messages, content, finish, params sql.NullString
		createdAt                         string
	)
	if err := rows.Scan(&e.ID, &e.ProjectID, &e.ModelID, &e.ModelType, &e.InputTokens, &e.OutputTokens,
		&e.ResponseTimeMs, &e.CostUSD, &promptCost, &completionCost, &e.Success, &errMsg, &requestID,
		&createdAt, &provider, &messages, &content, &finish, &params); err != nil {
		return UsageEntry{}, fmt.Errorf("failed to scan usage log row: %w", err)
	}

	var err error
	if e.CreatedAt, err = storage.ParseSQLiteTime(createdAt); err != nil {
		return UsageEntry{}, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	if promptCost.Valid {
		e.PromptCostPerToken = &promptCost.Float64
	}
	if completionCost.Valid {
		e.CompletionCostPerToken = &completionCost.Float64
	}
	e.ErrorMessage = errMsg.String
	e.RequestID = requestID.String
	e.Provider = provider.String
	e.ResponseContent = content.String
	e.FinishReason = finish.String
	unmarshalJSON(messages.String, &e.RequestMessages, e.ID)
	unmarshalJSON(params.String, &e.RequestParams, e.ID)
	return e, nil
}

// unmarshalJSON decodes a JSON text column. Bad values are logged and skipped.
func unmarshalJSON(raw string, dst any, entryID string) {
	if raw == "" {
		return
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		slog.Warn("failed to decode usage column", "error", err, "id", entryID)
	}
}

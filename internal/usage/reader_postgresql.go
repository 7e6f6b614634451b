package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLReader implements UsageReader for PostgreSQL databases.
type PostgreSQLReader struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLReader creates a new PostgreSQL usage reader.
func NewPostgreSQLReader(pool *pgxpool.Pool) (*PostgreSQLReader, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}
	return &PostgreSQLReader{pool: pool}, nil
}

func pgFilter(params UsageQueryParams) (string, []any) {
	return sqlFilter(params,
		func(n int) string { return fmt.Sprintf("$%d", n) },
		func(t time.Time) any { return t.UTC() },
	)
}

func (r *PostgreSQLReader) GetSummary(ctx context.Context, params UsageQueryParams) (*UsageSummary, error) {
	where, args := pgFilter(params)
	query := `SELECT COUNT(*), COUNT(*) FILTER (WHERE success), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0),
		COALESCE(SUM(cost_usd), 0), COALESCE(AVG(response_time_ms), 0)::float8
		FROM usage_logs` + where

	summary := &UsageSummary{}
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&summary.TotalRequests, &summary.SuccessfulRequests, &summary.TotalInputTokens,
		&summary.TotalOutputTokens, &summary.TotalCostUSD, &summary.AvgResponseTimeMs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage summary: %w", err)
	}
	return finishSummary(summary), nil
}

func (r *PostgreSQLReader) GetModelUsage(ctx context.Context, params UsageQueryParams) ([]ModelUsage, error) {
	where, args := pgFilter(params)
	query := `SELECT model_id, model_type, COUNT(*), COALESCE(SUM(input_tokens + output_tokens), 0), COALESCE(SUM(cost_usd), 0)
		FROM usage_logs` + where + ` GROUP BY model_id, model_type`

	rows, err := r.pool.Query(ctx, query, args...)
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

func (r *PostgreSQLReader) GetLogs(ctx context.Context, params LogQueryParams) (*LogPage, error) {
	limit, offset := clampLimitOffset(params.Limit, params.Offset)
	where, args := pgFilter(params.UsageQueryParams)

	page := &LogPage{Logs: make([]UsageEntry, 0), Limit: limit, Offset: offset}
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM usage_logs"+where, args...).Scan(&page.TotalCount); err != nil {
		return nil, fmt.Errorf("failed to count usage logs: %w", err)
	}

	query := fmt.Sprintf(`SELECT id::text, project_id, model_id, model_type, input_tokens, output_tokens, response_time_ms,
		cost_usd, prompt_cost_per_token, completion_cost_per_token, success, COALESCE(error_message, ''),
		COALESCE(request_id, ''), created_at, COALESCE(provider, ''), request_messages,
		COALESCE(response_content, ''), COALESCE(finish_reason, ''), request_params
		FROM usage_logs%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)

	rows, err := r.pool.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage logs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanPGEntry(rows)
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

func scanPGEntry(rows pgx.Rows) (UsageEntry, error) {
	var (
		e                UsageEntry
		messages, params []byte
	)
	if err := rows.Scan(&e.ID, &e.ProjectID, &e.ModelID, &e.ModelType, &e.InputTokens, &e.OutputTokens,
		&e.ResponseTimeMs, &e.CostUSD, &e.PromptCostPerToken, &e.CompletionCostPerToken, &e.Success,
		&e.ErrorMessage, &e.RequestID, &e.CreatedAt, &e.Provider, &messages, &e.ResponseContent,
		&e.FinishReason, &params); err != nil {
		return UsageEntry{}, fmt.Errorf("failed to scan usage log row: %w", err)
	}
	e.CreatedAt = e.CreatedAt.UTC()
	unmarshalJSON(string(messages), &e.RequestMessages, e.ID)
	unmarshalJSON(string(params), &e.RequestParams, e.ID)
	return e, nil
}

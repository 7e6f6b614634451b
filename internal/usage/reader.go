package usage

import (
	"context"
	"time"
)

// UsageQueryParams selects usage_logs rows. Zero values do not filter.
type UsageQueryParams struct {
	ProjectID string
	StartDate time.Time // inclusive
	EndDate   time.Time // inclusive
}

// UsageSummary holds aggregated usage statistics.
type UsageSummary struct {
	TotalRequests      int     `json:"total_requests"`
	SuccessfulRequests int     `json:"successful_requests"`
	FailedRequests     int     `json:"failed_requests"`
	TotalInputTokens   int64   `json:"total_input_tokens"`
	TotalOutputTokens  int64   `json:"total_output_tokens"`
	TotalCostUSD       float64 `json:"total_cost_usd"`
	AvgResponseTimeMs  float64 `json:"avg_response_time_ms"`
}

// ModelUsage holds usage statistics for one model.
type ModelUsage struct {
	ModelID   string  `json:"model_id"`
	ModelType string  `json:"model_type"`
	Requests  int     `json:"requests"`
	Tokens    int64   `json:"tokens"`
	CostUSD   float64 `json:"cost_usd"`
}

// LogQueryParams selects a page of usage logs, newest first.
type LogQueryParams struct {
	UsageQueryParams
	Limit  int
	Offset int
}

// LogPage is one page of usage logs.
type LogPage struct {
	Logs       []UsageEntry `json:"logs"`
	TotalCount int          `json:"total_count"`
	Limit      int          `json:"limit"`
	Offset     int          `json:"offset"`
}

// UsageReader provides read access to usage data for the admin API.
type UsageReader interface {
	// GetSummary returns aggregated statistics for the matching rows.
	GetSummary(ctx context.Context, params UsageQueryParams) (*UsageSummary, error)

	// GetModelUsage groups the matching rows by model and type, busiest first.
	GetModelUsage(ctx context.Context, params UsageQueryParams) ([]ModelUsage, error)

	// GetLogs returns a page of matching rows, newest first. Limit and offset
	// are clamped; the page reports the values actually used.
	GetLogs(ctx context.Context, params LogQueryParams) (*LogPage, error)
}

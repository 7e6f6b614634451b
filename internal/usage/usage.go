// Package usage records one usage_logs row per chat completion served to a
// project, and answers the admin analytics queries over those rows.
package usage

import (
	"context"
	"time"

	"freeway/internal/core"
)

// Model types stored in UsageEntry.ModelType.
const (
	ModelTypeFree = "free"
	ModelTypePaid = "paid"
)

// UsageStore defines the interface for usage storage backends.
// Implementations must be safe for concurrent use.
type UsageStore interface {
	// WriteBatch writes multiple usage entries to storage.
	// This is called by the Logger when flushing buffered entries.
	WriteBatch(ctx context.Context, entries []*UsageEntry) error

	// Flush forces any pending writes to complete.
	// Called during graceful shutdown.
	Flush(ctx context.Context) error

	// Close releases resources and flushes pending writes.
	Close() error
}

// UsageEntry is one usage_logs row.
type UsageEntry struct {
	ID        string `json:"id" bson:"_id"`
	ProjectID string `json:"project_id" bson:"project_id"`

	// ModelID is the model that served the request; ModelType is "free" or "paid".
	ModelID   string `json:"model_id" bson:"model_id"`
	ModelType string `json:"model_type" bson:"model_type"`
	Provider  string `json:"provider,omitempty" bson:"provider,omitempty"`

	InputTokens    int `json:"input_tokens" bson:"input_tokens"`
	OutputTokens   int `json:"output_tokens" bson:"output_tokens"`
	ResponseTimeMs int `json:"response_time_ms" bson:"response_time_ms"`

	// Prices are per token in USD. They are nil when the model had no known price.
	CostUSD                float64  `json:"cost_usd" bson:"cost_usd"`
	PromptCostPerToken     *float64 `json:"prompt_cost_per_token,omitempty" bson:"prompt_cost_per_token,omitempty"`
	CompletionCostPerToken *float64 `json:"completion_cost_per_token,omitempty" bson:"completion_cost_per_token,omitempty"`

	Success      bool   `json:"success" bson:"success"`
	ErrorMessage string `json:"error_message,omitempty" bson:"error_message,omitempty"`
	RequestID    string `json:"request_id,omitempty" bson:"request_id,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`

	RequestMessages []core.Message `json:"request_messages,omitempty" bson:"request_messages,omitempty"`
	ResponseContent string         `json:"response_content,omitempty" bson:"response_content,omitempty"`
	FinishReason    string         `json:"finish_reason,omitempty" bson:"finish_reason,omitempty"`
	RequestParams   map[string]any `json:"request_params,omitempty" bson:"request_params,omitempty"`
}

// TotalTokens returns input plus output tokens.
func (e *UsageEntry) TotalTokens() int {
	return e.InputTokens + e.OutputTokens
}

// Config holds usage tracking configuration
type Config struct {
	// Enabled controls whether usage tracking is active
	Enabled bool

	// BufferSize is the number of usage entries to buffer before flushing
	BufferSize int

	// FlushInterval is how often to flush buffered entries
	FlushInterval time.Duration

	// RetentionDays is how long to keep usage data (0 = forever)
	RetentionDays int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		BufferSize:    1000,
		FlushInterval: 5 * time.Second,
		RetentionDays: 90,
	}
}

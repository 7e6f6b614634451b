package usage

import (
	"time"

	"github.com/google/uuid"

	"freeway/internal/core"
	"freeway/internal/modelcache"
)

// Additional model types: an explicit ID hosted by a free provider, and a
// pass-through ID no cache knew about.
const (
	ModelTypeSpecific = "specific"
	ModelTypeUnknown  = "unknown"
)

// defaultProvider is recorded when a result does not name its provider.
const defaultProvider = "openrouter"

// Request describes the chat request a usage entry is recorded for.
type Request struct {
	ProjectID string
	// RequestID is the gateway request ID. The completion ID is used when empty.
	RequestID string
	// ModelID is the resolved model. The result's model is used when empty.
	ModelID   string
	ModelType string
	// Model is the catalog entry used for pricing, nil when unpriced.
	Model    *modelcache.CachedModel
	Messages []core.Message
	Options  core.ChatCompletionOptions
}

// ExtractFromResult builds the usage entry for a finished chat completion.
func ExtractFromResult(req Request, result *core.ChatCompletionResult, now time.Time) *UsageEntry {
	if result == nil {
		return nil
	}

	entry := &UsageEntry{
		ID:              uuid.NewString(),
		ProjectID:       req.ProjectID,
		ModelID:         req.ModelID,
		ModelType:       req.ModelType,
		Provider:        result.ProviderName,
		InputTokens:     result.Usage.PromptTokens,
		OutputTokens:    result.Usage.CompletionTokens,
		ResponseTimeMs:  result.ResponseTimeMs,
		Success:         result.Success,
		ErrorMessage:    result.ErrorMessage,
		RequestID:       req.RequestID,
		CreatedAt:       now.UTC(),
		RequestMessages: append([]core.Message(nil), req.Messages...),
		ResponseContent: result.Content(),
		FinishReason:    result.FinishReason,
		RequestParams:   RequestParams(req.Options),
	}
	if entry.ModelID == "" {
		entry.ModelID = result.Model
	}
	if entry.Provider == "" {
		entry.Provider = defaultProvider
	}
	if entry.RequestID == "" {
		entry.RequestID = result.ID
	}
	entry.ApplyCost(req.Model)
	return entry
}

// RequestParams returns the sampling parameters recorded with a request.
func RequestParams(opts core.ChatCompletionOptions) map[string]any {
	params := map[string]any{
		"temperature": DefaultTemperature,
		"max_tokens":  DefaultMaxTokens,
	}
	if opts.Temperature != nil {
		params["temperature"] = *opts.Temperature
	}
	if opts.MaxTokens != nil {
		params["max_tokens"] = *opts.MaxTokens
	}
	return params
}

// Package core defines the core interfaces and types for the Freeway gateway.
package core

import (
	"context"
	"time"
)

// Provider is the uniform contract every upstream vendor adapter implements.
// CreateChatCompletion never returns a Go error: failures are reported in the result.
type Provider interface {
	// Name is the stable lowercase identifier ("gemini", "groq", ...)
	Name() string

	// DisplayName is the human-readable vendor name used in error messages
	DisplayName() string

	// IsEnabled reports whether the adapter has credentials configured
	IsEnabled() bool

	// IsFreeProvider reports whether the adapter takes part in ranked free fallback
	IsFreeProvider() bool

	// DefaultModelID is used when no better model is known for the provider
	DefaultModelID() string

	// CreateChatCompletion sends a chat completion request. An empty modelID means DefaultModelID.
	CreateChatCompletion(ctx context.Context, modelID string, messages []Message, opts ChatCompletionOptions) *ChatCompletionResult
}

// ModelFetcher is implemented by adapters that can list their upstream models.
type ModelFetcher interface {
	FetchModels(ctx context.Context) (*ModelListResult, error)
}

// ProviderModelInfo describes a model hosted by a specific provider.
type ProviderModelInfo struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	ProviderName  string     `json:"provider_name"`
	Description   string     `json:"description,omitempty"`
	ContextLength int        `json:"context_length,omitempty"`
	IsAvailable   bool       `json:"is_available"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	OwnedBy       string     `json:"owned_by,omitempty"`
}

// ModelListResult is the outcome of a successful FetchModels call.
type ModelListResult struct {
	Models         []ProviderModelInfo
	ResponseTimeMs int
}

// CatalogModel is one entry of the OpenRouter model catalog.
// Prices are the upstream decimal strings, per token, in USD.
type CatalogModel struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	ContextLength   int    `json:"context_length"`
	PromptPrice     string `json:"prompt_price"`
	CompletionPrice string `json:"completion_price"`
}

// CatalogSource lists the models available through the paid aggregator.
type CatalogSource interface {
	FetchCatalog(ctx context.Context) ([]CatalogModel, error)
}

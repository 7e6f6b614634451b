// Package groq provides the Groq adapter.
package groq

import (
	"context"
	"net/http"
	"strings"

	"freeway/internal/core"
	"freeway/internal/llmclient"
	"freeway/internal/providers"
)

// Registration provides factory registration for the Groq provider.
var Registration = providers.Registration{
	Type: "groq",
	New: func(apiKey string, opts providers.Options) providers.Adapter {
		return New(apiKey, opts)
	},
}

func init() {
	providers.Register(Registration)
}

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"
)

// Provider implements core.Provider and core.ModelFetcher for Groq
type Provider struct {
	*providers.Base
}

// New creates a new Groq provider.
func New(apiKey string, opts providers.Options) *Provider {
	meta := providers.Meta{
		Name:         "groq",
		DisplayName:  "Groq",
		Label:        "Groq",
		DefaultModel: "llama-3.3-70b-versatile",
		Free:         true,
	}
	return &Provider{Base: providers.NewBase(meta, apiKey, defaultBaseURL, opts, providers.BearerHeaders(apiKey))}
}

// CreateChatCompletion sends a chat completion request to Groq
func (p *Provider) CreateChatCompletion(ctx context.Context, modelID string, messages []core.Message, opts core.ChatCompletionOptions) *core.ChatCompletionResult {
	model := p.ResolveModel(modelID)
	return p.ExecuteChat(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/chat/completions",
		Body:     providers.NewCompatRequest(model, messages, opts),
	}, model, providers.CompatDecoder("groq"))
}

// FetchModels lists Groq's active chat models. Speech models are skipped.
func (p *Provider) FetchModels(ctx context.Context) (*core.ModelListResult, error) {
	body, elapsed, err := p.FetchJSON(ctx, "/models")
	if err != nil {
		return nil, err
	}
	models := providers.ParseCompatModels("groq", body, func(id string) bool {
		return !strings.Contains(strings.ToLower(id), "whisper")
	})
	return &core.ModelListResult{Models: models, ResponseTimeMs: int(elapsed.Milliseconds())}, nil
}

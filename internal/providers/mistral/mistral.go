// Package mistral provides the Mistral AI adapter.
package mistral

import (
	"context"
	"net/http"

	"github.com/tidwall/gjson"

	"freeway/internal/core"
	"freeway/internal/llmclient"
	"freeway/internal/providers"
)

// Registration provides factory registration for the Mistral provider.
var Registration = providers.Registration{
	Type: "mistral",
	New: func(apiKey string, opts providers.Options) providers.Adapter {
		return New(apiKey, opts)
	},
}

func init() {
	providers.Register(Registration)
}

const defaultBaseURL = "https://api.mistral.ai/v1"

// Provider implements core.Provider and core.ModelFetcher for Mistral
type Provider struct {
	*providers.Base
}

// New creates a new Mistral provider.
func New(apiKey string, opts providers.Options) *Provider {
	meta := providers.Meta{
		Name:         "mistral",
		DisplayName:  "Mistral AI",
		Label:        "Mistral",
		DefaultModel: "mistral-small-latest",
		Free:         true,
	}
	return &Provider{Base: providers.NewBase(meta, apiKey, defaultBaseURL, opts, providers.BearerHeaders(apiKey))}
}

// CreateChatCompletion sends a chat completion request to Mistral
func (p *Provider) CreateChatCompletion(ctx context.Context, modelID string, messages []core.Message, opts core.ChatCompletionOptions) *core.ChatCompletionResult {
	model := p.ResolveModel(modelID)
	return p.ExecuteChat(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/chat/completions",
		Body:     providers.NewCompatRequest(model, messages, opts),
	}, model, providers.CompatDecoder("mistral"))
}

// FetchModels lists Mistral models that advertise chat completion capability.
func (p *Provider) FetchModels(ctx context.Context) (*core.ModelListResult, error) {
	body, elapsed, err := p.FetchJSON(ctx, "/models")
	if err != nil {
		return nil, err
	}

	chatCapable := make(map[string]bool)
	gjson.GetBytes(body, "data").ForEach(func(_, m gjson.Result) bool {
		caps := m.Get("capabilities.completion_chat")
		chatCapable[m.Get("id").String()] = !caps.Exists() || caps.Bool()
		return true
	})

	models := providers.ParseCompatModels("mistral", body, func(id string) bool {
		return chatCapable[id]
	})
	return &core.ModelListResult{Models: models, ResponseTimeMs: int(elapsed.Milliseconds())}, nil
}

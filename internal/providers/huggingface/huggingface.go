// Package huggingface provides the HuggingFace Inference API adapter.
package huggingface

import (
	"context"
	"net/http"
	"time"

	"freeway/internal/core"
	"freeway/internal/llmclient"
	"freeway/internal/providers"
)

// Registration provides factory registration for the HuggingFace provider.
var Registration = providers.Registration{
	Type: "huggingface",
	New: func(apiKey string, opts providers.Options) providers.Adapter {
		return New(apiKey, opts)
	},
}

func init() {
	providers.Register(Registration)
}

const defaultBaseURL = "https://api-inference.huggingface.co"

// curatedModels is served from FetchModels: the Inference API has no listing
// endpoint scoped to chat-capable, warm models.
var curatedModels = []struct{ id, name string }{
	{"meta-llama/Llama-3.2-3B-Instruct", "Llama 3.2 3B Instruct"},
	{"meta-llama/Llama-3.1-8B-Instruct", "Llama 3.1 8B Instruct"},
	{"mistralai/Mistral-7B-Instruct-v0.3", "Mistral 7B Instruct v0.3"},
	{"microsoft/Phi-3-mini-4k-instruct", "Phi-3 Mini 4K Instruct"},
	{"google/gemma-2-9b-it", "Gemma 2 9B IT"},
	{"Qwen/Qwen2.5-7B-Instruct", "Qwen 2.5 7B Instruct"},
	{"HuggingFaceH4/zephyr-7b-beta", "Zephyr 7B Beta"},
}

// Provider implements core.Provider and core.ModelFetcher for HuggingFace
type Provider struct {
	*providers.Base
}

// New creates a new HuggingFace provider.
func New(apiKey string, opts providers.Options) *Provider {
	meta := providers.Meta{
		Name:         "huggingface",
		DisplayName:  "HuggingFace",
		Label:        "HuggingFace",
		DefaultModel: "meta-llama/Llama-3.2-3B-Instruct",
		Free:         true,
	}
	return &Provider{Base: providers.NewBase(meta, apiKey, defaultBaseURL, opts, providers.BearerHeaders(apiKey))}
}

// CreateChatCompletion calls the model's OpenAI-compatible chat route.
// Model IDs are "org/name" and are used as path segments as-is.
func (p *Provider) CreateChatCompletion(ctx context.Context, modelID string, messages []core.Message, opts core.ChatCompletionOptions) *core.ChatCompletionResult {
	model := p.ResolveModel(modelID)
	body := providers.NewCompatRequest(model, messages, opts)
	// the endpoint does not accept penalty parameters
	body.FrequencyPenalty = nil
	body.PresencePenalty = nil
	return p.ExecuteChat(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/models/" + model + "/v1/chat/completions",
		Body:     body,
	}, model, providers.CompatDecoder("hf"))
}

// FetchModels returns the curated chat model list without a network call.
func (p *Provider) FetchModels(_ context.Context) (*core.ModelListResult, error) {
	start := time.Now()
	models := make([]core.ProviderModelInfo, 0, len(curatedModels))
	for _, m := range curatedModels {
		models = append(models, core.ProviderModelInfo{
			ID:           m.id,
			Name:         m.name,
			ProviderName: "huggingface",
			IsAvailable:  true,
		})
	}
	return &core.ModelListResult{Models: models, ResponseTimeMs: int(time.Since(start).Milliseconds())}, nil
}

// Package openai provides the OpenAI adapter.
package openai

import (
	"context"
	"net/http"
	"strings"

	"freeway/internal/core"
	"freeway/internal/llmclient"
	"freeway/internal/providers"
)

// Registration provides factory registration for the OpenAI provider.
var Registration = providers.Registration{
	Type: "openai",
	New: func(apiKey string, opts providers.Options) providers.Adapter {
		return New(apiKey, opts)
	},
}

func init() {
	providers.Register(Registration)
}

const defaultBaseURL = "https://api.openai.com/v1"

// Provider implements core.Provider and core.ModelFetcher for OpenAI
type Provider struct {
	*providers.Base
	apiKey string
}

// New creates a new OpenAI provider.
func New(apiKey string, opts providers.Options) *Provider {
	p := &Provider{apiKey: apiKey}
	meta := providers.Meta{
		Name:         "openai",
		DisplayName:  "OpenAI",
		Label:        "OpenAI",
		DefaultModel: "gpt-4o-mini",
		Free:         true,
	}
	p.Base = providers.NewBase(meta, apiKey, defaultBaseURL, opts, p.setHeaders)
	return p
}

// setHeaders sets the required headers for OpenAI API requests
func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	// OpenAI rejects X-Client-Request-Id values that are not ASCII or exceed 512 bytes.
	if requestID := core.GetRequestID(req.Context()); requestID != "" && isValidClientRequestID(requestID) {
		req.Header.Set("X-Client-Request-Id", requestID)
	}
}

func isValidClientRequestID(id string) bool {
	if len(id) > 512 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] > 127 {
			return false
		}
	}
	return true
}

// isOSeriesModel reports whether the model is an o-series reasoning model
// (o1, o3, o4), which takes max_completion_tokens and rejects sampling parameters.
func isOSeriesModel(model string) bool {
	m := strings.ToLower(model)
	return len(m) >= 2 && m[0] == 'o' && m[1] >= '0' && m[1] <= '9'
}

type oSeriesChatRequest struct {
	Model               string         `json:"model"`
	Messages            []core.Message `json:"messages"`
	MaxCompletionTokens *int           `json:"max_completion_tokens,omitempty"`
	Stop                []string       `json:"stop,omitempty"`
}

func chatRequestBody(model string, messages []core.Message, opts core.ChatCompletionOptions) any {
	if isOSeriesModel(model) {
		return oSeriesChatRequest{
			Model:               model,
			Messages:            messages,
			MaxCompletionTokens: opts.MaxTokens,
			Stop:                opts.Stop,
		}
	}
	return providers.NewCompatRequest(model, messages, opts)
}

// CreateChatCompletion sends a chat completion request to OpenAI
func (p *Provider) CreateChatCompletion(ctx context.Context, modelID string, messages []core.Message, opts core.ChatCompletionOptions) *core.ChatCompletionResult {
	model := p.ResolveModel(modelID)
	return p.ExecuteChat(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/chat/completions",
		Body:     chatRequestBody(model, messages, opts),
	}, model, providers.CompatDecoder("openai"))
}

// FetchModels lists OpenAI chat models (gpt-*, o1*, chatgpt*).
func (p *Provider) FetchModels(ctx context.Context) (*core.ModelListResult, error) {
	body, elapsed, err := p.FetchJSON(ctx, "/models")
	if err != nil {
		return nil, err
	}
	models := providers.ParseCompatModels("openai", body, isChatModel)
	return &core.ModelListResult{Models: models, ResponseTimeMs: int(elapsed.Milliseconds())}, nil
}

func isChatModel(id string) bool {
	id = strings.ToLower(id)
	return strings.HasPrefix(id, "gpt-") ||
		strings.HasPrefix(id, "o1") ||
		strings.HasPrefix(id, "chatgpt")
}

// Package openrouter provides the OpenRouter adapter, used as the paid fallback
// and as the source of the aggregated model catalog.
package openrouter

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/tidwall/gjson"

	"freeway/internal/core"
	"freeway/internal/llmclient"
	"freeway/internal/providers"
)

// Registration provides factory registration for the OpenRouter provider.
var Registration = providers.Registration{
	Type: "openrouter",
	New: func(apiKey string, opts providers.Options) providers.Adapter {
		return New(apiKey, opts)
	},
}

func init() {
	providers.Register(Registration)
}

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	// FallbackModel is used when no paid model has been selected yet.
	FallbackModel = "openai/gpt-4o-mini"

	referer = "https://freeway.pranta.dev"
	title   = "Freeway"
)

// Provider implements core.Provider and core.CatalogSource for OpenRouter
type Provider struct {
	*providers.Base
	apiKey string

	mu       sync.RWMutex
	resolver func() string
}

// New creates a new OpenRouter provider.
func New(apiKey string, opts providers.Options) *Provider {
	p := &Provider{apiKey: apiKey}
	meta := providers.Meta{
		Name:         "openrouter",
		DisplayName:  "OpenRouter (Paid Fallback)",
		Label:        "OpenRouter",
		DefaultModel: FallbackModel,
		Free:         false,
	}
	p.Base = providers.NewBase(meta, apiKey, defaultBaseURL, opts, p.setHeaders)
	return p
}

func (p *Provider) setHeaders(req *http.Request) {
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	req.Header.Set("HTTP-Referer", referer)
	req.Header.Set("X-Title", title)
	if requestID := core.GetRequestID(req.Context()); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
}

// SetModelResolver installs the lookup for the currently selected paid model.
func (p *Provider) SetModelResolver(resolver func() string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolver = resolver
}

// DefaultModelID returns the selected paid model, or FallbackModel.
func (p *Provider) DefaultModelID() string {
	p.mu.RLock()
	resolver := p.resolver
	p.mu.RUnlock()
	if resolver != nil {
		if id := resolver(); id != "" {
			return id
		}
	}
	return FallbackModel
}

// CreateChatCompletion sends a chat completion request to OpenRouter
func (p *Provider) CreateChatCompletion(ctx context.Context, modelID string, messages []core.Message, opts core.ChatCompletionOptions) *core.ChatCompletionResult {
	model := modelID
	if model == "" {
		model = p.DefaultModelID()
	}
	return p.ExecuteChat(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/chat/completions",
		Body:     providers.NewCompatRequest(model, messages, opts),
	}, model, providers.CompatDecoder("chatcmpl"))
}

// FetchCatalog lists every model OpenRouter offers, with pricing.
// The endpoint is public, so it works without an API key.
func (p *Provider) FetchCatalog(ctx context.Context) ([]core.CatalogModel, error) {
	body, _, err := p.FetchJSON(ctx, "/models")
	if err != nil {
		return nil, err
	}
	data := gjson.GetBytes(body, "data")
	if !data.IsArray() {
		return nil, fmt.Errorf("openrouter: unexpected catalog shape")
	}

	var models []core.CatalogModel
	data.ForEach(func(_, m gjson.Result) bool {
		id := m.Get("id").String()
		if id == "" {
			return true
		}
		models = append(models, core.CatalogModel{
			ID:              id,
			Name:            m.Get("name").String(),
			Description:     m.Get("description").String(),
			ContextLength:   int(m.Get("context_length").Int()),
			PromptPrice:     m.Get("pricing.prompt").String(),
			CompletionPrice: m.Get("pricing.completion").String(),
		})
		return true
	})
	return models, nil
}

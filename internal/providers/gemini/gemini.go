// Package gemini provides the Google Gemini adapter.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"freeway/internal/core"
	"freeway/internal/llmclient"
	"freeway/internal/providers"
)

// Registration provides factory registration for the Gemini provider.
var Registration = providers.Registration{
	Type: "gemini",
	New: func(apiKey string, opts providers.Options) providers.Adapter {
		return New(apiKey, opts)
	},
}

func init() {
	providers.Register(Registration)
}

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Provider implements core.Provider and core.ModelFetcher for Gemini
type Provider struct {
	*providers.Base
	apiKey string
}

// New creates a new Gemini provider.
func New(apiKey string, opts providers.Options) *Provider {
	p := &Provider{apiKey: apiKey}
	meta := providers.Meta{
		Name:         "gemini",
		DisplayName:  "Google Gemini",
		Label:        "Gemini",
		DefaultModel: "gemini-2.0-flash-exp",
		Free:         true,
	}
	p.Base = providers.NewBase(meta, apiKey, defaultBaseURL, opts, p.setHeaders)
	return p
}

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("x-goog-api-key", p.apiKey)
	if requestID := core.GetRequestID(req.Context()); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

// buildRequest maps chat messages to Gemini contents. System messages become the
// system instruction (the last one wins) and assistant turns use the "model" role.
func buildRequest(messages []core.Message, opts core.ChatCompletionOptions) generateRequest {
	req := generateRequest{
		GenerationConfig: &generationConfig{
			Temperature:     opts.Temperature,
			MaxOutputTokens: opts.MaxTokens,
			TopP:            opts.TopP,
			StopSequences:   opts.Stop,
		},
	}
	for _, m := range messages {
		if m.Role == "system" {
			req.SystemInstruction = &content{Parts: []part{{Text: m.Content}}}
			continue
		}
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		req.Contents = append(req.Contents, content{Role: role, Parts: []part{{Text: m.Content}}})
	}
	return req
}

// CreateChatCompletion sends a generateContent request to Gemini
func (p *Provider) CreateChatCompletion(ctx context.Context, modelID string, messages []core.Message, opts core.ChatCompletionOptions) *core.ChatCompletionResult {
	model := p.ResolveModel(modelID)
	return p.ExecuteChat(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/models/" + url.PathEscape(model) + ":generateContent",
		Body:     buildRequest(messages, opts),
	}, model, decodeResponse)
}

var errNoCandidates = errors.New("no response from Gemini")

func decodeResponse(body []byte, model string) (*core.ChatCompletionResult, error) {
	if !json.Valid(body) {
		return nil, errors.New("invalid JSON")
	}
	candidate := gjson.GetBytes(body, "candidates.0")
	if !candidate.Exists() {
		return nil, errNoCandidates
	}

	var text strings.Builder
	candidate.Get("content.parts").ForEach(func(_, p gjson.Result) bool {
		text.WriteString(p.Get("text").String())
		return true
	})

	finish := mapFinishReason(candidate.Get("finishReason").String())
	usage := core.Usage{
		PromptTokens:     int(gjson.GetBytes(body, "usageMetadata.promptTokenCount").Int()),
		CompletionTokens: int(gjson.GetBytes(body, "usageMetadata.candidatesTokenCount").Int()),
		TotalTokens:      int(gjson.GetBytes(body, "usageMetadata.totalTokenCount").Int()),
	}
	choices := []core.Choice{{
		Index:        0,
		Message:      core.Message{Role: "assistant", Content: text.String()},
		FinishReason: finish,
	}}
	return core.SuccessResult("", providers.GenerateID("gemini"), model, choices, usage, 0), nil
}

func mapFinishReason(reason string) string {
	switch reason {
	case "STOP":
		return "stop"
	case "MAX_TOKENS":
		return "length"
	case "SAFETY":
		return "content_filter"
	default:
		return strings.ToLower(reason)
	}
}

// FetchModels lists Gemini models that support generateContent.
func (p *Provider) FetchModels(ctx context.Context) (*core.ModelListResult, error) {
	body, elapsed, err := p.FetchJSON(ctx, "/models?pageSize=1000")
	if err != nil {
		return nil, err
	}

	var models []core.ProviderModelInfo
	gjson.GetBytes(body, "models").ForEach(func(_, m gjson.Result) bool {
		supported := false
		m.Get("supportedGenerationMethods").ForEach(func(_, method gjson.Result) bool {
			if method.String() == "generateContent" {
				supported = true
				return false
			}
			return true
		})
		if !supported {
			return true
		}
		id := strings.TrimPrefix(m.Get("name").String(), "models/")
		if id == "" {
			return true
		}
		name := m.Get("displayName").String()
		if name == "" {
			name = id
		}
		models = append(models, core.ProviderModelInfo{
			ID:            id,
			Name:          name,
			ProviderName:  "gemini",
			Description:   m.Get("description").String(),
			ContextLength: int(m.Get("inputTokenLimit").Int()),
			IsAvailable:   true,
			OwnedBy:       "google",
		})
		return true
	})

	return &core.ModelListResult{Models: models, ResponseTimeMs: int(elapsed.Milliseconds())}, nil
}

// Package cohere provides the Cohere adapter (v1 chat API).
package cohere

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"freeway/internal/core"
	"freeway/internal/llmclient"
	"freeway/internal/providers"
)

// Registration provides factory registration for the Cohere provider.
var Registration = providers.Registration{
	Type: "cohere",
	New: func(apiKey string, opts providers.Options) providers.Adapter {
		return New(apiKey, opts)
	},
}

func init() {
	providers.Register(Registration)
}

const defaultBaseURL = "https://api.cohere.ai/v1"

// Provider implements core.Provider and core.ModelFetcher for Cohere
type Provider struct {
	*providers.Base
}

// New creates a new Cohere provider.
func New(apiKey string, opts providers.Options) *Provider {
	meta := providers.Meta{
		Name:         "cohere",
		DisplayName:  "Cohere",
		Label:        "Cohere",
		DefaultModel: "command-r",
		Free:         true,
	}
	return &Provider{Base: providers.NewBase(meta, apiKey, defaultBaseURL, opts, providers.BearerHeaders(apiKey))}
}

type historyMessage struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

type chatRequest struct {
	Model         string           `json:"model"`
	Message       string           `json:"message"`
	ChatHistory   []historyMessage `json:"chat_history,omitempty"`
	Preamble      string           `json:"preamble,omitempty"`
	Temperature   *float64         `json:"temperature,omitempty"`
	MaxTokens     *int             `json:"max_tokens,omitempty"`
	P             *float64         `json:"p,omitempty"`
	StopSequences []string         `json:"stop_sequences,omitempty"`
	Stream        bool             `json:"stream"`
}

// buildRequest maps chat messages to Cohere's message + chat_history shape.
// The last user message is the prompt and every other turn keeps its order in
// history (user as USER, assistant as CHATBOT). The last system message becomes the preamble.
func buildRequest(model string, messages []core.Message, opts core.ChatCompletionOptions) chatRequest {
	req := chatRequest{
		Model:         model,
		Temperature:   opts.Temperature,
		MaxTokens:     opts.MaxTokens,
		P:             opts.TopP,
		StopSequences: opts.Stop,
	}

	last := -1
	for i, m := range messages {
		if m.Role == "user" {
			last = i
		}
	}
	for i, m := range messages {
		switch {
		case m.Role == "system":
			req.Preamble = m.Content
		case i == last:
			req.Message = m.Content
		case m.Role == "assistant":
			req.ChatHistory = append(req.ChatHistory, historyMessage{Role: "CHATBOT", Message: m.Content})
		default:
			req.ChatHistory = append(req.ChatHistory, historyMessage{Role: "USER", Message: m.Content})
		}
	}
	return req
}

// CreateChatCompletion sends a chat request to Cohere
func (p *Provider) CreateChatCompletion(ctx context.Context, modelID string, messages []core.Message, opts core.ChatCompletionOptions) *core.ChatCompletionResult {
	model := p.ResolveModel(modelID)
	return p.ExecuteChat(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/chat",
		Body:     buildRequest(model, messages, opts),
	}, model, decodeResponse)
}

type chatResponse struct {
	GenerationID string `json:"generation_id"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason"`
	Meta         struct {
		BilledUnits struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"billed_units"`
	} `json:"meta"`
}

func decodeResponse(body []byte, model string) (*core.ChatCompletionResult, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	id := resp.GenerationID
	if id == "" {
		id = providers.GenerateID("cohere")
	}
	finish := mapFinishReason(resp.FinishReason)
	in, out := resp.Meta.BilledUnits.InputTokens, resp.Meta.BilledUnits.OutputTokens
	choices := []core.Choice{{
		Index:        0,
		Message:      core.Message{Role: "assistant", Content: resp.Text},
		FinishReason: finish,
	}}
	usage := core.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}
	return core.SuccessResult("", id, model, choices, usage, 0), nil
}

func mapFinishReason(reason string) string {
	switch reason {
	case "COMPLETE":
		return "stop"
	case "MAX_TOKENS":
		return "length"
	case "ERROR":
		return "error"
	default:
		return strings.ToLower(reason)
	}
}

// FetchModels lists Cohere models served on the chat endpoint.
func (p *Provider) FetchModels(ctx context.Context) (*core.ModelListResult, error) {
	body, elapsed, err := p.FetchJSON(ctx, "/models?endpoint=chat&page_size=1000")
	if err != nil {
		return nil, err
	}

	var models []core.ProviderModelInfo
	gjson.GetBytes(body, "models").ForEach(func(_, m gjson.Result) bool {
		id := m.Get("name").String()
		if id == "" {
			return true
		}
		models = append(models, core.ProviderModelInfo{
			ID:            id,
			Name:          id,
			ProviderName:  "cohere",
			ContextLength: int(m.Get("context_length").Int()),
			IsAvailable:   !m.Get("is_deprecated").Bool(),
			OwnedBy:       "cohere",
		})
		return true
	})
	return &core.ModelListResult{Models: models, ResponseTimeMs: int(elapsed.Milliseconds())}, nil
}

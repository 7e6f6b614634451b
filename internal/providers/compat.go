package providers

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"freeway/internal/core"
)

// CompatRequest is the OpenAI-compatible chat completion body.
type CompatRequest struct {
	Model            string         `json:"model"`
	Messages         []core.Message `json:"messages"`
	Temperature      *float64       `json:"temperature,omitempty"`
	MaxTokens        *int           `json:"max_tokens,omitempty"`
	TopP             *float64       `json:"top_p,omitempty"`
	FrequencyPenalty *float64       `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64       `json:"presence_penalty,omitempty"`
	Stop             []string       `json:"stop,omitempty"`
	Stream           bool           `json:"stream"`
}

// NewCompatRequest builds an OpenAI-compatible body. Streaming is never requested.
func NewCompatRequest(model string, messages []core.Message, opts core.ChatCompletionOptions) CompatRequest {
	return CompatRequest{
		Model:            model,
		Messages:         messages,
		Temperature:      opts.Temperature,
		MaxTokens:        opts.MaxTokens,
		TopP:             opts.TopP,
		FrequencyPenalty: opts.FrequencyPenalty,
		PresencePenalty:  opts.PresencePenalty,
		Stop:             opts.Stop,
	}
}

type compatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Created int64  `json:"created"`
	Choices []struct {
		Index   int `json:"index"`
		Message *struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *core.Usage `json:"usage"`
}

// CompatDecoder decodes OpenAI-compatible responses. Missing IDs get a
// generated "{idPrefix}-{uuid}" value.
func CompatDecoder(idPrefix string) Decoder {
	return func(body []byte, model string) (*core.ChatCompletionResult, error) {
		var resp compatResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, err
		}

		choices := make([]core.Choice, 0, len(resp.Choices))
		for _, c := range resp.Choices {
			msg := core.Message{Role: "assistant"}
			if c.Message != nil {
				if c.Message.Role != "" {
					msg.Role = c.Message.Role
				}
				msg.Content = c.Message.Content
			}
			choices = append(choices, core.Choice{Index: c.Index, Message: msg, FinishReason: c.FinishReason})
		}

		id := resp.ID
		if id == "" {
			id = GenerateID(idPrefix)
		}
		if resp.Model != "" {
			model = resp.Model
		}
		var usage core.Usage
		if resp.Usage != nil {
			usage = *resp.Usage
		}

		result := core.SuccessResult("", id, model, choices, usage, 0)
		if resp.Created != 0 {
			result.Created = resp.Created
		}
		return result, nil
	}
}

// GenerateID returns "{prefix}-{32 hex chars}".
func GenerateID(prefix string) string {
	return prefix + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ParseCompatModels reads an OpenAI-style {"data":[...]} model listing.
// keep filters model IDs; nil keeps everything. Context length is read from
// the first present of context_window, context_length, max_context_length.
func ParseCompatModels(provider string, body []byte, keep func(id string) bool) []core.ProviderModelInfo {
	var models []core.ProviderModelInfo
	gjson.GetBytes(body, "data").ForEach(func(_, m gjson.Result) bool {
		id := m.Get("id").String()
		if id == "" || (keep != nil && !keep(id)) {
			return true
		}
		// Groq marks retired models inactive
		if active := m.Get("active"); active.Exists() && !active.Bool() {
			return true
		}

		info := core.ProviderModelInfo{
			ID:           id,
			Name:         firstNonEmpty(m.Get("name").String(), id),
			ProviderName: provider,
			Description:  m.Get("description").String(),
			OwnedBy:      m.Get("owned_by").String(),
			IsAvailable:  true,
		}
		for _, path := range []string{"context_window", "context_length", "max_context_length"} {
			if v := m.Get(path); v.Exists() {
				info.ContextLength = int(v.Int())
				break
			}
		}
		if created := m.Get("created").Int(); created > 0 {
			t := time.Unix(created, 0).UTC()
			info.CreatedAt = &t
		}
		models = append(models, info)
		return true
	})
	return models
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

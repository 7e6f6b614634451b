package core

import (
	"fmt"
	"time"
)

// Message represents a single message in the chat
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionOptions holds the optional sampling parameters forwarded to providers.
// Nil pointers mean "use the provider default" and are omitted from upstream payloads.
type ChatCompletionOptions struct {
	Temperature      *float64
	MaxTokens        *int
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64
	Stop             []string
	Stream           bool
}

// Choice represents a single completion choice
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionResult is the uniform outcome of a completion attempt.
// Every provider adapter and the orchestrator produce one; a failed call is
// reported through Success/ErrorMessage/HTTPStatusCode rather than a Go error.
// HTTPStatusCode is 0 when the upstream never answered (timeout, network fault).
type ChatCompletionResult struct {
	ID             string
	Model          string
	Choices        []Choice
	Usage          Usage
	Created        int64
	FinishReason   string
	Success        bool
	ErrorMessage   string
	HTTPStatusCode int
	ResponseTimeMs int
	ProviderName   string
}

// Content returns the first choice's message content, or "" if there are no choices.
func (r *ChatCompletionResult) Content() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// SuccessResult builds a successful result. FinishReason defaults to the first choice's.
func SuccessResult(provider, id, model string, choices []Choice, usage Usage, elapsed time.Duration) *ChatCompletionResult {
	finish := ""
	if len(choices) > 0 {
		finish = choices[0].FinishReason
	}
	return &ChatCompletionResult{
		ID:             id,
		Model:          model,
		Choices:        choices,
		Usage:          usage,
		Created:        time.Now().Unix(),
		FinishReason:   finish,
		Success:        true,
		ResponseTimeMs: int(elapsed.Milliseconds()),
		ProviderName:   provider,
	}
}

// ErrorResult builds a failed result. statusCode is 0 when no upstream status is known.
func ErrorResult(provider, message string, statusCode int, elapsed time.Duration) *ChatCompletionResult {
	return &ChatCompletionResult{
		Success:        false,
		ErrorMessage:   message,
		HTTPStatusCode: statusCode,
		ResponseTimeMs: int(elapsed.Milliseconds()),
		ProviderName:   provider,
	}
}

// ChatRequest represents the incoming chat completion request
type ChatRequest struct {
	Model            string    `json:"model"`
	Messages         []Message `json:"messages"`
	Temperature      *float64  `json:"temperature,omitempty"`
	MaxTokens        *int      `json:"max_tokens,omitempty"`
	TopP             *float64  `json:"top_p,omitempty"`
	FrequencyPenalty *float64  `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64  `json:"presence_penalty,omitempty"`
	Stop             []string  `json:"stop,omitempty"`
	Stream           bool      `json:"stream,omitempty"`
}

// Options extracts the sampling options from the request.
func (r *ChatRequest) Options() ChatCompletionOptions {
	return ChatCompletionOptions{
		Temperature:      r.Temperature,
		MaxTokens:        r.MaxTokens,
		TopP:             r.TopP,
		FrequencyPenalty: r.FrequencyPenalty,
		PresencePenalty:  r.PresencePenalty,
		Stop:             r.Stop,
		Stream:           r.Stream,
	}
}

// Validate checks the request and applies the "free" model default.
func (r *ChatRequest) Validate() error {
	if r.Model == "" {
		r.Model = "free"
	}
	if len(r.Messages) == 0 {
		return NewInvalidRequestError("at least one message is required", nil)
	}
	for i, m := range r.Messages {
		if m.Role == "" {
			return NewInvalidRequestError(fmt.Sprintf("messages[%d]: role is required", i), nil)
		}
		if m.Content == "" {
			return NewInvalidRequestError(fmt.Sprintf("messages[%d]: content is required", i), nil)
		}
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return NewInvalidRequestError("temperature must be between 0 and 2", nil)
	}
	if r.MaxTokens != nil && *r.MaxTokens <= 0 {
		return NewInvalidRequestError("max_tokens must be greater than 0", nil)
	}
	return nil
}

// ChatResponse represents the chat completion response
type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// NewChatResponse converts a successful result to its wire form.
func NewChatResponse(r *ChatCompletionResult) *ChatResponse {
	choices := r.Choices
	if choices == nil {
		choices = []Choice{}
	}
	return &ChatResponse{
		ID:      r.ID,
		Object:  "chat.completion",
		Created: r.Created,
		Model:   r.Model,
		Choices: choices,
		Usage:   r.Usage,
	}
}

// Model represents a single model in the models list
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
	Created int64  `json:"created"`
}

// ModelsResponse represents the response from the /v1/models endpoint
type ModelsResponse struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"freeway/internal/core"
	"freeway/internal/llmclient"
)

// Adapter is what vendor packages hand to the registry: the provider contract
// plus a base URL hook used by configuration overrides and tests.
type Adapter interface {
	core.Provider
	SetBaseURL(url string)
}

// Meta is the static identity of a vendor adapter.
type Meta struct {
	Name         string
	DisplayName  string
	Label        string // short vendor name used in upstream error messages
	DefaultModel string
	Free         bool
}

// Base implements the shared parts of core.Provider. Vendor adapters embed it
// and add CreateChatCompletion (and optionally FetchModels).
type Base struct {
	Meta
	APIKey            string
	Client            *llmclient.Client
	CompletionTimeout time.Duration
	RequestTimeout    time.Duration
}

// NewBase builds a Base whose client points at defaultBaseURL unless opts overrides it.
func NewBase(meta Meta, apiKey, defaultBaseURL string, opts Options, headers llmclient.HeaderSetter) *Base {
	baseURL := defaultBaseURL
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}
	b := &Base{
		Meta:              meta,
		APIKey:            apiKey,
		CompletionTimeout: opts.CompletionTimeout,
		RequestTimeout:    opts.RequestTimeout,
	}
	if b.CompletionTimeout <= 0 {
		b.CompletionTimeout = 120 * time.Second
	}
	if b.RequestTimeout <= 0 {
		b.RequestTimeout = 30 * time.Second
	}
	cfg := llmclient.DefaultConfig(meta.Name, baseURL)
	b.Client = llmclient.NewWithHTTPClient(opts.HTTPClient, cfg, headers)
	return b
}

func (b *Base) Name() string           { return b.Meta.Name }
func (b *Base) DisplayName() string    { return b.Meta.DisplayName }
func (b *Base) IsEnabled() bool        { return b.APIKey != "" }
func (b *Base) IsFreeProvider() bool   { return b.Meta.Free }
func (b *Base) DefaultModelID() string { return b.Meta.DefaultModel }

// SetBaseURL allows configuring a custom base URL for the provider
func (b *Base) SetBaseURL(url string) {
	b.Client.SetBaseURL(url)
}

// ResolveModel returns modelID, or the default model when it is empty.
func (b *Base) ResolveModel(modelID string) string {
	if modelID == "" {
		return b.Meta.DefaultModel
	}
	return modelID
}

// BearerHeaders returns a HeaderSetter sending the key as a bearer token and
// forwarding the request ID.
func BearerHeaders(apiKey string) llmclient.HeaderSetter {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+apiKey)
		if requestID := core.GetRequestID(req.Context()); requestID != "" {
			req.Header.Set("X-Request-ID", requestID)
		}
	}
}

// Decoder turns a 2xx response body into a successful result.
// model is the model the request was sent for.
type Decoder func(body []byte, model string) (*core.ChatCompletionResult, error)

// ExecuteChat sends one completion attempt and maps every outcome to a result:
// upstream errors keep their HTTP status, timeouts and transport faults get status 0.
// Retries are never performed here.
func (b *Base) ExecuteChat(ctx context.Context, req llmclient.Request, model string, decode Decoder) *core.ChatCompletionResult {
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, b.CompletionTimeout)
	defer cancel()

	req.NoRetry = true
	resp, err := b.Client.DoRaw(callCtx, req)
	elapsed := time.Since(start)
	if err != nil {
		return b.errorResult(err, elapsed)
	}

	result, err := decode(resp.Body, model)
	if err != nil || result == nil {
		slog.Warn("failed to parse provider response", "provider", b.Meta.Name, "error", err)
		return core.ErrorResult(b.Meta.Name, fmt.Sprintf("Failed to parse %s response", b.Meta.Label), 0, elapsed)
	}
	result.Success = true
	result.ProviderName = b.Meta.Name
	result.ResponseTimeMs = int(elapsed.Milliseconds())
	if result.Created == 0 {
		result.Created = time.Now().Unix()
	}
	if result.FinishReason == "" && len(result.Choices) > 0 {
		result.FinishReason = result.Choices[0].FinishReason
	}
	return result
}

func (b *Base) errorResult(err error, elapsed time.Duration) *core.ChatCompletionResult {
	switch {
	case llmclient.IsTimeout(err):
		slog.Warn("provider request timed out", "provider", b.Meta.Name, "elapsed_ms", elapsed.Milliseconds())
		return core.ErrorResult(b.Meta.Name, "Request timed out", 0, elapsed)
	case errors.Is(err, context.Canceled):
		return core.ErrorResult(b.Meta.Name, "Request cancelled", 0, elapsed)
	}

	status := llmclient.StatusCode(err)
	if status == 0 {
		slog.Error("provider request failed", "provider", b.Meta.Name, "error", err)
		msg := err.Error()
		var gwErr *core.GatewayError
		if errors.As(err, &gwErr) {
			msg = gwErr.Message
		}
		return core.ErrorResult(b.Meta.Name, msg, 0, elapsed)
	}

	slog.Warn("provider returned error",
		"provider", b.Meta.Name,
		"status", status,
		"error", err,
	)
	return core.ErrorResult(b.Meta.Name, APIErrorMessage(b.Meta.Label, status), status, elapsed)
}

// APIErrorMessage formats the client-facing message for an upstream error status.
func APIErrorMessage(label string, status int) string {
	if text := http.StatusText(status); text != "" {
		return fmt.Sprintf("%s API error: %d %s", label, status, text)
	}
	return fmt.Sprintf("%s API error: %d", label, status)
}

// FetchJSON performs a GET bounded by RequestTimeout, with the client's retry policy.
func (b *Base) FetchJSON(ctx context.Context, endpoint string) ([]byte, time.Duration, error) {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, b.RequestTimeout)
	defer cancel()

	resp, err := b.Client.DoRaw(callCtx, llmclient.Request{
		Method:   http.MethodGet,
		Endpoint: endpoint,
	})
	if err != nil {
		return nil, time.Since(start), fmt.Errorf("%s: fetch %s: %w", b.Meta.Name, endpoint, err)
	}
	return resp.Body, time.Since(start), nil
}

package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freeway/internal/core"
	"freeway/internal/providers"
)

func TestCreateChatCompletion(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{
			"candidates":[{"content":{"parts":[{"text":"Hello"},{"text":" there"}],"role":"model"},"finishReason":"MAX_TOKENS"}],
			"usageMetadata":{"promptTokenCount":4,"candidatesTokenCount":6,"totalTokenCount":10}
		}`))
	}))
	defer srv.Close()

	p := New("g-key", providers.Options{BaseURL: srv.URL})
	maxTokens := 64
	res := p.CreateChatCompletion(context.Background(), "", []core.Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "user", Content: "again"},
	}, core.ChatCompletionOptions{MaxTokens: &maxTokens})

	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, "/models/gemini-2.0-flash-exp:generateContent", gotPath)
	assert.Equal(t, "g-key", gotKey)
	assert.Equal(t, "Hello there", res.Content())
	assert.Equal(t, "length", res.FinishReason)
	assert.Equal(t, core.Usage{PromptTokens: 4, CompletionTokens: 6, TotalTokens: 10}, res.Usage)
	assert.Regexp(t, `^gemini-`, res.ID)
	assert.Equal(t, "gemini-2.0-flash-exp", res.Model)

	contents := gotBody["contents"].([]any)
	require.Len(t, contents, 3)
	assert.Equal(t, "model", contents[1].(map[string]any)["role"])
	assert.NotNil(t, gotBody["systemInstruction"])
	assert.Equal(t, float64(64), gotBody["generationConfig"].(map[string]any)["maxOutputTokens"])
}

func TestCreateChatCompletion_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	res := New("k", providers.Options{BaseURL: srv.URL}).CreateChatCompletion(context.Background(), "x", nil, core.ChatCompletionOptions{})
	assert.False(t, res.Success)
	assert.Equal(t, "Failed to parse Gemini response", res.ErrorMessage)
}

func TestMapFinishReason(t *testing.T) {
	assert.Equal(t, "stop", mapFinishReason("STOP"))
	assert.Equal(t, "length", mapFinishReason("MAX_TOKENS"))
	assert.Equal(t, "content_filter", mapFinishReason("SAFETY"))
	assert.Equal(t, "recitation", mapFinishReason("RECITATION"))
	assert.Equal(t, "", mapFinishReason(""))
}

func TestFetchModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[
			{"name":"models/gemini-2.5-flash","displayName":"Gemini 2.5 Flash","inputTokenLimit":1048576,"supportedGenerationMethods":["generateContent","countTokens"]},
			{"name":"models/text-embedding-004","supportedGenerationMethods":["embedContent"]}
		]}`))
	}))
	defer srv.Close()

	res, err := New("k", providers.Options{BaseURL: srv.URL}).FetchModels(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Models, 1)
	assert.Equal(t, "gemini-2.5-flash", res.Models[0].ID)
	assert.Equal(t, "Gemini 2.5 Flash", res.Models[0].Name)
	assert.Equal(t, 1048576, res.Models[0].ContextLength)
	assert.Equal(t, "gemini", res.Models[0].ProviderName)
}

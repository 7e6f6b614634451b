package groq

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freeway/internal/core"
	"freeway/internal/providers"
)

func TestCreateChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gsk", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","model":"llama-3.3-70b-versatile","choices":[{"index":0,"message":{"role":"assistant","content":"hey"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	res := New("gsk", providers.Options{BaseURL: srv.URL}).CreateChatCompletion(
		context.Background(), "", []core.Message{{Role: "user", Content: "hi"}}, core.ChatCompletionOptions{})
	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, "hey", res.Content())
	assert.Equal(t, "groq", res.ProviderName)
}

func TestCreateChatCompletion_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	res := New("gsk", providers.Options{BaseURL: srv.URL}).CreateChatCompletion(context.Background(), "", nil, core.ChatCompletionOptions{})
	assert.False(t, res.Success)
	assert.Equal(t, http.StatusTooManyRequests, res.HTTPStatusCode)
	assert.Equal(t, "Groq API error: 429 Too Many Requests", res.ErrorMessage)
}

func TestFetchModels_SkipsWhisper(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":"llama-3.1-8b-instant","context_window":131072},{"id":"whisper-large-v3"}]}`))
	}))
	defer srv.Close()

	res, err := New("gsk", providers.Options{BaseURL: srv.URL}).FetchModels(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Models, 1)
	assert.Equal(t, "llama-3.1-8b-instant", res.Models[0].ID)
}

package mistral

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

func TestFetchModels_ChatCapableOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[
			{"id":"mistral-large-latest","max_context_length":131072,"capabilities":{"completion_chat":true}},
			{"id":"mistral-embed","capabilities":{"completion_chat":false}},
			{"id":"legacy-no-caps"}
		]}`))
	}))
	defer srv.Close()

	res, err := New("k", providers.Options{BaseURL: srv.URL}).FetchModels(context.Background())
	require.NoError(t, err)
	ids := make([]string, 0, len(res.Models))
	for _, m := range res.Models {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"mistral-large-latest", "legacy-no-caps"}, ids)
	assert.Equal(t, 131072, res.Models[0].ContextLength)
}

func TestCreateChatCompletion_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := New("k", providers.Options{BaseURL: srv.URL})
	assert.Equal(t, "Mistral AI", p.DisplayName())
	res := p.CreateChatCompletion(context.Background(), "", []core.Message{{Role: "user", Content: "x"}}, core.ChatCompletionOptions{})
	assert.False(t, res.Success)
	assert.Equal(t, http.StatusServiceUnavailable, res.HTTPStatusCode)
	assert.Equal(t, "Mistral API error: 503 Service Unavailable", res.ErrorMessage)
}

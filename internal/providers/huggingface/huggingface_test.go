package huggingface

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"freeway/internal/core"
	"freeway/internal/providers"
)

func TestCreateChatCompletion(t *testing.T) {
	var gotPath string
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"yo"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`))
	}))
	defer srv.Close()

	penalty := 0.5
	p := New("hf-key", providers.Options{BaseURL: srv.URL})
	res := p.CreateChatCompletion(context.Background(), "Qwen/Qwen2.5-7B-Instruct",
		[]core.Message{{Role: "user", Content: "hi"}}, core.ChatCompletionOptions{PresencePenalty: &penalty})

	if !res.Success {
		t.Fatalf("expected success, got %q", res.ErrorMessage)
	}
	if gotPath != "/models/Qwen/Qwen2.5-7B-Instruct/v1/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if _, ok := body["presence_penalty"]; ok {
		t.Error("presence_penalty should not be sent")
	}
	if res.Model != "Qwen/Qwen2.5-7B-Instruct" {
		t.Errorf("Model = %q", res.Model)
	}
	if len(res.ID) < 4 || res.ID[:3] != "hf-" {
		t.Errorf("ID = %q, want hf- prefix", res.ID)
	}
}

func TestFetchModels_Curated(t *testing.T) {
	res, err := New("k", providers.Options{}).FetchModels(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Models) != 7 {
		t.Fatalf("len(Models) = %d, want 7", len(res.Models))
	}
	for _, m := range res.Models {
		if m.ProviderName != "huggingface" || !m.IsAvailable {
			t.Errorf("unexpected model %+v", m)
		}
	}
}

package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"freeway/internal/core"
)

func fastConfig(url string) Config {
	cfg := DefaultConfig("test", url)
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return cfg
}

func TestClient_Do_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"hello"}`))
	}))
	defer server.Close()

	client := New(
		DefaultConfig("test", server.URL),
		func(req *http.Request) {
			req.Header.Set("X-Test", "value")
		},
	)

	var result struct {
		Message string `json:"message"`
	}
	err := client.Do(context.Background(), Request{
		Method:   http.MethodGet,
		Endpoint: "/test",
	}, &result)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Message != "hello" {
		t.Errorf("expected message 'hello', got '%s'", result.Message)
	}
}

func TestClient_Do_WithRequestBodyAndHeaders(t *testing.T) {
	var receivedBody map[string]interface{}
	var receivedHeaders http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedHeaders = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &receivedBody)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := New(DefaultConfig("test", server.URL), func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer secret")
	})

	err := client.Do(context.Background(), Request{
		Method:   http.MethodPost,
		Endpoint: "/chat",
		Body:     map[string]string{"input": "test"},
		Headers:  map[string]string{"X-Request-ID": "req-1"},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receivedBody["input"] != "test" {
		t.Errorf("expected input 'test', got '%v'", receivedBody["input"])
	}
	if got := receivedHeaders.Get("Content-Type"); got != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", got)
	}
	if got := receivedHeaders.Get("Authorization"); got != "Bearer secret" {
		t.Errorf("expected Authorization header, got %q", got)
	}
	if got := receivedHeaders.Get("X-Request-ID"); got != "req-1" {
		t.Errorf("expected X-Request-ID req-1, got %q", got)
	}
}

func TestClient_DoRaw_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := New(fastConfig(server.URL), nil)
	resp, err := client.DoRaw(context.Background(), Request{Method: http.MethodGet, Endpoint: "/models"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestClient_DoRaw_NoRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	defer server.Close()

	client := New(fastConfig(server.URL), nil)
	_, err := client.DoRaw(context.Background(), Request{Method: http.MethodPost, Endpoint: "/chat", NoRetry: true})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
	if got := StatusCode(err); got != http.StatusInternalServerError {
		t.Errorf("expected upstream status 500, got %d", got)
	}
}

func TestClient_DoRaw_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad model"}}`))
	}))
	defer server.Close()

	client := New(fastConfig(server.URL), nil)
	_, err := client.DoRaw(context.Background(), Request{Method: http.MethodGet, Endpoint: "/"})

	var gwErr *core.GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %T", err)
	}
	if gwErr.Message != "bad model" {
		t.Errorf("expected message 'bad model', got %q", gwErr.Message)
	}
	if gwErr.UpstreamStatus != http.StatusBadRequest {
		t.Errorf("expected upstream 400, got %d", gwErr.UpstreamStatus)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestClient_DoRaw_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	client := New(fastConfig(server.URL), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.DoRaw(ctx, Request{Method: http.MethodGet, Endpoint: "/slow", NoRetry: true})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !IsTimeout(err) {
		t.Errorf("expected IsTimeout to be true for %v", err)
	}
	if got := StatusCode(err); got != 0 {
		t.Errorf("expected status 0 for a timeout, got %d", got)
	}
}

func TestCalculateBackoff(t *testing.T) {
	c := New(Config{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond, BackoffFactor: 2}, nil)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 300 * time.Millisecond},
		{4, 300 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := c.calculateBackoff(tt.attempt); got != tt.want {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.want, got)
		}
	}
}

func TestStatusCode_NonGatewayError(t *testing.T) {
	if got := StatusCode(errors.New("plain")); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

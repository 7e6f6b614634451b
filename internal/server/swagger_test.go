package server

import (
	"net/http"
	"strings"
	"testing"

	_ "freeway/cmd/freeway/docs"
)

func TestSwaggerEndpoint_Enabled(t *testing.T) {
	ts := newTestServer(t, withSwagger())

	rec := ts.request(http.MethodGet, "/swagger/index.html", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("expected text/html Content-Type, got %s", ct)
	}
	if !strings.Contains(rec.Body.String(), "swagger") {
		t.Errorf("expected swagger UI content, got: %s", rec.Body.String()[:min(200, rec.Body.Len())])
	}
}

func TestSwaggerEndpoint_Disabled(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(http.MethodGet, "/swagger/index.html", "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}

func TestSwaggerDocJSON(t *testing.T) {
	ts := newTestServer(t, withSwagger())

	rec := ts.request(http.MethodGet, "/swagger/doc.json", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Freeway API", "/chat/completions", "X-Api-Key"} {
		if !strings.Contains(body, want) {
			t.Errorf("doc.json missing %q", want)
		}
	}
}

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shiurlab/shiur-core/internal/core/domain"
)

func TestGenerate_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req.Model != "gemini-2.5-pro" || req.Prompt == "" {
			t.Errorf("unexpected request: %+v", req)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token")
		}
		json.NewEncoder(w).Encode(generateResponse{Text: "ביאור בעברית"})
	}))
	defer ts.Close()

	client := NewClient(DefaultConfig(ts.URL, "test-key"))
	out, err := client.Generate(context.Background(), "gemini-2.5-pro", "באר את המקור")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ביאור בעברית" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestGenerate_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   domain.LLMErrorKind
	}{
		{"model unavailable", http.StatusNotFound, `{"error": "model not found"}`, domain.LLMErrorModelUnavailable},
		{"quota", http.StatusTooManyRequests, `{"error": "resource_exhausted"}`, domain.LLMErrorQuotaExhausted},
		{"transient", http.StatusServiceUnavailable, `{"error": "temporarily overloaded"}`, domain.LLMErrorTransient},
		{"permanent", http.StatusBadRequest, `{"error": "prompt blocked"}`, domain.LLMErrorPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			client := NewClient(DefaultConfig(ts.URL, ""))
			_, err := client.Generate(context.Background(), "gemini-2.5-pro", "prompt")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := domain.ClassifyLLMError(err); got != tt.want {
				t.Errorf("classification = %s, want %s (error: %v)", got, tt.want, err)
			}
		})
	}
}

func TestPing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	if err := NewClient(DefaultConfig(ts.URL, "")).Ping(context.Background()); err != nil {
		t.Errorf("unexpected ping error: %v", err)
	}
}

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func geminiTestServer(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewGeminiClient("test-key", "gemini-1.5-pro")
	client.BaseURL = server.URL
	return client
}

func TestGeminiClient_Generate(t *testing.T) {
	client := geminiTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-1.5-pro:generateContent" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Error("expected api key header")
		}
		if r.URL.Query().Get("key") != "" {
			t.Error("api key must not appear in the URL")
		}

		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if len(req.Contents) != 1 || len(req.Contents[0].Parts) != 1 {
			t.Fatalf("unexpected request shape: %+v", req)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]string{
					{"text": "<h2>Solar"},
					{"text": " Panels</h2>"},
				}}},
			},
			"usageMetadata": map[string]int64{"totalTokenCount": 321},
		})
	})

	result, err := client.Generate(context.Background(), "system", "user", GenerateOptions{MaxTokens: 100})
	if err != nil {
		t.Fatalf("generating: %v", err)
	}
	if result.Text != "<h2>Solar Panels</h2>" {
		t.Errorf("parts not concatenated: %q", result.Text)
	}
	if result.TokensUsed != 321 || result.Estimated {
		t.Errorf("expected provider-reported usage, got %d (estimated=%v)", result.TokensUsed, result.Estimated)
	}
}

func TestGeminiClient_Generate_EstimatesMissingUsage(t *testing.T) {
	client := geminiTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]string{
					{"text": "one two three four five six seven eight nine ten"},
				}}},
			},
		})
	})

	result, err := client.Generate(context.Background(), "", "user", GenerateOptions{})
	if err != nil {
		t.Fatalf("generating: %v", err)
	}
	if !result.Estimated {
		t.Error("expected estimated usage when the response omits accounting")
	}
	if result.TokensUsed != 13 { // 10 words * 1.3
		t.Errorf("expected 13 estimated tokens, got %d", result.TokensUsed)
	}
}

func TestGeminiClient_Generate_UpstreamError(t *testing.T) {
	client := geminiTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "quota exceeded"}}`, http.StatusTooManyRequests)
	})

	_, err := client.Generate(context.Background(), "system", "user", GenerateOptions{})
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *ProviderError, got %v", err)
	}
	if provErr.Status != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", provErr.Status)
	}
	if provErr.Provider != "gemini" {
		t.Errorf("unexpected provider: %s", provErr.Provider)
	}
}

func TestGeminiClient_Generate_NoCandidates(t *testing.T) {
	client := geminiTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	})

	_, err := client.Generate(context.Background(), "system", "user", GenerateOptions{})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

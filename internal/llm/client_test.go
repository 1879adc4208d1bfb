package llm

import (
	"errors"
	"strings"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int64
	}{
		{"empty", "", 0},
		{"ten words", "one two three four five six seven eight nine ten", 13},
		{"whitespace heavy", "  one \n two\tthree  ", 3}, // 3 * 1.3 truncates to 3
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTokens(tt.text); got != tt.want {
				t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("expected unchanged string, got %q", got)
	}
	got := Truncate(strings.Repeat("x", 20), 10)
	if got != strings.Repeat("x", 10)+"..." {
		t.Errorf("unexpected truncation: %q", got)
	}
}

func TestNewProviderError_TruncatesBody(t *testing.T) {
	err := NewProviderError("openai", 500, strings.Repeat("e", 2000))

	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatal("expected *ProviderError")
	}
	if provErr.Status != 500 || provErr.Provider != "openai" {
		t.Errorf("unexpected fields: %+v", provErr)
	}
	if len(provErr.Body) > 503 {
		t.Errorf("body not truncated: %d bytes", len(provErr.Body))
	}
	if !strings.Contains(provErr.Error(), "HTTP 500") {
		t.Errorf("unexpected message: %s", provErr.Error())
	}
}

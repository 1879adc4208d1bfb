// Package llm provides a provider-agnostic interface for text generation.
// Each vendor (OpenAI, Gemini, Anthropic) implements the Client interface,
// so the gateway is polymorphic over provider identity: adding a provider
// means adding one implementation, not touching callers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// TokensPerWord is the fallback ratio for estimating token usage when a
// provider response carries no accounting field. A rough heuristic, tunable
// per deployment — results derived from it are labeled estimated wherever
// they are persisted.
const TokensPerWord = 1.3

// ErrMalformedResponse indicates the provider returned content we could not
// parse into text. Treated like a provider failure by callers.
var ErrMalformedResponse = errors.New("malformed provider response")

// ProviderError carries the HTTP status and a truncated diagnostic body from
// a failed upstream call. The credential is never part of it.
type ProviderError struct {
	Provider string
	Status   int
	Body     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Provider, e.Status, e.Body)
}

// maxDiagnosticBody bounds how much of an upstream error body we keep.
const maxDiagnosticBody = 500

// NewProviderError builds a ProviderError, truncating the body.
func NewProviderError(provider string, status int, body string) *ProviderError {
	return &ProviderError{Provider: provider, Status: status, Body: Truncate(body, maxDiagnosticBody)}
}

// Truncate shortens s to at most n bytes, marking the cut.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// GenerateOptions are the per-call generation knobs shared across vendors.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float32
}

// GenerationResult is the normalized outcome of one provider call.
type GenerationResult struct {
	Text       string
	TokensUsed int64
	// Estimated marks TokensUsed as derived from word count rather than the
	// provider's own accounting field.
	Estimated bool
}

// Client is the interface for LLM providers that can generate article text.
// Keep interfaces small — one generation method plus identity accessors.
type Client interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, opts GenerateOptions) (*GenerationResult, error)
	ProviderName() string
	ModelName() string
}

// EstimateTokens derives a token count from output word count using
// TokensPerWord. Used by clients whose responses omit usage accounting.
func EstimateTokens(text string) int64 {
	words := len(strings.Fields(text))
	return int64(float64(words) * TokensPerWord)
}

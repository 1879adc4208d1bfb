// Package gateway translates a logical model name into a concrete provider
// call. It owns descriptor and credential resolution, the outbound rate
// limit, the per-call timeout, and cost tracking — callers only ever see
// normalized text plus token usage.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fleveque/article-service/internal/llm"
	"github.com/fleveque/article-service/internal/model"
	"github.com/fleveque/article-service/internal/storage"
)

// ErrUnknownModel is returned when no active descriptor matches the logical
// model name. A configuration error — fatal for the single item, logged for
// operator attention.
var ErrUnknownModel = errors.New("unknown model")

// ErrNoCredential is returned when the descriptor's provider has no active
// secret for the content category.
var ErrNoCredential = errors.New("no active credential")

// ClientFactory builds an llm.Client for a provider. Injected so tests can
// substitute fakes without network access.
type ClientFactory func(provider model.Provider, secret, providerModelID string) (llm.Client, error)

// DefaultClientFactory wires the real vendor clients.
func DefaultClientFactory(provider model.Provider, secret, providerModelID string) (llm.Client, error) {
	switch provider {
	case model.ProviderOpenAI:
		return llm.NewOpenAIClient(secret, providerModelID), nil
	case model.ProviderGemini:
		return llm.NewGeminiClient(secret, providerModelID), nil
	case model.ProviderAnthropic:
		return llm.NewAnthropicClient(secret, providerModelID), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
}

// Gateway is stateless between calls and safe for concurrent use from
// multiple workers — per-call clients, no retained connections beyond the
// vendor SDKs' own pooling.
type Gateway struct {
	descriptors storage.ModelDescriptorRepository
	credentials storage.CredentialRepository
	calls       storage.ProviderCallRepository
	limiter     *rate.Limiter
	timeout     time.Duration
	maxTokens   int
	newClient   ClientFactory
	logger      *zap.Logger
}

// New creates a Gateway. ratePerMinute bounds outbound generation calls
// across all providers; timeout caps a single call.
func New(
	descriptors storage.ModelDescriptorRepository,
	credentials storage.CredentialRepository,
	calls storage.ProviderCallRepository,
	ratePerMinute int,
	timeout time.Duration,
	maxTokens int,
	factory ClientFactory,
	logger *zap.Logger,
) *Gateway {
	if factory == nil {
		factory = DefaultClientFactory
	}
	rps := rate.Every(time.Minute / time.Duration(ratePerMinute))
	return &Gateway{
		descriptors: descriptors,
		credentials: credentials,
		calls:       calls,
		limiter:     rate.NewLimiter(rps, 1),
		timeout:     timeout,
		maxTokens:   maxTokens,
		newClient:   factory,
		logger:      logger,
	}
}

// Generate resolves modelName and performs one generation call.
func (g *Gateway) Generate(ctx context.Context, modelName, systemPrompt, userPrompt string, opts llm.GenerateOptions) (*llm.GenerationResult, error) {
	descriptor, err := g.descriptors.GetActiveByName(ctx, modelName)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, modelName)
	}
	if err != nil {
		return nil, fmt.Errorf("resolving model %s: %w", modelName, err)
	}

	credential, err := g.credentials.GetActive(ctx, descriptor.Provider, model.CategoryContent)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w for provider %s", ErrNoCredential, descriptor.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("resolving credential for %s: %w", descriptor.Provider, err)
	}

	client, err := g.newClient(descriptor.Provider, credential.Secret, descriptor.ProviderModelID)
	if err != nil {
		return nil, fmt.Errorf("building %s client: %w", descriptor.Provider, err)
	}

	// Rate limit — blocks until a token is available or context is cancelled.
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	if opts.MaxTokens <= 0 {
		opts.MaxTokens = g.maxTokens
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	result, err := client.Generate(callCtx, systemPrompt, userPrompt, opts)
	duration := time.Since(start).Milliseconds()

	g.recordCall(ctx, descriptor, result, err, duration)

	if err != nil {
		return nil, err
	}
	return result, nil
}

// recordCall persists a provider call for cost tracking. Never the secret.
func (g *Gateway) recordCall(ctx context.Context, descriptor *model.ModelDescriptor, result *llm.GenerationResult, callErr error, durationMs int64) {
	call := &model.ProviderCall{
		Provider: descriptor.Provider,
		Model:    descriptor.ProviderModelID,
		Success:  callErr == nil,
	}
	call.DurationMs = &durationMs
	if result != nil {
		call.TokensUsed = result.TokensUsed
		call.TokensEstimated = result.Estimated
	}

	if err := g.calls.Create(ctx, call); err != nil {
		g.logger.Error("recording provider call", zap.Error(err))
	}
}

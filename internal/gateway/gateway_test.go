package gateway

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/article-service/internal/llm"
	"github.com/fleveque/article-service/internal/model"
	"github.com/fleveque/article-service/internal/storage"
)

// fakeClient satisfies llm.Client without any network access.
type fakeClient struct {
	provider string
	model    string
	result   *llm.GenerationResult
	err      error
}

func (f *fakeClient) Generate(ctx context.Context, systemPrompt, userPrompt string, opts llm.GenerateOptions) (*llm.GenerationResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeClient) ProviderName() string { return f.provider }
func (f *fakeClient) ModelName() string    { return f.model }

type testEnv struct {
	gateway *Gateway
	calls   storage.ProviderCallRepository
}

// setupGateway builds a gateway over a temp database with one active OpenAI
// descriptor and credential, routing calls to the given fake client.
func setupGateway(t *testing.T, client llm.Client) *testEnv {
	t.Helper()

	db, err := storage.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("creating test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	descriptors := storage.NewModelDescriptorRepository(db)
	err = descriptors.Create(ctx, &model.ModelDescriptor{
		Name:            "gpt-4o",
		DisplayAlias:    "default",
		Provider:        model.ProviderOpenAI,
		ProviderModelID: "gpt-4o-2024-08-06",
		Active:          true,
	})
	if err != nil {
		t.Fatalf("seeding descriptor: %v", err)
	}

	credentials := storage.NewCredentialRepository(db)
	err = credentials.Create(ctx, &model.Credential{
		Provider: model.ProviderOpenAI,
		Category: model.CategoryContent,
		Secret:   "sk-test",
		Active:   true,
	})
	if err != nil {
		t.Fatalf("seeding credential: %v", err)
	}

	calls := storage.NewProviderCallRepository(db)
	factory := func(provider model.Provider, secret, providerModelID string) (llm.Client, error) {
		if secret != "sk-test" {
			t.Errorf("factory received wrong secret")
		}
		if providerModelID != "gpt-4o-2024-08-06" {
			t.Errorf("factory received wrong provider model id: %s", providerModelID)
		}
		return client, nil
	}

	gw := New(descriptors, credentials, calls, 600, 30*time.Second, 4096, factory, zap.NewNop())
	return &testEnv{gateway: gw, calls: calls}
}

func TestGateway_Generate(t *testing.T) {
	env := setupGateway(t, &fakeClient{
		provider: "openai",
		model:    "gpt-4o-2024-08-06",
		result:   &llm.GenerationResult{Text: "<p>article body</p>", TokensUsed: 1500},
	})
	ctx := context.Background()

	result, err := env.gateway.Generate(ctx, "gpt-4o", "system", "user", llm.GenerateOptions{})
	if err != nil {
		t.Fatalf("generating: %v", err)
	}
	if result.Text != "<p>article body</p>" || result.TokensUsed != 1500 {
		t.Errorf("unexpected result: %+v", result)
	}

	// Each outbound call leaves a tracking row.
	count, err := env.calls.Count(ctx)
	if err != nil {
		t.Fatalf("counting calls: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 recorded call, got %d", count)
	}
	total, err := env.calls.TotalTokens(ctx)
	if err != nil {
		t.Fatalf("totaling tokens: %v", err)
	}
	if total != 1500 {
		t.Errorf("expected 1500 tracked tokens, got %d", total)
	}
}

func TestGateway_Generate_ResolvesAlias(t *testing.T) {
	env := setupGateway(t, &fakeClient{
		result: &llm.GenerationResult{Text: "body", TokensUsed: 10},
	})

	if _, err := env.gateway.Generate(context.Background(), "default", "s", "u", llm.GenerateOptions{}); err != nil {
		t.Fatalf("generating via alias: %v", err)
	}
}

func TestGateway_Generate_UnknownModel(t *testing.T) {
	env := setupGateway(t, &fakeClient{})

	_, err := env.gateway.Generate(context.Background(), "no-such-model", "s", "u", llm.GenerateOptions{})
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}

	// No descriptor, no call — nothing to track.
	count, err := env.calls.Count(context.Background())
	if err != nil {
		t.Fatalf("counting calls: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no recorded calls, got %d", count)
	}
}

func TestGateway_Generate_NoCredential(t *testing.T) {
	db, err := storage.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("creating test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	descriptors := storage.NewModelDescriptorRepository(db)
	err = descriptors.Create(ctx, &model.ModelDescriptor{
		Name:            "gemini-1.5-pro",
		Provider:        model.ProviderGemini,
		ProviderModelID: "gemini-1.5-pro",
		Active:          true,
	})
	if err != nil {
		t.Fatalf("seeding descriptor: %v", err)
	}

	gw := New(descriptors, storage.NewCredentialRepository(db),
		storage.NewProviderCallRepository(db),
		600, 30*time.Second, 4096, nil, zap.NewNop())

	_, err = gw.Generate(ctx, "gemini-1.5-pro", "s", "u", llm.GenerateOptions{})
	if !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
}

func TestGateway_Generate_RecordsFailedCall(t *testing.T) {
	env := setupGateway(t, &fakeClient{
		err: llm.NewProviderError("openai", 500, "internal error"),
	})
	ctx := context.Background()

	_, err := env.gateway.Generate(ctx, "gpt-4o", "s", "u", llm.GenerateOptions{})
	var provErr *llm.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *ProviderError, got %v", err)
	}

	// Failures are tracked too, with zero usage.
	count, err := env.calls.Count(ctx)
	if err != nil {
		t.Fatalf("counting calls: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 recorded call, got %d", count)
	}
	total, err := env.calls.TotalTokens(ctx)
	if err != nil {
		t.Fatalf("totaling tokens: %v", err)
	}
	if total != 0 {
		t.Errorf("expected 0 tracked tokens for a failure, got %d", total)
	}
}

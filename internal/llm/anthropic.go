package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// defaultAnthropicMaxTokens applies when a caller leaves MaxTokens unset —
// the Anthropic messages API requires an explicit cap.
const defaultAnthropicMaxTokens = 4096

// AnthropicClient implements the Client interface using Claude's messages API.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates a Claude-backed text generator.
func NewAnthropicClient(apiKey string, model string) *AnthropicClient {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	return &AnthropicClient{
		client: &client,
		model:  model,
	}
}

func (a *AnthropicClient) ProviderName() string { return "anthropic" }
func (a *AnthropicClient) ModelName() string    { return a.model }

func (a *AnthropicClient) Generate(ctx context.Context, systemPrompt, userPrompt string, opts GenerateOptions) (*GenerationResult, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}

	message, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	// Claude returns content as a list of blocks; article text arrives as
	// text blocks which we join in order.
	var sb strings.Builder
	for _, block := range message.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}

	text := sb.String()
	if text == "" {
		return nil, fmt.Errorf("anthropic returned no text blocks: %w", ErrMalformedResponse)
	}

	result := &GenerationResult{Text: text}
	if total := message.Usage.InputTokens + message.Usage.OutputTokens; total > 0 {
		result.TokensUsed = total
	} else {
		result.TokensUsed = EstimateTokens(text)
		result.Estimated = true
	}
	return result, nil
}

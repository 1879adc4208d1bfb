package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient implements the Client interface against OpenAI's chat
// completions API — the flat chat-messages request shape.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates an OpenAI-backed text generator.
func NewOpenAIClient(apiKey string, model string) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (o *OpenAIClient) ProviderName() string { return "openai" }
func (o *OpenAIClient) ModelName() string    { return o.model }

func (o *OpenAIClient) Generate(ctx context.Context, systemPrompt, userPrompt string, opts GenerateOptions) (*GenerationResult, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		req.Temperature = opts.Temperature
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		// The SDK wraps non-2xx responses in APIError — surface them as our
		// normalized ProviderError so callers never branch on vendor types.
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, NewProviderError(o.ProviderName(), apiErr.HTTPStatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("openai API call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices: %w", ErrMalformedResponse)
	}

	text := resp.Choices[0].Message.Content
	if text == "" {
		return nil, fmt.Errorf("openai returned empty content: %w", ErrMalformedResponse)
	}

	result := &GenerationResult{Text: text}
	if resp.Usage.TotalTokens > 0 {
		result.TokensUsed = int64(resp.Usage.TotalTokens)
	} else {
		result.TokensUsed = EstimateTokens(text)
		result.Estimated = true
	}
	return result, nil
}

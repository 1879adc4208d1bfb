package model

import "time"

// Provider identifies an external LLM vendor. The set is closed: adding a
// vendor means adding one llm.Client implementation plus a constant here.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
	ProviderAnthropic Provider = "anthropic"
)

// CredentialCategory scopes a secret to a usage class.
type CredentialCategory string

const (
	CategoryContent CredentialCategory = "content"
)

// ModelDescriptor maps a logical model name to a provider and the provider's
// own model id. Exactly one active descriptor may exist per logical name.
type ModelDescriptor struct {
	ID              int64     `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	DisplayAlias    string    `db:"display_alias" json:"display_alias,omitempty"`
	Provider        Provider  `db:"provider" json:"provider"`
	ProviderModelID string    `db:"provider_model_id" json:"provider_model_id"`
	Active          bool      `db:"active" json:"active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Credential authorizes calls to a provider for a usage category.
// Only the gateway reads Secret; everywhere else it appears masked.
type Credential struct {
	ID        int64              `db:"id" json:"id"`
	Provider  Provider           `db:"provider" json:"provider"`
	Category  CredentialCategory `db:"category" json:"category"`
	Secret    string             `db:"secret" json:"-"`
	Active    bool               `db:"active" json:"active"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
}

// Masked returns the secret reduced to a loggable prefix.
func (c *Credential) Masked() string {
	if len(c.Secret) <= 8 {
		return "****"
	}
	return c.Secret[:4] + "****"
}

// TokenBalance is an account's remaining consumable generation budget.
// It only decreases through debits; top-ups come from an external collaborator.
type TokenBalance struct {
	AccountID         string    `db:"account_id" json:"account_id"`
	TokensRemaining   int64     `db:"tokens_remaining" json:"tokens_remaining"`
	ArticlesRemaining int64     `db:"articles_remaining" json:"articles_remaining"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// PromptTemplate is a stored system/user prompt pair keyed by feature name.
// Variables declares the placeholder names the user prompt expects.
type PromptTemplate struct {
	ID           int64      `db:"id" json:"id"`
	FeatureKey   string     `db:"feature_key" json:"feature_key"`
	SystemPrompt string     `db:"system_prompt" json:"system_prompt"`
	UserPrompt   string     `db:"user_prompt" json:"user_prompt"`
	Variables    StringList `db:"variables" json:"variables"`
	Active       bool       `db:"active" json:"active"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// ProviderCall tracks each outbound generation call for cost monitoring.
type ProviderCall struct {
	ID              int64     `db:"id" json:"id"`
	Provider        Provider  `db:"provider" json:"provider"`
	Model           string    `db:"model" json:"model"`
	TokensUsed      int64     `db:"tokens_used" json:"tokens_used"`
	TokensEstimated bool      `db:"tokens_estimated" json:"tokens_estimated"`
	Success         bool      `db:"success" json:"success"`
	DurationMs      *int64    `db:"duration_ms" json:"duration_ms,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

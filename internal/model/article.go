package model

import "time"

// ArticleStatus represents the publishing state of a generated article.
// The pipeline only ever writes draft; later states belong to the UI layer.
type ArticleStatus string

const (
	ArticleStatusDraft     ArticleStatus = "draft"
	ArticleStatusPublished ArticleStatus = "published"
)

// Article is a generated content unit. Content length and token usage are
// immutable once written — the pipeline inserts, it never updates bodies.
type Article struct {
	ID              string        `db:"id" json:"id"`
	AccountID       string        `db:"account_id" json:"account_id"`
	JobID           *int64        `db:"job_id" json:"job_id,omitempty"`
	Keyword         string        `db:"keyword" json:"keyword"`
	Title           string        `db:"title" json:"title"`
	SEOTitle        string        `db:"seo_title" json:"seo_title,omitempty"`
	MetaDescription string        `db:"meta_description" json:"meta_description,omitempty"`
	BodyHTML        string        `db:"body_html" json:"body_html"`
	Status          ArticleStatus `db:"status" json:"status"`
	TokensUsed      int64         `db:"tokens_used" json:"tokens_used"`

	// TokensEstimated marks usage derived from the word-count heuristic
	// rather than the provider's own accounting field.
	TokensEstimated bool `db:"tokens_estimated" json:"tokens_estimated"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

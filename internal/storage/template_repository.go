package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/article-service/internal/model"
)

// TemplateRepository is the stored-prompt lookup service. A missing template
// is an expected condition — the resolver degrades to built-in defaults.
type TemplateRepository interface {
	GetActiveByKey(ctx context.Context, featureKey string) (*model.PromptTemplate, error)
	Create(ctx context.Context, template *model.PromptTemplate) error
}

type sqliteTemplateRepository struct {
	db *sqlx.DB
}

// NewTemplateRepository creates a new SQLite-backed TemplateRepository.
func NewTemplateRepository(db *sqlx.DB) TemplateRepository {
	return &sqliteTemplateRepository{db: db}
}

func (r *sqliteTemplateRepository) GetActiveByKey(ctx context.Context, featureKey string) (*model.PromptTemplate, error) {
	var template model.PromptTemplate
	err := r.db.GetContext(ctx, &template, `
		SELECT * FROM prompt_templates
		WHERE feature_key = ? AND active = 1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, featureKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting template %s: %w", featureKey, err)
	}
	return &template, nil
}

func (r *sqliteTemplateRepository) Create(ctx context.Context, template *model.PromptTemplate) error {
	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO prompt_templates (feature_key, system_prompt, user_prompt, variables, active)
		VALUES (:feature_key, :system_prompt, :user_prompt, :variables, :active)
	`, template)
	if err != nil {
		return fmt.Errorf("creating template: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	template.ID = id
	return nil
}

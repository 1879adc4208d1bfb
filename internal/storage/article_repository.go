package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/article-service/internal/model"
)

// ArticleRepository defines the interface for article persistence.
// The pipeline inserts articles; it never rewrites bodies or usage counts.
type ArticleRepository interface {
	Create(ctx context.Context, article *model.Article) error
	GetByID(ctx context.Context, id string) (*model.Article, error)
	ListByJob(ctx context.Context, jobID int64) ([]model.Article, error)
	Count(ctx context.Context) (int64, error)
	CountByAccount(ctx context.Context, accountID string) (int64, error)
}

type sqliteArticleRepository struct {
	db *sqlx.DB
}

// NewArticleRepository creates a new SQLite-backed ArticleRepository.
func NewArticleRepository(db *sqlx.DB) ArticleRepository {
	return &sqliteArticleRepository{db: db}
}

func (r *sqliteArticleRepository) Create(ctx context.Context, article *model.Article) error {
	if article.Status == "" {
		article.Status = model.ArticleStatusDraft
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO articles (id, account_id, job_id, keyword, title, seo_title,
		                      meta_description, body_html, status, tokens_used,
		                      tokens_estimated)
		VALUES (:id, :account_id, :job_id, :keyword, :title, :seo_title,
		        :meta_description, :body_html, :status, :tokens_used,
		        :tokens_estimated)
	`, article)
	if err != nil {
		return fmt.Errorf("creating article: %w", err)
	}
	return nil
}

func (r *sqliteArticleRepository) GetByID(ctx context.Context, id string) (*model.Article, error) {
	var article model.Article
	err := r.db.GetContext(ctx, &article, "SELECT * FROM articles WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting article %s: %w", id, err)
	}
	return &article, nil
}

func (r *sqliteArticleRepository) ListByJob(ctx context.Context, jobID int64) ([]model.Article, error) {
	var articles []model.Article
	err := r.db.SelectContext(ctx, &articles,
		"SELECT * FROM articles WHERE job_id = ? ORDER BY created_at ASC, id ASC", jobID)
	if err != nil {
		return nil, fmt.Errorf("listing articles for job %d: %w", jobID, err)
	}
	return articles, nil
}

func (r *sqliteArticleRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM articles")
	return count, err
}

func (r *sqliteArticleRepository) CountByAccount(ctx context.Context, accountID string) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM articles WHERE account_id = ?", accountID)
	return count, err
}

package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/fleveque/article-service/internal/model"
)

func TestArticleRepository_CreateAndGet(t *testing.T) {
	repo := NewArticleRepository(setupTestDB(t))
	ctx := context.Background()

	article := &model.Article{
		ID:              uuid.NewString(),
		AccountID:       "acct-1",
		Keyword:         "go concurrency",
		Title:           "Go Concurrency",
		SEOTitle:        "Go Concurrency Explained",
		MetaDescription: "A practical guide to goroutines and channels.",
		BodyHTML:        "<h2>Goroutines</h2><p>...</p>",
		TokensUsed:      4200,
	}
	if err := repo.Create(ctx, article); err != nil {
		t.Fatalf("creating article: %v", err)
	}

	got, err := repo.GetByID(ctx, article.ID)
	if err != nil {
		t.Fatalf("getting article: %v", err)
	}
	if got.Status != model.ArticleStatusDraft {
		t.Errorf("expected default draft status, got %s", got.Status)
	}
	if got.Keyword != "go concurrency" || got.TokensUsed != 4200 {
		t.Errorf("article did not round-trip: %+v", got)
	}
	if got.JobID != nil {
		t.Errorf("expected nil job id for single-item article, got %v", *got.JobID)
	}
}

func TestArticleRepository_GetByID_NotFound(t *testing.T) {
	repo := NewArticleRepository(setupTestDB(t))

	_, err := repo.GetByID(context.Background(), uuid.NewString())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestArticleRepository_ListByJob(t *testing.T) {
	db := setupTestDB(t)
	articles := NewArticleRepository(db)
	jobs := NewJobRepository(db)
	ctx := context.Background()

	job := testJob("acct-1", "a", "b")
	if err := jobs.Create(ctx, job); err != nil {
		t.Fatalf("creating job: %v", err)
	}

	for _, keyword := range []string{"a", "b"} {
		err := articles.Create(ctx, &model.Article{
			ID:        uuid.NewString(),
			AccountID: "acct-1",
			JobID:     &job.ID,
			Keyword:   keyword,
			Title:     keyword,
			BodyHTML:  "<p>body</p>",
		})
		if err != nil {
			t.Fatalf("creating article for %s: %v", keyword, err)
		}
	}
	// An article outside the job must not appear in the listing.
	err := articles.Create(ctx, &model.Article{
		ID:        uuid.NewString(),
		AccountID: "acct-1",
		Keyword:   "standalone",
		Title:     "standalone",
		BodyHTML:  "<p>body</p>",
	})
	if err != nil {
		t.Fatalf("creating standalone article: %v", err)
	}

	listed, err := articles.ListByJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("listing articles: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(listed))
	}

	count, err := articles.CountByAccount(ctx, "acct-1")
	if err != nil {
		t.Fatalf("counting by account: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 articles for account, got %d", count)
	}
}

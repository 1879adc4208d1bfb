package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fleveque/article-service/internal/middleware"
	"github.com/fleveque/article-service/internal/model"
	"github.com/fleveque/article-service/internal/storage"
)

func TestArticleHandler_Get(t *testing.T) {
	db := setupTestDB(t)
	articles := storage.NewArticleRepository(db)

	article := &model.Article{
		ID:        uuid.NewString(),
		AccountID: "acct-1",
		Keyword:   "go testing",
		Title:     "Go Testing",
		BodyHTML:  "<p>body</p>",
	}
	if err := articles.Create(context.Background(), article); err != nil {
		t.Fatalf("creating article: %v", err)
	}

	h := NewArticleHandler(articles, zap.NewNop())
	router := gin.New()
	router.Use(middleware.AccountID())
	router.GET("/api/v1/articles/:id", h.Get)

	req := httptest.NewRequest("GET", "/api/v1/articles/"+article.ID, nil)
	req.Header.Set("X-Account-ID", "acct-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Another account gets 404, same as a missing article.
	req = httptest.NewRequest("GET", "/api/v1/articles/"+article.ID, nil)
	req.Header.Set("X-Account-ID", "acct-2")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for foreign article, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/v1/articles/"+uuid.NewString(), nil)
	req.Header.Set("X-Account-ID", "acct-1")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing article, got %d", w.Code)
	}
}

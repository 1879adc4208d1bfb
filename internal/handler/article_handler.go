package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/article-service/internal/middleware"
	"github.com/fleveque/article-service/internal/storage"
)

// ArticleHandler serves generated articles.
type ArticleHandler struct {
	articles storage.ArticleRepository
	logger   *zap.Logger
}

// NewArticleHandler creates a new ArticleHandler.
func NewArticleHandler(articles storage.ArticleRepository, logger *zap.Logger) *ArticleHandler {
	return &ArticleHandler{articles: articles, logger: logger}
}

// Get returns one article.
// Route: GET /api/v1/articles/:id
func (h *ArticleHandler) Get(c *gin.Context) {
	article, err := h.articles.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
		return
	}
	if err != nil {
		h.logger.Error("getting article", zap.String("article_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if article.AccountID != middleware.GetAccountID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
		return
	}

	c.JSON(http.StatusOK, article)
}

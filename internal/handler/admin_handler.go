package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/article-service/internal/model"
	"github.com/fleveque/article-service/internal/storage"
)

// AdminHandler handles administrative endpoints.
type AdminHandler struct {
	jobs     storage.JobRepository
	articles storage.ArticleRepository
	calls    storage.ProviderCallRepository
	logger   *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(jobs storage.JobRepository, articles storage.ArticleRepository, calls storage.ProviderCallRepository, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{jobs: jobs, articles: articles, calls: calls, logger: logger}
}

// Stats returns job, article, and provider call counts.
// Route: GET /api/v1/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	statuses := []model.JobStatus{
		model.JobStatusPending,
		model.JobStatusProcessing,
		model.JobStatusCompleted,
		model.JobStatusCompletedWithErrors,
		model.JobStatusFailed,
	}
	jobCounts := make(map[string]int64, len(statuses))
	for _, status := range statuses {
		count, err := h.jobs.CountByStatus(ctx, status)
		if err != nil {
			h.logger.Error("counting jobs", zap.String("status", string(status)), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		jobCounts[string(status)] = count
	}

	articleCount, err := h.articles.Count(ctx)
	if err != nil {
		h.logger.Error("counting articles", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	callCount, err := h.calls.Count(ctx)
	if err != nil {
		h.logger.Error("counting provider calls", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	totalTokens, err := h.calls.TotalTokens(ctx)
	if err != nil {
		h.logger.Error("summing tokens", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":           jobCounts,
		"articles":       articleCount,
		"provider_calls": callCount,
		"total_tokens":   totalTokens,
	})
}

// Reclaim resets jobs stuck in processing past the lease timeout back to
// pending. The worker runs the same sweep on a timer; this endpoint lets an
// operator force it.
// Route: POST /api/v1/admin/reclaim?max_age_seconds=1800
func (h *AdminHandler) Reclaim(maxAgeSeconds int) gin.HandlerFunc {
	return func(c *gin.Context) {
		reclaimed, err := h.jobs.ReclaimStale(c.Request.Context(), maxAgeSeconds)
		if err != nil {
			h.logger.Error("reclaiming stale jobs", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"reclaimed": reclaimed})
	}
}

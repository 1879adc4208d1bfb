package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/article-service/internal/ledger"
	"github.com/fleveque/article-service/internal/middleware"
	"github.com/fleveque/article-service/internal/model"
	"github.com/fleveque/article-service/internal/storage"
)

// JobHandler handles batch job submission and status polling.
type JobHandler struct {
	jobs   storage.JobRepository
	ledger *ledger.Ledger
	logger *zap.Logger
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(jobs storage.JobRepository, ledg *ledger.Ledger, logger *zap.Logger) *JobHandler {
	return &JobHandler{jobs: jobs, ledger: ledg, logger: logger}
}

// submitJobRequest is the job submission payload.
type submitJobRequest struct {
	Keywords []string                 `json:"keywords"`
	Settings model.GenerationSettings `json:"settings"`
}

// Submit creates a pending batch job.
// Route: POST /api/v1/jobs
//
// The budget snapshot taken here is informational only — the worker re-reads
// the balance per item, so a job can outlive a concurrent top-up or drain.
func (h *JobHandler) Submit(c *gin.Context) {
	accountID := middleware.GetAccountID(c)

	var req submitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	keywords := make([]string, 0, len(req.Keywords))
	for _, k := range req.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	if len(keywords) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one keyword is required"})
		return
	}
	if req.Settings.Model == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "settings.model is required"})
		return
	}
	if req.Settings.Length == "" {
		req.Settings.Length = model.LengthMedium
	}
	if !model.ValidLength(string(req.Settings.Length)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "settings.length must be short, medium, or long"})
		return
	}
	if req.Settings.OutlineOption == "" {
		req.Settings.OutlineOption = model.OutlineNone
	}

	snapshot, err := h.ledger.Snapshot(c.Request.Context(), accountID)
	if err != nil {
		h.logger.Error("snapshotting balance", zap.String("account_id", accountID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	job := &model.Job{
		AccountID:        accountID,
		Keywords:         model.StringList(keywords),
		Settings:         req.Settings,
		Status:           model.JobStatusPending,
		SnapshotTokens:   snapshot.TokensRemaining,
		SnapshotArticles: snapshot.ArticlesRemaining,
	}
	if err := h.jobs.Create(c.Request.Context(), job); err != nil {
		h.logger.Error("creating job", zap.String("account_id", accountID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":      job.ID,
		"status":      job.Status,
		"total_items": job.TotalItems,
	})
}

// Status returns job progress for UI polling.
// Route: GET /api/v1/jobs/:id
func (h *JobHandler) Status(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	job, err := h.jobs.GetByID(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if err != nil {
		h.logger.Error("getting job", zap.Int64("job_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	// Jobs are account-scoped; a caller can only read its own.
	if job.AccountID != middleware.GetAccountID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":              job.ID,
		"status":          job.Status,
		"total_items":     job.TotalItems,
		"completed_items": job.CompletedItems,
		"failed_items":    job.FailedItems,
		"tokens_used":     job.TokensUsed,
		"article_ids":     job.ArticleIDs,
		"error_log":       job.ErrorLog,
	})
}

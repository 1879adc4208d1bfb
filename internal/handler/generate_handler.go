package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/article-service/internal/generator"
	"github.com/fleveque/article-service/internal/middleware"
	"github.com/fleveque/article-service/internal/model"
)

// GenerateHandler serves the synchronous streaming generation path.
type GenerateHandler struct {
	generator *generator.Generator
	logger    *zap.Logger
}

// NewGenerateHandler creates a new GenerateHandler.
func NewGenerateHandler(gen *generator.Generator, logger *zap.Logger) *GenerateHandler {
	return &GenerateHandler{generator: gen, logger: logger}
}

type generateRequest struct {
	Keyword  string                   `json:"keyword"`
	Settings model.GenerationSettings `json:"settings"`
}

// Stream generates one article, emitting newline-delimited JSON frames:
// zero or more progress frames, then exactly one complete or error frame.
// Route: POST /api/v1/generate
func (h *GenerateHandler) Stream(c *gin.Context) {
	accountID := middleware.GetAccountID(c)

	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.Keyword = strings.TrimSpace(req.Keyword)
	if req.Keyword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "keyword is required"})
		return
	}
	if req.Settings.Model == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "settings.model is required"})
		return
	}
	if req.Settings.Length == "" {
		req.Settings.Length = model.LengthMedium
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no") // disable proxy buffering for live frames
	c.Status(http.StatusOK)

	flusher, _ := c.Writer.(http.Flusher)
	sink := func(frame generator.Frame) error {
		payload, err := json.Marshal(frame)
		if err != nil {
			return err
		}
		if _, err := c.Writer.Write(append(payload, '\n')); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	// A disconnected client stops frame emission inside the generator, but
	// generation, persistence, and the debit still run to completion.
	_, err := h.generator.Generate(c.Request.Context(), accountID, generator.Request{
		Keyword:  req.Keyword,
		Settings: req.Settings,
	}, sink)
	if err != nil {
		h.logger.Warn("stream generation failed",
			zap.String("account_id", accountID),
			zap.String("keyword", req.Keyword),
			zap.Error(err),
		)
	}
}

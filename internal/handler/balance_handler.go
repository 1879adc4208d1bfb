package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/article-service/internal/ledger"
	"github.com/fleveque/article-service/internal/middleware"
)

// BalanceHandler exposes the account's remaining generation budget.
type BalanceHandler struct {
	ledger *ledger.Ledger
	logger *zap.Logger
}

// NewBalanceHandler creates a new BalanceHandler.
func NewBalanceHandler(ledg *ledger.Ledger, logger *zap.Logger) *BalanceHandler {
	return &BalanceHandler{ledger: ledg, logger: logger}
}

// Get returns the caller's token and article balance.
// Route: GET /api/v1/balance
func (h *BalanceHandler) Get(c *gin.Context) {
	accountID := middleware.GetAccountID(c)

	balance, err := h.ledger.Snapshot(c.Request.Context(), accountID)
	if err != nil {
		h.logger.Error("reading balance", zap.String("account_id", accountID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account_id":         balance.AccountID,
		"tokens_remaining":   balance.TokensRemaining,
		"articles_remaining": balance.ArticlesRemaining,
	})
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/article-service/internal/ledger"
	"github.com/fleveque/article-service/internal/middleware"
	"github.com/fleveque/article-service/internal/model"
	"github.com/fleveque/article-service/internal/storage"
)

func TestBalanceHandler_Get(t *testing.T) {
	db := setupTestDB(t)
	logger := zap.NewNop()
	balances := storage.NewBalanceRepository(db)
	err := balances.Upsert(context.Background(), &model.TokenBalance{
		AccountID:         "acct-1",
		TokensRemaining:   42000,
		ArticlesRemaining: 7,
	})
	if err != nil {
		t.Fatalf("seeding balance: %v", err)
	}

	h := NewBalanceHandler(ledger.New(balances, logger), logger)
	router := gin.New()
	router.Use(middleware.AccountID())
	router.GET("/api/v1/balance", h.Get)

	req := httptest.NewRequest("GET", "/api/v1/balance", nil)
	req.Header.Set("X-Account-ID", "acct-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		TokensRemaining   int64 `json:"tokens_remaining"`
		ArticlesRemaining int64 `json:"articles_remaining"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.TokensRemaining != 42000 || resp.ArticlesRemaining != 7 {
		t.Errorf("unexpected balance: %+v", resp)
	}

	// Unknown accounts read as zero, not as an error.
	req = httptest.NewRequest("GET", "/api/v1/balance", nil)
	req.Header.Set("X-Account-ID", "acct-new")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown account, got %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.TokensRemaining != 0 || resp.ArticlesRemaining != 0 {
		t.Errorf("expected zero balance, got %+v", resp)
	}
}

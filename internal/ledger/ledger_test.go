package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/fleveque/article-service/internal/model"
	"github.com/fleveque/article-service/internal/storage"
)

func setupLedger(t *testing.T) (*Ledger, storage.BalanceRepository) {
	t.Helper()

	db, err := storage.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("creating test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	balances := storage.NewBalanceRepository(db)
	return New(balances, zap.NewNop()), balances
}

func seedBalance(t *testing.T, balances storage.BalanceRepository, account string, tokens, articles int64) {
	t.Helper()
	err := balances.Upsert(context.Background(), &model.TokenBalance{
		AccountID:         account,
		TokensRemaining:   tokens,
		ArticlesRemaining: articles,
	})
	if err != nil {
		t.Fatalf("seeding balance: %v", err)
	}
}

func TestEstimatedCost(t *testing.T) {
	tests := []struct {
		length model.LengthClass
		want   int64
	}{
		{model.LengthShort, 5000},
		{model.LengthMedium, 10000},
		{model.LengthLong, 20000},
		{"", 10000}, // unknown classes fall back to medium
	}
	for _, tt := range tests {
		if got := EstimatedCost(tt.length); got != tt.want {
			t.Errorf("EstimatedCost(%q) = %d, want %d", tt.length, got, tt.want)
		}
	}
}

func TestLedger_Admit_Allowed(t *testing.T) {
	ledger, balances := setupLedger(t)
	seedBalance(t, balances, "acct-1", 10000, 5)

	decision, err := ledger.Admit(context.Background(), "acct-1", model.LengthShort)
	if err != nil {
		t.Fatalf("admitting: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected admission, got denial: %s", decision.Reason)
	}
}

func TestLedger_Admit_InsufficientTokens(t *testing.T) {
	ledger, balances := setupLedger(t)
	seedBalance(t, balances, "acct-1", 3000, 5)

	decision, err := ledger.Admit(context.Background(), "acct-1", model.LengthShort)
	if err != nil {
		t.Fatalf("admitting: %v", err)
	}
	if decision.Allowed {
		t.Fatal("expected denial")
	}
	if decision.Reason != "insufficient tokens" {
		t.Errorf("unexpected reason: %s", decision.Reason)
	}
	if decision.Shortfall != 2000 {
		t.Errorf("expected shortfall 2000, got %d", decision.Shortfall)
	}
}

func TestLedger_Admit_QuotaExhausted(t *testing.T) {
	ledger, balances := setupLedger(t)
	seedBalance(t, balances, "acct-1", 50000, 0)

	decision, err := ledger.Admit(context.Background(), "acct-1", model.LengthMedium)
	if err != nil {
		t.Fatalf("admitting: %v", err)
	}
	if decision.Allowed {
		t.Fatal("expected denial")
	}
	if decision.Reason != "article quota exhausted" {
		t.Errorf("unexpected reason: %s", decision.Reason)
	}
}

func TestLedger_Admit_UnknownAccount(t *testing.T) {
	ledger, _ := setupLedger(t)

	// No balance row at all reads as a zero balance, not an error.
	decision, err := ledger.Admit(context.Background(), "missing", model.LengthLong)
	if err != nil {
		t.Fatalf("admitting: %v", err)
	}
	if decision.Allowed {
		t.Fatal("expected denial")
	}
	if decision.Shortfall != CostLong {
		t.Errorf("expected shortfall %d, got %d", CostLong, decision.Shortfall)
	}
}

func TestLedger_Debit_Idempotent(t *testing.T) {
	ledger, balances := setupLedger(t)
	seedBalance(t, balances, "acct-1", 10000, 5)
	ctx := context.Background()

	balance, err := ledger.Debit(ctx, "acct-1", "article-1", 4000)
	if err != nil {
		t.Fatalf("debiting: %v", err)
	}
	if balance.TokensRemaining != 6000 {
		t.Errorf("expected 6000 remaining, got %d", balance.TokensRemaining)
	}

	balance, err = ledger.Debit(ctx, "acct-1", "article-1", 4000)
	if err != nil {
		t.Fatalf("repeated debit: %v", err)
	}
	if balance.TokensRemaining != 6000 {
		t.Errorf("repeated debit charged twice: %d remaining", balance.TokensRemaining)
	}
}

func TestLedger_Snapshot_UnknownAccount(t *testing.T) {
	ledger, _ := setupLedger(t)

	balance, err := ledger.Snapshot(context.Background(), "missing")
	if err != nil {
		t.Fatalf("snapshotting: %v", err)
	}
	if balance.TokensRemaining != 0 || balance.ArticlesRemaining != 0 {
		t.Errorf("expected zero balance, got %+v", balance)
	}
	if balance.AccountID != "missing" {
		t.Errorf("expected account id preserved, got %s", balance.AccountID)
	}
}

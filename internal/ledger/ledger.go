// Package ledger enforces admission control against per-account token
// budgets and applies post-generation debits. Admission works on a
// conservative estimate; the authoritative balance is always re-read at
// debit time, never assumed frozen across a job's lifetime.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fleveque/article-service/internal/model"
	"github.com/fleveque/article-service/internal/storage"
)

// Estimated cost per length class, in tokens. Deliberately conservative
// upper bounds: under heavy concurrency total consumption may transiently
// exceed the pre-admission estimate, and that is acceptable because these
// overshoot actual usage.
const (
	CostShort  int64 = 5000
	CostMedium int64 = 10000
	CostLong   int64 = 20000
)

// EstimatedCost returns the admission estimate for a length class.
func EstimatedCost(length model.LengthClass) int64 {
	switch length {
	case model.LengthShort:
		return CostShort
	case model.LengthLong:
		return CostLong
	default:
		return CostMedium
	}
}

// Decision is the admission outcome. Shortfall lets the caller present an
// upgrade prompt when denied.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	Reason    string `json:"reason,omitempty"`
	Shortfall int64  `json:"shortfall,omitempty"`
}

// Ledger snapshots and debits account balances.
type Ledger struct {
	balances storage.BalanceRepository
	logger   *zap.Logger
}

// New creates a Ledger over the balance store.
func New(balances storage.BalanceRepository, logger *zap.Logger) *Ledger {
	return &Ledger{balances: balances, logger: logger}
}

// Admit compares the account's current balance against the estimated cost of
// one article of the given length class. Concurrent admission for the same
// account does not serialize here — the debit step is the consistency point.
func (l *Ledger) Admit(ctx context.Context, accountID string, length model.LengthClass) (*Decision, error) {
	cost := EstimatedCost(length)

	balance, err := l.balances.Get(ctx, accountID)
	if errors.Is(err, storage.ErrNotFound) {
		return &Decision{
			Allowed:   false,
			Reason:    "insufficient tokens",
			Shortfall: cost,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading balance for admission: %w", err)
	}

	if balance.ArticlesRemaining < 1 {
		return &Decision{
			Allowed: false,
			Reason:  "article quota exhausted",
		}, nil
	}

	if balance.TokensRemaining < cost {
		return &Decision{
			Allowed:   false,
			Reason:    "insufficient tokens",
			Shortfall: cost - balance.TokensRemaining,
		}, nil
	}

	return &Decision{Allowed: true}, nil
}

// Debit deducts actual token usage. Idempotent per (accountID, operationID):
// a worker retrying bookkeeping after a crash between generation and debit
// must not double-charge.
func (l *Ledger) Debit(ctx context.Context, accountID, operationID string, tokens int64) (*model.TokenBalance, error) {
	balance, err := l.balances.Debit(ctx, accountID, operationID, tokens)
	if err != nil {
		return nil, fmt.Errorf("debiting %d tokens from %s: %w", tokens, accountID, err)
	}

	l.logger.Debug("debited tokens",
		zap.String("account_id", accountID),
		zap.String("operation_id", operationID),
		zap.Int64("tokens", tokens),
		zap.Int64("tokens_remaining", balance.TokensRemaining),
	)
	return balance, nil
}

// Snapshot returns the current balance for informational use — job admission
// records it, but nothing downstream relies on it staying accurate.
func (l *Ledger) Snapshot(ctx context.Context, accountID string) (*model.TokenBalance, error) {
	balance, err := l.balances.Get(ctx, accountID)
	if errors.Is(err, storage.ErrNotFound) {
		return &model.TokenBalance{AccountID: accountID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshotting balance: %w", err)
	}
	return balance, nil
}

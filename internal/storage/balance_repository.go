package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/article-service/internal/model"
)

// BalanceRepository manages per-account token balances. Debit is the only
// mutator the pipeline uses; top-ups (Upsert) belong to the external
// plan-change collaborator and the seed tooling.
type BalanceRepository interface {
	Get(ctx context.Context, accountID string) (*model.TokenBalance, error)

	// Debit atomically decrements the balance by tokens and the article quota
	// by one, flooring both at zero. It is idempotent per (accountID,
	// operationID): reapplying an already-recorded debit returns the current
	// balance without charging again.
	Debit(ctx context.Context, accountID, operationID string, tokens int64) (*model.TokenBalance, error)

	Upsert(ctx context.Context, balance *model.TokenBalance) error
}

type sqliteBalanceRepository struct {
	db *sqlx.DB
}

// NewBalanceRepository creates a new SQLite-backed BalanceRepository.
func NewBalanceRepository(db *sqlx.DB) BalanceRepository {
	return &sqliteBalanceRepository{db: db}
}

func (r *sqliteBalanceRepository) Get(ctx context.Context, accountID string) (*model.TokenBalance, error) {
	var balance model.TokenBalance
	err := r.db.GetContext(ctx, &balance,
		"SELECT * FROM token_balances WHERE account_id = ?", accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting balance for %s: %w", accountID, err)
	}
	return &balance, nil
}

func (r *sqliteBalanceRepository) Debit(ctx context.Context, accountID, operationID string, tokens int64) (*model.TokenBalance, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning debit tx: %w", err)
	}
	defer tx.Rollback() // no-op after a successful Commit

	// INSERT OR IGNORE against the UNIQUE(account_id, operation_id) index is
	// the idempotence check: zero rows affected means this operation was
	// already debited — e.g. a worker retrying bookkeeping after a crash
	// between generation and debit.
	result, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO token_debits (account_id, operation_id, tokens)
		VALUES (?, ?, ?)
	`, accountID, operationID, tokens)
	if err != nil {
		return nil, fmt.Errorf("recording debit: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking debit record: %w", err)
	}

	if rows > 0 {
		// First application: atomic decrement with a floor check in SQL —
		// never a read-modify-write that can race with another worker.
		res, err := tx.ExecContext(ctx, `
			UPDATE token_balances SET
				tokens_remaining = MAX(tokens_remaining - ?, 0),
				articles_remaining = MAX(articles_remaining - 1, 0),
				updated_at = CURRENT_TIMESTAMP
			WHERE account_id = ?
		`, tokens, accountID)
		if err != nil {
			return nil, fmt.Errorf("debiting balance for %s: %w", accountID, err)
		}
		updated, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("checking debit update: %w", err)
		}
		if updated == 0 {
			return nil, fmt.Errorf("debiting balance for %s: %w", accountID, ErrNotFound)
		}
	}

	var balance model.TokenBalance
	if err := tx.GetContext(ctx, &balance,
		"SELECT * FROM token_balances WHERE account_id = ?", accountID); err != nil {
		return nil, fmt.Errorf("reading balance after debit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing debit: %w", err)
	}
	return &balance, nil
}

func (r *sqliteBalanceRepository) Upsert(ctx context.Context, balance *model.TokenBalance) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO token_balances (account_id, tokens_remaining, articles_remaining)
		VALUES (:account_id, :tokens_remaining, :articles_remaining)
		ON CONFLICT(account_id) DO UPDATE SET
			tokens_remaining = excluded.tokens_remaining,
			articles_remaining = excluded.articles_remaining,
			updated_at = CURRENT_TIMESTAMP
	`, balance)
	if err != nil {
		return fmt.Errorf("upserting balance for %s: %w", balance.AccountID, err)
	}
	return nil
}

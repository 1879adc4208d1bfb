package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/article-service/internal/model"
)

// ErrNotFound is returned when a requested row doesn't exist.
// Go uses sentinel errors (predefined error values) instead of exception types.
// Callers check with errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("not found")

// JobRepository defines the interface for batch job persistence.
// Go interfaces are implicit — any struct that has these methods satisfies it,
// which keeps tests free to substitute fakes without importing the real thing.
type JobRepository interface {
	Create(ctx context.Context, job *model.Job) error
	GetByID(ctx context.Context, id int64) (*model.Job, error)

	// ClaimOldestPending atomically transitions the oldest pending job to
	// processing and returns it. Returns ErrNotFound when no pending job
	// exists or another worker won the claim.
	ClaimOldestPending(ctx context.Context) (*model.Job, error)

	// UpdateProgress persists per-item counters mid-run. Only valid while the
	// job is processing.
	UpdateProgress(ctx context.Context, job *model.Job) error

	// Finalize moves a processing job to its terminal status, persisting final
	// counts and the article id list. Returns ErrNotFound if the job is not in
	// processing — a job never finalizes twice.
	Finalize(ctx context.Context, job *model.Job) error

	// ReclaimStale resets jobs stuck in processing longer than maxAge back to
	// pending, clearing the claim. Returns the number of jobs reclaimed.
	ReclaimStale(ctx context.Context, maxAgeSeconds int) (int64, error)

	CountByStatus(ctx context.Context, status model.JobStatus) (int64, error)
}

// sqliteJobRepository is the SQLite implementation of JobRepository.
// The struct is unexported — only the interface is public.
type sqliteJobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new SQLite-backed JobRepository.
func NewJobRepository(db *sqlx.DB) JobRepository {
	return &sqliteJobRepository{db: db}
}

func (r *sqliteJobRepository) Create(ctx context.Context, job *model.Job) error {
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}
	job.TotalItems = len(job.Keywords)

	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO jobs (account_id, keywords, settings, status, total_items,
		                  snapshot_tokens, snapshot_articles)
		VALUES (:account_id, :keywords, :settings, :status, :total_items,
		        :snapshot_tokens, :snapshot_articles)
	`, job)
	if err != nil {
		return fmt.Errorf("creating job: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	job.ID = id
	return nil
}

func (r *sqliteJobRepository) GetByID(ctx context.Context, id int64) (*model.Job, error) {
	var job model.Job
	err := r.db.GetContext(ctx, &job, "SELECT * FROM jobs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting job %d: %w", id, err)
	}
	return &job, nil
}

func (r *sqliteJobRepository) ClaimOldestPending(ctx context.Context) (*model.Job, error) {
	// Step 1: find a candidate. Step 2: conditionally claim it — the UPDATE
	// only succeeds if the row is still pending, so two workers racing for the
	// same job produce exactly one winner. RowsAffected tells us which we are.
	var id int64
	err := r.db.GetContext(ctx, &id,
		"SELECT id FROM jobs WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT 1",
		model.JobStatusPending)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding pending job: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = ?, claimed_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, model.JobStatusProcessing, id, model.JobStatusPending)
	if err != nil {
		return nil, fmt.Errorf("claiming job %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking claim result: %w", err)
	}
	if rows == 0 {
		// Lost the race — the row left pending between SELECT and UPDATE.
		return nil, ErrNotFound
	}

	return r.GetByID(ctx, id)
}

func (r *sqliteJobRepository) UpdateProgress(ctx context.Context, job *model.Job) error {
	_, err := r.db.NamedExecContext(ctx, `
		UPDATE jobs SET
			completed_items = :completed_items,
			failed_items = :failed_items,
			tokens_used = :tokens_used,
			article_ids = :article_ids,
			error_log = :error_log,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = :id AND status = 'processing'
	`, job)
	if err != nil {
		return fmt.Errorf("updating job %d progress: %w", job.ID, err)
	}
	return nil
}

func (r *sqliteJobRepository) Finalize(ctx context.Context, job *model.Job) error {
	if !job.Status.Terminal() {
		return fmt.Errorf("finalizing job %d: %s is not a terminal status", job.ID, job.Status)
	}

	result, err := r.db.NamedExecContext(ctx, `
		UPDATE jobs SET
			status = :status,
			completed_items = :completed_items,
			failed_items = :failed_items,
			tokens_used = :tokens_used,
			article_ids = :article_ids,
			error_log = :error_log,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = :id AND status = 'processing'
	`, job)
	if err != nil {
		return fmt.Errorf("finalizing job %d: %w", job.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking finalize result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteJobRepository) ReclaimStale(ctx context.Context, maxAgeSeconds int) (int64, error) {
	cutoff := fmt.Sprintf("-%d seconds", maxAgeSeconds)
	result, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = ?, claimed_at = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE status = ? AND claimed_at < datetime('now', ?)
	`, model.JobStatusPending, model.JobStatusProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("reclaiming stale jobs: %w", err)
	}
	return result.RowsAffected()
}

func (r *sqliteJobRepository) CountByStatus(ctx context.Context, status model.JobStatus) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM jobs WHERE status = ?", status)
	return count, err
}

// Package worker runs the batch generation loop. Polling is the coordination
// mechanism — no message broker. The job row's status column acts as a
// mutual-exclusion lease: the pending → processing claim is an atomic
// conditional update, so concurrent workers never share a job.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fleveque/article-service/internal/gateway"
	"github.com/fleveque/article-service/internal/generator"
	"github.com/fleveque/article-service/internal/ledger"
	"github.com/fleveque/article-service/internal/llm"
	"github.com/fleveque/article-service/internal/model"
	"github.com/fleveque/article-service/internal/prompt"
	"github.com/fleveque/article-service/internal/storage"
)

// maxItemError bounds how much of an item failure message ends up in the
// job's error log.
const maxItemError = 300

// TextGenerator is the slice of the provider gateway the worker needs.
type TextGenerator interface {
	Generate(ctx context.Context, modelName, systemPrompt, userPrompt string, opts llm.GenerateOptions) (*llm.GenerationResult, error)
}

// Worker claims pending jobs and processes their keywords strictly
// sequentially — no intra-job parallelism, which bounds the outbound request
// rate and keeps token debits ordered.
type Worker struct {
	jobs     storage.JobRepository
	articles storage.ArticleRepository
	ledger   *ledger.Ledger
	resolver *prompt.Resolver
	gateway  TextGenerator
	logger   *zap.Logger

	pollInterval    time.Duration
	leaseTimeout    time.Duration
	reclaimInterval time.Duration
}

// New creates a Worker.
func New(
	jobs storage.JobRepository,
	articles storage.ArticleRepository,
	ledg *ledger.Ledger,
	resolver *prompt.Resolver,
	gw TextGenerator,
	pollInterval, leaseTimeout, reclaimInterval time.Duration,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		jobs:            jobs,
		articles:        articles,
		ledger:          ledg,
		resolver:        resolver,
		gateway:         gw,
		logger:          logger,
		pollInterval:    pollInterval,
		leaseTimeout:    leaseTimeout,
		reclaimInterval: reclaimInterval,
	}
}

// Run polls for jobs until the context is cancelled. A reclaim sweep runs on
// its own interval, resetting jobs whose worker crashed mid-lease.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started",
		zap.Duration("poll_interval", w.pollInterval),
		zap.Duration("lease_timeout", w.leaseTimeout),
	)

	poll := time.NewTicker(w.pollInterval)
	defer poll.Stop()
	reclaim := time.NewTicker(w.reclaimInterval)
	defer reclaim.Stop()

	for {
		// Drain the queue before sleeping: claim until nothing is pending.
		for {
			job, err := w.jobs.ClaimOldestPending(ctx)
			if errors.Is(err, storage.ErrNotFound) {
				break
			}
			if err != nil {
				w.logger.Error("claiming job", zap.Error(err))
				break
			}
			w.processJob(ctx, job)

			if ctx.Err() != nil {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping")
			return nil
		case <-poll.C:
		case <-reclaim.C:
			if n, err := w.ReclaimStale(ctx); err != nil {
				w.logger.Error("reclaim sweep", zap.Error(err))
			} else if n > 0 {
				w.logger.Warn("reclaimed stale jobs", zap.Int64("count", n))
			}
		}
	}
}

// ReclaimStale resets jobs stuck in processing past the lease timeout back
// to pending, making them claimable again after a worker crash.
func (w *Worker) ReclaimStale(ctx context.Context) (int64, error) {
	return w.jobs.ReclaimStale(ctx, int(w.leaseTimeout.Seconds()))
}

// processJob iterates the job's keyword list in order, once per keyword.
// Item-level failures never abort the batch; every keyword is attempted
// exactly once, then the job reaches a terminal status.
func (w *Worker) processJob(ctx context.Context, job *model.Job) {
	w.logger.Info("processing job",
		zap.Int64("job_id", job.ID),
		zap.String("account_id", job.AccountID),
		zap.Int("keywords", len(job.Keywords)),
	)

	var errorLines []string

	for _, keyword := range job.Keywords {
		if err := w.processItem(ctx, job, keyword); err != nil {
			job.FailedItems++
			errorLines = append(errorLines, fmt.Sprintf("%s: %s", keyword, llm.Truncate(err.Error(), maxItemError)))
			line := strings.Join(errorLines, "\n")
			job.ErrorLog = &line
		} else {
			job.CompletedItems++
		}

		// Persist partial progress after every keyword so the UI poll sees
		// live counts and a crash loses at most one item's bookkeeping.
		if err := w.jobs.UpdateProgress(ctx, job); err != nil {
			w.logger.Error("persisting job progress", zap.Int64("job_id", job.ID), zap.Error(err))
		}
	}

	job.Status = finalStatus(job)
	if err := w.jobs.Finalize(ctx, job); err != nil {
		// ErrNotFound here means the job already left processing — the
		// invariant says that must never happen twice, so log loudly.
		w.logger.Error("finalizing job", zap.Int64("job_id", job.ID), zap.Error(err))
		return
	}

	w.logger.Info("job finished",
		zap.Int64("job_id", job.ID),
		zap.String("status", string(job.Status)),
		zap.Int("completed", job.CompletedItems),
		zap.Int("failed", job.FailedItems),
		zap.Int64("tokens_used", job.TokensUsed),
	)
}

// processItem runs admission → prompt → provider → persist → debit for one
// keyword. Any returned error marks the item failed and the loop continues —
// no automatic retry of the same keyword within this pass.
func (w *Worker) processItem(ctx context.Context, job *model.Job, keyword string) error {
	decision, err := w.ledger.Admit(ctx, job.AccountID, job.Settings.Length)
	if err != nil {
		return fmt.Errorf("admission check: %w", err)
	}
	if !decision.Allowed {
		// Denied admission makes no provider call for this item.
		return errors.New(decision.Reason)
	}

	systemPrompt, userPrompt := w.resolver.Resolve(ctx, prompt.FeatureArticle, prompt.Variables(keyword, job.Settings))

	result, err := w.gateway.Generate(ctx, job.Settings.Model, systemPrompt, userPrompt, llm.GenerateOptions{})
	if err != nil {
		if errors.Is(err, gateway.ErrUnknownModel) || errors.Is(err, gateway.ErrNoCredential) {
			// Configuration errors — fatal for the item, flagged for operators.
			w.logger.Error("generation misconfigured",
				zap.Int64("job_id", job.ID),
				zap.String("model", job.Settings.Model),
				zap.Error(err),
			)
		}
		return err
	}

	article := &model.Article{
		ID:              uuid.NewString(),
		AccountID:       job.AccountID,
		JobID:           &job.ID,
		Keyword:         keyword,
		Title:           generator.TitleFromKeyword(keyword),
		BodyHTML:        result.Text,
		Status:          model.ArticleStatusDraft,
		TokensUsed:      result.TokensUsed,
		TokensEstimated: result.Estimated,
	}
	if err := w.articles.Create(ctx, article); err != nil {
		// One immediate persistence retry — a successful generation must not
		// be silently dropped, and it is never regenerated.
		w.logger.Warn("article write failed, retrying once",
			zap.Int64("job_id", job.ID), zap.Error(err))
		if err := w.articles.Create(ctx, article); err != nil {
			return fmt.Errorf("persisting article: %w", err)
		}
	}

	// Debit actual usage, keyed by article id for idempotence.
	if _, err := w.ledger.Debit(ctx, job.AccountID, article.ID, result.TokensUsed); err != nil {
		w.logger.Error("debiting after generation",
			zap.String("article_id", article.ID), zap.Error(err))
	}

	job.ArticleIDs = append(job.ArticleIDs, article.ID)
	job.TokensUsed += result.TokensUsed
	return nil
}

// finalStatus computes the terminal status once every keyword has been
// attempted exactly once.
func finalStatus(job *model.Job) model.JobStatus {
	switch {
	case job.FailedItems == 0:
		return model.JobStatusCompleted
	case job.CompletedItems == 0:
		return model.JobStatusFailed
	default:
		return model.JobStatusCompletedWithErrors
	}
}

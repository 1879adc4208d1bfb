// Package generator implements the synchronous single-item path: one
// request, one article, with live progress events. It never loops over
// multiple keywords — that's the batch worker's job.
package generator

import (
	"context"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fleveque/article-service/internal/ledger"
	"github.com/fleveque/article-service/internal/llm"
	"github.com/fleveque/article-service/internal/model"
	"github.com/fleveque/article-service/internal/prompt"
	"github.com/fleveque/article-service/internal/storage"
)

// Frame types for the progress stream.
const (
	FrameProgress = "progress"
	FrameComplete = "complete"
	FrameError    = "error"
)

// Frame is one event on the generation stream: zero or more progress frames
// followed by exactly one terminal frame (complete or error).
type Frame struct {
	Type       string `json:"type"`
	Percent    int    `json:"percent,omitempty"`
	Message    string `json:"message,omitempty"`
	ArticleID  string `json:"articleId,omitempty"`
	TokensUsed int64  `json:"tokensUsed,omitempty"`
}

// Sink receives frames in order. A Sink error means the client is gone;
// emission stops but generation and bookkeeping still complete, so a
// disconnected stream never orphans a debit.
type Sink func(Frame) error

// TextGenerator is the slice of the provider gateway this package needs.
// Consumer-side interface: the real *gateway.Gateway satisfies it, tests
// supply fakes.
type TextGenerator interface {
	Generate(ctx context.Context, modelName, systemPrompt, userPrompt string, opts llm.GenerateOptions) (*llm.GenerationResult, error)
}

// Request is one single-shot generation request.
type Request struct {
	Keyword  string
	Settings model.GenerationSettings
}

// Generator orchestrates admission → prompt → provider → persist → debit
// for one article, reporting progress through a Sink.
type Generator struct {
	ledger   *ledger.Ledger
	resolver *prompt.Resolver
	gateway  TextGenerator
	articles storage.ArticleRepository
	logger   *zap.Logger
}

// New creates a Generator.
func New(
	ledg *ledger.Ledger,
	resolver *prompt.Resolver,
	gw TextGenerator,
	articles storage.ArticleRepository,
	logger *zap.Logger,
) *Generator {
	return &Generator{
		ledger:   ledg,
		resolver: resolver,
		gateway:  gw,
		articles: articles,
		logger:   logger,
	}
}

// Generate runs the full single-item pipeline. The returned article is nil
// when the run failed; the failure has already been emitted as an error frame.
func (g *Generator) Generate(ctx context.Context, accountID string, req Request, sink Sink) (*model.Article, error) {
	emitter := &frameEmitter{sink: sink}

	// Admission
	emitter.progress(5, "Checking token balance")
	decision, err := g.ledger.Admit(ctx, accountID, req.Settings.Length)
	if err != nil {
		g.logger.Error("admission check failed", zap.String("account_id", accountID), zap.Error(err))
		emitter.fail("internal error during admission")
		return nil, err
	}
	if !decision.Allowed {
		emitter.fail(decision.Reason)
		return nil, nil
	}

	// Prompt assembly
	systemPrompt, userPrompt := g.resolver.Resolve(ctx, prompt.FeatureArticle, prompt.Variables(req.Keyword, req.Settings))

	if req.Settings.UseGoogleSearch {
		emitter.progress(20, "Researching topic")
	}

	// Writing. The outbound call has no cooperative cancellation tied to the
	// stream — once dispatched it runs to completion even if the client left.
	emitter.progress(40, "Writing article")
	result, err := g.gateway.Generate(ctx, req.Settings.Model, systemPrompt, userPrompt, llm.GenerateOptions{})
	if err != nil {
		g.logger.Warn("generation failed",
			zap.String("account_id", accountID),
			zap.String("keyword", req.Keyword),
			zap.Error(err),
		)
		emitter.fail(llm.Truncate(err.Error(), 300))
		return nil, err
	}

	emitter.progress(85, "Saving article")
	article := &model.Article{
		ID:              uuid.NewString(),
		AccountID:       accountID,
		Keyword:         req.Keyword,
		Title:           TitleFromKeyword(req.Keyword),
		BodyHTML:        result.Text,
		Status:          model.ArticleStatusDraft,
		TokensUsed:      result.TokensUsed,
		TokensEstimated: result.Estimated,
	}
	if err := g.articles.Create(ctx, article); err != nil {
		g.logger.Error("persisting article", zap.String("keyword", req.Keyword), zap.Error(err))
		emitter.fail("failed to save article")
		return nil, err
	}

	// Debit actual usage, keyed by the article id so a retry can't
	// double-charge.
	if _, err := g.ledger.Debit(ctx, accountID, article.ID, result.TokensUsed); err != nil {
		g.logger.Error("debiting after generation", zap.String("article_id", article.ID), zap.Error(err))
	}

	emitter.complete(article.ID, result.TokensUsed)
	return article, nil
}

// frameEmitter tracks sink health so a closed stream stops emission without
// aborting the pipeline.
type frameEmitter struct {
	sink   Sink
	closed bool
}

func (e *frameEmitter) emit(f Frame) {
	if e.closed || e.sink == nil {
		return
	}
	if err := e.sink(f); err != nil {
		e.closed = true
	}
}

func (e *frameEmitter) progress(percent int, message string) {
	e.emit(Frame{Type: FrameProgress, Percent: percent, Message: message})
}

func (e *frameEmitter) complete(articleID string, tokens int64) {
	e.emit(Frame{Type: FrameComplete, ArticleID: articleID, TokensUsed: tokens})
}

func (e *frameEmitter) fail(message string) {
	e.emit(Frame{Type: FrameError, Message: message})
}

// TitleFromKeyword turns a keyword into a presentable article title.
func TitleFromKeyword(keyword string) string {
	words := strings.Fields(keyword)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

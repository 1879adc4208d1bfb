// Package main provides the batch worker binary for the article service.
// Uses Cobra for command parsing — the standard Go CLI framework.
//
// Run with: go run ./cmd/worker run
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleveque/article-service/internal/config"
	"github.com/fleveque/article-service/internal/gateway"
	"github.com/fleveque/article-service/internal/ledger"
	"github.com/fleveque/article-service/internal/model"
	"github.com/fleveque/article-service/internal/prompt"
	"github.com/fleveque/article-service/internal/storage"
	"github.com/fleveque/article-service/internal/worker"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "article-worker",
		Short: "Article service batch worker and admin tools",
	}

	root.AddCommand(runCmd())
	root.AddCommand(reclaimCmd())
	root.AddCommand(seedCmd())
	return root
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the batch job polling loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker()
		},
	}
}

func reclaimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reclaim",
		Short: "Reset jobs stuck in processing past the lease timeout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReclaim()
		},
	}
}

func seedCmd() *cobra.Command {
	var (
		openaiKey    string
		geminiKey    string
		anthropicKey string
		accountID    string
		tokens       int64
		articles     int64
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert default model descriptors, credentials, and a demo balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(openaiKey, geminiKey, anthropicKey, accountID, tokens, articles)
		},
	}

	cmd.Flags().StringVar(&openaiKey, "openai-key", "", "OpenAI API key to store as content credential")
	cmd.Flags().StringVar(&geminiKey, "gemini-key", "", "Gemini API key to store as content credential")
	cmd.Flags().StringVar(&anthropicKey, "anthropic-key", "", "Anthropic API key to store as content credential")
	cmd.Flags().StringVar(&accountID, "account", "", "Account id to seed a balance for")
	cmd.Flags().Int64Var(&tokens, "tokens", 100000, "Token balance for the seeded account")
	cmd.Flags().Int64Var(&articles, "articles", 50, "Article quota for the seeded account")
	return cmd
}

// setup loads config, logger, and the database — shared by all commands.
func setup() (*config.Config, *zap.Logger, *sqlx.DB, error) {
	configPath := os.Getenv("ARTICLE_CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	var logger *zap.Logger
	if cfg.Log.Level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating logger: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
		return nil, nil, nil, fmt.Errorf("creating database directory: %w", err)
	}
	db, err := storage.NewDatabase(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}

	return cfg, logger, db, nil
}

func runWorker() error {
	cfg, logger, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()
	defer func() { _ = logger.Sync() }()

	jobs := storage.NewJobRepository(db)
	articles := storage.NewArticleRepository(db)
	balances := storage.NewBalanceRepository(db)
	descriptors := storage.NewModelDescriptorRepository(db)
	credentials := storage.NewCredentialRepository(db)
	calls := storage.NewProviderCallRepository(db)
	templates := storage.NewTemplateRepository(db)

	ledg := ledger.New(balances, logger)
	resolver := prompt.NewResolver(templates, logger)
	gw := gateway.New(descriptors, credentials, calls,
		cfg.LLM.RatePerMinute, cfg.LLM.RequestTimeout(), cfg.LLM.MaxTokens,
		nil, logger)

	w := worker.New(jobs, articles, ledg, resolver, gw,
		cfg.Worker.PollInterval(), cfg.Worker.LeaseTimeout(), cfg.Worker.ReclaimInterval(),
		logger)

	// Ctrl+C / SIGTERM cancels the context and drains the loop.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("stopping worker...")
		cancel()
	}()

	return w.Run(ctx)
}

func runReclaim() error {
	cfg, logger, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()
	defer func() { _ = logger.Sync() }()

	jobs := storage.NewJobRepository(db)
	reclaimed, err := jobs.ReclaimStale(context.Background(), int(cfg.Worker.LeaseTimeout().Seconds()))
	if err != nil {
		return fmt.Errorf("reclaiming stale jobs: %w", err)
	}

	logger.Info("reclaim complete", zap.Int64("reclaimed", reclaimed))
	return nil
}

func runSeed(openaiKey, geminiKey, anthropicKey, accountID string, tokens, articleQuota int64) error {
	_, logger, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	descriptors := storage.NewModelDescriptorRepository(db)
	credentials := storage.NewCredentialRepository(db)
	balances := storage.NewBalanceRepository(db)

	defaults := []model.ModelDescriptor{
		{Name: "gpt-4o", DisplayAlias: "GPT-4o", Provider: model.ProviderOpenAI, ProviderModelID: "gpt-4o", Active: true},
		{Name: "gpt-4o-mini", DisplayAlias: "GPT-4o Mini", Provider: model.ProviderOpenAI, ProviderModelID: "gpt-4o-mini", Active: true},
		{Name: "gemini-pro", DisplayAlias: "Gemini Pro", Provider: model.ProviderGemini, ProviderModelID: "gemini-1.5-pro", Active: true},
		{Name: "claude-sonnet", DisplayAlias: "Claude Sonnet", Provider: model.ProviderAnthropic, ProviderModelID: "claude-sonnet-4-5-20250929", Active: true},
	}
	for i := range defaults {
		descriptor := defaults[i]
		if _, err := descriptors.GetActiveByName(ctx, descriptor.Name); err == nil {
			logger.Info("descriptor exists, skipping", zap.String("name", descriptor.Name))
			continue
		}
		if err := descriptors.Create(ctx, &descriptor); err != nil {
			return fmt.Errorf("seeding descriptor %s: %w", descriptor.Name, err)
		}
		logger.Info("seeded descriptor", zap.String("name", descriptor.Name))
	}

	secrets := map[model.Provider]string{
		model.ProviderOpenAI:    openaiKey,
		model.ProviderGemini:    geminiKey,
		model.ProviderAnthropic: anthropicKey,
	}
	for provider, secret := range secrets {
		if secret == "" {
			continue
		}
		credential := &model.Credential{
			Provider: provider,
			Category: model.CategoryContent,
			Secret:   secret,
			Active:   true,
		}
		if err := credentials.Create(ctx, credential); err != nil {
			return fmt.Errorf("seeding credential for %s: %w", provider, err)
		}
		logger.Info("seeded credential",
			zap.String("provider", string(provider)),
			zap.String("secret", credential.Masked()),
		)
	}

	if accountID != "" {
		balance := &model.TokenBalance{
			AccountID:         accountID,
			TokensRemaining:   tokens,
			ArticlesRemaining: articleQuota,
		}
		if err := balances.Upsert(ctx, balance); err != nil {
			return fmt.Errorf("seeding balance for %s: %w", accountID, err)
		}
		logger.Info("seeded balance",
			zap.String("account_id", accountID),
			zap.Int64("tokens", tokens),
			zap.Int64("articles", articleQuota),
		)
	}

	return nil
}

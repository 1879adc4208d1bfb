// Package main is the entry point for the article-service HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/article-service/internal/config"
	"github.com/fleveque/article-service/internal/gateway"
	"github.com/fleveque/article-service/internal/generator"
	"github.com/fleveque/article-service/internal/ledger"
	"github.com/fleveque/article-service/internal/prompt"
	"github.com/fleveque/article-service/internal/server"
	"github.com/fleveque/article-service/internal/storage"
)

func main() {
	// We call run() separately so deferred cleanup functions execute properly
	// (deferred functions don't run when os.Exit is called directly).
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := os.Getenv("ARTICLE_CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// zap outputs JSON in production and human-readable format in development.
	var logger *zap.Logger
	if cfg.Log.Level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	// Sync flushes buffered log entries. The error is intentionally ignored
	// because Sync commonly fails on stdout/stderr.
	defer func() { _ = logger.Sync() }()

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}
	db, err := storage.NewDatabase(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

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
	gen := generator.New(ledg, resolver, gw, articles, logger)

	srv := server.New(cfg, server.Deps{
		Jobs:      jobs,
		Articles:  articles,
		Calls:     calls,
		Ledger:    ledg,
		Generator: gen,
	}, logger)

	// Graceful shutdown: listen for SIGINT (Ctrl+C) or SIGTERM (docker stop).
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	// Give in-flight requests 10 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(ctx)
}

// Package server configures the HTTP server and routes.
package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/article-service/internal/config"
	"github.com/fleveque/article-service/internal/generator"
	"github.com/fleveque/article-service/internal/handler"
	"github.com/fleveque/article-service/internal/ledger"
	"github.com/fleveque/article-service/internal/middleware"
	"github.com/fleveque/article-service/internal/storage"
)

// Deps collects everything the route handlers need. Dependencies are passed
// explicitly — no DI container, no magic.
type Deps struct {
	Jobs      storage.JobRepository
	Articles  storage.ArticleRepository
	Calls     storage.ProviderCallRepository
	Ledger    *ledger.Ledger
	Generator *generator.Generator
}

// RegisterRoutes sets up all HTTP routes on the Gin engine.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, deps Deps, logger *zap.Logger) {
	healthHandler := handler.NewHealthHandler()
	jobHandler := handler.NewJobHandler(deps.Jobs, deps.Ledger, logger)
	generateHandler := handler.NewGenerateHandler(deps.Generator, logger)
	articleHandler := handler.NewArticleHandler(deps.Articles, logger)
	balanceHandler := handler.NewBalanceHandler(deps.Ledger, logger)
	adminHandler := handler.NewAdminHandler(deps.Jobs, deps.Articles, deps.Calls, logger)

	// Public endpoints (no auth)
	r.GET("/healthz", healthHandler.Healthz)

	// CORS middleware applies to the entire API group.
	api := r.Group("/api/v1")
	api.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	// Authenticated API endpoints. Account identity arrives via the
	// X-Account-ID header from the upstream auth collaborator.
	authed := api.Group("")
	authed.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys))
	authed.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	authed.Use(middleware.AccountID())
	{
		authed.POST("/jobs", jobHandler.Submit)
		authed.GET("/jobs/:id", jobHandler.Status)
		authed.POST("/generate", generateHandler.Stream)
		authed.GET("/articles/:id", articleHandler.Get)
		authed.GET("/balance", balanceHandler.Get)
	}

	// Admin endpoints (separate auth with admin keys)
	admin := api.Group("/admin")
	admin.Use(middleware.AdminKeyAuth(cfg.Auth.AdminKeys))
	{
		admin.GET("/stats", adminHandler.Stats)
		admin.POST("/reclaim", adminHandler.Reclaim(int(cfg.Worker.LeaseTimeout().Seconds())))
	}
}

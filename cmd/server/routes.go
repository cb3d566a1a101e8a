package main

import (
	"github.com/gin-gonic/gin"

	"github.com/grovelabs/grove-coder/internal/config"
	"github.com/grovelabs/grove-coder/internal/handlers"
	"github.com/grovelabs/grove-coder/internal/middleware"
	"github.com/grovelabs/grove-coder/internal/models"
	"github.com/grovelabs/grove-coder/pkg/logger"
)

// runStatsServer serves the optional read-only stats API next to the MCP
// transport. It never writes to the ledger.
func runStatsServer(cfg *config.Config) {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	registerRoutes(r)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	logger.Info().Str("addr", addr).Msg("stats server starting")
	if err := r.Run(addr); err != nil {
		logger.Error().Err(err).Msg("stats server exited")
	}
}

// registerRoutes sets up the stats API routes on the given Gin engine.
func registerRoutes(r *gin.Engine) {
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.Use(middleware.CORS())

	healthHandler := handlers.NewHealthHandler(models.GetDB())
	r.GET("/health", healthHandler.CheckHealth)

	api := r.Group("/api", middleware.RateLimit(10, 20))
	{
		usageHandler := handlers.NewUsageHandler(models.GetDB())
		api.GET("/usage/report", usageHandler.GetReport)
	}
}

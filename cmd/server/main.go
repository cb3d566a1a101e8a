package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/grovelabs/grove-coder/internal/config"
	"github.com/grovelabs/grove-coder/internal/mcpserver"
	"github.com/grovelabs/grove-coder/internal/models"
	"github.com/grovelabs/grove-coder/internal/services"
	"github.com/grovelabs/grove-coder/pkg/logger"
)

func main() {
	// Optional .env for local development; a missing file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init(cfg.Log.Level)

	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := models.AutoMigrate(models.GetDB()); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	client, err := services.NewDeepSeekClient(&cfg.OpenRouter)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create DeepSeek client")
	}

	ledger := services.NewLedgerService(models.GetDB())
	broker := services.NewBroker(ledger, client, cfg.CostLimits)
	defer broker.Close()

	if cfg.Server.StatsEnabled {
		go runStatsServer(cfg)
	}

	logger.Info().
		Str("model", cfg.OpenRouter.Model).
		Float64("daily_limit_usd", cfg.CostLimits.DailyUSD).
		Float64("monthly_limit_usd", cfg.CostLimits.MonthlyUSD).
		Msg("serving MCP over stdio")

	if err := mcpserver.New(broker).ServeStdio(); err != nil {
		logger.Fatal().Err(err).Msg("MCP server exited")
	}
}

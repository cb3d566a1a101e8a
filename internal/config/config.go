package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	OpenRouter OpenRouterConfig `yaml:"openrouter"`
	CostLimits CostLimitsConfig `yaml:"cost_limits"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig controls the optional read-only stats HTTP server.
// The MCP transport itself runs over stdio and needs no listener.
type ServerConfig struct {
	StatsEnabled bool   `yaml:"stats_enabled"`
	Host         string `yaml:"host"`
	Port         string `yaml:"port"`
	Mode         string `yaml:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

// OpenRouterConfig holds credentials and routing preferences for the
// DeepSeek worker model served through OpenRouter.
type OpenRouterConfig struct {
	APIKey             string   `yaml:"api_key"`
	Model              string   `yaml:"model"`
	BaseURL            string   `yaml:"base_url"`
	RequireZDR         bool     `yaml:"require_zdr"`
	PreferredProviders []string `yaml:"preferred_providers"`
}

// CostLimitsConfig holds the spend thresholds enforced before each upstream call.
type CostLimitsConfig struct {
	DailyUSD   float64 `yaml:"daily_usd"`
	MonthlyUSD float64 `yaml:"monthly_usd"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	var cfg *Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg = DefaultConfig()
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		fileCfg := *DefaultConfig()
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, err
		}
		cfg = &fileCfg
	}

	cfg.overrideFromEnv()
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			StatsEnabled: false,
			Host:         "127.0.0.1",
			Port:         "8080",
			Mode:         "release",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "grove_coder.db",
		},
		OpenRouter: OpenRouterConfig{
			Model:              "deepseek/deepseek-v3.2",
			BaseURL:            "https://openrouter.ai/api/v1",
			RequireZDR:         true,
			PreferredProviders: []string{"Together", "Fireworks"},
		},
		CostLimits: CostLimitsConfig{
			DailyUSD:   10.0,
			MonthlyUSD: 50.0,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if enabled := os.Getenv("STATS_ENABLED"); enabled != "" {
		c.Server.StatsEnabled = enabled == "true" || enabled == "1"
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if apiKey := os.Getenv("OPENROUTER_API_KEY"); apiKey != "" {
		c.OpenRouter.APIKey = apiKey
	}
	if model := os.Getenv("GROVE_CODER_WORKER_MODEL"); model != "" {
		c.OpenRouter.Model = model
	}
	if baseURL := os.Getenv("OPENROUTER_BASE_URL"); baseURL != "" {
		c.OpenRouter.BaseURL = baseURL
	}
	if zdr := os.Getenv("GROVE_CODER_REQUIRE_ZDR"); zdr != "" {
		c.OpenRouter.RequireZDR = zdr == "true" || zdr == "1"
	}
	if providers := os.Getenv("GROVE_CODER_PROVIDERS"); providers != "" {
		c.OpenRouter.PreferredProviders = splitAndTrim(providers, ",")
	}
	if daily := os.Getenv("GROVE_CODER_DAILY_LIMIT_USD"); daily != "" {
		if v, err := strconv.ParseFloat(daily, 64); err == nil {
			c.CostLimits.DailyUSD = v
		}
	}
	if monthly := os.Getenv("GROVE_CODER_MONTHLY_LIMIT_USD"); monthly != "" {
		if v, err := strconv.ParseFloat(monthly, 64); err == nil {
			c.CostLimits.MonthlyUSD = v
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// splitAndTrim splits s on sep and drops empty parts.
func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

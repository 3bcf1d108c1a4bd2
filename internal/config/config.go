package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using process environment")
	}
}

func LoadBot() (*Bot, error) {
	loadDotEnv()
	var cfg Bot
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse bot config: %w", err)
	}
	if cfg.DiscordToken == "" {
		return nil, ErrConfig("DISCORD_TOKEN required")
	}
	if cfg.APIRateLimit <= 0 {
		return nil, ErrConfig("API_RATE_LIMIT must be positive")
	}
	if cfg.PlaylistLimit < 1 {
		cfg.PlaylistLimit = 1
	}
	return &cfg, nil
}

func LoadAPI() (*API, error) {
	loadDotEnv()
	var cfg API
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse api config: %w", err)
	}
	if cfg.DataDir == "" {
		return nil, ErrConfig("DATA_DIR required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &cfg, nil
}

// ParseLevel maps LOG_LEVEL values onto slog levels; unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }

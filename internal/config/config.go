package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config keeps runtime settings for the bot and the HTTP API.
type Config struct {
	BotToken      string
	DatabaseURL   string
	WebAppURL     string
	HTTPAddr      string
	SweepInterval time.Duration
	MorningTime   string // HH:MM, daily summary send time
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		BotToken:      strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		WebAppURL:     strings.TrimSpace(os.Getenv("WEBAPP_URL")),
		HTTPAddr:      strings.TrimSpace(os.Getenv("HTTP_ADDR")),
		SweepInterval: parseMinutes(strings.TrimSpace(os.Getenv("SWEEP_INTERVAL_MINUTES"))),
		MorningTime:   strings.TrimSpace(os.Getenv("MORNING_TIME")),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "family_tasks.db"
	}

	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Minute
	}

	if cfg.MorningTime == "" {
		cfg.MorningTime = "09:00"
	}

	if cfg.BotToken == "" {
		return cfg, fmt.Errorf("BOT_TOKEN is required")
	}

	return cfg, nil
}

func parseMinutes(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		return 0
	}
	return time.Duration(minutes) * time.Minute
}

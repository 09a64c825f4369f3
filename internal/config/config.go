// Package config loads runtime settings from the environment, with an
// optional .env file for development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/glucolog/glucolog/internal/mailer"
	"github.com/glucolog/glucolog/internal/scheduler"
)

// Config holds the full runtime configuration.
type Config struct {
	ListenAddr string
	DataDir    string

	LogLevel  string
	LogFormat string // "json" or "console"

	SMTP mailer.Config

	Schedule scheduler.Config

	AuditRetentionDays int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first if present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded .env file")
	}

	cfg := &Config{
		ListenAddr:         ":7655",
		DataDir:            "/var/lib/glucolog",
		LogLevel:           "info",
		LogFormat:          "json",
		Schedule:           scheduler.DefaultConfig(),
		AuditRetentionDays: 90,
	}

	if val := os.Getenv("GLUCOLOG_LISTEN_ADDR"); val != "" {
		cfg.ListenAddr = val
	}
	if val := os.Getenv("GLUCOLOG_DATA_DIR"); val != "" {
		cfg.DataDir = val
	}
	if val := os.Getenv("GLUCOLOG_LOG_LEVEL"); val != "" {
		cfg.LogLevel = val
	}
	if val := os.Getenv("GLUCOLOG_LOG_FORMAT"); val != "" {
		cfg.LogFormat = val
	}

	if val := os.Getenv("GLUCOLOG_SMTP_HOST"); val != "" {
		cfg.SMTP.Host = val
	}
	cfg.SMTP.Port = 587
	if val := os.Getenv("GLUCOLOG_SMTP_PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return nil, fmt.Errorf("invalid GLUCOLOG_SMTP_PORT %q: %w", val, err)
		}
		cfg.SMTP.Port = port
	}
	if val := os.Getenv("GLUCOLOG_SMTP_USERNAME"); val != "" {
		cfg.SMTP.Username = val
	}
	if val := os.Getenv("GLUCOLOG_SMTP_PASSWORD"); val != "" {
		cfg.SMTP.Password = val
	}
	if val := os.Getenv("GLUCOLOG_SMTP_FROM"); val != "" {
		cfg.SMTP.From = val
	}

	if val := os.Getenv("GLUCOLOG_WEEKLY_CRON"); val != "" {
		cfg.Schedule.WeeklySpec = val
	}
	if val := os.Getenv("GLUCOLOG_MONTHLY_CRON"); val != "" {
		cfg.Schedule.MonthlySpec = val
	}

	if val := os.Getenv("GLUCOLOG_AUDIT_RETENTION_DAYS"); val != "" {
		days, err := strconv.Atoi(val)
		if err != nil || days < 1 {
			return nil, fmt.Errorf("invalid GLUCOLOG_AUDIT_RETENTION_DAYS %q", val)
		}
		cfg.AuditRetentionDays = days
	}

	switch strings.ToLower(cfg.LogFormat) {
	case "json", "console":
	default:
		return nil, fmt.Errorf("invalid GLUCOLOG_LOG_FORMAT %q, expected json or console", cfg.LogFormat)
	}

	return cfg, nil
}

// EmailEnabled reports whether SMTP is configured well enough to send.
func (c *Config) EmailEnabled() bool {
	return c.SMTP.Host != "" && c.SMTP.From != ""
}

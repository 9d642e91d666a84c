package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// Account-month provisioning horizon
	HorizonFromYear int
	HorizonToYear   int

	// Defaults used on first run
	DefaultCurrencyLabel string
	DefaultCurrencyUnit  string

	// Logging
	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/tally.db"),

		HorizonFromYear: getEnvInt("HORIZON_FROM_YEAR", 2018),
		HorizonToYear:   getEnvInt("HORIZON_TO_YEAR", 2025),

		DefaultCurrencyLabel: getEnv("DEFAULT_CURRENCY_LABEL", "Euro"),
		DefaultCurrencyUnit:  getEnv("DEFAULT_CURRENCY_UNIT", "€"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks the configuration and returns every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	}

	if c.HorizonFromYear < 1970 || c.HorizonFromYear > 9999 {
		errs = append(errs, fmt.Sprintf("invalid horizon start year %d", c.HorizonFromYear))
	}
	if c.HorizonToYear < c.HorizonFromYear {
		errs = append(errs, fmt.Sprintf("horizon end year %d precedes start year %d", c.HorizonToYear, c.HorizonFromYear))
	}

	if c.DefaultCurrencyLabel == "" {
		errs = append(errs, "default currency label cannot be empty")
	}
	if c.DefaultCurrencyUnit == "" {
		errs = append(errs, "default currency unit cannot be empty")
	}

	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// SlogLevel maps the configured level name onto slog's levels.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

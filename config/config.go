// Package config loads server settings from the environment and an optional
// .env file.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/warp/visit-engine/engine"
)

// Config holds application configuration
type Config struct {
	Port               int
	DatabasePath       string
	LogLevel           string
	LogPretty          bool
	CORSOrigins        []string
	PriceAuditSchedule string // cron spec; empty disables the audit job
	UpcomingLimit      int
	DefaultPeriod      engine.WindowKind
}

// Load reads configuration from environment variables, after loading .env
// if it exists.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads configuration from environment variables only.
func FromEnv() (*Config, error) {
	period, err := engine.ParseWindowKind(getEnv("DEFAULT_PERIOD", "week"))
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_PERIOD: %w", err)
	}

	cfg := &Config{
		Port:               getEnvAsInt("PORT", 8080),
		DatabasePath:       getEnv("DB_PATH", "visits.db"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogPretty:          getEnvAsBool("LOG_PRETTY", false),
		CORSOrigins:        getEnvAsList("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:8080"}),
		PriceAuditSchedule: getEnv("PRICE_AUDIT_SCHEDULE", "@hourly"),
		UpcomingLimit:      getEnvAsInt("UPCOMING_LIMIT", engine.DefaultUpcomingLimit),
		DefaultPeriod:      period,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BindFlags registers command-line overrides for the most common settings.
// Call Validate again after parsing.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.Port, "port", c.Port, "HTTP server port")
	fs.StringVar(&c.DatabasePath, "db", c.DatabasePath, `SQLite database path (":memory:" for in-memory)`)
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn, error")
	fs.BoolVar(&c.LogPretty, "log-pretty", c.LogPretty, "human-readable console logs")
	fs.StringVar(&c.PriceAuditSchedule, "audit-schedule", c.PriceAuditSchedule, `cron spec for the price audit ("off" disables)`)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if c.UpcomingLimit < 0 {
		return fmt.Errorf("UPCOMING_LIMIT must not be negative, got %d", c.UpcomingLimit)
	}
	if strings.EqualFold(c.PriceAuditSchedule, "off") {
		c.PriceAuditSchedule = ""
	}
	if c.PriceAuditSchedule != "" {
		if _, err := cron.ParseStandard(c.PriceAuditSchedule); err != nil {
			return fmt.Errorf("PRICE_AUDIT_SCHEDULE %q: %w", c.PriceAuditSchedule, err)
		}
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

/*
config.go - Environment configuration

PURPOSE:
  Loads server settings from the environment, with .env support for
  local runs. Every field has a default that brings the server up
  against a local SQLite file with scheduling off.

VARIABLES:
  DB_DRIVER             sqlite | mysql | postgres     (default: sqlite)
  DATABASE_URL          DSN for mysql/postgres
  DB_PATH               SQLite file path or :memory:  (default: ledger.db)
  HTTP_ADDR             listen address                (default: :8080)
  REPORTS_DIR           report output root            (default: reports)
  LOG_LEVEL             logrus level name             (default: info)
  BOD_SCHEDULE_ENABLED  run the BOD scheduler         (default: false)
  BOD_SCHEDULE_INTERVAL scheduler poll interval       (default: 1m)
  DEFAULT_SYSTEM_DATE   seed System_Date when unset   (yyyy-mm-dd, optional)
  SEED_DEMO_DATA        load the demo book on boot    (default: false)

SEE ALSO:
  - cmd/server/main.go: the only consumer
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDriver    string
	DatabaseURL string
	DBPath      string

	HTTPAddr   string
	ReportsDir string
	LogLevel   string

	BODScheduleEnabled  bool
	BODScheduleInterval time.Duration

	// DefaultSystemDate seeds Parameter_Table.System_Date on first boot
	// when the row is missing; zero means leave it to the operator.
	DefaultSystemDate time.Time

	SeedDemoData bool
}

// Load reads .env when present, then the environment. A missing .env is
// not an error; a malformed value is.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBDriver:            getenv("DB_DRIVER", "sqlite"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		DBPath:              getenv("DB_PATH", "ledger.db"),
		HTTPAddr:            getenv("HTTP_ADDR", ":8080"),
		ReportsDir:          getenv("REPORTS_DIR", "reports"),
		LogLevel:            getenv("LOG_LEVEL", "info"),
		BODScheduleInterval: time.Minute,
	}

	switch cfg.DBDriver {
	case "sqlite", "mysql", "postgres":
	default:
		return nil, fmt.Errorf("DB_DRIVER must be sqlite, mysql or postgres, got %q", cfg.DBDriver)
	}
	if cfg.DBDriver != "sqlite" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when DB_DRIVER=%s", cfg.DBDriver)
	}

	var err error
	if cfg.BODScheduleEnabled, err = getbool("BOD_SCHEDULE_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.SeedDemoData, err = getbool("SEED_DEMO_DATA", false); err != nil {
		return nil, err
	}

	if v := os.Getenv("BOD_SCHEDULE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("BOD_SCHEDULE_INTERVAL: %w", err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("BOD_SCHEDULE_INTERVAL must be positive, got %s", d)
		}
		cfg.BODScheduleInterval = d
	}

	if v := os.Getenv("DEFAULT_SYSTEM_DATE"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil, fmt.Errorf("DEFAULT_SYSTEM_DATE must be yyyy-mm-dd: %w", err)
		}
		cfg.DefaultSystemDate = t
	}

	return cfg, nil
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == "sqlite" {
		return c.DBPath
	}
	return c.DatabaseURL
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getbool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	FetchModeHTTP    = "http"
	FetchModeBrowser = "browser"
)

type Config struct {
	// Storage. Both are optional: without a database nothing is persisted
	// and backfill is disabled; without Redis documents are cached in memory.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	RedisURL    string `mapstructure:"REDIS_URL"`

	// Server
	RestPort string `mapstructure:"REST_PORT"`
	WSPort   string `mapstructure:"WS_PORT"`

	// Source site
	PFRBaseURL       string        `mapstructure:"PFR_BASE_URL"`
	FetchMode        string        `mapstructure:"FETCH_MODE"`
	FetchTimeout     time.Duration `mapstructure:"FETCH_TIMEOUT"`
	FetchMaxRetries  int           `mapstructure:"FETCH_MAX_RETRIES"`
	FetchMinInterval time.Duration `mapstructure:"FETCH_MIN_INTERVAL"`
	DocCacheTTL      time.Duration `mapstructure:"DOC_CACHE_TTL"`

	// Backfill and scheduling
	CurrentSeason   int    `mapstructure:"CURRENT_SEASON"`
	BackfillWorkers int    `mapstructure:"BACKFILL_WORKERS"`
	ScheduleCron    string `mapstructure:"SCHEDULE_CRON"`
	TeamWarmCron    string `mapstructure:"TEAM_WARM_CRON"`
	EnableScheduler bool   `mapstructure:"ENABLE_SCHEDULER"`

	// Logging
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REST_PORT", "8080")
	v.SetDefault("WS_PORT", "8081")
	v.SetDefault("PFR_BASE_URL", "https://www.pro-football-reference.com")
	v.SetDefault("FETCH_MODE", FetchModeHTTP)
	v.SetDefault("FETCH_TIMEOUT", "30s")
	v.SetDefault("FETCH_MAX_RETRIES", 4)
	v.SetDefault("FETCH_MIN_INTERVAL", "3s")
	v.SetDefault("DOC_CACHE_TTL", "24h")
	v.SetDefault("CURRENT_SEASON", 0) // 0 means derive from the date
	v.SetDefault("BACKFILL_WORKERS", 2)
	v.SetDefault("SCHEDULE_CRON", "0 6 * * 2")
	v.SetDefault("TEAM_WARM_CRON", "30 5 * * *")
	v.SetDefault("ENABLE_SCHEDULER", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// Load reads configuration from the environment and an optional .env file
// in the working directory or its parent.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	setDefaults(v)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	config.FetchMode = strings.ToLower(strings.TrimSpace(config.FetchMode))
	if config.CurrentSeason == 0 {
		config.CurrentSeason = SeasonFor(time.Now())
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch c.FetchMode {
	case FetchModeHTTP, FetchModeBrowser:
	default:
		return fmt.Errorf("FETCH_MODE must be %q or %q, got %q", FetchModeHTTP, FetchModeBrowser, c.FetchMode)
	}
	if c.BackfillWorkers < 1 {
		return fmt.Errorf("BACKFILL_WORKERS must be at least 1, got %d", c.BackfillWorkers)
	}
	if c.FetchMaxRetries < 0 {
		return fmt.Errorf("FETCH_MAX_RETRIES must not be negative, got %d", c.FetchMaxRetries)
	}
	if c.RestPort == "" {
		return errors.New("REST_PORT is required")
	}
	return nil
}

// SeasonFor returns the NFL season in progress at t. Seasons start in
// September and run into the following year.
func SeasonFor(t time.Time) int {
	if t.Month() < time.September {
		return t.Year() - 1
	}
	return t.Year()
}

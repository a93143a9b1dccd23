package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for pricetrace.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"  yaml:"database"`
	Scraper   ScraperConfig   `mapstructure:"scraper"   yaml:"scraper"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Notion    NotionConfig    `mapstructure:"notion"    yaml:"notion"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
}

// DatabaseConfig controls the relational store.
type DatabaseConfig struct {
	// DSN is either a sqlite file path or a MySQL DSN
	// (user:pass@tcp(host:port)/dbname?parseTime=True).
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// ScraperConfig controls extraction behavior shared by all platform adapters.
type ScraperConfig struct {
	RequestDelay   time.Duration `mapstructure:"request_delay"   yaml:"request_delay"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"     yaml:"max_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"     yaml:"retry_delay"`
	UserAgents     []string      `mapstructure:"user_agents"     yaml:"user_agents"`
}

// SchedulerConfig controls the daily scraping trigger.
type SchedulerConfig struct {
	Hour   int `mapstructure:"hour"   yaml:"hour"`
	Minute int `mapstructure:"minute" yaml:"minute"`
}

// NotionConfig controls the optional Notion synchronization.
type NotionConfig struct {
	Enabled    bool   `mapstructure:"enabled"     yaml:"enabled"`
	Token      string `mapstructure:"token"       yaml:"token"`
	DatabaseID string `mapstructure:"database_id" yaml:"database_id"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN: "data/pricetrace.db",
		},
		Scraper: ScraperConfig{
			RequestDelay:   3 * time.Second,
			RequestTimeout: 15 * time.Second,
			MaxRetries:     3,
			RetryDelay:     3 * time.Second,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
			},
		},
		Scheduler: SchedulerConfig{
			Hour:   8,
			Minute: 0,
		},
		Notion: NotionConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}
